// Package worker implements the broker-consuming worker loop: one engine in
// flight per process, scale-in protection around each mandate, per-tick
// status publication, and idempotent resumption on redelivery.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/swarmguard/agentmind/internal/dagmodel"
	"github.com/swarmguard/agentmind/internal/engine"
	"github.com/swarmguard/agentmind/internal/io"
	"github.com/swarmguard/agentmind/internal/store"
	"github.com/swarmguard/agentmind/internal/task"
)

// EngineFactory builds a fresh Engine for one mandate's run, wiring a
// telemetry recorder scoped to correlationID.
type EngineFactory func(correlationID string) (*engine.Engine, error)

// Worker consumes one task envelope at a time from the broker and drives it
// to completion. A worker process handles exactly one task at a time;
// horizontal concurrency comes from running more worker processes against a
// prefetch=1 consumer.
type Worker struct {
	Consumer      *io.Consumer
	Broker        *io.Broker
	StatusSubject string
	Store         *store.TaskStore
	Snapshots     *store.DagSnapshotStore
	NewEngine     EngineFactory
	Protector     ScaleInProtector
	Cancellations *Registry
	Logger        *slog.Logger
	Now           func() time.Time

	seq atomic.Int64
}

// Run pulls envelopes until ctx is cancelled, handling one at a time.
func (w *Worker) Run(ctx context.Context) error {
	if w.Logger == nil {
		w.Logger = slog.Default()
	}
	if w.Now == nil {
		w.Now = time.Now
	}
	if w.Protector == nil {
		w.Protector = NoopProtector{}
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		env, err := w.Consumer.Next(ctx, 5*time.Second)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			w.Logger.Warn("worker: consumer fetch error", "error", err)
			continue
		}

		if err := w.handle(ctx, env); err != nil {
			w.Logger.Error("worker: envelope handling failed", "error", err)
		}
	}
}

func (w *Worker) handle(ctx context.Context, envelope io.Envelope) error {
	var te task.Envelope
	if err := json.Unmarshal(envelope.Data, &te); err != nil {
		w.Logger.Error("worker: malformed task envelope, acking to drop", "error", err)
		return envelope.Ack()
	}
	if err := te.Validate(); err != nil {
		w.Logger.Error("worker: invalid task envelope, acking to drop", "error", err, "correlation_id", te.CorrelationID)
		return envelope.Ack()
	}

	logger := w.Logger.With("correlation_id", te.CorrelationID, "mandate", te.Mandate)

	// Idempotent resumption: a redelivered envelope for an already-terminal
	// task must not redo work.
	if w.Store != nil {
		if rec, err := w.Store.GetByService(ctx, te.CorrelationID); err == nil && rec.Status.Terminal() {
			logger.Info("worker: skipping redelivered envelope for terminal task", "status", rec.Status)
			return envelope.Ack()
		} else if err != nil && !errors.Is(err, store.ErrNotFound) {
			logger.Warn("worker: task store lookup failed, proceeding with execution", "error", err)
		}
	}

	if err := w.Protector.Enable(ctx); err != nil {
		logger.Warn("worker: scale-in protection enable failed, proceeding", "error", err)
	}

	mandateCtx := ctx
	if w.Cancellations != nil {
		mandateCtx = w.Cancellations.Register(te.CorrelationID, ctx)
		defer w.Cancellations.Complete(te.CorrelationID)
	}

	w.publishStatus(ctx, task.StatusEnvelope{
		Type: task.StatusAccepted, Mandate: te.Mandate, CorrelationID: te.CorrelationID,
		Seq: w.seq.Add(1), Ts: w.Now().Unix(), MaxTicks: te.MaxTicks,
	})

	eng, err := w.NewEngine(te.CorrelationID)
	if err != nil {
		return w.finishWithError(ctx, te, fmt.Errorf("worker: engine construction failed: %w", err), envelope)
	}

	// A redelivered non-terminal task resumes from its last saved DAG state
	// rather than restarting the reasoning tree from scratch: idempotent
	// redelivery handling extends past the already-terminal case to
	// in-flight progress too.
	dag := dagmodel.NewIdeaDag(te.Mandate)
	if w.Snapshots != nil {
		if saved, ok, err := w.Snapshots.Load(ctx, te.CorrelationID); err == nil && ok {
			dag = saved
			logger.Info("worker: resuming from saved dag snapshot")
		} else if err != nil {
			logger.Warn("worker: dag snapshot load failed, starting fresh", "error", err)
		}
	}

	outcome, runErr := eng.RunWithProgress(mandateCtx, dag, te.Mandate, te.MaxTicks, func(tickIndex int, dag *dagmodel.IdeaDag) {
		deliverables := countDeliverables(dag)
		w.publishStatus(ctx, task.StatusEnvelope{
			Type: task.StatusInProgress, Mandate: te.Mandate, CorrelationID: te.CorrelationID,
			Seq: w.seq.Add(1), Ts: w.Now().Unix(), Tick: tickIndex, MaxTicks: te.MaxTicks,
			HistoryLength:     len(eng.Telemetry.Snapshot()),
			DeliverablesCount: deliverables,
		})
		if w.Snapshots != nil {
			if err := w.Snapshots.Save(ctx, te.CorrelationID, dag); err != nil {
				logger.Warn("worker: dag snapshot save failed", "error", err)
			}
		}
	})

	if runErr != nil {
		// Engine-internal invariant violations are fatal per task: emit error,
		// fail the record, still ack so the envelope is not redelivered forever.
		return w.finishWithError(ctx, te, runErr, envelope)
	}

	if err := w.Protector.Disable(ctx); err != nil {
		logger.Warn("worker: scale-in protection disable failed", "error", err)
	}

	if !outcome.Benchmark.Passed {
		logger.Warn("worker: benchmark gate failed", "reasons", outcome.Benchmark.Reasons)
	}

	deliverables := collectDeliverables(dag)
	w.publishStatus(ctx, task.StatusEnvelope{
		Type: task.StatusCompleted, Mandate: te.Mandate, CorrelationID: te.CorrelationID,
		Seq: w.seq.Add(1), Ts: w.Now().Unix(), MaxTicks: te.MaxTicks,
		Result: &task.Result{
			Success:          outcome.Success,
			Deliverables:     deliverables,
			Notes:            outcome.Notes,
			FinalDeliverable: outcome.FinalDeliverable,
			ActionSummary:    outcome.ActionSummary,
		},
		NotesLen:          len(outcome.Notes),
		DeliverablesCount: len(deliverables),
	})

	w.dropSnapshot(ctx, te.CorrelationID, logger)
	return envelope.Ack()
}

func (w *Worker) finishWithError(ctx context.Context, te task.Envelope, runErr error, envelope io.Envelope) error {
	_ = w.Protector.Disable(ctx)
	w.publishStatus(ctx, task.StatusEnvelope{
		Type: task.StatusError, Mandate: te.Mandate, CorrelationID: te.CorrelationID,
		Seq: w.seq.Add(1), Ts: w.Now().Unix(), Error: runErr.Error(),
	})
	w.dropSnapshot(ctx, te.CorrelationID, w.Logger.With("correlation_id", te.CorrelationID))
	return envelope.Ack()
}

// dropSnapshot removes a completed mandate's saved dag state; only in-flight
// mandates need to survive a redelivery.
func (w *Worker) dropSnapshot(ctx context.Context, correlationID string, logger *slog.Logger) {
	if w.Snapshots == nil {
		return
	}
	if err := w.Snapshots.Delete(ctx, correlationID); err != nil {
		logger.Warn("worker: dag snapshot cleanup failed", "error", err)
	}
}

func (w *Worker) publishStatus(ctx context.Context, env task.StatusEnvelope) {
	data, err := json.Marshal(env)
	if err != nil {
		w.Logger.Error("worker: failed to marshal status envelope", "error", err)
		return
	}
	if err := w.Broker.Publish(ctx, w.StatusSubject, data); err != nil {
		w.Logger.Error("worker: failed to publish status envelope", "error", err, "type", env.Type)
	}
}

func countDeliverables(dag *dagmodel.IdeaDag) int {
	return len(collectDeliverables(dag))
}

// collectDeliverables mirrors the raw-material gathering the engine's own
// final synthesis does, so mid-run status updates report a consistent count.
func collectDeliverables(dag *dagmodel.IdeaDag) []string {
	var out []string
	dag.WalkDepthFirst(func(n *dagmodel.IdeaNode) {
		if n.IsMergeNode() {
			if v, ok := n.Details[dagmodel.DetailMergedResults]; ok {
				out = append(out, fmt.Sprintf("%v", v))
			}
			return
		}
		if v, ok := n.Details[dagmodel.DetailActionResult]; ok {
			out = append(out, fmt.Sprintf("%v", v))
		}
	})
	return out
}
