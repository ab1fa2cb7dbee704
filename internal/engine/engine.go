// Package engine implements the per-tick scheduler (C4): target selection,
// classify-and-act, merge creation, failure propagation, and final synthesis.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/swarmguard/agentmind/internal/action"
	"github.com/swarmguard/agentmind/internal/dagmodel"
	"github.com/swarmguard/agentmind/internal/policy"
	"github.com/swarmguard/agentmind/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Settings mirrors policy.Settings plus the action retry knobs the engine
// itself owns.
type Settings struct {
	policy.Settings
	ActionMaxRetries        int
	ActionRetryBackoffSteps int
	MemoNamespacePrefix     string
}

// Synthesizer produces the final deliverable regardless of success.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (deliverable, summary string, err error)
}

// Engine drives one mandate's IdeaDag to a terminal state or tick budget.
type Engine struct {
	Policies   policy.Set
	Registry   *action.Registry
	Synth      Synthesizer
	Telemetry  *telemetry.Recorder
	Settings   Settings
	Now        func() time.Time

	tickDuration metric.Float64Histogram
	actionCount  metric.Int64Counter
}

// New constructs an Engine, wiring OTel instruments for per-tick and
// per-action recording.
func New(policies policy.Set, registry *action.Registry, synth Synthesizer, rec *telemetry.Recorder, settings Settings) *Engine {
	meter := otel.GetMeterProvider().Meter("agentmind.engine")
	tickDuration, _ := meter.Float64Histogram("agentmind_engine_tick_duration_ms")
	actionCount, _ := meter.Int64Counter("agentmind_engine_actions_total")

	now := time.Now
	return &Engine{
		Policies: policies, Registry: registry, Synth: synth, Telemetry: rec,
		Settings: settings, Now: now,
		tickDuration: tickDuration, actionCount: actionCount,
	}
}

// Outcome is what Run returns: {final_deliverable, action_summary, history, notes}.
type Outcome struct {
	FinalDeliverable string
	ActionSummary    string
	History          []telemetry.Event
	Notes            string
	Success          bool
	Benchmark        telemetry.BenchmarkResult
}

// Run drives dag to terminal state or maxTicks, then always runs final synthesis.
func (e *Engine) Run(ctx context.Context, dag *dagmodel.IdeaDag, mandate string, maxTicks int) (Outcome, error) {
	return e.RunWithProgress(ctx, dag, mandate, maxTicks, nil)
}

// RunWithProgress is Run plus an optional onTick hook invoked after every
// completed tick, letting a caller (the worker loop) emit a per-tick
// in_progress status envelope without re-implementing the scheduling loop.
func (e *Engine) RunWithProgress(ctx context.Context, dag *dagmodel.IdeaDag, mandate string, maxTicks int, onTick func(tickIndex int, dag *dagmodel.IdeaDag)) (Outcome, error) {
	tick := 0
	for tick < maxTicks {
		root := dag.Root()
		if root.Status == dagmodel.StatusDone || root.Status == dagmodel.StatusFailed {
			break
		}
		if ctx.Err() != nil {
			break
		}

		start := e.Now()
		if err := e.Step(ctx, dag, tick); err != nil {
			return Outcome{}, fmt.Errorf("engine: tick %d: %w", tick, err)
		}
		e.tickDuration.Record(ctx, float64(e.Now().Sub(start).Milliseconds()))
		tick++

		if onTick != nil {
			onTick(tick, dag)
		}
	}

	return e.synthesize(ctx, dag, mandate, tick)
}

// Step performs exactly one unit of progress on exactly one node. It is
// idempotent on no-op ticks.
func (e *Engine) Step(ctx context.Context, dag *dagmodel.IdeaDag, tickIndex int) error {
	root := dag.Root()
	if root.Status.Terminal() && root.Status != dagmodel.StatusBlocked && root.Status != dagmodel.StatusSkipped {
		return nil
	}

	if freed := dag.GCTerminalBranches(); freed > 0 {
		e.recordEvent(tickIndex, "gc", map[string]any{"nodes_freed": freed})
	}

	target, err := e.pickTarget(dag)
	if err != nil {
		return err
	}
	if target == nil {
		return nil
	}

	switch {
	case e.needsMerge(dag, target):
		return e.stepMerge(ctx, dag, target, tickIndex)
	case e.needsAction(target):
		return e.stepAction(ctx, dag, target, tickIndex)
	case e.needsExpansion(dag, target):
		return e.stepExpansion(ctx, dag, target, tickIndex)
	default:
		e.recordEvent(tickIndex, "noop", map[string]any{"node_id": target.NodeID})
		return nil
	}
}

// pickTarget walks from the root applying the selection policy, preferring an
// actionable MERGE child over descent.
func (e *Engine) pickTarget(dag *dagmodel.IdeaDag) (*dagmodel.IdeaNode, error) {
	current := dag.Root()
	visited := map[string]bool{}

	for {
		if visited[current.NodeID] {
			return current, nil
		}
		visited[current.NodeID] = true

		if len(current.Children) == 0 {
			return current, nil
		}

		bp, err := dag.BranchFor(current.NodeID)
		if err != nil {
			return nil, err
		}
		if bp.MergeID != nil {
			merge, err := dag.Node(*bp.MergeID)
			if err == nil && !merge.Status.Terminal() {
				current = merge
				continue
			}
		}

		next, err := e.Policies.Selection.Select(dag, current)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return current, nil
		}
		current = next
	}
}

func (e *Engine) needsExpansion(dag *dagmodel.IdeaDag, node *dagmodel.IdeaNode) bool {
	if node.Action() != "" {
		return false
	}
	return e.Policies.Decomposition.ShouldDecompose(dag, node)
}

func (e *Engine) needsAction(node *dagmodel.IdeaNode) bool {
	if !node.IsLeafActionNode() {
		return false
	}
	switch node.Status {
	case dagmodel.StatusPending, dagmodel.StatusActive:
		return true
	case dagmodel.StatusBlocked:
		return cooldownElapsed(node, e.Now().Unix())
	default:
		return false
	}
}

func (e *Engine) needsMerge(dag *dagmodel.IdeaDag, node *dagmodel.IdeaNode) bool {
	if node.IsMergeNode() || node.Action() != "" {
		return false
	}
	return e.Policies.Merge.ShouldCreateMergeNode(dag, node)
}

func cooldownElapsed(node *dagmodel.IdeaNode, now int64) bool {
	v, ok := node.Details[dagmodel.DetailActionCooldownUntil]
	if !ok {
		return true
	}
	until, ok := v.(int64)
	if !ok {
		return true
	}
	return now >= until
}

func (e *Engine) recordEvent(tick int, event string, payload map[string]any) {
	if e.Telemetry == nil {
		return
	}
	e.Telemetry.Record(telemetry.Event{Event: event, Payload: payload, Tick: tick})
}
