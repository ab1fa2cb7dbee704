package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Registry tracks the single in-flight mandate this worker owns and exposes
// cancellation by correlation id, narrowed to the worker's one-engine-in-flight
// contract.
type Registry struct {
	mu     sync.Mutex
	active map[string]*tracked

	cancellations metric.Int64Counter
	tracer        trace.Tracer
}

type tracked struct {
	cancel context.CancelFunc
	reason string
	at     time.Time
}

// NewRegistry constructs a cancellation registry for one worker process.
func NewRegistry() *Registry {
	meter := otel.GetMeterProvider().Meter("agentmind.worker")
	cancellations, _ := meter.Int64Counter("agentmind_worker_cancellations_total")
	return &Registry{
		active:        make(map[string]*tracked),
		cancellations: cancellations,
		tracer:        otel.Tracer("agentmind-worker-cancellation"),
	}
}

// Register wraps parent with a cancel func and tracks it under correlationID.
func (r *Registry) Register(correlationID string, parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	r.mu.Lock()
	r.active[correlationID] = &tracked{cancel: cancel}
	r.mu.Unlock()
	return ctx
}

// Cancel triggers cancellation for correlationID. The three triggers are a
// broker cancel message, process shutdown, and tick budget exhaustion.
func (r *Registry) Cancel(ctx context.Context, correlationID, reason string) error {
	ctx, span := r.tracer.Start(ctx, "worker.cancellation.cancel",
		trace.WithAttributes(attribute.String("correlation_id", correlationID), attribute.String("reason", reason)))
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.active[correlationID]
	if !ok {
		return fmt.Errorf("worker: no active execution for correlation id %s", correlationID)
	}

	t.cancel()
	t.reason = reason
	t.at = time.Now()

	r.cancellations.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	return nil
}

// Complete stops tracking correlationID once the worker has finished it.
func (r *Registry) Complete(correlationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.active[correlationID]; ok {
		t.cancel()
		delete(r.active, correlationID)
	}
}

// CancelAll cancels every tracked execution, used on process shutdown.
func (r *Registry) CancelAll(ctx context.Context, reason string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, t := range r.active {
		t.cancel()
		t.reason = reason
		t.at = time.Now()
		n++
		delete(r.active, id)
	}
	if n > 0 {
		r.cancellations.Add(ctx, int64(n), metric.WithAttributes(attribute.String("reason", reason)))
	}
	return n
}
