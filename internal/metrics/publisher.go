// Package metrics implements the queue-depth sidecar publisher: it samples
// the broker's backlog every P seconds and emits it both as an OTel gauge
// (for observability) and into a short-lived store (so the autoscaler can
// read it back without its own broker connection).
package metrics

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/swarmguard/agentmind/internal/io"
)

// QueueDepthSource is the narrow capability the publisher needs from the
// broker: the backlog of one durable consumer.
type QueueDepthSource interface {
	QueueDepth(ctx context.Context, stream, durable string) (int, error)
}

// Store is the namespace-scoped key/value capability the publisher needs to
// persist a sample for later read-back. Satisfied structurally by
// internal/store's redis-backed cache, matching internal/policy.Cache's shape.
type Store interface {
	Set(ctx context.Context, namespace, key string, value string) error
}

// SampleNamespace groups queue-depth read-backs so the autoscaler's store
// reads never collide with memoization or rate-limit keys.
const SampleNamespace = "queue_depth"

// Publisher samples Broker's backlog on Stream/Durable every Interval and
// publishes the result under QueueName.
type Publisher struct {
	Broker    QueueDepthSource
	Store     Store
	Stream    string
	Durable   string
	QueueName string
	Interval  time.Duration
	Logger    *slog.Logger

	gauge metric.Int64Gauge
}

// NewPublisher wires OTel instruments on a meter named service (gauge
// "agentmind_queue_depth") and returns a ready-to-run Publisher.
func NewPublisher(broker QueueDepthSource, store Store, service, stream, durable, queueName string, interval time.Duration) *Publisher {
	meter := otel.GetMeterProvider().Meter(service)
	gauge, _ := meter.Int64Gauge("agentmind_queue_depth",
		metric.WithDescription("Backlog of a JetStream durable consumer, sampled periodically."))

	if interval <= 0 {
		interval = 5 * time.Second
	}

	return &Publisher{
		Broker:    broker,
		Store:     store,
		Stream:    stream,
		Durable:   durable,
		QueueName: queueName,
		Interval:  interval,
		Logger:    slog.Default(),
		gauge:     gauge,
	}
}

// SampleOnce takes one depth reading, records it as a gauge observation, and
// persists it for the autoscaler's controller to read back. Errors are
// returned to the caller; the cron-driven caller logs them rather than retrying.
func (p *Publisher) SampleOnce(ctx context.Context) (int, error) {
	depth, err := p.Broker.QueueDepth(ctx, p.Stream, p.Durable)
	if err != nil {
		return 0, err
	}

	p.gauge.Record(ctx, int64(depth), metric.WithAttributes(
		attribute.String("queue_name", p.QueueName),
	))

	if err := p.Store.Set(ctx, SampleNamespace, p.QueueName, strconv.Itoa(depth)); err != nil {
		return depth, err
	}

	return depth, nil
}

// Run registers a cron job that samples every Interval until ctx is
// cancelled (cron.New(cron.WithSeconds()), AddFunc("@every ..."), graceful Stop).
func (p *Publisher) Run(ctx context.Context) error {
	c := cron.New(cron.WithSeconds())
	spec := "@every " + p.Interval.String()

	_, err := c.AddFunc(spec, func() {
		if _, err := p.SampleOnce(ctx); err != nil {
			p.Logger.Warn("metrics: queue depth sample failed", "error", err, "queue", p.QueueName)
		}
	})
	if err != nil {
		return err
	}

	c.Start()
	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	return ctx.Err()
}
