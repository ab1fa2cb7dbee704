package autoscale

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
)

// DepthReader reads back the publisher's most recent queue-depth sample,
// covering the last ≤2 minutes. Satisfied structurally by internal/store's
// redis-backed cache, whose TTL on the sample key is how a stale/missing
// metric naturally falls through to the not-found branch below.
type DepthReader interface {
	Get(ctx context.Context, namespace, key string) (string, bool, error)
}

// Controller runs the every-T-seconds autoscale decision loop.
type Controller struct {
	Reader          DepthReader
	Runtime         Runtime
	QueueName       string
	Min             int
	Max             int
	TargetPerWorker int
	Interval        time.Duration
	Logger          *slog.Logger
}

// NewController applies a default 60s interval when interval is unset.
func NewController(reader DepthReader, runtime Runtime, queueName string, min, max, targetPerWorker int, interval time.Duration) *Controller {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Controller{
		Reader:          reader,
		Runtime:         runtime,
		QueueName:       queueName,
		Min:             min,
		Max:             max,
		TargetPerWorker: targetPerWorker,
		Interval:        interval,
		Logger:          slog.Default(),
	}
}

// readDepth implements controller step 1: a missing or unparseable metric
// falls back to depth=0, which Desired treats as "no reason to scale up",
// not as an error.
func (c *Controller) readDepth(ctx context.Context) int {
	raw, ok, err := c.Reader.Get(ctx, "queue_depth", c.QueueName)
	if err != nil {
		c.Logger.Warn("autoscale: metric read failed, treating as missing", "error", err, "queue", c.QueueName)
		return 0
	}
	if !ok {
		return 0
	}
	depth, err := strconv.Atoi(raw)
	if err != nil || depth < 0 {
		c.Logger.Warn("autoscale: malformed metric value, treating as missing", "value", raw, "queue", c.QueueName)
		return 0
	}
	return depth
}

// Tick runs one controller invocation: read depth, compute the target count,
// compare against current, update if different. It is a stateless
// single-shot call; serialization between overlapping invocations is left to
// the runtime, since a tick rate of 60s or more makes overlap negligible.
func (c *Controller) Tick(ctx context.Context) error {
	depth := c.readDepth(ctx)
	target := Desired(depth, c.Min, c.Max, c.TargetPerWorker)

	current, err := c.Runtime.DesiredCount(ctx)
	if err != nil {
		c.Logger.Error("autoscale: reading current desired count failed", "error", err)
		return nil
	}

	if current == target {
		return nil
	}

	if err := c.Runtime.SetDesiredCount(ctx, target); err != nil {
		c.Logger.Error("autoscale: updating desired count failed", "error", err, "from", current, "to", target)
		return nil
	}

	c.Logger.Info("autoscale: desired count changed", "depth", depth, "from", current, "to", target)
	return nil
}

// Run registers a cron job that ticks every Interval until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	cr := cron.New(cron.WithSeconds())
	spec := "@every " + c.Interval.String()

	_, err := cr.AddFunc(spec, func() {
		if err := c.Tick(ctx); err != nil {
			c.Logger.Error("autoscale: tick failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	cr.Start()
	<-ctx.Done()
	stopCtx := cr.Stop()
	<-stopCtx.Done()
	return ctx.Err()
}
