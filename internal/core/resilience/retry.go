package resilience

import (
	"context"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	retryMeter        = otel.GetMeterProvider().Meter("agentmind.resilience")
	retryAttemptCount metric.Int64Counter
	retrySuccessCount metric.Int64Counter
	retryFailCount    metric.Int64Counter
)

func init() {
	retryAttemptCount, _ = retryMeter.Int64Counter("agentmind_retry_attempt_total")
	retrySuccessCount, _ = retryMeter.Int64Counter("agentmind_retry_success_total")
	retryFailCount, _ = retryMeter.Int64Counter("agentmind_retry_exhausted_total")
}

const maxBackoff = 60 * time.Second

// Retry invokes fn up to attempts times with exponential backoff and full jitter,
// capped at maxBackoff, respecting ctx cancellation between attempts.
func Retry[T any](ctx context.Context, name string, attempts int, base time.Duration, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		retryAttemptCount.Add(ctx, 1, metric.WithAttributes(attribute.String("op", name)))

		result, err := fn()
		if err == nil {
			retrySuccessCount.Add(ctx, 1, metric.WithAttributes(attribute.String("op", name)))
			return result, nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}

		wait := backoffDuration(base, attempt)
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait):
		}
	}

	retryFailCount.Add(ctx, 1, metric.WithAttributes(attribute.String("op", name)))
	return zero, lastErr
}

func backoffDuration(base time.Duration, attempt int) time.Duration {
	d := base << uint(attempt-1)
	if d > maxBackoff || d <= 0 {
		d = maxBackoff
	}
	return time.Duration(rand.Int63n(int64(d) + 1))
}
