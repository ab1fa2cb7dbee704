package resilience

import (
	"context"
	"sync"
	"time"
)

// HybridRateLimiter pairs a fast token-bucket Allow path with a leaky-bucket Wait
// queue for callers willing to block for their turn.
type HybridRateLimiter struct {
	fast *RateLimiter

	mu       sync.Mutex
	queue    []chan struct{}
	leakRate time.Duration
	stopCh   chan struct{}
	stopped  bool
}

// NewHybridRateLimiter starts the background leaky-bucket worker draining the
// wait queue at one admission per leakRate.
func NewHybridRateLimiter(capacity, fillRate float64, windowDur time.Duration, maxPerWindow int, leakRate time.Duration) *HybridRateLimiter {
	h := &HybridRateLimiter{
		fast:     NewRateLimiter(capacity, fillRate, windowDur, maxPerWindow),
		leakRate: leakRate,
		stopCh:   make(chan struct{}),
	}
	go h.leakyBucketWorker()
	return h
}

// Allow is the non-blocking fast path.
func (h *HybridRateLimiter) Allow() bool {
	return h.fast.Allow()
}

// Wait blocks until admitted by the leaky-bucket queue or ctx is done.
func (h *HybridRateLimiter) Wait(ctx context.Context) error {
	ch := make(chan struct{})
	h.mu.Lock()
	h.queue = append(h.queue, ch)
	h.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AllowOrWait tries the fast path first, falling back to Wait.
func (h *HybridRateLimiter) AllowOrWait(ctx context.Context) error {
	if h.Allow() {
		return nil
	}
	return h.Wait(ctx)
}

func (h *HybridRateLimiter) leakyBucketWorker() {
	ticker := time.NewTicker(h.leakRate)
	defer ticker.Stop()
	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.mu.Lock()
			if len(h.queue) > 0 {
				next := h.queue[0]
				h.queue = h.queue[1:]
				h.mu.Unlock()
				close(next)
			} else {
				h.mu.Unlock()
			}
		}
	}
}

// Stop halts the background worker; queued waiters observe ctx cancellation instead.
func (h *HybridRateLimiter) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	h.stopped = true
	close(h.stopCh)
}
