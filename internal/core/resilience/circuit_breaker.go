package resilience

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

type bucket struct {
	successes int
	failures  int
}

type slidingWindow struct {
	buckets    []bucket
	bucketDur  time.Duration
	cursor     int
	lastRotate time.Time
}

func newSlidingWindow(window time.Duration, numBuckets int) *slidingWindow {
	return &slidingWindow{
		buckets:    make([]bucket, numBuckets),
		bucketDur:  window / time.Duration(numBuckets),
		lastRotate: time.Now(),
	}
}

func (w *slidingWindow) rotateIfNeeded(now time.Time) {
	elapsed := now.Sub(w.lastRotate)
	steps := int(elapsed / w.bucketDur)
	if steps <= 0 {
		return
	}
	if steps > len(w.buckets) {
		steps = len(w.buckets)
	}
	for i := 0; i < steps; i++ {
		w.cursor = (w.cursor + 1) % len(w.buckets)
		w.buckets[w.cursor] = bucket{}
	}
	w.lastRotate = now
}

func (w *slidingWindow) record(success bool) {
	w.rotateIfNeeded(time.Now())
	if success {
		w.buckets[w.cursor].successes++
	} else {
		w.buckets[w.cursor].failures++
	}
}

func (w *slidingWindow) totals() (successes, failures int) {
	w.rotateIfNeeded(time.Now())
	for _, b := range w.buckets {
		successes += b.successes
		failures += b.failures
	}
	return
}

// CircuitBreaker is an adaptive failure-rate breaker over a sliding window.
type CircuitBreaker struct {
	mu sync.Mutex

	window           *slidingWindow
	minSamples       int
	failureRateOpen  float64
	halfOpenAfter    time.Duration
	maxHalfOpenProbe int

	st              state
	dynamicThresh   float64
	openedAt        time.Time
	halfOpenProbes  int

	openCounter metric.Int64Counter
}

// NewCircuitBreakerAdaptive constructs a breaker over window split into buckets,
// requiring minSamples before it can trip, opening at failureRateOpen, probing
// half-open after halfOpenAfter with at most maxHalfOpenProbes concurrent probes.
func NewCircuitBreakerAdaptive(name string, window time.Duration, buckets, minSamples int, failureRateOpen float64, halfOpenAfter time.Duration, maxHalfOpenProbes int) *CircuitBreaker {
	meter := otel.GetMeterProvider().Meter("agentmind.resilience")
	counter, _ := meter.Int64Counter("agentmind_circuit_open_transitions_total",
		metric.WithDescription("circuit breaker open transitions"))

	return &CircuitBreaker{
		window:           newSlidingWindow(window, buckets),
		minSamples:       minSamples,
		failureRateOpen:  failureRateOpen,
		halfOpenAfter:    halfOpenAfter,
		maxHalfOpenProbe: maxHalfOpenProbes,
		dynamicThresh:    failureRateOpen,
		openCounter:      counter,
	}
}

// Allow reports whether a call may proceed under the breaker's current state.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.st {
	case stateClosed:
		return true
	case stateOpen:
		if time.Since(cb.openedAt) >= cb.halfOpenAfter {
			cb.st = stateHalfOpen
			cb.halfOpenProbes = 0
		} else {
			return false
		}
		fallthrough
	case stateHalfOpen:
		if cb.halfOpenProbes >= cb.maxHalfOpenProbe {
			return false
		}
		cb.halfOpenProbes++
		return true
	}
	return true
}

// RecordResult feeds the outcome of a call back into the breaker.
func (cb *CircuitBreaker) RecordResult(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.window.record(success)

	if cb.st == stateHalfOpen {
		if success {
			cb.reset()
		} else {
			cb.transitionToOpen()
		}
		return
	}

	successes, failures := cb.window.totals()
	total := successes + failures
	if total < cb.minSamples {
		return
	}

	rate := float64(failures) / float64(total)
	cb.dynamicThresh = cb.dynamicThresh*0.9 + rate*0.1

	if cb.st == stateClosed && rate >= cb.failureRateOpen {
		cb.transitionToOpen()
	}
}

func (cb *CircuitBreaker) transitionToOpen() {
	cb.st = stateOpen
	cb.openedAt = time.Now()
	if cb.openCounter != nil {
		cb.openCounter.Add(context.Background(), 1)
	}
}

func (cb *CircuitBreaker) reset() {
	cb.st = stateClosed
	cb.window = newSlidingWindow(cb.window.bucketDur*time.Duration(len(cb.window.buckets)), len(cb.window.buckets))
}
