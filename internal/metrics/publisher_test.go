package metrics

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeDepthSource struct {
	depth int
	err   error
}

func (f *fakeDepthSource) QueueDepth(ctx context.Context, stream, durable string) (int, error) {
	return f.depth, f.err
}

type fakeStore struct {
	values map[string]string
	setErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: map[string]string{}}
}

func (f *fakeStore) Set(ctx context.Context, namespace, key, value string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.values[namespace+":"+key] = value
	return nil
}

func TestPublisherSampleOnceStoresDepth(t *testing.T) {
	store := newFakeStore()
	pub := NewPublisher(&fakeDepthSource{depth: 7}, store, "test-service", "MANDATES", "worker", "agent.mandates", time.Second)

	depth, err := pub.SampleOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if depth != 7 {
		t.Fatalf("expected depth 7, got %d", depth)
	}
	if got := store.values[SampleNamespace+":agent.mandates"]; got != "7" {
		t.Fatalf("expected stored value 7, got %q", got)
	}
}

func TestPublisherSampleOncePropagatesBrokerError(t *testing.T) {
	store := newFakeStore()
	wantErr := errors.New("broker unavailable")
	pub := NewPublisher(&fakeDepthSource{err: wantErr}, store, "test-service", "MANDATES", "worker", "agent.mandates", time.Second)

	_, err := pub.SampleOnce(context.Background())
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected broker error, got %v", err)
	}
	if len(store.values) != 0 {
		t.Fatalf("expected no store write on broker error")
	}
}

func TestPublisherSampleOncePropagatesStoreError(t *testing.T) {
	store := newFakeStore()
	store.setErr = errors.New("store unavailable")
	pub := NewPublisher(&fakeDepthSource{depth: 3}, store, "test-service", "MANDATES", "worker", "agent.mandates", time.Second)

	depth, err := pub.SampleOnce(context.Background())
	if err == nil {
		t.Fatalf("expected store error")
	}
	if depth != 3 {
		t.Fatalf("expected depth still returned as 3, got %d", depth)
	}
}
