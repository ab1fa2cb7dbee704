package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/swarmguard/agentmind/internal/io"
	"github.com/swarmguard/agentmind/internal/store"
	"github.com/swarmguard/agentmind/internal/task"
)

// StatusSubscriber consumes the status queue and upserts task records,
// keyed by correlation id, keeping the gateway's view of each task current.
//
// The consumer has no per-request user identity, only a correlation id, so it
// cannot call the RLS-scoped TaskStore.ApplyStatus directly without first
// discovering the owning user_id. It looks that up once via GetByService (the
// same service-role bypass the worker uses for idempotent resumption) and
// then writes through the RLS-scoped path with that user_id, so row-level
// security is never bypassed for the actual mutation, only for the lookup.
type StatusSubscriber struct {
	Consumer *io.Consumer
	Store    *store.TaskStore
	Logger   *slog.Logger
	Now      func() time.Time
}

// Run consumes status envelopes until ctx is cancelled.
func (s *StatusSubscriber) Run(ctx context.Context) error {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	if s.Now == nil {
		s.Now = time.Now
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		env, err := s.Consumer.Next(ctx, 5*time.Second)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			s.Logger.Warn("gateway: status consumer fetch error", "error", err)
			continue
		}

		if err := s.handle(ctx, env); err != nil {
			s.Logger.Error("gateway: status envelope handling failed", "error", err)
		}
	}
}

func (s *StatusSubscriber) handle(ctx context.Context, envelope io.Envelope) error {
	var status task.StatusEnvelope
	if err := json.Unmarshal(envelope.Data, &status); err != nil {
		s.Logger.Error("gateway: malformed status envelope, acking to drop", "error", err)
		return envelope.Ack()
	}

	owner, err := s.Store.GetByService(ctx, status.CorrelationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.Logger.Warn("gateway: status envelope for unknown correlation id, acking to drop",
				"correlation_id", status.CorrelationID)
			return envelope.Ack()
		}
		return err
	}

	if _, err := s.Store.ApplyStatus(ctx, owner.UserID, status, s.Now()); err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, task.ErrNonMonotonic) {
			// Not found means the row vanished between lookup and write (no
			// retry fixes that); a genuine non-monotonic transition is a bug
			// upstream, not a transient fault, so retrying won't help either.
			s.Logger.Error("gateway: dropping status envelope", "error", err, "correlation_id", status.CorrelationID)
			return envelope.Ack()
		}
		return err
	}

	return envelope.Ack()
}
