package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/swarmguard/agentmind/internal/task"
)

// ErrNotFound is returned when a correlation id has no matching row visible
// to the requesting user (either absent, or hidden by row-level security).
var ErrNotFound = errors.New("store: task record not found")

// taskRecordModel is the bun model backing a task record. Row-level security
// restricts visibility to rows whose user_id matches the session's
// app.current_user_id setting, applied per request in a transaction.
type taskRecordModel struct {
	bun.BaseModel `bun:"table:task_records,alias:tr"`

	CorrelationID string         `bun:"correlation_id,pk"`
	UserID        string         `bun:"user_id"`
	Mandate       string         `bun:"mandate"`
	MaxTicks      int            `bun:"max_ticks"`
	Status        string         `bun:"status"`
	Tick          int            `bun:"tick"`
	Result        map[string]any `bun:"result,type:jsonb,nullzero"`
	Error         *string        `bun:"error,nullzero"`
	Seq           int64          `bun:"seq"`
	CreatedAt     time.Time      `bun:"created_at"`
	UpdatedAt     time.Time      `bun:"updated_at"`
}

// TaskStore is the Postgres-backed façade over TaskRecord, grounded on the
// teacher pack's bun+pgdialect+pgdriver persistence style.
type TaskStore struct {
	db *bun.DB
}

// NewTaskStore opens a connection pool against dsn.
func NewTaskStore(dsn string) *TaskStore {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return &TaskStore{db: bun.NewDB(sqldb, pgdialect.New())}
}

// InitSchema creates the table and enables row-level security, restricting
// access to rows whose user_id equals the session-local app.current_user_id.
func (s *TaskStore) InitSchema(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*taskRecordModel)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("store: create task_records: %w", err)
	}

	stmts := []string{
		`ALTER TABLE task_records ENABLE ROW LEVEL SECURITY`,
		`DROP POLICY IF EXISTS task_records_owner_only ON task_records`,
		`CREATE POLICY task_records_owner_only ON task_records
			USING (user_id = current_setting('app.current_user_id', true))
			WITH CHECK (user_id = current_setting('app.current_user_id', true))`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: apply RLS policy: %w", err)
		}
	}
	return nil
}

// withUserScope runs fn inside a transaction with app.current_user_id set for
// the duration of the transaction, so RLS policies see the caller's identity.
func (s *TaskStore) withUserScope(ctx context.Context, userID string, fn func(tx bun.Tx) error) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, "SELECT set_config('app.current_user_id', ?, true)", userID); err != nil {
			return fmt.Errorf("store: set RLS session var: %w", err)
		}
		return fn(tx)
	})
}

// Create persists a new PENDING record.
func (s *TaskStore) Create(ctx context.Context, rec task.Record) error {
	return s.withUserScope(ctx, rec.UserID, func(tx bun.Tx) error {
		model := fromRecord(rec)
		_, err := tx.NewInsert().Model(model).Exec(ctx)
		return err
	})
}

// Get returns the record for correlationID, scoped to userID by RLS.
func (s *TaskStore) Get(ctx context.Context, correlationID, userID string) (task.Record, error) {
	var rec task.Record
	err := s.withUserScope(ctx, userID, func(tx bun.Tx) error {
		model := new(taskRecordModel)
		if err := tx.NewSelect().Model(model).Where("correlation_id = ?", correlationID).Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		rec = model.toRecord()
		return nil
	})
	return rec, err
}

// GetByService returns the record for correlationID without RLS scoping,
// for use by the worker (which owns no user identity) on redelivery to check
// whether a task is already terminal. The connection must hold a role with
// BYPASSRLS or table ownership for this to see rows across all users.
func (s *TaskStore) GetByService(ctx context.Context, correlationID string) (task.Record, error) {
	model := new(taskRecordModel)
	err := s.db.NewSelect().Model(model).Where("correlation_id = ?", correlationID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return task.Record{}, ErrNotFound
		}
		return task.Record{}, err
	}
	return model.toRecord(), nil
}

// ApplyStatus loads the record, folds in env via task.Record.ApplyStatus
// (enforcing the monotonic transition and seq tie-break in Go), and writes it
// back in the same transaction — the write layer's enforcement point for
// keeping status transitions monotonic.
func (s *TaskStore) ApplyStatus(ctx context.Context, userID string, env task.StatusEnvelope, now time.Time) (task.Record, error) {
	var rec task.Record
	err := s.withUserScope(ctx, userID, func(tx bun.Tx) error {
		model := new(taskRecordModel)
		if err := tx.NewSelect().Model(model).
			Where("correlation_id = ?", env.CorrelationID).
			For("UPDATE").
			Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		rec = model.toRecord()
		advanced, err := rec.ApplyStatus(env, now.Unix())
		if err != nil {
			return fmt.Errorf("store: %w", err)
		}
		if !advanced {
			return nil
		}

		updated := fromRecord(rec)
		_, err = tx.NewUpdate().Model(updated).WherePK().Exec(ctx)
		return err
	})
	return rec, err
}

// FinalizeTimeout directly marks a record FAILED on a tick-budget timeout, the
// one gateway-initiated mutation path outside the status-envelope stream.
func (s *TaskStore) FinalizeTimeout(ctx context.Context, correlationID, userID, reason string, now time.Time) error {
	return s.withUserScope(ctx, userID, func(tx bun.Tx) error {
		model := new(taskRecordModel)
		if err := tx.NewSelect().Model(model).
			Where("correlation_id = ?", correlationID).
			For("UPDATE").
			Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		rec := model.toRecord()
		if rec.Status.Terminal() {
			return nil
		}
		rec.Status = task.StateFailed
		rec.Error = &reason
		rec.UpdatedAt = now.Unix()

		updated := fromRecord(rec)
		_, err := tx.NewUpdate().Model(updated).WherePK().Exec(ctx)
		return err
	})
}

// Ping checks database connectivity for the gateway's /health handler.
func (s *TaskStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (s *TaskStore) Close() error {
	return s.db.Close()
}

func fromRecord(rec task.Record) *taskRecordModel {
	model := &taskRecordModel{
		CorrelationID: rec.CorrelationID,
		UserID:        rec.UserID,
		Mandate:       rec.Mandate,
		MaxTicks:      rec.MaxTicks,
		Status:        rec.Status.String(),
		Tick:          rec.Tick,
		Error:         rec.Error,
		Seq:           rec.Seq,
		CreatedAt:     time.Unix(rec.CreatedAt, 0).UTC(),
		UpdatedAt:     time.Unix(rec.UpdatedAt, 0).UTC(),
	}
	if rec.Result != nil {
		model.Result = map[string]any{
			"success":           rec.Result.Success,
			"deliverables":      rec.Result.Deliverables,
			"notes":             rec.Result.Notes,
			"final_deliverable": rec.Result.FinalDeliverable,
			"action_summary":    rec.Result.ActionSummary,
		}
	}
	return model
}

func (m *taskRecordModel) toRecord() task.Record {
	rec := task.Record{
		CorrelationID: m.CorrelationID,
		UserID:        m.UserID,
		Mandate:       m.Mandate,
		MaxTicks:      m.MaxTicks,
		Status:        stateFromString(m.Status),
		Tick:          m.Tick,
		Error:         m.Error,
		Seq:           m.Seq,
		CreatedAt:     m.CreatedAt.Unix(),
		UpdatedAt:     m.UpdatedAt.Unix(),
	}
	if m.Result != nil {
		result := &task.Result{}
		if v, ok := m.Result["success"].(bool); ok {
			result.Success = v
		}
		if v, ok := m.Result["notes"].(string); ok {
			result.Notes = v
		}
		if v, ok := m.Result["final_deliverable"].(string); ok {
			result.FinalDeliverable = v
		}
		if v, ok := m.Result["action_summary"].(string); ok {
			result.ActionSummary = v
		}
		if v, ok := m.Result["deliverables"].([]any); ok {
			for _, d := range v {
				if s, ok := d.(string); ok {
					result.Deliverables = append(result.Deliverables, s)
				}
			}
		}
		rec.Result = result
	}
	return rec
}

func stateFromString(s string) task.State {
	switch s {
	case "PENDING":
		return task.StatePending
	case "ACCEPTED":
		return task.StateAccepted
	case "IN_PROGRESS":
		return task.StateInProgress
	case "COMPLETED":
		return task.StateCompleted
	case "FAILED":
		return task.StateFailed
	default:
		return task.StatePending
	}
}
