package store

import (
	"testing"

	"github.com/swarmguard/agentmind/internal/task"
)

func TestStateFromString(t *testing.T) {
	cases := map[string]task.State{
		"PENDING":     task.StatePending,
		"ACCEPTED":    task.StateAccepted,
		"IN_PROGRESS": task.StateInProgress,
		"COMPLETED":   task.StateCompleted,
		"FAILED":      task.StateFailed,
		"garbage":     task.StatePending,
	}
	for s, want := range cases {
		if got := stateFromString(s); got != want {
			t.Errorf("stateFromString(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestFromRecordToRecordRoundTrip(t *testing.T) {
	errMsg := "boom"
	rec := task.Record{
		CorrelationID: "corr-1",
		UserID:        "user-1",
		Mandate:       "find pandas",
		MaxTicks:      10,
		Status:        task.StateFailed,
		Tick:          3,
		Error:         &errMsg,
		Seq:           5,
		CreatedAt:     1000,
		UpdatedAt:     2000,
	}

	model := fromRecord(rec)
	got := model.toRecord()

	if got.CorrelationID != rec.CorrelationID {
		t.Errorf("correlation id: got %q, want %q", got.CorrelationID, rec.CorrelationID)
	}
	if got.UserID != rec.UserID {
		t.Errorf("user id: got %q, want %q", got.UserID, rec.UserID)
	}
	if got.Status != rec.Status {
		t.Errorf("status: got %v, want %v", got.Status, rec.Status)
	}
	if got.Tick != rec.Tick {
		t.Errorf("tick: got %d, want %d", got.Tick, rec.Tick)
	}
	if got.Error == nil || *got.Error != errMsg {
		t.Errorf("error: got %v, want %q", got.Error, errMsg)
	}
	if got.Seq != rec.Seq {
		t.Errorf("seq: got %d, want %d", got.Seq, rec.Seq)
	}
	if got.CreatedAt != rec.CreatedAt {
		t.Errorf("created_at: got %d, want %d", got.CreatedAt, rec.CreatedAt)
	}
	if got.UpdatedAt != rec.UpdatedAt {
		t.Errorf("updated_at: got %d, want %d", got.UpdatedAt, rec.UpdatedAt)
	}
}

func TestFromRecordToRecordRoundTripWithResult(t *testing.T) {
	rec := task.Record{
		CorrelationID: "corr-2",
		UserID:        "user-2",
		Mandate:       "find cats",
		MaxTicks:      5,
		Status:        task.StateCompleted,
		Result: &task.Result{
			Success:          true,
			Deliverables:     []string{"a", "b"},
			Notes:            "some notes",
			FinalDeliverable: "the final answer",
			ActionSummary:    "3 searches, 2 visits",
		},
		CreatedAt: 100,
		UpdatedAt: 200,
	}

	model := fromRecord(rec)
	got := model.toRecord()

	if got.Result == nil {
		t.Fatalf("expected non-nil result")
	}
	if got.Result.Success != true {
		t.Errorf("expected success=true")
	}
	if got.Result.Notes != rec.Result.Notes {
		t.Errorf("notes: got %q, want %q", got.Result.Notes, rec.Result.Notes)
	}
	if got.Result.FinalDeliverable != rec.Result.FinalDeliverable {
		t.Errorf("final_deliverable: got %q, want %q", got.Result.FinalDeliverable, rec.Result.FinalDeliverable)
	}
	if len(got.Result.Deliverables) != 2 || got.Result.Deliverables[0] != "a" || got.Result.Deliverables[1] != "b" {
		t.Errorf("deliverables: got %v, want [a b]", got.Result.Deliverables)
	}
}

func TestFromRecordToRecordRoundTripNoResultNoError(t *testing.T) {
	rec := task.NewRecord("corr-3", "user-3", "find dogs", 7, 50)

	model := fromRecord(rec)
	got := model.toRecord()

	if got.Result != nil {
		t.Errorf("expected nil result, got %+v", got.Result)
	}
	if got.Error != nil {
		t.Errorf("expected nil error, got %v", got.Error)
	}
	if got.Status != task.StatePending {
		t.Errorf("expected PENDING, got %v", got.Status)
	}
}
