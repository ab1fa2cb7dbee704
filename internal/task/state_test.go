package task

import "testing"

func TestEnvelopeValidate(t *testing.T) {
	cases := []struct {
		name string
		env  Envelope
		ok   bool
	}{
		{"valid", Envelope{Mandate: "research X", MaxTicks: 5, CorrelationID: "c1"}, true},
		{"empty mandate", Envelope{MaxTicks: 5, CorrelationID: "c1"}, false},
		{"zero ticks", Envelope{Mandate: "m", MaxTicks: 0, CorrelationID: "c1"}, false},
		{"missing correlation id", Envelope{Mandate: "m", MaxTicks: 1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.env.Validate()
			if (err == nil) != tc.ok {
				t.Fatalf("Validate() error = %v, want ok=%v", err, tc.ok)
			}
		})
	}
}

func TestMapStatusToState(t *testing.T) {
	cases := []struct {
		in   StatusType
		want State
		ok   bool
	}{
		{StatusAccepted, StateInProgress, true},
		{StatusStarted, StateInProgress, true},
		{StatusInProgress, StateInProgress, true},
		{StatusCompleted, StateCompleted, true},
		{StatusError, StateFailed, true},
		{StatusType("bogus"), StatePending, false},
	}
	for _, tc := range cases {
		got, ok := MapStatusToState(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("MapStatusToState(%q) = (%v,%v), want (%v,%v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestCanTransitionIsForwardOnlyAndTerminalIsSticky(t *testing.T) {
	if !CanTransition(StatePending, StateInProgress) {
		t.Fatal("PENDING -> IN_PROGRESS should be allowed")
	}
	if CanTransition(StateInProgress, StatePending) {
		t.Fatal("IN_PROGRESS -> PENDING must not be allowed")
	}
	if CanTransition(StateCompleted, StateInProgress) {
		t.Fatal("terminal state must reject any further transition")
	}
	if CanTransition(StateFailed, StateCompleted) {
		t.Fatal("FAILED must not transition to COMPLETED")
	}
}

// TestApplyStatusMonotonicWithRedelivery covers a redelivered, out-of-order,
// or duplicate status: it must never regress the record.
func TestApplyStatusMonotonicWithRedelivery(t *testing.T) {
	rec := NewRecord("c1", "u1", "mandate", 10, 100)

	advanced, err := rec.ApplyStatus(StatusEnvelope{Type: StatusAccepted, CorrelationID: "c1", Mandate: "mandate", Seq: 1}, 101)
	if err != nil || !advanced {
		t.Fatalf("accepted: advanced=%v err=%v", advanced, err)
	}
	if rec.Status != StateInProgress {
		t.Fatalf("status after accepted = %s, want IN_PROGRESS", rec.Status)
	}

	advanced, err = rec.ApplyStatus(StatusEnvelope{Type: StatusInProgress, CorrelationID: "c1", Mandate: "mandate", Seq: 2, Tick: 3}, 102)
	if err != nil || !advanced {
		t.Fatalf("in_progress tick 3: advanced=%v err=%v", advanced, err)
	}
	if rec.Tick != 3 {
		t.Fatalf("tick = %d, want 3", rec.Tick)
	}

	// Redelivered duplicate of an already-applied seq must be ignored, not error.
	advanced, err = rec.ApplyStatus(StatusEnvelope{Type: StatusAccepted, CorrelationID: "c1", Mandate: "mandate", Seq: 1}, 103)
	if err != nil {
		t.Fatalf("duplicate redelivery returned error: %v", err)
	}
	if advanced {
		t.Fatal("duplicate redelivery must not advance the record")
	}
	if rec.Tick != 3 {
		t.Fatal("duplicate redelivery must not regress tick")
	}

	advanced, err = rec.ApplyStatus(StatusEnvelope{
		Type: StatusCompleted, CorrelationID: "c1", Mandate: "mandate", Seq: 3,
		Result: &Result{Success: true, FinalDeliverable: "done"},
	}, 104)
	if err != nil || !advanced {
		t.Fatalf("completed: advanced=%v err=%v", advanced, err)
	}
	if rec.Status != StateCompleted || rec.Result == nil || rec.Result.FinalDeliverable != "done" {
		t.Fatalf("unexpected final record: %+v", rec)
	}

	// Anything arriving after a terminal status is dropped, not an error: a
	// late in_progress can arrive after a timeout-driven finalization raced it.
	advanced, err = rec.ApplyStatus(StatusEnvelope{Type: StatusInProgress, CorrelationID: "c1", Mandate: "mandate", Seq: 4, Tick: 9}, 105)
	if err != nil {
		t.Fatalf("post-terminal envelope returned error: %v", err)
	}
	if advanced || rec.Tick == 9 {
		t.Fatal("post-terminal envelope must not mutate the record")
	}
}

func TestApplyStatusErrorDoesNotOverrideCompleted(t *testing.T) {
	rec := NewRecord("c1", "u1", "mandate", 10, 100)
	rec.Status = StateCompleted

	advanced, err := rec.ApplyStatus(StatusEnvelope{Type: StatusError, CorrelationID: "c1", Mandate: "mandate", Seq: 5, Error: "boom"}, 106)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if advanced {
		t.Fatal("error after COMPLETED must not advance the record")
	}
	if rec.Status != StateCompleted {
		t.Fatal("COMPLETED must remain sticky")
	}
}
