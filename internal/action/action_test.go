package action

import (
	"testing"
	"time"

	"github.com/swarmguard/agentmind/internal/dagmodel"
)

func TestSearchExecutorValidateRequiresQuery(t *testing.T) {
	e := SearchExecutor{}
	node := &dagmodel.IdeaNode{Details: dagmodel.Details{}}
	if err := e.Validate(node); err == nil {
		t.Fatal("expected error for missing query")
	}

	node.Details[dagmodel.DetailQuery] = "pandas diet"
	if err := e.Validate(node); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestVisitExecutorValidateRequiresURL(t *testing.T) {
	e := VisitExecutor{}
	node := &dagmodel.IdeaNode{Details: dagmodel.Details{}}
	if err := e.Validate(node); err == nil {
		t.Fatal("expected error for missing url")
	}
}

func TestSaveExecutorValidateRequiresDocuments(t *testing.T) {
	e := SaveExecutor{}
	node := &dagmodel.IdeaNode{Details: dagmodel.Details{}}
	if err := e.Validate(node); err == nil {
		t.Fatal("expected error for missing documents")
	}

	node.Details[dagmodel.DetailDocuments] = []string{"a", "b"}
	if err := e.Validate(node); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	r.Register(dagmodel.ActionSearch, SearchExecutor{})

	if _, ok := r.Lookup(dagmodel.ActionSearch); !ok {
		t.Fatal("expected SEARCH executor registered")
	}
	if _, ok := r.Lookup(dagmodel.ActionVisit); ok {
		t.Fatal("expected no VISIT executor registered")
	}
}

func TestBackoffGrowsExponentiallyAndCaps(t *testing.T) {
	first := Backoff(1, 5)
	second := Backoff(2, 5)
	if second <= first {
		t.Fatalf("backoff should grow: attempt1=%v attempt2=%v", first, second)
	}

	capped := Backoff(20, 5)
	if capped > 5*time.Minute {
		t.Fatalf("backoff should cap at 5m, got %v", capped)
	}
}
