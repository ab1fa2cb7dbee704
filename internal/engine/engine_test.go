package engine

import (
	"context"
	"testing"
	"time"

	"github.com/swarmguard/agentmind/internal/action"
	"github.com/swarmguard/agentmind/internal/dagmodel"
	"github.com/swarmguard/agentmind/internal/policy"
	"github.com/swarmguard/agentmind/internal/telemetry"
)

type noopExpansion struct{}

func (noopExpansion) Expand(context.Context, *dagmodel.IdeaDag, *dagmodel.IdeaNode) ([]dagmodel.ExpansionIdea, error) {
	return nil, nil
}

type noopEvaluation struct{}

func (noopEvaluation) Evaluate(context.Context, *dagmodel.IdeaDag, *dagmodel.IdeaNode) (float64, error) {
	return 0, nil
}
func (noopEvaluation) EvaluateBatch(context.Context, *dagmodel.IdeaDag, *dagmodel.IdeaNode, []string) (map[string]float64, error) {
	return nil, nil
}

type firstPendingSelection struct{}

func (firstPendingSelection) Select(dag *dagmodel.IdeaDag, parent *dagmodel.IdeaNode) (*dagmodel.IdeaNode, error) {
	for _, cid := range parent.Children {
		child, err := dag.Node(cid)
		if err != nil {
			continue
		}
		if child.Status == dagmodel.StatusBlocked {
			if v, ok := child.Details[dagmodel.DetailActionCooldownUntil]; ok {
				if until, ok := v.(int64); ok && until > time.Now().Unix() {
					continue
				}
			}
			return child, nil
		}
		if !child.Status.Terminal() {
			return child, nil
		}
	}
	return nil, nil
}

type noopDecomposition struct{}

func (noopDecomposition) ShouldDecompose(*dagmodel.IdeaDag, *dagmodel.IdeaNode) bool { return false }

type flakyThenSuccessExecutor struct {
	calls int
}

func (e *flakyThenSuccessExecutor) Validate(*dagmodel.IdeaNode) error { return nil }

func (e *flakyThenSuccessExecutor) Execute(context.Context, *dagmodel.IdeaNode) action.Result {
	e.calls++
	if e.calls == 1 {
		return action.Result{Success: false, Retryable: true, Error: "transient"}
	}
	return action.Result{Success: true, Payload: dagmodel.Details{
		dagmodel.DetailActionResult: map[string]any{"text": "done"},
	}}
}

type stubSynthesizer struct{}

func (stubSynthesizer) Synthesize(context.Context, SynthesisRequest) (string, string, error) {
	return "final deliverable", "summary", nil
}

func newTestEngine(executor action.Executor) *Engine {
	registry := action.NewRegistry()
	registry.Register(dagmodel.ActionThink, executor)

	rec, _ := telemetry.NewRecorder("test", "", 100)

	return New(policy.Set{
		Expansion:     noopExpansion{},
		Evaluation:    noopEvaluation{},
		Selection:     firstPendingSelection{},
		Decomposition: noopDecomposition{},
		Merge:         policy.SimpleMergePolicy{Settings: policy.Settings{EnableRecursiveMerge: true}},
	}, registry, stubSynthesizer{}, rec, Settings{ActionMaxRetries: 2, ActionRetryBackoffSteps: 3})
}

// TestRetryThenSuccess covers a flaky action that succeeds within its retry budget.
func TestRetryThenSuccess(t *testing.T) {
	executor := &flakyThenSuccessExecutor{}
	eng := newTestEngine(executor)

	dag := dagmodel.NewIdeaDag("mandate")
	node, err := dag.AddChild(dag.RootID, "think", dagmodel.Details{
		dagmodel.DetailAction: dagmodel.ActionThink,
		dagmodel.DetailText:   "ponder",
	})
	if err != nil {
		t.Fatalf("AddChild: %v", err)
	}

	if err := eng.Step(context.Background(), dag, 0); err != nil {
		t.Fatalf("tick 1: %v", err)
	}
	after1, _ := dag.Node(node.NodeID)
	if after1.Status != dagmodel.StatusBlocked {
		t.Fatalf("after tick 1, status = %s, want BLOCKED", after1.Status)
	}

	// Force the cooldown to have elapsed and the engine's clock to agree.
	dag.UpdateDetails(node.NodeID, dagmodel.Details{dagmodel.DetailActionCooldownUntil: int64(0)})
	eng.Now = func() time.Time { return time.Unix(0, 0) }

	if err := eng.Step(context.Background(), dag, 1); err != nil {
		t.Fatalf("tick 2: %v", err)
	}
	after2, _ := dag.Node(node.NodeID)
	if after2.Status != dagmodel.StatusDone {
		t.Fatalf("after tick 2, status = %s, want DONE", after2.Status)
	}
}

// TestMergeAggregation covers merging multiple completed branches into one node.
func TestMergeAggregation(t *testing.T) {
	eng := newTestEngine(&flakyThenSuccessExecutor{})
	dag := dagmodel.NewIdeaDag("mandate")

	a, _ := dag.AddChild(dag.RootID, "a", dagmodel.Details{dagmodel.DetailAction: dagmodel.ActionThink})
	b, _ := dag.AddChild(dag.RootID, "b", dagmodel.Details{dagmodel.DetailAction: dagmodel.ActionThink})
	c, _ := dag.AddChild(dag.RootID, "c", dagmodel.Details{dagmodel.DetailAction: dagmodel.ActionThink})
	dag.UpdateDetails(a.NodeID, dagmodel.Details{dagmodel.DetailActionResult: map[string]any{"text": "a"}})
	dag.UpdateDetails(b.NodeID, dagmodel.Details{dagmodel.DetailActionResult: map[string]any{"text": "b"}})
	dag.UpdateStatus(a.NodeID, dagmodel.StatusDone)
	dag.UpdateStatus(b.NodeID, dagmodel.StatusDone)
	dag.UpdateStatus(c.NodeID, dagmodel.StatusFailed)

	if err := eng.Step(context.Background(), dag, 0); err != nil {
		t.Fatalf("merge tick: %v", err)
	}

	root := dag.Root()
	var mergeChild *dagmodel.IdeaNode
	for _, branchID := range []string{a.NodeID, b.NodeID, c.NodeID} {
		branch, _ := dag.Node(branchID)
		for _, cid := range branch.Children {
			n, _ := dag.Node(cid)
			if n.IsMergeNode() {
				mergeChild = n
			}
		}
	}
	if mergeChild == nil {
		t.Fatal("expected a merge node to be created as a child of the merged branches")
	}
	summary := root.Details[dagmodel.DetailMergeSummary]
	if summary == nil {
		t.Fatal("expected merge_summary on parent")
	}
	if root.Status == dagmodel.StatusFailed {
		t.Fatal("parent should not fail when some children succeeded")
	}
}

// TestStepGarbageCollectsSettledBranches covers per-tick algorithm step 1: a
// top-level branch that has already gone terminal gets its subtree freed
// while the root itself is still in flight on a sibling branch.
func TestStepGarbageCollectsSettledBranches(t *testing.T) {
	eng := newTestEngine(&flakyThenSuccessExecutor{})
	dag := dagmodel.NewIdeaDag("mandate")

	settled, _ := dag.AddChild(dag.RootID, "settled branch", dagmodel.Details{})
	settledLeaf, _ := dag.AddChild(settled.NodeID, "settled leaf", dagmodel.Details{dagmodel.DetailAction: dagmodel.ActionThink})
	dag.UpdateStatus(settledLeaf.NodeID, dagmodel.StatusDone)
	dag.UpdateStatus(settled.NodeID, dagmodel.StatusDone)

	live, _ := dag.AddChild(dag.RootID, "live branch", dagmodel.Details{dagmodel.DetailAction: dagmodel.ActionThink})

	if err := eng.Step(context.Background(), dag, 0); err != nil {
		t.Fatalf("Step: %v", err)
	}

	if _, err := dag.Node(settledLeaf.NodeID); err == nil {
		t.Fatal("expected settled branch's leaf to be garbage-collected")
	}
	if _, err := dag.Node(settled.NodeID); err != nil {
		t.Fatalf("settled branch tombstone should survive: %v", err)
	}
	if _, err := dag.Node(live.NodeID); err != nil {
		t.Fatalf("live branch should be untouched: %v", err)
	}
}

func TestRunAlwaysProducesDeliverable(t *testing.T) {
	eng := newTestEngine(&flakyThenSuccessExecutor{calls: 1})
	dag := dagmodel.NewIdeaDag("mandate")

	outcome, err := eng.Run(context.Background(), dag, "mandate", 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.FinalDeliverable == "" {
		t.Fatal("expected a non-empty deliverable even at max_ticks=0")
	}
}
