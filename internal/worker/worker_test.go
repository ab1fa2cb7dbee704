package worker

import (
	"testing"

	"github.com/swarmguard/agentmind/internal/dagmodel"
)

func TestCollectDeliverablesGathersActionResults(t *testing.T) {
	dag := dagmodel.NewIdeaDag("find the best panda sanctuary")

	child, err := dag.AddChild(dag.RootID, "search pandas", dagmodel.Details{
		dagmodel.DetailAction: dagmodel.ActionSearch,
	})
	if err != nil {
		t.Fatalf("AddChild: %v", err)
	}
	if err := dag.UpdateDetails(child.NodeID, dagmodel.Details{
		dagmodel.DetailActionResult: "chengdu sanctuary, 4.8 stars",
	}); err != nil {
		t.Fatalf("UpdateDetails: %v", err)
	}

	deliverables := collectDeliverables(dag)
	if len(deliverables) != 1 {
		t.Fatalf("expected 1 deliverable, got %d: %v", len(deliverables), deliverables)
	}
	if deliverables[0] != "chengdu sanctuary, 4.8 stars" {
		t.Errorf("unexpected deliverable: %q", deliverables[0])
	}
}

func TestCollectDeliverablesPrefersMergedResultOverLeafDetail(t *testing.T) {
	dag := dagmodel.NewIdeaDag("compare sanctuaries")

	a, err := dag.AddChild(dag.RootID, "branch a", dagmodel.Details{
		dagmodel.DetailAction:       dagmodel.ActionSearch,
		dagmodel.DetailActionResult: "result a",
	})
	if err != nil {
		t.Fatalf("AddChild a: %v", err)
	}
	b, err := dag.AddChild(dag.RootID, "branch b", dagmodel.Details{
		dagmodel.DetailAction:       dagmodel.ActionSearch,
		dagmodel.DetailActionResult: "result b",
	})
	if err != nil {
		t.Fatalf("AddChild b: %v", err)
	}

	merged, err := dag.MergeNodes([]string{a.NodeID, b.NodeID}, "merge a+b")
	if err != nil {
		t.Fatalf("MergeNodes: %v", err)
	}
	if err := dag.UpdateDetails(merged.NodeID, dagmodel.Details{
		dagmodel.DetailMergedResults: "combined a+b",
	}); err != nil {
		t.Fatalf("UpdateDetails merge: %v", err)
	}

	deliverables := collectDeliverables(dag)

	var sawMerged bool
	for _, d := range deliverables {
		if d == "combined a+b" {
			sawMerged = true
		}
	}
	if !sawMerged {
		t.Errorf("expected merged result among deliverables, got %v", deliverables)
	}
	// The merge node itself reports only its merged summary, not its parents'
	// individual leaf results a second time, but the leaves are still walked
	// independently since they remain in the tree.
	if len(deliverables) != 3 {
		t.Fatalf("expected 3 deliverables (2 leaves + 1 merge), got %d: %v", len(deliverables), deliverables)
	}
}

func TestCollectDeliverablesEmptyForFreshDag(t *testing.T) {
	dag := dagmodel.NewIdeaDag("nothing done yet")
	deliverables := collectDeliverables(dag)
	if len(deliverables) != 0 {
		t.Errorf("expected no deliverables on a fresh dag, got %v", deliverables)
	}
}

func TestCountDeliverablesMatchesCollectLength(t *testing.T) {
	dag := dagmodel.NewIdeaDag("count check")
	child, err := dag.AddChild(dag.RootID, "search", dagmodel.Details{
		dagmodel.DetailAction: dagmodel.ActionSearch,
	})
	if err != nil {
		t.Fatalf("AddChild: %v", err)
	}
	if err := dag.UpdateDetails(child.NodeID, dagmodel.Details{
		dagmodel.DetailActionResult: "one result",
	}); err != nil {
		t.Fatalf("UpdateDetails: %v", err)
	}

	if got, want := countDeliverables(dag), len(collectDeliverables(dag)); got != want {
		t.Errorf("countDeliverables() = %d, want %d", got, want)
	}
}
