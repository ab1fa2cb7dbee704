package dagmodel

import "testing"

func TestAddChildParentInvariant(t *testing.T) {
	dag := NewIdeaDag("find out what pandas eat")
	child, err := dag.AddChild(dag.RootID, "search for panda diet", Details{
		DetailAction: ActionSearch,
		DetailQuery:  "what do pandas eat",
	})
	if err != nil {
		t.Fatalf("AddChild: %v", err)
	}

	root := dag.Root()
	found := false
	for _, cid := range root.Children {
		if cid == child.NodeID {
			found = true
		}
	}
	if !found {
		t.Fatalf("child %s not in parent.Children", child.NodeID)
	}
	if child.ParentID == nil || *child.ParentID != root.NodeID {
		t.Fatalf("child.ParentID = %v, want %s", child.ParentID, root.NodeID)
	}
}

func TestAddChildRejectsUnknownDetailKey(t *testing.T) {
	dag := NewIdeaDag("mandate")
	_, err := dag.AddChild(dag.RootID, "bad", Details{"not_a_real_key": "x"})
	if err == nil {
		t.Fatal("expected error for unknown detail key")
	}
}

func TestMergeNodesRecordsAllParents(t *testing.T) {
	dag := NewIdeaDag("mandate")
	a, _ := dag.AddChild(dag.RootID, "a", Details{DetailAction: ActionThink})
	b, _ := dag.AddChild(dag.RootID, "b", Details{DetailAction: ActionThink})
	dag.UpdateStatus(a.NodeID, StatusDone)
	dag.UpdateStatus(b.NodeID, StatusDone)

	merge, err := dag.MergeNodes([]string{a.NodeID, b.NodeID}, "merge a+b")
	if err != nil {
		t.Fatalf("MergeNodes: %v", err)
	}
	if !merge.IsMergeNode() {
		t.Fatal("expected merge node")
	}
	all := merge.AllParentIDs()
	if len(all) != 2 {
		t.Fatalf("AllParentIDs = %v, want 2 entries", all)
	}

	for _, parentID := range []string{a.NodeID, b.NodeID} {
		parent, _ := dag.Node(parentID)
		found := false
		for _, cid := range parent.Children {
			if cid == merge.NodeID {
				found = true
			}
		}
		if !found {
			t.Fatalf("merge node not recorded as child of parent %s", parentID)
		}
	}
}

func TestSelectBestChildSkipsTerminalAndUnscored(t *testing.T) {
	dag := NewIdeaDag("mandate")
	low, _ := dag.AddChild(dag.RootID, "low", Details{})
	high, _ := dag.AddChild(dag.RootID, "high", Details{})
	done, _ := dag.AddChild(dag.RootID, "done", Details{})

	dag.Evaluate(low.NodeID, 0.1)
	dag.Evaluate(high.NodeID, 0.9)
	dag.Evaluate(done.NodeID, 0.99)
	dag.UpdateStatus(done.NodeID, StatusDone)

	best, err := dag.SelectBestChild(dag.RootID, true)
	if err != nil {
		t.Fatalf("SelectBestChild: %v", err)
	}
	if best == nil || best.NodeID != high.NodeID {
		t.Fatalf("SelectBestChild = %v, want %s", best, high.NodeID)
	}
}

func TestNeedsMergeRequiresAllChildrenTerminal(t *testing.T) {
	dag := NewIdeaDag("mandate")
	a, _ := dag.AddChild(dag.RootID, "a", Details{DetailAction: ActionThink})
	b, _ := dag.AddChild(dag.RootID, "b", Details{DetailAction: ActionThink})

	if dag.NeedsMerge(dag.RootID) {
		t.Fatal("should not need merge while children are PENDING")
	}

	dag.UpdateStatus(a.NodeID, StatusDone)
	if dag.NeedsMerge(dag.RootID) {
		t.Fatal("should not need merge until every child is terminal")
	}

	dag.UpdateStatus(b.NodeID, StatusFailed)
	if !dag.NeedsMerge(dag.RootID) {
		t.Fatal("should need merge once all children are terminal")
	}
}

func TestDepth(t *testing.T) {
	dag := NewIdeaDag("mandate")
	a, _ := dag.AddChild(dag.RootID, "a", Details{})
	b, _ := dag.AddChild(a.NodeID, "b", Details{})

	if got := dag.Depth(dag.RootID); got != 0 {
		t.Fatalf("root depth = %d, want 0", got)
	}
	if got := dag.Depth(a.NodeID); got != 1 {
		t.Fatalf("a depth = %d, want 1", got)
	}
	if got := dag.Depth(b.NodeID); got != 2 {
		t.Fatalf("b depth = %d, want 2", got)
	}
}

func TestRoundTripJSON(t *testing.T) {
	dag := NewIdeaDag("mandate")
	a, _ := dag.AddChild(dag.RootID, "a", Details{DetailAction: ActionThink})
	dag.Evaluate(a.NodeID, 0.5)

	data, err := dag.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}

	var out IdeaDag
	if err := out.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if out.RootID != dag.RootID {
		t.Fatalf("RootID mismatch after round trip")
	}
	restored, err := out.Node(a.NodeID)
	if err != nil {
		t.Fatalf("Node after round trip: %v", err)
	}
	if restored.Score == nil || *restored.Score != 0.5 {
		t.Fatalf("Score after round trip = %v, want 0.5", restored.Score)
	}
}

func TestGCTerminalBranchesFreesSettledSubtree(t *testing.T) {
	dag := NewIdeaDag("mandate")
	branch, _ := dag.AddChild(dag.RootID, "branch", Details{})
	leaf, _ := dag.AddChild(branch.NodeID, "leaf", Details{DetailAction: ActionThink})
	dag.UpdateStatus(leaf.NodeID, StatusDone)
	dag.UpdateStatus(branch.NodeID, StatusDone)

	freed := dag.GCTerminalBranches()
	if freed != 1 {
		t.Fatalf("freed = %d, want 1", freed)
	}
	if _, err := dag.Node(leaf.NodeID); err == nil {
		t.Fatal("expected leaf to be pruned")
	}

	// Tombstone survives: still listed under root, status preserved, children gone.
	stillBranch, err := dag.Node(branch.NodeID)
	if err != nil {
		t.Fatalf("branch tombstone missing: %v", err)
	}
	if stillBranch.Status != StatusDone {
		t.Fatalf("tombstone status = %s, want DONE", stillBranch.Status)
	}
	if len(stillBranch.Children) != 0 {
		t.Fatalf("tombstone children = %v, want empty", stillBranch.Children)
	}
}

func TestGCTerminalBranchesNoopWhenRootTerminal(t *testing.T) {
	dag := NewIdeaDag("mandate")
	branch, _ := dag.AddChild(dag.RootID, "branch", Details{})
	leaf, _ := dag.AddChild(branch.NodeID, "leaf", Details{DetailAction: ActionThink})
	dag.UpdateStatus(leaf.NodeID, StatusDone)
	dag.UpdateStatus(branch.NodeID, StatusDone)
	dag.UpdateStatus(dag.RootID, StatusDone)

	if freed := dag.GCTerminalBranches(); freed != 0 {
		t.Fatalf("freed = %d, want 0 once root is terminal", freed)
	}
	if _, err := dag.Node(leaf.NodeID); err != nil {
		t.Fatalf("leaf should survive once root is terminal: %v", err)
	}
}

func TestGCTerminalBranchesSkipsActiveBranches(t *testing.T) {
	dag := NewIdeaDag("mandate")
	branch, _ := dag.AddChild(dag.RootID, "branch", Details{})
	leaf, _ := dag.AddChild(branch.NodeID, "leaf", Details{DetailAction: ActionThink})
	dag.UpdateStatus(branch.NodeID, StatusActive)

	if freed := dag.GCTerminalBranches(); freed != 0 {
		t.Fatalf("freed = %d, want 0 for a still-active branch", freed)
	}
	if _, err := dag.Node(leaf.NodeID); err != nil {
		t.Fatalf("leaf should survive under an active branch: %v", err)
	}
}
