package dagmodel

// BranchPair is the derived (expansion, merge) view for one decomposition step.
type BranchPair struct {
	ExpansionID string
	MergeID     *string
}

// branchComplete reports whether the branch's merge child exists and is DONE.
func (d *IdeaDag) branchComplete(bp BranchPair) bool {
	if bp.MergeID == nil {
		return false
	}
	merge, err := d.Node(*bp.MergeID)
	if err != nil {
		return false
	}
	return merge.Status == StatusDone
}

// NeedsMerge reports whether an expansion node has ≥1 children, all terminal, and
// no MERGE child yet.
func (d *IdeaDag) NeedsMerge(expansionID string) bool {
	n, err := d.Node(expansionID)
	if err != nil || len(n.Children) == 0 {
		return false
	}
	for _, cid := range n.Children {
		child, err := d.Node(cid)
		if err != nil {
			return false
		}
		if child.IsMergeNode() {
			return false
		}
		if !child.Status.Terminal() {
			return false
		}
	}
	return true
}

// BranchFor builds the BranchPair view for expansionID, locating its MERGE child if any.
func (d *IdeaDag) BranchFor(expansionID string) (BranchPair, error) {
	n, err := d.Node(expansionID)
	if err != nil {
		return BranchPair{}, err
	}
	bp := BranchPair{ExpansionID: expansionID}
	for _, cid := range n.Children {
		child, err := d.Node(cid)
		if err != nil {
			continue
		}
		if child.IsMergeNode() {
			id := cid
			bp.MergeID = &id
			break
		}
	}
	return bp, nil
}
