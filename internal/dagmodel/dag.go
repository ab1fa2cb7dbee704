package dagmodel

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNodeNotFound is returned when an operation references a node id that does not exist.
var ErrNodeNotFound = errors.New("dagmodel: node not found")

// ErrCycleAttempt is returned when an operation would introduce a cycle.
var ErrCycleAttempt = errors.New("dagmodel: cycle attempt")

// IdeaDag owns all nodes of one mandate's idea DAG by id, plus the root id.
type IdeaDag struct {
	RootID string
	nodes  map[string]*IdeaNode
}

// NewIdeaDag creates a DAG with a single PENDING root node for mandate.
func NewIdeaDag(mandate string) *IdeaDag {
	root := &IdeaNode{
		NodeID:  uuid.NewString(),
		Title:   mandate,
		Status:  StatusPending,
		Details: Details{},
	}
	return &IdeaDag{
		RootID: root.NodeID,
		nodes:  map[string]*IdeaNode{root.NodeID: root},
	}
}

// Node returns the node with id, or ErrNodeNotFound.
func (d *IdeaDag) Node(id string) (*IdeaNode, error) {
	n, ok := d.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return n, nil
}

// Root returns the root node.
func (d *IdeaDag) Root() *IdeaNode {
	n, _ := d.Node(d.RootID)
	return n
}

// Nodes returns all nodes, unordered.
func (d *IdeaDag) Nodes() map[string]*IdeaNode {
	return d.nodes
}

// AddChild creates a new PENDING child of parentID with title and details, and
// appends it to the parent's Children list.
func (d *IdeaDag) AddChild(parentID, title string, details Details) (*IdeaNode, error) {
	parent, err := d.Node(parentID)
	if err != nil {
		return nil, err
	}
	if details == nil {
		details = Details{}
	}
	if err := details.Validate(); err != nil {
		return nil, err
	}

	pid := parentID
	child := &IdeaNode{
		NodeID:   uuid.NewString(),
		Title:    title,
		Status:   StatusPending,
		ParentID: &pid,
		Details:  details,
	}
	d.nodes[child.NodeID] = child
	parent.Children = append(parent.Children, child.NodeID)
	return child, nil
}

// MergeNodes creates a MERGE node with parents = parentIDs, appended as a child of
// every parent; the first parent is its canonical ParentID for tree walks and the
// rest are recorded in ParentIDs.
func (d *IdeaDag) MergeNodes(parentIDs []string, title string) (*IdeaNode, error) {
	if len(parentIDs) < 2 {
		return nil, fmt.Errorf("dagmodel: merge requires >=2 parents, got %d", len(parentIDs))
	}
	for _, pid := range parentIDs {
		if _, err := d.Node(pid); err != nil {
			return nil, err
		}
	}

	primary := parentIDs[0]
	merge := &IdeaNode{
		NodeID:    uuid.NewString(),
		Title:     title,
		Status:    StatusPending,
		ParentID:  &primary,
		ParentIDs: append([]string{}, parentIDs[1:]...),
		Details:   Details{DetailAction: ActionMerge},
	}
	d.nodes[merge.NodeID] = merge

	for _, pid := range parentIDs {
		parent := d.nodes[pid]
		parent.Children = append(parent.Children, merge.NodeID)
	}
	return merge, nil
}

// UpdateStatus sets node id's status.
func (d *IdeaDag) UpdateStatus(id string, status Status) error {
	n, err := d.Node(id)
	if err != nil {
		return err
	}
	n.Status = status
	return nil
}

// UpdateDetails shallow-merges updates into node id's Details.
func (d *IdeaDag) UpdateDetails(id string, updates Details) error {
	n, err := d.Node(id)
	if err != nil {
		return err
	}
	if err := updates.Validate(); err != nil {
		return err
	}
	n.Details = n.Details.Merge(updates)
	return nil
}

// Evaluate sets node id's score.
func (d *IdeaDag) Evaluate(id string, score float64) error {
	n, err := d.Node(id)
	if err != nil {
		return err
	}
	n.Score = &score
	return nil
}

// ExpansionIdea is one candidate child produced by an expansion policy.
type ExpansionIdea struct {
	Title   string
	Details Details
	Score   *float64
}

// Expand attaches each of ideas as a PENDING child of parentID, preserving order.
func (d *IdeaDag) Expand(parentID string, ideas []ExpansionIdea) ([]*IdeaNode, error) {
	var created []*IdeaNode
	for _, idea := range ideas {
		child, err := d.AddChild(parentID, idea.Title, idea.Details)
		if err != nil {
			return created, err
		}
		if idea.Score != nil {
			child.Score = idea.Score
		}
		created = append(created, child)
	}
	return created, nil
}

// SelectBestChild returns the highest-scored non-terminal child of parent, or nil
// if none qualify. When requireScore is true, unscored children are skipped.
func (d *IdeaDag) SelectBestChild(parentID string, requireScore bool) (*IdeaNode, error) {
	parent, err := d.Node(parentID)
	if err != nil {
		return nil, err
	}

	var best *IdeaNode
	var bestScore float64
	for _, cid := range parent.Children {
		child, ok := d.nodes[cid]
		if !ok || child.Status.Terminal() {
			continue
		}
		if child.Score == nil {
			if requireScore {
				continue
			}
			if best == nil {
				best = child
				bestScore = 0
			}
			continue
		}
		if best == nil || *child.Score > bestScore {
			best = child
			bestScore = *child.Score
		}
	}
	return best, nil
}

// LeafNodes returns every node with no children, in map iteration order.
func (d *IdeaDag) LeafNodes() []*IdeaNode {
	var leaves []*IdeaNode
	for _, n := range d.nodes {
		if len(n.Children) == 0 {
			leaves = append(leaves, n)
		}
	}
	return leaves
}

// Depth returns the number of ancestor hops from the root to node id, following
// ParentID only (the canonical tree-walk parent).
func (d *IdeaDag) Depth(id string) int {
	depth := 0
	cur, err := d.Node(id)
	if err != nil {
		return 0
	}
	visited := map[string]bool{cur.NodeID: true}
	for cur.ParentID != nil {
		next, err := d.Node(*cur.ParentID)
		if err != nil || visited[next.NodeID] {
			break
		}
		visited[next.NodeID] = true
		depth++
		cur = next
	}
	return depth
}

// GCTerminalBranches drops the descendant subtree of every top-level branch
// (direct child of root) that has gone terminal while the root itself has
// not, bounding per-mandate node-map growth across mandates that spawn many
// abandoned branches before the winning one settles. The branch node itself
// is kept as a tombstone — status and details intact, Children cleared — so
// BranchFor and selection still see a terminal, non-selectable entry in
// root's child list; only the (already-merged-or-irrelevant) nodes beneath
// it are freed. Returns the number of nodes freed.
func (d *IdeaDag) GCTerminalBranches() int {
	root := d.Root()
	if root == nil || root.Status.Terminal() {
		return 0
	}

	freed := 0
	for _, cid := range root.Children {
		branch, ok := d.nodes[cid]
		if !ok || !branch.Status.Terminal() || len(branch.Children) == 0 {
			continue
		}
		freed += d.pruneDescendants(branch)
	}
	return freed
}

// pruneDescendants deletes every node reachable below node (not node itself)
// from d.nodes and clears node.Children, returning the count removed.
func (d *IdeaDag) pruneDescendants(node *IdeaNode) int {
	freed := 0
	for _, cid := range node.Children {
		child, ok := d.nodes[cid]
		if !ok {
			continue
		}
		freed += d.pruneDescendants(child)
		delete(d.nodes, cid)
		freed++
	}
	node.Children = nil
	return freed
}

// WalkDepthFirst visits every reachable node from root exactly once in depth-first order.
func (d *IdeaDag) WalkDepthFirst(visit func(*IdeaNode)) {
	visited := map[string]bool{}
	var walk func(id string)
	walk = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		n, ok := d.nodes[id]
		if !ok {
			return
		}
		visit(n)
		for _, cid := range n.Children {
			walk(cid)
		}
	}
	walk(d.RootID)
}
