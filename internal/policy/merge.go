package policy

import (
	"context"
	"fmt"

	"github.com/swarmguard/agentmind/internal/dagmodel"
)

// mergeSummary is the counts detail attached to a parent once merged.
type mergeSummary struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Blocked int `json:"blocked"`
	Skipped int `json:"skipped"`
}

// SimpleMergePolicy owns the expansion->merge closure.
type SimpleMergePolicy struct {
	Settings Settings
}

// AreChildrenReadyToMerge implements Merge.
func (m SimpleMergePolicy) AreChildrenReadyToMerge(dag *dagmodel.IdeaDag, node *dagmodel.IdeaNode) bool {
	if len(node.Children) == 0 {
		return false
	}
	for _, cid := range node.Children {
		child, err := dag.Node(cid)
		if err != nil || !child.Status.Terminal() {
			return false
		}
	}
	return true
}

// ShouldCreateMergeNode implements Merge.
func (m SimpleMergePolicy) ShouldCreateMergeNode(dag *dagmodel.IdeaDag, node *dagmodel.IdeaNode) bool {
	if !m.Settings.EnableRecursiveMerge {
		return false
	}
	if len(node.Children) < 2 {
		return false
	}
	for _, cid := range node.Children {
		child, err := dag.Node(cid)
		if err == nil && child.IsMergeNode() {
			return false
		}
	}
	return m.AreChildrenReadyToMerge(dag, node)
}

// CreateMergeNode folds children's results into parent.details.merged_results, then
// attaches a MERGE child pointing back to all of parent's existing children.
func (m SimpleMergePolicy) CreateMergeNode(ctx context.Context, dag *dagmodel.IdeaDag, parent *dagmodel.IdeaNode) (*dagmodel.IdeaNode, error) {
	if err := m.mergeInto(dag, parent); err != nil {
		return nil, err
	}

	childIDs := append([]string{}, parent.Children...)
	if len(childIDs) < 2 {
		return nil, fmt.Errorf("policy: merge requires >=2 children, got %d", len(childIDs))
	}

	merge, err := dag.MergeNodes(childIDs, parent.Title+" (merge)")
	if err != nil {
		return nil, err
	}
	return merge, nil
}

// MergeResults rebuilds merged_results from children; if recursive and node has a
// parent, recurses upward so completion propagates toward the root.
func (m SimpleMergePolicy) MergeResults(dag *dagmodel.IdeaDag, node *dagmodel.IdeaNode, recursive bool) error {
	if err := m.mergeInto(dag, node); err != nil {
		return err
	}
	if recursive && node.ParentID != nil {
		parent, err := dag.Node(*node.ParentID)
		if err != nil {
			return nil
		}
		return m.MergeResults(dag, parent, true)
	}
	return nil
}

func (m SimpleMergePolicy) mergeInto(dag *dagmodel.IdeaDag, node *dagmodel.IdeaNode) error {
	var results []any
	summary := mergeSummary{}

	for _, cid := range node.Children {
		child, err := dag.Node(cid)
		if err != nil {
			continue
		}
		summary.Total++
		switch child.Status {
		case dagmodel.StatusDone:
			summary.Success++
		case dagmodel.StatusFailed:
			summary.Failed++
		case dagmodel.StatusBlocked:
			summary.Blocked++
		case dagmodel.StatusSkipped:
			summary.Skipped++
		}

		results = append(results, sanitize(extractResult(child)))
	}

	if err := dag.UpdateDetails(node.NodeID, dagmodel.Details{
		dagmodel.DetailMergedResults: results,
		dagmodel.DetailMergeSummary:  summary,
	}); err != nil {
		return err
	}

	// Merge-on-failure rule: the parent gets a merge_failure detail only when
	// zero children succeeded and zero are blocked. Its status is left as is;
	// the engine's propagateFailure sets FAILED.
	if summary.Total > 0 && summary.Success == 0 && summary.Blocked == 0 {
		return dag.UpdateDetails(node.NodeID, dagmodel.Details{
			dagmodel.DetailMergeFailure: "all children failed",
		})
	}
	return nil
}

func extractResult(node *dagmodel.IdeaNode) any {
	if node.IsMergeNode() {
		if v, ok := node.Details[dagmodel.DetailMergedResults]; ok {
			return v
		}
	}
	if v, ok := node.Details[dagmodel.DetailActionResult]; ok {
		return v
	}
	return nil
}

// sanitize strips values that are not safely JSON-round-trippable (functions,
// channels) by converting them to a string fallback.
func sanitize(v any) any {
	switch v.(type) {
	case nil, bool, string, float64, int, int64, map[string]any, []any:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
