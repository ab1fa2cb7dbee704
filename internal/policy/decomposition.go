package policy

import "github.com/swarmguard/agentmind/internal/dagmodel"

// DefaultDecomposition decomposes a node further iff it has no action, is shallow
// enough, scores below threshold, and is not already fully expanded.
type DefaultDecomposition struct {
	Settings Settings
}

// ShouldDecompose implements Decomposition.
func (d DefaultDecomposition) ShouldDecompose(dag *dagmodel.IdeaDag, node *dagmodel.IdeaNode) bool {
	if node.Action() != "" {
		return false
	}
	if dag.Depth(node.NodeID) >= d.Settings.MaxDepth {
		return false
	}
	if node.Score != nil && *node.Score >= d.Settings.DecompositionThreshold {
		return false
	}
	if len(node.Children) > 0 {
		allTerminal := true
		for _, cid := range node.Children {
			child, err := dag.Node(cid)
			if err != nil || !child.Status.Terminal() {
				allTerminal = false
				break
			}
		}
		if allTerminal {
			return false
		}
	}
	return true
}
