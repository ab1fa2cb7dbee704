package policy

import "github.com/swarmguard/agentmind/internal/dagmodel"

// DefaultSelection picks the highest-scored non-terminal child, ties broken by
// insertion order. BLOCKED children are skipped until their cooldown elapses.
type DefaultSelection struct {
	Settings Settings
	Now      func() int64 // unix seconds; injected for determinism in tests
}

// Select implements Selection.
func (s DefaultSelection) Select(dag *dagmodel.IdeaDag, parent *dagmodel.IdeaNode) (*dagmodel.IdeaNode, error) {
	now := s.Now
	if now == nil {
		now = defaultNow
	}

	var best *dagmodel.IdeaNode
	var bestScore float64
	for _, cid := range parent.Children {
		child, err := dag.Node(cid)
		if err != nil {
			continue
		}
		if child.Status == dagmodel.StatusBlocked {
			if !cooldownElapsed(child, now()) {
				continue
			}
		} else if child.Status.Terminal() {
			continue
		}

		if child.Score == nil {
			if !s.Settings.AllowUnscoredSelection {
				continue
			}
			if best == nil {
				best = child
				bestScore = -1 << 62
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

func cooldownElapsed(node *dagmodel.IdeaNode, now int64) bool {
	v, ok := node.Details[dagmodel.DetailActionCooldownUntil]
	if !ok {
		return true
	}
	until, ok := v.(int64)
	if !ok {
		return true
	}
	return now >= until
}
