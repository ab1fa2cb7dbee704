// Package policy implements the idea DAG's pluggable strategies: expansion,
// evaluation, selection, decomposition, merge, and memoization. Each is a narrow
// interface, composed rather than inherited, so the engine never depends on a
// concrete policy implementation.
package policy

import (
	"context"

	"github.com/swarmguard/agentmind/internal/dagmodel"
)

// Settings is the flat parameter map every policy reads from; it never mutates
// mid-mandate.
type Settings struct {
	MaxChildren            int
	MaxDepth               int
	DecompositionThreshold float64
	AllowUnscoredSelection bool
	MinScoreThreshold      float64
	EnableRecursiveMerge   bool
}

// Expansion produces candidate child ideas for a node being decomposed.
type Expansion interface {
	Expand(ctx context.Context, dag *dagmodel.IdeaDag, node *dagmodel.IdeaNode) ([]dagmodel.ExpansionIdea, error)
}

// Evaluation scores one node, or a batch of sibling candidates.
type Evaluation interface {
	Evaluate(ctx context.Context, dag *dagmodel.IdeaDag, node *dagmodel.IdeaNode) (float64, error)
	EvaluateBatch(ctx context.Context, dag *dagmodel.IdeaDag, parent *dagmodel.IdeaNode, ids []string) (map[string]float64, error)
}

// Selection picks the next child to descend into under parent.
type Selection interface {
	Select(dag *dagmodel.IdeaDag, parent *dagmodel.IdeaNode) (*dagmodel.IdeaNode, error)
}

// Decomposition decides whether node should be expanded further.
type Decomposition interface {
	ShouldDecompose(dag *dagmodel.IdeaDag, node *dagmodel.IdeaNode) bool
}

// Merge owns the expansion->merge closure: readiness, creation, synthesis, and
// failure propagation.
type Merge interface {
	AreChildrenReadyToMerge(dag *dagmodel.IdeaDag, node *dagmodel.IdeaNode) bool
	ShouldCreateMergeNode(dag *dagmodel.IdeaDag, node *dagmodel.IdeaNode) bool
	CreateMergeNode(ctx context.Context, dag *dagmodel.IdeaDag, parent *dagmodel.IdeaNode) (*dagmodel.IdeaNode, error)
	MergeResults(dag *dagmodel.IdeaDag, node *dagmodel.IdeaNode, recursive bool) error
}

// Memoization maps a node to an optional cache key and mediates reuse.
type Memoization interface {
	Key(node *dagmodel.IdeaNode) (string, bool)
	ShouldReuse(ctx context.Context, namespace, key string) (dagmodel.Details, bool, error)
	Store(ctx context.Context, namespace, key string, result dagmodel.Details) error
}

// Set bundles all six policies for injection into the engine.
type Set struct {
	Expansion     Expansion
	Evaluation    Evaluation
	Selection     Selection
	Decomposition Decomposition
	Merge         Merge
	Memoization   Memoization
}
