// Package action implements the four leaf actions (SEARCH, VISIT, THINK, SAVE)
// as a capability-set registry, so new action types register without touching
// the engine's dispatch logic.
package action

import (
	"context"

	"github.com/swarmguard/agentmind/internal/dagmodel"
)

// Result is what an executor reports back to the engine.
type Result struct {
	Success   bool
	Retryable bool
	Error     string
	Payload   dagmodel.Details
}

// Executor is the capability set one concrete action variant implements:
// validate its node's inputs and execute. Executors do not fingerprint their
// inputs; the memoization key is computed by the memoization policy
// (policy.RedisMemoPolicy.Key).
type Executor interface {
	Validate(node *dagmodel.IdeaNode) error
	Execute(ctx context.Context, node *dagmodel.IdeaNode) Result
}

// Registry maps ActionType to its concrete executor.
type Registry struct {
	executors map[dagmodel.ActionType]Executor
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{executors: map[dagmodel.ActionType]Executor{}}
}

// Register associates actionType with executor.
func (r *Registry) Register(actionType dagmodel.ActionType, executor Executor) {
	r.executors[actionType] = executor
}

// Lookup returns the executor for actionType, if any.
func (r *Registry) Lookup(actionType dagmodel.ActionType) (Executor, bool) {
	e, ok := r.executors[actionType]
	return e, ok
}
