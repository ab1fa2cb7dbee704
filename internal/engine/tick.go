package engine

import (
	"context"

	"github.com/swarmguard/agentmind/internal/action"
	"github.com/swarmguard/agentmind/internal/dagmodel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func (e *Engine) stepExpansion(ctx context.Context, dag *dagmodel.IdeaDag, node *dagmodel.IdeaNode, tickIndex int) error {
	ideas, err := e.Policies.Expansion.Expand(ctx, dag, node)
	if err != nil {
		dag.UpdateStatus(node.NodeID, dagmodel.StatusFailed)
		dag.UpdateDetails(node.NodeID, dagmodel.Details{dagmodel.DetailActionError: err.Error()})
		e.recordEvent(tickIndex, "expansion_failed", map[string]any{"node_id": node.NodeID, "error": err.Error()})
		return nil
	}

	created, err := dag.Expand(node.NodeID, ideas)
	if err != nil {
		return err
	}

	var ids []string
	for _, c := range created {
		ids = append(ids, c.NodeID)
	}
	scores, err := e.Policies.Evaluation.EvaluateBatch(ctx, dag, node, ids)
	if err == nil {
		for id, score := range scores {
			dag.Evaluate(id, score)
		}
	}

	dag.UpdateStatus(node.NodeID, dagmodel.StatusActive)
	e.recordEvent(tickIndex, "expanded", map[string]any{"node_id": node.NodeID, "children": ids})
	return nil
}

func (e *Engine) stepAction(ctx context.Context, dag *dagmodel.IdeaDag, node *dagmodel.IdeaNode, tickIndex int) error {
	actionType := node.Action()
	namespace := e.Settings.MemoNamespacePrefix + string(actionType)

	if e.Policies.Memoization != nil {
		if key, ok := e.Policies.Memoization.Key(node); ok {
			if cached, found, _ := e.Policies.Memoization.ShouldReuse(ctx, namespace, key); found {
				dag.UpdateDetails(node.NodeID, cached)
				dag.UpdateStatus(node.NodeID, dagmodel.StatusDone)
				e.recordEvent(tickIndex, "memo_hit", map[string]any{"node_id": node.NodeID})
				e.propagateFailure(dag, node)
				return nil
			}
		}
	}

	executor, ok := e.Registry.Lookup(actionType)
	if !ok {
		dag.UpdateStatus(node.NodeID, dagmodel.StatusFailed)
		dag.UpdateDetails(node.NodeID, dagmodel.Details{dagmodel.DetailActionError: "no executor registered for action"})
		return nil
	}

	attempts := intDetail(node, dagmodel.DetailActionAttempts) + 1
	dag.UpdateDetails(node.NodeID, dagmodel.Details{dagmodel.DetailActionAttempts: attempts})
	dag.UpdateStatus(node.NodeID, dagmodel.StatusActive)

	result := executor.Execute(ctx, node)
	if e.actionCount != nil {
		e.actionCount.Add(ctx, 1, metric.WithAttributes(
			attribute.String("action", string(actionType)),
			attribute.Bool("success", result.Success),
		))
	}

	maxRetries := e.Settings.ActionMaxRetries

	if result.Success {
		dag.UpdateDetails(node.NodeID, result.Payload)
		dag.UpdateStatus(node.NodeID, dagmodel.StatusDone)

		if e.Policies.Memoization != nil {
			if key, ok := e.Policies.Memoization.Key(node); ok {
				merged := node.Details.Merge(result.Payload)
				e.Policies.Memoization.Store(ctx, namespace, key, merged)
			}
		}

		e.recordEvent(tickIndex, "action_succeeded", map[string]any{"node_id": node.NodeID, "action": string(actionType)})
		e.propagateFailure(dag, node)
		return nil
	}

	dag.UpdateDetails(node.NodeID, dagmodel.Details{
		dagmodel.DetailActionError:     result.Error,
		dagmodel.DetailActionRetryable: result.Retryable,
	})

	switch {
	case !result.Retryable:
		dag.UpdateStatus(node.NodeID, dagmodel.StatusFailed)
		e.recordEvent(tickIndex, "action_failed", map[string]any{"node_id": node.NodeID, "error": result.Error})
	case attempts < maxRetries:
		cooldownUntil := e.Now().Add(action.Backoff(attempts, e.Settings.ActionRetryBackoffSteps)).Unix()
		dag.UpdateStatus(node.NodeID, dagmodel.StatusBlocked)
		dag.UpdateDetails(node.NodeID, dagmodel.Details{dagmodel.DetailActionCooldownUntil: cooldownUntil})
		e.recordEvent(tickIndex, "action_blocked", map[string]any{"node_id": node.NodeID, "attempts": attempts})
	default:
		dag.UpdateStatus(node.NodeID, dagmodel.StatusFailed)
		e.recordEvent(tickIndex, "action_exhausted", map[string]any{"node_id": node.NodeID, "attempts": attempts})
	}

	e.propagateFailure(dag, node)
	return nil
}

func (e *Engine) stepMerge(ctx context.Context, dag *dagmodel.IdeaDag, node *dagmodel.IdeaNode, tickIndex int) error {
	merge, err := e.Policies.Merge.CreateMergeNode(ctx, dag, node)
	if err != nil {
		return err
	}

	if err := e.Policies.Merge.MergeResults(dag, merge, true); err != nil {
		return err
	}
	dag.UpdateStatus(merge.NodeID, dagmodel.StatusDone)

	e.recordEvent(tickIndex, "merged", map[string]any{"node_id": node.NodeID, "merge_id": merge.NodeID})
	return nil
}

// propagateFailure marks a parent FAILED once all of its children have
// settled and produced zero DONE and zero BLOCKED outcomes between them.
func (e *Engine) propagateFailure(dag *dagmodel.IdeaDag, changed *dagmodel.IdeaNode) {
	parentID := changed.ParentID
	if parentID == nil {
		return
	}
	parent, err := dag.Node(*parentID)
	if err != nil || parent.Status.Terminal() {
		return
	}
	if len(parent.Children) == 0 {
		return
	}

	success, blocked, total := 0, 0, 0
	for _, cid := range parent.Children {
		child, err := dag.Node(cid)
		if err != nil {
			continue
		}
		if !child.Status.Terminal() {
			return
		}
		total++
		switch child.Status {
		case dagmodel.StatusDone:
			success++
		case dagmodel.StatusBlocked:
			blocked++
		}
	}

	if total > 0 && success == 0 && blocked == 0 {
		dag.UpdateStatus(parent.NodeID, dagmodel.StatusFailed)
		dag.UpdateDetails(parent.NodeID, dagmodel.Details{dagmodel.DetailMergeFailure: "all children failed"})
		e.propagateFailure(dag, parent)
	}
}

func intDetail(node *dagmodel.IdeaNode, key dagmodel.DetailKey) int {
	v, ok := node.Details[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

