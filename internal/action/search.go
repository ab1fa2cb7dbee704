package action

import (
	"context"
	"errors"
	"fmt"

	ioclients "github.com/swarmguard/agentmind/internal/io"
	"github.com/swarmguard/agentmind/internal/dagmodel"
)

// SearchExecutor implements the SEARCH leaf action.
type SearchExecutor struct {
	Client *ioclients.SearchClient
}

// Validate implements Executor.
func (e SearchExecutor) Validate(node *dagmodel.IdeaNode) error {
	q, ok := node.Details[dagmodel.DetailQuery]
	if !ok {
		return fmt.Errorf("action: SEARCH requires %s", dagmodel.DetailQuery)
	}
	if s, ok := q.(string); !ok || s == "" {
		return fmt.Errorf("action: SEARCH query must be a non-empty string")
	}
	return nil
}

// Execute implements Executor.
func (e SearchExecutor) Execute(ctx context.Context, node *dagmodel.IdeaNode) Result {
	if err := e.Validate(node); err != nil {
		return Result{Success: false, Retryable: false, Error: err.Error()}
	}

	query, _ := node.Details[dagmodel.DetailQuery].(string)
	nResults := 5
	if n, ok := node.Details[dagmodel.DetailNResults]; ok {
		if f, ok := n.(float64); ok {
			nResults = int(f)
		}
		if i, ok := n.(int); ok {
			nResults = i
		}
	}

	hits, err := e.Client.Search(ctx, query, nResults)
	if err != nil {
		retryable := !errors.Is(err, ioclients.ErrPermanent)
		return Result{Success: false, Retryable: retryable, Error: err.Error()}
	}

	hitPayload := make([]any, len(hits))
	for i, h := range hits {
		hitPayload[i] = map[string]any{"title": h.Title, "url": h.URL, "description": h.Description}
	}

	return Result{
		Success: true,
		Payload: dagmodel.Details{
			dagmodel.DetailActionResult: map[string]any{"hits": hitPayload},
		},
	}
}
