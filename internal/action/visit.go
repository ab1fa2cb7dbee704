package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/swarmguard/agentmind/internal/dagmodel"
	ioclients "github.com/swarmguard/agentmind/internal/io"
)

// VisitExecutor implements the VISIT leaf action.
type VisitExecutor struct {
	Client *ioclients.FetchClient
}

// Validate implements Executor.
func (e VisitExecutor) Validate(node *dagmodel.IdeaNode) error {
	u, ok := node.Details[dagmodel.DetailURL]
	if !ok {
		return fmt.Errorf("action: VISIT requires %s", dagmodel.DetailURL)
	}
	if s, ok := u.(string); !ok || s == "" {
		return fmt.Errorf("action: VISIT url must be a non-empty string")
	}
	return nil
}

// Execute implements Executor.
func (e VisitExecutor) Execute(ctx context.Context, node *dagmodel.IdeaNode) Result {
	if err := e.Validate(node); err != nil {
		return Result{Success: false, Retryable: false, Error: err.Error()}
	}

	url, _ := node.Details[dagmodel.DetailURL].(string)

	page, err := e.Client.Visit(ctx, url)
	if err != nil {
		retryable := !errors.Is(err, ioclients.ErrPermanent)
		return Result{Success: false, Retryable: retryable, Error: err.Error()}
	}

	return Result{
		Success: true,
		Payload: dagmodel.Details{
			dagmodel.DetailActionResult: map[string]any{
				"content": page.Content, "url": page.URL, "title": page.Title,
			},
		},
	}
}
