package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/swarmguard/agentmind/internal/dagmodel"
	ioclients "github.com/swarmguard/agentmind/internal/io"
)

// ThinkExecutor implements the THINK leaf action: a pure LLM call with no other
// external I/O.
type ThinkExecutor struct {
	Client *ioclients.LLMClient
}

// Validate implements Executor.
func (e ThinkExecutor) Validate(node *dagmodel.IdeaNode) error {
	t, ok := node.Details[dagmodel.DetailText]
	if !ok {
		return fmt.Errorf("action: THINK requires %s", dagmodel.DetailText)
	}
	if s, ok := t.(string); !ok || s == "" {
		return fmt.Errorf("action: THINK text must be a non-empty string")
	}
	return nil
}

// Execute implements Executor.
func (e ThinkExecutor) Execute(ctx context.Context, node *dagmodel.IdeaNode) Result {
	if err := e.Validate(node); err != nil {
		return Result{Success: false, Retryable: false, Error: err.Error()}
	}

	prompt, _ := node.Details[dagmodel.DetailText].(string)

	text, err := e.Client.Complete(ctx, prompt)
	if err != nil {
		retryable := !errors.Is(err, ioclients.ErrPermanent)
		return Result{Success: false, Retryable: retryable, Error: err.Error()}
	}

	return Result{
		Success: true,
		Payload: dagmodel.Details{
			dagmodel.DetailActionResult: map[string]any{"text": text},
		},
	}
}
