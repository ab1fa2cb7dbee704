package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/swarmguard/agentmind/internal/dagmodel"
	ioclients "github.com/swarmguard/agentmind/internal/io"
)

// SaveExecutor implements the SAVE leaf action.
type SaveExecutor struct {
	Client *ioclients.VectorStoreClient
}

// Validate implements Executor.
func (e SaveExecutor) Validate(node *dagmodel.IdeaNode) error {
	docs, ok := node.Details[dagmodel.DetailDocuments]
	if !ok {
		return fmt.Errorf("action: SAVE requires %s", dagmodel.DetailDocuments)
	}
	if _, ok := toStringSlice(docs); !ok {
		return fmt.Errorf("action: SAVE documents must be a string array")
	}
	return nil
}

// Execute implements Executor.
func (e SaveExecutor) Execute(ctx context.Context, node *dagmodel.IdeaNode) Result {
	if err := e.Validate(node); err != nil {
		return Result{Success: false, Retryable: false, Error: err.Error()}
	}

	docs, _ := toStringSlice(node.Details[dagmodel.DetailDocuments])
	var metadatas []any
	if m, ok := node.Details[dagmodel.DetailMetadatas]; ok {
		if ms, ok := m.([]any); ok {
			metadatas = ms
		}
	}

	ids, err := e.Client.Save(ctx, docs, metadatas)
	if err != nil {
		retryable := !errors.Is(err, ioclients.ErrPermanent)
		return Result{Success: false, Retryable: retryable, Error: err.Error()}
	}

	idPayload := make([]any, len(ids))
	for i, id := range ids {
		idPayload[i] = id
	}

	return Result{
		Success: true,
		Payload: dagmodel.Details{
			dagmodel.DetailActionResult: map[string]any{"ids": idPayload},
		},
	}
}

func toStringSlice(v any) ([]string, bool) {
	switch vv := v.(type) {
	case []string:
		return vv, true
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}
