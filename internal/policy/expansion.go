package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/swarmguard/agentmind/internal/dagmodel"
)

// ideaPayload is the wire shape the expansion prompt asks the LLM to emit.
type ideaPayload struct {
	Title  string `json:"title"`
	Action string `json:"action,omitempty"`
	Query  string `json:"query,omitempty"`
	URL    string `json:"url,omitempty"`
	Prompt string `json:"prompt,omitempty"`
}

var allowedActions = map[string]bool{
	string(dagmodel.ActionSearch): true,
	string(dagmodel.ActionVisit):  true,
	string(dagmodel.ActionThink):  true,
	string(dagmodel.ActionSave):   true,
}

// DefaultExpansion formats the path-to-node plus recent errors into a prompt and
// asks the LLM for a JSON array of candidate ideas, capped to MaxChildren.
type DefaultExpansion struct {
	Scorer   Scorer
	Settings Settings
}

// Expand implements Expansion.
func (e DefaultExpansion) Expand(ctx context.Context, dag *dagmodel.IdeaDag, node *dagmodel.IdeaNode) ([]dagmodel.ExpansionIdea, error) {
	prompt := e.buildPrompt(dag, node)

	out, err := e.Scorer.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("policy: expansion call failed: %w", err)
	}

	payloads, err := parseIdeaPayloads(out)
	if err != nil {
		return nil, fmt.Errorf("policy: expansion returned malformed ideas: %w", err)
	}
	if len(payloads) == 0 {
		return nil, fmt.Errorf("policy: expansion returned no ideas")
	}

	max := e.Settings.MaxChildren
	if max > 0 && len(payloads) > max {
		payloads = payloads[:max]
	}

	ideas := make([]dagmodel.ExpansionIdea, 0, len(payloads))
	for _, p := range payloads {
		details := dagmodel.Details{}
		if p.Action != "" && allowedActions[strings.ToUpper(p.Action)] {
			details[dagmodel.DetailAction] = dagmodel.ActionType(strings.ToUpper(p.Action))
			switch strings.ToUpper(p.Action) {
			case string(dagmodel.ActionSearch):
				details[dagmodel.DetailQuery] = p.Query
			case string(dagmodel.ActionVisit):
				details[dagmodel.DetailURL] = p.URL
			case string(dagmodel.ActionThink):
				details[dagmodel.DetailText] = p.Prompt
			}
		}
		ideas = append(ideas, dagmodel.ExpansionIdea{Title: p.Title, Details: details})
	}
	return ideas, nil
}

func (e DefaultExpansion) buildPrompt(dag *dagmodel.IdeaDag, node *dagmodel.IdeaNode) string {
	var path []string
	cur := node
	for cur != nil {
		path = append([]string{cur.Title}, path...)
		if cur.ParentID == nil {
			break
		}
		next, err := dag.Node(*cur.ParentID)
		if err != nil {
			break
		}
		cur = next
	}

	var recentErrors []string
	for _, cid := range node.Children {
		child, err := dag.Node(cid)
		if err != nil {
			continue
		}
		if v, ok := child.Details[dagmodel.DetailActionError]; ok {
			recentErrors = append(recentErrors, fmt.Sprintf("%v", v))
		}
	}

	return fmt.Sprintf(
		"Path: %s\nRecent errors: %s\nPropose up to %d concrete sub-ideas as a JSON array of "+
			"objects with fields title, and optionally action (one of SEARCH, VISIT, THINK, SAVE) "+
			"with its matching query/url/prompt field. Leaf ideas must set action; further-decomposable "+
			"ideas must omit it. Reply with only the JSON array.",
		strings.Join(path, " > "), strings.Join(recentErrors, "; "), e.Settings.MaxChildren)
}

func parseIdeaPayloads(text string) ([]ideaPayload, error) {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON array found in response")
	}
	var payloads []ideaPayload
	if err := json.Unmarshal([]byte(text[start:end+1]), &payloads); err != nil {
		return nil, err
	}
	return payloads, nil
}
