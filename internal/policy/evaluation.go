package policy

import (
	"context"
	"fmt"
	"strings"

	"github.com/swarmguard/agentmind/internal/dagmodel"
)

// Scorer is the narrow LLM capability evaluation needs: given a prompt, return
// free text the policy parses for a numeric judgement. Satisfied structurally by
// internal/io's LLM client, no import required.
type Scorer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// DefaultEvaluation asks the scorer to judge how well a node's title advances its
// parent goal, parsing the response for a 0..1 score. Unparseable responses score
// a conservative 0.5 rather than failing the tick.
type DefaultEvaluation struct {
	Scorer Scorer
}

// Evaluate implements Evaluation.
func (e DefaultEvaluation) Evaluate(ctx context.Context, dag *dagmodel.IdeaDag, node *dagmodel.IdeaNode) (float64, error) {
	parentGoal := ""
	if node.ParentID != nil {
		if parent, err := dag.Node(*node.ParentID); err == nil {
			parentGoal = parent.Title
		}
	}

	prompt := fmt.Sprintf(
		"Parent goal: %q\nCandidate sub-idea: %q\nRate 0.0 to 1.0 how well the candidate advances the parent goal. Reply with only the number.",
		parentGoal, node.Title)

	out, err := e.Scorer.Complete(ctx, prompt)
	if err != nil {
		return 0, err
	}
	return parseScore(out), nil
}

// EvaluateBatch scores each id independently via Evaluate.
func (e DefaultEvaluation) EvaluateBatch(ctx context.Context, dag *dagmodel.IdeaDag, parent *dagmodel.IdeaNode, ids []string) (map[string]float64, error) {
	scores := make(map[string]float64, len(ids))
	for _, id := range ids {
		node, err := dag.Node(id)
		if err != nil {
			continue
		}
		score, err := e.Evaluate(ctx, dag, node)
		if err != nil {
			return scores, err
		}
		scores[id] = score
	}
	return scores, nil
}

func parseScore(text string) float64 {
	text = strings.TrimSpace(text)
	var whole, frac int
	var fracDigits int
	negative := false
	i := 0
	if i < len(text) && text[i] == '-' {
		negative = true
		i++
	}
	sawDigit := false
	for ; i < len(text) && text[i] >= '0' && text[i] <= '9'; i++ {
		whole = whole*10 + int(text[i]-'0')
		sawDigit = true
	}
	if i < len(text) && text[i] == '.' {
		i++
		for ; i < len(text) && text[i] >= '0' && text[i] <= '9' && fracDigits < 6; i++ {
			frac = frac*10 + int(text[i]-'0')
			fracDigits++
			sawDigit = true
		}
	}
	if !sawDigit {
		return 0.5
	}
	value := float64(whole)
	if fracDigits > 0 {
		div := 1.0
		for j := 0; j < fracDigits; j++ {
			div *= 10
		}
		value += float64(frac) / div
	}
	if negative {
		value = -value
	}
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	return value
}
