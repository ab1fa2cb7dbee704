package engine

import (
	"context"
	"fmt"

	"github.com/swarmguard/agentmind/internal/dagmodel"
	"github.com/swarmguard/agentmind/internal/telemetry"
)

// SynthesisRequest is the input to the final synthesis step.
type SynthesisRequest struct {
	Mandate          string
	History          []string
	Notes            string
	Deliverables     []string
	RetrievedContext string
	TicksConsumed    int
}

// synthesize always runs, regardless of success, building a deliverable from
// whatever the root's subtree produced so far.
func (e *Engine) synthesize(ctx context.Context, dag *dagmodel.IdeaDag, mandate string, ticks int) (Outcome, error) {
	root := dag.Root()
	success := root.Status == dagmodel.StatusDone

	var deliverables []string
	var history []string
	summaryCount := map[dagmodel.Status]int{}

	dag.WalkDepthFirst(func(n *dagmodel.IdeaNode) {
		summaryCount[n.Status]++
		history = append(history, fmt.Sprintf("%s[%s]=%s", n.Title, n.Action(), n.Status))
		if n.IsMergeNode() {
			if v, ok := n.Details[dagmodel.DetailMergedResults]; ok {
				deliverables = append(deliverables, fmt.Sprintf("%v", v))
			}
		}
		if v, ok := n.Details[dagmodel.DetailActionResult]; ok {
			deliverables = append(deliverables, fmt.Sprintf("%v", v))
		}
	})

	req := SynthesisRequest{
		Mandate:       mandate,
		History:       history,
		Notes:         fmt.Sprintf("ticks_consumed=%d root_status=%s", ticks, root.Status),
		Deliverables:  deliverables,
		TicksConsumed: ticks,
	}

	deliverable, summary, err := e.Synth.Synthesize(ctx, req)
	if err != nil {
		return Outcome{}, fmt.Errorf("engine: final synthesis failed: %w", err)
	}

	actionSummary := fmt.Sprintf("done=%d failed=%d blocked=%d skipped=%d pending=%d active=%d",
		summaryCount[dagmodel.StatusDone], summaryCount[dagmodel.StatusFailed],
		summaryCount[dagmodel.StatusBlocked], summaryCount[dagmodel.StatusSkipped],
		summaryCount[dagmodel.StatusPending], summaryCount[dagmodel.StatusActive])

	e.recordEvent(ticks, "summary", map[string]any{"action_summary": actionSummary})

	bench := telemetry.ValidateDeliverable(deliverable, actionSummary, e.Telemetry.CountersSnapshot())
	e.recordEvent(ticks, "benchmark_validated", map[string]any{"passed": bench.Passed, "reasons": bench.Reasons})

	return Outcome{
		FinalDeliverable: deliverable,
		ActionSummary:    actionSummary,
		History:          e.Telemetry.Snapshot(),
		Notes:            summary,
		Success:          success,
		Benchmark:        bench,
	}, nil
}

// LLMSynthesizer implements Synthesizer via a JSON-mode LLM call, grounded on
// the same Anthropic adapter the THINK action uses.
type LLMSynthesizer struct {
	Client interface {
		JSONComplete(ctx context.Context, prompt string) (string, error)
	}
}

// Synthesize implements Synthesizer.
func (s LLMSynthesizer) Synthesize(ctx context.Context, req SynthesisRequest) (string, string, error) {
	targetWords := 50 * req.TicksConsumed
	if targetWords <= 0 {
		targetWords = 50
	}

	prompt := fmt.Sprintf(
		"Mandate: %s\nNotes: %s\nDeliverables gathered so far: %v\nWrite a JSON object "+
			"{\"deliverable\": string, \"summary\": string} where deliverable is roughly %d words "+
			"synthesizing the mandate from the gathered material.",
		req.Mandate, req.Notes, req.Deliverables, targetWords)

	out, err := s.Client.JSONComplete(ctx, prompt)
	if err != nil {
		return "", "", err
	}

	deliverable, summary, err := parseSynthesisJSON(out)
	if err != nil {
		// Fall back to the raw text rather than failing synthesis outright; the
		// engine always owes a deliverable.
		return out, "synthesis response was not valid JSON", nil
	}
	return deliverable, summary, nil
}
