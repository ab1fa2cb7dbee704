package engine

import (
	"encoding/json"
	"fmt"
	"strings"
)

func parseSynthesisJSON(text string) (deliverable, summary string, err error) {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return "", "", fmt.Errorf("no JSON object found")
	}

	var payload struct {
		Deliverable string `json:"deliverable"`
		Summary     string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return "", "", err
	}
	return payload.Deliverable, payload.Summary, nil
}
