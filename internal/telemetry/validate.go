package telemetry

import "regexp"

var citationPattern = regexp.MustCompile(`https?://\S+`)

// BenchmarkResult is the pass/fail verdict over one mandate's final output,
// a post-run quality gate distinct from the engine's own success/failure
// status: a mandate can reach root=DONE and still fail this gate if the
// deliverable never actually cites anything it searched or visited.
type BenchmarkResult struct {
	Passed  bool
	Reasons []string
}

// ValidateDeliverable reports whether a finished mandate's output reflects
// real search/visit activity and cites at least one source. Reasons are a
// closed set: "no_search_activity", "no_visit_activity", "insufficient_citations".
func ValidateDeliverable(deliverable, actionSummary string, counters Counters) BenchmarkResult {
	var reasons []string
	if counters.SearchActions == 0 {
		reasons = append(reasons, "no_search_activity")
	}
	if counters.VisitActions == 0 {
		reasons = append(reasons, "no_visit_activity")
	}
	if len(citationPattern.FindAllString(deliverable+" "+actionSummary, -1)) == 0 {
		reasons = append(reasons, "insufficient_citations")
	}
	return BenchmarkResult{Passed: len(reasons) == 0, Reasons: reasons}
}
