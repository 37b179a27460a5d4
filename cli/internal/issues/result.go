package issues

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status is the aggregate outcome of one analyzer run.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusWarning Status = "warning"
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

var validStatuses = map[Status]struct{}{
	StatusPassed: {}, StatusFailed: {}, StatusWarning: {}, StatusSkipped: {}, StatusError: {},
}

// UnmarshalJSON accepts any casing of a known status.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	st := Status(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := validStatuses[st]; !ok {
		return fmt.Errorf("invalid status %q", raw)
	}
	*s = st
	return nil
}

// Result is one analyzer's aggregate outcome: status, summary message and
// every issue it reported.
type Result struct {
	AnalyzerID    string         `json:"analyzer_id"`
	Status        Status         `json:"status"`
	Message       string         `json:"message"`
	Issues        []Issue        `json:"issues"`
	ExecutionTime float64        `json:"execution_time"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// WithIssues returns a copy of r carrying kept, status and message. The
// receiver is not modified and the returned issue slice is not shared with r.
// Metadata is shallow-copied so later writes to either map stay local.
func (r Result) WithIssues(kept []Issue, status Status, message string) Result {
	out := r
	out.Issues = append([]Issue(nil), kept...)
	if out.Issues == nil {
		out.Issues = []Issue{}
	}
	out.Status = status
	out.Message = message
	if r.Metadata != nil {
		out.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// IDs returns the analyzer ids of results in input order, deduplicated.
func IDs(results []Result) []string {
	seen := make(map[string]struct{}, len(results))
	out := make([]string, 0, len(results))
	for _, r := range results {
		if _, ok := seen[r.AnalyzerID]; ok {
			continue
		}
		seen[r.AnalyzerID] = struct{}{}
		out = append(out, r.AnalyzerID)
	}
	return out
}

// CountIssues returns the total number of issues across results.
func CountIssues(results []Result) int {
	n := 0
	for _, r := range results {
		n += len(r.Issues)
	}
	return n
}
