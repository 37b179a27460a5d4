package main

import (
	"fmt"
	"io"

	"triage/cli/internal/diag"
	"triage/cli/internal/issues"
	"triage/cli/internal/pipeline"
)

// writeHuman writes one line per remaining issue (file:line  severity
// analyzer  message), a count line, and the verdict line.
func writeHuman(w io.Writer, out pipeline.Outcome, st diag.Styles) error {
	for _, r := range out.Results {
		for _, iss := range r.Issues {
			if _, err := fmt.Fprintf(w, "%s  %s  %s  %s\n", location(iss), iss.Severity, r.AnalyzerID, iss.Message); err != nil {
				return err
			}
		}
	}
	n := issues.CountIssues(out.Results)
	if n == 1 {
		if _, err := fmt.Fprintln(w, "1 issue remaining."); err != nil {
			return err
		}
	} else {
		if _, err := fmt.Fprintf(w, "%d issues remaining.\n", n); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%s score %.1f: %s\n", diag.VerdictLabel(out.Verdict.Failed, st), out.Score, out.Verdict.Reason)
	return err
}

func location(iss issues.Issue) string {
	if iss.Location == nil {
		return "-"
	}
	return fmt.Sprintf("%s:%d", iss.Location.File, iss.Location.Line)
}
