package sarif

import (
	"fmt"
	"strconv"
	"strings"

	"triage/cli/internal/issues"
)

// securitySeverityKey is the rule or result property that carries a CVSS-like
// score (0.0 to 10.0) in many security analyzers' SARIF output.
const securitySeverityKey = "security-severity"

// Options tunes ToResults.
type Options struct {
	// SeverityMapping maps SARIF levels ("error", "warning", "note", "none")
	// to issue severities, replacing the default for that level.
	SeverityMapping map[string]issues.Severity
}

var defaultLevels = map[string]issues.Severity{
	"error":   issues.SeverityHigh,
	"warning": issues.SeverityMedium,
	"note":    issues.SeverityLow,
	"none":    issues.SeverityInfo,
}

// ToResults converts each run into one analyzer result. The analyzer id is
// the driver name (lowercased), or "sarif-run-N" when the driver has none.
// A run with issues is failed; one without is passed.
func ToResults(doc *Document, opts Options) []issues.Result {
	if doc == nil {
		return nil
	}
	out := make([]issues.Result, 0, len(doc.Runs))
	for i, run := range doc.Runs {
		id := strings.ToLower(strings.TrimSpace(run.Tool.Driver.Name))
		if id == "" {
			id = fmt.Sprintf("sarif-run-%d", i+1)
		}
		rules := make(map[string]Rule, len(run.Tool.Driver.Rules))
		for _, r := range run.Tool.Driver.Rules {
			rules[r.ID] = r
		}
		found := make([]issues.Issue, 0, len(run.Results))
		for _, res := range run.Results {
			found = append(found, toIssue(res, rules[res.RuleID], opts))
		}
		r := issues.Result{
			AnalyzerID: id,
			Status:     issues.StatusPassed,
			Message:    "No issues found",
			Issues:     found,
		}
		if len(found) > 0 {
			r.Status = issues.StatusFailed
			r.Message = foundMessage(len(found))
		}
		if v := run.Tool.Driver.Version; v != "" {
			r.Metadata = map[string]any{"tool_version": v}
		}
		out = append(out, r)
	}
	return out
}

func foundMessage(n int) string {
	if n == 1 {
		return "Found 1 issue"
	}
	return fmt.Sprintf("Found %d issues", n)
}

func toIssue(res Result, rule Rule, opts Options) issues.Issue {
	msg := strings.TrimSpace(res.Message.Text)
	if res.RuleID != "" {
		msg = res.RuleID + ": " + msg
	}
	iss := issues.Issue{
		Message:  msg,
		Severity: severity(res, rule, opts),
	}
	if rule.Help != nil {
		iss.Recommendation = strings.TrimSpace(rule.Help.Text)
	}
	if len(res.Locations) > 0 {
		pl := res.Locations[0].PhysicalLocation
		if uri := strings.TrimPrefix(pl.ArtifactLocation.URI, "file://"); uri != "" {
			iss.Location = &issues.Location{File: uri, Line: pl.Region.StartLine}
		}
	}
	return iss
}

// severity prefers a security-severity score (result, then rule), then the
// configured mapping, then the default level mapping. A missing level is
// "warning", as in SARIF.
func severity(res Result, rule Rule, opts Options) issues.Severity {
	for _, props := range []map[string]any{res.Properties, rule.Properties} {
		if s, ok := fromScore(props[securitySeverityKey]); ok {
			return s
		}
	}
	level := strings.ToLower(strings.TrimSpace(res.Level))
	if level == "" {
		level = "warning"
	}
	if s, ok := opts.SeverityMapping[level]; ok {
		return s
	}
	if s, ok := defaultLevels[level]; ok {
		return s
	}
	return issues.SeverityMedium
}

// fromScore buckets a 0..10 score: >=9 critical, >=7 high, >=4 medium,
// >0 low, else info.
func fromScore(v any) (issues.Severity, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return "", false
		}
		f = p
	default:
		return "", false
	}
	switch {
	case f >= 9:
		return issues.SeverityCritical, true
	case f >= 7:
		return issues.SeverityHigh, true
	case f >= 4:
		return issues.SeverityMedium, true
	case f > 0:
		return issues.SeverityLow, true
	}
	return issues.SeverityInfo, true
}
