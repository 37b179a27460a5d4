// Package ignore applies the project-wide ignore_errors rules: per analyzer
// id, a list of rules whose matching issues are always dropped.
package ignore

import (
	"fmt"
	"sort"

	"triage/cli/internal/diag"
	"triage/cli/internal/issues"
	"triage/cli/internal/recompute"
	"triage/cli/internal/rules"
)

// AllIgnoredMessage replaces a result's message when every issue was ignored.
const AllIgnoredMessage = "All issues were ignored via configuration"

// Rules maps analyzer ids to their compiled rule sets.
type Rules map[string]rules.Set

// Compile validates raw ignore_errors configuration and builds the rule sets
// in one pass. known lists the analyzer ids that ran; nil disables the
// unknown-id check. Invalid entries are reported as warnings and left out.
// Warnings are ordered by analyzer id, then rule position.
func Compile(raw map[string]any, known []string) (Rules, []diag.Warning) {
	var knownSet map[string]struct{}
	if known != nil {
		knownSet = make(map[string]struct{}, len(known))
		for _, id := range known {
			knownSet[id] = struct{}{}
		}
	}

	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make(Rules, len(raw))
	var warnings []diag.Warning
	for _, id := range ids {
		if knownSet != nil {
			if _, ok := knownSet[id]; !ok {
				warnings = append(warnings, diag.Warnf(diag.SourceConfig, id, "no analyzer with this id; its rules have no effect"))
			}
		}
		entries, ok := asList(raw[id])
		if !ok {
			warnings = append(warnings, diag.Warnf(diag.SourceConfig, id, "rule set must be a list of rules (got %s); ignored", rules.Describe(raw[id])))
			continue
		}
		if len(entries) == 0 {
			warnings = append(warnings, diag.Warnf(diag.SourceConfig, id, "empty rule list has no effect and can be removed"))
			continue
		}
		set := make(rules.Set, 0, len(entries))
		for i, entry := range entries {
			r, problems, valid := rules.Parse(entry)
			for _, p := range problems {
				warnings = append(warnings, diag.Warnf(diag.SourceConfig, id, "rule #%d: %s", i+1, p))
			}
			if valid {
				set = append(set, r)
			}
		}
		if len(set) > 0 {
			out[id] = set
		}
	}
	return out, warnings
}

// Validate runs the same checks as Compile and returns only the warnings.
func Validate(raw map[string]any, known []string) []diag.Warning {
	_, warnings := Compile(raw, known)
	return warnings
}

// Filter drops issues matched by the rules configured for each result's
// analyzer. Results for analyzers without rules are returned unchanged.
// The input slice and its results are not modified.
func Filter(results []issues.Result, set Rules) []issues.Result {
	out := make([]issues.Result, len(results))
	for i, r := range results {
		rs := set[r.AnalyzerID]
		if len(rs) == 0 {
			out[i] = r
			continue
		}
		out[i], _ = recompute.Drop(r, rs.Matches, AllIgnoredMessage)
	}
	return out
}

// Count returns the number of compiled rules across all analyzers.
func (r Rules) Count() int {
	n := 0
	for _, s := range r {
		n += len(s)
	}
	return n
}

// String summarizes r for debug logs.
func (r Rules) String() string {
	return fmt.Sprintf("%d rule(s) for %d analyzer(s)", r.Count(), len(r))
}

func asList(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case []map[string]any:
		out := make([]any, len(x))
		for i, m := range x {
			out[i] = m
		}
		return out, true
	default:
		return nil, false
	}
}
