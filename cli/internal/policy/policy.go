// Package policy turns a filtered result collection into a binary pass/fail
// verdict.
package policy

import (
	"fmt"
	"strings"

	"triage/cli/internal/issues"
)

// Level is the fail_on setting: the lowest issue severity that fails a run.
type Level string

const (
	LevelNever    Level = "never"
	LevelCritical Level = "critical"
	LevelHigh     Level = "high"
	LevelMedium   Level = "medium"
	LevelLow      Level = "low"
)

// DefaultLevel is used when fail_on is not configured.
const DefaultLevel = LevelCritical

var levelMin = map[Level]issues.Severity{
	LevelCritical: issues.SeverityCritical,
	LevelHigh:     issues.SeverityHigh,
	LevelMedium:   issues.SeverityMedium,
	LevelLow:      issues.SeverityInfo,
}

// ParseLevel normalizes s (trim, lowercase). Empty returns DefaultLevel.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if l == "" {
		return DefaultLevel, nil
	}
	if l == LevelNever {
		return l, nil
	}
	if _, ok := levelMin[l]; !ok {
		return "", fmt.Errorf("invalid fail_on %q (want never, critical, high, medium or low)", s)
	}
	return l, nil
}

// Policy decides when a run fails. Assemble it once at the entry point.
type Policy struct {
	FailOn Level
	// FailThreshold is the minimum Score, 0..100; nil disables the check.
	FailThreshold *int
	// Denylist holds analyzer ids whose issues never fail the run. It does
	// not affect Score.
	Denylist []string
}

// Verdict is the outcome of Evaluate.
type Verdict struct {
	Failed bool   `json:"failed"`
	Reason string `json:"reason"`
}

// ExitCode returns 1 for a failed verdict, else 0.
func (v Verdict) ExitCode() int {
	if v.Failed {
		return 1
	}
	return 0
}

// Score is the percentage of passed results, 100 when there are none.
func Score(results []issues.Result) float64 {
	if len(results) == 0 {
		return 100
	}
	passed := 0
	for _, r := range results {
		if r.Status == issues.StatusPassed {
			passed++
		}
	}
	return 100 * float64(passed) / float64(len(results))
}

// Evaluate applies p to results in order: never, score threshold, failed
// results at or above fail_on, then warning results for low and medium.
func Evaluate(results []issues.Result, p Policy) Verdict {
	level := p.FailOn
	if level == "" {
		level = DefaultLevel
	}
	if level == LevelNever {
		return Verdict{Reason: "fail_on is never"}
	}
	if p.FailThreshold != nil {
		if s := Score(results); s < float64(*p.FailThreshold) {
			return Verdict{Failed: true, Reason: fmt.Sprintf("score %.1f is below fail_threshold %d", s, *p.FailThreshold)}
		}
	}

	denied := make(map[string]struct{}, len(p.Denylist))
	for _, id := range p.Denylist {
		denied[id] = struct{}{}
	}
	floor := levelMin[level]
	for _, r := range results {
		if r.Status != issues.StatusFailed {
			continue
		}
		if _, ok := denied[r.AnalyzerID]; ok {
			continue
		}
		for _, iss := range r.Issues {
			if level == LevelLow || iss.Severity.AtLeast(floor) {
				return Verdict{Failed: true, Reason: fmt.Sprintf("%s reported a %s issue (fail_on=%s)", r.AnalyzerID, iss.Severity, level)}
			}
		}
	}

	if level == LevelLow || level == LevelMedium {
		for _, r := range results {
			if r.Status != issues.StatusWarning {
				continue
			}
			if _, ok := denied[r.AnalyzerID]; ok {
				continue
			}
			for _, iss := range r.Issues {
				if level == LevelLow || iss.Severity == issues.SeverityMedium {
					return Verdict{Failed: true, Reason: fmt.Sprintf("%s warned with a %s issue (fail_on=%s)", r.AnalyzerID, iss.Severity, level)}
				}
			}
		}
	}
	return Verdict{Reason: fmt.Sprintf("no issues at or above fail_on=%s", level)}
}
