// Package issues defines the data contract between analyzers and the
// filtering pipeline: issues, their locations and severities, and the
// per-analyzer results that carry them. Values are treated as immutable once
// an analyzer has produced them; every transform returns a fresh Result.
package issues

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Severity is the severity level of an issue. Levels are ordered:
// critical > high > medium > low > info.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// ParseSeverity normalizes s (trim, lowercase) and returns the matching
// severity. Unknown values return an error.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := severityRank[sev]; !ok {
		return "", fmt.Errorf("invalid severity %q", s)
	}
	return sev, nil
}

// Rank returns the ordinal of s (info = 0 … critical = 4), or -1 if s is not a
// known severity.
func (s Severity) Rank() int {
	r, ok := severityRank[s]
	if !ok {
		return -1
	}
	return r
}

// AtLeast reports whether s is at or above min.
func (s Severity) AtLeast(min Severity) bool {
	return s.Rank() >= 0 && s.Rank() >= min.Rank()
}

// UnmarshalJSON accepts any casing of a known severity.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	sev, err := ParseSeverity(raw)
	if err != nil {
		return err
	}
	*s = sev
	return nil
}

// Location is the file and line an issue refers to.
type Location struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

// Targetable reports whether line-based suppression can apply to l.
// A nil location or a line below 1 is never targetable.
func (l *Location) Targetable() bool {
	return l != nil && l.Line >= 1
}

// Issue is a single finding produced by an analyzer.
type Issue struct {
	Message        string    `json:"message"`
	Location       *Location `json:"location,omitempty"`
	Severity       Severity  `json:"severity"`
	Recommendation string    `json:"recommendation,omitempty"`
}

// File returns the issue's file path, or "" when it has no location.
func (i Issue) File() string {
	if i.Location == nil {
		return ""
	}
	return i.Location.File
}

// Line returns the issue's line, or 0 when it has no location.
func (i Issue) Line() int {
	if i.Location == nil {
		return 0
	}
	return i.Location.Line
}
