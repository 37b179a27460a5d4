package sarif

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"triage/cli/internal/issues"
)

const sample = `{
  "version": "2.1.0",
  "runs": [
    {
      "tool": {"driver": {"name": "GoSec", "version": "2.0", "rules": [
        {"id": "G101", "help": {"text": "Move secrets to the environment."}, "properties": {"security-severity": "9.1"}},
        {"id": "G104"}
      ]}},
      "results": [
        {"ruleId": "G101", "level": "warning", "message": {"text": "Hardcoded credentials"},
         "locations": [{"physicalLocation": {"artifactLocation": {"uri": "file://cmd/main.go"}, "region": {"startLine": 12}}}]},
        {"ruleId": "G104", "message": {"text": "Errors unhandled"},
         "locations": [{"physicalLocation": {"artifactLocation": {"uri": "pkg/a.go"}, "region": {"startLine": 3}}}]},
        {"ruleId": "G104", "level": "note", "message": {"text": "Errors unhandled"}}
      ]
    },
    {"tool": {"driver": {"name": ""}}, "results": []}
  ]
}`

func TestRead_validAndInvalid(t *testing.T) {
	t.Parallel()
	doc, err := Read(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(doc.Runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(doc.Runs))
	}
	if _, err := Read(strings.NewReader(`{"runs": []}`)); err == nil {
		t.Error("missing version should be rejected")
	}
	if _, err := Read(strings.NewReader(`not json`)); err == nil {
		t.Error("invalid JSON should be rejected")
	}
}

func TestRead_rejectsUnusableInput(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name, input    string
		wantVersionErr bool
	}{
		{"empty", "  \n", false},
		{"missing_version", `{"runs": []}`, true},
		{"sarif_1", `{"version": "1.0.0", "runs": []}`, true},
		{"not_json", `<xml/>`, false},
	}
	for _, tt := range tests {
		_, err := Read(strings.NewReader(tt.input))
		if err == nil {
			t.Errorf("%s: expected error", tt.name)
			continue
		}
		if got := errors.Is(err, ErrUnsupportedVersion); got != tt.wantVersionErr {
			t.Errorf("%s: errors.Is(ErrUnsupportedVersion) = %v, want %v (%v)", tt.name, got, tt.wantVersionErr, err)
		}
	}
}

func TestReadFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "out.sarif")
	if err := os.WriteFile(path, []byte(sample), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFile(path); err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.sarif")); err == nil {
		t.Error("missing file should error")
	}
}

func TestToResults(t *testing.T) {
	t.Parallel()
	doc, err := Read(strings.NewReader(sample))
	if err != nil {
		t.Fatal(err)
	}
	rs := ToResults(doc, Options{})
	if len(rs) != 2 {
		t.Fatalf("results = %d, want 2", len(rs))
	}

	r := rs[0]
	if r.AnalyzerID != "gosec" || r.Status != issues.StatusFailed || r.Message != "Found 3 issues" {
		t.Errorf("first result = %+v", r)
	}
	if r.Metadata["tool_version"] != "2.0" {
		t.Errorf("metadata = %v", r.Metadata)
	}
	got := r.Issues
	if got[0].Severity != issues.SeverityCritical {
		t.Errorf("security-severity 9.1 should be critical, got %s", got[0].Severity)
	}
	if got[0].Location == nil || got[0].Location.File != "cmd/main.go" || got[0].Location.Line != 12 {
		t.Errorf("location = %+v", got[0].Location)
	}
	if got[0].Message != "G101: Hardcoded credentials" || got[0].Recommendation != "Move secrets to the environment." {
		t.Errorf("issue = %+v", got[0])
	}
	if got[1].Severity != issues.SeverityMedium {
		t.Errorf("missing level should default to warning (medium), got %s", got[1].Severity)
	}
	if got[2].Severity != issues.SeverityLow || got[2].Location != nil {
		t.Errorf("note without location = %+v", got[2])
	}

	empty := rs[1]
	if empty.AnalyzerID != "sarif-run-2" || empty.Status != issues.StatusPassed || empty.Issues == nil {
		t.Errorf("empty run = %+v", empty)
	}
}

func TestToResults_severityMapping(t *testing.T) {
	t.Parallel()
	doc := &Document{Version: "2.1.0", Runs: []Run{{
		Tool: Tool{Driver: Driver{Name: "lint"}},
		Results: []Result{
			{RuleID: "a", Level: "error", Message: Message{Text: "x"}},
			{RuleID: "b", Level: "note", Message: Message{Text: "y"}},
		},
	}}}
	rs := ToResults(doc, Options{SeverityMapping: map[string]issues.Severity{"error": issues.SeverityCritical}})
	if rs[0].Issues[0].Severity != issues.SeverityCritical {
		t.Errorf("mapped error = %s, want critical", rs[0].Issues[0].Severity)
	}
	if rs[0].Issues[1].Severity != issues.SeverityLow {
		t.Errorf("unmapped note = %s, want low", rs[0].Issues[1].Severity)
	}
}

func TestFromScore(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   any
		want issues.Severity
		ok   bool
	}{
		{9.0, issues.SeverityCritical, true},
		{"7.5", issues.SeverityHigh, true},
		{4.0, issues.SeverityMedium, true},
		{0.1, issues.SeverityLow, true},
		{"0", issues.SeverityInfo, true},
		{"high", "", false},
		{nil, "", false},
	}
	for _, tt := range tests {
		got, ok := fromScore(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("fromScore(%v) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
