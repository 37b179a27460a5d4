package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sqlResults = `[{"analyzer_id": "sec-1", "status": "failed", "message": "Found 1 issue", "issues": [
  {"message": "SQL Injection vulnerability", "location": {"file": "/app/V.php", "line": 42}, "severity": "high"}
]}]`

type cliResult struct {
	code   int
	stdout string
	stderr string
}

// project creates a project dir with optional repo config and results file.
func project(t *testing.T, configTOML string) (dir, results string) {
	t.Helper()
	dir = t.TempDir()
	if configTOML != "" {
		if err := os.MkdirAll(filepath.Join(dir, ".triage"), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, ".triage", "config.toml"), []byte(configTOML), 0644); err != nil {
			t.Fatal(err)
		}
	}
	results = filepath.Join(dir, "results.json")
	if err := os.WriteFile(results, []byte(sqlResults), 0644); err != nil {
		t.Fatal(err)
	}
	return dir, results
}

func runIn(t *testing.T, dir, stdin string, args ...string) cliResult {
	t.Helper()
	full := append([]string{}, args...)
	full = append(full, "--dir", dir, "--global-config", filepath.Join(dir, "no-global.toml"), "--no-color")
	var out, errOut bytes.Buffer
	code := runCLI(full, strings.NewReader(stdin), &out, &errOut)
	return cliResult{code: code, stdout: out.String(), stderr: errOut.String()}
}

func TestRunCLI_help(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	if got := runCLI([]string{"--help"}, strings.NewReader(""), &out, &out); got != 0 {
		t.Errorf("runCLI(--help) = %d, want 0", got)
	}
	if !strings.Contains(out.String(), "check") || !strings.Contains(out.String(), "baseline") {
		t.Errorf("help output missing commands: %q", out.String())
	}
}

func TestCheck_ignoredIssuePasses(t *testing.T) {
	t.Parallel()
	dir, results := project(t, `
fail_on = "low"

[[ignore_errors.sec-1]]
path = "/app/V.php"
`)
	r := runIn(t, dir, "", "check", "--results", results)
	if r.code != 0 {
		t.Fatalf("exit = %d, stderr = %s", r.code, r.stderr)
	}
	var out struct {
		Results []struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"results"`
		Verdict struct {
			Failed bool `json:"failed"`
		} `json:"verdict"`
	}
	if err := json.Unmarshal([]byte(r.stdout), &out); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, r.stdout)
	}
	if len(out.Results) != 1 || out.Results[0].Status != "passed" || out.Results[0].Message != "All issues were ignored via configuration" {
		t.Errorf("results = %+v", out.Results)
	}
	if out.Verdict.Failed {
		t.Error("verdict should pass")
	}
}

func TestCheck_failOnFlag(t *testing.T) {
	t.Parallel()
	dir, results := project(t, "")
	if r := runIn(t, dir, "", "check", "--results", results, "--fail-on", "high"); r.code != 1 {
		t.Errorf("fail-on high: exit = %d, want 1", r.code)
	}
	if r := runIn(t, dir, "", "check", "--results", results, "--fail-on", "critical"); r.code != 0 {
		t.Errorf("fail-on critical: exit = %d, want 0", r.code)
	}
	r := runIn(t, dir, "", "check", "--results", results, "--fail-on", "sometimes")
	if r.code != 2 || !strings.Contains(r.stderr, "Invalid --fail-on") || !strings.Contains(r.stderr, "Details:") {
		t.Errorf("invalid fail-on: exit = %d, stderr = %q", r.code, r.stderr)
	}
}

func TestCheck_stdinAndHumanOutput(t *testing.T) {
	t.Parallel()
	dir, _ := project(t, "")
	r := runIn(t, dir, sqlResults, "check", "--results", "-", "--output", "human", "--fail-on", "high")
	if r.code != 1 {
		t.Errorf("exit = %d, want 1", r.code)
	}
	if !strings.Contains(r.stdout, "/app/V.php:42  high  sec-1  SQL Injection vulnerability") {
		t.Errorf("missing issue line: %q", r.stdout)
	}
	if !strings.Contains(r.stdout, "1 issue remaining.") || !strings.Contains(r.stdout, "FAIL score 0.0") {
		t.Errorf("missing summary: %q", r.stdout)
	}
}

func TestCheck_inputErrors(t *testing.T) {
	t.Parallel()
	dir, results := project(t, "")
	if r := runIn(t, dir, "", "check"); r.code != 2 || !strings.Contains(r.stderr, "--results") {
		t.Errorf("no input: exit = %d, stderr = %q", r.code, r.stderr)
	}
	if r := runIn(t, dir, "", "check", "--results", results, "--sarif", results); r.code != 2 {
		t.Errorf("both inputs: exit = %d, want 2", r.code)
	}
	if r := runIn(t, dir, "", "check", "--results", filepath.Join(dir, "missing.json")); r.code != 2 || !strings.Contains(r.stderr, "Could not read analyzer results.") {
		t.Errorf("missing file: exit = %d, stderr = %q", r.code, r.stderr)
	}
	if r := runIn(t, dir, "", "check", "--results", results, "--output", "xml"); r.code != 2 {
		t.Errorf("bad output: exit = %d, want 2", r.code)
	}
}

func TestCheck_warningsGoToStderr(t *testing.T) {
	t.Parallel()
	dir, results := project(t, `
[ignore_errors]
ghost = [{path = "x"}]
`)
	r := runIn(t, dir, "", "check", "--results", results)
	if r.code != 0 {
		t.Errorf("exit = %d, want 0 (warnings never fail)", r.code)
	}
	if !strings.Contains(r.stderr, "Configuration warning (1):") || !strings.Contains(r.stderr, "ignore_errors[ghost]") {
		t.Errorf("stderr = %q", r.stderr)
	}
	if strings.Contains(r.stdout, "Configuration warning") {
		t.Error("warnings block must not be mixed into stdout")
	}
}

func TestBaselineThenCheck(t *testing.T) {
	t.Parallel()
	dir, results := project(t, `fail_on = "low"
baseline_file = ".triage/baseline.json"
`)
	r := runIn(t, dir, "", "baseline", "--results", results)
	if r.code != 0 {
		t.Fatalf("baseline exit = %d, stderr = %s", r.code, r.stderr)
	}
	if !strings.Contains(r.stdout, "1 entries across 1 analyzer(s)") {
		t.Errorf("stdout = %q", r.stdout)
	}
	if _, err := os.Stat(filepath.Join(dir, ".triage", "baseline.json")); err != nil {
		t.Fatalf("baseline not written: %v", err)
	}
	if r := runIn(t, dir, "", "check", "--results", results); r.code != 0 {
		t.Errorf("check with baseline: exit = %d, stderr = %s", r.code, r.stderr)
	}
	if r := runIn(t, dir, "", "check", "--results", results, "--no-baseline"); r.code != 1 {
		t.Errorf("check --no-baseline: exit = %d, want 1", r.code)
	}
}

func TestBaseline_keepsExistingDontReport(t *testing.T) {
	t.Parallel()
	dir, results := project(t, `dont_report = ["style"]`)
	path := filepath.Join(dir, ".triage", "baseline.json")
	old := `{"generated_at": "2026-01-01T00:00:00Z", "version": "1.0.0", "errors": {}, "dont_report": ["legacy", "style"]}`
	if err := os.WriteFile(path, []byte(old), 0644); err != nil {
		t.Fatal(err)
	}
	if r := runIn(t, dir, "", "baseline", "--results", results); r.code != 0 {
		t.Fatalf("baseline exit = %d, stderr = %s", r.code, r.stderr)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		DontReport []string `json:"dont_report"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if strings.Join(doc.DontReport, ",") != "style,legacy" {
		t.Errorf("dont_report = %v, want [style legacy]", doc.DontReport)
	}
}

func TestCheck_missingBaselineIsWarning(t *testing.T) {
	t.Parallel()
	dir, results := project(t, `baseline_file = "nope.json"`)
	r := runIn(t, dir, "", "check", "--results", results)
	if r.code != 0 {
		t.Errorf("exit = %d, want 0", r.code)
	}
	if !strings.Contains(r.stderr, "baseline filtering skipped") {
		t.Errorf("stderr = %q", r.stderr)
	}
}

func TestCheck_sarifInput(t *testing.T) {
	t.Parallel()
	dir, _ := project(t, "[sarif_severity]\nwarning = \"critical\"\n")
	path := filepath.Join(dir, "out.sarif")
	doc := `{"version": "2.1.0", "runs": [{"tool": {"driver": {"name": "lint"}}, "results": [
	  {"ruleId": "r1", "level": "warning", "message": {"text": "bad"}}
	]}]}`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	if r := runIn(t, dir, "", "check", "--sarif", path); r.code != 1 {
		t.Errorf("mapped critical issue should fail: exit = %d, stderr = %s", r.code, r.stderr)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	dir, results := project(t, `
[[ignore_errors.sec-1]]
path = "a.php"
path_pattern = "*.php"
`)
	r := runIn(t, dir, "", "validate")
	if r.code != 0 || !strings.Contains(r.stderr, "path_pattern takes precedence") {
		t.Errorf("validate: exit = %d, stderr = %q", r.code, r.stderr)
	}
	if r := runIn(t, dir, "", "validate", "--strict"); r.code != 1 {
		t.Errorf("validate --strict: exit = %d, want 1", r.code)
	}
	clean, _ := project(t, "")
	if r := runIn(t, clean, "", "validate", "--results", results); r.code != 0 || !strings.Contains(r.stdout, "Configuration OK.") {
		t.Errorf("clean validate: exit = %d, stdout = %q", r.code, r.stdout)
	}
}
