package rules

import (
	"strings"
	"testing"

	"triage/cli/internal/issues"
)

func issueAt(file string, line int, msg string) issues.Issue {
	return issues.Issue{
		Message:  msg,
		Location: &issues.Location{File: file, Line: line},
		Severity: issues.SeverityHigh,
	}
}

func TestRule_SingleFieldPathMatchesAnyMessage(t *testing.T) {
	t.Parallel()
	r := MustParse(map[string]any{"path": "app/Legacy/X.php"})
	if !r.Matches(issueAt("app/Legacy/X.php", 3, "anything")) {
		t.Error("path rule should match any message at that path")
	}
	if !r.Matches(issueAt("app/Legacy/X.php", 99, "something else")) {
		t.Error("path rule should match every issue at that path")
	}
	if r.Matches(issueAt("app/Legacy/Y.php", 3, "anything")) {
		t.Error("path rule should not match other paths")
	}
}

func TestRule_PathNormalizesSeparators(t *testing.T) {
	t.Parallel()
	r := MustParse(map[string]any{"path": "app/Legacy/X.php"})
	if !r.Matches(issueAt(`app\Legacy\X.php`, 1, "m")) {
		t.Error("backslash path should match after normalization")
	}
}

func TestRule_PathPatternCrossesSeparators(t *testing.T) {
	t.Parallel()
	r := MustParse(map[string]any{"path_pattern": "app/*"})
	if !r.Matches(issueAt("app/Legacy/Deep/X.php", 1, "m")) {
		t.Error("* should match across /")
	}
	if !r.Matches(issueAt(`app\Legacy\X.php`, 1, "m")) {
		t.Error("pattern should be tested against the normalized path")
	}
	if r.Matches(issueAt("lib/app/X.php", 1, "m")) {
		t.Error("pattern is anchored at the start")
	}
}

func TestRule_PatternPrecedenceOverExact(t *testing.T) {
	t.Parallel()
	both, problems, ok := Parse(map[string]any{"path": "a.php", "path_pattern": "*.php"})
	if !ok {
		t.Fatalf("Parse: not ok: %v", problems)
	}
	if len(problems) != 1 || !strings.Contains(problems[0], "path_pattern takes precedence") {
		t.Errorf("problems = %v, want one precedence warning", problems)
	}
	patternOnly := MustParse(map[string]any{"path_pattern": "*.php"})
	for _, iss := range []issues.Issue{
		issueAt("a.php", 1, "m"),
		issueAt("b.php", 1, "m"),
		issueAt("src/c.php", 1, "m"),
		issueAt("d.go", 1, "m"),
	} {
		if both.Matches(iss) != patternOnly.Matches(iss) {
			t.Errorf("%s: combined rule = %v, pattern-only = %v", iss.File(), both.Matches(iss), patternOnly.Matches(iss))
		}
	}
}

func TestRule_MessageExactIsCaseSensitive(t *testing.T) {
	t.Parallel()
	r := MustParse(map[string]any{"message": "Unused variable"})
	if !r.Matches(issueAt("a.php", 1, "Unused variable")) {
		t.Error("exact message should match")
	}
	if r.Matches(issueAt("a.php", 1, "unused variable")) {
		t.Error("exact message must be case-sensitive")
	}
}

func TestRule_MessagePatternChecksRecommendation(t *testing.T) {
	t.Parallel()
	r := MustParse(map[string]any{"message_pattern": "*ext-intl*"})
	iss := issueAt("composer.json", 1, "Missing extension")
	if r.Matches(iss) {
		t.Fatal("message alone should not match")
	}
	iss.Recommendation = "Install ext-intl or add it to require"
	if !r.Matches(iss) {
		t.Error("message_pattern should match the recommendation text")
	}
	if MustParse(map[string]any{"message_pattern": "*EXT-INTL*"}).Matches(iss) {
		t.Error("message_pattern must be case-sensitive")
	}
}

func TestRule_AndAcrossFields(t *testing.T) {
	t.Parallel()
	r := MustParse(map[string]any{"path_pattern": "src/*", "message_pattern": "Deprecated*"})
	if !r.Matches(issueAt("src/a.php", 1, "Deprecated call")) {
		t.Error("both fields match: want match")
	}
	if r.Matches(issueAt("src/a.php", 1, "Other")) {
		t.Error("message mismatch: want no match")
	}
	if r.Matches(issueAt("lib/a.php", 1, "Deprecated call")) {
		t.Error("path mismatch: want no match")
	}
}

func TestRule_PathRuleNeverMatchesLocationless(t *testing.T) {
	t.Parallel()
	iss := issues.Issue{Message: "global problem", Severity: issues.SeverityLow}
	if MustParse(map[string]any{"path_pattern": "*"}).Matches(iss) {
		t.Error("path_pattern should not match an issue without a location")
	}
	if !MustParse(map[string]any{"message": "global problem"}).Matches(iss) {
		t.Error("message rule should match an issue without a location")
	}
}

func TestSet_MatchesIsOr(t *testing.T) {
	t.Parallel()
	s := Set{
		MustParse(map[string]any{"path": "a.php"}),
		MustParse(map[string]any{"message": "m2"}),
	}
	if !s.Matches(issueAt("a.php", 1, "x")) || !s.Matches(issueAt("b.php", 1, "m2")) {
		t.Error("any rule matching should match the set")
	}
	if s.Matches(issueAt("b.php", 1, "x")) {
		t.Error("no rule matches: want false")
	}
	if (Set{}).Matches(issueAt("a.php", 1, "x")) {
		t.Error("empty set matches nothing")
	}
}

func TestParse_invalidEntries(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		raw     any
		wantSub string
	}{
		{"string_entry", "app/X.php", "not a key-value record (got string)"},
		{"list_entry", []any{"a"}, "not a key-value record (got list)"},
		{"empty_map", map[string]any{}, "no criteria"},
		{"only_unknown", map[string]any{"file": "x"}, "no criteria"},
		{"non_string", map[string]any{"path": 3}, "path must be a string"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, problems, ok := Parse(tt.raw)
			if ok {
				t.Fatalf("Parse(%v) ok, want skipped", tt.raw)
			}
			if !r.Empty() {
				t.Error("skipped rule should be empty")
			}
			if r.Matches(issueAt("x", 1, "y")) {
				t.Error("skipped rule must never match")
			}
			if !strings.Contains(strings.Join(problems, "\n"), tt.wantSub) {
				t.Errorf("problems = %v, want substring %q", problems, tt.wantSub)
			}
		})
	}
}

func TestParse_unknownKeysWarnButKeepRule(t *testing.T) {
	t.Parallel()
	r, problems, ok := Parse(map[string]any{"path": "a.php", "reason": "legacy", "file": "x"})
	if !ok {
		t.Fatalf("Parse not ok: %v", problems)
	}
	if len(problems) != 1 || problems[0] != "unrecognized keys: file, reason" {
		t.Errorf("problems = %v", problems)
	}
	if !r.Matches(issueAt("a.php", 1, "m")) {
		t.Error("rule should still match")
	}
}

func TestParse_allowExtra(t *testing.T) {
	t.Parallel()
	_, problems, ok := Parse(map[string]any{"type": "pattern", "path": "a.php"}, "type")
	if !ok || len(problems) != 0 {
		t.Errorf("ok=%v problems=%v, want ok with no problems", ok, problems)
	}
}

func TestParse_mapAnyAny(t *testing.T) {
	t.Parallel()
	r, _, ok := Parse(map[any]any{"path": "a.php"})
	if !ok || !r.Matches(issueAt("a.php", 1, "m")) {
		t.Error("map[any]any entries should parse")
	}
}

func TestDoubleStarMisuse(t *testing.T) {
	t.Parallel()
	tests := map[string]bool{
		"**/foo.php":     false,
		"src/**":         false,
		"src/**/x.php":   false,
		"**":             false,
		"src/*.php":      false,
		"src/**.php":     true,
		"**.php":         true,
		"src**/x.php":    true,
		"a/**/b/**c.php": true,
	}
	for pat, want := range tests {
		if got := DoubleStarMisuse(pat); got != want {
			t.Errorf("DoubleStarMisuse(%q) = %v, want %v", pat, got, want)
		}
	}
}

func TestParse_doubleStarWarning(t *testing.T) {
	t.Parallel()
	_, problems, ok := Parse(map[string]any{"path_pattern": "src/**.php"})
	if !ok {
		t.Fatal("rule with ** misuse should still be usable")
	}
	if len(problems) != 1 || !strings.Contains(problems[0], "**") {
		t.Errorf("problems = %v, want ** warning", problems)
	}
}

func TestRule_String(t *testing.T) {
	t.Parallel()
	got := MustParse(map[string]any{"message": "m", "path": "p"}).String()
	if got != `{path="p" message="m"}` {
		t.Errorf("String() = %s", got)
	}
}

func TestRule_PatternsTreatOnlyStarAsWildcard(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  map[string]any
		iss  issues.Issue
		want bool
	}{
		{"brackets_literal", map[string]any{"message_pattern": "Route [login] not defined*"},
			issueAt("routes/web.php", 1, "Route [login] not defined in web.php"), true},
		{"brackets_not_class", map[string]any{"message_pattern": "Route [login] not defined*"},
			issueAt("routes/web.php", 1, "Route l not defined in web.php"), false},
		{"unclosed_bracket", map[string]any{"message_pattern": "Use of $_GET[*"},
			issueAt("a.php", 1, "Use of $_GET['id'] without validation"), true},
		{"braces_literal", map[string]any{"message_pattern": "Missing {csrf}*"},
			issueAt("a.php", 1, "Missing {csrf} token"), true},
		{"braces_not_alternation", map[string]any{"message_pattern": "Missing {csrf,xss}*"},
			issueAt("a.php", 1, "Missing csrf token"), false},
		{"question_mark_literal", map[string]any{"message_pattern": "Is it safe?"},
			issueAt("a.php", 1, "Is it safeX"), false},
		{"question_mark_matches_itself", map[string]any{"message_pattern": "Is it safe?"},
			issueAt("a.php", 1, "Is it safe?"), true},
		{"backslash_raw_path", map[string]any{"path_pattern": `app\Legacy\*`},
			issueAt(`app\Legacy\X.php`, 1, "m"), true},
		{"backslash_pattern_other_dir", map[string]any{"path_pattern": `app\Legacy\*`},
			issueAt(`app\New\X.php`, 1, "m"), false},
		{"double_star_crosses_dirs", map[string]any{"path_pattern": "src/**/*.php"},
			issueAt("src/a/b/c.php", 1, "m"), true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, problems, ok := Parse(tt.raw)
			if !ok {
				t.Fatalf("Parse(%v) rejected: %v", tt.raw, problems)
			}
			if got := r.Matches(tt.iss); got != tt.want {
				t.Errorf("Matches(%q, %q) = %v, want %v", tt.iss.File(), tt.iss.Message, got, tt.want)
			}
		})
	}
}
