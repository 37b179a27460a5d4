// Package recompute adjusts a result's status and summary message after a
// filtering stage removed some of its issues. Every function is pure: the
// input result is never modified.
package recompute

import (
	"regexp"
	"strconv"
	"strings"

	"triage/cli/internal/issues"
)

// pluralNouns matches the first count noun that is singularized when exactly
// one issue remains.
var pluralNouns = regexp.MustCompile(`(?i)\b(issues|errors|warnings|problems|vulnerabilities)\b`)

// Message returns the summary message after a stage kept newCount of
// originalCount issues. Zero remaining returns sentinel; an unchanged count
// returns original as-is. Otherwise the first standalone occurrence of
// originalCount is replaced with newCount and, when newCount is 1, the first
// plural count noun is singularized ("Found 2 issues" -> "Found 1 issue").
func Message(original string, originalCount, newCount int, sentinel string) string {
	if newCount == 0 {
		return sentinel
	}
	if newCount == originalCount {
		return original
	}
	msg := replaceCount(original, originalCount, newCount)
	if newCount == 1 {
		msg = singularize(msg)
	}
	return msg
}

// Apply returns r with only kept issues. When nothing was removed, r itself is
// returned. When nothing remains, the status becomes passed and the message
// becomes sentinel; otherwise the status is kept and the message recomputed.
func Apply(r issues.Result, kept []issues.Issue, sentinel string) issues.Result {
	orig := len(r.Issues)
	n := len(kept)
	if n == orig {
		return r
	}
	status := r.Status
	if n == 0 {
		status = issues.StatusPassed
	}
	return r.WithIssues(kept, status, Message(r.Message, orig, n, sentinel))
}

// Drop removes the issues of r for which drop returns true and applies the
// result via Apply. It returns the new result and how many issues were removed.
func Drop(r issues.Result, drop func(issues.Issue) bool, sentinel string) (issues.Result, int) {
	kept := make([]issues.Issue, 0, len(r.Issues))
	for _, iss := range r.Issues {
		if drop(iss) {
			continue
		}
		kept = append(kept, iss)
	}
	return Apply(r, kept, sentinel), len(r.Issues) - len(kept)
}

func replaceCount(msg string, from, to int) string {
	re := regexp.MustCompile(`\b` + strconv.Itoa(from) + `\b`)
	loc := re.FindStringIndex(msg)
	if loc == nil {
		return msg
	}
	return msg[:loc[0]] + strconv.Itoa(to) + msg[loc[1]:]
}

func singularize(msg string) string {
	loc := pluralNouns.FindStringIndex(msg)
	if loc == nil {
		return msg
	}
	word := msg[loc[0]:loc[1]]
	var single string
	switch {
	case strings.HasSuffix(word, "ies"):
		single = word[:len(word)-3] + "y"
	case strings.HasSuffix(word, "IES"):
		single = word[:len(word)-3] + "Y"
	default:
		single = word[:len(word)-1]
	}
	return msg[:loc[0]] + single + msg[loc[1]:]
}
