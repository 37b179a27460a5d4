// Package version reports the triage build. Release builds set the values with
//
//	go build -ldflags "-X triage/cli/internal/version.Version=v1.0.0 -X triage/cli/internal/version.Commit=abc1234"
package version

import "strings"

var (
	// Version is the release tag, or "dev" for local builds.
	Version = "dev"
	// Commit is the short commit hash, empty when unknown.
	Commit = ""
)

// String is shown by --version: "v1.2.0", "dev", or "dev (abc1234)".
func String() string {
	if Version != "dev" || Commit == "" {
		return Version
	}
	return Version + " (" + Commit + ")"
}

// Baseline is the value recorded in a baseline file's version field. It never
// carries the commit, so re-capturing on a new dev commit leaves it unchanged.
func Baseline() string {
	v := strings.TrimPrefix(strings.TrimSpace(Version), "v")
	if v == "" {
		return "dev"
	}
	return v
}
