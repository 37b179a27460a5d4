// Package trace writes a human-readable account of each pipeline stage to
// stderr when --trace is set. No-op when the writer is nil.
package trace

import (
	"fmt"
	"io"

	"triage/cli/internal/issues"
)

// Tracer writes sectioned trace output. When the underlying writer is nil, all methods no-op.
type Tracer struct {
	w io.Writer
}

// New returns a Tracer that writes to w. If w is nil, all methods no-op.
func New(w io.Writer) *Tracer {
	return &Tracer{w: w}
}

// Enabled returns true if the tracer has a non-nil writer.
func (t *Tracer) Enabled() bool {
	return t != nil && t.w != nil
}

// Section writes a section header: "\n[triage:trace] === name ===\n"
func (t *Tracer) Section(name string) {
	if !t.Enabled() {
		return
	}
	fmt.Fprintf(t.w, "\n[triage:trace] === %s ===\n", name)
}

// Printf writes to the trace writer when enabled. Format and args are as in fmt.Printf.
func (t *Tracer) Printf(format string, args ...interface{}) {
	if !t.Enabled() {
		return
	}
	fmt.Fprintf(t.w, format, args...)
}

// Stage writes a section for name followed by one line per result whose
// issue count or status changed between before and after, and a total line.
// before and after must be parallel (same length, same order).
func (t *Tracer) Stage(name string, before, after []issues.Result) {
	if !t.Enabled() {
		return
	}
	t.Section(name)
	changed := 0
	for i := range after {
		if i >= len(before) {
			break
		}
		b, a := before[i], after[i]
		if len(b.Issues) == len(a.Issues) && b.Status == a.Status {
			continue
		}
		changed++
		t.Printf("%s: %d -> %d issue(s), %s -> %s\n", a.AnalyzerID, len(b.Issues), len(a.Issues), b.Status, a.Status)
	}
	t.Printf("removed %d of %d issue(s); %d result(s) changed\n",
		issues.CountIssues(before)-issues.CountIssues(after), issues.CountIssues(before), changed)
}
