// Package diag collects non-blocking configuration warnings produced while
// filtering and renders them as a block kept separate from the report.
package diag

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Sources name the stage that raised a warning.
const (
	SourceConfig   = "ignore_errors"
	SourceBaseline = "baseline"
	SourceInline   = "inline"
)

// Warning is a human-readable configuration problem. Warnings never stop the
// pipeline; the offending rule or file is skipped.
type Warning struct {
	Source   string `json:"source"`
	Analyzer string `json:"analyzer,omitempty"`
	Message  string `json:"message"`
}

// String formats w as "source[analyzer]: message".
func (w Warning) String() string {
	if w.Analyzer == "" {
		return w.Source + ": " + w.Message
	}
	return fmt.Sprintf("%s[%s]: %s", w.Source, w.Analyzer, w.Message)
}

// Warnf returns a Warning with a formatted message.
func Warnf(source, analyzer, format string, args ...any) Warning {
	return Warning{Source: source, Analyzer: analyzer, Message: fmt.Sprintf(format, args...)}
}

// Styles controls how Render decorates the block.
type Styles struct {
	Header lipgloss.Style
	Bullet lipgloss.Style
	Text   lipgloss.Style
	// Pass and Fail decorate the verdict label.
	Pass lipgloss.Style
	Fail lipgloss.Style
}

// ColorStyles returns the default colored styles.
func ColorStyles() Styles {
	return Styles{
		Header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		Bullet: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Text:   lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		Pass:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		Fail:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
	}
}

// PlainStyles returns undecorated styles (NO_COLOR, CI, tests).
func PlainStyles() Styles {
	return Styles{
		Header: lipgloss.NewStyle(),
		Bullet: lipgloss.NewStyle(),
		Text:   lipgloss.NewStyle(),
		Pass:   lipgloss.NewStyle(),
		Fail:   lipgloss.NewStyle(),
	}
}

// Render writes the warnings block to w. Nothing is written when there are no
// warnings.
func Render(w io.Writer, warnings []Warning, st Styles) error {
	if len(warnings) == 0 {
		return nil
	}
	var b strings.Builder
	noun := "warnings"
	if len(warnings) == 1 {
		noun = "warning"
	}
	b.WriteString(st.Header.Render(fmt.Sprintf("Configuration %s (%d):", noun, len(warnings))))
	b.WriteString("\n")
	for _, wn := range warnings {
		b.WriteString(st.Bullet.Render("  ! "))
		b.WriteString(st.Text.Render(wn.String()))
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// VerdictLabel renders "PASS" or "FAIL" with the matching style.
func VerdictLabel(failed bool, st Styles) string {
	if failed {
		return st.Fail.Render("FAIL")
	}
	return st.Pass.Render("PASS")
}
