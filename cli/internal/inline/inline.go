// Package inline drops issues whose source line, or the line directly above
// it, carries a suppression marker comment:
//
//	// triage-ignore                 suppresses every analyzer
//	// triage-ignore sec-1, style    suppresses only the listed analyzer ids
//
// The marker only counts inside a comment. Source files are read at most
// once per Filter. Unreadable or missing files have no suppressions.
package inline

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"triage/cli/internal/issues"
	"triage/cli/internal/recompute"
)

const (
	// DefaultMarker is the marker recognized when none is configured.
	DefaultMarker = "triage-ignore"
	// AllSuppressedMessage replaces a result's message when every issue was
	// suppressed inline.
	AllSuppressedMessage = "All issues were suppressed inline"
)

// commentOpeners start a line or block comment in the languages analyzers
// commonly report on.
var commentOpeners = []string{"//", "/*", "#", "--", "<!--", "{#", "<%#"}

// commentClosers end the analyzer id list inside block or markup comments.
var commentClosers = []string{"*/", "-->", "#}", "%>"}

// ReadFunc reads a whole source file.
type ReadFunc func(path string) ([]byte, error)

// Filter checks issues against suppression markers in their source files.
// A Filter caches file contents for its lifetime; create one per run.
type Filter struct {
	marker string
	root   string
	read   ReadFunc
	cache  map[string][]string
	reads  int
}

// Option configures a Filter.
type Option func(*Filter)

// WithReader replaces os.ReadFile, e.g. for tests or an in-memory tree.
func WithReader(fn ReadFunc) Option {
	return func(f *Filter) {
		if fn != nil {
			f.read = fn
		}
	}
}

// New returns a Filter for marker. Relative issue paths are resolved against
// root. An empty marker falls back to DefaultMarker.
func New(marker, root string, opts ...Option) *Filter {
	marker = strings.TrimSpace(marker)
	if marker == "" {
		marker = DefaultMarker
	}
	f := &Filter{
		marker: marker,
		root:   root,
		read:   os.ReadFile,
		cache:  make(map[string][]string),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Marker returns the marker this filter looks for.
func (f *Filter) Marker() string {
	return f.marker
}

// Reads returns how many distinct files the filter has read so far.
func (f *Filter) Reads() int {
	return f.reads
}

// Apply drops suppressed issues from every result. Results with nothing
// suppressed are returned unchanged; the input is not modified.
func (f *Filter) Apply(results []issues.Result) []issues.Result {
	out := make([]issues.Result, len(results))
	for i, r := range results {
		id := r.AnalyzerID
		out[i], _ = recompute.Drop(r, func(iss issues.Issue) bool {
			return f.Suppressed(id, iss)
		}, AllSuppressedMessage)
	}
	return out
}

// Suppressed reports whether iss, reported by analyzerID, is covered by a
// marker on its own line or the line above. Issues without a targetable
// location are never suppressed.
func (f *Filter) Suppressed(analyzerID string, iss issues.Issue) bool {
	if !iss.Location.Targetable() {
		return false
	}
	lines := f.lines(iss.Location.File)
	n := iss.Location.Line
	if n <= len(lines) && f.lineSuppresses(lines[n-1], analyzerID) {
		return true
	}
	if n >= 2 && n-1 <= len(lines) && f.lineSuppresses(lines[n-2], analyzerID) {
		return true
	}
	return false
}

func (f *Filter) lines(file string) []string {
	path := f.resolve(file)
	if lines, ok := f.cache[path]; ok {
		return lines
	}
	f.reads++
	data, err := f.read(path)
	if err != nil {
		f.cache[path] = nil
		return nil
	}
	lines := strings.Split(string(data), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	f.cache[path] = lines
	return lines
}

func (f *Filter) resolve(file string) string {
	p := filepath.FromSlash(file)
	if !filepath.IsAbs(p) && f.root != "" {
		p = filepath.Join(f.root, p)
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// lineSuppresses reports whether line carries a marker that applies to
// analyzerID. The marker must sit inside a comment (a comment opener earlier
// on the line, or a block comment continuation line starting with *) and be
// followed by end of line, whitespace or a comment closer, so that
// "triage-ignore-next" or a marker inside a plain string is not a marker.
func (f *Filter) lineSuppresses(line, analyzerID string) bool {
	rest := line
	offset := 0
	for {
		idx := strings.Index(rest, f.marker)
		if idx < 0 {
			return false
		}
		before := line[:offset+idx]
		after := rest[idx+len(f.marker):]
		offset += idx + len(f.marker)
		if inComment(before) && markerBoundary(after) {
			ids := ParseIDs(after)
			if len(ids) == 0 {
				return true
			}
			for _, id := range ids {
				if id == analyzerID {
					return true
				}
			}
		}
		rest = after
	}
}

func inComment(before string) bool {
	if strings.HasPrefix(strings.TrimSpace(before), "*") {
		return true
	}
	for _, o := range commentOpeners {
		if strings.Contains(before, o) {
			return true
		}
	}
	return false
}

func markerBoundary(after string) bool {
	if after == "" {
		return true
	}
	for _, c := range commentClosers {
		if strings.HasPrefix(after, c) {
			return true
		}
	}
	r, _ := utf8.DecodeRuneInString(after)
	return unicode.IsSpace(r)
}

// ParseIDs extracts the comma-separated analyzer id list following a marker.
// An empty result means the marker applies to every analyzer.
func ParseIDs(after string) []string {
	s := after
	for _, c := range commentClosers {
		if i := strings.Index(s, c); i >= 0 {
			s = s[:i]
		}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var ids []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}
