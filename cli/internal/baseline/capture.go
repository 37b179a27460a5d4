package baseline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"triage/cli/internal/erruser"
	"triage/cli/internal/issues"
)

// CapturedEntry is the on-disk form of an accepted issue.
type CapturedEntry struct {
	Path    string `json:"path"`
	Line    *int   `json:"line"`
	Message string `json:"message"`
	Hash    string `json:"hash"`
}

// Document is the on-disk form written by Save.
type Document struct {
	GeneratedAt string                     `json:"generated_at"`
	Version     string                     `json:"version"`
	Errors      map[string][]CapturedEntry `json:"errors"`
	DontReport  []string                   `json:"dont_report,omitempty"`
}

// Capture snapshots every issue in results. Duplicate fingerprints within an
// analyzer are written once; analyzers without issues are omitted. Entries
// keep the input order.
func Capture(results []issues.Result, dontReport []string, version string, now time.Time) *Document {
	doc := &Document{
		GeneratedAt: now.UTC().Format(time.RFC3339),
		Version:     version,
		Errors:      make(map[string][]CapturedEntry),
		DontReport:  Denylist(dontReport, nil),
	}
	if len(doc.DontReport) == 0 {
		doc.DontReport = nil
	}
	seen := make(map[string]map[string]struct{})
	for _, r := range results {
		for _, iss := range r.Issues {
			h := Fingerprint(iss)
			if seen[r.AnalyzerID] == nil {
				seen[r.AnalyzerID] = make(map[string]struct{})
			}
			if _, dup := seen[r.AnalyzerID][h]; dup {
				continue
			}
			seen[r.AnalyzerID][h] = struct{}{}
			e := CapturedEntry{Path: unknownFile, Message: iss.Message, Hash: h}
			if iss.Location != nil {
				e.Path = iss.Location.File
				line := iss.Location.Line
				e.Line = &line
			}
			doc.Errors[r.AnalyzerID] = append(doc.Errors[r.AnalyzerID], e)
		}
	}
	return doc
}

// Count returns the number of captured entries.
func (d *Document) Count() int {
	n := 0
	for _, es := range d.Errors {
		n += len(es)
	}
	return n
}

// Analyzers returns the captured analyzer ids, sorted.
func (d *Document) Analyzers() []string {
	ids := make([]string, 0, len(d.Errors))
	for id := range d.Errors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Save writes doc to path as indented JSON. Creates the parent directory if
// needed. Uses atomic write (temp file then rename) so a reader never sees a
// partial baseline.
func Save(path string, doc *Document) error {
	if doc == nil {
		return erruser.New("Cannot save an empty baseline.", nil)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return erruser.New("Could not create baseline directory.", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return erruser.New("Could not encode baseline.", err)
	}
	data = append(data, '\n')
	f, err := os.CreateTemp(dir, "baseline.*.tmp")
	if err != nil {
		return erruser.New("Could not save baseline.", err)
	}
	tmpPath := f.Name()
	defer func() { _ = os.Remove(tmpPath) }()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return erruser.New("Could not save baseline.", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return erruser.New("Could not save baseline.", err)
	}
	if err := f.Close(); err != nil {
		return erruser.New("Could not save baseline.", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return erruser.New("Could not save baseline.", err)
	}
	return nil
}
