// Package baseline reads and writes baseline snapshots: previously accepted
// issues, keyed by analyzer id, that are hidden from later runs so only new
// findings are reported.
//
// A baseline file is a JSON object:
//
//	{
//	  "generated_at": "2026-01-02T15:04:05Z",
//	  "version": "1.4.0",
//	  "errors": {
//	    "sec-1": [
//	      {"path": "app/V.php", "line": 42, "message": "…", "hash": "<sha256>"},
//	      {"type": "pattern", "path_pattern": "app/Legacy/*"}
//	    ]
//	  },
//	  "dont_report": ["style"]
//	}
//
// generated_at, version and errors are required and errors must be an
// object; otherwise the whole baseline is rejected. Malformed entries are
// skipped with a warning.
package baseline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"triage/cli/internal/diag"
	"triage/cli/internal/issues"
	"triage/cli/internal/rules"
)

// EntryTypePattern marks an entry matched with rule semantics instead of a hash.
const EntryTypePattern = "pattern"

var requiredKeys = []string{"generated_at", "version", "errors"}

// ErrInvalid is wrapped by every error that rejects a whole baseline document.
var ErrInvalid = errors.New("invalid baseline")

// Entry is one accepted issue: either an exact fingerprint or a pattern rule.
type Entry struct {
	Hash string
	Rule rules.Rule
}

// IsPattern reports whether e matches by rule rather than by hash.
func (e Entry) IsPattern() bool {
	return e.Hash == "" && !e.Rule.Empty()
}

// Matches reports whether e covers iss.
func (e Entry) Matches(iss issues.Issue) bool {
	if e.Hash != "" {
		return Fingerprint(iss) == e.Hash
	}
	return e.Rule.Matches(iss)
}

// Baseline is a parsed, validated baseline document.
type Baseline struct {
	GeneratedAt string
	Version     string
	Entries     map[string][]Entry
	DontReport  []string
}

// Count returns the number of usable entries.
func (b *Baseline) Count() int {
	if b == nil {
		return 0
	}
	n := 0
	for _, es := range b.Entries {
		n += len(es)
	}
	return n
}

// Load reads and parses the baseline at path. A missing or unreadable file is
// an error; callers treat it as "no baseline" and report a warning.
func Load(path string) (*Baseline, []diag.Warning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read baseline %s: %w", path, err)
	}
	return Parse(data)
}

// Parse validates and decodes a baseline document. It returns an error
// wrapping ErrInvalid when the document shape is wrong; entry-level problems
// are returned as warnings and the entries are skipped.
func Parse(data []byte) (*Baseline, []diag.Warning, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, nil, fmt.Errorf("%w: not a JSON object: %v", ErrInvalid, err)
	}
	if top == nil {
		return nil, nil, fmt.Errorf("%w: not a JSON object", ErrInvalid)
	}
	var missing []string
	for _, k := range requiredKeys {
		if _, ok := top[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("%w: missing required keys: %s", ErrInvalid, strings.Join(missing, ", "))
	}
	var rawErrors map[string]json.RawMessage
	if err := json.Unmarshal(top["errors"], &rawErrors); err != nil || rawErrors == nil {
		return nil, nil, fmt.Errorf("%w: errors must be an object keyed by analyzer id", ErrInvalid)
	}

	b := &Baseline{
		GeneratedAt: scalar(top["generated_at"]),
		Version:     scalar(top["version"]),
		Entries:     make(map[string][]Entry, len(rawErrors)),
	}
	var warnings []diag.Warning

	ids := make([]string, 0, len(rawErrors))
	for id := range rawErrors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		var list []any
		if err := json.Unmarshal(rawErrors[id], &list); err != nil {
			warnings = append(warnings, diag.Warnf(diag.SourceBaseline, id, "entries must be a list; ignored"))
			continue
		}
		for i, raw := range list {
			e, problems, ok := parseEntry(raw)
			for _, p := range problems {
				warnings = append(warnings, diag.Warnf(diag.SourceBaseline, id, "entry #%d: %s", i+1, p))
			}
			if ok {
				b.Entries[id] = append(b.Entries[id], e)
			}
		}
	}

	if raw, ok := top["dont_report"]; ok {
		list, ws := parseDontReport(raw)
		b.DontReport = list
		warnings = append(warnings, ws...)
	}
	return b, warnings, nil
}

func parseEntry(raw any) (Entry, []string, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		return Entry{}, []string{fmt.Sprintf("entry is not a key-value record (got %s)", rules.Describe(raw))}, false
	}
	if t, has := m["type"]; has {
		if t != EntryTypePattern {
			return Entry{}, []string{fmt.Sprintf("unknown entry type %v; ignored", t)}, false
		}
		r, problems, valid := rules.Parse(m, "type")
		if !valid {
			return Entry{}, problems, false
		}
		return Entry{Rule: r}, problems, true
	}
	h, isStr := m["hash"].(string)
	if !isStr || strings.TrimSpace(h) == "" {
		return Entry{}, []string{`entry has neither a hash nor type "pattern"; ignored`}, false
	}
	return Entry{Hash: strings.ToLower(strings.TrimSpace(h))}, nil, true
}

func parseDontReport(raw json.RawMessage) ([]string, []diag.Warning) {
	var list []any
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, []diag.Warning{diag.Warnf(diag.SourceBaseline, "", "dont_report must be a list of analyzer ids; ignored")}
	}
	var out []string
	var warnings []diag.Warning
	for i, v := range list {
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			warnings = append(warnings, diag.Warnf(diag.SourceBaseline, "", "dont_report item #%d is not an analyzer id; ignored", i+1))
			continue
		}
		out = append(out, strings.TrimSpace(s))
	}
	return out, warnings
}

// scalar renders a JSON scalar for display; strings are unquoted.
func scalar(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
