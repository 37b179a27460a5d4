package baseline

import (
	"strings"

	"triage/cli/internal/issues"
	"triage/cli/internal/recompute"
	"triage/cli/internal/rules"
)

// AllBaselinedMessage replaces a result's message when every issue is in the
// baseline.
const AllBaselinedMessage = "All issues are in the baseline"

// index splits one analyzer's entries into a hash set and a pattern set.
type index struct {
	hashes   map[string]struct{}
	patterns rules.Set
}

func newIndex(entries []Entry) index {
	idx := index{hashes: make(map[string]struct{}, len(entries))}
	for _, e := range entries {
		if e.Hash != "" {
			idx.hashes[e.Hash] = struct{}{}
			continue
		}
		if e.IsPattern() {
			idx.patterns = append(idx.patterns, e.Rule)
		}
	}
	return idx
}

func (idx index) matches(iss issues.Issue) bool {
	if len(idx.hashes) > 0 {
		if _, ok := idx.hashes[Fingerprint(iss)]; ok {
			return true
		}
	}
	return idx.patterns.Matches(iss)
}

// Filter drops every issue covered by an entry for its analyzer. A nil
// baseline returns results as-is. The input is not modified.
func Filter(results []issues.Result, b *Baseline) []issues.Result {
	if b == nil {
		return results
	}
	indexes := make(map[string]index, len(b.Entries))
	out := make([]issues.Result, len(results))
	for i, r := range results {
		entries := b.Entries[r.AnalyzerID]
		if len(entries) == 0 {
			out[i] = r
			continue
		}
		idx, ok := indexes[r.AnalyzerID]
		if !ok {
			idx = newIndex(entries)
			indexes[r.AnalyzerID] = idx
		}
		out[i], _ = recompute.Drop(r, idx.matches, AllBaselinedMessage)
	}
	return out
}

// Denylist returns the ordered, deduplicated union of the configured
// dont_report ids and the baseline's. Blank ids are dropped.
func Denylist(configured, fromBaseline []string) []string {
	seen := make(map[string]struct{}, len(configured)+len(fromBaseline))
	out := make([]string, 0, len(configured)+len(fromBaseline))
	for _, list := range [][]string{configured, fromBaseline} {
		for _, id := range list {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
