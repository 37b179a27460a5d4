// Package rules is the matching primitive shared by configuration ignore rules
// and pattern-typed baseline entries. A Rule is parsed once from a loosely
// typed configuration value (TOML, YAML or JSON decoded) into an immutable
// value; malformed entries are reported as problems and never match.
package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"triage/cli/internal/issues"
)

// Recognized rule keys.
const (
	KeyPath           = "path"
	KeyPathPattern    = "path_pattern"
	KeyMessage        = "message"
	KeyMessagePattern = "message_pattern"
)

// Field is a bit set of the criteria present in a Rule.
type Field uint8

const (
	FieldPath Field = 1 << iota
	FieldPathPattern
	FieldMessage
	FieldMessagePattern
)

var keyFields = map[string]Field{
	KeyPath:           FieldPath,
	KeyPathPattern:    FieldPathPattern,
	KeyMessage:        FieldMessage,
	KeyMessagePattern: FieldMessagePattern,
}

// Rule is a conjunction of up to four criteria. The zero value has no criteria
// and matches nothing.
type Rule struct {
	fields         Field
	path           string
	pathPattern    string
	pathGlob       glob.Glob
	message        string
	messagePattern string
	messageGlob    glob.Glob
}

// Has reports whether f is present in r.
func (r Rule) Has(f Field) bool {
	return r.fields&f != 0
}

// Empty reports whether r has no criteria.
func (r Rule) Empty() bool {
	return r.fields == 0
}

// String renders r as "key=value" pairs in a fixed order for logs.
func (r Rule) String() string {
	var parts []string
	if r.Has(FieldPath) {
		parts = append(parts, fmt.Sprintf("%s=%q", KeyPath, r.path))
	}
	if r.Has(FieldPathPattern) {
		parts = append(parts, fmt.Sprintf("%s=%q", KeyPathPattern, r.pathPattern))
	}
	if r.Has(FieldMessage) {
		parts = append(parts, fmt.Sprintf("%s=%q", KeyMessage, r.message))
	}
	if r.Has(FieldMessagePattern) {
		parts = append(parts, fmt.Sprintf("%s=%q", KeyMessagePattern, r.messagePattern))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// Matches reports whether every criterion present in r matches iss.
//
// When both the exact and the pattern form of a field are set, the pattern
// result replaces the exact result. Parse flags such rules as a problem; the
// behavior is kept so existing configurations keep matching the same issues.
//
// Path criteria never match an issue without a location.
func (r Rule) Matches(iss issues.Issue) bool {
	if r.Empty() {
		return false
	}
	if (r.Has(FieldPath) || r.Has(FieldPathPattern)) && iss.Location == nil {
		return false
	}
	raw := iss.File()
	norm := NormalizePath(raw)

	pathOK := true
	if r.Has(FieldPath) {
		pathOK = norm == NormalizePath(r.path)
	}
	if r.Has(FieldPathPattern) {
		pathOK = r.pathGlob.Match(raw) || r.pathGlob.Match(norm)
	}

	msgOK := true
	if r.Has(FieldMessage) {
		msgOK = iss.Message == r.message
	}
	if r.Has(FieldMessagePattern) {
		msgOK = r.messageGlob.Match(iss.Message) || r.messageGlob.Match(iss.Recommendation)
	}
	return pathOK && msgOK
}

// Set is an OR over rules.
type Set []Rule

// Matches reports whether any rule in s matches iss.
func (s Set) Matches(iss issues.Issue) bool {
	for _, r := range s {
		if r.Matches(iss) {
			return true
		}
	}
	return false
}

// NormalizePath converts Windows separators to forward slashes.
func NormalizePath(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// Parse converts one raw rule entry into a Rule. Keys listed in allowExtra are
// accepted without complaint (e.g. "type" on baseline entries). It returns the
// problems found and ok=false when the entry must be skipped: not a key-value
// record, a non-string criterion, or zero criteria.
// Unrecognized keys, conflicting exact+pattern keys and suspicious ** usage
// are reported but do not invalidate the rule.
func Parse(raw any, allowExtra ...string) (Rule, []string, bool) {
	m, ok := asMap(raw)
	if !ok {
		return Rule{}, []string{fmt.Sprintf("entry is not a key-value record (got %s)", Describe(raw))}, false
	}
	extra := make(map[string]bool, len(allowExtra))
	for _, k := range allowExtra {
		extra[k] = true
	}

	var problems []string
	var unknown []string
	var r Rule
	valid := true
	for _, key := range sortedKeys(m) {
		f, known := keyFields[key]
		if !known {
			if !extra[key] {
				unknown = append(unknown, key)
			}
			continue
		}
		s, isStr := m[key].(string)
		if !isStr {
			problems = append(problems, fmt.Sprintf("%s must be a string (got %s)", key, Describe(m[key])))
			valid = false
			continue
		}
		r.fields |= f
		switch f {
		case FieldPath:
			r.path = s
		case FieldMessage:
			r.message = s
		case FieldPathPattern:
			g, err := compileWildcard(s)
			if err != nil {
				problems = append(problems, fmt.Sprintf("invalid path_pattern %q: %v", s, err))
				valid = false
				continue
			}
			r.pathPattern, r.pathGlob = s, g
			if DoubleStarMisuse(s) {
				problems = append(problems, fmt.Sprintf("path_pattern %q uses ** without an adjacent /; ** here behaves like *", s))
			}
		case FieldMessagePattern:
			g, err := compileWildcard(s)
			if err != nil {
				problems = append(problems, fmt.Sprintf("invalid message_pattern %q: %v", s, err))
				valid = false
				continue
			}
			r.messagePattern, r.messageGlob = s, g
		}
	}
	if len(unknown) > 0 {
		problems = append(problems, fmt.Sprintf("unrecognized keys: %s", strings.Join(unknown, ", ")))
	}
	if r.Has(FieldPath) && r.Has(FieldPathPattern) {
		problems = append(problems, "both path and path_pattern are set; path_pattern takes precedence and path is ignored")
	}
	if r.Has(FieldMessage) && r.Has(FieldMessagePattern) {
		problems = append(problems, "both message and message_pattern are set; message_pattern takes precedence and message is ignored")
	}
	if !valid {
		return Rule{}, problems, false
	}
	if r.Empty() {
		problems = append(problems, "rule has no criteria (path, path_pattern, message, message_pattern); it is ignored")
		return Rule{}, problems, false
	}
	return r, problems, true
}

// compileWildcard compiles a pattern in which only * is special. It matches
// any run of characters, including separators; ** behaves the same. Every
// other character, including [ ] { } ? and \, is literal.
func compileWildcard(pattern string) (glob.Glob, error) {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = glob.QuoteMeta(p)
	}
	return glob.Compile(strings.Join(parts, "*"))
}

// MustParse is Parse for literals in tests and defaults; it panics when the
// entry is invalid.
func MustParse(raw map[string]any) Rule {
	r, problems, ok := Parse(raw)
	if !ok {
		panic(fmt.Sprintf("rules: invalid rule %v: %s", raw, strings.Join(problems, "; ")))
	}
	return r
}

// DoubleStarMisuse reports whether pattern contains a run of ** that is not
// bounded by / (or the pattern start/end) on both sides, e.g. "src/**.php".
func DoubleStarMisuse(pattern string) bool {
	for i := 0; i+1 < len(pattern); i++ {
		if pattern[i] != '*' || pattern[i+1] != '*' {
			continue
		}
		j := i + 2
		for j < len(pattern) && pattern[j] == '*' {
			j++
		}
		before := i == 0 || pattern[i-1] == '/'
		after := j == len(pattern) || pattern[j] == '/'
		if !before || !after {
			return true
		}
		i = j
	}
	return false
}

func asMap(v any) (map[string]any, bool) {
	switch x := v.(type) {
	case map[string]any:
		return x, true
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	default:
		return nil, false
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Describe names the dynamic type of a decoded configuration value.
func Describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case int, int64, float64, uint64:
		return "number"
	case []any, []map[string]any:
		return "list"
	case map[string]any, map[any]any:
		return "record"
	default:
		return fmt.Sprintf("%T", v)
	}
}
