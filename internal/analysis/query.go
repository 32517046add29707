package analysis

import "regexp"

// placeholderPattern is the exact regex spec.md §4.B.2 names, grounded on
// original_source's PLACEHOLDER_PATTERN and cross-checked against the
// teacher's own `{{ }}` delimiter convention (internal/template/lexer.go).
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// AnalyzeQuery extracts refs from a query cell body: every identifier
// appearing inside a `{{ ... }}` placeholder, in order of first
// appearance. Query cells never define names (defs = ∅).
func AnalyzeQuery(code string) (refs []string) {
	seen := make(map[string]struct{})
	for _, m := range placeholderPattern.FindAllStringSubmatch(code, -1) {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		refs = append(refs, name)
	}
	return refs
}

// Placeholders returns every placeholder occurrence in source order,
// including repeats, which internal/exec/query needs to interpolate each
// occurrence (a name may appear more than once).
func Placeholders(code string) []string {
	var names []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(code, -1) {
		names = append(names, m[1])
	}
	return names
}
