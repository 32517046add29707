// Package query is the query executor of spec.md §4.F: placeholder
// interpolation with type-aware quoting, pooled execution with a row cap,
// and JSON-line row shaping. The interpolation rules are ported directly
// from original_source/backend/app/runtime/sql_executor.py's
// _substitute_variables, generalized from Python's dynamic typing to the
// notebook.Value tagged union.
package query

import (
	"regexp"
	"strings"

	"github.com/leapstack-labs/leapsql/internal/notebook"
)

// placeholderPattern mirrors internal/analysis's exact regex (spec.md
// §4.B.2), duplicated here so this package can both find and replace
// occurrences without importing analysis just for a literal.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// Interpolate substitutes every {{name}} placeholder in code with its
// SQL-literal form, resolved from ns. If any placeholder has no bound
// value, it returns a MissingPlaceholderError naming it and does not run
// the query (spec.md §4.F: "do not run the query").
func Interpolate(cellID, code string, ns *notebook.Namespace) (string, error) {
	matches := placeholderPattern.FindAllStringSubmatch(code, -1)
	for _, m := range matches {
		name := m[1]
		if _, ok := ns.Get(name); !ok {
			return "", &notebook.MissingPlaceholderError{CellID: cellID, Name: name}
		}
	}

	return placeholderPattern.ReplaceAllStringFunc(code, func(match string) string {
		sub := placeholderPattern.FindStringSubmatch(match)
		v, _ := ns.Get(sub[1]) // presence already verified above
		return quote(v)
	}), nil
}

// quote renders v as a SQL literal per spec.md §4.F's type-aware rules.
func quote(v notebook.Value) string {
	switch v.Kind {
	case notebook.KindNull:
		return "NULL"
	case notebook.KindBool:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	case notebook.KindInt:
		return v.GoString()
	case notebook.KindFloat:
		return v.GoString()
	case notebook.KindString:
		return quoteString(v.Str)
	case notebook.KindList:
		parts := make([]string, len(v.List))
		for i, e := range v.List {
			parts[i] = quote(e)
		}
		// The caller's SQL must supply the parentheses for IN (...); the
		// executor does not add them (spec.md §4.F).
		return strings.Join(parts, ", ")
	default:
		return quoteString(v.Other)
	}
}

// quoteString single-quotes s, doubling internal single quotes.
func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
