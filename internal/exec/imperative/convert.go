// Package imperative embeds go.starlark.net/starlark to run imperative
// cell bodies against the shared namespace, generalizing the teacher's
// internal/starlark.ExecutionContext (thread creation, Print callback,
// globals-as-starlark.StringDict) from template rendering to cell
// execution (§4.E).
package imperative

import (
	"fmt"

	"github.com/leapstack-labs/leapsql/internal/notebook"
	"go.starlark.net/starlark"
)

// ToStarlark converts a notebook.Value to its Starlark counterpart, the
// same conversion direction as the teacher's GoToStarlark
// (internal/starlark/types.go), generalized to the closed Value union
// instead of `any`.
func ToStarlark(v notebook.Value) (starlark.Value, error) {
	switch v.Kind {
	case notebook.KindNull:
		return starlark.None, nil
	case notebook.KindBool:
		return starlark.Bool(v.Bool), nil
	case notebook.KindInt:
		return starlark.MakeInt64(v.Int), nil
	case notebook.KindFloat:
		return starlark.Float(v.Float), nil
	case notebook.KindString:
		return starlark.String(v.Str), nil
	case notebook.KindList:
		items := make([]starlark.Value, len(v.List))
		for i, e := range v.List {
			sv, err := ToStarlark(e)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			items[i] = sv
		}
		return starlark.NewList(items), nil
	default:
		return starlark.String(v.Other), nil
	}
}

// FromStarlark converts a Starlark value back to a notebook.Value, the
// teacher's ToGo (internal/starlark/types.go) generalized to the tagged
// union instead of `any`. Values with no closed-union shape (functions,
// structs, …) become KindOther, carrying their Starlark string form — a
// later imperative cell sees them as that string (ToStarlark), and the
// query executor's interpolator single-quotes them as a string literal.
func FromStarlark(v starlark.Value) notebook.Value {
	switch val := v.(type) {
	case starlark.NoneType:
		return notebook.Null()
	case starlark.Bool:
		return notebook.Bool(bool(val))
	case starlark.Int:
		if i64, ok := val.Int64(); ok {
			return notebook.Int(i64)
		}
		return notebook.Other(val.String())
	case starlark.Float:
		return notebook.Float(float64(val))
	case starlark.String:
		return notebook.String(string(val))
	case *starlark.List:
		items := make([]notebook.Value, val.Len())
		for i := 0; i < val.Len(); i++ {
			items[i] = FromStarlark(val.Index(i))
		}
		return notebook.List(items)
	case starlark.Tuple:
		items := make([]notebook.Value, val.Len())
		for i := 0; i < val.Len(); i++ {
			items[i] = FromStarlark(val.Index(i))
		}
		return notebook.List(items)
	default:
		return notebook.Other(v.String())
	}
}

// GlobalsFromNamespace converts every binding in ns into a Starlark globals
// dict, the form starlark.ExecFile's globals parameter expects.
func GlobalsFromNamespace(ns *notebook.Namespace) (starlark.StringDict, error) {
	snapshot := ns.Snapshot()
	out := make(starlark.StringDict, len(snapshot))
	for name, v := range snapshot {
		sv, err := ToStarlark(v)
		if err != nil {
			return nil, fmt.Errorf("namespace value %q: %w", name, err)
		}
		out[name] = sv
	}
	return out, nil
}
