package notebook

import "fmt"

// ValueKind tags the shape of a Value held in the shared namespace.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindOther
)

// Value is the tagged union spec.md §9 describes for the shared namespace:
// a closed set of shapes the query executor's interpolator can switch on
// without reflection, plus an Other carrier (a string form) for imperative
// values of any other shape.
type Value struct {
	Kind  ValueKind
	Bool  bool
	Int   int64
	Float float64
	Str   string
	List  []Value
	// Other holds the string form of a value whose shape the notebook
	// doesn't model (e.g. a Starlark function or struct). Imperative code
	// sees it as a string, and a query placeholder interpolates it as a
	// single-quoted string literal.
	Other string
}

func Null() Value                { return Value{Kind: KindNull} }
func Bool(b bool) Value          { return Value{Kind: KindBool, Bool: b} }
func Int(i int64) Value          { return Value{Kind: KindInt, Int: i} }
func Float(f float64) Value      { return Value{Kind: KindFloat, Float: f} }
func String(s string) Value      { return Value{Kind: KindString, Str: s} }
func List(items []Value) Value   { return Value{Kind: KindList, List: items} }
func Other(repr string) Value    { return Value{Kind: KindOther, Other: repr} }

// GoString renders the value in a Starlark-like text form, used for
// diagnostics and for the query executor's int and float literals.
func (v Value) GoString() string {
	switch v.Kind {
	case KindNull:
		return "None"
	case KindBool:
		if v.Bool {
			return "True"
		}
		return "False"
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat:
		return fmt.Sprintf("%g", v.Float)
	case KindString:
		return v.Str
	case KindList:
		out := "["
		for i, e := range v.List {
			if i > 0 {
				out += ", "
			}
			out += e.GoString()
		}
		return out + "]"
	default:
		return v.Other
	}
}

// Namespace is the process-wide mutable mapping the scheduler owns and the
// executors read/write. It is not safe for concurrent use by itself; the
// scheduler serializes all access behind the run lock (spec.md §5).
type Namespace struct {
	vars map[string]Value
}

// NewNamespace returns an empty shared namespace.
func NewNamespace() *Namespace {
	return &Namespace{vars: make(map[string]Value)}
}

func (n *Namespace) Get(name string) (Value, bool) {
	v, ok := n.vars[name]
	return v, ok
}

func (n *Namespace) Set(name string, v Value) {
	n.vars[name] = v
}

// Delete removes a name, used by the scheduler's stale-def sweep
// (spec.md §4.G step 5) and by cell deletion (Invariant 6).
func (n *Namespace) Delete(name string) {
	delete(n.vars, name)
}

// DeleteAll removes every name in names; missing names are no-ops.
func (n *Namespace) DeleteAll(names []string) {
	for _, name := range names {
		delete(n.vars, name)
	}
}

// Snapshot returns a shallow copy of the current bindings without exposing
// the live map; the imperative executor builds its globals from it.
func (n *Namespace) Snapshot() map[string]Value {
	out := make(map[string]Value, len(n.vars))
	for k, v := range n.vars {
		out[k] = v
	}
	return out
}
