package analysis

import (
	"sort"

	"go.starlark.net/syntax"
)

// starlarkBuiltins is the fixed built-in allowlist excluded from refs per
// spec.md §4.B's contract (b). Starlark has no classes, so "function and
// class declarations" (spec.md §4.B) maps onto DefStmt alone.
var starlarkBuiltins = map[string]struct{}{
	"None": {}, "True": {}, "False": {},
	"len": {}, "range": {}, "print": {}, "type": {}, "str": {}, "int": {},
	"float": {}, "bool": {}, "list": {}, "dict": {}, "tuple": {}, "set": {},
	"sorted": {}, "reversed": {}, "enumerate": {}, "zip": {}, "min": {},
	"max": {}, "sum": {}, "abs": {}, "all": {}, "any": {}, "repr": {},
	"dir": {}, "getattr": {}, "hasattr": {}, "hash": {}, "chr": {}, "ord": {},
	"bytes": {}, "fail": {}, "struct": {}, "json": {},
}

// AnalyzeImperative walks a Starlark module the way
// original_source/backend/app/analysis/python.py walks a Python ast.Module:
// a single recursive visitor collects every assignment target, every
// DefStmt name, and every LoadStmt binding name as defs, regardless of
// nesting depth, and every Ident occurrence anywhere as a candidate ref;
// refs is then allReads - defs - builtins - comprehension variables -
// function/lambda parameter names. This
// deliberately skips building a full lexical-scope resolver, erring on the
// side of over-including in defs per spec.md §9's Open Question.
//
// Parse failure returns defs=∅, refs=∅, err=nil: the executor surfaces the
// syntax error at run time (spec.md §4.B), not the analyzer.
func AnalyzeImperative(code string) (defs, refs []string, err error) {
	f, parseErr := syntax.Parse("cell.star", code, 0)
	if parseErr != nil {
		return nil, nil, nil
	}

	w := &walker{
		defs:       make(map[string]struct{}),
		allIdents:  make(map[string]struct{}),
		compScoped: make(map[string]struct{}),
	}
	for _, stmt := range f.Stmts {
		w.walkStmt(stmt)
	}

	refSet := make(map[string]struct{})
	for name := range w.allIdents {
		if _, ok := w.defs[name]; ok {
			continue
		}
		if _, ok := starlarkBuiltins[name]; ok {
			continue
		}
		if _, ok := w.compScoped[name]; ok {
			continue
		}
		refSet[name] = struct{}{}
	}

	return setToSortedSlice(w.defs), setToSortedSlice(refSet), nil
}

type walker struct {
	defs       map[string]struct{}
	allIdents  map[string]struct{}
	compScoped map[string]struct{}
}

func (w *walker) walkStmts(stmts []syntax.Stmt) {
	for _, s := range stmts {
		w.walkStmt(s)
	}
}

func (w *walker) walkStmt(s syntax.Stmt) {
	switch st := s.(type) {
	case *syntax.AssignStmt:
		for _, name := range decomposeLHSNames(st.LHS) {
			w.defs[name] = struct{}{}
		}
		w.walkExpr(st.LHS)
		w.walkExpr(st.RHS)

	case *syntax.DefStmt:
		if st.Name != nil {
			w.defs[st.Name.Name] = struct{}{}
		}
		for _, p := range st.Params {
			w.walkParam(p)
		}
		w.walkStmts(st.Body)

	case *syntax.ExprStmt:
		w.walkExpr(st.X)

	case *syntax.ForStmt:
		for _, name := range decomposeLHSNames(st.Vars) {
			w.defs[name] = struct{}{}
		}
		w.walkExpr(st.Vars)
		w.walkExpr(st.X)
		w.walkStmts(st.Body)

	case *syntax.WhileStmt:
		w.walkExpr(st.Cond)
		w.walkStmts(st.Body)

	case *syntax.IfStmt:
		w.walkExpr(st.Cond)
		w.walkStmts(st.True)
		w.walkStmts(st.False)

	case *syntax.LoadStmt:
		for _, to := range st.To {
			if to != nil {
				w.defs[to.Name] = struct{}{}
			}
		}

	case *syntax.ReturnStmt:
		if st.Result != nil {
			w.walkExpr(st.Result)
		}

	case *syntax.BranchStmt:
		// break/continue/pass: nothing to collect.
	}
}

func (w *walker) walkExpr(e syntax.Expr) {
	if e == nil {
		return
	}
	switch ex := e.(type) {
	case *syntax.Ident:
		w.allIdents[ex.Name] = struct{}{}

	case *syntax.Literal:
		// no identifiers

	case *syntax.BinaryExpr:
		w.walkExpr(ex.X)
		w.walkExpr(ex.Y)

	case *syntax.UnaryExpr:
		w.walkExpr(ex.X)

	case *syntax.ParenExpr:
		w.walkExpr(ex.X)

	case *syntax.ListExpr:
		for _, el := range ex.List {
			w.walkExpr(el)
		}

	case *syntax.TupleExpr:
		for _, el := range ex.List {
			w.walkExpr(el)
		}

	case *syntax.DictExpr:
		for _, el := range ex.List {
			if de, ok := el.(*syntax.DictEntry); ok {
				w.walkExpr(de.Key)
				w.walkExpr(de.Value)
			}
		}

	case *syntax.IndexExpr:
		w.walkExpr(ex.X)
		w.walkExpr(ex.Y)

	case *syntax.SliceExpr:
		w.walkExpr(ex.X)
		w.walkExpr(ex.Lo)
		w.walkExpr(ex.Hi)
		w.walkExpr(ex.Step)

	case *syntax.Comprehension:
		w.walkComprehension(ex)

	case *syntax.CondExpr:
		w.walkExpr(ex.Cond)
		w.walkExpr(ex.True)
		w.walkExpr(ex.False)

	case *syntax.LambdaExpr:
		for _, p := range ex.Params {
			w.walkParam(p)
		}
		w.walkExpr(ex.Body)

	case *syntax.DotExpr:
		// Attribute accesses contribute only the root name (spec.md §4.B).
		w.walkExpr(ex.X)

	case *syntax.CallExpr:
		w.walkExpr(ex.Fn)
		for _, a := range ex.Args {
			w.walkExpr(a)
		}
	}
}

// walkParam handles a DefStmt/LambdaExpr parameter: its name is a binder,
// recorded in compScoped alongside comprehension variables so it never
// becomes a module ref; a defaulted parameter's default value is evaluated
// in the enclosing scope and so its free names are real refs; *args/**kwargs
// carry no default to walk.
func (w *walker) walkParam(p syntax.Expr) {
	switch pe := p.(type) {
	case *syntax.BinaryExpr:
		if id, ok := pe.X.(*syntax.Ident); ok {
			w.compScoped[id.Name] = struct{}{}
		}
		w.walkExpr(pe.Y)
	case *syntax.Ident:
		w.compScoped[pe.Name] = struct{}{}
	case *syntax.UnaryExpr:
		if id, ok := pe.X.(*syntax.Ident); ok {
			w.compScoped[id.Name] = struct{}{}
		}
	}
}

// walkComprehension scopes a comprehension's loop variables to itself: they
// neither become module defs nor module refs (spec.md §4.B: "Comprehension
// targets are scoped to the comprehension").
func (w *walker) walkComprehension(c *syntax.Comprehension) {
	for _, cl := range c.Clauses {
		if fc, ok := cl.(*syntax.ForClause); ok {
			for _, name := range decomposeLHSNames(fc.Vars) {
				w.compScoped[name] = struct{}{}
			}
		}
	}
	for _, cl := range c.Clauses {
		switch clause := cl.(type) {
		case *syntax.ForClause:
			w.walkExpr(clause.X)
			w.walkExpr(clause.Vars)
		case *syntax.IfClause:
			w.walkExpr(clause.Cond)
		}
	}
	w.walkExpr(c.Body)
}

// decomposeLHSNames extracts the names an assignment or for-loop target
// binds, recursing through tuple/list destructuring. Index and attribute
// targets (e.g. `lst[0] = x`, `obj.attr = x`) bind no new name.
func decomposeLHSNames(e syntax.Expr) []string {
	switch ex := e.(type) {
	case *syntax.Ident:
		return []string{ex.Name}
	case *syntax.ParenExpr:
		return decomposeLHSNames(ex.X)
	case *syntax.ListExpr:
		var names []string
		for _, el := range ex.List {
			names = append(names, decomposeLHSNames(el)...)
		}
		return names
	case *syntax.TupleExpr:
		var names []string
		for _, el := range ex.List {
			names = append(names, decomposeLHSNames(el)...)
		}
		return names
	default:
		return nil
	}
}

func setToSortedSlice(s map[string]struct{}) []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
