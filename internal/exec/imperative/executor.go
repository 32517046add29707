package imperative

import (
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/leapsql/internal/notebook"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// DefaultTimeout is the wall-clock deadline spec.md §4.E names.
const DefaultTimeout = 30 * time.Second

// Result is one cell execution attempt's outcome.
type Result struct {
	Outputs []string
	Err     error
}

// Execute runs code against ns under the given deadline (DefaultTimeout if
// zero), generalizing the teacher's ExecutionContext.EvalExpr
// (internal/starlark/context.go) from evaluating one template expression
// to executing a full cell body with captured stdout and a cooperative
// cancellation deadline.
func Execute(cellID, code string, ns *notebook.Namespace, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	globals, err := GlobalsFromNamespace(ns)
	if err != nil {
		return Result{Err: fmt.Errorf("building globals: %w", err)}
	}

	var outputs []string
	thread := &starlark.Thread{
		Name: cellID,
		Print: func(_ *starlark.Thread, msg string) {
			outputs = append(outputs, msg)
		},
	}

	// go.starlark.net's cooperative cancellation hook: Thread.Cancel sets a
	// flag the interpreter checks at backedges and builtin calls, which is
	// the idiomatic Starlark-embedding answer to a wall-clock timeout since
	// the interpreter itself has no preemption point otherwise.
	timer := time.AfterFunc(timeout, func() {
		thread.Cancel("timeout")
	})
	defer timer.Stop()

	// Cells may use while loops and top-level for/if/while, and may rebind
	// a global (e.g. `total = 0` then `total += 1`), none of which the
	// default Starlark dialect allows.
	opts := &syntax.FileOptions{While: true, TopLevelControl: true, GlobalReassign: true}
	moduleGlobals, execErr := starlark.ExecFileOptions(opts, thread, cellID+".star", code, globals)
	if execErr != nil {
		if isCancellation(execErr) {
			return Result{Err: &notebook.TimeoutError{CellID: cellID, After: timeout.String()}}
		}
		return Result{Err: fmt.Errorf("%s", renderError(execErr))}
	}

	for name, v := range moduleGlobals {
		ns.Set(name, FromStarlark(v))
	}

	return Result{Outputs: outputs}
}

func isCancellation(err error) bool {
	return strings.Contains(err.Error(), "cancelled")
}

// renderError captures the rendered traceback as the error message,
// directly analogous to traceback.format_exc() in
// original_source/backend/app/runtime/python_executor.py.
func renderError(err error) string {
	if evalErr, ok := err.(*starlark.EvalError); ok {
		return evalErr.Backtrace()
	}
	return err.Error()
}
