package notebook

import (
	"fmt"
	"strings"
)

// The error kinds of spec.md §7, each a distinct type so the scheduler can
// format them via Error() while callers that need the kind can errors.As,
// mirroring the teacher's typed EvalError (internal/starlark/context.go)
// rather than plain sentinel strings.

// AnalysisError wraps a parse failure surfaced at execution time
// (spec.md §7.1 — analysis itself never fails the graph build).
type AnalysisError struct {
	CellID string
	Err    error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("cell %s: analysis error: %v", e.CellID, e.Err)
}
func (e *AnalysisError) Unwrap() error { return e.Err }

// DuplicateDefinitionError reports a name defined by two or more cells.
type DuplicateDefinitionError struct {
	Name    string
	CellID  string
	PeerIDs []string
}

func (e *DuplicateDefinitionError) Error() string {
	return fmt.Sprintf("duplicate definition of %q with cell %s", e.Name, strings.Join(e.PeerIDs, ", "))
}

// CycleError reports a cyclic dependency among the named cells.
type CycleError struct {
	CellID    string
	Cycle     []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cyclic dependency: %s", strings.Join(e.Cycle, " -> "))
}

// NameNotDefinedError is an imperative runtime free-name lookup failure.
type NameNotDefinedError struct {
	CellID string
	Name   string
}

func (e *NameNotDefinedError) Error() string {
	return fmt.Sprintf("name %q is not defined", e.Name)
}

// MissingPlaceholderError is a query `{{name}}` with no bound value.
type MissingPlaceholderError struct {
	CellID string
	Name   string
}

func (e *MissingPlaceholderError) Error() string {
	return fmt.Sprintf("missing placeholder value for %q", e.Name)
}

// TimeoutError reports an executor invocation that exceeded its deadline.
type TimeoutError struct {
	CellID string
	After  string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %s", e.After)
}

// QueryExecutionError wraps a driver/SQL failure, including the
// "no DSN configured" condition.
type QueryExecutionError struct {
	CellID string
	Err    error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("query execution error: %v", e.Err)
}
func (e *QueryExecutionError) Unwrap() error { return e.Err }

// TransportError is a best-effort report of event-bus queue overflow; it
// never reaches HTTP status codes (spec.md §7).
type TransportError struct {
	SubscriberID string
	Dropped      int
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("subscriber %s dropped %d event(s)", e.SubscriberID, e.Dropped)
}
