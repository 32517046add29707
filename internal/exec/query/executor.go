package query

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/leapstack-labs/leapsql/internal/dbpool"
	"github.com/leapstack-labs/leapsql/internal/notebook"
)

// DefaultTimeout is the wall-clock deadline spec.md §4.F names.
const DefaultTimeout = 30 * time.Second

// DefaultRowCap is the number of rows emitted before truncation, per
// spec.md §4.F.
const DefaultRowCap = 1000

// Result is one query cell execution attempt's outcome.
type Result struct {
	Outputs []string
	Err     error
}

// Execute interpolates code's placeholders from ns, runs it against the
// pool's connection for dsn, and shapes up to rowCap rows as JSON-line
// output, generalizing original_source/backend/app/runtime/sql_executor.py's
// execute() (substitute, run, fetch-with-limit, dict(row) per row).
func Execute(ctx context.Context, cellID, code string, ns *notebook.Namespace, pool *dbpool.Manager, dsn string, timeout time.Duration, rowCap int) Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if rowCap <= 0 {
		rowCap = DefaultRowCap
	}

	if dsn == "" {
		return Result{Err: &notebook.QueryExecutionError{CellID: cellID, Err: fmt.Errorf("no DSN configured")}}
	}

	interpolated, err := Interpolate(cellID, code, ns)
	if err != nil {
		return Result{Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	backend, err := pool.GetPool(ctx, dsn)
	if err != nil {
		return Result{Err: &notebook.QueryExecutionError{CellID: cellID, Err: err}}
	}

	conn, err := backend.Acquire(ctx)
	if err != nil {
		return Result{Err: &notebook.QueryExecutionError{CellID: cellID, Err: err}}
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, interpolated)
	if err != nil {
		return Result{Err: &notebook.QueryExecutionError{CellID: cellID, Err: err}}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Result{Err: &notebook.QueryExecutionError{CellID: cellID, Err: err}}
	}

	var outputs []string
	count := 0
	for rows.Next() {
		count++
		if count > rowCap {
			break
		}
		vals, err := rows.Values()
		if err != nil {
			return Result{Err: &notebook.QueryExecutionError{CellID: cellID, Err: err}}
		}
		line, err := shapeRow(cols, vals)
		if err != nil {
			return Result{Err: &notebook.QueryExecutionError{CellID: cellID, Err: err}}
		}
		outputs = append(outputs, line)
	}
	if err := rows.Err(); err != nil {
		return Result{Err: &notebook.QueryExecutionError{CellID: cellID, Err: err}}
	}

	if count > rowCap {
		outputs = append(outputs, fmt.Sprintf("[truncated to %d rows]", rowCap))
	}

	return Result{Outputs: outputs}
}

// shapeRow renders one row as a single-line JSON object {column: value}.
func shapeRow(cols []string, vals []any) (string, error) {
	obj := make(map[string]any, len(cols))
	for i, col := range cols {
		obj[col] = normalize(vals[i])
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// normalize converts driver-returned values ([]byte for text columns in
// particular) into JSON-friendly Go values.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
