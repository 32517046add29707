package dbpool

import (
	"context"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver, as internal/adapter/duckdb.go registers it
)

// newDuckDBBackend opens a DuckDB-backed pool. An empty path (a bare
// "duckdb:" DSN) is replaced with ":memory:", which the driver treats as an
// in-memory database — the same convention
// internal/adapter.DuckDBAdapter.Connect uses. This lets a notebook query
// against a local DuckDB file with no external server, as an alternate to
// the Postgres default (§4.D.1).
func newDuckDBBackend(ctx context.Context, path string) (Backend, error) {
	if path == "" {
		path = ":memory:"
	}
	b, err := newSQLBackend("duckdb", path)
	if err != nil {
		return nil, err
	}
	if err := b.Ping(ctx); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}
