package dbpool

import (
	"context"
	"database/sql"
)

// sqlBackend adapts any database/sql driver (DuckDB in production, go-
// sqlmock in tests — grounded on the teacher's go-sqlmock-alongside-pgx
// test pattern) to the Backend interface.
type sqlBackend struct {
	db *sql.DB
}

func newSQLBackend(driverName, dataSourceName string) (*sqlBackend, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	return &sqlBackend{db: db}, nil
}

// newSQLBackendFromDB wraps an already-open *sql.DB, used by tests that
// build their own sqlmock connection.
func newSQLBackendFromDB(db *sql.DB) *sqlBackend {
	return &sqlBackend{db: db}
}

// NewSQLMockBackend exposes newSQLBackendFromDB to other packages' tests
// (e.g. the query executor's) that need a Backend wrapping a go-sqlmock
// *sql.DB without a live database.
func NewSQLMockBackend(db *sql.DB) Backend {
	return newSQLBackendFromDB(db)
}

func (b *sqlBackend) Acquire(ctx context.Context) (Conn, error) {
	conn, err := b.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &sqlConnAdapter{c: conn}, nil
}

func (b *sqlBackend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

func (b *sqlBackend) Close() {
	_ = b.db.Close()
}

type sqlConnAdapter struct {
	c *sql.Conn
}

func (a *sqlConnAdapter) Query(ctx context.Context, query string) (Rows, error) {
	rows, err := a.c.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &sqlRowsAdapter{rows: rows}, nil
}

func (a *sqlConnAdapter) Release() {
	_ = a.c.Close()
}

type sqlRowsAdapter struct {
	rows *sql.Rows
	cols []string
}

func (a *sqlRowsAdapter) Columns() ([]string, error) {
	if a.cols == nil {
		cols, err := a.rows.Columns()
		if err != nil {
			return nil, err
		}
		a.cols = cols
	}
	return a.cols, nil
}

func (a *sqlRowsAdapter) Next() bool { return a.rows.Next() }

func (a *sqlRowsAdapter) Values() ([]any, error) {
	cols, err := a.Columns()
	if err != nil {
		return nil, err
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := a.rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	return vals, nil
}

func (a *sqlRowsAdapter) Err() error { return a.rows.Err() }
func (a *sqlRowsAdapter) Close()     { _ = a.rows.Close() }
