// Package dbpool manages lazy, DSN-keyed pooled connections to the
// relational query backend (spec.md §4.D). Each DSN gets its own pool,
// created on first use and closed on invalidation. The package generalizes
// the teacher's adapter.Adapter interface (internal/adapter/adapter.go)
// from a single configured connection to a DSN-keyed set of pools, two of
// which — Postgres and DuckDB — are wired in (§4.D.1).
package dbpool

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Rows abstracts a driver-specific result set down to the shape the query
// executor needs: column names and row values as Go values.
type Rows interface {
	Columns() ([]string, error)
	Next() bool
	Values() ([]any, error)
	Err() error
	Close()
}

// Conn is a single acquired connection, released back to its pool when
// done.
type Conn interface {
	Query(ctx context.Context, query string) (Rows, error)
	Release()
}

// Backend is one DSN's pool. Acquire/Release mirror the teacher's
// adapter.Adapter.Connect/Close lifecycle but per-query instead of
// per-process, matching spec.md §4.D ("connections acquired per query,
// released on completion").
type Backend interface {
	Acquire(ctx context.Context) (Conn, error)
	Ping(ctx context.Context) error
	Close()
}

// BackendFactory constructs a Backend for a DSN; swappable for tests.
type BackendFactory func(ctx context.Context, dsn string) (Backend, error)

// Manager is the DSN-keyed pool manager. Concurrent first-uses of the same
// DSN collapse into a single Backend construction via
// golang.org/x/sync/singleflight, per SPEC_FULL.md §1.1.
type Manager struct {
	mu      sync.Mutex
	pools   map[string]Backend
	sf      singleflight.Group
	factory BackendFactory
}

// NewManager returns a Manager that builds backends with DefaultFactory,
// selecting Postgres or DuckDB by DSN scheme (§4.D.1).
func NewManager() *Manager {
	return &Manager{
		pools:   make(map[string]Backend),
		factory: DefaultFactory,
	}
}

// NewManagerWithFactory is used by tests to inject a fake/sqlmock-backed
// Backend without a live database.
func NewManagerWithFactory(factory BackendFactory) *Manager {
	return &Manager{
		pools:   make(map[string]Backend),
		factory: factory,
	}
}

// GetPool returns the pool for dsn, creating it lazily on first use.
func (m *Manager) GetPool(ctx context.Context, dsn string) (Backend, error) {
	if dsn == "" {
		return nil, fmt.Errorf("no DSN configured")
	}

	m.mu.Lock()
	if p, ok := m.pools[dsn]; ok {
		m.mu.Unlock()
		return p, nil
	}
	m.mu.Unlock()

	v, err, _ := m.sf.Do(dsn, func() (any, error) {
		m.mu.Lock()
		if p, ok := m.pools[dsn]; ok {
			m.mu.Unlock()
			return p, nil
		}
		m.mu.Unlock()

		backend, err := m.factory(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to create pool: %w", err)
		}

		m.mu.Lock()
		m.pools[dsn] = backend
		m.mu.Unlock()
		return backend, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Backend), nil
}

// TestResult is the {ok, message} shape spec.md §4.D's test(dsn) returns.
type TestResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Test opens a connection and issues SELECT 1, wrapping any error into
// TestResult instead of returning it, per spec.md §4.D.
func (m *Manager) Test(ctx context.Context, dsn string) TestResult {
	pool, err := m.GetPool(ctx, dsn)
	if err != nil {
		return TestResult{OK: false, Message: err.Error()}
	}
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return TestResult{OK: false, Message: err.Error()}
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, "SELECT 1")
	if err != nil {
		return TestResult{OK: false, Message: err.Error()}
	}
	defer rows.Close()
	if err := rows.Err(); err != nil {
		return TestResult{OK: false, Message: err.Error()}
	}
	return TestResult{OK: true, Message: "connection OK"}
}

// Invalidate closes and drops dsn's pool, per spec.md §4.D ("closed on DSN
// change or shutdown").
func (m *Manager) Invalidate(dsn string) {
	m.mu.Lock()
	p, ok := m.pools[dsn]
	if ok {
		delete(m.pools, dsn)
	}
	m.mu.Unlock()
	if ok {
		p.Close()
	}
}

// CloseAll invalidates every pool, used on server shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	pools := m.pools
	m.pools = make(map[string]Backend)
	m.mu.Unlock()
	for _, p := range pools {
		p.Close()
	}
}

// DefaultFactory builds a Postgres pool unless the DSN uses the duckdb:
// scheme, per §4.D.1.
func DefaultFactory(ctx context.Context, dsn string) (Backend, error) {
	if strings.HasPrefix(dsn, "duckdb:") {
		return newDuckDBBackend(ctx, strings.TrimPrefix(dsn, "duckdb:"))
	}
	return newPostgresBackend(ctx, dsn)
}
