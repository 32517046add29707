package dbpool

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// postgresBackend is the default networked backend (§4.D.1), one
// *pgxpool.Pool per DSN.
type postgresBackend struct {
	pool *pgxpool.Pool
}

// DefaultMaxConns bounds each Postgres pool's size; zero leaves pgxpool's
// own default in place. Set once at startup from the server's ambient
// config (§1.1's "default pool size"), never per-notebook.
var DefaultMaxConns int32

func newPostgresBackend(ctx context.Context, dsn string) (Backend, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if DefaultMaxConns > 0 {
		cfg.MaxConns = DefaultMaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Acquire(ctx context.Context) (Conn, error) {
	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &pgxConnAdapter{c: conn}, nil
}

func (b *postgresBackend) Ping(ctx context.Context) error {
	return b.pool.Ping(ctx)
}

func (b *postgresBackend) Close() {
	b.pool.Close()
}

type pgxConnAdapter struct {
	c *pgxpool.Conn
}

func (a *pgxConnAdapter) Query(ctx context.Context, query string) (Rows, error) {
	rows, err := a.c.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return &pgxRowsAdapter{r: rows}, nil
}

func (a *pgxConnAdapter) Release() { a.c.Release() }

type pgxRowsAdapter struct {
	r pgx.Rows
}

func (a *pgxRowsAdapter) Columns() ([]string, error) {
	fds := a.r.FieldDescriptions()
	names := make([]string, len(fds))
	for i, fd := range fds {
		names[i] = string(fd.Name)
	}
	return names, nil
}

func (a *pgxRowsAdapter) Next() bool               { return a.r.Next() }
func (a *pgxRowsAdapter) Values() ([]any, error)   { return a.r.Values() }
func (a *pgxRowsAdapter) Err() error               { return a.r.Err() }
func (a *pgxRowsAdapter) Close()                   { a.r.Close() }
