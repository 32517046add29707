package scheduler

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/leapsql/internal/dbpool"
	"github.com/leapstack-labs/leapsql/internal/events"
	"github.com/leapstack-labs/leapsql/internal/notebook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler() (*Scheduler, notebook.Repository, *events.Bus) {
	repo := notebook.NewMemoryRepository()
	bus := events.New(64, func() any { return repo.Snapshot() })
	pool := dbpool.NewManager()
	s := New(repo, notebook.NewNamespace(), bus, pool, 0, 0, 0)
	return s, repo, bus
}

func analyzeAndInsert(t *testing.T, repo notebook.Repository, code string) *notebook.Cell {
	t.Helper()
	return repo.InsertCell(notebook.CellImperative, code)
}

// Scenario 1 (spec.md §8): cascade re-execution on edit.
func TestRun_Cascade(t *testing.T) {
	s, repo, _ := newTestScheduler()
	a := analyzeAndInsert(t, repo, "x = 10")
	analyzeAndInsert(t, repo, "y = x + 5")
	analyzeAndInsert(t, repo, "z = y * 2")

	s.Run(context.Background(), a.ID)

	snap := s.Snapshot()
	require.Len(t, snap.Cells, 3)
	for _, c := range snap.Cells {
		assert.Equal(t, notebook.StatusSuccess, c.Status)
	}

	repo.UpdateCell(a.ID, notebook.CellPatch{Code: strPtr("x = 20")})
	s.Run(context.Background(), a.ID)

	v, ok := s.ns.Get("x")
	require.True(t, ok)
	assert.Equal(t, int64(20), v.Int)
	v, ok = s.ns.Get("y")
	require.True(t, ok)
	assert.Equal(t, int64(25), v.Int)
	v, ok = s.ns.Get("z")
	require.True(t, ok)
	assert.Equal(t, int64(50), v.Int)
}

// Scenario 3 (spec.md §8): skip closure across a transitive chain.
func TestRun_SkipClosure(t *testing.T) {
	s, repo, _ := newTestScheduler()
	a := analyzeAndInsert(t, repo, "x = 5")
	b := analyzeAndInsert(t, repo, "y = x + 5")
	c := analyzeAndInsert(t, repo, "z = y * 2")
	d := analyzeAndInsert(t, repo, "w = 100")

	s.Run(context.Background(), a.ID)
	s.Run(context.Background(), d.ID)
	s.DeleteCell(a.ID)
	s.Run(context.Background(), b.ID)

	bCell, _ := repo.GetCell(b.ID)
	cCell, _ := repo.GetCell(c.ID)
	dCell, _ := repo.GetCell(d.ID)

	assert.Equal(t, notebook.StatusError, bCell.Status)
	assert.Equal(t, notebook.StatusIdle, cCell.Status)
	assert.Nil(t, cCell.Error)
	assert.Equal(t, notebook.StatusSuccess, dCell.Status)
}

// Scenario 5 (spec.md §8): duplicate definition fails both cells.
func TestRun_DuplicateDefinition(t *testing.T) {
	s, repo, _ := newTestScheduler()
	a := analyzeAndInsert(t, repo, "x = 1")
	b := analyzeAndInsert(t, repo, "x = 2")

	s.Run(context.Background(), a.ID)

	aCell, _ := repo.GetCell(a.ID)
	bCell, _ := repo.GetCell(b.ID)
	assert.Equal(t, notebook.StatusError, aCell.Status)
	assert.Equal(t, notebook.StatusError, bCell.Status)
	require.NotNil(t, aCell.Error)
	assert.Contains(t, *aCell.Error, "duplicate definition")
}

func TestRun_FailedCellClearsItsOwnDefs(t *testing.T) {
	s, repo, _ := newTestScheduler()
	a := analyzeAndInsert(t, repo, "x = undefined_name")

	s.Run(context.Background(), a.ID)

	_, ok := s.ns.Get("x")
	assert.False(t, ok)
}

func TestDeleteCell_ClearsNamespaceImmediately(t *testing.T) {
	s, repo, _ := newTestScheduler()
	a := analyzeAndInsert(t, repo, "x = 1")
	s.Run(context.Background(), a.ID)

	_, ok := s.ns.Get("x")
	require.True(t, ok)

	s.DeleteCell(a.ID)
	_, ok = s.ns.Get("x")
	assert.False(t, ok)
}

// Scenario 4 (spec.md §8): an imperative cell's value flows into a query
// cell's placeholder.
func TestRun_QueryCellInterpolatesFromNamespace(t *testing.T) {
	repo := notebook.NewMemoryRepository()
	bus := events.New(64, func() any { return repo.Snapshot() })

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery("SELECT \\* FROM users WHERE id = 123").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(123, "Alice"))

	pool := dbpool.NewManagerWithFactory(func(_ context.Context, _ string) (dbpool.Backend, error) {
		return dbpool.NewSQLMockBackend(db), nil
	})
	dsn := "dsn-a"
	s := New(repo, notebook.NewNamespace(), bus, pool, 0, 0, 0)
	s.SaveSettings(notebook.NotebookSettings{DSN: &dsn})

	setter := repo.InsertCell(notebook.CellImperative, "user_id = 123")
	queryCell := repo.InsertCell(notebook.CellQuery, "SELECT * FROM users WHERE id = {{user_id}}")

	s.Run(context.Background(), setter.ID)

	qCell, _ := repo.GetCell(queryCell.ID)
	require.Equal(t, notebook.StatusSuccess, qCell.Status)
	require.Len(t, qCell.Outputs, 1)
	assert.JSONEq(t, `{"id": 123, "name": "Alice"}`, qCell.Outputs[0])
}

func strPtr(s string) *string { return &s }
