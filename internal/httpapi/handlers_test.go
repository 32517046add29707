package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/leapstack-labs/leapsql/internal/dbpool"
	"github.com/leapstack-labs/leapsql/internal/events"
	"github.com/leapstack-labs/leapsql/internal/notebook"
	"github.com/leapstack-labs/leapsql/internal/scheduler"
	"github.com/leapstack-labs/leapsql/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestServer(t *testing.T) (*httptest.Server, *scheduler.Scheduler) {
	t.Helper()
	repo := notebook.NewMemoryRepository()
	bus := events.New(64, func() any { return repo.Snapshot() })
	pool := dbpool.NewManager()
	sched := scheduler.New(repo, notebook.NewNamespace(), bus, pool, 0, 0, 0)
	srv := New(Config{Scheduler: sched, Bus: bus, Logger: testutil.NewTestLogger(t)})
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)
	return ts, sched
}

func TestGetNotebook_EmptyByDefault(t *testing.T) {
	ts, _ := setupTestServer(t)
	resp, err := http.Get(ts.URL + "/notebook")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateCell_ReturnsCell(t *testing.T) {
	ts, _ := setupTestServer(t)
	resp, err := http.Post(ts.URL+"/notebook/cells", "application/json", bytes.NewBufferString(`{"type":"imperative","code":"x = 1"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateCell_RejectsUnknownType(t *testing.T) {
	ts, _ := setupTestServer(t)
	resp, err := http.Post(ts.URL+"/notebook/cells", "application/json", bytes.NewBufferString(`{"type":"bogus"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRunNotebook_UnknownCellIs404(t *testing.T) {
	ts, _ := setupTestServer(t)
	resp, err := http.Post(ts.URL+"/notebook/run", "application/json", bytes.NewBufferString(`{"cellId":"missing"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRunNotebook_ExecutesAndReturnsRunID(t *testing.T) {
	ts, sched := setupTestServer(t)
	c := sched.CreateCell(notebook.CellImperative, "x = 1")

	resp, err := http.Post(ts.URL+"/notebook/run", "application/json", bytes.NewBufferString(`{"cellId":"`+c.ID+`"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDeleteCell_NotFound(t *testing.T) {
	ts, _ := setupTestServer(t)
	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/notebook/cells/missing", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTestConnection_NoDSNConfigured(t *testing.T) {
	ts, _ := setupTestServer(t)
	resp, err := http.Post(ts.URL+"/notebook/test-connection", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
