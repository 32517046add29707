// Package scheduler is the run orchestrator of spec.md §4.G: one exclusive
// run lock, topological re-execution of the impacted subgraph, and the
// passthrough mutations (create/update/delete/settings/test-connection)
// that must serialize against it. It generalizes the teacher's
// engine.Engine.Run/RunSelected (internal/engine/run.go) two-phase
// validate-then-execute shape — here analyze-then-execute — and is
// grounded step-for-step on
// original_source/backend/app/runtime/scheduler.py's Scheduler.run_cell.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/leapstack-labs/leapsql/internal/analysis"
	"github.com/leapstack-labs/leapsql/internal/dbpool"
	"github.com/leapstack-labs/leapsql/internal/depgraph"
	"github.com/leapstack-labs/leapsql/internal/events"
	"github.com/leapstack-labs/leapsql/internal/exec/imperative"
	"github.com/leapstack-labs/leapsql/internal/exec/query"
	"github.com/leapstack-labs/leapsql/internal/notebook"
)

// Scheduler owns the run lock (spec.md §5): both Run and every passthrough
// mutation acquire it for the duration of their mutation-plus-event-emission,
// so REST handlers never race a concurrent run.
type Scheduler struct {
	mu   sync.Mutex
	repo notebook.Repository
	ns   *notebook.Namespace
	bus  *events.Bus
	pool *dbpool.Manager

	imperativeTimeout time.Duration
	queryTimeout      time.Duration
	rowCap            int

	nextRunID int64
}

// New returns a Scheduler wired to the given repository, shared namespace,
// event bus, and pool manager. Zero timeouts/rowCap fall back to each
// executor's own default.
func New(repo notebook.Repository, ns *notebook.Namespace, bus *events.Bus, pool *dbpool.Manager, imperativeTimeout, queryTimeout time.Duration, rowCap int) *Scheduler {
	return &Scheduler{
		repo:              repo,
		ns:                ns,
		bus:               bus,
		pool:              pool,
		imperativeTimeout: imperativeTimeout,
		queryTimeout:      queryTimeout,
		rowCap:            rowCap,
	}
}

// RunStartedPayload, CellStatusPayload, CellOutputPayload, CellErrorPayload,
// and RunFinishedPayload are the event payload shapes spec.md §4.H/§6
// names; internal/httpapi marshals them as the SSE data field verbatim.
type RunStartedPayload struct {
	RunID   int64  `json:"runId"`
	Trigger string `json:"trigger"`
}

type CellStatusPayload struct {
	CellID string               `json:"cellId"`
	Status notebook.CellStatus  `json:"status"`
}

type CellOutputPayload struct {
	CellID  string   `json:"cellId"`
	Outputs []string `json:"outputs"`
}

type CellErrorPayload struct {
	CellID string `json:"cellId"`
	Error  string `json:"error"`
}

type RunFinishedPayload struct {
	RunID   int64  `json:"runId"`
	Trigger string `json:"trigger"`
}

// Run executes spec.md §4.G's run(trigger) in its mandated order and
// returns the run id assigned to it.
func (s *Scheduler) Run(ctx context.Context, trigger string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	runID := s.nextRunID + 1
	s.nextRunID = runID

	s.bus.Publish(events.Event{Type: events.TypeRunStarted, RunID: runID, Payload: RunStartedPayload{RunID: runID, Trigger: trigger}})

	// Capture each cell's last-known defs before re-analysis overwrites
	// them, so step 5 can clear exactly what the *previous* run bound,
	// per spec.md §4.G step 5.
	cellsBefore := s.repo.ListCells()
	oldDefs := make(map[string][]string, len(cellsBefore))
	for _, c := range cellsBefore {
		oldDefs[c.ID] = c.Defs
	}

	// Step 2: re-analyze every cell, writing refreshed (defs, refs) back.
	for _, c := range cellsBefore {
		var defs, refs []string
		var analysisErr error
		switch c.Type {
		case notebook.CellImperative:
			defs, refs, analysisErr = analysis.AnalyzeImperative(c.Code)
		case notebook.CellQuery:
			refs = analysis.AnalyzeQuery(c.Code)
		}
		if analysisErr != nil {
			// Parse failures never reach here (AnalyzeImperative returns
			// nil error on parse failure per spec.md §4.B); kept for
			// forward-compatibility with a stricter analyzer.
			defs, refs = nil, nil
		}
		s.repo.UpdateCell(c.ID, notebook.CellPatch{Defs: &defs, Refs: &refs})
	}

	// Step 3: rebuild the graph.
	cells := s.repo.ListCells()
	graph, buildErrs := depgraph.Build(depgraph.FromCells(cells))
	if len(buildErrs) > 0 {
		// Skip straight to step 8: no cell executes and no run_finished
		// is emitted.
		s.failGraphErrors(runID, buildErrs)
		return runID
	}

	// Step 4: impacted set = descendants(trigger), inclusive, topologically
	// ordered with the graph's (order, id) tie-break.
	impacted := graph.Descendants(trigger)
	ordered, err := graph.TopologicalOrder(impacted)
	if err != nil {
		// The full-graph build already proved acyclicity; a restricted
		// subset cannot introduce a new cycle. Guarded defensively.
		ordered = impacted
	}

	// Step 5: clear stale names for every impacted cell.
	for _, id := range ordered {
		s.ns.DeleteAll(oldDefs[id])
	}

	// Step 6: execute in order, tracking poisoned (failed-or-skipped) cells
	// so a transitive chain skips in full (§4.G.1's skip-propagation fix).
	poisoned := make(map[string]struct{})
	for _, id := range ordered {
		cell, ok := s.repo.GetCell(id)
		if !ok {
			continue
		}

		if s.anyParentPoisoned(graph, id, poisoned) {
			poisoned[id] = struct{}{}
			empty := []string{}
			s.repo.UpdateCell(id, notebook.CellPatch{Status: statusPtr(notebook.StatusIdle), Outputs: &empty, ClearErr: true})
			s.bus.Publish(events.Event{Type: events.TypeCellStatus, RunID: runID, Payload: CellStatusPayload{CellID: id, Status: notebook.StatusIdle}})
			continue
		}

		s.repo.UpdateCell(id, notebook.CellPatch{Status: statusPtr(notebook.StatusRunning)})
		s.bus.Publish(events.Event{Type: events.TypeCellStatus, RunID: runID, Payload: CellStatusPayload{CellID: id, Status: notebook.StatusRunning}})

		outputs, execErr := s.executeCell(ctx, cell)
		if execErr != nil {
			msg := execErr.Error()
			empty := []string{}
			s.repo.UpdateCell(id, notebook.CellPatch{Outputs: &empty, Error: &msg, Status: statusPtr(notebook.StatusError)})
			s.bus.Publish(events.Event{Type: events.TypeCellError, RunID: runID, Payload: CellErrorPayload{CellID: id, Error: msg}})
			s.bus.Publish(events.Event{Type: events.TypeCellStatus, RunID: runID, Payload: CellStatusPayload{CellID: id, Status: notebook.StatusError}})
			poisoned[id] = struct{}{}
			s.ns.DeleteAll(cell.Defs)
			continue
		}

		s.repo.UpdateCell(id, notebook.CellPatch{Outputs: &outputs, ClearErr: true, Status: statusPtr(notebook.StatusSuccess)})
		s.bus.Publish(events.Event{Type: events.TypeCellOutput, RunID: runID, Payload: CellOutputPayload{CellID: id, Outputs: outputs}})
		s.bus.Publish(events.Event{Type: events.TypeCellStatus, RunID: runID, Payload: CellStatusPayload{CellID: id, Status: notebook.StatusSuccess}})
	}

	// Step 7: run_finished.
	s.bus.Publish(events.Event{Type: events.TypeRunFinished, RunID: runID, Payload: RunFinishedPayload{RunID: runID, Trigger: trigger}})
	return runID
	// Step 8 (release the run lock) happens via the deferred Unlock above.
}

// anyParentPoisoned reports whether id has a direct parent already marked
// poisoned. Execution proceeds in topological order, so a poisoned
// ancestor further up the chain has already poisoned its own children
// before id is reached — checking direct parents alone is therefore
// sufficient to propagate transitively.
func (s *Scheduler) anyParentPoisoned(g *depgraph.Graph, id string, poisoned map[string]struct{}) bool {
	for _, p := range g.Parents(id) {
		if _, ok := poisoned[p]; ok {
			return true
		}
	}
	return false
}

func (s *Scheduler) executeCell(ctx context.Context, cell *notebook.Cell) ([]string, error) {
	switch cell.Type {
	case notebook.CellImperative:
		res := imperative.Execute(cell.ID, cell.Code, s.ns, s.imperativeTimeout)
		return res.Outputs, res.Err
	case notebook.CellQuery:
		dsn := ""
		if settings := s.repo.GetSettings(); settings.DSN != nil {
			dsn = *settings.DSN
		}
		res := query.Execute(ctx, cell.ID, cell.Code, s.ns, s.pool, dsn, s.queryTimeout, s.rowCap)
		return res.Outputs, res.Err
	default:
		return nil, fmt.Errorf("unknown cell type %q", cell.Type)
	}
}

// failGraphErrors implements step 3's failure path: every cell named by a
// duplicate-definition or cycle error is marked status=error with a
// diagnostic naming its peers, and both cell_status and cell_error are
// emitted for each.
func (s *Scheduler) failGraphErrors(runID int64, errs []error) {
	for _, err := range errs {
		switch e := err.(type) {
		case *depgraph.DuplicateDefinitionError:
			for _, id := range e.Cells {
				peers := make([]string, 0, len(e.Cells)-1)
				for _, other := range e.Cells {
					if other != id {
						peers = append(peers, other)
					}
				}
				diag := &notebook.DuplicateDefinitionError{Name: e.Name, CellID: id, PeerIDs: peers}
				s.markCellError(runID, id, diag.Error())
			}
		case *depgraph.CycleError:
			for _, id := range e.Cells {
				diag := &notebook.CycleError{CellID: id, Cycle: e.Cells}
				s.markCellError(runID, id, diag.Error())
			}
		}
	}
}

func (s *Scheduler) markCellError(runID int64, id, msg string) {
	empty := []string{}
	s.repo.UpdateCell(id, notebook.CellPatch{Outputs: &empty, Error: &msg, Status: statusPtr(notebook.StatusError)})
	s.bus.Publish(events.Event{Type: events.TypeCellError, RunID: runID, Payload: CellErrorPayload{CellID: id, Error: msg}})
	s.bus.Publish(events.Event{Type: events.TypeCellStatus, RunID: runID, Payload: CellStatusPayload{CellID: id, Status: notebook.StatusError}})
}

func statusPtr(s notebook.CellStatus) *notebook.CellStatus { return &s }

// --- Passthroughs: create/update/delete/settings each serialize their
// mutation plus notebook_state publish against the run lock, per spec.md §5
// and §4.G's opening line. The read-only passthroughs (GetCell,
// TestConnection, Snapshot) take no lock and publish nothing. ---

func (s *Scheduler) CreateCell(typ notebook.CellType, code string) *notebook.Cell {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.repo.InsertCell(typ, code)
	s.publishState()
	return c
}

func (s *Scheduler) UpdateCell(id string, patch notebook.CellPatch) (*notebook.Cell, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.repo.UpdateCell(id, patch)
	if ok {
		s.publishState()
	}
	return c, ok
}

// GetCell is a read-only passthrough used by the HTTP layer to validate a
// trigger id before starting a run.
func (s *Scheduler) GetCell(id string) (*notebook.Cell, bool) {
	return s.repo.GetCell(id)
}

// DeleteCell removes a cell and, per spec.md §4.G step 5, immediately
// clears that cell's last-known defs from the namespace — it does not wait
// for the next run.
func (s *Scheduler) DeleteCell(id string) (*notebook.Cell, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.repo.DeleteCell(id)
	if ok {
		s.ns.DeleteAll(c.Defs)
		s.publishState()
	}
	return c, ok
}

// SaveSettings invalidates the old DSN's pool on change, per spec.md §4.D
// ("invalidated on settings change") and §5 ("pools ... invalidated on
// settings change").
func (s *Scheduler) SaveSettings(settings notebook.NotebookSettings) notebook.NotebookSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.repo.GetSettings()
	result := s.repo.PutSettings(settings)
	if old.DSN != nil && (settings.DSN == nil || *old.DSN != *settings.DSN) {
		s.pool.Invalidate(*old.DSN)
	}
	s.publishState()
	return result
}

func (s *Scheduler) TestConnection(ctx context.Context) dbpool.TestResult {
	settings := s.repo.GetSettings()
	if settings.DSN == nil || *settings.DSN == "" {
		return dbpool.TestResult{OK: false, Message: "no DSN configured"}
	}
	return s.pool.Test(ctx, *settings.DSN)
}

func (s *Scheduler) Snapshot() notebook.Notebook {
	return s.repo.Snapshot()
}

func (s *Scheduler) publishState() {
	s.bus.Publish(events.Event{Type: events.TypeNotebookState, Payload: s.repo.Snapshot()})
}
