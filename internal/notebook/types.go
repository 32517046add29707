// Package notebook holds the in-memory notebook repository: cells, settings,
// and the shared namespace that imperative cells populate and query cells
// read from.
package notebook

import (
	"sort"

	"github.com/google/uuid"
)

// CellType identifies which executor a cell's code runs under.
type CellType string

const (
	CellImperative CellType = "imperative"
	CellQuery      CellType = "query"
)

// CellStatus tracks the outcome of a cell's most recent execution attempt.
type CellStatus string

const (
	StatusIdle    CellStatus = "idle"
	StatusRunning CellStatus = "running"
	StatusSuccess CellStatus = "success"
	StatusError   CellStatus = "error"
)

// Cell is one unit of notebook source plus the state of its last run.
type Cell struct {
	ID       string     `json:"id"`
	Type     CellType   `json:"type"`
	Code     string     `json:"code"`
	Order    int        `json:"order"`
	Status   CellStatus `json:"status"`
	Outputs  []string   `json:"outputs"`
	Error    *string    `json:"error"`
	Defs     []string   `json:"defs"`
	Refs     []string   `json:"refs"`
}

// Clone returns a deep copy so callers can't mutate repository state through
// an alias.
func (c *Cell) Clone() *Cell {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Outputs = append([]string(nil), c.Outputs...)
	cp.Defs = append([]string(nil), c.Defs...)
	cp.Refs = append([]string(nil), c.Refs...)
	if c.Error != nil {
		e := *c.Error
		cp.Error = &e
	}
	return &cp
}

// DefSet and RefSet as map[string]struct{} views, used by analyzers/graph.
func (c *Cell) DefSet() map[string]struct{} { return toSet(c.Defs) }
func (c *Cell) RefSet() map[string]struct{} { return toSet(c.Refs) }

func toSet(names []string) map[string]struct{} {
	s := make(map[string]struct{}, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// NotebookSettings holds the one piece of notebook-scoped runtime
// configuration: the query backend's DSN.
type NotebookSettings struct {
	DSN *string `json:"dsn"`
}

// Notebook is the settings plus the ordered list of cells, as returned to
// clients by GET /notebook.
type Notebook struct {
	Settings NotebookSettings `json:"settings"`
	Cells    []*Cell          `json:"cells"`
}

// CellPatch carries the optional fields a PATCH may update on a cell.
type CellPatch struct {
	Code   *string
	Type   *CellType
	Order  *int
	Status *CellStatus
	// Outputs/Error/Defs/Refs are written by the scheduler, never by a
	// PATCH request body, but share the same update path.
	Outputs *[]string
	Error   *string
	ClearErr bool
	Defs    *[]string
	Refs    *[]string
}

// NewID returns a fresh cell identifier.
func NewID() string { return uuid.New().String() }

// SortCells orders cells by (order, id), the total order spec.md §3
// Invariant 1 requires.
func SortCells(cells []*Cell) {
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Order != cells[j].Order {
			return cells[i].Order < cells[j].Order
		}
		return cells[i].ID < cells[j].ID
	})
}
