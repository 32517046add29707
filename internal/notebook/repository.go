package notebook

import (
	"fmt"
	"sync"
)

// Repository is the single source of truth for persisted notebook state.
// Implementations must make every method atomic with respect to every
// other method; callers serialize writes-plus-event-emission themselves
// via the scheduler's run lock (spec.md §5) — the repository only
// guarantees its own internal consistency.
type Repository interface {
	ListCells() []*Cell
	GetCell(id string) (*Cell, bool)
	InsertCell(typ CellType, code string) *Cell
	UpdateCell(id string, patch CellPatch) (*Cell, bool)
	DeleteCell(id string) (*Cell, bool)
	GetSettings() NotebookSettings
	PutSettings(s NotebookSettings) NotebookSettings
	Snapshot() Notebook
}

// MemoryRepository is the in-memory, mutex-guarded Repository implementation
// spec.md's Non-goals require ("an in-memory repository with a stated
// interface") — deliberately not backed by a database, unlike the teacher's
// SQLite-backed core.Store.
type MemoryRepository struct {
	mu       sync.Mutex
	cells    map[string]*Cell
	order    []string // insertion order as a tie-break-independent id list
	settings NotebookSettings
	nextOrd  int
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		cells: make(map[string]*Cell),
	}
}

func (r *MemoryRepository) ListCells() []*Cell {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Cell, 0, len(r.cells))
	for _, id := range r.order {
		if c, ok := r.cells[id]; ok {
			out = append(out, c.Clone())
		}
	}
	SortCells(out)
	return out
}

func (r *MemoryRepository) GetCell(id string) (*Cell, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cells[id]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

func (r *MemoryRepository) InsertCell(typ CellType, code string) *Cell {
	r.mu.Lock()
	defer r.mu.Unlock()

	maxOrder := -1
	for _, c := range r.cells {
		if c.Order > maxOrder {
			maxOrder = c.Order
		}
	}

	c := &Cell{
		ID:     NewID(),
		Type:   typ,
		Code:   code,
		Order:  maxOrder + 1,
		Status: StatusIdle,
	}
	r.cells[c.ID] = c
	r.order = append(r.order, c.ID)
	return c.Clone()
}

func (r *MemoryRepository) UpdateCell(id string, patch CellPatch) (*Cell, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.cells[id]
	if !ok {
		return nil, false
	}

	if patch.Code != nil {
		c.Code = *patch.Code
	}
	if patch.Type != nil {
		c.Type = *patch.Type
	}
	if patch.Order != nil {
		c.Order = *patch.Order
	}
	if patch.Status != nil {
		c.Status = *patch.Status
	}
	if patch.Outputs != nil {
		c.Outputs = *patch.Outputs
	}
	if patch.Error != nil {
		e := *patch.Error
		c.Error = &e
	} else if patch.ClearErr {
		c.Error = nil
	}
	if patch.Defs != nil {
		c.Defs = *patch.Defs
	}
	if patch.Refs != nil {
		c.Refs = *patch.Refs
	}

	return c.Clone(), true
}

func (r *MemoryRepository) DeleteCell(id string) (*Cell, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.cells[id]
	if !ok {
		return nil, false
	}
	delete(r.cells, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return c.Clone(), true
}

func (r *MemoryRepository) GetSettings() NotebookSettings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings
}

func (r *MemoryRepository) PutSettings(s NotebookSettings) NotebookSettings {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings = s
	return r.settings
}

func (r *MemoryRepository) Snapshot() Notebook {
	return Notebook{
		Settings: r.GetSettings(),
		Cells:    r.ListCells(),
	}
}

// ErrCellNotFound is returned by callers that need a sentinel instead of a
// bool; the Repository interface itself returns (value, ok) like the
// teacher's map-backed stores.
var ErrCellNotFound = fmt.Errorf("cell not found")
