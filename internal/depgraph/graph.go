// Package depgraph builds the per-run cell dependency graph: adjacency from
// (defs, refs) across cells, descendant computation, and a deterministic
// topological order. It generalizes the teacher's internal/dag.Graph (same
// adjacency/inverse-adjacency shape, same DFS cycle detection and Kahn-style
// sort) from model-ref edges to cell-defs/cell-refs edges, and is rebuilt
// fresh on every scheduler run (spec.md §9: "ephemeral, owned by the
// scheduler for the duration of a run").
package depgraph

import (
	"sort"

	"github.com/leapstack-labs/leapsql/internal/notebook"
)

// CellNode is the minimal view the graph needs from a notebook.Cell.
type CellNode struct {
	ID    string
	Order int
	Defs  []string
	Refs  []string
}

// Graph is the adjacency built from one notebook snapshot. An edge A->B
// means B refs some name A defs.
type Graph struct {
	nodes    map[string]CellNode
	children map[string][]string // parent -> children (dependents)
	parents  map[string][]string // child -> parents (dependencies)
}

// DuplicateDefinitionError and CycleError mirror notebook's error kinds but
// carry the full set of colliding cells the graph build discovered, so the
// scheduler can mark every one of them (spec.md §4.C).
type DuplicateDefinitionError struct {
	Name  string
	Cells []string
}

func (e *DuplicateDefinitionError) Error() string {
	return "duplicate definition of " + e.Name
}

type CycleError struct {
	Cells []string
}

func (e *CycleError) Error() string {
	return "cyclic dependency detected"
}

// Build constructs the graph from the given cells. Per spec.md §4.C, an
// unresolved ref (no cell defines it) is not a build error; only a name
// defined by two or more cells is, and it's reported once, naming every
// colliding cell.
func Build(cells []CellNode) (*Graph, []error) {
	g := &Graph{
		nodes:    make(map[string]CellNode, len(cells)),
		children: make(map[string][]string, len(cells)),
		parents:  make(map[string][]string, len(cells)),
	}

	defOwners := make(map[string][]string) // name -> cell ids that define it
	for _, c := range cells {
		g.nodes[c.ID] = c
		g.children[c.ID] = nil
		g.parents[c.ID] = nil
		for _, name := range c.Defs {
			defOwners[name] = append(defOwners[name], c.ID)
		}
	}

	var errs []error
	duplicated := make(map[string]struct{})
	for name, owners := range defOwners {
		if len(owners) > 1 {
			sort.Strings(owners)
			errs = append(errs, &DuplicateDefinitionError{Name: name, Cells: owners})
			for _, id := range owners {
				duplicated[id] = struct{}{}
			}
		}
	}

	for _, c := range cells {
		for _, name := range c.Refs {
			owners := defOwners[name]
			if len(owners) != 1 {
				// Unresolved (0 owners) or ambiguous (>1, already
				// reported above) — no edge is added either way.
				continue
			}
			owner := owners[0]
			if owner == c.ID {
				continue
			}
			g.addEdge(owner, c.ID)
		}
	}

	if cycle := g.findCycle(); cycle != nil {
		errs = append(errs, &CycleError{Cells: cycle})
	}

	sort.Slice(errs, func(i, j int) bool {
		return errorSortKey(errs[i]) < errorSortKey(errs[j])
	})

	return g, errs
}

func errorSortKey(err error) string {
	switch e := err.(type) {
	case *DuplicateDefinitionError:
		return "0:" + e.Name
	case *CycleError:
		return "1"
	default:
		return "2"
	}
}

func (g *Graph) addEdge(parent, child string) {
	if !contains(g.children[parent], child) {
		g.children[parent] = append(g.children[parent], child)
	}
	if !contains(g.parents[child], parent) {
		g.parents[child] = append(g.parents[child], parent)
	}
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// Parents returns the direct ancestors (dependencies) of a cell.
func (g *Graph) Parents(id string) []string { return g.parents[id] }

// Children returns the direct descendants (dependents) of a cell.
func (g *Graph) Children(id string) []string { return g.children[id] }

// Descendants returns the trigger cell plus every cell transitively
// depending on it (spec.md §4.C).
func (g *Graph) Descendants(trigger string) []string {
	visited := make(map[string]struct{})
	var order []string
	var visit func(id string)
	visit = func(id string) {
		if _, ok := visited[id]; ok {
			return
		}
		visited[id] = struct{}{}
		order = append(order, id)
		for _, child := range g.children[id] {
			visit(child)
		}
	}
	if _, ok := g.nodes[trigger]; ok {
		visit(trigger)
	}
	return order
}

// TopologicalOrder returns the given node set ordered so every edge A->B
// has index(A) < index(B), tie-broken by (order, id) for determinism
// (spec.md §4.C). Returns a CycleError if the restricted subgraph itself
// contains a cycle.
func (g *Graph) TopologicalOrder(nodeIDs []string) ([]string, error) {
	set := make(map[string]struct{}, len(nodeIDs))
	for _, id := range nodeIDs {
		set[id] = struct{}{}
	}

	inDegree := make(map[string]int, len(nodeIDs))
	for id := range set {
		inDegree[id] = 0
	}
	for id := range set {
		for _, p := range g.parents[id] {
			if _, ok := set[p]; ok {
				inDegree[id]++
			}
		}
	}

	ready := make([]string, 0, len(nodeIDs))
	for id := range set {
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	sortByOrderThenID(ready, g.nodes)

	var result []string
	for len(ready) > 0 {
		sortByOrderThenID(ready, g.nodes)
		next := ready[0]
		ready = ready[1:]
		result = append(result, next)

		for _, child := range g.children[next] {
			if _, ok := set[child]; !ok {
				continue
			}
			inDegree[child]--
			if inDegree[child] == 0 {
				ready = append(ready, child)
			}
		}
	}

	if len(result) != len(nodeIDs) {
		var remaining []string
		for id, deg := range inDegree {
			if deg > 0 {
				remaining = append(remaining, id)
			}
		}
		sort.Strings(remaining)
		return nil, &CycleError{Cells: remaining}
	}

	return result, nil
}

func sortByOrderThenID(ids []string, nodes map[string]CellNode) {
	sort.Slice(ids, func(i, j int) bool {
		ni, nj := nodes[ids[i]], nodes[ids[j]]
		if ni.Order != nj.Order {
			return ni.Order < nj.Order
		}
		return ids[i] < ids[j]
	})
}

// FromCells adapts a slice of *notebook.Cell into the CellNode shape Build
// expects.
func FromCells(cells []*notebook.Cell) []CellNode {
	nodes := make([]CellNode, 0, len(cells))
	for _, c := range cells {
		nodes = append(nodes, CellNode{
			ID:    c.ID,
			Order: c.Order,
			Defs:  c.Defs,
			Refs:  c.Refs,
		})
	}
	return nodes
}

func (g *Graph) findCycle() []string {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(g.nodes))
	var stack []string
	var cycle []string

	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var dfs func(id string) bool
	dfs = func(id string) bool {
		state[id] = visiting
		stack = append(stack, id)

		children := append([]string(nil), g.children[id]...)
		sort.Strings(children)
		for _, child := range children {
			switch state[child] {
			case unvisited:
				if dfs(child) {
					return true
				}
			case visiting:
				// Found the cycle: slice the stack from child's first
				// occurrence to the end.
				for i, s := range stack {
					if s == child {
						cycle = append([]string(nil), stack[i:]...)
						break
					}
				}
				return true
			}
		}

		stack = stack[:len(stack)-1]
		state[id] = done
		return false
	}

	for _, id := range ids {
		if state[id] == unvisited {
			if dfs(id) {
				sort.Strings(cycle)
				return cycle
			}
		}
	}
	return nil
}
