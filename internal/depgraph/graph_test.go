package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(id string, order int, defs, refs []string) CellNode {
	return CellNode{ID: id, Order: order, Defs: defs, Refs: refs}
}

func TestBuild_SimpleChain(t *testing.T) {
	cells := []CellNode{
		node("a", 0, []string{"x"}, nil),
		node("b", 1, []string{"y"}, []string{"x"}),
		node("c", 2, []string{"z"}, []string{"y"}),
	}
	g, errs := Build(cells)
	assert.Empty(t, errs)
	assert.Equal(t, []string{"b"}, g.Children("a"))
	assert.Equal(t, []string{"a"}, g.Parents("b"))
}

func TestBuild_UnresolvedRefIsNotAnError(t *testing.T) {
	cells := []CellNode{
		node("a", 0, []string{"x"}, []string{"undefined_name"}),
	}
	_, errs := Build(cells)
	assert.Empty(t, errs)
}

func TestBuild_DuplicateDefinition(t *testing.T) {
	cells := []CellNode{
		node("a", 0, []string{"x"}, nil),
		node("b", 1, []string{"x"}, nil),
	}
	_, errs := Build(cells)
	require.Len(t, errs, 1)
	dup, ok := errs[0].(*DuplicateDefinitionError)
	require.True(t, ok)
	assert.Equal(t, "x", dup.Name)
	assert.ElementsMatch(t, []string{"a", "b"}, dup.Cells)
}

func TestBuild_Cycle(t *testing.T) {
	cells := []CellNode{
		node("a", 0, []string{"x"}, []string{"y"}),
		node("b", 1, []string{"y"}, []string{"x"}),
	}
	_, errs := Build(cells)
	require.Len(t, errs, 1)
	_, ok := errs[0].(*CycleError)
	assert.True(t, ok)
}

func TestDescendants_Inclusive(t *testing.T) {
	cells := []CellNode{
		node("a", 0, []string{"x"}, nil),
		node("b", 1, []string{"y"}, []string{"x"}),
		node("c", 2, []string{"z"}, []string{"y"}),
		node("d", 3, []string{"w"}, nil),
	}
	g, _ := Build(cells)
	desc := g.Descendants("a")
	assert.ElementsMatch(t, []string{"a", "b", "c"}, desc)
}

func TestTopologicalOrder_RespectsEdges(t *testing.T) {
	cells := []CellNode{
		node("c", 2, []string{"z"}, []string{"y"}),
		node("a", 0, []string{"x"}, nil),
		node("b", 1, []string{"y"}, []string{"x"}),
	}
	g, _ := Build(cells)
	order, err := g.TopologicalOrder([]string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestTopologicalOrder_TieBreakByOrderThenID(t *testing.T) {
	cells := []CellNode{
		node("z", 0, nil, nil),
		node("a", 0, nil, nil),
		node("m", 0, nil, nil),
	}
	g, _ := Build(cells)
	order, err := g.TopologicalOrder([]string{"z", "a", "m"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "m", "z"}, order)
}

func TestTopologicalOrder_CycleWithinSubset(t *testing.T) {
	cells := []CellNode{
		node("a", 0, []string{"x"}, []string{"y"}),
		node("b", 1, []string{"y"}, []string{"x"}),
	}
	g, buildErrs := Build(cells)
	require.Len(t, buildErrs, 1) // the build itself already reports the cycle

	_, err := g.TopologicalOrder([]string{"a", "b"})
	assert.Error(t, err)
}

func TestBuild_ScenarioCascade(t *testing.T) {
	// A=x=10, B=y=x+5, C=z=y*2
	cells := []CellNode{
		node("A", 0, []string{"x"}, nil),
		node("B", 1, []string{"y"}, []string{"x"}),
		node("C", 2, []string{"z"}, []string{"y"}),
	}
	g, errs := Build(cells)
	require.Empty(t, errs)
	order, err := g.TopologicalOrder(g.Descendants("A"))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, order)
}
