package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzeImperative_SimpleAssign(t *testing.T) {
	defs, refs, err := AnalyzeImperative("x = 10")
	assert.NoError(t, err)
	assert.Equal(t, []string{"x"}, defs)
	assert.Empty(t, refs)
}

func TestAnalyzeImperative_RefChain(t *testing.T) {
	defs, refs, err := AnalyzeImperative("y = x + 5")
	assert.NoError(t, err)
	assert.Equal(t, []string{"y"}, defs)
	assert.Equal(t, []string{"x"}, refs)
}

func TestAnalyzeImperative_TupleDestructure(t *testing.T) {
	defs, refs, err := AnalyzeImperative("a, b = 1, 2")
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, defs)
	assert.Empty(t, refs)
}

func TestAnalyzeImperative_ListDestructure(t *testing.T) {
	defs, _, err := AnalyzeImperative("[a, b] = pair")
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, defs)
}

func TestAnalyzeImperative_AugmentedAssign(t *testing.T) {
	defs, refs, err := AnalyzeImperative("total = 0\ntotal += 1")
	assert.NoError(t, err)
	assert.Equal(t, []string{"total"}, defs)
	assert.Empty(t, refs)
}

func TestAnalyzeImperative_FunctionDef(t *testing.T) {
	defs, refs, err := AnalyzeImperative("def f(a, b=base):\n    return a + b + extra\n")
	assert.NoError(t, err)
	assert.Equal(t, []string{"f"}, defs)
	assert.ElementsMatch(t, []string{"base", "extra"}, refs)
}

func TestAnalyzeImperative_LoadStmt(t *testing.T) {
	defs, refs, err := AnalyzeImperative(`load("helpers.star", helper="greet")`)
	assert.NoError(t, err)
	assert.Equal(t, []string{"helper"}, defs)
	assert.Empty(t, refs)
}

func TestAnalyzeImperative_AttributeAccessRootOnly(t *testing.T) {
	_, refs, err := AnalyzeImperative("y = obj.attr.nested")
	assert.NoError(t, err)
	assert.Equal(t, []string{"obj"}, refs)
}

func TestAnalyzeImperative_ComprehensionScoped(t *testing.T) {
	defs, refs, err := AnalyzeImperative("squares = [i * i for i in items]")
	assert.NoError(t, err)
	assert.Equal(t, []string{"squares"}, defs)
	assert.Equal(t, []string{"items"}, refs)
}

func TestAnalyzeImperative_BuiltinsExcluded(t *testing.T) {
	_, refs, err := AnalyzeImperative("n = len(items)\nok = True")
	assert.NoError(t, err)
	assert.Equal(t, []string{"items"}, refs)
}

func TestAnalyzeImperative_ForStmtBindsLoopVar(t *testing.T) {
	defs, refs, err := AnalyzeImperative("total = 0\nfor row in rows:\n    total += row\n")
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"total", "row"}, defs)
	assert.Equal(t, []string{"rows"}, refs)
}

func TestAnalyzeImperative_ParseFailureReturnsEmpty(t *testing.T) {
	defs, refs, err := AnalyzeImperative("x = (")
	assert.NoError(t, err)
	assert.Empty(t, defs)
	assert.Empty(t, refs)
}

func TestAnalyzeImperative_Deterministic(t *testing.T) {
	code := "z = x + y\nw = z * 2"
	defs1, refs1, _ := AnalyzeImperative(code)
	defs2, refs2, _ := AnalyzeImperative(code)
	assert.Equal(t, defs1, defs2)
	assert.Equal(t, refs1, refs2)
}
