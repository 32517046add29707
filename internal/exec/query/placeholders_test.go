package query

import (
	"testing"

	"github.com/leapstack-labs/leapsql/internal/notebook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpolate_StringQuotedAndDoubled(t *testing.T) {
	ns := notebook.NewNamespace()
	ns.Set("name", notebook.String("O'Brien"))
	out, err := Interpolate("c", "SELECT * FROM users WHERE name = {{name}}", ns)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users WHERE name = 'O''Brien'", out)
}

func TestInterpolate_IntAndFloatUnquoted(t *testing.T) {
	ns := notebook.NewNamespace()
	ns.Set("limit", notebook.Int(10))
	ns.Set("threshold", notebook.Float(0.5))
	out, err := Interpolate("c", "SELECT * FROM t WHERE score > {{threshold}} LIMIT {{limit}}", ns)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE score > 0.5 LIMIT 10", out)
}

func TestInterpolate_BoolLiterals(t *testing.T) {
	ns := notebook.NewNamespace()
	ns.Set("active", notebook.Bool(true))
	out, err := Interpolate("c", "WHERE active = {{active}}", ns)
	require.NoError(t, err)
	assert.Equal(t, "WHERE active = TRUE", out)
}

func TestInterpolate_NullLiteral(t *testing.T) {
	ns := notebook.NewNamespace()
	ns.Set("x", notebook.Null())
	out, err := Interpolate("c", "WHERE x IS {{x}}", ns)
	require.NoError(t, err)
	assert.Equal(t, "WHERE x IS NULL", out)
}

func TestInterpolate_ListCommaJoined(t *testing.T) {
	ns := notebook.NewNamespace()
	ns.Set("ids", notebook.List([]notebook.Value{notebook.Int(1), notebook.Int(2), notebook.Int(3)}))
	out, err := Interpolate("c", "WHERE id IN ({{ids}})", ns)
	require.NoError(t, err)
	assert.Equal(t, "WHERE id IN (1, 2, 3)", out)
}

func TestInterpolate_MissingPlaceholderNamesIt(t *testing.T) {
	ns := notebook.NewNamespace()
	_, err := Interpolate("c", "WHERE id = {{missing}}", ns)
	require.Error(t, err)
	mpe, ok := err.(*notebook.MissingPlaceholderError)
	require.True(t, ok)
	assert.Equal(t, "missing", mpe.Name)
}

func TestInterpolate_DoesNotRunOnFirstMissing(t *testing.T) {
	ns := notebook.NewNamespace()
	ns.Set("present", notebook.Int(1))
	_, err := Interpolate("c", "{{present}} {{absent}}", ns)
	require.Error(t, err)
}

func TestInterpolate_RepeatedPlaceholderSubstitutedEverywhere(t *testing.T) {
	ns := notebook.NewNamespace()
	ns.Set("x", notebook.Int(7))
	out, err := Interpolate("c", "{{x}} = {{x}}", ns)
	require.NoError(t, err)
	assert.Equal(t, "7 = 7", out)
}

func TestInterpolate_OtherFallbackQuoted(t *testing.T) {
	ns := notebook.NewNamespace()
	ns.Set("f", notebook.Other("<function f>"))
	out, err := Interpolate("c", "{{f}}", ns)
	require.NoError(t, err)
	assert.Equal(t, "'<function f>'", out)
}
