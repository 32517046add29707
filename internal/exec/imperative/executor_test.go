package imperative

import (
	"testing"
	"time"

	"github.com/leapstack-labs/leapsql/internal/notebook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_SimpleAssignment(t *testing.T) {
	ns := notebook.NewNamespace()
	res := Execute("a", "x = 10", ns, 0)
	require.NoError(t, res.Err)

	v, ok := ns.Get("x")
	require.True(t, ok)
	assert.Equal(t, int64(10), v.Int)
}

func TestExecute_ReadsFromNamespace(t *testing.T) {
	ns := notebook.NewNamespace()
	ns.Set("x", notebook.Int(20))
	res := Execute("b", "y = x + 5", ns, 0)
	require.NoError(t, res.Err)

	v, ok := ns.Get("y")
	require.True(t, ok)
	assert.Equal(t, int64(25), v.Int)
}

func TestExecute_CapturesPrintAsOutputLines(t *testing.T) {
	ns := notebook.NewNamespace()
	res := Execute("c", "print('hello')\nprint('world')", ns, 0)
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"hello", "world"}, res.Outputs)
}

func TestExecute_NameNotDefinedSurfacesAsError(t *testing.T) {
	ns := notebook.NewNamespace()
	res := Execute("d", "y = undefined_name", ns, 0)
	require.Error(t, res.Err)
	assert.Empty(t, res.Outputs)
}

func TestExecute_TimeoutProducesTimeoutError(t *testing.T) {
	ns := notebook.NewNamespace()
	res := Execute("e", "while True:\n    pass\n", ns, 30*time.Millisecond)
	require.Error(t, res.Err)
	_, isTimeout := res.Err.(*notebook.TimeoutError)
	assert.True(t, isTimeout, "expected a TimeoutError, got %T: %v", res.Err, res.Err)
}

func TestExecute_StringRoundTrip(t *testing.T) {
	ns := notebook.NewNamespace()
	res := Execute("f", `name = "Alice"`, ns, 0)
	require.NoError(t, res.Err)
	v, _ := ns.Get("name")
	assert.Equal(t, "Alice", v.Str)
}

func TestExecute_ListRoundTrip(t *testing.T) {
	ns := notebook.NewNamespace()
	res := Execute("g", "xs = [1, 2, 3]", ns, 0)
	require.NoError(t, res.Err)
	v, _ := ns.Get("xs")
	require.Len(t, v.List, 3)
	assert.Equal(t, int64(2), v.List[1].Int)
}
