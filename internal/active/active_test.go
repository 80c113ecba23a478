package active

import (
	"testing"

	"github.com/agentic-research/codepad/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_OpenClose(t *testing.T) {
	tr := New()
	assert.Equal(t, Empty, tr.State())
	assert.Equal(t, "", tr.ID())

	require.NoError(t, tr.Open(graph.NewFile("f1", "main", "py")))
	assert.Equal(t, Open, tr.State())
	assert.Equal(t, "f1", tr.ID())

	require.NoError(t, tr.Open(graph.NewFile("f2", "other", "py")))
	assert.Equal(t, "f2", tr.ID(), "open replaces unconditionally")

	tr.Close()
	assert.Equal(t, Empty, tr.State())
	_, ok := tr.Current()
	assert.False(t, ok)
}

func TestTracker_OpenFolderRejected(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Open(graph.NewFile("f1", "main", "py")))

	err := tr.Open(graph.NewFolder("d1", "src"))
	assert.ErrorIs(t, err, graph.ErrNotAFile)
	assert.Equal(t, "f1", tr.ID(), "a rejected open leaves the state alone")
}

func TestTracker_ContentUpdated(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Open(graph.NewFile("f1", "main", "py")))

	tr.ContentUpdated("other", []byte("ignored"))
	cur, _ := tr.Current()
	assert.Empty(t, cur.Data)

	tr.ContentUpdated("f1", []byte("print(1)"))
	cur, _ = tr.Current()
	assert.Equal(t, "print(1)", string(cur.Data))
}

func TestTracker_CurrentIsACopy(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Open(graph.NewFile("f1", "main", "py")))
	cur, _ := tr.Current()
	cur.Name = "changed"

	again, _ := tr.Current()
	assert.Equal(t, "main", again.Name)
}

func TestTracker_NodeUpdated(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Open(graph.NewFile("f1", "main", "py")))
	renamed := graph.NewFile("f1", "app", "py")
	tr.NodeUpdated(renamed)
	cur, _ := tr.Current()
	assert.Equal(t, "app", cur.Name)

	tr.NodeUpdated(graph.NewFile("f2", "x", "py"))
	cur, _ = tr.Current()
	assert.Equal(t, "f1", cur.ID)
}

func TestTracker_NodeRemoved(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Open(graph.NewFile("f1", "main", "py")))

	assert.False(t, tr.NodeRemoved("f2"))
	assert.Equal(t, Open, tr.State())

	assert.True(t, tr.NodeRemoved("f1"))
	assert.Equal(t, Empty, tr.State())
	assert.False(t, tr.NodeRemoved("f1"))
}

func TestTracker_FolderRemoved(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Open(graph.NewFile("f1", "main", "py")))

	assert.False(t, tr.FolderRemoved([]string{"d1", "f9"}))
	assert.Equal(t, "f1", tr.ID())

	assert.True(t, tr.FolderRemoved([]string{"d1", "f1"}))
	assert.Equal(t, Empty, tr.State())
}
