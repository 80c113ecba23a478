package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/codepad/internal/ident"
	"github.com/agentic-research/codepad/internal/workspace"
)

func newTestWorkspace(t *testing.T) *workspace.Workspace {
	t.Helper()
	return workspace.New(workspace.Config{
		IDs:     ident.NewSequence("n"),
		Clock:   func() time.Time { return time.UnixMilli(1700000000000) },
		Options: workspace.DefaultOptions(),
	})
}

func newTestSearcher(t *testing.T, ws *workspace.Workspace) *searcher {
	t.Helper()
	s, err := newSearcher(ws)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func runShell(t *testing.T, ws *workspace.Workspace, dir, script string) string {
	t.Helper()
	var out bytes.Buffer
	s := newSession(ws, newTestSearcher(t, ws), strings.NewReader(script), &out, dir)
	require.NoError(t, s.loop(context.Background()))
	return out.String()
}

func TestShell_Session(t *testing.T) {
	ws := newTestWorkspace(t)
	dir := t.TempDir()

	out := runShell(t, ws, dir, `mkdir src
touch src/main.cpp
write src/main.cpp
int main(){}
.
cat src/main.cpp
grep main
find *.cpp
tree
quit
`)

	assert.Contains(t, out, "> Initializing AI Compiler...")
	assert.Contains(t, out, "Created folder: src\n")
	assert.Contains(t, out, "Created file: main.cpp\n")
	assert.Contains(t, out, "int main(){}\n")
	assert.Equal(t, 2, strings.Count(out, "src/main.cpp\n"), "grep and find each report the file")
	assert.Contains(t, out, "src/\n  main.cpp *\n")

	n, err := ws.Forest().Lookup("src/main.cpp")
	require.NoError(t, err)
	assert.Equal(t, "int main(){}\n", string(n.Data))
}

func TestShell_ToggleHidesChildren(t *testing.T) {
	ws := newTestWorkspace(t)
	out := runShell(t, ws, t.TempDir(), "mkdir src\ntouch src/a.py\ntoggle src\ntree\n")

	assert.Contains(t, out, "Collapsed folder: src\n")
	assert.Contains(t, out, "src/ +\n")
	assert.NotContains(t, out, "  a.py")
}

func TestShell_ExportAndSave(t *testing.T) {
	ws := newTestWorkspace(t)
	dir := t.TempDir()

	out := runShell(t, ws, dir, "mkdir src\ntouch src/a.py\nexport src\nsave\n")

	assert.Contains(t, out, "Exporting src...\n")
	assert.Contains(t, out, "Exported src.zip\n")
	assert.Contains(t, out, "wrote "+filepath.Join(dir, "src.zip"))
	assert.Contains(t, out, "Saved a_1700000000000.py\n")
	assert.FileExists(t, filepath.Join(dir, "src.zip"))
	assert.FileExists(t, filepath.Join(dir, "a_1700000000000.py"))
}

func TestShell_Errors(t *testing.T) {
	ws := newTestWorkspace(t)
	out := runShell(t, ws, t.TempDir(), "cat nope\nfrobnicate\nmkdir\nclose\ngrep nothing\n")

	assert.Contains(t, out, "error: nope: node not found\n")
	assert.Contains(t, out, `error: unknown command "frobnicate"; try help`)
	assert.Contains(t, out, "error: mkdir: expected 1 argument(s); try help")
	assert.Contains(t, out, "No file open\n")
	assert.NotContains(t, out, "error: close", "logged failures are not repeated")
	assert.Contains(t, out, "no matches\n")
}

func TestShell_DeleteAndClear(t *testing.T) {
	ws := newTestWorkspace(t)
	out := runShell(t, ws, t.TempDir(), "mkdir src\ntouch src/a.py\nrm src\nls\nclear\nlog\n")

	assert.Contains(t, out, "Deleted folder: src (1 item(s))\n")
	assert.Equal(t, 0, ws.Forest().Len())
	assert.Equal(t, 1, ws.Log().Len())
}

func TestShell_Rename(t *testing.T) {
	ws := newTestWorkspace(t)
	out := runShell(t, ws, t.TempDir(), "touch main.cpp\nmv main.cpp app.c\nmkdir lib\nmv lib pkg.v2\nls\n")

	assert.Contains(t, out, "Renamed main.cpp to app.c\n")
	assert.Contains(t, out, "Renamed lib to pkg.v2\n")
	assert.Contains(t, out, "app.c *\npkg.v2/\n")
}
