package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/codepad/internal/graph"
)

const testManifest = `{
  "version": "1",
  "nodes": [
    {"name": "project", "type": "folder", "children": [
      {"name": "main.cpp", "content": "int main(){}"},
      {"name": "docs", "type": "folder", "children": [
        {"name": "README", "extension": "md", "content": "# hi"}
      ]}
    ]}
  ]
}`

func writeManifest(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "project.json")
	require.NoError(t, os.WriteFile(p, []byte(testManifest), 0o644))
	return p
}

func TestLoadSource_Manifest(t *testing.T) {
	ws := newTestWorkspace(t)
	require.NoError(t, loadSource(ws, writeManifest(t), ""))

	assert.Equal(t, "Loaded project.json: 2 file(s), 2 folder(s)", ws.Log().Last())
	n, err := ws.Forest().Lookup("project/docs/README.md")
	require.NoError(t, err)
	assert.Equal(t, "# hi", string(n.Data))
}

func TestLoadSource_Selector(t *testing.T) {
	ws := newTestWorkspace(t)
	require.NoError(t, loadSource(ws, writeManifest(t), "$.nodes[0].children[1]"))

	_, err := ws.Forest().Lookup("docs/README.md")
	assert.NoError(t, err)
	_, err = ws.Forest().Lookup("project")
	assert.ErrorIs(t, err, graph.ErrNotFound)
}

func TestLoadSource_Directory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "app")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.py"), []byte("print(1)"), 0o644))

	ws := newTestWorkspace(t)
	require.NoError(t, loadSource(ws, root, ""))

	n, err := ws.Forest().Lookup("app/sub/b.py")
	require.NoError(t, err)
	assert.Equal(t, "print(1)", string(n.Data))

	// Creations after an import draw from the same generator, so ids
	// never collide with imported nodes.
	_, err = ws.CreateFile("", "extra", "txt")
	require.NoError(t, err)
	assert.Equal(t, 5, ws.Forest().Len())
}

func TestLoadSource_Missing(t *testing.T) {
	err := loadSource(newTestWorkspace(t), filepath.Join(t.TempDir(), "nope.json"), "")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExportNode(t *testing.T) {
	ws := newTestWorkspace(t)
	_, err := exportNode(context.Background(), ws, "")
	assert.ErrorIs(t, err, graph.ErrNotFound, "empty tree")

	require.NoError(t, loadSource(ws, writeManifest(t), ""))

	d, err := exportNode(context.Background(), ws, "")
	require.NoError(t, err)
	assert.Equal(t, "project.zip", d.Name)

	d, err = exportNode(context.Background(), ws, "project/main.cpp")
	require.NoError(t, err)
	assert.Equal(t, "main.cpp", d.Name)
	assert.Equal(t, "int main(){}", string(d.Data))

	_, err = exportNode(context.Background(), ws, "project/gone")
	assert.ErrorIs(t, err, graph.ErrNotFound)
}

func TestUnpack(t *testing.T) {
	ws := newTestWorkspace(t)
	require.NoError(t, loadSource(ws, writeManifest(t), ""))
	dir := t.TempDir()

	var out bytes.Buffer
	c := &cobra.Command{}
	c.SetOut(&out)
	require.NoError(t, unpack(c, ws, "project", dir))
	assert.Equal(t, "unpacked 2 file(s) into "+dir+"\n", out.String())

	data, err := os.ReadFile(filepath.Join(dir, "main.cpp"))
	require.NoError(t, err)
	assert.Equal(t, "int main(){}", string(data))
	data, err = os.ReadFile(filepath.Join(dir, "docs", "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "# hi", string(data))

	err = unpack(c, ws, "project/main.cpp", dir)
	assert.ErrorIs(t, err, graph.ErrNotAFolder)
}

func TestExportCommand(t *testing.T) {
	manifest := writeManifest(t)
	out := t.TempDir()

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs([]string{"export", manifest, "--download-dir", out, "--path", "project/docs", "--log-level", "error"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		exportPath = ""
	})

	require.NoError(t, rootCmd.Execute())

	dest := filepath.Join(out, "docs.zip")
	assert.Equal(t, dest+"\n", stdout.String())
	assert.Contains(t, stderr.String(), "Exported docs.zip")

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, r.File, 1)
	assert.Equal(t, "README.md", r.File[0].Name)
}
