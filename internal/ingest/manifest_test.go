package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/codepad/internal/graph"
	"github.com/agentic-research/codepad/internal/ident"
)

const manifest = `{
  "version": "1",
  "nodes": [
    {"name": "project", "type": "folder", "children": [
      {"name": "main.cpp", "content": "int main(){}"},
      {"name": "util", "extension": "h", "content": ""},
      {"name": "docs", "type": "folder", "children": [
        {"name": "README", "extension": "md"}
      ]},
      {"name": "build", "type": "folder", "expanded": true, "children": [
        {"name": "out.txt", "content": "ok"}
      ]}
    ]},
    {"name": "scratch.py", "content": "print(1)"}
  ]
}`

func TestLoadManifest(t *testing.T) {
	f, err := LoadManifest([]byte(manifest), ManifestOptions{IDs: ident.NewSequence("m")})
	require.NoError(t, err)

	main, err := f.Lookup("project/main.cpp")
	require.NoError(t, err)
	assert.Equal(t, "main", main.Name)
	assert.Equal(t, "cpp", main.Extension)
	assert.Equal(t, "int main(){}", string(main.Data))

	util, err := f.Lookup("project/util.h")
	require.NoError(t, err)
	assert.NotNil(t, util.Data, "empty content is an empty file")
	assert.Empty(t, util.Data)

	readme, err := f.Lookup("project/docs/README.md")
	require.NoError(t, err)
	assert.Nil(t, readme.Data, "absent content stays unloaded")

	project, _ := f.Lookup("project")
	docs, _ := f.Lookup("project/docs")
	build, _ := f.Lookup("project/build")
	assert.True(t, project.Expanded, "root folders start open")
	assert.False(t, docs.Expanded, "nested folders start collapsed")
	assert.True(t, build.Expanded, "explicit expanded wins")

	assert.Equal(t, 2, len(f.Roots()))
	assert.Equal(t, 8, f.Len())
}

func TestLoadManifest_Selector(t *testing.T) {
	f, err := LoadManifest([]byte(manifest), ManifestOptions{
		IDs:      ident.NewSequence("m"),
		Selector: "$.nodes[0].children[?(@.type == 'folder')]",
	})
	require.NoError(t, err)

	var roots []string
	for _, id := range f.Roots() {
		n, _ := f.Find(id)
		roots = append(roots, n.Name)
	}
	assert.Equal(t, []string{"docs", "build"}, roots)
}

func TestLoadManifest_ArraySelector(t *testing.T) {
	f, err := LoadManifest([]byte(manifest), ManifestOptions{IDs: ident.NewSequence("m"), Selector: "$.nodes"})
	require.NoError(t, err)
	assert.Equal(t, 8, f.Len())
}

func TestLoadManifest_Errors(t *testing.T) {
	ids := ident.NewSequence("m")

	_, err := LoadManifest([]byte(`{`), ManifestOptions{IDs: ids})
	assert.Error(t, err)

	_, err = LoadManifest([]byte(manifest), ManifestOptions{IDs: ids, Selector: "$.["})
	assert.ErrorContains(t, err, "invalid jsonpath")

	_, err = LoadManifest([]byte(manifest), ManifestOptions{IDs: ids, Selector: "$.nothing"})
	assert.ErrorContains(t, err, "matched nothing")

	_, err = LoadManifest([]byte(`{"nodes":[{"name":"a/b"}]}`), ManifestOptions{IDs: ids})
	assert.ErrorIs(t, err, graph.ErrInvalidName)

	_, err = LoadManifest([]byte(manifest), ManifestOptions{})
	assert.Error(t, err)
}
