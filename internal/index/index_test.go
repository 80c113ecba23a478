package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/codepad/internal/graph"
	"github.com/agentic-research/codepad/internal/ident"
)

func buildForest(t *testing.T) *graph.Forest {
	t.Helper()
	ids := ident.NewSequence("n")
	f := graph.NewForest()

	f, src, err := f.CreateFolder(ids, "", "src")
	require.NoError(t, err)
	f, mainCpp, err := f.CreateFile(ids, src.ID, "main", "cpp")
	require.NoError(t, err)
	f, util, err := f.CreateFile(ids, src.ID, "util", "h")
	require.NoError(t, err)
	f, readme, err := f.CreateFile(ids, "", "README", "md")
	require.NoError(t, err)

	f, err = f.SetContent(mainCpp.ID, []byte(`#include "util.h"
int main() { return add_one(41); }`))
	require.NoError(t, err)
	f, err = f.SetContent(util.ID, []byte("int add_one(int x) { return x + 1; }"))
	require.NoError(t, err)
	f, err = f.SetContent(readme.ID, []byte("call add_one from main"))
	require.NoError(t, err)
	return f
}

func paths(hits []Hit) []string {
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.Path)
	}
	return out
}

func TestIndex_Refs(t *testing.T) {
	ctx := context.Background()
	x, err := Open(nil)
	require.NoError(t, err)
	defer func() { _ = x.Close() }()

	require.NoError(t, x.Rebuild(ctx, buildForest(t)))

	hits, err := x.Refs(ctx, "add_one")
	require.NoError(t, err)
	assert.Equal(t, []string{"src/main.cpp", "src/util.h", "README.md"}, paths(hits))

	hits, err = x.RefsAll(ctx, "add_one", "main")
	require.NoError(t, err)
	assert.Equal(t, []string{"src/main.cpp", "README.md"}, paths(hits))

	hits, err = x.Refs(ctx, "missing_symbol")
	require.NoError(t, err)
	assert.Empty(t, hits)

	nodes, tokens := x.Stats()
	assert.Equal(t, 4, nodes)
	assert.Greater(t, tokens, 0)
}

func TestIndex_ByExtensionAndName(t *testing.T) {
	ctx := context.Background()
	x, err := Open(nil)
	require.NoError(t, err)
	defer func() { _ = x.Close() }()
	require.NoError(t, x.Rebuild(ctx, buildForest(t)))

	hits, err := x.ByExtension(ctx, ".cpp")
	require.NoError(t, err)
	assert.Equal(t, []string{"src/main.cpp"}, paths(hits))

	hits, err = x.ByName(ctx, "*.h")
	require.NoError(t, err)
	assert.Equal(t, []string{"src/util.h"}, paths(hits))

	hits, err = x.ByName(ctx, "src")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.True(t, hits[0].Folder)

	hits, err = x.ByName(ctx, "READ?E.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md"}, paths(hits))
}

func TestIndex_RebuildReplaces(t *testing.T) {
	ctx := context.Background()
	x, err := Open(nil)
	require.NoError(t, err)
	defer func() { _ = x.Close() }()

	f := buildForest(t)
	require.NoError(t, x.Rebuild(ctx, f))

	readme, err := f.Lookup("README.md")
	require.NoError(t, err)
	require.NoError(t, x.Rebuild(ctx, f.Remove(readme.ID)))

	hits, err := x.Refs(ctx, "add_one")
	require.NoError(t, err)
	assert.Equal(t, []string{"src/main.cpp", "src/util.h"}, paths(hits))
}

func TestIndex_RefsMatching(t *testing.T) {
	ctx := context.Background()
	x, err := Open(nil)
	require.NoError(t, err)
	defer func() { _ = x.Close() }()

	hits, err := x.RefsMatching(ctx, "add_*")
	require.NoError(t, err)
	assert.Empty(t, hits, "nothing indexed yet")

	require.NoError(t, x.Rebuild(ctx, buildForest(t)))

	hits, err = x.RefsMatching(ctx, "add_*")
	require.NoError(t, err)
	assert.Equal(t, []string{"src/main.cpp", "src/util.h", "README.md"}, paths(hits))

	hits, err = x.RefsMatching(ctx, "RET*")
	require.NoError(t, err)
	assert.Equal(t, []string{"src/main.cpp", "src/util.h"}, paths(hits))

	hits, err = x.RefsMatching(ctx, "nope*")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_RefsTable(t *testing.T) {
	ctx := context.Background()
	a, err := Open(nil)
	require.NoError(t, err)
	defer func() { _ = a.Close() }()
	b, err := Open(nil)
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	require.NoError(t, a.Rebuild(ctx, buildForest(t)))

	var n int
	require.NoError(t, a.db.QueryRowContext(ctx, "SELECT count(*) FROM refs WHERE token = 'add_one'").Scan(&n))
	assert.Equal(t, 3, n)

	require.NoError(t, b.db.QueryRowContext(ctx, "SELECT count(*) FROM refs").Scan(&n))
	assert.Zero(t, n, "each index sees only its own postings")
}

func TestIndex_RebuildCancelled(t *testing.T) {
	x, err := Open(nil)
	require.NoError(t, err)
	defer func() { _ = x.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, x.Rebuild(ctx, buildForest(t)), context.Canceled)
}

func TestTokens(t *testing.T) {
	got := Tokens([]byte("int x = add_one(x1) + add_one(2); // café 9lives"))
	assert.Equal(t, []string{"int", "add_one", "x1", "café", "lives"}, got)
	assert.Empty(t, Tokens(nil))
}

func TestGlobToLike(t *testing.T) {
	assert.Equal(t, `%.go`, globToLike("*.go"))
	assert.Equal(t, `a\_b_`, globToLike("a_b?"))
	assert.Equal(t, `100\%`, globToLike("100%"))
}
