package cmd

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/agentic-research/codepad/internal/graph"
	"github.com/agentic-research/codepad/internal/workspace"
)

// lookupPath maps a display path to a node in the current forest.
func lookupPath(ws *workspace.Workspace, p string) (*graph.Node, error) {
	n, err := ws.Forest().Lookup(p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	return n, nil
}

// splitParent splits p into the id of its folder ("" for a root) and
// its base name.
func splitParent(ws *workspace.Workspace, p string) (string, string, error) {
	dir, base := path.Split(strings.Trim(p, "/"))
	dir = strings.TrimSuffix(dir, "/")
	if dir == "" {
		return "", base, nil
	}
	n, err := lookupPath(ws, dir)
	if err != nil {
		return "", "", err
	}
	return n.ID, base, nil
}

// renderTree prints f indented by depth. Collapsed folders hide their
// children.
func renderTree(w io.Writer, f *graph.Forest, active *graph.Node) {
	_ = f.Walk(func(n *graph.Node, depth int) error {
		fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth-1), entryLabel(n, active))
		if n.IsFolder() && !n.Expanded {
			return graph.SkipChildren
		}
		return nil
	})
}

// entryLabel renders "name/" for folders (with "+" when collapsed) and
// marks the active document with "*".
func entryLabel(n, active *graph.Node) string {
	switch {
	case n.IsFolder() && !n.Expanded:
		return n.Name + "/ +"
	case n.IsFolder():
		return n.Name + "/"
	case active != nil && active.ID == n.ID:
		return n.FileName() + " *"
	default:
		return n.FileName()
	}
}
