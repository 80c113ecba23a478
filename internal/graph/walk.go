package graph

import (
	"errors"
	"slices"
	"strings"
)

// SkipChildren can be returned from a WalkFunc to skip a folder's subtree.
var SkipChildren = errors.New("skip children")

// WalkFunc is called for each node in pre-order. depth is 1 for the node
// the walk started from.
type WalkFunc func(n *Node, depth int) error

// Roots returns the root IDs in display order.
func (f *Forest) Roots() []string {
	if f == nil {
		return nil
	}
	return slices.Clone(f.roots)
}

// Children returns the child IDs of a folder in display order.
func (f *Forest) Children(id string) ([]string, error) {
	n, err := f.Find(id)
	if err != nil {
		return nil, err
	}
	if !n.IsFolder() {
		return nil, ErrNotAFolder
	}
	return slices.Clone(n.Children), nil
}

// Parent returns the parent folder ID of id. ok is false for roots and
// absent IDs.
func (f *Forest) Parent(id string) (string, bool) {
	if !f.Contains(id) {
		return "", false
	}
	p := f.parent[id]
	return p, p != ""
}

// Walk visits every node of every root, depth first.
func (f *Forest) Walk(fn WalkFunc) error {
	for _, id := range f.Roots() {
		if err := f.WalkFrom(id, fn); err != nil {
			return err
		}
	}
	return nil
}

// WalkFrom visits id and its descendants, depth first.
func (f *Forest) WalkFrom(id string, fn WalkFunc) error {
	if _, err := f.Find(id); err != nil {
		return err
	}
	return f.walk(id, 1, fn)
}

func (f *Forest) walk(id string, depth int, fn WalkFunc) error {
	n := f.nodes[id]
	if err := fn(n, depth); err != nil {
		if errors.Is(err, SkipChildren) {
			return nil
		}
		return err
	}
	for _, c := range n.Children {
		if err := f.walk(c, depth+1, fn); err != nil {
			return err
		}
	}
	return nil
}

// Subtree returns id and all of its descendants in pre-order, or nil if
// id is absent.
func (f *Forest) Subtree(id string) []string {
	var ids []string
	_ = f.WalkFrom(id, func(n *Node, _ int) error {
		ids = append(ids, n.ID)
		return nil
	})
	return ids
}

// Ancestors returns the folder IDs above id, nearest first.
func (f *Forest) Ancestors(id string) []string {
	var out []string
	for p, ok := f.Parent(id); ok; p, ok = f.Parent(p) {
		out = append(out, p)
	}
	return out
}

// Path returns the slash-joined display path of id, e.g. "src/main.cpp".
func (f *Forest) Path(id string) string {
	n, err := f.Find(id)
	if err != nil {
		return ""
	}
	parts := []string{n.FileName()}
	for _, a := range f.Ancestors(id) {
		parts = append(parts, f.nodes[a].FileName())
	}
	slices.Reverse(parts)
	return strings.Join(parts, "/")
}

// Lookup resolves a display path to a node. When siblings share a name,
// the first in display order wins.
func (f *Forest) Lookup(path string) (*Node, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil, ErrNotFound
	}
	level := f.Roots()
	var found *Node
	for _, seg := range strings.Split(path, "/") {
		found = nil
		for _, id := range level {
			if n := f.nodes[id]; n.FileName() == seg {
				found = n
				break
			}
		}
		if found == nil {
			return nil, ErrNotFound
		}
		level = found.Children
	}
	return found, nil
}

// GetNode implements Graph.
func (f *Forest) GetNode(id string) (*Node, error) {
	return f.Find(id)
}

// ListChildren implements Graph. The empty ID lists the roots.
func (f *Forest) ListChildren(id string) ([]string, error) {
	if id == "" {
		return f.Roots(), nil
	}
	return f.Children(id)
}

// ReadContent implements Graph.
func (f *Forest) ReadContent(id string, buf []byte, offset int64) (int, error) {
	n, err := f.Find(id)
	if err != nil {
		return 0, err
	}
	if n.IsFolder() {
		return 0, ErrNotAFile
	}
	if offset >= int64(len(n.Data)) {
		return 0, nil
	}
	return copy(buf, n.Data[offset:]), nil
}

// Verify interface compliance at compile time.
var _ Graph = (*Forest)(nil)
