package graph

import (
	"fmt"
	"slices"
	"time"
)

// Forest is an immutable snapshot of the file tree: an ordered list of
// root IDs plus an arena of nodes keyed by ID. Children are stored as ID
// lists on folder nodes, so there are no pointer cycles to manage.
//
// Every mutating operation returns a new *Forest and leaves the receiver
// untouched. Nodes that did not change are shared between the two.
// A nil *Forest behaves like an empty one.
type Forest struct {
	nodes  map[string]*Node
	parent map[string]string // child ID -> parent ID ("" for roots)
	roots  []string
}

// NewForest returns an empty forest.
func NewForest() *Forest {
	return &Forest{
		nodes:  make(map[string]*Node),
		parent: make(map[string]string),
	}
}

// clone makes a shallow copy: new maps and root slice, shared nodes.
func (f *Forest) clone() *Forest {
	out := &Forest{
		nodes:  make(map[string]*Node, f.Len()+1),
		parent: make(map[string]string, f.Len()+1),
	}
	if f == nil {
		return out
	}
	for id, n := range f.nodes {
		out.nodes[id] = n
	}
	for id, p := range f.parent {
		out.parent[id] = p
	}
	out.roots = slices.Clone(f.roots)
	return out
}

// Len returns the number of nodes in the forest.
func (f *Forest) Len() int {
	if f == nil {
		return 0
	}
	return len(f.nodes)
}

// Find returns the node with the given ID. The returned node is shared
// with the snapshot and must not be modified.
func (f *Forest) Find(id string) (*Node, error) {
	if f == nil {
		return nil, ErrNotFound
	}
	n, ok := f.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return n, nil
}

// Contains reports whether id is present.
func (f *Forest) Contains(id string) bool {
	_, err := f.Find(id)
	return err == nil
}

// Depth returns the nesting depth of id (roots are 1), or 0 if absent.
func (f *Forest) Depth(id string) int {
	if !f.Contains(id) {
		return 0
	}
	depth := 1
	for p := f.parent[id]; p != ""; p = f.parent[p] {
		depth++
	}
	return depth
}

// Insert attaches n under parentID, or at the end of the root list when
// parentID is empty. The parent folder is forced to expanded. Existing
// siblings keep their order; n is always appended last.
//
// n must not already carry children: subtrees are built by inserting one
// node at a time.
func (f *Forest) Insert(parentID string, n *Node) (*Forest, error) {
	if n == nil || n.ID == "" {
		return nil, fmt.Errorf("insert: %w: missing id", ErrInvalidName)
	}
	if err := ValidateName(n.Name); err != nil {
		return nil, fmt.Errorf("insert %s: %w", n.ID, err)
	}
	if err := ValidateExtension(n.Extension); err != nil {
		return nil, fmt.Errorf("insert %s: %w", n.ID, err)
	}
	if f.Contains(n.ID) {
		return nil, fmt.Errorf("insert %s: %w", n.ID, ErrDuplicateID)
	}
	if len(n.Children) > 0 {
		return nil, fmt.Errorf("insert %s: %w", n.ID, ErrHasChildren)
	}

	var parent *Node
	if parentID != "" {
		p, err := f.Find(parentID)
		if err != nil {
			return nil, fmt.Errorf("insert %s under %s: %w", n.ID, parentID, ErrParentNotFound)
		}
		if !p.IsFolder() {
			return nil, fmt.Errorf("insert %s under %s: %w", n.ID, parentID, ErrInvalidParent)
		}
		if f.Depth(parentID)+1 > MaxDepth {
			return nil, fmt.Errorf("insert %s under %s: %w", n.ID, parentID, ErrTooDeep)
		}
		parent = p
	}

	node := *n
	node.Children = nil
	if node.IsFolder() {
		node.Extension = ""
		node.Data = nil
	} else {
		node.Expanded = false
		node.Data = cloneBytes(n.Data)
	}

	out := f.clone()
	out.nodes[node.ID] = &node
	out.parent[node.ID] = parentID
	if parent == nil {
		out.roots = append(out.roots, node.ID)
		return out, nil
	}

	updated := *parent
	updated.Children = append(slices.Clone(parent.Children), node.ID)
	updated.Expanded = true
	out.nodes[parentID] = &updated
	return out, nil
}

// Update replaces the node with id by mutator(copy of node). The mutator
// cannot change the ID, the kind or the children list; those are restored
// from the original node.
func (f *Forest) Update(id string, mutator func(Node) Node) (*Forest, error) {
	orig, err := f.Find(id)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", id, err)
	}

	in := *orig
	in.Children = slices.Clone(orig.Children)
	out := mutator(in)

	out.ID = orig.ID
	out.Mode = orig.Mode
	out.Children = orig.Children
	if out.IsFolder() {
		out.Extension = ""
		out.Data = nil
	} else {
		out.Expanded = false
	}
	if err := ValidateName(out.Name); err != nil {
		return nil, fmt.Errorf("update %s: %w", id, err)
	}
	if err := ValidateExtension(out.Extension); err != nil {
		return nil, fmt.Errorf("update %s: %w", id, err)
	}

	next := f.clone()
	next.nodes[id] = &out
	return next, nil
}

// Toggle flips the expanded flag of a folder.
func (f *Forest) Toggle(id string) (*Forest, error) {
	n, err := f.Find(id)
	if err != nil {
		return nil, fmt.Errorf("toggle %s: %w", id, err)
	}
	if !n.IsFolder() {
		return nil, fmt.Errorf("toggle %s: %w", id, ErrNotAFolder)
	}
	return f.Update(id, func(n Node) Node {
		n.Expanded = !n.Expanded
		return n
	})
}

// Rename changes the name of a node, and the extension of a file.
func (f *Forest) Rename(id, name, ext string) (*Forest, error) {
	return f.RenameAt(id, name, ext, time.Time{})
}

// RenameAt is Rename that also stamps ModTime with at, unless at is zero.
func (f *Forest) RenameAt(id, name, ext string, at time.Time) (*Forest, error) {
	if err := ValidateName(name); err != nil {
		return nil, fmt.Errorf("rename %s: %w", id, err)
	}
	return f.Update(id, func(n Node) Node {
		n.Name = name
		if !n.IsFolder() {
			n.Extension = ext
		}
		if !at.IsZero() {
			n.ModTime = at
		}
		return n
	})
}

// SetContent replaces the content of a file.
func (f *Forest) SetContent(id string, data []byte) (*Forest, error) {
	return f.SetContentAt(id, data, time.Time{})
}

// SetContentAt is SetContent that also stamps ModTime with at, unless at
// is zero.
func (f *Forest) SetContentAt(id string, data []byte, at time.Time) (*Forest, error) {
	n, err := f.Find(id)
	if err != nil {
		return nil, fmt.Errorf("set content %s: %w", id, err)
	}
	if n.IsFolder() {
		return nil, fmt.Errorf("set content %s: %w", id, ErrNotAFile)
	}
	data = cloneBytes(data)
	if data == nil {
		data = []byte{}
	}
	return f.Update(id, func(n Node) Node {
		n.Data = data
		if !at.IsZero() {
			n.ModTime = at
		}
		return n
	})
}

// Remove deletes id and, for folders, its whole subtree. Removing an
// absent ID returns the receiver unchanged.
func (f *Forest) Remove(id string) *Forest {
	out, _ := f.RemoveSubtree(id)
	return out
}

// RemoveSubtree is Remove that also reports every removed ID, the target
// first, in pre-order.
func (f *Forest) RemoveSubtree(id string) (*Forest, []string) {
	if !f.Contains(id) {
		return f, nil
	}
	removed := f.Subtree(id)

	out := f.clone()
	for _, rid := range removed {
		delete(out.nodes, rid)
		delete(out.parent, rid)
	}

	parentID := f.parent[id]
	if parentID == "" {
		out.roots = slices.DeleteFunc(out.roots, func(r string) bool { return r == id })
		return out, removed
	}
	p := *f.nodes[parentID]
	p.Children = slices.DeleteFunc(slices.Clone(p.Children), func(c string) bool { return c == id })
	out.nodes[parentID] = &p
	return out, removed
}

// CreateFile generates an ID and inserts an empty file.
func (f *Forest) CreateFile(ids IDSource, parentID, name, ext string) (*Forest, *Node, error) {
	n := NewFile(ids.Generate(), name, ext)
	out, err := f.Insert(parentID, n)
	if err != nil {
		return nil, nil, err
	}
	created, _ := out.Find(n.ID)
	return out, created, nil
}

// CreateFolder generates an ID and inserts an empty, expanded folder.
func (f *Forest) CreateFolder(ids IDSource, parentID, name string) (*Forest, *Node, error) {
	n := NewFolder(ids.Generate(), name)
	out, err := f.Insert(parentID, n)
	if err != nil {
		return nil, nil, err
	}
	created, _ := out.Find(n.ID)
	return out, created, nil
}
