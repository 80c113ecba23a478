package graph

import (
	"errors"
	"io/fs"
	"time"
)

var (
	ErrNotFound       = errors.New("node not found")
	ErrParentNotFound = errors.New("parent not found")
	ErrInvalidParent  = errors.New("parent is not a folder")
	ErrNotAFolder     = errors.New("not a folder")
	ErrNotAFile       = errors.New("not a file")
	ErrDuplicateID    = errors.New("duplicate node id")
	ErrHasChildren    = errors.New("node already has children")
	ErrTooDeep        = errors.New("tree depth limit exceeded")
	ErrInvalidName    = errors.New("invalid name")
)

// MaxDepth bounds how deep a node may be nested. Roots are at depth 1.
const MaxDepth = 64

// DefaultExtension is used when a file has no extension and a concrete
// one is needed (single-file downloads, rendering).
const DefaultExtension = "txt"

// Node is the universal primitive.
// The Mode field explicitly declares whether this is a file or a folder and
// never changes after creation.
//
// Nodes reachable from a published Forest are shared between snapshots and
// must be treated as read-only. Mutation goes through Forest.Update.
type Node struct {
	ID      string
	Name    string      // base name, no separator, no extension
	Mode    fs.FileMode // fs.ModeDir for folders, 0 for files
	ModTime time.Time

	// Files only.
	Extension string
	Data      []byte // nil = no content loaded, empty = empty file

	// Folders only.
	Children []string // child node IDs in display order
	Expanded bool
}

// NewFile builds a file node with empty (not absent) content.
func NewFile(id, name, ext string) *Node {
	return &Node{
		ID:        id,
		Name:      name,
		Extension: ext,
		Data:      []byte{},
	}
}

// NewFolder builds an expanded folder with no children.
func NewFolder(id, name string) *Node {
	return &Node{
		ID:       id,
		Name:     name,
		Mode:     fs.ModeDir,
		Expanded: true,
	}
}

// IsFolder reports whether n is a folder.
func (n *Node) IsFolder() bool {
	return n.Mode.IsDir()
}

// FileName returns the on-disk style name: "name.ext" for files with an
// extension, the bare name otherwise.
func (n *Node) FileName() string {
	if n.IsFolder() || n.Extension == "" {
		return n.Name
	}
	return n.Name + "." + n.Extension
}

// ExtensionOrDefault returns the file extension, or DefaultExtension when
// the file has none.
func (n *Node) ExtensionOrDefault() string {
	if n.Extension == "" {
		return DefaultExtension
	}
	return n.Extension
}

// HasContent reports whether content has been loaded for a file.
// An empty file has content; a file whose Data is nil does not.
func (n *Node) HasContent() bool {
	return !n.IsFolder() && n.Data != nil
}

// ContentSize returns the byte length of this node's content.
func (n *Node) ContentSize() int64 {
	return int64(len(n.Data))
}

// IDSource produces identifiers for new nodes.
type IDSource interface {
	Generate() string
}

// Graph is the read interface shared by the exporter and the mount layers.
// Implementations serve a frozen snapshot.
type Graph interface {
	GetNode(id string) (*Node, error)
	// ListChildren returns child IDs of a folder, or the root IDs for "".
	ListChildren(id string) ([]string, error)
	ReadContent(id string, buf []byte, offset int64) (int, error)
}

// cloneBytes copies b, preserving the nil/empty distinction.
func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// ContentBytes converts editor text to node content. The result is never
// nil, so an empty string produces an empty file rather than an absent one.
func ContentBytes(s string) []byte {
	out := make([]byte, len(s))
	copy(out, s)
	return out
}
