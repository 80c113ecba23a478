// Package active tracks the single document open in the editor.
//
// The tracker holds a read-through copy of the open node. The Tree Store
// stays the source of truth: content edits are written to the forest first
// and then mirrored here with ContentUpdated.
package active

import (
	"slices"
	"sync"

	"github.com/agentic-research/codepad/internal/graph"
)

// State is the tracker's state.
type State int

const (
	Empty State = iota
	Open
)

func (s State) String() string {
	if s == Open {
		return "open"
	}
	return "empty"
}

// Tracker is a two-state machine: Empty, or Open(nodeID).
type Tracker struct {
	mu   sync.RWMutex
	node *graph.Node // cached copy, nil when Empty
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{}
}

// State returns the current state.
func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.node == nil {
		return Empty
	}
	return Open
}

// ID returns the open node's ID, or "" when Empty.
func (t *Tracker) ID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.node == nil {
		return ""
	}
	return t.node.ID
}

// Current returns a copy of the cached node.
func (t *Tracker) Current() (*graph.Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.node == nil {
		return nil, false
	}
	n := *t.node
	return &n, true
}

// Open transitions to Open(node.ID) regardless of the current state.
func (t *Tracker) Open(node *graph.Node) error {
	if node == nil {
		return graph.ErrNotFound
	}
	if node.IsFolder() {
		return graph.ErrNotAFile
	}
	n := *node
	t.mu.Lock()
	t.node = &n
	t.mu.Unlock()
	return nil
}

// Close transitions to Empty.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.node = nil
	t.mu.Unlock()
}

// ContentUpdated refreshes the cached content if id is the open document.
func (t *Tracker) ContentUpdated(id string, data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.node == nil || t.node.ID != id {
		return
	}
	n := *t.node
	n.Data = data
	t.node = &n
}

// NodeUpdated replaces the cached copy (after a rename, for example) if
// node is the open document.
func (t *Tracker) NodeUpdated(node *graph.Node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.node == nil || node == nil || t.node.ID != node.ID {
		return
	}
	n := *node
	t.node = &n
}

// NodeRemoved closes the tracker if id is the open document. It reports
// whether the tracker transitioned to Empty.
func (t *Tracker) NodeRemoved(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.node == nil || t.node.ID != id {
		return false
	}
	t.node = nil
	return true
}

// FolderRemoved closes the tracker if the open document is among the
// removed subtree IDs. It reports whether the tracker transitioned to Empty.
func (t *Tracker) FolderRemoved(removed []string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.node == nil || !slices.Contains(removed, t.node.ID) {
		return false
	}
	t.node = nil
	return true
}
