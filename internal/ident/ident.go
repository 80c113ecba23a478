// Package ident issues node identifiers that are never reused during the
// lifetime of the process, even after the node they named is deleted.
package ident

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Generator produces unique identifiers.
type Generator interface {
	Generate() string
}

// UUIDGenerator issues random (v4) UUIDs. It remembers everything it has
// issued and draws again on a collision, so uniqueness does not rest on
// probability alone.
type UUIDGenerator struct {
	mu     sync.Mutex
	issued map[string]struct{}
	newID  func() string
}

// NewUUIDGenerator returns a generator backed by google/uuid.
func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{
		issued: make(map[string]struct{}),
		newID:  uuid.NewString,
	}
}

// Generate implements Generator.
func (g *UUIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	for {
		id := g.newID()
		if _, dup := g.issued[id]; dup {
			continue
		}
		g.issued[id] = struct{}{}
		return id
	}
}

// Issued returns how many identifiers have been handed out.
func (g *UUIDGenerator) Issued() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.issued)
}

// Sequence issues "prefix-1", "prefix-2", ... Used by tests and by
// deterministic replays where stable IDs make log output comparable.
type Sequence struct {
	mu     sync.Mutex
	prefix string
	next   uint64
}

// NewSequence returns a sequence starting at 1.
func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix}
}

// Generate implements Generator.
func (s *Sequence) Generate() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return fmt.Sprintf("%s-%d", s.prefix, s.next)
}
