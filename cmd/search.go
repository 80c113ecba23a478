package cmd

import (
	"context"
	"strings"
	"sync"

	"github.com/agentic-research/codepad/internal/graph"
	"github.com/agentic-research/codepad/internal/index"
	"github.com/agentic-research/codepad/internal/logging"
	"github.com/agentic-research/codepad/internal/workspace"
)

// searcher rebuilds the index lazily, only when the published forest has
// changed since the last query.
type searcher struct {
	ws  *workspace.Workspace
	idx *index.Index

	mu    sync.Mutex
	built *graph.Forest
}

func newSearcher(ws *workspace.Workspace) (*searcher, error) {
	idx, err := index.Open(logging.Named("index"))
	if err != nil {
		return nil, err
	}
	return &searcher{ws: ws, idx: idx}, nil
}

func (s *searcher) Close() error {
	return s.idx.Close()
}

func (s *searcher) refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.ws.Forest()
	if f == s.built {
		return nil
	}
	if err := s.idx.Rebuild(ctx, f); err != nil {
		return err
	}
	s.built = f
	return nil
}

// Refs intersects exact tokens. A single argument containing * or ? is a
// token pattern instead.
func (s *searcher) Refs(ctx context.Context, tokens ...string) ([]index.Hit, error) {
	if err := s.refresh(ctx); err != nil {
		return nil, err
	}
	if len(tokens) == 1 && strings.ContainsAny(tokens[0], "*?") {
		return s.idx.RefsMatching(ctx, tokens[0])
	}
	return s.idx.RefsAll(ctx, tokens...)
}

func (s *searcher) ByName(ctx context.Context, glob string) ([]index.Hit, error) {
	if err := s.refresh(ctx); err != nil {
		return nil, err
	}
	return s.idx.ByName(ctx, glob)
}

func (s *searcher) ByExtension(ctx context.Context, ext string) ([]index.Hit, error) {
	if err := s.refresh(ctx); err != nil {
		return nil, err
	}
	return s.idx.ByExtension(ctx, ext)
}
