package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ohler55/ojg/jp"

	"github.com/agentic-research/codepad/api"
	"github.com/agentic-research/codepad/internal/graph"
)

// ManifestOptions narrows and stamps a manifest import.
type ManifestOptions struct {
	// Selector is a JSONPath evaluated against the document. Each match may
	// be a whole manifest ({"nodes": [...]}), a single node, or an array of
	// nodes. Empty selects the document root.
	Selector string
	IDs      graph.IDSource
	Clock    Clock
}

// LoadManifest parses an api.Workspace manifest into a new forest. IDs
// are always freshly generated; manifests never carry them. Root folders
// start expanded and nested folders collapsed unless "expanded" says
// otherwise.
func LoadManifest(data []byte, opts ManifestOptions) (*graph.Forest, error) {
	if opts.IDs == nil {
		return nil, fmt.Errorf("load manifest: no id source")
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}

	roots := []any{doc}
	if opts.Selector != "" {
		x, err := jp.ParseString(opts.Selector)
		if err != nil {
			return nil, fmt.Errorf("invalid jsonpath '%s': %w", opts.Selector, err)
		}
		roots = x.Get(doc)
		if len(roots) == 0 {
			return nil, fmt.Errorf("load manifest: selector %q matched nothing", opts.Selector)
		}
	}

	var nodes []api.Node
	for _, r := range roots {
		ns, err := decodeNodes(r)
		if err != nil {
			return nil, fmt.Errorf("load manifest: %w", err)
		}
		nodes = append(nodes, ns...)
	}

	b := &builder{forest: graph.NewForest(), ids: opts.IDs, now: opts.Clock.now()}
	for _, n := range nodes {
		if err := b.add("", n, true); err != nil {
			return nil, fmt.Errorf("load manifest: %w", err)
		}
	}
	return b.forest, nil
}

// decodeNodes turns one JSONPath match into manifest nodes.
func decodeNodes(v any) ([]api.Node, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case []any:
		var ns []api.Node
		if err := json.Unmarshal(raw, &ns); err != nil {
			return nil, err
		}
		return ns, nil
	case map[string]any:
		if _, ok := t["nodes"]; ok {
			var ws api.Workspace
			if err := json.Unmarshal(raw, &ws); err != nil {
				return nil, err
			}
			return ws.Nodes, nil
		}
		var n api.Node
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, err
		}
		return []api.Node{n}, nil
	default:
		return nil, fmt.Errorf("expected an object or array, got %T", v)
	}
}

type builder struct {
	forest *graph.Forest
	ids    graph.IDSource
	now    func() time.Time
}

func (b *builder) add(parentID string, m api.Node, root bool) error {
	if !m.IsFolder() {
		name, ext := m.Name, m.Extension
		if ext == "" {
			name, ext = graph.SplitFileName(m.Name)
		}
		n := &graph.Node{ID: b.ids.Generate(), Name: name, Extension: ext, ModTime: b.now()}
		if m.Content != nil {
			n.Data = graph.ContentBytes(*m.Content)
		}
		next, err := b.forest.Insert(parentID, n)
		if err != nil {
			return fmt.Errorf("%s: %w", m.Name, err)
		}
		b.forest = next
		return nil
	}

	folder := graph.NewFolder(b.ids.Generate(), m.Name)
	folder.ModTime = b.now()
	next, err := b.forest.Insert(parentID, folder)
	if err != nil {
		return fmt.Errorf("%s: %w", m.Name, err)
	}
	b.forest = next
	for _, c := range m.Children {
		if err := b.add(folder.ID, c, false); err != nil {
			return fmt.Errorf("%s/%w", m.Name, err)
		}
	}

	// Inserting a child forces its parent open; settle the final state last.
	expanded := root
	if m.Expanded != nil {
		expanded = *m.Expanded
	}
	next, err = b.forest.Update(folder.ID, func(n graph.Node) graph.Node {
		n.Expanded = expanded
		return n
	})
	if err != nil {
		return err
	}
	b.forest = next
	return nil
}
