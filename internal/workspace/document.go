package workspace

import (
	"bytes"
	"context"
	"fmt"

	"github.com/agentic-research/codepad/internal/export"
	"github.com/agentic-research/codepad/internal/graph"
	"github.com/agentic-research/codepad/internal/source"
)

// Open makes the file with id the active document.
func (w *Workspace) Open(id string) error {
	return w.do("open", func() (string, error) {
		n, err := w.forest.Find(id)
		if err != nil {
			return fmt.Sprintf("Error: could not open %s: %s", id, describe(err)), fmt.Errorf("open %s: %w", id, err)
		}
		if err := w.tracker.Open(n); err != nil {
			return fmt.Sprintf("Error: could not open %s: %s", n.Name, describe(err)), fmt.Errorf("open %s: %w", id, err)
		}
		return "Opened " + n.FileName(), nil
	})
}

// Close clears the active document.
func (w *Workspace) Close() error {
	return w.do("close", func() (string, error) {
		n, ok := w.tracker.Current()
		if !ok {
			return "No file open", nil
		}
		w.tracker.Close()
		return "Closed " + n.FileName(), nil
	})
}

// SaveCurrentFile packages the active document as a download named
// "{name}_{unix-ms}.{ext}".
func (w *Workspace) SaveCurrentFile() (*export.Download, error) {
	var d *export.Download
	err := w.do("save", func() (string, error) {
		n, ok := w.tracker.Current()
		if !ok {
			return "Error: No active file to save", ErrNoActiveFile
		}
		name := fmt.Sprintf("%s_%d.%s", n.Name, w.clock().UnixMilli(), n.ExtensionOrDefault())
		data := n.Data
		if data == nil {
			data = []byte{}
		}
		d = &export.Download{Name: name, MIMEType: export.MIMEText, Data: bytes.Clone(data)}
		return "Saved " + name, nil
	})
	return d, err
}

// FormatActive runs gofumpt over the active document and writes the
// result back through the same path as an editor update.
func (w *Workspace) FormatActive() error {
	return w.do("format", func() (string, error) {
		n, ok := w.tracker.Current()
		if !ok {
			return "Error: No active file to format", ErrNoActiveFile
		}
		out, err := source.Format(n.Data, n.FileName())
		if err != nil {
			return fmt.Sprintf("Format failed: %s: %v", n.FileName(), err), err
		}
		if bytes.Equal(out, n.Data) {
			return "Already formatted: " + n.FileName(), nil
		}

		data := bytes.Clone(out)
		now := w.clock()
		next, err := w.forest.Update(n.ID, func(m graph.Node) graph.Node {
			m.Data = data
			m.ModTime = now
			return m
		})
		if err != nil {
			return fmt.Sprintf("Format failed: %s: %s", n.FileName(), describe(err)), err
		}
		w.publish(next)
		w.tracker.ContentUpdated(n.ID, data)
		return "Formatted " + n.FileName(), nil
	})
}

// ValidateActive syntax-checks the active document. The first error, or
// the all-clear, is logged; lint findings follow on their own lines.
func (w *Workspace) ValidateActive(ctx context.Context) error {
	return w.do("validate", func() (string, error) {
		n, ok := w.tracker.Current()
		if !ok {
			return "Error: No active file to validate", ErrNoActiveFile
		}
		name := n.FileName()
		if !source.Supported(name) {
			return "No checks available for " + name, nil
		}
		if err := source.Validate(ctx, n.Data, name); err != nil {
			return "Syntax error: " + err.Error(), err
		}
		diags, err := source.Lint(ctx, n.Data, name)
		if err != nil {
			return fmt.Sprintf("Lint failed: %s: %v", name, err), err
		}
		if len(diags) == 0 {
			return "No syntax errors in " + name, nil
		}
		for _, d := range diags {
			w.log.Appendf("Lint: %s: %s", name, d)
		}
		return fmt.Sprintf("No syntax errors in %s (%d lint warning(s))", name, len(diags)), nil
	})
}
