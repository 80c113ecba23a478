package export

import (
	"errors"
	"fmt"

	"github.com/agentic-research/codepad/internal/graph"
)

// ErrEmptyContent is returned when a file has no content loaded. An empty
// file is not an error; it exports as a zero-length download.
var ErrEmptyContent = errors.New("file has no content")

// ExportFile packages one file as "name.ext" (txt when the extension is
// empty).
func ExportFile(n *graph.Node) (*Download, error) {
	if n == nil {
		return nil, graph.ErrNotFound
	}
	if n.IsFolder() {
		return nil, fmt.Errorf("export %s: %w", n.Name, graph.ErrNotAFile)
	}
	if n.Data == nil {
		return nil, fmt.Errorf("export %s: %w", n.FileName(), ErrEmptyContent)
	}
	data := make([]byte, len(n.Data))
	copy(data, n.Data)
	return &Download{
		Name:     n.Name + "." + n.ExtensionOrDefault(),
		MIMEType: MIMEText,
		Data:     data,
	}, nil
}
