package workspace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/agentic-research/codepad/internal/export"
	"github.com/agentic-research/codepad/internal/graph"
	"github.com/agentic-research/codepad/internal/metrics"
)

// ExportFolder archives the folder with id. "Exporting name..." is logged
// before the walk and the outcome after it, so the two lines bracket the
// wait. Each skipped entry gets a line naming it. A cancelled export logs
// its cancellation and returns the context error.
func (w *Workspace) ExportFolder(ctx context.Context, id string) (*export.Archive, error) {
	var (
		snap   *graph.Forest
		folder *graph.Node
	)
	err := w.do("export_folder_start", func() (string, error) {
		n, err := w.forest.Find(id)
		if err != nil {
			return "Export failed: " + describe(err), fmt.Errorf("export %s: %w", id, err)
		}
		if !n.IsFolder() {
			return fmt.Sprintf("Export failed: %s is %s", n.FileName(), describe(graph.ErrNotAFolder)), fmt.Errorf("export %s: %w", id, graph.ErrNotAFolder)
		}
		snap, folder = w.forest, n
		return fmt.Sprintf("Exporting %s...", n.Name), nil
	})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	arc, exportErr := w.exporter.ExportFolder(ctx, snap, id)

	var files, dirs, failures int
	if arc != nil {
		files, dirs, failures = arc.Report.Files, arc.Report.Dirs, len(arc.Report.Failures)
	}
	metrics.RecordExport(files, dirs, failures, time.Since(start), exportErr)

	err = w.do("export_folder", func() (string, error) {
		switch {
		case exportErr != nil && ctx.Err() != nil && errors.Is(exportErr, ctx.Err()):
			return fmt.Sprintf("Export cancelled: %s", folder.Name), exportErr
		case exportErr != nil:
			w.logger.Warn("export failed", zap.String("folder", folder.Name), zap.Error(exportErr))
			return "Export failed: " + exportErr.Error(), exportErr
		}
		for _, f := range arc.Report.Failures {
			w.log.Appendf("Failed to export %s: %v", f.Path, f.Err)
		}
		if arc.Report.CompletedWithErrors() {
			return fmt.Sprintf("Exported %s with %d error(s)", arc.Name, failures), nil
		}
		return "Exported " + arc.Name, nil
	})
	if err != nil {
		return nil, err
	}
	return arc, nil
}

// ExportFile packages one file as text/plain.
func (w *Workspace) ExportFile(id string) (*export.Download, error) {
	var d *export.Download
	err := w.do("export_file", func() (string, error) {
		n, err := w.forest.Find(id)
		if err != nil {
			return "Export failed: " + describe(err), fmt.Errorf("export %s: %w", id, err)
		}
		d, err = export.ExportFile(n)
		if err != nil {
			return fmt.Sprintf("Export failed: %s: %s", n.FileName(), describe(err)), err
		}
		return "Exported " + d.Name, nil
	})
	return d, err
}
