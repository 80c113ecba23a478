// Package export packages workspace nodes as downloadable artifacts: a
// whole folder as a zip archive, or a single file as plain text.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/agentic-research/codepad/internal/graph"
	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"
)

const (
	MIMEZip  = "application/zip"
	MIMEText = "text/plain"
)

// ErrDuplicatePath marks an entry whose archive path an earlier sibling
// already took. The first entry wins.
var ErrDuplicatePath = errors.New("duplicate archive path")

// Download is an opaque blob plus the name and MIME type it should be
// saved under.
type Download struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Failure is a soft, per-entry export failure. The walk records it and
// moves on to the next sibling.
type Failure struct {
	Path   string // archive-relative path of the offending entry
	NodeID string
	Err    error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Path, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Report summarises a folder walk.
type Report struct {
	Files    int
	Dirs     int
	Failures []Failure
}

// CompletedWithErrors is the soft-failure flag: the archive was produced
// but some entries are missing from it.
func (r *Report) CompletedWithErrors() bool {
	return len(r.Failures) > 0
}

// ExportError is a hard failure: no artifact is produced.
type ExportError struct {
	Folder string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s: %v", e.Folder, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// Archive is the result of a successful folder export.
type Archive struct {
	Download
	Report *Report
}

// ContentHook produces the bytes written for a file entry. It may
// transform the content (formatting, for example) or fail, which marks
// only that entry as failed.
type ContentHook func(n *graph.Node, path string) ([]byte, error)

// RawContent writes the node's bytes unchanged; absent content is written
// as an empty entry.
func RawContent(n *graph.Node, _ string) ([]byte, error) {
	if n.Data == nil {
		return []byte{}, nil
	}
	return n.Data, nil
}

// Exporter walks folder subtrees into zip archives.
type Exporter struct {
	hook   ContentHook
	logger *zap.Logger
	now    func() time.Time
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithContentHook replaces RawContent.
func WithContentHook(h ContentHook) Option {
	return func(e *Exporter) { e.hook = h }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Exporter) { e.logger = l }
}

// WithClock sets the timestamp used for entries whose node has no ModTime.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

// New returns an exporter with the given options.
func New(opts ...Option) *Exporter {
	e := &Exporter{
		hook:   RawContent,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// ExportFolder builds the archive for folderID in memory. A cancelled
// context discards the partial buffer and returns the context error.
func (e *Exporter) ExportFolder(ctx context.Context, g graph.Graph, folderID string) (*Archive, error) {
	folder, err := g.GetNode(folderID)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", folderID, err)
	}

	var buf bytes.Buffer
	report, err := e.WriteFolder(ctx, g, folderID, &buf)
	if err != nil {
		return nil, err
	}
	return &Archive{
		Download: Download{
			Name:     folder.Name + ".zip",
			MIMEType: MIMEZip,
			Data:     buf.Bytes(),
		},
		Report: report,
	}, nil
}

// WriteFolder streams the archive for folderID to w. Entries are relative
// to the folder itself: its children sit at the top of the archive.
func (e *Exporter) WriteFolder(ctx context.Context, g graph.Graph, folderID string, w io.Writer) (*Report, error) {
	folder, err := g.GetNode(folderID)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", folderID, err)
	}
	if !folder.IsFolder() {
		return nil, fmt.Errorf("export %s: %w", folder.FileName(), graph.ErrNotAFolder)
	}

	zw := zip.NewWriter(w)
	report := &Report{}
	seen := make(map[string]bool)
	if err := e.walk(ctx, g, zw, folder, "", seen, report); err != nil {
		_ = zw.Close() // partial archive is discarded
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, &ExportError{Folder: folder.Name, Err: err}
	}

	e.logger.Debug("folder exported",
		zap.String("folder", folder.Name),
		zap.Int("files", report.Files),
		zap.Int("dirs", report.Dirs),
		zap.Int("failures", len(report.Failures)),
	)
	return report, nil
}

// walk visits the children of dir. Only context errors abort it; every
// other error becomes a Failure on the report. seen holds every path
// already written; a repeated folder is skipped with its subtree.
func (e *Exporter) walk(ctx context.Context, g graph.Graph, zw *zip.Writer, dir *graph.Node, current string, seen map[string]bool, report *Report) error {
	for _, childID := range dir.Children {
		if err := ctx.Err(); err != nil {
			return err
		}

		child, err := g.GetNode(childID)
		if err != nil {
			report.Failures = append(report.Failures, Failure{Path: join(current, childID), NodeID: childID, Err: err})
			continue
		}
		path := join(current, child.FileName())
		if err := graph.ValidateName(child.Name); err != nil {
			report.Failures = append(report.Failures, Failure{Path: path, NodeID: child.ID, Err: err})
			continue
		}
		if seen[path] {
			e.logger.Debug("export entry skipped", zap.String("path", path), zap.Error(ErrDuplicatePath))
			report.Failures = append(report.Failures, Failure{Path: path, NodeID: child.ID, Err: ErrDuplicatePath})
			continue
		}
		seen[path] = true

		if child.IsFolder() {
			if err := e.writeDir(zw, child, path); err != nil {
				report.Failures = append(report.Failures, Failure{Path: path + "/", NodeID: child.ID, Err: err})
				continue
			}
			report.Dirs++
			if err := e.walk(ctx, g, zw, child, path, seen, report); err != nil {
				return err
			}
			continue
		}

		if err := e.writeFile(zw, child, path); err != nil {
			e.logger.Debug("export entry failed", zap.String("path", path), zap.Error(err))
			report.Failures = append(report.Failures, Failure{Path: path, NodeID: child.ID, Err: err})
			continue
		}
		report.Files++
	}
	return nil
}

func (e *Exporter) writeDir(zw *zip.Writer, n *graph.Node, path string) error {
	hdr := &zip.FileHeader{
		Name:     path + "/",
		Method:   zip.Store,
		Modified: e.modTime(n),
	}
	hdr.SetMode(fs.ModeDir | 0o755)
	_, err := zw.CreateHeader(hdr)
	return err
}

func (e *Exporter) writeFile(zw *zip.Writer, n *graph.Node, path string) error {
	data, err := e.hook(n, path)
	if err != nil {
		return err
	}
	if data == nil {
		return errors.New("content hook returned no data")
	}

	hdr := &zip.FileHeader{
		Name:     path,
		Method:   zip.Deflate,
		Modified: e.modTime(n),
	}
	hdr.SetMode(0o644)
	fw, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = fw.Write(data)
	return err
}

func (e *Exporter) modTime(n *graph.Node) time.Time {
	if !n.ModTime.IsZero() {
		return n.ModTime
	}
	return e.now()
}

func join(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}
