package ingest

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"go.uber.org/zap"

	"github.com/agentic-research/codepad/internal/graph"
)

// DefaultMaxFileSize caps how much of the host a single file may pull in.
const DefaultMaxFileSize = 1 << 20

// skipDirs are build outputs and VCS metadata that never belong in an
// editor session.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"target":       true,
	"__pycache__":  true,
	".venv":        true,
}

// DirOptions configures ImportDir.
type DirOptions struct {
	IDs         graph.IDSource
	Clock       Clock
	MaxFileSize int64 // 0 means DefaultMaxFileSize
	// RootName names the root folder. Empty uses the base name of root.
	RootName string
	Logger   *zap.Logger
}

// Skipped is a host entry left out of the import.
type Skipped struct {
	Path   string
	Reason string
}

// DirReport lists what ImportDir left behind.
type DirReport struct {
	Files   int
	Folders int
	Skipped []Skipped
}

// ImportDir copies the tree under root on bfs into a forest with a single
// root folder. Binary files, oversized files and build directories are
// skipped and reported. Children are ordered folders first, then by name.
func ImportDir(bfs billy.Filesystem, root string, opts DirOptions) (*graph.Forest, *DirReport, error) {
	if opts.IDs == nil {
		return nil, nil, fmt.Errorf("import %s: no id source", root)
	}
	if opts.MaxFileSize == 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	info, err := bfs.Stat(root)
	if err != nil {
		return nil, nil, fmt.Errorf("import %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("import %s: %w", root, graph.ErrNotAFolder)
	}

	name := opts.RootName
	if name == "" {
		name = path.Base(path.Clean("/" + root))
		if name == "/" || name == "." {
			name = "project"
		}
	}

	imp := &dirImporter{bfs: bfs, opts: opts, now: opts.Clock.now(), report: &DirReport{}, forest: graph.NewForest()}
	rootNode := graph.NewFolder(opts.IDs.Generate(), name)
	rootNode.ModTime = info.ModTime()
	imp.forest, err = imp.forest.Insert("", rootNode)
	if err != nil {
		return nil, nil, fmt.Errorf("import %s: %w", root, err)
	}
	imp.report.Folders++

	if err := imp.walk(root, rootNode.ID, 1); err != nil {
		return nil, nil, fmt.Errorf("import %s: %w", root, err)
	}
	return imp.forest, imp.report, nil
}

type dirImporter struct {
	bfs    billy.Filesystem
	opts   DirOptions
	now    func() time.Time
	forest *graph.Forest
	report *DirReport
}

func (d *dirImporter) skip(p, reason string) {
	d.report.Skipped = append(d.report.Skipped, Skipped{Path: p, Reason: reason})
	d.opts.Logger.Debug("import skipped", zap.String("path", p), zap.String("reason", reason))
}

func (d *dirImporter) walk(dir, parentID string, depth int) error {
	entries, err := d.bfs.ReadDir(dir)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return entries[i].Name() < entries[j].Name()
	})

	for _, e := range entries {
		p := d.bfs.Join(dir, e.Name())
		if err := graph.ValidateName(e.Name()); err != nil {
			d.skip(p, "invalid name")
			continue
		}

		switch {
		case e.IsDir():
			if skipDirs[e.Name()] {
				d.skip(p, "build or vcs directory")
				continue
			}
			if depth+1 > graph.MaxDepth {
				d.skip(p, "too deep")
				continue
			}
			folder := graph.NewFolder(d.opts.IDs.Generate(), e.Name())
			folder.Expanded = false
			folder.ModTime = e.ModTime()
			next, err := d.forest.Insert(parentID, folder)
			if err != nil {
				return err
			}
			d.forest = next
			d.report.Folders++
			if err := d.walk(p, folder.ID, depth+1); err != nil {
				return err
			}

		case e.Mode().IsRegular():
			if e.Size() > d.opts.MaxFileSize {
				d.skip(p, fmt.Sprintf("larger than %d bytes", d.opts.MaxFileSize))
				continue
			}
			data, err := d.read(p)
			if err != nil {
				d.skip(p, err.Error())
				continue
			}
			if isBinary(data) {
				d.skip(p, "binary")
				continue
			}
			name, ext := graph.SplitFileName(e.Name())
			n := &graph.Node{ID: d.opts.IDs.Generate(), Name: name, Extension: ext, Data: data, ModTime: e.ModTime()}
			if n.ModTime.IsZero() {
				n.ModTime = d.now()
			}
			next, err := d.forest.Insert(parentID, n)
			if err != nil {
				d.skip(p, err.Error())
				continue
			}
			d.forest = next
			d.report.Files++

		default:
			d.skip(p, "not a regular file")
		}
	}
	return nil
}

func (d *dirImporter) read(p string) ([]byte, error) {
	f, err := d.bfs.Open(p)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(io.LimitReader(f, d.opts.MaxFileSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > d.opts.MaxFileSize {
		return nil, fmt.Errorf("larger than %d bytes", d.opts.MaxFileSize)
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

// isBinary treats a NUL byte in the first 8000 bytes as binary, the same
// heuristic git uses.
func isBinary(data []byte) bool {
	head := data
	if len(head) > 8000 {
		head = head[:8000]
	}
	return bytes.IndexByte(head, 0) >= 0
}

// WriteDir is the inverse of ImportDir: it writes the subtree under
// folderID (or every root when folderID is empty) onto bfs at dir.
// Existing files are overwritten.
func WriteDir(f *graph.Forest, folderID string, bfs billy.Filesystem, dir string) (int, error) {
	var ids []string
	if folderID == "" {
		ids = f.Roots()
	} else {
		children, err := f.Children(folderID)
		if err != nil {
			return 0, err
		}
		ids = children
	}

	written := 0
	for _, id := range ids {
		err := f.WalkFrom(id, func(n *graph.Node, _ int) error {
			rel := f.Path(n.ID)
			if folderID != "" {
				rel = strings.TrimPrefix(rel, f.Path(folderID)+"/")
			}
			p := bfs.Join(dir, rel)
			if n.IsFolder() {
				return bfs.MkdirAll(p, 0o755)
			}
			out, err := bfs.OpenFile(p, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
			if err != nil {
				return err
			}
			if _, err := out.Write(n.Data); err != nil {
				_ = out.Close()
				return err
			}
			written++
			return out.Close()
		})
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
