// Package nfsmount exposes a workspace as a billy.Filesystem and serves it
// over NFSv3 with willscott/go-nfs.
//
// Paths are display paths ("src/main.cpp"). Reads are served from the
// forest snapshot current at open time. Writes are buffered per open file
// and committed through the workspace on Close, so they are logged and
// observed like edits from any other frontend.
package nfsmount

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/helper/chroot"
	"go.uber.org/zap"

	"github.com/agentic-research/codepad/internal/graph"
	"github.com/agentic-research/codepad/internal/metrics"
	"github.com/agentic-research/codepad/internal/workspace"
)

// LogFile is the read-only virtual file at the mount root that renders
// the terminal log.
const LogFile = "_terminal.log"

var (
	errReadOnly = errors.New("read-only filesystem")
	errNotEmpty = errors.New("directory not empty")
	errIsDir    = errors.New("is a directory")
	errNotDir   = errors.New("not a directory")
	errCrossDir = errors.New("rename across folders is not supported")
)

// TreeFS adapts a workspace to billy.Filesystem.
type TreeFS struct {
	ws        *workspace.Workspace
	mountTime time.Time
	writable  bool
	logger    *zap.Logger
}

// Option configures a TreeFS.
type Option func(*TreeFS)

// Writable enables Create, OpenFile for writing, MkdirAll, Remove and Rename.
func Writable() Option {
	return func(fs *TreeFS) { fs.writable = true }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *zap.Logger) Option {
	return func(fs *TreeFS) { fs.logger = l }
}

// New returns a read-only view of ws unless Writable is given.
func New(ws *workspace.Workspace, opts ...Option) *TreeFS {
	fs := &TreeFS{
		ws:        ws,
		mountTime: time.Now(),
		logger:    zap.NewNop(),
	}
	for _, o := range opts {
		o(fs)
	}
	return fs
}

// --- billy.Basic ---

func (fs *TreeFS) Create(filename string) (billy.File, error) {
	return fs.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
}

func (fs *TreeFS) Open(filename string) (billy.File, error) {
	return fs.OpenFile(filename, os.O_RDONLY, 0)
}

func (fs *TreeFS) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	filename = cleanPath(filename)

	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND) != 0 {
		if !fs.writable {
			return nil, &os.PathError{Op: "open", Path: filename, Err: errReadOnly}
		}
		return fs.openWritable(filename, flag)
	}

	if filename == "/"+LogFile {
		return &bytesFile{name: LogFile, data: fs.logBytes()}, nil
	}

	forest := fs.ws.Forest()
	node, err := resolve(forest, filename)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrNotExist}
	}
	if node.IsFolder() {
		return nil, &os.PathError{Op: "open", Path: filename, Err: errIsDir}
	}
	return &graphFile{
		name:  filename,
		id:    node.ID,
		size:  node.ContentSize(),
		graph: forest,
	}, nil
}

// openWritable returns a buffered file that commits on Close. A missing
// file is created first when O_CREATE is set.
func (fs *TreeFS) openWritable(filename string, flag int) (billy.File, error) {
	if filename == "/"+LogFile {
		return nil, &os.PathError{Op: "open", Path: filename, Err: errReadOnly}
	}

	forest := fs.ws.Forest()
	node, err := resolve(forest, filename)
	switch {
	case err != nil && flag&os.O_CREATE == 0:
		return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrNotExist}
	case err != nil:
		node, err = fs.createFile(forest, filename)
		if err != nil {
			return nil, err
		}
	case flag&os.O_EXCL != 0:
		return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrExist}
	case node.IsFolder():
		return nil, &os.PathError{Op: "open", Path: filename, Err: errIsDir}
	}

	var buf []byte
	if flag&os.O_TRUNC == 0 && node.Data != nil {
		buf = make([]byte, len(node.Data))
		copy(buf, node.Data)
	}
	f := &writeFile{
		name:    filename,
		id:      node.ID,
		buf:     buf,
		onClose: fs.commit,
	}
	if flag&os.O_APPEND != 0 {
		f.pos = int64(len(buf))
	}
	return f, nil
}

func (fs *TreeFS) createFile(forest *graph.Forest, filename string) (*graph.Node, error) {
	parentID, err := parentOf(forest, filename)
	if err != nil {
		return nil, &os.PathError{Op: "create", Path: filename, Err: err}
	}
	name, ext := graph.SplitFileName(path.Base(filename))
	n, err := fs.ws.AddFile(parentID, name, ext)
	metrics.RecordMountWrite(err)
	if err != nil {
		return nil, &os.PathError{Op: "create", Path: filename, Err: err}
	}
	fs.logger.Debug("created via mount", zap.String("path", filename), zap.String("node_id", n.ID))
	return n, nil
}

// commit is the write-back for writeFile.
func (fs *TreeFS) commit(id string, content []byte) error {
	err := fs.ws.UpdateFileContent(id, string(content))
	metrics.RecordMountWrite(err)
	if err != nil {
		fs.logger.Warn("mount write failed", zap.String("node_id", id), zap.Error(err))
	}
	return err
}

func (fs *TreeFS) Stat(filename string) (os.FileInfo, error) {
	return fs.Lstat(filename)
}

// Rename only renames in place: the destination must share the source's
// parent folder.
func (fs *TreeFS) Rename(oldpath, newpath string) error {
	if !fs.writable {
		return errReadOnly
	}
	oldpath, newpath = cleanPath(oldpath), cleanPath(newpath)

	forest := fs.ws.Forest()
	node, err := resolve(forest, oldpath)
	if err != nil {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: os.ErrNotExist}
	}
	if path.Dir(oldpath) != path.Dir(newpath) {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: errCrossDir}
	}
	if _, err := resolve(forest, newpath); err == nil {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: os.ErrExist}
	}

	base := path.Base(newpath)
	name, ext := base, ""
	if !node.IsFolder() {
		name, ext = graph.SplitFileName(base)
	}
	err = fs.ws.Rename(node.ID, name, ext)
	metrics.RecordMountWrite(err)
	if err != nil {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: err}
	}
	return nil
}

// Remove deletes a file or an empty folder.
func (fs *TreeFS) Remove(filename string) error {
	if !fs.writable {
		return errReadOnly
	}
	filename = cleanPath(filename)

	node, err := resolve(fs.ws.Forest(), filename)
	if err != nil {
		return &os.PathError{Op: "remove", Path: filename, Err: os.ErrNotExist}
	}
	if node.IsFolder() && len(node.Children) > 0 {
		return &os.PathError{Op: "remove", Path: filename, Err: errNotEmpty}
	}
	err = fs.ws.Delete(node.ID)
	metrics.RecordMountWrite(err)
	if err != nil {
		return &os.PathError{Op: "remove", Path: filename, Err: err}
	}
	return nil
}

func (fs *TreeFS) Join(elem ...string) string {
	return path.Join(elem...)
}

// --- billy.TempFile ---

func (fs *TreeFS) TempFile(dir, prefix string) (billy.File, error) {
	return nil, billy.ErrNotSupported
}

// --- billy.Dir ---

func (fs *TreeFS) ReadDir(dirname string) ([]os.FileInfo, error) {
	dirname = cleanPath(dirname)
	forest := fs.ws.Forest()

	var children []string
	if dirname == "/" {
		children = forest.Roots()
	} else {
		node, err := resolve(forest, dirname)
		if err != nil {
			return nil, &os.PathError{Op: "readdir", Path: dirname, Err: os.ErrNotExist}
		}
		if !node.IsFolder() {
			return nil, &os.PathError{Op: "readdir", Path: dirname, Err: errNotDir}
		}
		children = node.Children
	}

	infos := make([]os.FileInfo, 0, len(children)+1)
	if dirname == "/" {
		infos = append(infos, fs.logInfo())
	}
	for _, id := range children {
		child, err := forest.Find(id)
		if err != nil {
			continue
		}
		infos = append(infos, fs.nodeInfo(child))
	}
	return infos, nil
}

// MkdirAll creates every missing folder along filename.
func (fs *TreeFS) MkdirAll(filename string, perm os.FileMode) error {
	if !fs.writable {
		return errReadOnly
	}
	filename = cleanPath(filename)
	if filename == "/" {
		return nil
	}

	parentID := ""
	level := fs.ws.Forest().Roots()
	for _, seg := range strings.Split(strings.TrimPrefix(filename, "/"), "/") {
		forest := fs.ws.Forest()
		var found *graph.Node
		for _, id := range level {
			if n, err := forest.Find(id); err == nil && n.FileName() == seg {
				found = n
				break
			}
		}
		if found == nil {
			created, err := fs.ws.CreateFolder(parentID, seg)
			metrics.RecordMountWrite(err)
			if err != nil {
				return &os.PathError{Op: "mkdir", Path: filename, Err: err}
			}
			found = created
		}
		if !found.IsFolder() {
			return &os.PathError{Op: "mkdir", Path: filename, Err: errNotDir}
		}
		parentID = found.ID
		level = found.Children
	}
	return nil
}

// --- billy.Symlink ---

func (fs *TreeFS) Lstat(filename string) (os.FileInfo, error) {
	filename = cleanPath(filename)

	switch filename {
	case "/":
		mode := os.ModeDir | 0o555
		if fs.writable {
			mode = os.ModeDir | 0o755
		}
		return &staticFileInfo{name: "/", mode: mode, modTime: fs.mountTime}, nil
	case "/" + LogFile:
		return fs.logInfo(), nil
	}

	node, err := resolve(fs.ws.Forest(), filename)
	if err != nil {
		return nil, &os.PathError{Op: "lstat", Path: filename, Err: os.ErrNotExist}
	}
	return fs.nodeInfo(node), nil
}

func (fs *TreeFS) Symlink(target, link string) error {
	return billy.ErrNotSupported
}

func (fs *TreeFS) Readlink(link string) (string, error) {
	return "", billy.ErrNotSupported
}

// --- billy.Chroot ---

func (fs *TreeFS) Chroot(dir string) (billy.Filesystem, error) {
	return chroot.New(fs, dir), nil
}

func (fs *TreeFS) Root() string {
	return "/"
}

// --- billy.Capable ---

func (fs *TreeFS) Capabilities() billy.Capability {
	caps := billy.ReadCapability | billy.SeekCapability
	if fs.writable {
		caps |= billy.WriteCapability | billy.ReadAndWriteCapability | billy.TruncateCapability
	}
	return caps
}

// --- internals ---

func (fs *TreeFS) logBytes() []byte {
	lines := fs.ws.Log().Lines()
	if len(lines) == 0 {
		return []byte{}
	}
	return []byte(strings.Join(lines, "\n") + "\n")
}

func (fs *TreeFS) logInfo() os.FileInfo {
	return &staticFileInfo{
		name:    LogFile,
		size:    int64(len(fs.logBytes())),
		mode:    0o444,
		modTime: time.Now(),
	}
}

func (fs *TreeFS) nodeInfo(n *graph.Node) os.FileInfo {
	var mode os.FileMode
	switch {
	case n.IsFolder() && fs.writable:
		mode = os.ModeDir | 0o755
	case n.IsFolder():
		mode = os.ModeDir | 0o555
	case fs.writable:
		mode = 0o644
	default:
		mode = 0o444
	}
	modTime := n.ModTime
	if modTime.IsZero() {
		modTime = fs.mountTime
	}
	return &staticFileInfo{
		name:    n.FileName(),
		size:    n.ContentSize(),
		mode:    mode,
		modTime: modTime,
	}
}

// resolve maps a clean absolute path to a node.
func resolve(f *graph.Forest, p string) (*graph.Node, error) {
	if p == "/" {
		return nil, graph.ErrNotFound
	}
	return f.Lookup(p)
}

// parentOf returns the folder id that p would live in; "" is the root.
func parentOf(f *graph.Forest, p string) (string, error) {
	dir := path.Dir(p)
	if dir == "/" {
		return "", nil
	}
	parent, err := f.Lookup(dir)
	if err != nil {
		return "", fmt.Errorf("%s: %w", dir, os.ErrNotExist)
	}
	if !parent.IsFolder() {
		return "", fmt.Errorf("%s: %w", dir, errNotDir)
	}
	return parent.ID, nil
}

// cleanPath normalizes a billy path to a clean absolute path.
func cleanPath(p string) string {
	return path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
}

// staticFileInfo implements os.FileInfo with static values.
type staticFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
}

func (fi *staticFileInfo) Name() string       { return fi.name }
func (fi *staticFileInfo) Size() int64        { return fi.size }
func (fi *staticFileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *staticFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *staticFileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *staticFileInfo) Sys() any           { return nil }

var (
	_ billy.Filesystem = (*TreeFS)(nil)
	_ billy.Capable    = (*TreeFS)(nil)
)
