// Package fs serves a read-only FUSE view of a workspace with cgofuse.
// Each open file and directory handle pins the forest snapshot current
// when it was opened.
package fs

import (
	"path"
	"sync"
	"time"

	"github.com/winfsp/cgofuse/fuse"
	"go.uber.org/zap"

	"github.com/agentic-research/codepad/internal/graph"
	"github.com/agentic-research/codepad/internal/workspace"
)

// CodepadFS implements the cgofuse FileSystemInterface.
type CodepadFS struct {
	fuse.FileSystemBase
	ws        *workspace.Workspace
	logger    *zap.Logger
	mountTime fuse.Timespec

	mu     sync.Mutex
	nextFh uint64
	files  map[uint64]*graph.Node
	dirs   map[uint64][]string
}

// NewCodepadFS returns a read-only filesystem over ws.
func NewCodepadFS(ws *workspace.Workspace, logger *zap.Logger) *CodepadFS {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CodepadFS{
		ws:        ws,
		logger:    logger,
		mountTime: fuse.NewTimespec(time.Now()),
		nextFh:    1,
		files:     make(map[uint64]*graph.Node),
		dirs:      make(map[uint64][]string),
	}
}

// lookup resolves a FUSE path. The root has no node.
func (fs *CodepadFS) lookup(p string) (*graph.Forest, *graph.Node, int) {
	forest := fs.ws.Forest()
	p = path.Clean("/" + p)
	if p == "/" {
		return forest, nil, 0
	}
	n, err := forest.Lookup(p)
	if err != nil {
		return forest, nil, -fuse.ENOENT
	}
	return forest, n, 0
}

func (fs *CodepadFS) handle() uint64 {
	fh := fs.nextFh
	fs.nextFh++
	return fh
}

// Open pins the file node for subsequent reads.
func (fs *CodepadFS) Open(p string, flags int) (int, uint64) {
	if flags&(fuse.O_WRONLY|fuse.O_RDWR) != 0 {
		return -fuse.EROFS, ^uint64(0)
	}
	_, n, errc := fs.lookup(p)
	switch {
	case errc != 0:
		return errc, ^uint64(0)
	case n == nil || n.IsFolder():
		return -fuse.EISDIR, ^uint64(0)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	fh := fs.handle()
	fs.files[fh] = n
	return 0, fh
}

func (fs *CodepadFS) Release(p string, fh uint64) int {
	fs.mu.Lock()
	delete(fs.files, fh)
	fs.mu.Unlock()
	return 0
}

func (fs *CodepadFS) Getattr(p string, stat *fuse.Stat_t, fh uint64) int {
	stat.Atim = fs.mountTime
	stat.Mtim = fs.mountTime
	stat.Ctim = fs.mountTime
	stat.Birthtim = fs.mountTime

	_, n, errc := fs.lookup(p)
	if errc != 0 {
		return errc
	}
	if n == nil {
		stat.Mode = fuse.S_IFDIR | 0o555
		stat.Nlink = 2
		return 0
	}
	if !n.ModTime.IsZero() {
		stat.Mtim = fuse.NewTimespec(n.ModTime)
		stat.Ctim = stat.Mtim
	}
	if n.IsFolder() {
		stat.Mode = fuse.S_IFDIR | 0o555
		stat.Nlink = 2
		return 0
	}
	stat.Mode = fuse.S_IFREG | 0o444
	stat.Nlink = 1
	stat.Size = n.ContentSize()
	return 0
}

// Opendir snapshots the entry list so paged Readdir calls see one
// consistent listing.
func (fs *CodepadFS) Opendir(p string) (int, uint64) {
	entries, errc := fs.entries(p)
	if errc != 0 {
		return errc, ^uint64(0)
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fh := fs.handle()
	fs.dirs[fh] = entries
	return 0, fh
}

func (fs *CodepadFS) Releasedir(p string, fh uint64) int {
	fs.mu.Lock()
	delete(fs.dirs, fh)
	fs.mu.Unlock()
	return 0
}

// Readdir uses the listing pinned by Opendir when fh names one. Offsets
// are 1-based entry positions, as cgofuse's auto mode expects; fill
// returning false means the kernel buffer is full.
func (fs *CodepadFS) Readdir(p string, fill func(name string, stat *fuse.Stat_t, ofst int64) bool, ofst int64, fh uint64) int {
	fs.mu.Lock()
	entries, ok := fs.dirs[fh]
	fs.mu.Unlock()
	if !ok {
		var errc int
		entries, errc = fs.entries(p)
		if errc != 0 {
			return errc
		}
	}

	for i := int(ofst); i < len(entries); i++ {
		if !fill(entries[i], nil, int64(i+1)) {
			break
		}
	}
	return 0
}

func (fs *CodepadFS) entries(p string) ([]string, int) {
	forest, n, errc := fs.lookup(p)
	if errc != 0 {
		return nil, errc
	}
	ids := forest.Roots()
	if n != nil {
		if !n.IsFolder() {
			return nil, -fuse.ENOTDIR
		}
		ids = n.Children
	}
	entries := make([]string, 0, len(ids)+2)
	entries = append(entries, ".", "..")
	for _, id := range ids {
		if child, err := forest.Find(id); err == nil {
			entries = append(entries, child.FileName())
		}
	}
	return entries, 0
}

// Read serves from the node pinned by Open, or from the current forest
// when fh is unknown.
func (fs *CodepadFS) Read(p string, buff []byte, ofst int64, fh uint64) int {
	fs.mu.Lock()
	n, ok := fs.files[fh]
	fs.mu.Unlock()
	if !ok {
		var errc int
		_, n, errc = fs.lookup(p)
		if errc != 0 {
			return errc
		}
		if n == nil || n.IsFolder() {
			return -fuse.EISDIR
		}
	}

	if ofst >= int64(len(n.Data)) {
		return 0
	}
	return copy(buff, n.Data[ofst:])
}

// Mount serves fs at mountpoint until the host is unmounted. It blocks.
func Mount(fs *CodepadFS, mountpoint string, opts []string) bool {
	host := fuse.NewFileSystemHost(fs)
	fs.logger.Info("mounting", zap.String("mountpoint", mountpoint))
	return host.Mount(mountpoint, append([]string{"-o", "ro,fsname=codepad"}, opts...))
}
