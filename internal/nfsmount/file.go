package nfsmount

import (
	"fmt"
	"io"

	billy "github.com/go-git/go-billy/v5"

	"github.com/agentic-research/codepad/internal/graph"
)

// commitFunc stores the final content of a written file.
type commitFunc func(nodeID string, content []byte) error

// seek resolves a Seek call against a file of the given size. Negative
// results clamp to zero.
func seek(pos, size, offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = pos + offset
	case io.SeekEnd:
		next = size + offset
	default:
		return pos, fmt.Errorf("seek: invalid whence %d", whence)
	}
	if next < 0 {
		next = 0
	}
	return next, nil
}

// graphFile reads a file node out of the snapshot it was opened on.
type graphFile struct {
	name  string
	id    string
	size  int64
	graph graph.Graph
	pos   int64
}

func (f *graphFile) Name() string { return f.name }

func (f *graphFile) Read(p []byte) (int, error) {
	n, err := f.ReadAt(p, f.pos)
	f.pos += int64(n)
	return n, err
}

func (f *graphFile) ReadAt(p []byte, off int64) (int, error) {
	if off >= f.size {
		return 0, io.EOF
	}
	n, err := f.graph.ReadContent(f.id, p, off)
	if err != nil {
		return 0, err
	}
	if n == 0 || off+int64(n) >= f.size {
		return n, io.EOF
	}
	return n, nil
}

func (f *graphFile) Seek(offset int64, whence int) (int64, error) {
	pos, err := seek(f.pos, f.size, offset, whence)
	f.pos = pos
	return pos, err
}

func (f *graphFile) Write([]byte) (int, error) { return 0, errReadOnly }
func (f *graphFile) Truncate(int64) error      { return errReadOnly }
func (f *graphFile) Lock() error               { return nil }
func (f *graphFile) Unlock() error             { return nil }
func (f *graphFile) Close() error              { return nil }

// bytesFile serves a static byte slice, for virtual files.
type bytesFile struct {
	name string
	data []byte
	pos  int64
}

func (f *bytesFile) Name() string { return f.name }

func (f *bytesFile) Read(p []byte) (int, error) {
	n, err := f.ReadAt(p, f.pos)
	f.pos += int64(n)
	return n, err
}

func (f *bytesFile) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.data[off:])
	if off+int64(n) >= int64(len(f.data)) {
		return n, io.EOF
	}
	return n, nil
}

func (f *bytesFile) Seek(offset int64, whence int) (int64, error) {
	pos, err := seek(f.pos, int64(len(f.data)), offset, whence)
	f.pos = pos
	return pos, err
}

func (f *bytesFile) Write([]byte) (int, error) { return 0, errReadOnly }
func (f *bytesFile) Truncate(int64) error      { return errReadOnly }
func (f *bytesFile) Lock() error               { return nil }
func (f *bytesFile) Unlock() error             { return nil }
func (f *bytesFile) Close() error              { return nil }

// writeFile buffers writes and commits the whole buffer on Close. NFS
// WRITE RPCs arrive as separate open/write/close cycles, each pre-filled
// with the current content.
type writeFile struct {
	name    string
	id      string
	buf     []byte
	pos     int64
	written bool
	closed  bool
	onClose commitFunc
}

func (f *writeFile) Name() string { return f.name }

func (f *writeFile) Read(p []byte) (int, error) {
	n, err := f.ReadAt(p, f.pos)
	f.pos += int64(n)
	return n, err
}

func (f *writeFile) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(f.buf)) {
		return 0, io.EOF
	}
	n := copy(p, f.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *writeFile) Write(p []byte) (int, error) {
	end := f.pos + int64(len(p))
	if end > int64(len(f.buf)) {
		grown := make([]byte, end)
		copy(grown, f.buf)
		f.buf = grown
	}
	n := copy(f.buf[f.pos:], p)
	f.pos += int64(n)
	f.written = true
	return n, nil
}

func (f *writeFile) Seek(offset int64, whence int) (int64, error) {
	pos, err := seek(f.pos, int64(len(f.buf)), offset, whence)
	f.pos = pos
	return pos, err
}

// Truncate resizes the buffer but does not mark the file written. NFS
// SETATTR(size=0) runs a Truncate+Close cycle ahead of the WRITE, and
// committing it would blank the file in the log and in open editors.
func (f *writeFile) Truncate(size int64) error {
	switch {
	case size < int64(len(f.buf)):
		f.buf = f.buf[:size]
	case size > int64(len(f.buf)):
		grown := make([]byte, size)
		copy(grown, f.buf)
		f.buf = grown
	}
	return nil
}

// Close commits the buffer once, and only if Write was called.
func (f *writeFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	if !f.written || f.onClose == nil {
		return nil
	}
	if err := f.onClose(f.id, f.buf); err != nil {
		return fmt.Errorf("write-back failed for %s: %w", f.name, err)
	}
	return nil
}

func (f *writeFile) Lock() error   { return nil }
func (f *writeFile) Unlock() error { return nil }

var (
	_ billy.File = (*graphFile)(nil)
	_ billy.File = (*bytesFile)(nil)
	_ billy.File = (*writeFile)(nil)
)
