package fs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/winfsp/cgofuse/fuse"

	"github.com/agentic-research/codepad/internal/ident"
	"github.com/agentic-research/codepad/internal/workspace"
)

// newTestFS builds:
//
//	vulns/
//	  CVE-2024-1234/
//	    description  "Buffer overflow in example.c\n"
//	    severity.txt "CRITICAL\n"
//	  CVE-2024-5678/
func newTestFS(t *testing.T) (*CodepadFS, *workspace.Workspace) {
	t.Helper()
	ws := workspace.New(workspace.Config{
		IDs:   ident.NewSequence("n"),
		Clock: func() time.Time { return time.UnixMilli(1700000000000) },
	})
	vulns, err := ws.CreateFolder("", "vulns")
	require.NoError(t, err)
	cve, err := ws.CreateFolder(vulns.ID, "CVE-2024-1234")
	require.NoError(t, err)
	_, err = ws.CreateFolder(vulns.ID, "CVE-2024-5678")
	require.NoError(t, err)

	desc, err := ws.CreateFile(cve.ID, "description", "")
	require.NoError(t, err)
	require.NoError(t, ws.UpdateFileContent(desc.ID, "Buffer overflow in example.c\n"))
	sev, err := ws.CreateFile(cve.ID, "severity", "txt")
	require.NoError(t, err)
	require.NoError(t, ws.UpdateFileContent(sev.ID, "CRITICAL\n"))

	return NewCodepadFS(ws, nil), ws
}

func TestCodepadFS_Open(t *testing.T) {
	cfs, _ := newTestFS(t)

	tests := []struct {
		name    string
		path    string
		flags   int
		wantErr int
	}{
		{"existing file", "/vulns/CVE-2024-1234/severity.txt", fuse.O_RDONLY, 0},
		{"file without extension", "/vulns/CVE-2024-1234/description", fuse.O_RDONLY, 0},
		{"missing path", "/does-not-exist", fuse.O_RDONLY, -fuse.ENOENT},
		{"directory", "/vulns", fuse.O_RDONLY, -fuse.EISDIR},
		{"root", "/", fuse.O_RDONLY, -fuse.EISDIR},
		{"write access", "/vulns/CVE-2024-1234/severity.txt", fuse.O_RDWR, -fuse.EROFS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errc, fh := cfs.Open(tt.path, tt.flags)
			assert.Equal(t, tt.wantErr, errc)
			if errc == 0 {
				assert.NotEqual(t, ^uint64(0), fh)
				assert.Equal(t, 0, cfs.Release(tt.path, fh))
			}
		})
	}
}

func TestCodepadFS_Getattr(t *testing.T) {
	cfs, _ := newTestFS(t)

	tests := []struct {
		name     string
		path     string
		wantErr  int
		wantMode uint32
		wantSize int64
	}{
		{"root", "/", 0, fuse.S_IFDIR | 0o555, 0},
		{"folder", "/vulns/CVE-2024-1234", 0, fuse.S_IFDIR | 0o555, 0},
		{"file", "/vulns/CVE-2024-1234/severity.txt", 0, fuse.S_IFREG | 0o444, int64(len("CRITICAL\n"))},
		{"missing", "/vulns/CVE-0000", -fuse.ENOENT, 0, 0},
		{"extension is part of the name", "/vulns/CVE-2024-1234/severity", -fuse.ENOENT, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stat fuse.Stat_t
			errc := cfs.Getattr(tt.path, &stat, ^uint64(0))
			require.Equal(t, tt.wantErr, errc)
			if errc != 0 {
				return
			}
			assert.Equal(t, tt.wantMode, stat.Mode)
			assert.Equal(t, tt.wantSize, stat.Size)
		})
	}
}

func TestCodepadFS_GetattrUsesModTime(t *testing.T) {
	cfs, _ := newTestFS(t)

	var stat fuse.Stat_t
	require.Equal(t, 0, cfs.Getattr("/vulns/CVE-2024-1234/severity.txt", &stat, ^uint64(0)))
	assert.Equal(t, time.UnixMilli(1700000000000).Unix(), stat.Mtim.Sec)
}

func collect(entries *[]string, accept int) func(string, *fuse.Stat_t, int64) bool {
	return func(name string, _ *fuse.Stat_t, _ int64) bool {
		*entries = append(*entries, name)
		return accept < 0 || len(*entries) < accept
	}
}

func TestCodepadFS_Readdir(t *testing.T) {
	cfs, _ := newTestFS(t)

	var root []string
	require.Equal(t, 0, cfs.Readdir("/", collect(&root, -1), 0, ^uint64(0)))
	assert.Equal(t, []string{".", "..", "vulns"}, root)

	var cve []string
	require.Equal(t, 0, cfs.Readdir("/vulns/CVE-2024-1234", collect(&cve, -1), 0, ^uint64(0)))
	assert.Equal(t, []string{".", "..", "description", "severity.txt"}, cve)

	var missing []string
	assert.Equal(t, -fuse.ENOENT, cfs.Readdir("/nope", collect(&missing, -1), 0, ^uint64(0)))
}

func TestCodepadFS_Readdir_BufferFull(t *testing.T) {
	cfs, _ := newTestFS(t)

	var entries []string
	fill := func(name string, _ *fuse.Stat_t, _ int64) bool {
		entries = append(entries, name)
		return false
	}
	require.Equal(t, 0, cfs.Readdir("/vulns", fill, 0, ^uint64(0)))
	assert.Equal(t, []string{"."}, entries)
}

func TestCodepadFS_Opendir_Errors(t *testing.T) {
	cfs, _ := newTestFS(t)

	errc, _ := cfs.Opendir("/does-not-exist")
	assert.Equal(t, -fuse.ENOENT, errc)

	errc, _ = cfs.Opendir("/vulns/CVE-2024-1234/severity.txt")
	assert.Equal(t, -fuse.ENOTDIR, errc)
}

func TestCodepadFS_Opendir_PinsListing(t *testing.T) {
	cfs, ws := newTestFS(t)

	errc, fh := cfs.Opendir("/vulns")
	require.Equal(t, 0, errc)

	var page1 []string
	require.Equal(t, 0, cfs.Readdir("/vulns", collect(&page1, 2), 0, fh))
	assert.Equal(t, []string{".", ".."}, page1)

	// A folder created between pages does not show up mid-listing.
	_, err := ws.CreateFolder(ws.Forest().Roots()[0], "CVE-2025-0001")
	require.NoError(t, err)

	var page2 []string
	require.Equal(t, 0, cfs.Readdir("/vulns", collect(&page2, -1), 2, fh))
	assert.Equal(t, []string{"CVE-2024-1234", "CVE-2024-5678"}, page2)
	assert.Equal(t, 0, cfs.Releasedir("/vulns", fh))

	var fresh []string
	require.Equal(t, 0, cfs.Readdir("/vulns", collect(&fresh, -1), 0, ^uint64(0)))
	assert.Contains(t, fresh, "CVE-2025-0001")
}

func TestCodepadFS_Read(t *testing.T) {
	cfs, _ := newTestFS(t)

	tests := []struct {
		name     string
		path     string
		offset   int64
		wantN    int
		wantData string
	}{
		{"from start", "/vulns/CVE-2024-1234/severity.txt", 0, len("CRITICAL\n"), "CRITICAL\n"},
		{"with offset", "/vulns/CVE-2024-1234/severity.txt", 4, len("ICAL\n"), "ICAL\n"},
		{"past end", "/vulns/CVE-2024-1234/severity.txt", 100, 0, ""},
		{"missing", "/does-not-exist", 0, -fuse.ENOENT, ""},
		{"directory", "/vulns/CVE-2024-1234", 0, -fuse.EISDIR, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buff := make([]byte, 100)
			n := cfs.Read(tt.path, buff, tt.offset, ^uint64(0))
			require.Equal(t, tt.wantN, n)
			if n > 0 {
				assert.Equal(t, tt.wantData, string(buff[:n]))
			}
		})
	}
}

func TestCodepadFS_ReadPinsOpenSnapshot(t *testing.T) {
	cfs, ws := newTestFS(t)
	const p = "/vulns/CVE-2024-1234/severity.txt"

	errc, fh := cfs.Open(p, fuse.O_RDONLY)
	require.Equal(t, 0, errc)

	n, err := ws.Forest().Lookup(p)
	require.NoError(t, err)
	require.NoError(t, ws.UpdateFileContent(n.ID, "LOW\n"))

	buff := make([]byte, 100)
	got := cfs.Read(p, buff, 0, fh)
	assert.Equal(t, "CRITICAL\n", string(buff[:got]), "open handle keeps its snapshot")
	require.Equal(t, 0, cfs.Release(p, fh))

	got = cfs.Read(p, buff, 0, ^uint64(0))
	assert.Equal(t, "LOW\n", string(buff[:got]))
}

func TestCodepadFS_ErrorCodesArePositive(t *testing.T) {
	assert.Positive(t, fuse.ENOENT)
	assert.Positive(t, fuse.EROFS)
}
