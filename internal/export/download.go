package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Deliver saves d into dir under its suggested name and returns the final
// path. If the name is taken, " (1)", " (2)", ... is inserted before the
// extension, the way browsers do. The temporary file used while writing is
// removed on every path.
func Deliver(d *Download, dir string) (string, error) {
	if d == nil {
		return "", errors.New("deliver: nil download")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("deliver %s: %w", d.Name, err)
	}

	tmp, err := os.CreateTemp(dir, ".codepad-download-*")
	if err != nil {
		return "", fmt.Errorf("deliver %s: %w", d.Name, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath) // no-op after a successful rename
	}()

	if _, err := tmp.Write(d.Data); err != nil {
		return "", fmt.Errorf("deliver %s: write: %w", d.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("deliver %s: close: %w", d.Name, err)
	}

	dest, err := freeName(dir, filepath.Base(d.Name))
	if err != nil {
		return "", fmt.Errorf("deliver %s: %w", d.Name, err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return "", fmt.Errorf("deliver %s: rename: %w", d.Name, err)
	}
	return dest, nil
}

func freeName(dir, name string) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 0; i < 10000; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
		}
		p := filepath.Join(dir, candidate)
		if _, err := os.Lstat(p); errors.Is(err, os.ErrNotExist) {
			return p, nil
		} else if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("no free name for %s in %s", name, dir)
}
