package lab

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FSBackend seeds directly into the external server's data directory,
// the runbook's literal file-copy layout: <data_dir>/<pod>/<path>.
type FSBackend struct {
	dataDir string
}

// NewFSBackend returns a filesystem backend rooted at dataDir.
func NewFSBackend(dataDir string) *FSBackend {
	return &FSBackend{dataDir: dataDir}
}

// destPath resolves pod/rel below the data dir and rejects anything
// that would escape it.
func (b *FSBackend) destPath(pod, rel string) (string, error) {
	if strings.Contains(rel, "..") || strings.Contains(pod, "..") {
		return "", fmt.Errorf("invalid seed path %s/%s", pod, rel)
	}
	dest := filepath.Join(b.dataDir, pod, filepath.FromSlash(rel))
	root := filepath.Clean(b.dataDir) + string(os.PathSeparator)
	if !strings.HasPrefix(filepath.Clean(dest), strings.TrimSuffix(root, string(os.PathSeparator))) {
		return "", fmt.Errorf("seed path escapes data dir: %s/%s", pod, rel)
	}
	return dest, nil
}

// Put writes data at <data_dir>/<pod>/<rel>, creating parents.
func (b *FSBackend) Put(ctx context.Context, pod, rel string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest, err := b.destPath(pod, rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	// Write-then-rename so the external server never observes a
	// half-written resource.
	tmp := dest + ".podlab-tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, dest)
}

// Digest returns the SHA-256 of the file at pod/rel when present.
func (b *FSBackend) Digest(ctx context.Context, pod, rel string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	dest, err := b.destPath(pod, rel)
	if err != nil {
		return "", false, err
	}
	sum, _, err := fileSHA256(dest)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return sum, true, nil
}
