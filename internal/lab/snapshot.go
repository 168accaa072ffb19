// snapshot.go - Point-in-time archives of the server's data directory.
//
// A snapshot is a tar.gz of everything under the data dir, written to
// the snapshot dir with a timestamped name. Old snapshots beyond the
// retention count are pruned, and archives can optionally be uploaded
// to the object-store bucket.
package lab

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
)

const snapshotPrefix = "podlab-data-"

// SnapshotResult describes one completed snapshot.
type SnapshotResult struct {
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	Files     int       `json:"files"`
	CreatedAt time.Time `json:"created_at"`
	Uploaded  bool      `json:"uploaded"`
	Pruned    []string  `json:"pruned,omitempty"`
}

// Snapshotter archives the data directory.
type Snapshotter struct {
	spec    SnapshotSpec
	dataDir string
	store   *MinioBackend // nil when no object store is configured
	log     *zap.Logger
}

// NewSnapshotter returns a Snapshotter. store may be nil; upload is
// then skipped even when the manifest asks for it.
func NewSnapshotter(spec SnapshotSpec, dataDir string, store *MinioBackend, log *zap.Logger) *Snapshotter {
	return &Snapshotter{spec: spec, dataDir: dataDir, store: store, log: log}
}

// Snapshot archives the data dir and applies retention.
func (s *Snapshotter) Snapshot(ctx context.Context) (*SnapshotResult, error) {
	if _, err := os.Stat(s.dataDir); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	if err := os.MkdirAll(s.spec.Dir, 0o755); err != nil {
		return nil, err
	}

	name := snapshotPrefix + time.Now().UTC().Format("20060102-150405") + ".tar.gz"
	dest := filepath.Join(s.spec.Dir, name)

	files, err := s.writeArchive(ctx, dest)
	if err != nil {
		_ = os.Remove(dest)
		return nil, err
	}

	info, err := os.Stat(dest)
	if err != nil {
		return nil, err
	}

	result := &SnapshotResult{
		Path:      dest,
		SizeBytes: info.Size(),
		Files:     files,
		CreatedAt: time.Now().UTC(),
	}

	if s.spec.Upload && s.store != nil {
		if err := s.store.UploadFile(ctx, "snapshots/"+name, dest); err != nil {
			return result, fmt.Errorf("upload snapshot: %w", err)
		}
		result.Uploaded = true
	}

	pruned, err := s.prune()
	if err != nil {
		s.log.Warn("snapshot retention failed", zap.Error(err))
	}
	result.Pruned = pruned

	s.log.Info("snapshot written",
		zap.String("path", dest),
		zap.Int64("size_bytes", result.SizeBytes),
		zap.Int("files", files),
		zap.Bool("uploaded", result.Uploaded))
	return result, nil
}

func (s *Snapshotter) writeArchive(ctx context.Context, dest string) (int, error) {
	out, err := os.Create(dest)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	defer gz.Close()
	tw := tar.NewWriter(gz)
	defer tw.Close()

	files := 0
	err = filepath.WalkDir(s.dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.dataDir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(tw, f)
		f.Close()
		if err != nil {
			return err
		}
		files++
		return nil
	})
	if err != nil {
		return files, fmt.Errorf("archive data dir: %w", err)
	}
	return files, nil
}

// prune removes the oldest snapshots beyond the retention count and
// returns the removed paths.
func (s *Snapshotter) prune() ([]string, error) {
	entries, err := os.ReadDir(s.spec.Dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), snapshotPrefix) {
			names = append(names, e.Name())
		}
	}
	// Timestamped names sort chronologically.
	sort.Strings(names)
	if len(names) <= s.spec.Retention {
		return nil, nil
	}

	var pruned []string
	for _, name := range names[:len(names)-s.spec.Retention] {
		path := filepath.Join(s.spec.Dir, name)
		if err := os.Remove(path); err != nil {
			return pruned, err
		}
		pruned = append(pruned, path)
	}
	return pruned, nil
}
