package lab

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
)

func TestSnapshotArchivesDataDir(t *testing.T) {
	dataDir := t.TempDir()
	writeFixture(t, dataDir, "alice", "profile.ttl")
	writeFixture(t, dataDir, "alice", "profile.ttl.acl")
	writeFixture(t, dataDir, "bob", "inbox.ttl")

	spec := SnapshotSpec{Dir: t.TempDir(), Retention: 7}
	s := NewSnapshotter(spec, dataDir, nil, zap.NewNop())

	result, err := s.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if result.Files != 3 {
		t.Fatalf("expected 3 archived files, got %d", result.Files)
	}
	if result.SizeBytes <= 0 {
		t.Fatal("empty archive")
	}

	// The archive must list every file with slash-separated relative names.
	names := tarNames(t, result.Path)
	want := []string{"alice/profile.ttl", "alice/profile.ttl.acl", "bob/inbox.ttl"}
	sort.Strings(names)
	if len(names) != len(want) {
		t.Fatalf("archive names %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("archive names %v, want %v", names, want)
		}
	}
}

func tarNames(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	tr := tar.NewReader(gz)
	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		names = append(names, hdr.Name)
	}
	return names
}

func TestSnapshotRetention(t *testing.T) {
	dataDir := t.TempDir()
	writeFixture(t, dataDir, "alice", "profile.ttl")

	snapDir := t.TempDir()
	// Pre-existing old snapshots, oldest names sort first.
	old := []string{
		snapshotPrefix + "20240101-000000.tar.gz",
		snapshotPrefix + "20240102-000000.tar.gz",
	}
	for _, name := range old {
		if err := os.WriteFile(filepath.Join(snapDir, name), []byte("old"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	spec := SnapshotSpec{Dir: snapDir, Retention: 2}
	s := NewSnapshotter(spec, dataDir, nil, zap.NewNop())

	result, err := s.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Pruned) != 1 {
		t.Fatalf("expected 1 pruned snapshot, got %v", result.Pruned)
	}
	if filepath.Base(result.Pruned[0]) != old[0] {
		t.Fatalf("pruned %s, want oldest %s", result.Pruned[0], old[0])
	}

	entries, err := os.ReadDir(snapDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 remaining snapshots, got %d", len(entries))
	}
}

func TestSnapshotMissingDataDir(t *testing.T) {
	spec := SnapshotSpec{Dir: t.TempDir(), Retention: 2}
	s := NewSnapshotter(spec, filepath.Join(t.TempDir(), "absent"), nil, zap.NewNop())
	if _, err := s.Snapshot(context.Background()); err == nil {
		t.Fatal("expected error for missing data dir")
	}
}

func TestSnapshotNamesAreChronological(t *testing.T) {
	a := snapshotPrefix + time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Format("20060102-150405") + ".tar.gz"
	b := snapshotPrefix + time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC).Format("20060102-150405") + ".tar.gz"
	if !(a < b) {
		t.Fatal("snapshot names must sort chronologically")
	}
}
