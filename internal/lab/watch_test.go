package lab

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestWatcherReseedsOnChange(t *testing.T) {
	m := seedManifest(t)
	writeFixture(t, m.Fixtures.Dir, "alice", "profile.ttl")
	writeFixture(t, m.Fixtures.Dir, "alice", "profile.ttl.acl")

	backend := NewFSBackend(m.Server.DataDir)
	seeder := NewSeeder(m, backend, nil, zap.NewNop())
	if _, err := seeder.Seed(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewWatcher(seeder, m.Fixtures.Dir, zap.NewNop())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher a moment to register, then change a fixture.
	time.Sleep(200 * time.Millisecond)
	changed := filepath.Join(m.Fixtures.Dir, "alice", "profile.ttl")
	if err := os.WriteFile(changed, []byte("changed by watch test"), 0o644); err != nil {
		t.Fatal(err)
	}

	// The debounced re-seed should propagate the change to pod storage.
	dest := filepath.Join(m.Server.DataDir, "alice", "profile.ttl")
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		got, err := os.ReadFile(dest)
		if err == nil && string(got) == "changed by watch test" {
			cancel()
			if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
				t.Fatalf("watcher returned: %v", err)
			}
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatal("change never propagated to pod storage")
}
