package lab

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestResetRequiresForce(t *testing.T) {
	m := seedManifest(t)
	_, err := Reset(context.Background(), m, ResetOptions{}, zap.NewNop())
	if !errors.Is(err, ErrResetNotForced) {
		t.Fatalf("expected ErrResetNotForced, got %v", err)
	}
}

func TestResetRemovesPodDirsOnly(t *testing.T) {
	m := seedManifest(t)
	writeFixture(t, m.Server.DataDir, "alice", "profile.ttl")
	writeFixture(t, m.Server.DataDir, "bob", "inbox.ttl")
	// Server-internal state next to the pods must survive.
	writeFixture(t, m.Server.DataDir, ".internal", "index.db")

	result, err := Reset(context.Background(), m, ResetOptions{Force: true}, zap.NewNop())
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if len(result.Removed) != 2 {
		t.Fatalf("expected 2 removed dirs, got %v", result.Removed)
	}

	if _, err := os.Stat(m.PodDir("alice")); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("alice pod dir should be gone")
	}
	if _, err := os.Stat(filepath.Join(m.Server.DataDir, ".internal", "index.db")); err != nil {
		t.Fatalf("server-internal state should survive: %v", err)
	}
}

func TestResetAllRemovesDataDir(t *testing.T) {
	m := seedManifest(t)
	writeFixture(t, m.Server.DataDir, "alice", "profile.ttl")

	_, err := Reset(context.Background(), m, ResetOptions{Force: true, All: true}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(m.Server.DataDir); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("data dir should be gone")
	}
}

func TestResetMissingPodsIsNoop(t *testing.T) {
	m := seedManifest(t)
	result, err := Reset(context.Background(), m, ResetOptions{Force: true}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Removed) != 0 {
		t.Fatalf("nothing was seeded, nothing should be removed: %v", result.Removed)
	}
}
