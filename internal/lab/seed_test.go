package lab

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func seedManifest(t *testing.T) *Manifest {
	t.Helper()
	m := &Manifest{
		Server: ServerSpec{
			Command:    "community-solid-server",
			ConfigFile: "config.json",
			DataDir:    t.TempDir(),
			Port:       3000,
		},
		Accounts: []AccountSpec{
			{Email: "alice@example.org", Password: "alice-secret-1", Pod: "alice"},
			{Email: "bob@example.org", Password: "bob-secret-22", Pod: "bob"},
		},
		Fixtures: FixturesSpec{Dir: t.TempDir()},
		Viewer:   ViewerSpec{Dir: "viewer"},
	}
	m.applyDefaults()
	m.Fixtures.Dir = t.TempDir()
	return m
}

func TestSeedCopiesResourcesAndSidecars(t *testing.T) {
	m := seedManifest(t)
	writeFixture(t, m.Fixtures.Dir, "alice", "profile.ttl")
	writeFixture(t, m.Fixtures.Dir, "alice", "profile.ttl.acl")

	seeder := NewSeeder(m, NewFSBackend(m.Server.DataDir), nil, zap.NewNop())
	report, err := seeder.Seed(context.Background())
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if report.Copied != 2 || report.Skipped != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}

	for _, name := range []string{"profile.ttl", "profile.ttl.acl"} {
		if _, err := os.Stat(filepath.Join(m.Server.DataDir, "alice", name)); err != nil {
			t.Fatalf("seeded file missing: %v", err)
		}
	}
}

func TestSeedIdempotent(t *testing.T) {
	m := seedManifest(t)
	writeFixture(t, m.Fixtures.Dir, "alice", "profile.ttl")
	writeFixture(t, m.Fixtures.Dir, "alice", "profile.ttl.acl")

	seeder := NewSeeder(m, NewFSBackend(m.Server.DataDir), nil, zap.NewNop())
	if _, err := seeder.Seed(context.Background()); err != nil {
		t.Fatalf("first seed: %v", err)
	}

	report, err := seeder.Seed(context.Background())
	if err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if report.Copied != 0 || report.Updated != 0 || report.Skipped != 2 {
		t.Fatalf("second run should skip everything: %+v", report)
	}
}

func TestSeedRewritesChangedFixture(t *testing.T) {
	m := seedManifest(t)
	writeFixture(t, m.Fixtures.Dir, "alice", "profile.ttl")
	writeFixture(t, m.Fixtures.Dir, "alice", "profile.ttl.acl")

	seeder := NewSeeder(m, NewFSBackend(m.Server.DataDir), nil, zap.NewNop())
	if _, err := seeder.Seed(context.Background()); err != nil {
		t.Fatal(err)
	}

	changed := filepath.Join(m.Fixtures.Dir, "alice", "profile.ttl")
	if err := os.WriteFile(changed, []byte("updated contents"), 0o644); err != nil {
		t.Fatal(err)
	}

	report, err := seeder.Seed(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Updated != 1 || report.Skipped != 1 {
		t.Fatalf("expected 1 updated, 1 skipped: %+v", report)
	}

	got, err := os.ReadFile(filepath.Join(m.Server.DataDir, "alice", "profile.ttl"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "updated contents" {
		t.Fatalf("stale content after re-seed: %q", got)
	}
}

func TestSeedSubstitutesWebID(t *testing.T) {
	m := seedManifest(t)
	writeFixture(t, m.Fixtures.Dir, "alice", "profile.ttl")
	acl := filepath.Join(m.Fixtures.Dir, "alice", "profile.ttl.acl")
	if err := os.MkdirAll(filepath.Dir(acl), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(acl, []byte("acl:agent <{{webid}}>;"), 0o644); err != nil {
		t.Fatal(err)
	}

	webids := map[string]string{"alice": "http://localhost:3000/alice/profile/card#me"}
	seeder := NewSeeder(m, NewFSBackend(m.Server.DataDir), webids, zap.NewNop())
	if _, err := seeder.Seed(context.Background()); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(filepath.Join(m.Server.DataDir, "alice", "profile.ttl.acl"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(got), "http://localhost:3000/alice/profile/card#me") {
		t.Fatalf("placeholder not substituted: %q", got)
	}
	if strings.Contains(string(got), WebIDPlaceholder) {
		t.Fatalf("placeholder still present: %q", got)
	}
}

func TestSeedSubstituteFallbackWebID(t *testing.T) {
	m := seedManifest(t)
	s := NewSeeder(m, NewFSBackend(m.Server.DataDir), nil, zap.NewNop())

	out := s.substituteOwner("bob", []byte("agent {{webid}} end"))
	want := "agent http://localhost:3000/bob/profile/card#me end"
	if string(out) != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

func TestFSBackendRejectsEscapingPaths(t *testing.T) {
	b := NewFSBackend(t.TempDir())
	if err := b.Put(context.Background(), "alice", "../escape.ttl", []byte("x")); err == nil {
		t.Fatal("expected error for escaping path")
	}
	if err := b.Put(context.Background(), "..", "escape.ttl", []byte("x")); err == nil {
		t.Fatal("expected error for escaping pod name")
	}
}
