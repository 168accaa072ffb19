package lab

import (
	"strings"
	"testing"
)

func validManifest() *Manifest {
	m := &Manifest{
		Server: ServerSpec{
			Command:    "community-solid-server",
			ConfigFile: "config.json",
		},
		Accounts: []AccountSpec{
			{Email: "alice@example.org", Password: "alice-secret-1", Pod: "alice"},
		},
		Viewer: ViewerSpec{Dir: "viewer"},
	}
	m.applyDefaults()
	return m
}

func TestValidateOK(t *testing.T) {
	if err := validManifest().Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Manifest)
		wantSub string
	}{
		{"missing config", func(m *Manifest) { m.Server.ConfigFile = "" }, "server.config"},
		{"bad port", func(m *Manifest) { m.Server.Port = 99999 }, "server.port"},
		{"bad ready path", func(m *Manifest) { m.Server.ReadyPath = "health" }, "server.ready_path"},
		{"no accounts", func(m *Manifest) { m.Accounts = nil }, "accounts"},
		{"bad email", func(m *Manifest) { m.Accounts[0].Email = "not-an-email" }, "email"},
		{"short password", func(m *Manifest) { m.Accounts[0].Password = "short" }, "password"},
		{"bad pod name", func(m *Manifest) { m.Accounts[0].Pod = "Alice Pod" }, "pod"},
		{"duplicate pod", func(m *Manifest) {
			m.Accounts = append(m.Accounts, AccountSpec{
				Email: "bob@example.org", Password: "bob-secret-22", Pod: "alice",
			})
		}, "duplicate pod"},
		{"duplicate email", func(m *Manifest) {
			m.Accounts = append(m.Accounts, AccountSpec{
				Email: "alice@example.org", Password: "bob-secret-22", Pod: "bob",
			})
		}, "duplicate email"},
		{"missing viewer dir", func(m *Manifest) { m.Viewer.Dir = "" }, "viewer.dir"},
		{"port clash", func(m *Manifest) { m.Viewer.DevPort = m.Server.Port }, "share port"},
		{"partial object store", func(m *Manifest) { m.ObjectStore.Endpoint = "minio:9000" }, "object_store"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validManifest()
			tt.mutate(m)
			err := m.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Fatalf("error %q does not mention %q", err.Error(), tt.wantSub)
			}
		})
	}
}
