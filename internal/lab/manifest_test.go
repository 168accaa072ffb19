package lab

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `
server:
  command: community-solid-server
  config: testdata/server-config.json
  data_dir: data
  port: 3000
accounts:
  - email: alice@example.org
    password: alice-secret-1
    pod: alice
  - email: bob@example.org
    password: bob-secret-22
    pod: bob
  - email: carol@example.org
    password: carol-secret-3
    pod: carol
fixtures:
  dir: fixtures
viewer:
  dir: viewer
  preset: solid-demo
  dev_port: 8080
`

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "podlab.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadManifest(t *testing.T) {
	path := writeManifest(t, sampleManifest)

	m, err := LoadManifest(path)
	require.NoError(t, err)

	assert.Equal(t, "community-solid-server", m.Server.Command)
	assert.Equal(t, 3000, m.Server.Port)
	assert.Len(t, m.Accounts, 3)
	assert.Equal(t, "alice", m.Accounts[0].Pod)
	assert.Equal(t, "http://localhost:3000", m.ServerURL())
	assert.Equal(t, filepath.Join("data", "bob"), m.PodDir("bob"))
}

func TestLoadManifestDefaults(t *testing.T) {
	path := writeManifest(t, sampleManifest)

	m, err := LoadManifest(path)
	require.NoError(t, err)

	// Fields absent from the YAML get the runbook defaults.
	assert.Equal(t, "-c", m.Server.ConfigFlag)
	assert.Equal(t, "-f", m.Server.DataDirFlag)
	assert.Equal(t, 60*time.Second, m.Server.StartupTimeout)
	assert.Equal(t, "npm", m.Viewer.PackageManager)
	assert.Equal(t, []string{"install"}, m.Viewer.InstallArgs)
	assert.Equal(t, []string{"run", "dev"}, m.Viewer.DevArgs)
	assert.Equal(t, 7, m.Snapshot.Retention)
}

func TestLoadManifestEnvOverride(t *testing.T) {
	t.Setenv("PODLAB_SERVER_PORT", "3131")
	t.Setenv("PODLAB_VIEWER_PRESET", "other-preset")

	path := writeManifest(t, sampleManifest)
	m, err := LoadManifest(path)
	require.NoError(t, err)

	assert.Equal(t, 3131, m.Server.Port)
	assert.Equal(t, "other-preset", m.Viewer.Preset)
}

func TestLoadManifestMissingFile(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadManifestBadYAML(t *testing.T) {
	path := writeManifest(t, "server: [not: a: mapping")
	_, err := LoadManifest(path)
	require.Error(t, err)
}
