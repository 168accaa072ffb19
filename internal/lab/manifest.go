package lab

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultManifestPath is where LoadManifest looks when no path is given.
const DefaultManifestPath = "podlab.yaml"

// ServerSpec describes how to launch the external pod server. The
// server is invoked with exactly two flags: the configuration file and
// the persistent data directory, matching its documented CLI surface.
type ServerSpec struct {
	Command        string        `yaml:"command"`
	ConfigFlag     string        `yaml:"config_flag"`
	ConfigFile     string        `yaml:"config"`
	DataDirFlag    string        `yaml:"data_dir_flag"`
	DataDir        string        `yaml:"data_dir"`
	Port           int           `yaml:"port"`
	ReadyPath      string        `yaml:"ready_path"`
	StartupTimeout time.Duration `yaml:"startup_timeout"`
}

// AccountSpec is one demo account: the email/password pair submitted to
// the server's registration form and the name of the pod it owns.
type AccountSpec struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Pod      string `yaml:"pod"`
}

// FixturesSpec points at the fixture tree. The tree contains one
// subdirectory per pod; every resource file in it must have a paired
// "<name>.acl" sidecar.
type FixturesSpec struct {
	Dir string `yaml:"dir"`
}

// ViewerSpec describes the external viewer application: where it lives,
// how to install its dependencies, which preset to select, and how to
// start its development server.
type ViewerSpec struct {
	Dir            string   `yaml:"dir"`
	PackageManager string   `yaml:"package_manager"`
	InstallArgs    []string `yaml:"install_args"`
	DevArgs        []string `yaml:"dev_args"`
	PresetsDir     string   `yaml:"presets_dir"`
	ConfigDir      string   `yaml:"config_dir"`
	Preset         string   `yaml:"preset"`
	DevPort        int      `yaml:"dev_port"`
}

// ObjectStoreSpec configures the optional S3/MinIO seed backend, used
// when the external server is configured with object-store pod storage.
type ObjectStoreSpec struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
}

// JournalSpec enables the Postgres provisioning journal when a DSN is
// set. An empty DSN disables journaling entirely.
type JournalSpec struct {
	DatabaseURL string `yaml:"database_url"`
}

// SnapshotSpec configures data-dir snapshots.
type SnapshotSpec struct {
	Dir       string `yaml:"dir"`
	Retention int    `yaml:"retention"`
	Upload    bool   `yaml:"upload"`
}

// Manifest is the declarative description of one demo environment,
// normally loaded from podlab.yaml.
type Manifest struct {
	Server      ServerSpec      `yaml:"server"`
	Accounts    []AccountSpec   `yaml:"accounts"`
	Fixtures    FixturesSpec    `yaml:"fixtures"`
	Viewer      ViewerSpec      `yaml:"viewer"`
	ObjectStore ObjectStoreSpec `yaml:"object_store"`
	Journal     JournalSpec     `yaml:"journal"`
	Snapshot    SnapshotSpec    `yaml:"snapshot"`
}

// ServerURL returns the base URL of the external server.
func (m *Manifest) ServerURL() string {
	return fmt.Sprintf("http://localhost:%d", m.Server.Port)
}

// ViewerURL returns the base URL of the viewer dev server.
func (m *Manifest) ViewerURL() string {
	return fmt.Sprintf("http://localhost:%d", m.Viewer.DevPort)
}

// PodDir returns the filesystem directory backing the named pod.
func (m *Manifest) PodDir(pod string) string {
	return filepath.Join(m.Server.DataDir, pod)
}

// LoadManifest reads the YAML manifest at path, fills in defaults and
// applies PODLAB_* environment overrides. A .env file next to the
// manifest is loaded first when present, so local overrides do not need
// to live in the shell profile.
func LoadManifest(path string) (*Manifest, error) {
	if path == "" {
		path = DefaultManifestPath
	}

	// Best effort: a missing .env is not an error.
	_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	m.applyDefaults()
	m.applyEnvOverrides()

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) applyDefaults() {
	if m.Server.Command == "" {
		m.Server.Command = "community-solid-server"
	}
	if m.Server.ConfigFlag == "" {
		m.Server.ConfigFlag = "-c"
	}
	if m.Server.DataDirFlag == "" {
		m.Server.DataDirFlag = "-f"
	}
	if m.Server.DataDir == "" {
		m.Server.DataDir = "data"
	}
	if m.Server.Port == 0 {
		m.Server.Port = 3000
	}
	if m.Server.ReadyPath == "" {
		m.Server.ReadyPath = "/"
	}
	if m.Server.StartupTimeout <= 0 {
		m.Server.StartupTimeout = 60 * time.Second
	}
	if m.Fixtures.Dir == "" {
		m.Fixtures.Dir = "fixtures"
	}
	if m.Viewer.PackageManager == "" {
		m.Viewer.PackageManager = "npm"
	}
	if len(m.Viewer.InstallArgs) == 0 {
		m.Viewer.InstallArgs = []string{"install"}
	}
	if len(m.Viewer.DevArgs) == 0 {
		m.Viewer.DevArgs = []string{"run", "dev"}
	}
	if m.Viewer.PresetsDir == "" {
		m.Viewer.PresetsDir = "presets"
	}
	if m.Viewer.ConfigDir == "" {
		m.Viewer.ConfigDir = "config"
	}
	if m.Viewer.DevPort == 0 {
		m.Viewer.DevPort = 8080
	}
	if m.Snapshot.Dir == "" {
		m.Snapshot.Dir = "snapshots"
	}
	if m.Snapshot.Retention <= 0 {
		m.Snapshot.Retention = 7
	}
}

// applyEnvOverrides lets the environment win over the manifest for the
// values that differ between operator machines.
func (m *Manifest) applyEnvOverrides() {
	m.Server.Command = getenvDefault("PODLAB_SERVER_COMMAND", m.Server.Command)
	m.Server.ConfigFile = getenvDefault("PODLAB_SERVER_CONFIG", m.Server.ConfigFile)
	m.Server.DataDir = getenvDefault("PODLAB_DATA_DIR", m.Server.DataDir)
	m.Server.Port = getenvInt("PODLAB_SERVER_PORT", m.Server.Port)
	m.Viewer.DevPort = getenvInt("PODLAB_VIEWER_PORT", m.Viewer.DevPort)
	m.Viewer.Preset = getenvDefault("PODLAB_VIEWER_PRESET", m.Viewer.Preset)
	m.Journal.DatabaseURL = getenvDefault("DATABASE_URL", m.Journal.DatabaseURL)
	m.ObjectStore.Endpoint = getenvDefault("PODLAB_S3_ENDPOINT", m.ObjectStore.Endpoint)
	m.ObjectStore.AccessKey = getenvDefault("PODLAB_S3_ACCESS_KEY", m.ObjectStore.AccessKey)
	m.ObjectStore.SecretKey = getenvDefault("PODLAB_S3_SECRET_KEY", m.ObjectStore.SecretKey)
	m.ObjectStore.Bucket = getenvDefault("PODLAB_BUCKET", m.ObjectStore.Bucket)
}

// getenvDefault reads an environment variable and returns a default
// value if not set.
func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
