package lab

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.uber.org/zap"
)

// testPort extracts the port an httptest server is listening on.
func testPort(t *testing.T, srv *httptest.Server) int {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return port
}

// okHandler answers 200 for everything.
func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func checkedManifest(t *testing.T, serverPort, viewerPort int) *Manifest {
	m := seedManifest(t)
	m.Server.Port = serverPort
	m.Viewer.DevPort = viewerPort
	return m
}

func TestCheckHealthy(t *testing.T) {
	server := httptest.NewServer(okHandler())
	defer server.Close()
	viewer := httptest.NewServer(okHandler())
	defer viewer.Close()

	m := checkedManifest(t, testPort(t, server), testPort(t, viewer))
	writeFixture(t, m.Fixtures.Dir, "alice", "profile.ttl")
	writeFixture(t, m.Fixtures.Dir, "alice", "profile.ttl.acl")

	backend := NewFSBackend(m.Server.DataDir)
	_, err := NewSeeder(m, backend, nil, zap.NewNop()).Seed(context.Background())
	require.NoError(t, err)

	health := NewChecker(m, backend).Check(context.Background())

	assert.Equal(t, HealthStatusHealthy, health.Status)
	assert.Equal(t, ComponentStatusUp, health.Components["server"].Status)
	assert.Equal(t, ComponentStatusUp, health.Components["viewer"].Status)
	assert.Equal(t, ComponentStatusUp, health.Components["fixtures"].Status)
	assert.Equal(t, ComponentStatusUp, health.Components["pod:alice"].Status)
}

func TestCheckViewerDownIsDegraded(t *testing.T) {
	server := httptest.NewServer(okHandler())
	defer server.Close()
	// Grab a port nobody is listening on.
	dead := httptest.NewServer(okHandler())
	deadPort := testPort(t, dead)
	dead.Close()

	m := checkedManifest(t, testPort(t, server), deadPort)
	writeFixture(t, m.Fixtures.Dir, "alice", "profile.ttl")
	writeFixture(t, m.Fixtures.Dir, "alice", "profile.ttl.acl")

	backend := NewFSBackend(m.Server.DataDir)
	_, err := NewSeeder(m, backend, nil, zap.NewNop()).Seed(context.Background())
	require.NoError(t, err)

	health := NewChecker(m, backend).Check(context.Background())

	assert.Equal(t, HealthStatusDegraded, health.Status)
	assert.Equal(t, ComponentStatusDown, health.Components["viewer"].Status)
}

func TestCheckServerDownIsUnhealthy(t *testing.T) {
	dead := httptest.NewServer(okHandler())
	deadPort := testPort(t, dead)
	dead.Close()
	viewer := httptest.NewServer(okHandler())
	defer viewer.Close()

	m := checkedManifest(t, deadPort, testPort(t, viewer))
	writeFixture(t, m.Fixtures.Dir, "alice", "profile.ttl")
	writeFixture(t, m.Fixtures.Dir, "alice", "profile.ttl.acl")

	backend := NewFSBackend(m.Server.DataDir)
	_, err := NewSeeder(m, backend, nil, zap.NewNop()).Seed(context.Background())
	require.NoError(t, err)

	health := NewChecker(m, backend).Check(context.Background())

	assert.Equal(t, HealthStatusUnhealthy, health.Status)
	assert.Equal(t, ComponentStatusDown, health.Components["server"].Status)
	// Pod roots are not probed when the server itself is down.
	assert.NotContains(t, health.Components, "pod:alice")
}

func TestCheckMissingFixtures(t *testing.T) {
	server := httptest.NewServer(okHandler())
	defer server.Close()
	viewer := httptest.NewServer(okHandler())
	defer viewer.Close()

	m := checkedManifest(t, testPort(t, server), testPort(t, viewer))
	writeFixture(t, m.Fixtures.Dir, "alice", "profile.ttl")
	writeFixture(t, m.Fixtures.Dir, "alice", "profile.ttl.acl")

	// Never seeded: fixtures are missing from pod storage.
	backend := NewFSBackend(m.Server.DataDir)
	health := NewChecker(m, backend).Check(context.Background())

	assert.Equal(t, HealthStatusUnhealthy, health.Status)
	assert.Equal(t, ComponentStatusDown, health.Components["fixtures"].Status)
}

func TestOverallHealth(t *testing.T) {
	up := ComponentHealth{Status: ComponentStatusUp}
	down := ComponentHealth{Status: ComponentStatusDown}
	degraded := ComponentHealth{Status: ComponentStatusDegraded}

	assert.Equal(t, HealthStatusHealthy,
		overallHealth(map[string]ComponentHealth{"server": up, "viewer": up}))
	assert.Equal(t, HealthStatusDegraded,
		overallHealth(map[string]ComponentHealth{"server": up, "viewer": down}))
	assert.Equal(t, HealthStatusDegraded,
		overallHealth(map[string]ComponentHealth{"server": degraded, "viewer": up}))
	assert.Equal(t, HealthStatusUnhealthy,
		overallHealth(map[string]ComponentHealth{"server": down, "viewer": up}))
	assert.Equal(t, HealthStatusUnhealthy,
		overallHealth(map[string]ComponentHealth{"server": up, "fixtures": down}))
}
