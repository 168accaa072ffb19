// podlab provisions a local pod-server demo environment: it launches
// the external personal-data-store server and linked-data viewer,
// creates the demo accounts and pods, seeds sample resources with their
// ACL sidecars, and verifies the result.
package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"podlab/internal/journal"
	"podlab/internal/lab"
)

// newRunID tags all journal entries of one invocation.
func newRunID() string {
	return uuid.NewString()
}

var (
	// Global flags
	manifestPath string
	verbose      bool

	// Logger, built before every command runs
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "podlab",
	Short: "podlab - pod-server demo environment provisioner",
	Long: `podlab automates the demo runbook for a personal-data-store server
and its linked-data viewer: launch the unmodified external tools,
create the demo accounts and pods through the server's own account
API, seed sample resources with their ACL sidecars into pod storage,
select a viewer preset, and smoke-check the result.

podlab implements none of the pod protocol itself; the server and the
viewer stay external black boxes driven through their documented
command-line and HTTP surfaces.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = lab.NewLogger(verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&manifestPath, "manifest", "m", lab.DefaultManifestPath, "lab manifest file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// loadManifest is the shared entry point for every command.
func loadManifest() (*lab.Manifest, error) {
	m, err := lab.LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// openJournal returns the provisioning journal for the manifest, or nil
// when journaling is disabled. runID ties the entries of one invocation
// together.
func openJournal(m *lab.Manifest, runID string) (*journal.Journal, error) {
	j, err := journal.Open(m.Journal.DatabaseURL, runID, logger)
	if err != nil {
		return nil, err
	}
	return j, nil
}

// seedBackend picks the storage backend the manifest calls for.
func seedBackend(cmd *cobra.Command, m *lab.Manifest) (lab.SeedBackend, error) {
	if m.ObjectStore.Endpoint != "" {
		return lab.NewMinioBackend(cmd.Context(), m.ObjectStore)
	}
	return lab.NewFSBackend(m.Server.DataDir), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "podlab: %v\n", err)
		os.Exit(1)
	}
}
