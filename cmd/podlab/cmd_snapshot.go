package main

import (
	"github.com/spf13/cobra"

	"podlab/internal/journal"
	"podlab/internal/lab"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Archive the server data directory",
	Long: `Writes a timestamped tar.gz of the data directory into the snapshot
dir, prunes archives beyond the retention count, and optionally uploads
the archive to the configured object-store bucket.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadManifest()
		if err != nil {
			return err
		}

		j, err := openJournal(m, newRunID())
		if err != nil {
			return err
		}
		defer j.Close()

		var store *lab.MinioBackend
		if m.Snapshot.Upload && m.ObjectStore.Endpoint != "" {
			store, err = lab.NewMinioBackend(cmd.Context(), m.ObjectStore)
			if err != nil {
				return err
			}
		}

		s := lab.NewSnapshotter(m.Snapshot, m.Server.DataDir, store, logger)
		result, err := s.Snapshot(cmd.Context())
		details := map[string]any{}
		if result != nil {
			details["path"] = result.Path
			details["size_bytes"] = result.SizeBytes
			details["uploaded"] = result.Uploaded
		}
		j.Record(cmd.Context(), journal.ActionSnapshot, m.Server.DataDir, err == nil, err, details)
		if err != nil {
			return err
		}
		cmd.Printf("snapshot: %s (%d files, %d bytes)\n", result.Path, result.Files, result.SizeBytes)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
}
