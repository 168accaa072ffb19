package main

import (
	"strings"

	"github.com/spf13/cobra"

	"podlab/internal/journal"
	"podlab/internal/lab"
)

var (
	resetForce bool
	resetAll   bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove seeded pod contents so the demo can be rebuilt",
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

		result, err := lab.Reset(cmd.Context(), m, lab.ResetOptions{
			Force: resetForce,
			All:   resetAll,
		}, logger)
		var removed []string
		if result != nil {
			removed = result.Removed
		}
		j.Record(cmd.Context(), journal.ActionReset, m.Server.DataDir, err == nil, err,
			map[string]any{"removed": removed})
		if err != nil {
			return err
		}
		if len(removed) == 0 {
			cmd.Println("nothing to remove")
			return nil
		}
		cmd.Printf("removed: %s\n", strings.Join(removed, ", "))
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetForce, "force", false, "actually delete (required)")
	resetCmd.Flags().BoolVar(&resetAll, "all", false, "remove the entire data directory")
	rootCmd.AddCommand(resetCmd)
}
