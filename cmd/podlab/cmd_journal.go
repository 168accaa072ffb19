package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"podlab/internal/journal"
)

var journalLimit int

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the provisioning journal",
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print recent provisioning events, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadManifest()
		if err != nil {
			return err
		}
		if m.Journal.DatabaseURL == "" {
			return fmt.Errorf("journal disabled: no database URL configured")
		}

		j, err := journal.Open(m.Journal.DatabaseURL, newRunID(), logger)
		if err != nil {
			return err
		}
		defer j.Close()

		events, err := j.List(cmd.Context(), journalLimit)
		if err != nil {
			return err
		}
		for _, ev := range events {
			status := "ok"
			if !ev.Success {
				status = "FAILED"
			}
			cmd.Printf("%s  %-16s %-30s %s\n",
				ev.RecordedAt.Format("2006-01-02 15:04:05"), ev.Action, ev.Subject, status)
			if ev.Error != "" {
				cmd.Printf("%41s %s\n", "", ev.Error)
			}
		}
		return nil
	},
}

func init() {
	journalListCmd.Flags().IntVar(&journalLimit, "limit", 50, "maximum events to print")
	journalCmd.AddCommand(journalListCmd)
	rootCmd.AddCommand(journalCmd)
}
