package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"podlab/internal/journal"
	"podlab/internal/lab"
)

var checkJSON bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Smoke-check the demo environment",
	Long: `Verifies the runbook's end state: the server answers on its port,
each account's pod root is reachable, every fixture is present in pod
storage with a matching digest, and the viewer dev server answers.
Exits non-zero unless the environment is healthy.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadManifest()
		if err != nil {
			return err
		}

		backend, err := seedBackend(cmd, m)
		if err != nil {
			return err
		}

		j, err := openJournal(m, newRunID())
		if err != nil {
			return err
		}
		defer j.Close()

		health := lab.NewChecker(m, backend).Check(cmd.Context())
		j.Record(cmd.Context(), journal.ActionCheck, "", health.Status == lab.HealthStatusHealthy, nil,
			map[string]any{"status": string(health.Status)})

		if checkJSON {
			out, err := json.MarshalIndent(health, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(out))
		} else {
			printHealth(cmd, health)
		}

		if health.Status != lab.HealthStatusHealthy {
			return fmt.Errorf("environment %s", health.Status)
		}
		return nil
	},
}

func printHealth(cmd *cobra.Command, health lab.Health) {
	names := make([]string, 0, len(health.Components))
	for name := range health.Components {
		names = append(names, name)
	}
	sort.Strings(names)

	cmd.Printf("status: %s\n", health.Status)
	for _, name := range names {
		comp := health.Components[name]
		cmd.Printf("  %-12s %-8s %s\n", name, comp.Status, comp.Message)
	}
}

func init() {
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "JSON output")
	rootCmd.AddCommand(checkCmd)
}
