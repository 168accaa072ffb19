package main

import (
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"podlab/internal/journal"
	"podlab/internal/lab"
)

var seedWatch bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Copy fixture resources and ACL sidecars into pod storage",
	Long: `Scans the fixture tree, pairs every resource with its .acl sidecar,
and copies both into the matching pod's storage. Unchanged files are
skipped. With --watch the fixture tree is monitored and re-seeded on
every change.`,
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

		seeder := lab.NewSeeder(m, backend, nil, logger)
		report, err := seeder.Seed(cmd.Context())
		j.Record(cmd.Context(), journal.ActionSeed, m.Fixtures.Dir, err == nil, err, seedDetails(report))
		if err != nil {
			return err
		}
		cmd.Printf("seeded: %d copied, %d updated, %d skipped\n",
			report.Copied, report.Updated, report.Skipped)

		if !seedWatch {
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		watcher := lab.NewWatcher(seeder, m.Fixtures.Dir, logger)
		if err := watcher.Run(ctx); err != nil && !errors.Is(err, ctx.Err()) {
			return err
		}
		return nil
	},
}

func seedDetails(report *lab.SeedReport) map[string]any {
	if report == nil {
		return nil
	}
	return map[string]any{
		"copied":  report.Copied,
		"updated": report.Updated,
		"skipped": report.Skipped,
	}
}

func init() {
	seedCmd.Flags().BoolVar(&seedWatch, "watch", false, "re-seed when fixtures change")
	rootCmd.AddCommand(seedCmd)
}
