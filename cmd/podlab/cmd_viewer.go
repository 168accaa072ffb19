package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"podlab/internal/journal"
	"podlab/internal/lab"
)

var viewerCmd = &cobra.Command{
	Use:   "viewer",
	Short: "Manage the external linked-data viewer",
}

var viewerInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the viewer's dependencies with its package manager",
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

		v := lab.NewViewer(m.Viewer, lab.NewLauncher(logger), logger)
		err = v.Install(cmd.Context())
		j.Record(cmd.Context(), journal.ActionViewerInstall, m.Viewer.Dir, err == nil, err, nil)
		return err
	},
}

var viewerSelectCmd = &cobra.Command{
	Use:   "select [preset]",
	Short: "Copy a named configuration preset into place",
	Args:  cobra.MaximumNArgs(1),
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

		name := m.Viewer.Preset
		if len(args) == 1 {
			name = args[0]
		}
		v := lab.NewViewer(m.Viewer, lab.NewLauncher(logger), logger)
		err = v.SelectPreset(name)
		j.Record(cmd.Context(), journal.ActionPresetSelect, name, err == nil, err, nil)
		return err
	},
}

var viewerDevCmd = &cobra.Command{
	Use:   "dev",
	Short: "Run the viewer's development server until interrupted",
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

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		v := lab.NewViewer(m.Viewer, lab.NewLauncher(logger), logger)
		proc, err := v.StartDev(ctx)
		j.Record(ctx, journal.ActionViewerStart, m.Viewer.Dir, err == nil, err, nil)
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return proc.Shutdown(shutdownCtx)
		case <-proc.Done():
			return proc.Wait()
		}
	},
}

func init() {
	viewerCmd.AddCommand(viewerInstallCmd, viewerSelectCmd, viewerDevCmd)
	rootCmd.AddCommand(viewerCmd)
}
