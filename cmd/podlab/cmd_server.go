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

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Manage the external pod server",
}

var serverStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Launch the external pod server and block until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadManifest()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		j, err := openJournal(m, newRunID())
		if err != nil {
			return err
		}
		defer j.Close()

		launcher := lab.NewLauncher(logger)
		proc, err := lab.StartServer(ctx, launcher, m.Server, logger)
		if err != nil {
			j.Record(cmd.Context(), journal.ActionServerStart, m.Server.Command, false, err, nil)
			return err
		}
		j.Record(ctx, journal.ActionServerStart, m.Server.Command, true, nil, map[string]any{
			"port":     m.Server.Port,
			"data_dir": m.Server.DataDir,
		})

		// Block until a shutdown signal arrives or the server dies on
		// its own.
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err = proc.Shutdown(shutdownCtx)
		case <-proc.Done():
			err = proc.Wait()
		}
		j.Record(context.Background(), journal.ActionServerStop, m.Server.Command, err == nil, err, nil)
		return err
	},
}

func init() {
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)
}
