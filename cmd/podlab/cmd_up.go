package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"podlab/internal/journal"
	"podlab/internal/lab"
)

var (
	upInstall  bool
	upNoViewer bool
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Bring the whole demo environment up and supervise it",
	Long: `Runs the full runbook: launch the external server, provision the
demo accounts and pods, seed fixtures with their ACL sidecars, select
the viewer preset, start the viewer dev server, smoke-check everything,
then keep both processes supervised until interrupted.`,
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

		// 1. External server.
		server, err := lab.StartServer(ctx, launcher, m.Server, logger)
		if err != nil {
			j.Record(cmd.Context(), journal.ActionServerStart, m.Server.Command, false, err, nil)
			return err
		}
		j.Record(ctx, journal.ActionServerStart, m.Server.Command, true, nil, map[string]any{
			"port": m.Server.Port,
		})
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warn("server shutdown", zap.Error(err))
			}
			j.Record(context.Background(), journal.ActionServerStop, m.Server.Command, true, nil, nil)
		}()

		// 2. Accounts and pods.
		client := lab.NewAccountClient(m.ServerURL(), logger)
		results, err := client.ProvisionAll(ctx, m.Accounts)
		for _, res := range results {
			action := journal.ActionAccountCreate
			if !res.Created {
				action = journal.ActionAccountSkip
			}
			j.Record(ctx, action, res.Account.Email, true, nil, map[string]any{
				"pod": res.Account.Pod, "webid": res.WebID,
			})
		}
		if err != nil {
			return err
		}

		// 3. Seed fixtures using the WebIDs provisioning reported.
		webids := make(map[string]string, len(results))
		for _, res := range results {
			webids[res.Account.Pod] = res.WebID
		}
		backend, err := seedBackend(cmd, m)
		if err != nil {
			return err
		}
		seeder := lab.NewSeeder(m, backend, webids, logger)
		report, err := seeder.Seed(ctx)
		j.Record(ctx, journal.ActionSeed, m.Fixtures.Dir, err == nil, err, seedDetails(report))
		if err != nil {
			return err
		}

		// 4. Viewer.
		var viewerProc *lab.Process
		if !upNoViewer {
			v := lab.NewViewer(m.Viewer, launcher, logger)
			if upInstall {
				if err := v.Install(ctx); err != nil {
					j.Record(ctx, journal.ActionViewerInstall, m.Viewer.Dir, false, err, nil)
					return err
				}
				j.Record(ctx, journal.ActionViewerInstall, m.Viewer.Dir, true, nil, nil)
			}
			if err := v.SelectPreset(""); err != nil {
				j.Record(ctx, journal.ActionPresetSelect, m.Viewer.Preset, false, err, nil)
				return err
			}
			j.Record(ctx, journal.ActionPresetSelect, m.Viewer.Preset, true, nil, nil)

			viewerProc, err = v.StartDev(ctx)
			j.Record(ctx, journal.ActionViewerStart, m.Viewer.Dir, err == nil, err, nil)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = viewerProc.Shutdown(shutdownCtx)
			}()
		}

		// 5. Smoke checks.
		health := lab.NewChecker(m, backend).Check(ctx)
		j.Record(ctx, journal.ActionCheck, "", health.Status == lab.HealthStatusHealthy, nil,
			map[string]any{"status": string(health.Status)})
		printHealth(cmd, health)
		if health.Status == lab.HealthStatusUnhealthy {
			return fmt.Errorf("environment unhealthy after provisioning")
		}

		logger.Info("demo environment up",
			zap.String("server", m.ServerURL()),
			zap.String("viewer", m.ViewerURL()))

		// Supervise until a signal arrives or a process dies. A nil
		// viewer channel simply never fires.
		var viewerDone <-chan struct{}
		if viewerProc != nil {
			viewerDone = viewerProc.Done()
		}
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case <-server.Done():
			return fmt.Errorf("server exited: %v", server.Wait())
		case <-viewerDone:
			return fmt.Errorf("viewer exited: %v", viewerProc.Wait())
		}
	},
}

func init() {
	upCmd.Flags().BoolVar(&upInstall, "install", false, "run the viewer dependency install first")
	upCmd.Flags().BoolVar(&upNoViewer, "no-viewer", false, "skip the viewer entirely")
	rootCmd.AddCommand(upCmd)
}
