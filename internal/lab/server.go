// server.go - Launching the external pod server.
//
// The server is an unmodified third-party binary started with exactly
// the two flags its documentation names: the configuration file and the
// persistent data directory. podlab only supervises the process.
package lab

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// StartServer checks the listen port, ensures the data directory
// exists, spawns the external server and waits for it to become
// reachable. The caller owns the returned Process and must Shutdown it.
func StartServer(ctx context.Context, launcher *Launcher, spec ServerSpec, log *zap.Logger) (*Process, error) {
	if err := CheckPortFree(spec.Port); err != nil {
		return nil, fmt.Errorf("server port check: %w", err)
	}
	if _, err := os.Stat(spec.ConfigFile); err != nil {
		return nil, fmt.Errorf("server config file: %w", err)
	}
	if err := os.MkdirAll(spec.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("server data dir: %w", err)
	}

	proc, err := launcher.Start(ctx, ProcessSpec{
		Name:    "server",
		Command: spec.Command,
		Args: []string{
			spec.ConfigFlag, spec.ConfigFile,
			spec.DataDirFlag, spec.DataDir,
		},
	})
	if err != nil {
		return nil, err
	}

	readyURL := fmt.Sprintf("http://localhost:%d%s", spec.Port, spec.ReadyPath)
	if err := WaitReady(ctx, readyURL, proc, spec.StartupTimeout); err != nil {
		_ = proc.Shutdown(ctx)
		return nil, err
	}

	log.Info("server ready",
		zap.String("command", spec.Command),
		zap.Int("port", spec.Port),
		zap.String("data_dir", spec.DataDir))
	return proc, nil
}
