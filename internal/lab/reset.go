// reset.go - Tearing a demo environment down so it can be rebuilt.
package lab

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// ErrResetNotForced guards against accidental data-dir deletion.
var ErrResetNotForced = errors.New("reset requires the force flag")

// ResetOptions controls how much of the environment is removed.
type ResetOptions struct {
	// Force must be set; Reset refuses to delete anything without it.
	Force bool
	// All removes the entire data directory. The default removes only
	// the per-pod directories podlab seeded into.
	All bool
}

// ResetResult lists what was removed.
type ResetResult struct {
	Removed []string `json:"removed"`
}

// Reset removes seeded pod contents (or, with All, the whole data dir)
// so the demo can be provisioned from scratch. It operates strictly
// inside the configured data directory.
func Reset(ctx context.Context, m *Manifest, opts ResetOptions, log *zap.Logger) (*ResetResult, error) {
	if !opts.Force {
		return nil, ErrResetNotForced
	}

	result := &ResetResult{}

	if opts.All {
		if err := os.RemoveAll(m.Server.DataDir); err != nil {
			return nil, fmt.Errorf("remove data dir: %w", err)
		}
		result.Removed = append(result.Removed, m.Server.DataDir)
		log.Info("data dir removed", zap.String("dir", m.Server.DataDir))
		return result, nil
	}

	for _, acct := range m.Accounts {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		dir := m.PodDir(acct.Pod)
		// Guard: the pod dir must really be below the data dir.
		rel, err := filepath.Rel(m.Server.DataDir, dir)
		if err != nil || rel == ".." || filepath.IsAbs(rel) {
			return result, fmt.Errorf("pod dir %s escapes data dir", dir)
		}
		if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			return result, fmt.Errorf("remove pod %s: %w", acct.Pod, err)
		}
		result.Removed = append(result.Removed, dir)
		log.Info("pod contents removed", zap.String("pod", acct.Pod), zap.String("dir", dir))
	}
	return result, nil
}
