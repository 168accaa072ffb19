// watch.go - Re-seed pod storage when fixtures change on disk.
package lab

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// watchDebounce coalesces the burst of events editors emit per save.
const watchDebounce = 500 * time.Millisecond

// Watcher re-runs the seeder whenever the fixture tree changes.
type Watcher struct {
	seeder   *Seeder
	fixtures string
	log      *zap.Logger
}

// NewWatcher returns a Watcher that re-seeds through seeder.
func NewWatcher(seeder *Seeder, fixturesDir string, log *zap.Logger) *Watcher {
	return &Watcher{seeder: seeder, fixtures: fixturesDir, log: log}
}

// Run watches the fixture tree until ctx is cancelled. Every change is
// debounced and answered with a full (idempotent) seed run, so partial
// failures self-heal on the next event.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := addRecursive(fw, w.fixtures); err != nil {
		return err
	}
	w.log.Info("watching fixtures", zap.String("dir", w.fixtures))

	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			// New subdirectories need their own watch.
			if ev.Op.Has(fsnotify.Create) {
				_ = addRecursive(fw, ev.Name)
			}
			if timer == nil {
				timer = time.AfterFunc(watchDebounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(watchDebounce)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))

		case <-fire:
			timer = nil
			if _, err := w.seeder.Seed(ctx); err != nil {
				w.log.Warn("re-seed failed", zap.Error(err))
			}
		}
	}
}

// addRecursive registers dir and every subdirectory with the watcher.
// Non-directories are ignored.
func addRecursive(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			_ = fw.Add(path)
		}
		return nil
	})
}
