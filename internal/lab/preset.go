// preset.go - Viewer configuration preset selection.
//
// A preset is a named, pre-built configuration bundle shipped with the
// viewer. Selection copies the preset directory's contents over the
// viewer's config location, the same thing the viewer's own selection
// script does with its positional preset argument.
package lab

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// ErrPresetNotFound is returned when the named preset directory does
// not exist.
var ErrPresetNotFound = errors.New("preset not found")

// activePresetMarker records which preset is currently in place so
// re-selection and checks can tell.
const activePresetMarker = ".podlab-preset"

// PresetManager selects viewer configuration presets.
type PresetManager struct {
	viewerDir  string
	presetsDir string
	configDir  string
	log        *zap.Logger
}

// NewPresetManager returns a manager for the viewer described by spec.
// Relative presets/config paths are resolved against the viewer dir.
func NewPresetManager(spec ViewerSpec, log *zap.Logger) *PresetManager {
	return &PresetManager{
		viewerDir:  spec.Dir,
		presetsDir: resolveIn(spec.Dir, spec.PresetsDir),
		configDir:  resolveIn(spec.Dir, spec.ConfigDir),
		log:        log,
	}
}

func resolveIn(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// Available lists the presets that can be selected.
func (pm *PresetManager) Available() ([]string, error) {
	entries, err := os.ReadDir(pm.presetsDir)
	if err != nil {
		return nil, fmt.Errorf("read presets dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Active reports the currently selected preset, empty when none has
// been selected yet.
func (pm *PresetManager) Active() (string, error) {
	b, err := os.ReadFile(filepath.Join(pm.configDir, activePresetMarker))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// Select copies the named preset into the viewer's config location and
// records it as active. Selecting the already-active preset is a no-op.
func (pm *PresetManager) Select(name string) error {
	src := filepath.Join(pm.presetsDir, name)
	info, err := os.Stat(src)
	if err != nil || !info.IsDir() {
		available, _ := pm.Available()
		return fmt.Errorf("%w: %q (available: %s)", ErrPresetNotFound, name, strings.Join(available, ", "))
	}

	if active, err := pm.Active(); err == nil && active == name {
		pm.log.Info("preset already active", zap.String("preset", name))
		return nil
	}

	if err := copyTree(src, pm.configDir); err != nil {
		return fmt.Errorf("select preset %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(pm.configDir, activePresetMarker), []byte(name+"\n"), 0o644); err != nil {
		return err
	}
	pm.log.Info("preset selected", zap.String("preset", name))
	return nil
}

// copyTree copies every regular file below src into dst, preserving the
// relative layout.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
}
