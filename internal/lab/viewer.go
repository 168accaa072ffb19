// viewer.go - Installing and running the external linked-data viewer.
package lab

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// devStartupTimeout bounds how long we wait for the dev server; first
// runs compile the viewer bundle and can take a while.
const devStartupTimeout = 2 * time.Minute

// Viewer manages the external viewer application: dependency install,
// preset selection, and the development server.
type Viewer struct {
	spec     ViewerSpec
	launcher *Launcher
	presets  *PresetManager
	log      *zap.Logger
}

// NewViewer returns a Viewer for the manifest's viewer spec.
func NewViewer(spec ViewerSpec, launcher *Launcher, log *zap.Logger) *Viewer {
	return &Viewer{
		spec:     spec,
		launcher: launcher,
		presets:  NewPresetManager(spec, log),
		log:      log,
	}
}

// Presets exposes the preset manager.
func (v *Viewer) Presets() *PresetManager {
	return v.presets
}

// Install runs the package-manager install inside the viewer directory.
func (v *Viewer) Install(ctx context.Context) error {
	v.log.Info("installing viewer dependencies",
		zap.String("package_manager", v.spec.PackageManager),
		zap.String("dir", v.spec.Dir))
	return v.launcher.Run(ctx, ProcessSpec{
		Name:    "viewer-install",
		Command: v.spec.PackageManager,
		Args:    v.spec.InstallArgs,
		Dir:     v.spec.Dir,
	})
}

// SelectPreset places the manifest's preset (or an explicit name) into
// the viewer's config location.
func (v *Viewer) SelectPreset(name string) error {
	if name == "" {
		name = v.spec.Preset
	}
	if name == "" {
		return fmt.Errorf("no preset named in manifest or argument")
	}
	return v.presets.Select(name)
}

// StartDev launches the viewer's development server and waits for it to
// answer on its dev port.
func (v *Viewer) StartDev(ctx context.Context) (*Process, error) {
	if err := CheckPortFree(v.spec.DevPort); err != nil {
		return nil, err
	}
	proc, err := v.launcher.Start(ctx, ProcessSpec{
		Name:    "viewer",
		Command: v.spec.PackageManager,
		Args:    v.spec.DevArgs,
		Dir:     v.spec.Dir,
		Env:     []string{fmt.Sprintf("PORT=%d", v.spec.DevPort)},
	})
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("http://localhost:%d/", v.spec.DevPort)
	if err := WaitReady(ctx, url, proc, devStartupTimeout); err != nil {
		_ = proc.Shutdown(ctx)
		return nil, err
	}
	v.log.Info("viewer ready", zap.String("url", url))
	return proc, nil
}
