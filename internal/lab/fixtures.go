// fixtures.go - Fixture tree scanning and resource/sidecar pairing.
//
// The fixture tree has one subdirectory per pod. Every resource file
// must be accompanied by a "<name>.acl" sidecar next to it; the sidecar
// travels with the resource into pod storage and is interpreted only by
// the external server.
package lab

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SidecarSuffix marks access-control sidecar files in the fixture tree.
const SidecarSuffix = ".acl"

var (
	// ErrUnpairedResource is returned when a resource has no sidecar.
	ErrUnpairedResource = errors.New("resource has no .acl sidecar")
	// ErrOrphanSidecar is returned when a sidecar has no resource.
	ErrOrphanSidecar = errors.New("sidecar has no matching resource")
	// ErrUnknownPod is returned when the fixture tree mentions a pod
	// that no manifest account owns.
	ErrUnknownPod = errors.New("fixture directory does not match any account pod")
)

// Fixture is one resource queued for seeding, with its sidecar.
type Fixture struct {
	Pod     string // owning pod name
	RelPath string // path below the pod directory, slash-separated
	Source  string // resource file in the fixture tree
	Sidecar string // paired .acl file in the fixture tree
}

// ScanFixtures walks the fixture tree and pairs every resource with its
// sidecar. pods is the set of pod names the manifest knows about; a
// fixture subdirectory outside that set is an error so seed runs cannot
// silently drop files.
func ScanFixtures(dir string, pods []string) ([]Fixture, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("fixture tree: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("fixture tree %s is not a directory", dir)
	}

	known := make(map[string]bool, len(pods))
	for _, p := range pods {
		known[p] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var fixtures []Fixture
	for _, e := range entries {
		if !e.IsDir() {
			// Stray files at the root of the tree are ignored; only
			// per-pod subdirectories are seeded.
			continue
		}
		pod := e.Name()
		if !known[pod] {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPod, pod)
		}
		podFixtures, err := scanPod(dir, pod)
		if err != nil {
			return nil, err
		}
		fixtures = append(fixtures, podFixtures...)
	}

	sort.Slice(fixtures, func(i, j int) bool {
		if fixtures[i].Pod != fixtures[j].Pod {
			return fixtures[i].Pod < fixtures[j].Pod
		}
		return fixtures[i].RelPath < fixtures[j].RelPath
	})
	return fixtures, nil
}

func scanPod(root, pod string) ([]Fixture, error) {
	podDir := filepath.Join(root, pod)

	resources := make(map[string]string) // rel path -> abs path
	sidecars := make(map[string]string)  // rel path of resource -> abs sidecar path

	err := filepath.WalkDir(podDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(podDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if strings.HasSuffix(rel, SidecarSuffix) {
			sidecars[strings.TrimSuffix(rel, SidecarSuffix)] = path
		} else {
			resources[rel] = path
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var fixtures []Fixture
	for rel, src := range resources {
		sidecar, ok := sidecars[rel]
		if !ok {
			return nil, fmt.Errorf("%w: %s/%s", ErrUnpairedResource, pod, rel)
		}
		delete(sidecars, rel)
		fixtures = append(fixtures, Fixture{
			Pod:     pod,
			RelPath: rel,
			Source:  src,
			Sidecar: sidecar,
		})
	}
	for rel := range sidecars {
		return nil, fmt.Errorf("%w: %s/%s%s", ErrOrphanSidecar, pod, rel, SidecarSuffix)
	}
	return fixtures, nil
}
