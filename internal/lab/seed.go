// seed.go - Copies fixture resources and their ACL sidecars into pod
// storage.
//
// Seeding is idempotent: files whose digest already matches the fixture
// are skipped, changed fixtures are rewritten. Sidecar contents are
// copied verbatim apart from the {{webid}} owner placeholder; nothing
// here parses or enforces access control.
package lab

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// WebIDPlaceholder is replaced inside sidecar files with the owning
// account's WebID during seeding. ACL documents must name the pod owner
// and the owner's WebID is only known after provisioning.
const WebIDPlaceholder = "{{webid}}"

// SeedBackend abstracts where pod storage lives: the server's data
// directory on disk, or an object-store bucket.
type SeedBackend interface {
	// Put writes data at pod/rel, creating parents as needed.
	Put(ctx context.Context, pod, rel string, data []byte) error
	// Digest returns the SHA-256 of the existing object at pod/rel and
	// whether it exists at all.
	Digest(ctx context.Context, pod, rel string) (string, bool, error)
}

// SeedAction says what happened to one seeded file.
type SeedAction string

const (
	SeedCopied  SeedAction = "copied"
	SeedUpdated SeedAction = "updated"
	SeedSkipped SeedAction = "skipped"
)

// SeededFile is the outcome for a single resource or sidecar.
type SeededFile struct {
	Pod     string     `json:"pod"`
	RelPath string     `json:"path"`
	Digest  string     `json:"sha256"`
	Size    int64      `json:"size_bytes"`
	Action  SeedAction `json:"action"`
}

// SeedReport summarises one seed run.
type SeedReport struct {
	Files    []SeededFile  `json:"files"`
	Copied   int           `json:"copied"`
	Updated  int           `json:"updated"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// Seeder copies fixtures into pod storage through a backend.
type Seeder struct {
	manifest *Manifest
	backend  SeedBackend
	webids   map[string]string // pod -> WebID, from provisioning
	log      *zap.Logger
}

// NewSeeder returns a Seeder. webids may be nil, in which case the
// conventional per-pod WebID is substituted into sidecars.
func NewSeeder(m *Manifest, backend SeedBackend, webids map[string]string, log *zap.Logger) *Seeder {
	return &Seeder{manifest: m, backend: backend, webids: webids, log: log}
}

// Seed scans the fixture tree and copies every resource and sidecar
// that is missing or stale in pod storage.
func (s *Seeder) Seed(ctx context.Context) (*SeedReport, error) {
	start := time.Now()

	pods := make([]string, 0, len(s.manifest.Accounts))
	for _, a := range s.manifest.Accounts {
		pods = append(pods, a.Pod)
	}

	fixtures, err := ScanFixtures(s.manifest.Fixtures.Dir, pods)
	if err != nil {
		return nil, err
	}

	report := &SeedReport{}
	for _, fx := range fixtures {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		resource, err := os.ReadFile(fx.Source)
		if err != nil {
			return report, fmt.Errorf("read fixture %s: %w", fx.Source, err)
		}
		if err := s.place(ctx, report, fx.Pod, fx.RelPath, resource); err != nil {
			return report, err
		}

		sidecar, err := os.ReadFile(fx.Sidecar)
		if err != nil {
			return report, fmt.Errorf("read sidecar %s: %w", fx.Sidecar, err)
		}
		sidecar = s.substituteOwner(fx.Pod, sidecar)
		if err := s.place(ctx, report, fx.Pod, fx.RelPath+SidecarSuffix, sidecar); err != nil {
			return report, err
		}
	}

	report.Duration = time.Since(start)
	s.log.Info("seed complete",
		zap.Int("copied", report.Copied),
		zap.Int("updated", report.Updated),
		zap.Int("skipped", report.Skipped),
		zap.Duration("duration", report.Duration))
	return report, nil
}

// place writes one file through the backend unless it is already up to
// date.
func (s *Seeder) place(ctx context.Context, report *SeedReport, pod, rel string, data []byte) error {
	want := bytesSHA256(data)

	have, exists, err := s.backend.Digest(ctx, pod, rel)
	if err != nil {
		return fmt.Errorf("stat %s/%s: %w", pod, rel, err)
	}

	file := SeededFile{Pod: pod, RelPath: rel, Digest: want, Size: int64(len(data))}
	switch {
	case exists && have == want:
		file.Action = SeedSkipped
		report.Skipped++
	case exists:
		if err := s.backend.Put(ctx, pod, rel, data); err != nil {
			return fmt.Errorf("seed %s/%s: %w", pod, rel, err)
		}
		file.Action = SeedUpdated
		report.Updated++
	default:
		if err := s.backend.Put(ctx, pod, rel, data); err != nil {
			return fmt.Errorf("seed %s/%s: %w", pod, rel, err)
		}
		file.Action = SeedCopied
		report.Copied++
	}

	report.Files = append(report.Files, file)
	s.log.Debug("seeded file",
		zap.String("pod", pod),
		zap.String("path", rel),
		zap.String("action", string(file.Action)))
	return nil
}

// substituteOwner replaces the WebID placeholder in sidecar contents.
func (s *Seeder) substituteOwner(pod string, sidecar []byte) []byte {
	if !strings.Contains(string(sidecar), WebIDPlaceholder) {
		return sidecar
	}
	webid := s.webids[pod]
	if webid == "" {
		webid = fmt.Sprintf("%s/%s/profile/card#me", s.manifest.ServerURL(), pod)
	}
	return []byte(strings.ReplaceAll(string(sidecar), WebIDPlaceholder, webid))
}
