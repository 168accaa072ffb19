// Package journal records what podlab did to a demo environment:
// accounts provisioned, files seeded, checks run, snapshots and resets.
// It is an optional append-only Postgres log; when no database URL is
// configured every call is a no-op so commands never depend on it.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Action is the kind of provisioning event being recorded.
type Action string

const (
	ActionServerStart    Action = "server_start"
	ActionServerStop     Action = "server_stop"
	ActionAccountCreate  Action = "account_create"
	ActionAccountSkip    Action = "account_skip"
	ActionSeed           Action = "seed"
	ActionPresetSelect   Action = "preset_select"
	ActionViewerInstall  Action = "viewer_install"
	ActionViewerStart    Action = "viewer_start"
	ActionCheck          Action = "check"
	ActionSnapshot       Action = "snapshot"
	ActionReset          Action = "reset"
)

// Event is one journal entry.
type Event struct {
	ID         string         `json:"id"`
	RecordedAt time.Time      `json:"recorded_at"`
	RunID      string         `json:"run_id"`
	Action     Action         `json:"action"`
	Subject    string         `json:"subject,omitempty"` // account email, pod, preset name...
	Success    bool           `json:"success"`
	Error      string         `json:"error,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// Journal appends provisioning events. A nil *Journal is valid and
// drops everything.
type Journal struct {
	db    *sql.DB
	runID string
	log   *zap.Logger
}

// Open connects to the journal database, runs migrations, and returns a
// Journal bound to runID. An empty databaseURL returns (nil, nil):
// journaling disabled.
func Open(databaseURL, runID string, log *zap.Logger) (*Journal, error) {
	if databaseURL == "" {
		return nil, nil
	}
	db, err := OpenDB(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := RunMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db, runID: runID, log: log}, nil
}

// Close releases the database pool.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}

// Record appends one event. Journal failures are logged, never fatal:
// losing a journal row must not abort provisioning.
func (j *Journal) Record(ctx context.Context, action Action, subject string, success bool, evErr error, details map[string]any) {
	if j == nil {
		return
	}

	ev := Event{
		ID:         uuid.NewString(),
		RecordedAt: time.Now().UTC(),
		RunID:      j.runID,
		Action:     action,
		Subject:    subject,
		Success:    success,
		Details:    details,
	}
	if evErr != nil {
		ev.Error = evErr.Error()
	}

	detailsJSON, err := json.Marshal(ev.Details)
	if err != nil {
		detailsJSON = []byte("{}")
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO provisioning_events (id, recorded_at, run_id, action, subject, success, error, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, ev.ID, ev.RecordedAt, ev.RunID, ev.Action, ev.Subject, ev.Success, ev.Error, detailsJSON)
	if err != nil {
		j.log.Warn("journal write failed",
			zap.String("action", string(action)),
			zap.Error(err))
	}
}

// List returns the most recent events, newest first.
func (j *Journal) List(ctx context.Context, limit int) ([]Event, error) {
	if j == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, recorded_at, run_id, action, subject, success, error, details
		FROM provisioning_events
		ORDER BY recorded_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var detailsJSON []byte
		if err := rows.Scan(&ev.ID, &ev.RecordedAt, &ev.RunID, &ev.Action,
			&ev.Subject, &ev.Success, &ev.Error, &detailsJSON); err != nil {
			return nil, err
		}
		if len(detailsJSON) > 0 {
			_ = json.Unmarshal(detailsJSON, &ev.Details)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
