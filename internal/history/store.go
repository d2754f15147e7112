// Package history keeps a sqlite ledger of batch runs and the clips they
// produced.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/book-expert/radio-tts-service/internal/report"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	started_at INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	items INTEGER NOT NULL,
	failed INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS clips (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	filename TEXT NOT NULL,
	status TEXT NOT NULL,
	stage TEXT NOT NULL DEFAULT '',
	duration_seconds REAL,
	location TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	params TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
);
`

// ErrRunNotFound is returned when a run id has no ledger entry.
var ErrRunNotFound = errors.New("run not found")

// Run describes one batch to record.
type Run struct {
	Source     string
	StartedAt  time.Time
	FinishedAt time.Time
}

// RunSummary is a recorded run.
type RunSummary struct {
	ID         string
	Source     string
	StartedAt  time.Time
	FinishedAt time.Time
	Items      int
	Failed     int
}

// Clip is a recorded item outcome.
type Clip struct {
	Position        int
	Filename        string
	Status          string
	Stage           string
	DurationSeconds sql.NullFloat64
	Location        string
	Error           string
	Params          Params
}

// Params is the resolved parameter set as stored in the ledger.
type Params struct {
	Voice    string  `json:"voice"`
	Volume   int     `json:"volume"`
	NFilter  int     `json:"nfilter"`
	HighPass int     `json:"highpass"`
	LowPass  int     `json:"lowpass"`
	Noise    *int    `json:"noise,omitempty"`
	Emphasis *string `json:"emphasis,omitempty"`
	Rate     *string `json:"rate,omitempty"`
	Pitch    *string `json:"pitch,omitempty"`
	Subtitle *string `json:"subtitle,omitempty"`
	ClickIn  bool    `json:"clickin"`
	ClickOut bool    `json:"clickout"`
}

// Store manages the ledger.
type Store struct {
	db *sql.DB
}

// Open creates or opens the ledger at path (":memory:" for a private one).
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		_, execErr := db.ExecContext(ctx, pragma)
		if execErr != nil {
			_ = db.Close()

			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	_, schemaErr := db.ExecContext(ctx, schema)
	if schemaErr != nil {
		_ = db.Close()

		return nil, fmt.Errorf("init history schema: %w", schemaErr)
	}

	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun stores run and its rows in one transaction and returns the new run id.
func (s *Store) RecordRun(ctx context.Context, run Run, rows []report.Row) (string, error) {
	runID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin history transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, source, started_at, finished_at, items, failed) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, run.Source, run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(), len(rows), report.Failed(rows))
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for position, row := range rows {
		encoded, marshalErr := json.Marshal(paramsFor(row))
		if marshalErr != nil {
			return "", fmt.Errorf("encode params for %s: %w", row.Config.Filename, marshalErr)
		}

		var (
			duration  sql.NullFloat64
			errorText string
		)

		if row.OK() {
			duration = sql.NullFloat64{Float64: row.DurationSeconds, Valid: true}
		} else {
			errorText = row.Err.Error()
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO clips (run_id, position, filename, status, stage, duration_seconds, location, error, params)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, position, row.Config.Filename, row.Status(), string(row.Stage()),
			duration, row.Location, errorText, string(encoded))
		if err != nil {
			return "", fmt.Errorf("insert clip %s: %w", row.Config.Filename, err)
		}
	}

	commitErr := tx.Commit()
	if commitErr != nil {
		return "", fmt.Errorf("commit history: %w", commitErr)
	}

	return runID, nil
}

// Runs returns the most recent runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, started_at, finished_at, items, failed FROM runs
		 ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary

	for rows.Next() {
		var (
			summary           RunSummary
			started, finished int64
		)

		scanErr := rows.Scan(&summary.ID, &summary.Source, &started, &finished, &summary.Items, &summary.Failed)
		if scanErr != nil {
			return nil, fmt.Errorf("scan run: %w", scanErr)
		}

		summary.StartedAt = time.UnixMilli(started)
		summary.FinishedAt = time.UnixMilli(finished)
		runs = append(runs, summary)
	}

	return runs, rows.Err()
}

// Clips returns the clips of runID in input order.
func (s *Store) Clips(ctx context.Context, runID string) ([]Clip, error) {
	var exists int

	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM runs WHERE id = ?`, runID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("query run %s: %w", runID, err)
	}

	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT position, filename, status, stage, duration_seconds, location, error, params
		 FROM clips WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query clips: %w", err)
	}
	defer rows.Close()

	var clips []Clip

	for rows.Next() {
		var (
			clip    Clip
			encoded string
		)

		scanErr := rows.Scan(&clip.Position, &clip.Filename, &clip.Status, &clip.Stage,
			&clip.DurationSeconds, &clip.Location, &clip.Error, &encoded)
		if scanErr != nil {
			return nil, fmt.Errorf("scan clip: %w", scanErr)
		}

		unmarshalErr := json.Unmarshal([]byte(encoded), &clip.Params)
		if unmarshalErr != nil {
			return nil, fmt.Errorf("decode params for %s: %w", clip.Filename, unmarshalErr)
		}

		clips = append(clips, clip)
	}

	return clips, rows.Err()
}

func paramsFor(row report.Row) Params {
	cfg := row.Config

	stored := Params{
		Voice:    cfg.Voice,
		Volume:   cfg.Volume,
		NFilter:  cfg.NFilter,
		HighPass: cfg.HighPass,
		LowPass:  cfg.LowPass,
		Emphasis: cfg.Emphasis.Ptr(),
		Rate:     cfg.Rate.Ptr(),
		Pitch:    cfg.Pitch.Ptr(),
		Subtitle: cfg.Subtitle.Ptr(),
		ClickIn:  cfg.ClickIn,
		ClickOut: cfg.ClickOut,
	}

	if cfg.Noise.Enabled {
		noise := cfg.Noise.DB
		stored.Noise = &noise
	}

	return stored
}
