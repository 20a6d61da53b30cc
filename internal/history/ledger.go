package history

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Ledger records pipeline runs and their step outcomes in a local
// SQLite file. A nil *Ledger is valid and turns every write into a
// no-op, so a ledger that failed to open never blocks a run.
type Ledger struct {
	db *sql.DB
}

// RunRecord is one pipeline run as stored.
type RunRecord struct {
	ID         string
	GameID     string
	Status     string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// StepRecord is one step outcome as stored, in recording order.
type StepRecord struct {
	Step   string
	Status string
	Detail string
}

// Open opens the ledger database at path, creating the file and its
// directory as needed.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run ledger %s: %w", path, err)
	}

	ledger := &Ledger{db: db}
	if err := ledger.ensureTables(); err != nil {
		db.Close()
		return nil, err
	}
	return ledger, nil
}

// Close releases the underlying database.
func (l *Ledger) Close() error {
	if l == nil {
		return nil
	}
	return l.db.Close()
}

func (l *Ledger) ensureTables() error {
	query := `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			game_id TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			status TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS run_steps (
			run_id TEXT NOT NULL,
			step TEXT NOT NULL,
			status TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			recorded_at TEXT NOT NULL
		)
	`

	if _, err := l.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create ledger tables: %w", err)
	}

	log.Printf("✓ run ledger ready")
	return nil
}

// BeginRun records the start of a pipeline run.
func (l *Ledger) BeginRun(ctx context.Context, runID, gameID string) error {
	if l == nil {
		return nil
	}
	query := `INSERT INTO runs (id, game_id, started_at, status) VALUES (?, ?, ?, 'running')`
	if _, err := l.db.ExecContext(ctx, query, runID, gameID, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	return nil
}

// FinishRun records a run's terminal status.
func (l *Ledger) FinishRun(ctx context.Context, runID, status string) error {
	if l == nil {
		return nil
	}
	query := `UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`
	if _, err := l.db.ExecContext(ctx, query, status, time.Now().UTC().Format(time.RFC3339Nano), runID); err != nil {
		return fmt.Errorf("failed to record run finish: %w", err)
	}
	return nil
}

// RecordStep appends one step outcome to the run's history.
func (l *Ledger) RecordStep(ctx context.Context, runID, step, status, detail string) error {
	if l == nil {
		return nil
	}
	query := `INSERT INTO run_steps (run_id, step, status, detail, recorded_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := l.db.ExecContext(ctx, query, runID, step, status, detail, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to record step outcome: %w", err)
	}
	return nil
}

// Run reads back a single run.
func (l *Ledger) Run(ctx context.Context, runID string) (*RunRecord, error) {
	if l == nil {
		return nil, nil
	}
	query := `SELECT id, game_id, started_at, finished_at, status FROM runs WHERE id = ?`

	var rec RunRecord
	var started string
	var finished sql.NullString
	err := l.db.QueryRowContext(ctx, query, runID).Scan(&rec.ID, &rec.GameID, &started, &finished, &rec.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run %s: %w", runID, err)
	}

	if rec.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return nil, fmt.Errorf("failed to parse run start time: %w", err)
	}
	if finished.Valid {
		t, err := time.Parse(time.RFC3339Nano, finished.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse run finish time: %w", err)
		}
		rec.FinishedAt = &t
	}
	return &rec, nil
}

// RunSteps reads back a run's step outcomes in recording order.
func (l *Ledger) RunSteps(ctx context.Context, runID string) ([]StepRecord, error) {
	if l == nil {
		return nil, nil
	}
	query := `SELECT step, status, detail FROM run_steps WHERE run_id = ? ORDER BY rowid`

	rows, err := l.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to read run steps: %w", err)
	}
	defer rows.Close()

	var steps []StepRecord
	for rows.Next() {
		var rec StepRecord
		if err := rows.Scan(&rec.Step, &rec.Status, &rec.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan step row: %w", err)
		}
		steps = append(steps, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate step rows: %w", err)
	}
	return steps, nil
}
