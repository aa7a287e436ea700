// Package storage keeps a local index of completed runs in SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	backend TEXT NOT NULL,
	steps INTEGER NOT NULL,
	rmsd REAL NOT NULL,
	wall_time REAL NOT NULL,
	output_path TEXT NOT NULL,
	started_at TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`

// Run is one row of the index.
type Run struct {
	ID         string
	Backend    string
	Steps      int
	RMSD       float64
	WallTime   float64
	OutputPath string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Store wraps the runs database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the runs database at path. Use ":memory:" for
// an ephemeral store.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// NewRun allocates an identifier for a run record.
func NewRun(backend, outputPath string) *Run {
	return &Run{
		ID:         uuid.NewString(),
		Backend:    backend,
		OutputPath: outputPath,
		StartedAt:  time.Now(),
	}
}

// Save inserts or updates a run record.
func (s *Store) Save(ctx context.Context, r *Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, backend, steps, rmsd, wall_time, output_path, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			steps = excluded.steps,
			rmsd = excluded.rmsd,
			wall_time = excluded.wall_time,
			finished_at = excluded.finished_at`,
		r.ID, r.Backend, r.Steps, r.RMSD, r.WallTime, r.OutputPath, r.StartedAt, r.FinishedAt)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// Get returns the run with the given id.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, backend, steps, rmsd, wall_time, output_path, started_at, finished_at
		FROM runs WHERE id = ?`, id)
	var r Run
	err := row.Scan(&r.ID, &r.Backend, &r.Steps, &r.RMSD, &r.WallTime, &r.OutputPath, &r.StartedAt, &r.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &r, nil
}

// List returns all runs, most recent first.
func (s *Store) List(ctx context.Context) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, backend, steps, rmsd, wall_time, output_path, started_at, finished_at
		FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var runs []*Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Backend, &r.Steps, &r.RMSD, &r.WallTime, &r.OutputPath, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}
