// Package history keeps a record of deduplication runs in a local SQLite
// database.
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
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	request_id    TEXT,
	source        TEXT NOT NULL,
	started_at    TEXT NOT NULL,
	finished_at   TEXT NOT NULL,
	input_rows    INTEGER NOT NULL,
	output_rows   INTEGER NOT NULL,
	removal_rate  REAL NOT NULL,
	passes_json   TEXT NOT NULL,
	settings_json TEXT
);

CREATE INDEX IF NOT EXISTS runs_started_at ON runs (started_at);
`

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = errors.New("run not found")

// Pass summarizes one deduplication pass of a run.
type Pass struct {
	Field      string `json:"field"`
	Candidates int    `json:"candidates"`
	Removed    int    `json:"removed"`
}

// Run is one recorded deduplication run.
type Run struct {
	ID          string            `json:"run_id"`
	RequestID   string            `json:"request_id,omitempty"`
	Source      string            `json:"source"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at"`
	InputRows   int               `json:"input_rows"`
	OutputRows  int               `json:"output_rows"`
	RemovalRate float64           `json:"removal_rate"`
	Passes      []Pass            `json:"passes"`
	Settings    map[string]string `json:"settings,omitempty"`
}

// Store manages run history in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and runs
// migrations. ":memory:" gives a private in-memory store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers.
	db.SetMaxOpenConns(1)
	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores run, assigning an id when it has none, and returns the stored
// copy.
func (s *Store) Record(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = run.StartedAt
	}
	run.StartedAt = run.StartedAt.UTC()
	run.FinishedAt = run.FinishedAt.UTC()

	passes, err := json.Marshal(run.Passes)
	if err != nil {
		return Run{}, fmt.Errorf("marshal passes: %w", err)
	}
	var settings sql.NullString
	if len(run.Settings) > 0 {
		b, err := json.Marshal(run.Settings)
		if err != nil {
			return Run{}, fmt.Errorf("marshal settings: %w", err)
		}
		settings = sql.NullString{String: string(b), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, request_id, source, started_at, finished_at, input_rows, output_rows, removal_rate, passes_json, settings_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, sql.NullString{String: run.RequestID, Valid: run.RequestID != ""}, run.Source,
		run.StartedAt.Format(time.RFC3339Nano), run.FinishedAt.Format(time.RFC3339Nano),
		run.InputRows, run.OutputRows, run.RemovalRate, string(passes), settings,
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

const selectRun = `SELECT run_id, request_id, source, started_at, finished_at, input_rows, output_rows, removal_rate, passes_json, settings_json FROM runs`

// Get returns the run with the given id.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, selectRun+` WHERE run_id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return run, err
}

// List returns runs newest first along with the total number of runs.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Run, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count runs: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, selectRun+` ORDER BY started_at DESC, run_id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list runs: %w", err)
	}
	return runs, total, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run               Run
		started, finished string
		passes            string
		requestID         sql.NullString
		settings          sql.NullString
	)
	err := sc.Scan(&run.ID, &requestID, &run.Source, &started, &finished, &run.InputRows, &run.OutputRows, &run.RemovalRate, &passes, &settings)
	if err != nil {
		return Run{}, err
	}
	run.RequestID = requestID.String
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return Run{}, fmt.Errorf("parse started_at: %w", err)
	}
	if run.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return Run{}, fmt.Errorf("parse finished_at: %w", err)
	}
	if err := json.Unmarshal([]byte(passes), &run.Passes); err != nil {
		return Run{}, fmt.Errorf("unmarshal passes: %w", err)
	}
	if settings.Valid {
		if err := json.Unmarshal([]byte(settings.String), &run.Settings); err != nil {
			return Run{}, fmt.Errorf("unmarshal settings: %w", err)
		}
	}
	return run, nil
}
