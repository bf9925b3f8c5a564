// Package history persists run records in SQLite: one row per run, one row
// per visited video. Only the ten most recent runs are retained.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"feedac/internal/logging"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusStopped   = "stopped"
	StatusError     = "error"
)

// Record actions.
const (
	ActionCommented = "commented"
	ActionSkipped   = "skipped"
)

// Retained is the number of most recent runs kept in the store.
const Retained = 10

// Run is one execution of the engine.
type Run struct {
	ID           string
	StartedAt    time.Time
	EndedAt      time.Time // zero while running
	Status       string
	CommentCount int
	Error        string
}

// Record is one visited video within a run.
type Record struct {
	AwemeID      string
	AuthorName   string
	Description  string
	MatchedGroup string
	Action       string
	Detail       string
	CommentText  string
	At           time.Time
}

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open initializes the store at <data-dir>/history.db, creates the schema
// and sweeps any run left in the running state by a crash into the error
// state.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	path := filepath.Join(dataDir, "history.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.sweepInterrupted(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id            TEXT PRIMARY KEY,
		started_at    INTEGER NOT NULL,
		ended_at      INTEGER,
		status        TEXT NOT NULL,
		comment_count INTEGER NOT NULL DEFAULT 0,
		error         TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS video_records (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		aweme_id      TEXT NOT NULL,
		author_name   TEXT NOT NULL DEFAULT '',
		description   TEXT NOT NULL DEFAULT '',
		matched_group TEXT NOT NULL DEFAULT '',
		action        TEXT NOT NULL,
		detail        TEXT NOT NULL DEFAULT '',
		comment_text  TEXT NOT NULL DEFAULT '',
		created_at    INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_video_records_run ON video_records(run_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	// Cascading deletes need the pragma per connection; with one
	// connection setting it once is enough.
	if _, err := s.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return nil
}

// sweepInterrupted marks runs that never ended as errored. A run can only
// be left running by a crash or kill.
func (s *Store) sweepInterrupted() error {
	res, err := s.db.Exec(
		`UPDATE runs SET status = ?, error = 'interrupted', ended_at = ? WHERE status = ?`,
		StatusError, time.Now().Unix(), StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to sweep interrupted runs: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		logging.Get(logging.CategoryStore).Warn("marked %d interrupted run(s) as errored", n)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRun inserts a new running run and evicts runs beyond the retention
// limit, oldest first.
func (s *Store) CreateRun() (Run, error) {
	run := Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Status:    StatusRunning,
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (id, started_at, status) VALUES (?, ?, ?)`,
		run.ID, run.StartedAt.Unix(), run.Status,
	)
	if err != nil {
		return Run{}, fmt.Errorf("failed to create run: %w", err)
	}
	if err := s.evictOld(); err != nil {
		return Run{}, err
	}
	logging.StoreDebug("created run %s", run.ID)
	return run, nil
}

func (s *Store) evictOld() error {
	_, err := s.db.Exec(`
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at DESC, id LIMIT ?
		)`, Retained)
	if err != nil {
		return fmt.Errorf("failed to evict old runs: %w", err)
	}
	return nil
}

// AppendRecord adds a visited-video record to a run.
func (s *Store) AppendRecord(runID string, r Record) error {
	at := r.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO video_records
		 (run_id, aweme_id, author_name, description, matched_group, action, detail, comment_text, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, r.AwemeID, r.AuthorName, r.Description, r.MatchedGroup, r.Action, r.Detail, r.CommentText, at.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to append record: %w", err)
	}
	return nil
}

// EndRun finalizes a run with its terminal status, comment count and
// optional error message.
func (s *Store) EndRun(runID, status string, commentCount int, errMsg string) error {
	_, err := s.db.Exec(
		`UPDATE runs SET status = ?, comment_count = ?, error = ?, ended_at = ? WHERE id = ?`,
		status, commentCount, errMsg, time.Now().Unix(), runID,
	)
	if err != nil {
		return fmt.Errorf("failed to end run: %w", err)
	}
	return nil
}

// ListRuns returns all retained runs, newest first.
func (s *Store) ListRuns() ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT id, started_at, ended_at, status, comment_count, error
		 FROM runs ORDER BY started_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (Run, error) {
	var r Run
	var started int64
	var ended sql.NullInt64
	if err := row.Scan(&r.ID, &started, &ended, &r.Status, &r.CommentCount, &r.Error); err != nil {
		return Run{}, fmt.Errorf("failed to scan run: %w", err)
	}
	r.StartedAt = time.Unix(started, 0)
	if ended.Valid {
		r.EndedAt = time.Unix(ended.Int64, 0)
	}
	return r, nil
}

// GetRun returns one run and its records in visit order.
func (s *Store) GetRun(runID string) (Run, []Record, error) {
	row := s.db.QueryRow(
		`SELECT id, started_at, ended_at, status, comment_count, error FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, nil, fmt.Errorf("run %s not found", runID)
		}
		return Run{}, nil, err
	}

	rows, err := s.db.Query(
		`SELECT aweme_id, author_name, description, matched_group, action, detail, comment_text, created_at
		 FROM video_records WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return Run{}, nil, fmt.Errorf("failed to load records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var at int64
		if err := rows.Scan(&rec.AwemeID, &rec.AuthorName, &rec.Description, &rec.MatchedGroup,
			&rec.Action, &rec.Detail, &rec.CommentText, &at); err != nil {
			return Run{}, nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.At = time.Unix(at, 0)
		records = append(records, rec)
	}
	return run, records, rows.Err()
}

// RunningRun returns the run currently in the running state, if any.
func (s *Store) RunningRun() (Run, bool, error) {
	row := s.db.QueryRow(
		`SELECT id, started_at, ended_at, status, comment_count, error
		 FROM runs WHERE status = ? ORDER BY started_at DESC, id DESC LIMIT 1`, StatusRunning)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, false, nil
		}
		return Run{}, false, err
	}
	return run, true, nil
}

// DeleteRun removes a run and its records.
func (s *Store) DeleteRun(runID string) error {
	res, err := s.db.Exec(`DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}
