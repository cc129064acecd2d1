// Package store records dataset generation runs in a SQLite manifest so a
// published dataset can be traced back to the scripts it was built from.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"playable/internal/logging"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a run ID is not in the manifest.
var ErrNotFound = errors.New("run not found")

// Run is one generation run.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	DataDir    string
	OutputFile string

	Records int
	Errors  int
	Base    int
	Remix   int
	BugFix  int
	Lines   int
	Tokens  int
}

// Duration is the wall time of the run.
func (r Run) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Entry is one record written by a run.
type Entry struct {
	Seq      int
	Source   string
	GameType string
	Lines    int
	Tokens   int
	// SHA256 is the hex digest of the assistant content.
	SHA256 string
}

// NewRunID returns a fresh run identifier.
func NewRunID() string { return uuid.NewString() }

// HashContent returns the hex SHA-256 of s.
func HashContent(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Manifest is the SQLite run manifest.
type Manifest struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// Open opens (creating if needed) the manifest database at path.
func Open(path string) (*Manifest, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open manifest")
	defer timer.Stop()

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		logging.StoreDebug("Failed to enable foreign keys: %v", err)
	}

	m := &Manifest{db: db, path: path}
	if err := m.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logging.Store("Manifest ready at %s (schema v%d)", path, schemaVersion(db))
	return m, nil
}

// Path returns the database path.
func (m *Manifest) Path() string { return m.path }

// Close closes the database.
func (m *Manifest) Close() error { return m.db.Close() }

// RecordRun stores a run and its entries in one transaction.
func (m *Manifest) RecordRun(ctx context.Context, run Run, entries []Entry) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, data_dir, output_file,
			records, errors, base, remix, bug_fix, lines, tokens)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(), run.DataDir, run.OutputFile,
		run.Records, run.Errors, run.Base, run.Remix, run.BugFix, run.Lines, run.Tokens)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (run_id, seq, source, game_type, lines, tokens, sha256)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare entry insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, run.ID, e.Seq, e.Source, e.GameType, e.Lines, e.Tokens, e.SHA256); err != nil {
			return fmt.Errorf("failed to insert entry %d: %w", e.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	logging.Store("Recorded run %s (%d entries)", run.ID, len(entries))
	return nil
}

const runColumns = `id, started_at, finished_at, data_dir, output_file,
	records, errors, base, remix, bug_fix, lines, tokens`

// ListRuns returns the most recent runs, newest first. limit <= 0 means all.
func (m *Manifest) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
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

// GetRun looks up one run by ID.
func (m *Manifest) GetRun(ctx context.Context, id string) (Run, error) {
	row := m.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

// Entries returns a run's entries in output order.
func (m *Manifest) Entries(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT seq, source, game_type, lines, tokens, sha256
		FROM entries WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Seq, &e.Source, &e.GameType, &e.Lines, &e.Tokens, &e.SHA256); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (Run, error) {
	var r Run
	var started, finished int64
	err := s.Scan(&r.ID, &started, &finished, &r.DataDir, &r.OutputFile,
		&r.Records, &r.Errors, &r.Base, &r.Remix, &r.BugFix, &r.Lines, &r.Tokens)
	if err != nil {
		return Run{}, err
	}
	r.StartedAt = time.UnixMilli(started)
	r.FinishedAt = time.UnixMilli(finished)
	return r, nil
}
