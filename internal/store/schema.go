package store

import (
	"database/sql"
	"fmt"

	"playable/internal/logging"
)

// Schema versions:
// v1: runs and entries
// v2: tokens columns on runs and entries
const currentSchemaVersion = 2

// migration adds a column that older manifests lack.
type migration struct {
	Table  string
	Column string
	Def    string
}

var pendingMigrations = []migration{
	{"runs", "tokens", "INTEGER NOT NULL DEFAULT 0"},
	{"entries", "tokens", "INTEGER NOT NULL DEFAULT 0"},
}

func (m *Manifest) initialize() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			data_dir TEXT NOT NULL,
			output_file TEXT NOT NULL,
			records INTEGER NOT NULL DEFAULT 0,
			errors INTEGER NOT NULL DEFAULT 0,
			base INTEGER NOT NULL DEFAULT 0,
			remix INTEGER NOT NULL DEFAULT 0,
			bug_fix INTEGER NOT NULL DEFAULT 0,
			lines INTEGER NOT NULL DEFAULT 0,
			tokens INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			source TEXT NOT NULL,
			game_type TEXT NOT NULL,
			lines INTEGER NOT NULL DEFAULT 0,
			tokens INTEGER NOT NULL DEFAULT 0,
			sha256 TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_run ON entries(run_id, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_sha ON entries(sha256)`,
	}
	for _, stmt := range schema {
		if _, err := m.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return runMigrations(m.db)
}

// runMigrations adds missing columns and stamps PRAGMA user_version.
func runMigrations(db *sql.DB) error {
	if schemaVersion(db) >= currentSchemaVersion {
		return nil
	}

	applied := 0
	for _, mg := range pendingMigrations {
		if columnExists(db, mg.Table, mg.Column) {
			continue
		}
		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", mg.Table, mg.Column, mg.Def)
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("migration %s.%s failed: %w", mg.Table, mg.Column, err)
		}
		logging.Store("Migration applied: added %s.%s", mg.Table, mg.Column)
		applied++
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}
	logging.StoreDebug("Schema migrations complete: applied=%d", applied)
	return nil
}

func schemaVersion(db *sql.DB) int {
	var v int
	if err := db.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		logging.StoreDebug("PRAGMA user_version failed: %v", err)
		return 0
	}
	return v
}

// columnExists checks a column with PRAGMA table_info.
func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid, notnull, pk int
		var name, ctype string
		var dflt interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}
