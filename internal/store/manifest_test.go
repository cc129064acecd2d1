package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestManifest(t *testing.T) *Manifest {
	t.Helper()
	m, err := Open(filepath.Join(t.TempDir(), "state", "manifest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestManifest_RecordAndList(t *testing.T) {
	ctx := context.Background()
	m := openTestManifest(t)

	start := time.UnixMilli(1_700_000_000_000)
	older := Run{ID: NewRunID(), StartedAt: start, FinishedAt: start.Add(time.Second), DataDir: "data", OutputFile: "a.jsonl", Records: 1, Base: 1, Lines: 10}
	newer := Run{ID: NewRunID(), StartedAt: start.Add(time.Hour), FinishedAt: start.Add(time.Hour + 2*time.Second), DataDir: "data", OutputFile: "b.jsonl", Records: 2, Remix: 1, BugFix: 1, Lines: 30, Tokens: 99}

	entries := []Entry{
		{Seq: 0, Source: "data/pong/pong_red.py", GameType: "remix", Lines: 20, Tokens: 50, SHA256: HashContent("a")},
		{Seq: 1, Source: "data/pong/bugs/pong_bug.py", GameType: "bug_fix", Lines: 10, Tokens: 49, SHA256: HashContent("b")},
	}

	require.NoError(t, m.RecordRun(ctx, older, nil))
	require.NoError(t, m.RecordRun(ctx, newer, entries))

	runs, err := m.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.ID, runs[0].ID)
	assert.Equal(t, older.ID, runs[1].ID)
	assert.Equal(t, 2*time.Second, runs[0].Duration())
	assert.Equal(t, 99, runs[0].Tokens)
	assert.True(t, runs[0].StartedAt.Equal(newer.StartedAt))

	limited, err := m.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	got, err := m.Entries(ctx, newer.ID)
	require.NoError(t, err)
	assert.Equal(t, entries, got)

	run, err := m.GetRun(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.jsonl", run.OutputFile)
}

func TestManifest_GetRunNotFound(t *testing.T) {
	m := openTestManifest(t)
	_, err := m.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManifest_DuplicateRunRollsBack(t *testing.T) {
	ctx := context.Background()
	m := openTestManifest(t)

	run := Run{ID: "fixed-id", StartedAt: time.Now(), FinishedAt: time.Now()}
	require.NoError(t, m.RecordRun(ctx, run, nil))
	assert.Error(t, m.RecordRun(ctx, run, []Entry{{Seq: 0, Source: "x", GameType: "base", SHA256: "h"}}))

	entries, err := m.Entries(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestManifest_RequiresRunID(t *testing.T) {
	m := openTestManifest(t)
	assert.Error(t, m.RecordRun(context.Background(), Run{}, nil))
}

func TestManifest_MigratesOldSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE runs (
		id TEXT PRIMARY KEY, started_at INTEGER NOT NULL, finished_at INTEGER NOT NULL,
		data_dir TEXT NOT NULL, output_file TEXT NOT NULL,
		records INTEGER NOT NULL DEFAULT 0, errors INTEGER NOT NULL DEFAULT 0,
		base INTEGER NOT NULL DEFAULT 0, remix INTEGER NOT NULL DEFAULT 0,
		bug_fix INTEGER NOT NULL DEFAULT 0, lines INTEGER NOT NULL DEFAULT 0)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT, run_id TEXT NOT NULL, seq INTEGER NOT NULL,
		source TEXT NOT NULL, game_type TEXT NOT NULL, lines INTEGER NOT NULL DEFAULT 0,
		sha256 TEXT NOT NULL)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()

	assert.True(t, columnExists(m.db, "runs", "tokens"))
	assert.True(t, columnExists(m.db, "entries", "tokens"))
	assert.Equal(t, currentSchemaVersion, schemaVersion(m.db))

	require.NoError(t, m.RecordRun(context.Background(), Run{ID: NewRunID(), Tokens: 5}, nil))
}

func TestHashContent(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", HashContent(""))
	assert.Len(t, NewRunID(), 36)
}
