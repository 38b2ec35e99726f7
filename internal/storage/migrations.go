package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1.0.0"
)

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up,
		Down:    migrationV1Down,
	},
}

const migrationV1Up = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Papers table (metadata replaced on re-index)
CREATE TABLE IF NOT EXISTS papers (
    paper_id TEXT PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    authors TEXT NOT NULL DEFAULT '[]',
    abstract TEXT NOT NULL DEFAULT '',
    categories TEXT NOT NULL DEFAULT '[]',
    published_date TEXT NOT NULL DEFAULT '',
    pdf_path TEXT,
    markdown_path TEXT,
    json_path TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Chunks table (append-only)
CREATE TABLE IF NOT EXISTS paper_chunks (
    chunk_id INTEGER PRIMARY KEY AUTOINCREMENT,
    paper_id TEXT NOT NULL,
    section_title TEXT NOT NULL DEFAULT '',
    section_level INTEGER NOT NULL DEFAULT 0 CHECK (section_level >= 0),
    section_path TEXT NOT NULL DEFAULT '[]',
    content TEXT NOT NULL CHECK (length(content) > 0),
    chunk_index INTEGER NOT NULL,
    start_char INTEGER NOT NULL DEFAULT 0,
    end_char INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (paper_id) REFERENCES papers(paper_id)
);

CREATE INDEX IF NOT EXISTS idx_paper_chunks_paper ON paper_chunks(paper_id, chunk_index);

-- Full-text projection of chunks, written explicitly in the indexing transaction.
-- rowid mirrors paper_chunks.chunk_id.
CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
    chunk_id UNINDEXED,
    paper_id UNINDEXED,
    title,
    content,
    section_title,
    tokenize = 'porter unicode61'
);

-- Embeddings table, one row per chunk, tagged with the producing model
CREATE TABLE IF NOT EXISTS embeddings (
    chunk_id INTEGER PRIMARY KEY,
    vector BLOB NOT NULL,
    dimension INTEGER NOT NULL,
    provider TEXT NOT NULL,
    model TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (chunk_id) REFERENCES paper_chunks(chunk_id)
);

CREATE INDEX IF NOT EXISTS idx_embeddings_fingerprint ON embeddings(provider, model, dimension);
`

const migrationV1Down = `
DROP TABLE IF EXISTS embeddings;
DROP TABLE IF EXISTS chunks_fts;
DROP TABLE IF EXISTS paper_chunks;
DROP TABLE IF EXISTS papers;
DROP TABLE IF EXISTS schema_version;
`

// SchemaVersion returns the most recently applied migration version,
// or 0.0.0 for a fresh database.
func SchemaVersion(ctx context.Context, db *sql.DB) (*semver.Version, error) {
	var tableName string
	err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)
	if errors.Is(err, sql.ErrNoRows) {
		return semver.MustParse("0.0.0"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check schema_version table: %w", err)
	}

	var raw string
	err = db.QueryRowContext(ctx, "SELECT version FROM schema_version ORDER BY applied_at DESC, version DESC LIMIT 1").Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && raw == "") {
		return semver.MustParse("0.0.0"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}

	v, err := semver.NewVersion(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid current schema version %s: %w", raw, err)
	}
	return v, nil
}

// ApplyMigrations runs all pending migrations. Each migration and its
// version record commit together, so re-running is a no-op.
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	current, err := SchemaVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range AllMigrations {
		v, err := semver.NewVersion(m.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", m.Version, err)
		}
		if !current.LessThan(v) {
			continue
		}

		if err := runMigration(ctx, db, m.Up, "INSERT INTO schema_version (version) VALUES (?)", m.Version); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.Version, err)
		}
		current = v
	}

	return nil
}

// RollbackMigration rolls back the most recent migration
func RollbackMigration(ctx context.Context, db *sql.DB) error {
	current, err := SchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if current.Equal(semver.MustParse("0.0.0")) {
		return errors.New("no migrations to rollback")
	}

	for i := len(AllMigrations) - 1; i >= 0; i-- {
		m := AllMigrations[i]
		v, err := semver.NewVersion(m.Version)
		if err != nil || !v.Equal(current) {
			continue
		}
		// The first migration drops schema_version itself, so there is no row left to delete.
		record := "DELETE FROM schema_version WHERE version = ?"
		if i == 0 {
			record = ""
		}
		if err := runMigration(ctx, db, m.Down, record, m.Version); err != nil {
			return fmt.Errorf("failed to rollback migration %s: %w", m.Version, err)
		}
		return nil
	}

	return fmt.Errorf("migration %s not found", current)
}

func runMigration(ctx context.Context, db *sql.DB, script, record, version string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return err
	}
	if record != "" {
		if _, err := tx.ExecContext(ctx, record, version); err != nil {
			return err
		}
	}
	return tx.Commit()
}
