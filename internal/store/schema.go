package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

// schemaV1 holds one row per engine session and its events in emission
// order. seq is the global emission order used for paging.
const schemaV1 = `
-- One row per engine lifetime
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    started_at TEXT NOT NULL,
    ended_at TEXT
);

-- Events in emission order
CREATE TABLE IF NOT EXISTS events (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    payload TEXT,
    time TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, seq);
CREATE INDEX IF NOT EXISTS idx_events_name ON events(name);

-- Schema version
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// InitSchema prepares db for recording. A fresh database gets the sessions
// and events tables; an existing one must pass ValidateIntegrity and carry a
// schema version this build understands.
func InitSchema(ctx context.Context, db *sql.DB) error {
	version, ok, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if !ok {
		if err := createSchema(ctx, db); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		return nil
	}

	if version > SchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, SchemaVersion)
	}
	if err := ValidateIntegrity(ctx, db); err != nil {
		return fmt.Errorf("database integrity check failed: %w", err)
	}
	return nil
}

// schemaVersion reports the recorded schema version. ok is false when the
// database has never been initialized.
func schemaVersion(ctx context.Context, db *sql.DB) (version int, ok bool, err error) {
	var tables int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_version'`,
	).Scan(&tables); err != nil {
		return 0, false, fmt.Errorf("failed to inspect database: %w", err)
	}
	if tables == 0 {
		return 0, false, nil
	}

	var v sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&v); err != nil {
		return 0, false, fmt.Errorf("failed to read schema version: %w", err)
	}
	if !v.Valid {
		return 0, false, fmt.Errorf("schema_version table is empty")
	}
	return int(v.Int64), true, nil
}

func createSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`,
		SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return tx.Commit()
}

// ValidateIntegrity checks the database file with PRAGMA integrity_check and
// verifies that every recorded event belongs to a known session.
func ValidateIntegrity(ctx context.Context, db *sql.DB) error {
	var result string
	if err := db.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&result); err != nil {
		return fmt.Errorf("failed to run integrity_check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity_check failed: %s", result)
	}

	var orphans int
	var sample sql.NullString
	if err := db.QueryRowContext(ctx, `
		SELECT COUNT(*), MIN(e.session_id)
		FROM events e LEFT JOIN sessions s ON s.id = e.session_id
		WHERE s.id IS NULL`).Scan(&orphans, &sample); err != nil {
		return fmt.Errorf("failed to check event sessions: %w", err)
	}
	if orphans > 0 {
		return fmt.Errorf("%d events reference unknown session %q", orphans, sample.String)
	}
	return nil
}
