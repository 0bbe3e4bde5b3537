// Package history keeps a ledger of purge cycles in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// ensures required tables exist.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign_keys: %w", err)
	}
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite creates tables/indexes if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS purge_cycle (
  id                TEXT PRIMARY KEY,
  root              TEXT NOT NULL,
  retention_days    INTEGER NOT NULL,
  cutoff            TEXT NOT NULL,
  dry_run           INTEGER NOT NULL,
  protect_buildsets INTEGER NOT NULL,
  started_at        TEXT NOT NULL,
  duration_ms       INTEGER NOT NULL,
  job_dirs          INTEGER NOT NULL,
  kept              INTEGER NOT NULL,
  deleted           INTEGER NOT NULL,
  protected         INTEGER NOT NULL,
  error             TEXT
);`,
		`CREATE TABLE IF NOT EXISTS purge_action (
  cycle_id  TEXT NOT NULL REFERENCES purge_cycle(id) ON DELETE CASCADE,
  kind      TEXT NOT NULL,
  path      TEXT NOT NULL,
  project   TEXT,
  buildset  TEXT,
  mtime     TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS purge_cycle_started_at_idx ON purge_cycle(started_at);`,
		`CREATE INDEX IF NOT EXISTS purge_action_cycle_idx ON purge_action(cycle_id);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
