package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ppiankov/purgelogs/internal/reporter"
)

// Cycle is one row of the ledger.
type Cycle struct {
	ID               string
	Root             string
	RetentionDays    int
	Cutoff           time.Time
	DryRun           bool
	ProtectBuildsets bool
	StartedAt        time.Time
	Duration         time.Duration
	JobDirs          int
	Kept             int
	Deleted          int
	Protected        int
	Error            string
}

// Store records purge cycles and their removed and spared directories.
type Store struct {
	db *sql.DB
}

// NewStore wraps an opened database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordCycle inserts a finished cycle and its actions in one transaction.
func (s *Store) RecordCycle(ctx context.Context, r *reporter.CycleReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `INSERT INTO purge_cycle
  (id, root, retention_days, cutoff, dry_run, protect_buildsets, started_at, duration_ms,
   job_dirs, kept, deleted, protected, error)
  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.CycleID, r.Root, r.RetentionDays, formatTime(r.Cutoff), r.DryRun, r.ProtectBuildsets,
		formatTime(r.StartedAt), r.Duration.Milliseconds(),
		r.JobDirs, r.Kept, r.Deleted, r.Protected, nullString(r.Error))
	if err != nil {
		return fmt.Errorf("insert cycle %s: %w", r.CycleID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO purge_action
  (cycle_id, kind, path, project, buildset, mtime) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare action insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, group := range [][]reporter.Action{r.Removed, r.Spared} {
		for _, a := range group {
			if _, err := stmt.ExecContext(ctx, r.CycleID, a.Kind, a.Path,
				nullString(a.Project), nullString(a.Buildset), formatTime(a.ModTime)); err != nil {
				return fmt.Errorf("insert action %s: %w", a.Path, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// RecentCycles returns up to limit cycles, newest first.
func (s *Store) RecentCycles(ctx context.Context, limit int) ([]Cycle, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, root, retention_days, cutoff, dry_run,
  protect_buildsets, started_at, duration_ms, job_dirs, kept, deleted, protected, error
  FROM purge_cycle ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Cycle
	for rows.Next() {
		var (
			c                 Cycle
			cutoff, startedAt string
			durationMS        int64
			errText           sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Root, &c.RetentionDays, &cutoff, &c.DryRun,
			&c.ProtectBuildsets, &startedAt, &durationMS, &c.JobDirs, &c.Kept,
			&c.Deleted, &c.Protected, &errText); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		c.Cutoff = parseTime(cutoff)
		c.StartedAt = parseTime(startedAt)
		c.Duration = time.Duration(durationMS) * time.Millisecond
		c.Error = errText.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// Actions returns the recorded actions of one cycle.
func (s *Store) Actions(ctx context.Context, cycleID string) ([]reporter.Action, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, path, project, buildset, mtime
  FROM purge_action WHERE cycle_id = ? ORDER BY rowid`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []reporter.Action
	for rows.Next() {
		var (
			a                 reporter.Action
			project, buildset sql.NullString
			mtime             string
		)
		if err := rows.Scan(&a.Kind, &a.Path, &project, &buildset, &mtime); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		a.Project = project.String
		a.Buildset = buildset.String
		a.ModTime = parseTime(mtime)
		out = append(out, a)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
