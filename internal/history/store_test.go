package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/purgelogs/internal/reporter"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "history", "purgelogs.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	s := NewStore(db)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenSQLiteBootstrapsTables(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	for _, table := range []string{"purge_cycle", "purge_action"} {
		var name string
		if err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?;", table).Scan(&name); err != nil {
			t.Fatalf("table %q missing: %v", table, err)
		}
	}
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	if _, err := OpenSQLite(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestRecordCycle_RoundTrip(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 31, 2, 0, 0, 0, time.UTC)
	old := started.Add(-60 * 24 * time.Hour)

	rep := &reporter.CycleReport{
		CycleID:          "cycle-1",
		Root:             "/var/www/logs",
		RetentionDays:    31,
		Cutoff:           started.Add(-31 * 24 * time.Hour),
		DryRun:           true,
		ProtectBuildsets: true,
		StartedAt:        started,
		Duration:         1500 * time.Millisecond,
		JobDirs:          3,
		Deleted:          1,
		Protected:        1,
		Kept:             1,
		Removed:          []reporter.Action{{Kind: "would-delete", Path: "/var/www/logs/a", ModTime: old}},
		Spared:           []reporter.Action{{Kind: "protected", Path: "/var/www/logs/b", Project: "p", Buildset: "b1", ModTime: old}},
	}
	if err := s.RecordCycle(ctx, rep); err != nil {
		t.Fatalf("RecordCycle: %v", err)
	}

	cycles, err := s.RecentCycles(ctx, 10)
	if err != nil {
		t.Fatalf("RecentCycles: %v", err)
	}
	if len(cycles) != 1 {
		t.Fatalf("expected 1 cycle, got %d", len(cycles))
	}
	c := cycles[0]
	if c.ID != "cycle-1" || !c.DryRun || !c.ProtectBuildsets || c.Deleted != 1 || c.JobDirs != 3 {
		t.Errorf("unexpected cycle: %+v", c)
	}
	if !c.StartedAt.Equal(started) || c.Duration != 1500*time.Millisecond {
		t.Errorf("times not preserved: %v %v", c.StartedAt, c.Duration)
	}
	if c.Error != "" {
		t.Errorf("expected no error, got %q", c.Error)
	}

	actions, err := s.Actions(ctx, "cycle-1")
	if err != nil {
		t.Fatalf("Actions: %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(actions))
	}
	if actions[0].Path != "/var/www/logs/a" || actions[0].Project != "" {
		t.Errorf("removed action: %+v", actions[0])
	}
	if actions[1].Buildset != "b1" || !actions[1].ModTime.Equal(old) {
		t.Errorf("spared action: %+v", actions[1])
	}
}

func TestRecentCycles_NewestFirstAndLimit(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		rep := &reporter.CycleReport{CycleID: id, Root: "/logs", StartedAt: base.Add(time.Duration(i) * time.Hour)}
		if id == "c" {
			rep.Error = "delete /logs/x: permission denied"
		}
		if err := s.RecordCycle(ctx, rep); err != nil {
			t.Fatalf("RecordCycle %s: %v", id, err)
		}
	}

	cycles, err := s.RecentCycles(ctx, 2)
	if err != nil {
		t.Fatalf("RecentCycles: %v", err)
	}
	if len(cycles) != 2 || cycles[0].ID != "c" || cycles[1].ID != "b" {
		t.Fatalf("expected [c b], got %+v", cycles)
	}
	if cycles[0].Error == "" {
		t.Error("error text should be stored")
	}
}

func TestRecordCycle_DuplicateID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	rep := &reporter.CycleReport{CycleID: "dup", Root: "/logs", StartedAt: time.Now()}
	if err := s.RecordCycle(ctx, rep); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordCycle(ctx, rep); err == nil {
		t.Fatal("expected primary key violation")
	}
}
