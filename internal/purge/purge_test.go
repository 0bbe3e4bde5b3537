package purge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/ppiankov/purgelogs/internal/event"
	"github.com/ppiankov/purgelogs/internal/zuul"
)

var (
	now        = time.Now()
	cutoff     = Cutoff(now, 30)
	recentTime = now.Add(-24 * time.Hour)
	oldTime    = now.Add(-60 * 24 * time.Hour)
	olderTime  = now.Add(-90 * 24 * time.Hour)
)

func mkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
}

func touch(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

// zuulJob creates a job directory with inventory and job output, then ages it.
func zuulJob(t *testing.T, path, project, buildset string, failures int, mtime time.Time) {
	t.Helper()
	mkdir(t, filepath.Join(path, "zuul-info"))
	inv := fmt.Sprintf("all:\n  vars:\n    zuul:\n      buildset: %s\n      project:\n        canonical_name: %s\n", buildset, project)
	if err := os.WriteFile(filepath.Join(path, "zuul-info", "inventory.yaml"), []byte(inv), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := os.Create(filepath.Join(path, "job-output.json.gz"))
	if err != nil {
		t.Fatal(err)
	}
	zw := gzip.NewWriter(f)
	fmt.Fprintf(zw, `[{"stats":{"container":{"failures":%d}}}]`, failures)
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	touch(t, path, mtime)
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func purge(t *testing.T, root string, dryRun, protect bool) *Result {
	t.Helper()
	res, err := NewEngine(nil, nil).Purge(context.Background(), Options{
		Root:             root,
		Cutoff:           cutoff,
		DryRun:           dryRun,
		ProtectBuildsets: protect,
	})
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	return res
}

func TestPurge_OldJobDeleted(t *testing.T) {
	root := t.TempDir()
	job := filepath.Join(root, "job1")
	mkdir(t, filepath.Join(job, "zuul-info"))
	touch(t, job, oldTime)

	res := purge(t, root, false, false)
	if exists(job) {
		t.Fatal("old job directory should have been purged")
	}
	if res.Deleted != 1 {
		t.Errorf("deleted: got %d, want 1", res.Deleted)
	}
}

func TestPurge_RecentJobKept(t *testing.T) {
	root := t.TempDir()
	job := filepath.Join(root, "job1")
	mkdir(t, filepath.Join(job, "zuul-info"))
	touch(t, job, recentTime)

	res := purge(t, root, false, false)
	if !exists(job) {
		t.Fatal("recent job directory should not be purged")
	}
	if res.Kept != 1 {
		t.Errorf("kept: got %d, want 1", res.Kept)
	}
}

func TestPurge_EmptyDirDeleted(t *testing.T) {
	root := t.TempDir()
	empty := filepath.Join(root, "empty")
	mkdir(t, empty)
	touch(t, empty, oldTime)

	purge(t, root, false, false)
	if exists(empty) {
		t.Fatal("old empty directory should be purged")
	}
}

func TestPurge_NestedJobUnderRecentParent(t *testing.T) {
	root := t.TempDir()
	parent := filepath.Join(root, "parent")
	job := filepath.Join(parent, "job")
	mkdir(t, filepath.Join(job, "zuul-info"))
	touch(t, job, oldTime)
	touch(t, parent, recentTime)

	purge(t, root, false, false)
	if exists(job) {
		t.Error("nested old job should be purged")
	}
	if !exists(parent) {
		t.Error("parent directory should not be purged")
	}
}

func TestPurge_ConsoleAndAraJobs(t *testing.T) {
	root := t.TempDir()
	jenkins := filepath.Join(root, "jenkins", "42")
	mkdir(t, jenkins)
	if err := os.WriteFile(filepath.Join(jenkins, "consoleText.txt"), []byte("log"), 0o644); err != nil {
		t.Fatal(err)
	}
	touch(t, jenkins, oldTime)
	ara := filepath.Join(root, "ara", "run")
	mkdir(t, filepath.Join(ara, "ara-database"))
	touch(t, ara, oldTime)

	purge(t, root, false, false)
	if exists(jenkins) || exists(ara) {
		t.Fatal("old console and ara job dirs should be purged")
	}
}

func TestPurge_NeverDeletesRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "logs")
	mkdir(t, root)
	touch(t, root, oldTime)

	var skipped []string
	sink := event.SinkFunc(func(e event.Event) {
		if e.Kind == event.KindSkippedRoot {
			skipped = append(skipped, e.Path)
		}
	})
	if _, err := NewEngine(sink, nil).Purge(context.Background(), Options{Root: root, Cutoff: cutoff}); err != nil {
		t.Fatal(err)
	}
	if !exists(root) {
		t.Fatal("root must never be deleted")
	}
	if !slices.Equal(skipped, []string{root}) {
		t.Errorf("skipped-root events: got %v", skipped)
	}

	// a root that is a zuul job dir is also spared
	mkdir(t, filepath.Join(root, "zuul-info"))
	touch(t, root, oldTime)
	purge(t, root, false, true)
	if !exists(root) {
		t.Fatal("root job dir must never be deleted")
	}
}

func TestPurge_SymlinksUntouched(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	target := filepath.Join(outside, "oldjob")
	mkdir(t, filepath.Join(target, "zuul-info"))
	touch(t, target, oldTime)

	logs := filepath.Join(root, "logs")
	mkdir(t, filepath.Join(logs, "keep"))
	link := filepath.Join(logs, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	touch(t, filepath.Join(logs, "keep"), recentTime)

	purge(t, root, false, false)
	if !exists(target) {
		t.Error("symlink target must not be deleted")
	}
	if !exists(link) {
		t.Error("symlink should still exist")
	}
}

func TestPurge_DirWithOnlySymlinkDeletesLinkNotTarget(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	mkdir(t, filepath.Join(outside, "data"))

	holder := filepath.Join(root, "holder")
	mkdir(t, holder)
	if err := os.Symlink(filepath.Join(outside, "data"), filepath.Join(holder, "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	touch(t, holder, oldTime)

	purge(t, root, false, false)
	if exists(holder) {
		t.Error("directory holding only a symlink is empty and old, so it is purged")
	}
	if !exists(filepath.Join(outside, "data")) {
		t.Error("the symlink's target must survive")
	}
}

func snapshot(t *testing.T, root string) []string {
	t.Helper()
	var entries []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		entries = append(entries, fmt.Sprintf("%s %v %d", path, info.Mode(), info.ModTime().UnixNano()))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(entries)
	return entries
}

func TestPurge_DryRunLeavesTreeUnchanged(t *testing.T) {
	for _, protect := range []bool{false, true} {
		t.Run(fmt.Sprintf("protect=%v", protect), func(t *testing.T) {
			root := t.TempDir()
			zuulJob(t, filepath.Join(root, "a"), "p", "b1", 0, olderTime)
			zuulJob(t, filepath.Join(root, "b"), "p", "b2", 1, oldTime)
			empty := filepath.Join(root, "c", "empty")
			mkdir(t, empty)
			touch(t, empty, oldTime)

			before := snapshot(t, root)
			var would []string
			sink := event.SinkFunc(func(e event.Event) {
				if e.Kind == event.KindWouldDelete {
					would = append(would, e.Path)
				}
				if e.Kind == event.KindDeleted {
					t.Errorf("dry-run emitted deleted for %s", e.Path)
				}
			})
			res, err := NewEngine(sink, nil).Purge(context.Background(), Options{
				Root: root, Cutoff: cutoff, DryRun: true, ProtectBuildsets: protect,
			})
			if err != nil {
				t.Fatal(err)
			}
			after := snapshot(t, root)
			if !slices.Equal(before, after) {
				t.Fatalf("dry-run modified the tree:\nbefore %v\nafter  %v", before, after)
			}
			if len(would) == 0 || res.Deleted != len(would) {
				t.Errorf("would-delete: got %v, deleted count %d", would, res.Deleted)
			}
		})
	}
}

func TestPurge_DryRunNeverCallsInjectedDeleter(t *testing.T) {
	root := t.TempDir()
	job := filepath.Join(root, "job")
	mkdir(t, job)
	touch(t, job, oldTime)

	del := &recordingDeleter{}
	if _, err := NewEngine(nil, del).Purge(context.Background(), Options{Root: root, Cutoff: cutoff, DryRun: true}); err != nil {
		t.Fatal(err)
	}
	if len(del.paths) != 0 {
		t.Fatalf("dry-run reached the deleter: %v", del.paths)
	}
}

func TestPurge_Idempotent(t *testing.T) {
	root := t.TempDir()
	zuulJob(t, filepath.Join(root, "t", "p", "a"), "p", "b1", 0, olderTime)
	zuulJob(t, filepath.Join(root, "t", "p", "b"), "p", "b2", 0, oldTime)
	zuulJob(t, filepath.Join(root, "t", "q", "c"), "q", "b3", 1, oldTime)
	touch(t, filepath.Join(root, "t", "p"), recentTime)
	touch(t, filepath.Join(root, "t", "q"), recentTime)

	first := purge(t, root, false, true)
	if first.Deleted == 0 {
		t.Fatal("first run should delete something")
	}
	second := purge(t, root, false, true)
	if second.Deleted != 0 {
		t.Fatalf("second run deleted %d more directories", second.Deleted)
	}
}

// scenario C: two successful buildsets, only the newer survives
func TestPurge_ProtectsLatestSuccessfulBuildset(t *testing.T) {
	root := t.TempDir()
	b1j1 := filepath.Join(root, "b1-job1")
	b1j2 := filepath.Join(root, "b1-job2")
	b2j1 := filepath.Join(root, "b2-job1")
	b2j2 := filepath.Join(root, "b2-job2")
	zuulJob(t, b1j1, "p", "b1", 0, olderTime)
	zuulJob(t, b1j2, "p", "b1", 0, olderTime)
	zuulJob(t, b2j1, "p", "b2", 0, oldTime)
	zuulJob(t, b2j2, "p", "b2", 0, oldTime)

	res := purge(t, root, false, true)
	if exists(b1j1) || exists(b1j2) {
		t.Error("older successful buildset should be deleted")
	}
	if !exists(b2j1) || !exists(b2j2) {
		t.Error("latest successful buildset should be protected")
	}
	if res.Protected != 2 {
		t.Errorf("protected: got %d, want 2", res.Protected)
	}
	if !slices.Equal(res.ProtectedBuildsets, []string{"b2"}) {
		t.Errorf("protected buildsets: got %v, want [b2]", res.ProtectedBuildsets)
	}
}

// scenario D: a single failure disqualifies the whole buildset
func TestPurge_FailedBuildsetNotProtected(t *testing.T) {
	root := t.TempDir()
	failed := filepath.Join(root, "job-failed")
	passed := filepath.Join(root, "job-passed")
	zuulJob(t, failed, "p", "b1", 1, oldTime)
	zuulJob(t, passed, "p", "b1", 0, oldTime)

	purge(t, root, false, true)
	if exists(failed) || exists(passed) {
		t.Fatal("failed buildset should not be protected")
	}
}

func TestPurge_FailedLatestFallsBackToOlderSuccess(t *testing.T) {
	root := t.TempDir()
	ok := filepath.Join(root, "ok")
	bad := filepath.Join(root, "bad")
	zuulJob(t, ok, "p", "good", 0, olderTime)
	zuulJob(t, bad, "p", "broken", 3, oldTime)

	purge(t, root, false, true)
	if !exists(ok) {
		t.Error("newest successful buildset should be protected even when a newer one failed")
	}
	if exists(bad) {
		t.Error("failed buildset should be purged")
	}
}

// equal latest mtime: the lexicographically greater buildset id wins
func TestPurge_TiebreakEqualLatest(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "job-a")
	z := filepath.Join(root, "job-z")
	zuulJob(t, a, "p", "bs-a", 0, oldTime)
	zuulJob(t, z, "p", "bs-z", 0, oldTime)

	res := purge(t, root, false, true)
	if exists(a) {
		t.Error("bs-a should lose the tiebreak and be deleted")
	}
	if !exists(z) {
		t.Error("bs-z should win the tiebreak and be kept")
	}
	if !slices.Equal(res.ProtectedBuildsets, []string{"bs-z"}) {
		t.Errorf("protected buildsets: got %v, want [bs-z]", res.ProtectedBuildsets)
	}
}

func TestSelectProtected(t *testing.T) {
	bs := func(project, id string, latest time.Time, ok bool) *Buildset {
		return &Buildset{
			Key:       zuul.BuildsetKey{Project: project, Buildset: id},
			Jobs:      []string{"/logs/" + id},
			Latest:    latest,
			Succeeded: ok,
		}
	}

	tests := []struct {
		name      string
		buildsets []*Buildset
		want      map[string]string
	}{
		{
			name:      "newest wins",
			buildsets: []*Buildset{bs("p", "b1", olderTime, true), bs("p", "b2", oldTime, true)},
			want:      map[string]string{"p": "b2"},
		},
		{
			name:      "equal latest picks greater id",
			buildsets: []*Buildset{bs("p", "bs-z", oldTime, true), bs("p", "bs-a", oldTime, true)},
			want:      map[string]string{"p": "bs-z"},
		},
		{
			name:      "equal latest order independent",
			buildsets: []*Buildset{bs("p", "bs-a", oldTime, true), bs("p", "bs-z", oldTime, true)},
			want:      map[string]string{"p": "bs-z"},
		},
		{
			name:      "failed newer is skipped",
			buildsets: []*Buildset{bs("p", "good", olderTime, true), bs("p", "bad", oldTime, false)},
			want:      map[string]string{"p": "good"},
		},
		{
			name:      "no success contributes nothing",
			buildsets: []*Buildset{bs("p", "bad", oldTime, false)},
			want:      map[string]string{},
		},
		{
			name:      "projects independent",
			buildsets: []*Buildset{bs("p1", "x", oldTime, true), bs("p2", "y", olderTime, true)},
			want:      map[string]string{"p1": "x", "p2": "y"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := selectProtected(tt.buildsets)
			if len(got) != len(tt.want) {
				t.Fatalf("winners: got %d, want %d", len(got), len(tt.want))
			}
			for project, id := range tt.want {
				if w, ok := got[project]; !ok || w.Key.Buildset != id {
					t.Errorf("project %s: got %v, want %s", project, w, id)
				}
			}
		})
	}
}

func TestPurge_ProtectionDisabled(t *testing.T) {
	root := t.TempDir()
	job := filepath.Join(root, "job1")
	zuulJob(t, job, "p", "successful", 0, oldTime)

	purge(t, root, false, false)
	if exists(job) {
		t.Fatal("job should be deleted when protection is disabled")
	}
}

func TestPurge_MultipleProjects(t *testing.T) {
	root := t.TempDir()
	zuulJob(t, filepath.Join(root, "p1-old"), "project-1", "p1-old", 0, olderTime)
	zuulJob(t, filepath.Join(root, "p1-new"), "project-1", "p1-new", 0, oldTime)
	zuulJob(t, filepath.Join(root, "p2-old"), "project-2", "p2-old", 0, olderTime)
	zuulJob(t, filepath.Join(root, "p2-new"), "project-2", "p2-new", 0, oldTime)
	zuulJob(t, filepath.Join(root, "p3-only"), "project-3", "p3-only", 0, oldTime)

	purge(t, root, false, true)
	for name, want := range map[string]bool{
		"p1-old": false, "p1-new": true,
		"p2-old": false, "p2-new": true,
		"p3-only": true,
	} {
		if got := exists(filepath.Join(root, name)); got != want {
			t.Errorf("%s exists: got %v, want %v", name, got, want)
		}
	}
}

func TestPurge_MissingMetadataNotProtected(t *testing.T) {
	root := t.TempDir()
	bare := filepath.Join(root, "bare")
	mkdir(t, filepath.Join(bare, "zuul-info"))
	touch(t, bare, oldTime)

	purge(t, root, false, true)
	if exists(bare) {
		t.Fatal("job without inventory cannot be protected")
	}
}

type recordingDeleter struct {
	paths []string
	err   error
}

func (d *recordingDeleter) Delete(path string) error {
	d.paths = append(d.paths, path)
	return d.err
}

func TestPurge_DeleteErrorStopsCycle(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a", "b"} {
		job := filepath.Join(root, name)
		mkdir(t, job)
		touch(t, job, oldTime)
	}

	boom := errors.New("permission denied")
	del := &recordingDeleter{err: boom}
	_, err := NewEngine(nil, del).Purge(context.Background(), Options{Root: root, Cutoff: cutoff})
	if !errors.Is(err, boom) {
		t.Fatalf("expected deleter error, got %v", err)
	}
	if len(del.paths) != 1 {
		t.Errorf("cycle should stop at the first failure, deleter saw %v", del.paths)
	}
}

func TestPurge_EventsForEveryDecision(t *testing.T) {
	root := t.TempDir()
	zuulJob(t, filepath.Join(root, "old"), "p", "b1", 0, olderTime)
	zuulJob(t, filepath.Join(root, "protected"), "p", "b2", 0, oldTime)
	zuulJob(t, filepath.Join(root, "recent"), "p", "b3", 1, recentTime)

	counts := map[event.Kind]int{}
	sink := event.SinkFunc(func(e event.Event) { counts[e.Kind]++ })
	if _, err := NewEngine(sink, nil).Purge(context.Background(), Options{
		Root: root, Cutoff: cutoff, ProtectBuildsets: true,
	}); err != nil {
		t.Fatal(err)
	}

	want := map[event.Kind]int{
		event.KindClassified:        6, // three jobs, walked twice
		event.KindWalking:           2,
		event.KindBuildsetProtected: 1,
		event.KindProtected:         1,
		event.KindKept:              1,
		event.KindDeleted:           1,
	}
	for k, n := range want {
		if counts[k] != n {
			t.Errorf("%v: got %d, want %d", k, counts[k], n)
		}
	}
}

func TestPurge_CancelledContext(t *testing.T) {
	root := t.TempDir()
	job := filepath.Join(root, "job")
	mkdir(t, job)
	touch(t, job, oldTime)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEngine(nil, nil).Purge(ctx, Options{Root: root, Cutoff: cutoff})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !exists(job) {
		t.Fatal("cancelled cycle should not delete anything")
	}
}

func TestCutoff(t *testing.T) {
	base := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	got := Cutoff(base, 31)
	want := time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
