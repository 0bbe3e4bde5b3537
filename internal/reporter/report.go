package reporter

import (
	"slices"
	"time"

	"github.com/ppiankov/purgelogs/internal/event"
	"github.com/ppiankov/purgelogs/internal/purge"
)

// Action is one job directory decision worth keeping in a report.
type Action struct {
	Kind     string    `json:"kind"`
	Path     string    `json:"path"`
	Project  string    `json:"project,omitempty"`
	Buildset string    `json:"buildset,omitempty"`
	ModTime  time.Time `json:"mtime"`
}

// BuildsetRef names a buildset selected for protection.
type BuildsetRef struct {
	Project  string    `json:"project"`
	Buildset string    `json:"buildset"`
	Latest   time.Time `json:"latest"`
}

// CycleReport is the record of a single purge cycle.
// It implements event.Sink so it can be attached to the engine directly.
type CycleReport struct {
	CycleID          string        `json:"cycle_id"`
	Root             string        `json:"root"`
	RetentionDays    int           `json:"retention_days"`
	Cutoff           time.Time     `json:"cutoff"`
	DryRun           bool          `json:"dry_run"`
	ProtectBuildsets bool          `json:"protect_buildsets"`
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration"`
	Error            string        `json:"error,omitempty"`

	JobDirs   int `json:"job_dirs"`
	Kept      int `json:"kept"`
	Deleted   int `json:"deleted"`
	Protected int `json:"protected"`

	Removed            []Action      `json:"removed,omitempty"` // deleted or would-delete
	Spared             []Action      `json:"spared,omitempty"`  // protected by buildset
	ProtectedBuildsets []BuildsetRef `json:"protected_buildsets,omitempty"`
	Unreadable         []string      `json:"unreadable,omitempty"`
}

// Emit implements event.Sink.
func (r *CycleReport) Emit(e event.Event) {
	switch e.Kind {
	case event.KindDeleted, event.KindWouldDelete:
		r.Removed = append(r.Removed, actionOf(e))
	case event.KindProtected:
		r.Spared = append(r.Spared, actionOf(e))
	case event.KindBuildsetProtected:
		r.ProtectedBuildsets = append(r.ProtectedBuildsets, BuildsetRef{
			Project:  e.Project,
			Buildset: e.Buildset,
			Latest:   e.ModTime,
		})
	case event.KindUnreadable:
		// both walks of a protected cycle report the same directory
		if !slices.Contains(r.Unreadable, e.Path) {
			r.Unreadable = append(r.Unreadable, e.Path)
		}
	}
}

// Finish copies the engine result and error into the report.
func (r *CycleReport) Finish(res *purge.Result, err error) {
	if res != nil {
		r.JobDirs = res.JobDirs
		r.Kept = res.Kept
		r.Deleted = res.Deleted
		r.Protected = res.Protected
		r.Duration = res.Duration
	}
	if r.Duration == 0 && !r.StartedAt.IsZero() {
		r.Duration = time.Since(r.StartedAt)
	}
	if err != nil {
		r.Error = err.Error()
	}
}

func actionOf(e event.Event) Action {
	return Action{
		Kind:     e.Kind.String(),
		Path:     e.Path,
		Project:  e.Project,
		Buildset: e.Buildset,
		ModTime:  e.ModTime,
	}
}
