package purge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/purgelogs/internal/event"
	"github.com/ppiankov/purgelogs/internal/jobtree"
	"github.com/ppiankov/purgelogs/internal/zuul"
)

// Options controls a single purge cycle.
type Options struct {
	Root             string
	Cutoff           time.Time // job dirs modified before this are expired
	DryRun           bool
	ProtectBuildsets bool // keep the latest successful buildset of each project
}

// Result summarises one purge cycle.
type Result struct {
	JobDirs            int
	Expired            int
	Deleted            int // removed, or would have been removed in dry-run
	Protected          int
	Kept               int
	ProtectedBuildsets []string
	Duration           time.Duration
}

// Engine decides which job directories to delete and deletes them.
type Engine struct {
	walker   *jobtree.Walker
	resolver *Resolver
	deleter  Deleter
	sink     event.Sink
}

// NewEngine creates a purge engine reporting every decision to sink.
// A nil deleter removes directories from the local filesystem.
func NewEngine(sink event.Sink, deleter Deleter) *Engine {
	sink = event.OrDiscard(sink)
	walker := jobtree.NewWalker(sink)
	return &Engine{
		walker:   walker,
		resolver: NewResolver(walker, sink),
		deleter:  deleter,
		sink:     sink,
	}
}

// Cutoff returns the instant before which a job directory is older than days.
func Cutoff(now time.Time, days int) time.Time {
	return now.Add(-time.Duration(days) * 24 * time.Hour)
}

// Purge runs one cycle: an optional protection pass over the whole tree, then
// a second walk applying deletion decisions. The root itself is never deleted.
// A deletion error stops the cycle and is returned.
func (e *Engine) Purge(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()
	root := filepath.Clean(opts.Root)
	res := &Result{}

	protected := ProtectedSet{}
	if opts.ProtectBuildsets {
		resolution, err := e.resolver.Resolve(ctx, root)
		if err != nil {
			return nil, fmt.Errorf("resolve protected buildsets: %w", err)
		}
		protected = resolution.Protected
		res.ProtectedBuildsets = protected.IDs()
	}

	del := e.deleterFor(opts.DryRun)

	for job := range e.walker.Walk(ctx, root) {
		res.JobDirs++

		info, err := os.Stat(job.Path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				e.sink.Emit(event.Event{Kind: event.KindVanished, Path: job.Path})
				continue
			}
			e.sink.Emit(event.Event{Kind: event.KindUnreadable, Path: job.Path, Err: err})
			continue
		}
		mtime := info.ModTime()

		if job.Path == root {
			e.sink.Emit(event.Event{Kind: event.KindSkippedRoot, Path: job.Path, ModTime: mtime})
			continue
		}

		if !mtime.Before(opts.Cutoff) {
			res.Kept++
			e.sink.Emit(event.Event{Kind: event.KindKept, Path: job.Path, ModTime: mtime})
			continue
		}
		res.Expired++

		if opts.ProtectBuildsets {
			if id, ok := zuul.Buildset(job.Path); ok && protected.Has(id) {
				res.Protected++
				e.sink.Emit(event.Event{Kind: event.KindProtected, Path: job.Path, Buildset: id, ModTime: mtime})
				continue
			}
		}

		if err := del.Delete(job.Path); err != nil {
			res.Duration = time.Since(start)
			return res, fmt.Errorf("delete %s: %w", job.Path, err)
		}
		res.Deleted++

		kind := event.KindDeleted
		if opts.DryRun {
			kind = event.KindWouldDelete
		}
		e.sink.Emit(event.Event{Kind: kind, Path: job.Path, ModTime: mtime})
	}

	res.Duration = time.Since(start)
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// deleterFor never hands out a real deleter in dry-run mode.
func (e *Engine) deleterFor(dryRun bool) Deleter {
	if dryRun {
		return FSDeleter{DryRun: true}
	}
	if e.deleter != nil {
		return e.deleter
	}
	return FSDeleter{}
}
