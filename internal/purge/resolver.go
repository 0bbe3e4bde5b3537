package purge

import (
	"context"
	"os"
	"sort"

	"github.com/ppiankov/purgelogs/internal/event"
	"github.com/ppiankov/purgelogs/internal/jobtree"
	"github.com/ppiankov/purgelogs/internal/zuul"
)

// Resolution is the outcome of a protection pass.
type Resolution struct {
	Buildsets []*Buildset // every keyed buildset found, sorted by project then id
	Protected ProtectedSet
}

// Resolver computes which buildsets must survive a purge cycle.
type Resolver struct {
	walker *jobtree.Walker
	sink   event.Sink
}

// NewResolver creates a resolver that walks with walker and reports
// protected buildsets to sink.
func NewResolver(walker *jobtree.Walker, sink event.Sink) *Resolver {
	return &Resolver{walker: walker, sink: event.OrDiscard(sink)}
}

// Resolve walks the whole tree under root and returns the latest fully
// successful buildset of every project. It needs global knowledge, so it
// always completes a full walk before returning.
func (r *Resolver) Resolve(ctx context.Context, root string) (*Resolution, error) {
	groups := make(map[zuul.BuildsetKey]*Buildset)

	for job := range r.walker.Walk(ctx, root) {
		key, ok := zuul.ReadBuildsetKey(job.Path)
		if !ok {
			continue
		}

		info, err := os.Stat(job.Path)
		if err != nil {
			// vanished since classification
			continue
		}

		bs, ok := groups[key]
		if !ok {
			bs = &Buildset{Key: key, Succeeded: true}
			groups[key] = bs
		}
		bs.Jobs = append(bs.Jobs, job.Path)
		if mtime := info.ModTime(); mtime.After(bs.Latest) {
			bs.Latest = mtime
		}
		if bs.Succeeded && !zuul.JobSucceeded(job.Path) {
			bs.Succeeded = false
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Resolution{Protected: make(ProtectedSet)}
	for _, bs := range groups {
		res.Buildsets = append(res.Buildsets, bs)
	}
	sort.Slice(res.Buildsets, func(i, j int) bool {
		a, b := res.Buildsets[i].Key, res.Buildsets[j].Key
		if a.Project != b.Project {
			return a.Project < b.Project
		}
		return a.Buildset < b.Buildset
	})

	winners := selectProtected(res.Buildsets)
	projects := make([]string, 0, len(winners))
	for p := range winners {
		projects = append(projects, p)
	}
	sort.Strings(projects)
	for _, p := range projects {
		bs := winners[p]
		res.Protected[bs.Key.Buildset] = struct{}{}
		r.sink.Emit(event.Event{
			Kind:     event.KindBuildsetProtected,
			Project:  bs.Key.Project,
			Buildset: bs.Key.Buildset,
			ModTime:  bs.Latest,
		})
	}

	return res, nil
}
