package jobtree

import (
	"context"
	"iter"
	"path/filepath"

	"github.com/ppiankov/purgelogs/internal/event"
)

// JobDir is a directory the classifier identified as terminal.
type JobDir struct {
	Path   string
	Marker Marker
}

// Walker finds job directories under a root without descending into them.
type Walker struct {
	sink event.Sink
}

// NewWalker creates a walker reporting classification decisions to sink.
// A nil sink discards them.
func NewWalker(sink event.Sink) *Walker {
	return &Walker{sink: event.OrDiscard(sink)}
}

// Walk returns a lazy sequence of the job directories beneath (and including) root.
// Every call performs a fresh traversal. The order is unspecified.
// The sequence ends early when ctx is cancelled.
func (w *Walker) Walk(ctx context.Context, root string) iter.Seq[JobDir] {
	return func(yield func(JobDir) bool) {
		root = filepath.Clean(root)
		queue := []string{root}
		visited := map[string]struct{}{root: {}}

		for len(queue) > 0 {
			if ctx.Err() != nil {
				return
			}

			dir := queue[len(queue)-1]
			queue = queue[:len(queue)-1]

			content, err := List(dir)
			if err != nil {
				w.sink.Emit(event.Event{Kind: event.KindUnreadable, Path: dir, Err: err})
				continue
			}

			if marker := Classify(content); marker != MarkerNone {
				w.sink.Emit(event.Event{Kind: event.KindClassified, Path: dir, Marker: marker.String()})
				if !yield(JobDir{Path: dir, Marker: marker}) {
					return
				}
				continue
			}

			w.sink.Emit(event.Event{Kind: event.KindWalking, Path: dir})
			for _, child := range content.Dirs {
				if _, seen := visited[child]; seen {
					continue
				}
				visited[child] = struct{}{}
				queue = append(queue, child)
			}
		}
	}
}
