package purge

import (
	"sort"
	"time"

	"github.com/ppiankov/purgelogs/internal/zuul"
)

// Buildset groups the job directories that share a (project, buildset) key.
type Buildset struct {
	Key       zuul.BuildsetKey
	Jobs      []string
	Latest    time.Time // newest member mtime
	Succeeded bool      // every member reported zero failures
}

// ProtectedSet holds buildset ids exempt from deletion for one cycle.
type ProtectedSet map[string]struct{}

// Has reports whether the buildset id is protected.
func (p ProtectedSet) Has(id string) bool {
	_, ok := p[id]
	return ok
}

// IDs returns the protected buildset ids in sorted order.
func (p ProtectedSet) IDs() []string {
	ids := make([]string, 0, len(p))
	for id := range p {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// newer reports whether a should win over b for the same project:
// later Latest first, then the lexicographically greater buildset id.
func newer(a, b *Buildset) bool {
	if !a.Latest.Equal(b.Latest) {
		return a.Latest.After(b.Latest)
	}
	return a.Key.Buildset > b.Key.Buildset
}

// selectProtected picks, per project, the newest buildset whose jobs all succeeded.
func selectProtected(buildsets []*Buildset) map[string]*Buildset {
	winners := make(map[string]*Buildset)
	for _, bs := range buildsets {
		if !bs.Succeeded || len(bs.Jobs) == 0 {
			continue
		}
		cur, ok := winners[bs.Key.Project]
		if !ok || newer(bs, cur) {
			winners[bs.Key.Project] = bs
		}
	}
	return winners
}
