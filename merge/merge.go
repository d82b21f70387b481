// Package merge reconciles a freshly fetched set of resource tags with a
// locally edited store.
//
// The policy is local-wins: an entry the user modified is never overwritten
// by the remote copy of the same id. Everything else follows upstream:
//   - New remote entries are added.
//   - Unmodified local entries take the remote content.
//   - Entries upstream no longer ships are removed by Prune.
package merge

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/minios-linux/stringlate/android"
)

// Target is the store being merged into.
type Target interface {
	Get(id string) (android.Tag, bool)
	AddTag(t android.Tag)
	DeleteID(id string) bool
	IDs() []string
}

// Result counts what Merge did.
type Result struct {
	Added   int
	Updated int
	// Kept counts locally modified entries that shadowed a remote value.
	Kept int
}

// Changed reports whether the merge touched the target.
func (r Result) Changed() bool { return r.Added+r.Updated > 0 }

// Merge folds incoming into dst. Incoming tags with empty content are
// ignored.
func Merge(dst Target, incoming []android.Tag) Result {
	var res Result
	for _, t := range incoming {
		if t.Content() == "" {
			continue
		}

		existing, ok := dst.Get(t.ID())
		switch {
		case !ok:
			dst.AddTag(t)
			res.Added++
		case existing.Modified():
			if existing.Content() != t.Content() {
				res.Kept++
			}
		case existing.Content() != t.Content():
			dst.AddTag(t)
			res.Updated++
		}
	}
	return res
}

// Prune removes every entry of dst whose id is not in keep and returns the
// removed ids in order.
func Prune(dst Target, keep mapset.Set[string]) []string {
	var removed []string
	for _, id := range dst.IDs() {
		if keep.Contains(id) {
			continue
		}
		if dst.DeleteID(id) {
			removed = append(removed, id)
		}
	}
	return removed
}

// IDs collects the ids of tags into a set.
func IDs(tags []android.Tag) mapset.Set[string] {
	s := mapset.NewThreadUnsafeSetWithSize[string](len(tags))
	for _, t := range tags {
		s.Add(t.ID())
	}
	return s
}
