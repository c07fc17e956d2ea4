package index

import "github.com/grailbio/intervalcollab/ivl"

// Index is the common shape every cooperating index exposes, so
// LocalCollection can fan add/remove out to all of them — including
// user-attached extra indices (spec.md §4.4 attachIndex/detachIndex) —
// uniformly.
type Index interface {
	Add(iv *ivl.Interval)
	Remove(iv *ivl.Interval)
}

// Bundle owns the four core indices of spec.md §4.3 and a dynamic set of
// extra, user-attached indices (spec.md §4.4). All are updated in
// lockstep: Add/Remove fan out to every one of them inside a single
// call, so an interval is never visible under one index and missing
// from another (spec.md §5 ordering guarantee 4).
type Bundle struct {
	ID         *ID
	Endpoint   *Endpoint
	Overlap    *Overlap
	EndRange   *EndRange
	StartRange *StartRange

	extra []Index
}

// NewBundle returns an empty, fully wired Bundle.
func NewBundle() *Bundle {
	return &Bundle{
		ID:         NewID(),
		Endpoint:   NewEndpoint(),
		Overlap:    NewOverlap(),
		EndRange:   NewEndRange(),
		StartRange: NewStartRange(),
	}
}

// core returns the five built-in index values (the end/start in-range
// pair counted separately) as an array, for uniform iteration alongside
// extra.
func (b *Bundle) core() [5]Index {
	return [5]Index{b.ID, b.Endpoint, b.Overlap, b.EndRange, b.StartRange}
}

// Add adds iv to every index atomically (spec.md §3 Lifecycle: "added to
// every index atomically").
func (b *Bundle) Add(iv *ivl.Interval) {
	for _, idx := range b.core() {
		idx.Add(iv)
	}
	for _, idx := range b.extra {
		idx.Add(iv)
	}
}

// Remove removes iv from every index.
func (b *Bundle) Remove(iv *ivl.Interval) {
	for _, idx := range b.core() {
		idx.Remove(iv)
	}
	for _, idx := range b.extra {
		idx.Remove(iv)
	}
}

// AttachIndex registers idx for future Add/Remove calls and backfills it
// with every interval currently in the id index (spec.md §4.5
// attachIndex: "adds every existing interval to idx and registers idx
// for future updates").
func (b *Bundle) AttachIndex(idx Index) {
	for _, iv := range b.ID.All() {
		idx.Add(iv)
	}
	b.extra = append(b.extra, idx)
}

// DetachIndex unregisters idx. Returns false if idx was never attached
// (spec.md §4.5 detachIndex).
func (b *Bundle) DetachIndex(idx Index) bool {
	for i, e := range b.extra {
		if e == idx {
			b.extra = append(b.extra[:i], b.extra[i+1:]...)
			return true
		}
	}
	return false
}
