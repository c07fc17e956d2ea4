package index

import (
	storeinterval "github.com/biogo/store/interval"

	"github.com/grailbio/intervalcollab/ivl"
)

// Overlap is the interval tree keyed by (start, end), supporting
// findOverlappingIntervals (spec.md §4.3).
type Overlap struct {
	tree   storeinterval.Tree
	byUUID map[string]*elem
}

// NewOverlap returns an empty overlap index.
func NewOverlap() *Overlap { return &Overlap{byUUID: make(map[string]*elem)} }

// Add inserts iv's current [start,end] span.
func (x *Overlap) Add(iv *ivl.Interval) {
	e := spanElem(iv)
	// fast=false: keep the tree's Range aggregates correct immediately,
	// since findOverlappingIntervals may run between any two calls
	// (spec.md §4.3 coherence rule gives no batching window).
	if err := x.tree.Insert(e, false); err != nil {
		panicInsert("overlap", iv, err)
	}
	x.byUUID[iv.ID()] = e
}

// Remove deletes iv's current entry, if present.
func (x *Overlap) Remove(iv *ivl.Interval) {
	e, ok := x.byUUID[iv.ID()]
	if !ok {
		return
	}
	_ = x.tree.Delete(e, false)
	delete(x.byUUID, iv.ID())
}

// FindOverlapping returns every interval whose span overlaps [start,end].
// Rejects start<=0 or start>end with an empty result, per spec.md §4.3.
func (x *Overlap) FindOverlapping(start, end int64) []*ivl.Interval {
	if start <= 0 || start > end {
		return nil
	}
	// The tree's per-node Range aggregates (used to prune whole subtrees
	// during Get) are snapshotted at Insert/Delete time. A live-resolving
	// elem (store.go) can drift away from that snapshot between calls
	// here without ever going through Insert/Delete again, so refresh
	// the aggregates before every query rather than trust them stale.
	x.tree.AdjustRanges()
	q := rangeElem(posKey(start), posKey(end))
	matches := x.tree.Get(q)
	out := make([]*ivl.Interval, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.(*elem).iv)
	}
	return out
}

// Len returns the number of indexed intervals.
func (x *Overlap) Len() int { return x.tree.Len() }
