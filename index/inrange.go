package index

import (
	storeinterval "github.com/biogo/store/interval"

	"github.com/grailbio/intervalcollab/ivl"
)

// pointIndex is the shared implementation behind EndRange and
// StartRange: an ordered tree of degenerate [pos,pos] points, queried
// with a single synthetic [lo,hi] range element (rangeElem) that carries
// no forceCompare override.
type pointIndex struct {
	tree   storeinterval.Tree
	byUUID map[string]*elem
	// elemOf builds the live-resolving elem for iv (startPointElem or
	// endPointElem) — not a position snapshot, since the tree must see
	// iv's current position on every visit, not just the one at Add
	// time (index/store.go).
	elemOf func(*ivl.Interval) *elem
}

func newPointIndex(elemOf func(*ivl.Interval) *elem) *pointIndex {
	return &pointIndex{byUUID: make(map[string]*elem), elemOf: elemOf}
}

func (x *pointIndex) Add(iv *ivl.Interval) {
	e := x.elemOf(iv)
	if err := x.tree.Insert(e, false); err != nil {
		panicInsert("in-range", iv, err)
	}
	x.byUUID[iv.ID()] = e
}

func (x *pointIndex) Remove(iv *ivl.Interval) {
	e, ok := x.byUUID[iv.ID()]
	if !ok {
		return
	}
	_ = x.tree.Delete(e, false)
	delete(x.byUUID, iv.ID())
}

// MapRange applies action to every interval whose live position lies in
// [lo,hi], in ascending order, stopping early if action returns true.
// Rejects start<=0 or start>end with no calls, per spec.md §4.3.
func (x *pointIndex) MapRange(action func(*ivl.Interval) bool, lo, hi int64) {
	if lo <= 0 || lo > hi {
		return
	}
	// See index.Overlap.FindOverlapping: DoMatching prunes by the same
	// cached per-node Range aggregates, which can drift away from a
	// live-resolving elem between calls.
	x.tree.AdjustRanges()
	loProbe := rangeElem(posKey(lo), posKey(hi))
	x.tree.DoMatching(func(found storeinterval.Interface) bool {
		return action(found.(*elem).iv)
	}, loProbe)
}

func (x *pointIndex) Len() int { return x.tree.Len() }

// EndRange indexes intervals by end position for range queries.
type EndRange struct{ *pointIndex }

func NewEndRange() *EndRange {
	return &EndRange{newPointIndex(endPointElem)}
}

// StartRange indexes intervals by start position for range queries.
type StartRange struct{ *pointIndex }

func NewStartRange() *StartRange {
	return &StartRange{newPointIndex(startPointElem)}
}
