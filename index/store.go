// Package index implements the four cooperating indices of spec.md §4.3:
// an id map, an overlap tree, an endpoint-ordered tree, and
// endpoint/startpoint-in-range trees. The three order-sensitive indices
// are all built on github.com/biogo/store/interval, the augmented
// Left-Leaning Red-Black interval tree the teacher's go.mod already
// depends on — reused here for real rather than merely cited, per
// DESIGN.md's dependency ledger.
package index

import (
	"strings"

	storeinterval "github.com/biogo/store/interval"

	"github.com/grailbio/base/log"

	"github.com/grailbio/intervalcollab/ivl"
	"github.com/grailbio/intervalcollab/seqmodel"
)

// panicInsert turns an unexpected tree-insert failure (an inverted span,
// which should be impossible given liveSpan's collapsing below)
// into a fatal assertion, matching spec.md §7's Assert error kind.
func panicInsert(which string, iv *ivl.Interval, err error) {
	log.Panicf("index: %s tree rejected interval %s: %v", which, iv.ID(), err)
}

// posKey adapts an int64 sequence position to storeinterval.Comparable.
type posKey int64

func (p posKey) Compare(o storeinterval.Comparable) int {
	op := o.(posKey)
	switch {
	case p < op:
		return -1
	case p > op:
		return 1
	default:
		return 0
	}
}

// idKey adapts spec.md §4.3's two tie-breakers — the forceCompare probe
// override, then id lexicographic order — into a single
// storeinterval.Comparable so the underlying tree's native (min, id)
// node ordering does the work unmodified (see the vendored
// biogo/store/interval.Node.insert in the retrieval pack: ties on Min()
// are broken by ID().Compare()).
type idKey struct {
	force int8
	id    string
}

func (k idKey) Compare(o storeinterval.Comparable) int {
	ok := o.(idKey)
	if k.force != ok.force {
		if k.force < ok.force {
			return -1
		}
		return 1
	}
	return strings.Compare(k.id, ok.id)
}

// elemKind distinguishes how Min/Max are produced for an elem. Real
// (non-synthetic) elems always resolve live against the Interval they
// were built from, rather than trusting a cached value: the upstream
// sequence can renumber a reference (split bookkeeping that never fires
// beforeSlide/afterSlide, or a pre-ack StayOnRemove detach) without any
// matching remove/re-add through this package, so a value captured once
// at Add time goes stale. Synthetic probe/range elems built only for a
// single query (probeElem, rangeElem) carry no Interval and keep their
// literal min/max.
type elemKind uint8

const (
	kindSynthetic elemKind = iota
	kindSpan               // overlap tree: full live [start,end] span
	kindEndPoint            // endpoint-ordered tree: live end position
	kindStartPoint          // in-range tree: live start position
)

// elem is the storeinterval.Interface implementation shared by every
// index in this package. For kindSpan/kindEndPoint/kindStartPoint elems,
// Min/Max/Overlap always re-resolve the owning Interval's current
// position rather than reading a value cached at construction time.
type elem struct {
	iv       *ivl.Interval
	kind     elemKind
	min, max posKey // only meaningful when kind == kindSynthetic
	id       idKey
}

// liveSpan resolves e.iv's current span for kindSpan elems, collapsing a
// detached/live mismatch to an unreachable span exactly as spanElem did
// at construction time — except evaluated fresh on every call.
func (e *elem) liveSpan() (min, max posKey) {
	start, end := e.iv.StartPos(), e.iv.EndPos()
	min, max = resolvedOrSentinel(start), resolvedOrSentinel(end)
	if start.IsDetached() || end.IsDetached() || min > max {
		min, max = detachedSentinel, detachedSentinel
	}
	return min, max
}

func (e *elem) Min() storeinterval.Comparable {
	switch e.kind {
	case kindSpan:
		min, _ := e.liveSpan()
		return min
	case kindEndPoint:
		return resolvedOrSentinel(e.iv.EndPos())
	case kindStartPoint:
		return resolvedOrSentinel(e.iv.StartPos())
	default:
		return e.min
	}
}

func (e *elem) Max() storeinterval.Comparable {
	switch e.kind {
	case kindSpan:
		_, max := e.liveSpan()
		return max
	case kindEndPoint:
		return resolvedOrSentinel(e.iv.EndPos())
	case kindStartPoint:
		return resolvedOrSentinel(e.iv.StartPos())
	default:
		return e.max
	}
}

func (e *elem) ID() storeinterval.Comparable { return e.id }

func (e *elem) Overlap(r storeinterval.Range) bool {
	qmin := r.Min().(posKey)
	qmax := r.Max().(posKey)
	emin := e.Min().(posKey)
	emax := e.Max().(posKey)
	return emin <= qmax && emax >= qmin
}

func (e *elem) NewMutable() storeinterval.Mutable {
	return &mutableRange{min: e.Min().(posKey), max: e.Max().(posKey)}
}

type mutableRange struct{ min, max posKey }

func (m *mutableRange) Min() storeinterval.Comparable      { return m.min }
func (m *mutableRange) Max() storeinterval.Comparable      { return m.max }
func (m *mutableRange) SetMin(c storeinterval.Comparable)  { m.min = c.(posKey) }
func (m *mutableRange) SetMax(c storeinterval.Comparable)  { m.max = c.(posKey) }

// detachedSentinel makes a detached endpoint's span never overlap any
// live query range (spec.md §4.1: "detached references return a
// sentinel that never overlaps any live range").
const detachedSentinel = posKey(1<<62 - 1)

func resolvedOrSentinel(p seqmodel.Pos) posKey {
	if p.IsDetached() {
		return detachedSentinel
	}
	return posKey(p)
}

// spanElem wraps an interval for the overlap tree. Its Min/Max resolve
// iv's current [start,end] span live on every call (see elem.liveSpan).
func spanElem(iv *ivl.Interval) *elem {
	return &elem{iv: iv, kind: kindSpan, id: idKey{force: iv.ForceCompare, id: iv.ID()}}
}

// endPointElem/startPointElem wrap a single endpoint as a degenerate
// [pos,pos] point, used by the endpoint-ordered and in-range trees. Min
// and Max both resolve the live position on every call.
func endPointElem(iv *ivl.Interval) *elem {
	return &elem{iv: iv, kind: kindEndPoint, id: idKey{force: iv.ForceCompare, id: iv.ID()}}
}

func startPointElem(iv *ivl.Interval) *elem {
	return &elem{iv: iv, kind: kindStartPoint, id: idKey{force: iv.ForceCompare, id: iv.ID()}}
}

// probeElem builds a synthetic, un-owned elem for Floor/Ceil probes: a
// degenerate [pos,pos] point whose ForceCompare-equivalent force value
// makes it strictly precede (force<0) or follow (force>0) every real
// element at the same position (spec.md §4.3).
func probeElem(pos posKey, force int8) *elem {
	return &elem{kind: kindSynthetic, min: pos, max: pos, id: idKey{force: force}}
}

// rangeElem builds a synthetic [lo,hi] query element for Tree.Get,
// which only ever calls its Overlap method.
func rangeElem(lo, hi posKey) *elem {
	return &elem{kind: kindSynthetic, min: lo, max: hi}
}
