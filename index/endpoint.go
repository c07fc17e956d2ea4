package index

import (
	storeinterval "github.com/biogo/store/interval"

	"github.com/grailbio/intervalcollab/ivl"
)

// Endpoint is the red-black tree ordered by end position (spec.md §4.3),
// supporting previousInterval/nextInterval via floor/ceil against a
// transient probe at (pos, pos).
type Endpoint struct {
	tree   storeinterval.Tree
	byUUID map[string]*elem
}

// NewEndpoint returns an empty endpoint index.
func NewEndpoint() *Endpoint { return &Endpoint{byUUID: make(map[string]*elem)} }

func (x *Endpoint) Add(iv *ivl.Interval) {
	e := endPointElem(iv)
	if err := x.tree.Insert(e, false); err != nil {
		panicInsert("endpoint", iv, err)
	}
	x.byUUID[iv.ID()] = e
}

func (x *Endpoint) Remove(iv *ivl.Interval) {
	e, ok := x.byUUID[iv.ID()]
	if !ok {
		return
	}
	_ = x.tree.Delete(e, false)
	delete(x.byUUID, iv.ID())
}

// PreviousInterval returns the interval with the largest end position
// <= pos, or nil if none.
func (x *Endpoint) PreviousInterval(pos int64) *ivl.Interval {
	// force=+1 makes the probe sort after every real interval whose end
	// equals pos, so Floor finds that real interval rather than the
	// probe itself.
	probe := probeElem(posKey(pos), 1)
	// Floor/Ceil navigate by comparing live Elem.Min() at each visited
	// node (see the vendored biogo/store/interval.Node.floor/ceil), so
	// an endpoint's live-resolved position (store.go) is always what
	// gets compared — no separate refresh needed here.
	found, err := x.tree.Floor(probe)
	if err != nil || found == nil {
		return nil
	}
	return found.(*elem).iv
}

// NextInterval returns the interval with the smallest end position >=
// pos, or nil if none.
func (x *Endpoint) NextInterval(pos int64) *ivl.Interval {
	probe := probeElem(posKey(pos), -1)
	found, err := x.tree.Ceil(probe)
	if err != nil || found == nil {
		return nil
	}
	return found.(*elem).iv
}

func (x *Endpoint) Len() int { return x.tree.Len() }
