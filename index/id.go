package index

import (
	"github.com/grailbio/base/log"

	"github.com/grailbio/intervalcollab/ivl"
)

// ID is the id -> *ivl.Interval map (spec.md §4.3). Add asserts the id is
// present and freezes it; Remove deletes the entry.
type ID struct {
	byID map[string]*ivl.Interval
}

// NewID returns an empty id index.
func NewID() *ID { return &ID{byID: make(map[string]*ivl.Interval)} }

// Add inserts iv, keyed by iv.ID(). Panics if iv has no id yet (spec.md
// §4.3: "asserts id present") and marks the id property non-writable.
func (x *ID) Add(iv *ivl.Interval) {
	if iv.ID() == "" {
		log.Panicf("index: Add called on interval with no id")
	}
	x.byID[iv.ID()] = iv
	iv.FreezeID()
}

// Remove deletes the entry for iv.ID(), if present.
func (x *ID) Remove(iv *ivl.Interval) { delete(x.byID, iv.ID()) }

// Get returns the interval for id, or (nil, false).
func (x *ID) Get(id string) (*ivl.Interval, bool) {
	iv, ok := x.byID[id]
	return iv, ok
}

// Len returns the number of indexed intervals.
func (x *ID) Len() int { return len(x.byID) }

// All returns every indexed interval without any defined order. Used by
// collection.Collection's iterators and by serialize().
func (x *ID) All() []*ivl.Interval {
	out := make([]*ivl.Interval, 0, len(x.byID))
	for _, iv := range x.byID {
		out = append(out, iv)
	}
	return out
}
