package ivl

import "github.com/grailbio/intervalcollab/seqmodel"

// Stickiness is a 2-bit bitmask controlling whether each endpoint absorbs
// adjacent inserts (spec.md §3 Interval invariant 4).
type Stickiness uint8

const (
	StickyNone  Stickiness = 0
	StickyStart Stickiness = 1 << 0
	StickyEnd   Stickiness = 1 << 1
	StickyFull  Stickiness = StickyStart | StickyEnd
)

// Has reports whether all bits of want are set.
func (s Stickiness) Has(want Stickiness) bool { return s&want == want }

// StartSlidingPreference returns the sliding preference the start
// endpoint must carry for this stickiness: Backward if the Start bit is
// set, Forward otherwise (spec.md §3).
func (s Stickiness) StartSlidingPreference() seqmodel.SlidingPreference {
	if s.Has(StickyStart) {
		return seqmodel.Backward
	}
	return seqmodel.Forward
}

// EndSlidingPreference returns the sliding preference the end endpoint
// must carry for this stickiness: Forward if the End bit is set,
// Backward otherwise (spec.md §3, symmetric rule).
func (s Stickiness) EndSlidingPreference() seqmodel.SlidingPreference {
	if s.Has(StickyEnd) {
		return seqmodel.Forward
	}
	return seqmodel.Backward
}
