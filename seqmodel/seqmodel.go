// Package seqmodel declares the surface this module consumes from the
// underlying sequence CRDT (a "merge-tree" in the host's terminology).
// Defining that CRDT is explicitly out of scope (spec §1 non-goals); this
// package exists only so the interval engine can be written, tested, and
// reasoned about against a stable contract. See spec.md §6.
package seqmodel

// Segment is an opaque unit of the underlying sequence. Positions within
// it are addressed as (segment, offset). The interval engine never
// inspects a Segment's contents; it only carries the handle around and
// passes it back to the Client.
type Segment interface {
	// ID returns a stable identifier for the segment, used for logging
	// and for the id-map lookups testseq and other Client
	// implementations perform internally. The interval engine treats it
	// as opaque.
	ID() string
}

// SlidingPreference controls which direction a reference slides when its
// segment is removed.
type SlidingPreference int

const (
	// Forward slides to the start of the next live segment.
	Forward SlidingPreference = iota
	// Backward slides to the end of the previous live segment.
	Backward
)

// RefType is a bitmask of reference-type flags (spec.md §3, §4.1).
type RefType uint8

const (
	RangeBegin RefType = 1 << iota
	RangeEnd
	NestBegin
	NestEnd
	SlideOnRemove
	StayOnRemove
	Transient
)

// Has reports whether all bits of want are set in rt.
func (rt RefType) Has(want RefType) bool { return rt&want == want }

// Pos is a resolved numeric position in the sequence, or Detached.
type Pos int64

// Detached is the sentinel returned by Resolve for a reference whose
// anchor segment has been removed and no slide target exists. A detached
// position never overlaps any live range (spec.md §4.1).
const Detached Pos = -1

// IsDetached reports whether p is the Detached sentinel.
func (p Pos) IsDetached() bool { return p == Detached }

// SegOffset names a (segment, offset) pair, the unit the sequence CRDT
// addresses positions with.
type SegOffset struct {
	Segment Segment
	Offset  int
}

// Reference is a handle the Client hands back from Create/CreateDetached.
// It is opaque to the interval engine beyond the accessors below — all
// sliding, comparison, and resolution happens through Client methods.
type Reference interface {
	// RefType returns the reference's current type flags.
	RefType() RefType
	// SetRefType overwrites the reference's type flags in place,
	// without moving it. Used to promote StayOnRemove to SlideOnRemove
	// on ack (spec.md §4.1, §4.5).
	SetRefType(RefType)
	// SlidingPreference returns the reference's preferred slide
	// direction.
	SlidingPreference() SlidingPreference
	// SetBeforeSlide/SetAfterSlide install the slide-protocol callbacks
	// described in spec.md §4.1. Either may be nil.
	SetBeforeSlide(fn func(oldSeg SegOffset))
	SetAfterSlide(fn func(newSeg SegOffset))
	// Properties exposes the reference's property bag — used to stash
	// rangeLabels and the endpoint-to-interval back-pointer (spec.md
	// §3 "Ownership").
	Properties() map[string]interface{}
	// Anchor returns the reference's current raw (segment, offset),
	// even when that segment has been removed and the reference hasn't
	// slid (a StayOnRemove endpoint pinned to dead text). Used by
	// ack-slide promotion to call GetSlideToSegment directly against
	// the dead anchor, rather than round-tripping through a resolved
	// int position that a removed segment can no longer produce.
	Anchor() SegOffset
}

// Client is the per-collection, per-client surface consumed from the
// sequence CRDT (spec.md §6).
type Client interface {
	// GetCurrentSeq returns the current sequence number.
	GetCurrentSeq() int64
	// NextLocalSeq returns the next local-seq to assign and advances the
	// client's collab-window counter. Corresponds to
	// "getCollabWindow() -> {localSeq}" in spec.md, modeled as a single
	// call rather than a mutable struct since Go has no convenient
	// shared-mutable-field idiom across package boundaries.
	NextLocalSeq() int64
	// GetLongClientID returns the long-form client id for a given
	// short id, used to label reconnection lookups.
	GetLongClientID(shortID string) string
	// FindReconnectionPosition returns the current position of segment
	// as of a given pending local-seq, used during rebase.
	FindReconnectionPosition(segment Segment, localSeq int64) (int, error)
	// GetContainingSegment resolves an absolute position to a
	// (segment, offset) pair, optionally as of a historical localSeq
	// (localSeq==nil means "current").
	GetContainingSegment(pos int, localSeq *int64) (SegOffset, error)
	// GetSlideToSegment returns where a (possibly now-removed) segment
	// position should slide to.
	GetSlideToSegment(at SegOffset) (SegOffset, error)
	// CreateLocalReferencePosition binds a new Reference to a live
	// segment.
	CreateLocalReferencePosition(at SegOffset, refType RefType, pref SlidingPreference) (Reference, error)
	// CreateDetachedLocalReferencePosition creates a Reference with no
	// live anchor.
	CreateDetachedLocalReferencePosition(refType RefType) Reference
	// RemoveLocalReferencePosition unregisters ref from slide
	// notification. Safe to call on an already-detached reference.
	RemoveLocalReferencePosition(ref Reference)
	// Compare returns the stable total order between two references:
	// -1, 0, or +1.
	Compare(a, b Reference) int
	// Resolve returns the current numeric position of ref, or Detached.
	Resolve(ref Reference) Pos
	// OnNormalize registers a callback fired when the sequence rebases
	// pending ops (the "normalize" event of spec.md §6).
	OnNormalize(fn func())
}

// Min returns whichever of a, b compares first under client's order.
func Min(client Client, a, b Reference) Reference {
	if client.Compare(a, b) <= 0 {
		return a
	}
	return b
}

// Max returns whichever of a, b compares last under client's order.
func Max(client Client, a, b Reference) Reference {
	if client.Compare(a, b) >= 0 {
		return a
	}
	return b
}
