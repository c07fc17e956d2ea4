// Package position implements PositionReference, the anchor abstraction
// that survives concurrent segment splits and removals (spec.md §4.1).
package position

import (
	"github.com/grailbio/base/log"

	"github.com/grailbio/intervalcollab/seqmodel"
)

// Reference wraps a seqmodel.Reference with the bookkeeping the interval
// engine needs on top: the client it belongs to, and the lifecycle
// invariant checks from spec.md §3.
//
// A non-Transient reference with SlideOnRemove must be attached to a live
// segment or to the detached sentinel; SlideOnRemove and StayOnRemove are
// mutually exclusive. Locally created references begin StayOnRemove and
// are promoted to SlideOnRemove on acknowledgement (see
// collection.Collection.ackInterval).
type Reference struct {
	client seqmodel.Client
	ref    seqmodel.Reference
}

// New wraps an already-created seqmodel.Reference.
func New(client seqmodel.Client, ref seqmodel.Reference) *Reference {
	if ref == nil {
		log.Panicf("position: New called with nil seqmodel.Reference")
	}
	return &Reference{client: client, ref: ref}
}

// Create binds a new reference to a live segment.
func Create(client seqmodel.Client, at seqmodel.SegOffset, refType seqmodel.RefType, pref seqmodel.SlidingPreference) (*Reference, error) {
	checkFlags(refType)
	ref, err := client.CreateLocalReferencePosition(at, refType, pref)
	if err != nil {
		return nil, err
	}
	return &Reference{client: client, ref: ref}, nil
}

// CreateDetached creates a reference whose anchor segment has already
// vanished (or never existed), per spec.md §4.1.
func CreateDetached(client seqmodel.Client, refType seqmodel.RefType) *Reference {
	checkFlags(refType)
	return &Reference{client: client, ref: client.CreateDetachedLocalReferencePosition(refType)}
}

func checkFlags(refType seqmodel.RefType) {
	if refType.Has(seqmodel.SlideOnRemove) && refType.Has(seqmodel.StayOnRemove) {
		log.Panicf("position: SlideOnRemove and StayOnRemove are mutually exclusive, got %v", refType)
	}
}

// Raw returns the underlying seqmodel.Reference, for callers (such as
// package index) that need to hand it back to the sequence client.
func (r *Reference) Raw() seqmodel.Reference { return r.ref }

// RefType returns the reference's current type flags.
func (r *Reference) RefType() seqmodel.RefType { return r.ref.RefType() }

// SlidingPreference returns the reference's preferred slide direction.
func (r *Reference) SlidingPreference() seqmodel.SlidingPreference { return r.ref.SlidingPreference() }

// Properties exposes the reference's property bag (spec.md §3:
// rangeLabels, and the endpoint-to-interval locator).
func (r *Reference) Properties() map[string]interface{} { return r.ref.Properties() }

// Resolve returns the current numeric position, or seqmodel.Detached.
func (r *Reference) Resolve() seqmodel.Pos { return r.client.Resolve(r.ref) }

// Anchor returns the reference's current raw (segment, offset), even
// when the segment is dead and the reference hasn't slid yet.
func (r *Reference) Anchor() seqmodel.SegOffset { return r.ref.Anchor() }

// Compare orders r against other using the client's stable total order.
func (r *Reference) Compare(other *Reference) int {
	return r.client.Compare(r.ref, other.ref)
}

// Clone makes a new Transient reference at r's current position, sharing
// segment+offset, for use as a "previousInterval" snapshot during slide
// bursts (spec.md §4.4) or for change-event emission (spec.md §4.5).
func (r *Reference) Clone() (*Reference, error) {
	pos := r.Resolve()
	if pos.IsDetached() {
		return &Reference{client: r.client, ref: r.client.CreateDetachedLocalReferencePosition(seqmodel.Transient)}, nil
	}
	at, err := r.client.GetContainingSegment(int(pos), nil)
	if err != nil {
		return nil, err
	}
	clone, err := Create(r.client, at, seqmodel.Transient, r.SlidingPreference())
	if err != nil {
		return nil, err
	}
	for k, v := range r.Properties() {
		clone.Properties()[k] = v
	}
	return clone, nil
}

// Retype changes the reference's type flags in place without moving it.
// Used by PromoteToSlideOnRemove; change events take Transient clones
// (Clone) instead of retyping the live endpoints.
func (r *Reference) Retype(refType seqmodel.RefType) {
	checkFlags(refType)
	r.ref.SetRefType(refType)
}

// SlideProtocol installs the before/after slide callbacks that keep an
// owning collection's indices coherent (spec.md §4.3, §4.4). onBefore
// fires before each slide of this reference and onAfter after it. Both
// endpoints of a Sequence Interval route through the same pair of
// callbacks, so the owner can count a single merge-tree operation that
// moves both endpoints as one burst.
func (r *Reference) SlideProtocol(onBefore func(old seqmodel.SegOffset), onAfter func(new seqmodel.SegOffset)) {
	r.ref.SetBeforeSlide(onBefore)
	r.ref.SetAfterSlide(onAfter)
}

// IsStayOnRemove reports whether the reference still carries the local,
// not-yet-acknowledged StayOnRemove flag.
func (r *Reference) IsStayOnRemove() bool { return r.RefType().Has(seqmodel.StayOnRemove) }

// PromoteToSlideOnRemove clears StayOnRemove and sets SlideOnRemove,
// preserving every other flag. Called once per endpoint when the add or
// change op that created it is acknowledged (spec.md §4.5 ackInterval).
func (r *Reference) PromoteToSlideOnRemove() {
	next := (r.RefType() &^ seqmodel.StayOnRemove) | seqmodel.SlideOnRemove
	r.Retype(next)
}

// Release unregisters the reference so the sequence client no longer
// calls it back on slide.
func (r *Reference) Release() {
	r.client.RemoveLocalReferencePosition(r.ref)
}

// Client returns the owning sequence client, for callers (rebase) that
// need to issue further contract calls against the same client the
// reference was created on.
func (r *Reference) Client() seqmodel.Client { return r.client }
