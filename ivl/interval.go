// Package ivl implements the Interval entity (spec.md §3, §4.2): a pair
// of endpoints plus properties and a stable id, modeled as a tagged
// variant over Numeric and Sequence endpoint representations rather than
// an inheritance hierarchy (spec.md §9 design note).
package ivl

import (
	"github.com/grailbio/base/log"

	"github.com/grailbio/intervalcollab/position"
	"github.com/grailbio/intervalcollab/seqmodel"
)

// Kind tags which endpoint representation an Interval carries.
type Kind uint8

const (
	// Numeric intervals have raw integer endpoints; comparator is
	// numeric subtraction with id lexicographic tie-break.
	Numeric Kind = iota
	// Sequence intervals have PositionReference-backed endpoints.
	Sequence
)

// Type is the interval-level type (spec.md §3): Simple, Nest,
// SlideOnRemove, or Transient. Distinct from the per-endpoint RefType
// flags in package seqmodel.
type Type uint8

const (
	Simple Type = iota
	Nest
	SlideOnRemove
	TransientType
)

// Interval is the engine's core entity: two endpoints, properties, a
// property manager, and a stable id. id is present once the interval is
// attached to a collection and is immutable thereafter (spec.md §3
// invariant 1). Transient intervals never enter an attached collection
// (invariant 2).
type Interval struct {
	Kind Kind

	// Numeric endpoints (valid when Kind == Numeric).
	NumStart, NumEnd int64

	// Sequence endpoints (valid when Kind == Sequence).
	SeqStart, SeqEnd *position.Reference

	Type        Type
	Stickiness  Stickiness
	Properties  map[string]interface{}
	PropManager *PropertyManager

	id         string
	idImmutable bool

	// ForceCompare is the comparator override used only by transient
	// probe intervals built for range queries (spec.md §4.3): -1 makes
	// the probe strictly precede, +1 strictly follow, all real
	// intervals with an equal endpoint position. Zero for every real,
	// attached interval.
	ForceCompare int8
}

// ID returns the interval's stable id, or "" if not yet attached.
func (iv *Interval) ID() string { return iv.id }

// SetID assigns the interval's id. Panics if the id is already immutable
// (spec.md §3 invariant 1, §4.3 id index "marks the id property
// non-writable").
func (iv *Interval) SetID(id string) {
	if iv.idImmutable {
		log.Panicf("ivl: attempt to change immutable id %q -> %q", iv.id, id)
	}
	iv.id = id
	if iv.Properties == nil {
		iv.Properties = map[string]interface{}{}
	}
	iv.Properties[ReservedIntervalID] = id
}

// FreezeID marks the id immutable, called once the interval is added to
// the id index.
func (iv *Interval) FreezeID() { iv.idImmutable = true }

// IsTransient reports whether this is a Transient interval (never
// attached to a collection; used only for probe queries and slide-burst
// snapshots).
func (iv *Interval) IsTransient() bool { return iv.Type == TransientType }

// NewNumeric builds a Numeric interval. Used by collections whose
// helpers operate directly on integer positions rather than sequence
// references (spec.md §4.2).
func NewNumeric(start, end int64, typ Type, props map[string]interface{}, stickiness Stickiness) *Interval {
	return &Interval{
		Kind:        Numeric,
		NumStart:    start,
		NumEnd:      end,
		Type:        typ,
		Stickiness:  stickiness,
		Properties:  cloneProps(props),
		PropManager: NewPropertyManager(),
	}
}

// SeqIntervalOpts bundles the optional construction parameters for
// NewSequence (spec.md §4.2).
type SeqIntervalOpts struct {
	// FromAckedOp indicates this creation comes from processing an
	// acknowledged "add" op (local or remote).
	FromAckedOp bool
	// FromSnapshot indicates this creation comes from deserializing a
	// snapshot.
	FromSnapshot bool
}

// NewSequence constructs a Sequence Interval bound to a label and pair of
// (segment, offset) anchors (spec.md §4.2):
//
//   - If typ is TransientType, both references are created Transient.
//   - Otherwise the base ref type is RangeBegin/RangeEnd, or
//     NestBegin/NestEnd when typ is Nest.
//   - If this creation is from an acked op or a snapshot, the base type
//     is additionally OR'd with SlideOnRemove; otherwise with
//     StayOnRemove (promoted to SlideOnRemove on ack — see
//     collection.ackInterval).
//   - Each endpoint's property bag gets rangeLabels = [label].
func NewSequence(label string, start, end seqmodel.SegOffset, client seqmodel.Client, typ Type, opts SeqIntervalOpts, stickiness Stickiness) (*Interval, error) {
	startFlags, endFlags := endpointBaseFlags(typ)

	lifecycleFlag := seqmodel.StayOnRemove
	if opts.FromAckedOp || opts.FromSnapshot {
		lifecycleFlag = seqmodel.SlideOnRemove
	}
	startFlags |= lifecycleFlag
	endFlags |= lifecycleFlag

	startRef, err := position.Create(client, start, startFlags, stickiness.StartSlidingPreference())
	if err != nil {
		return nil, err
	}
	endRef, err := position.Create(client, end, endFlags, stickiness.EndSlidingPreference())
	if err != nil {
		return nil, err
	}
	startRef.Properties()[ReservedRangeLabels] = []string{label}
	endRef.Properties()[ReservedRangeLabels] = []string{label}

	return &Interval{
		Kind:        Sequence,
		SeqStart:    startRef,
		SeqEnd:      endRef,
		Type:        typ,
		Stickiness:  stickiness,
		Properties:  map[string]interface{}{},
		PropManager: NewPropertyManager(),
	}, nil
}

func endpointBaseFlags(typ Type) (start, end seqmodel.RefType) {
	switch typ {
	case TransientType:
		return seqmodel.Transient, seqmodel.Transient
	case Nest:
		return seqmodel.NestBegin, seqmodel.NestEnd
	default:
		return seqmodel.RangeBegin, seqmodel.RangeEnd
	}
}

// Overlaps implements spec.md §4.2's overlap predicate:
// compare(this.start, b.end) <= 0 && compare(this.end, b.start) >= 0.
func (iv *Interval) Overlaps(client seqmodel.Client, b *Interval) bool {
	switch iv.Kind {
	case Numeric:
		return iv.NumStart <= b.NumEnd && iv.NumEnd >= b.NumStart
	default:
		return client.Compare(iv.SeqStart.Raw(), b.SeqEnd.Raw()) <= 0 &&
			client.Compare(iv.SeqEnd.Raw(), b.SeqStart.Raw()) >= 0
	}
}

// StartPos/EndPos resolve the interval's current numeric endpoints
// through the sequence client, or return the raw numeric values for
// Numeric intervals.
func (iv *Interval) StartPos() seqmodel.Pos {
	if iv.Kind == Numeric {
		return seqmodel.Pos(iv.NumStart)
	}
	return iv.SeqStart.Resolve()
}

func (iv *Interval) EndPos() seqmodel.Pos {
	if iv.Kind == Numeric {
		return seqmodel.Pos(iv.NumEnd)
	}
	return iv.SeqEnd.Resolve()
}

// Modify constructs a *new* Interval per spec.md §4.2's modify contract:
// for any endpoint whose position changes, a fresh reference is created
// with the sliding preference derived from stickiness (or the supplied
// override); unchanged endpoints reuse the existing reference. If isLocal
// is true (a local call), new endpoint refs are forced to StayOnRemove.
// Properties and property-manager state are copied onto the result.
func (iv *Interval) Modify(client seqmodel.Client, newStart, newEnd *seqmodel.SegOffset, isLocal bool, stickiness Stickiness) (*Interval, error) {
	if iv.Kind == Numeric {
		out := *iv
		if newStart != nil {
			out.NumStart = int64(newStart.Offset)
		}
		if newEnd != nil {
			out.NumEnd = int64(newEnd.Offset)
		}
		out.Properties = cloneProps(iv.Properties)
		out.PropManager = iv.PropManager.Clone()
		return &out, nil
	}

	lifecycle := seqmodel.SlideOnRemove
	if isLocal {
		lifecycle = seqmodel.StayOnRemove
	}

	startRef := iv.SeqStart
	if newStart != nil {
		flags := (iv.SeqStart.RefType() &^ (seqmodel.StayOnRemove | seqmodel.SlideOnRemove)) | lifecycle
		ref, err := position.Create(client, *newStart, flags, stickiness.StartSlidingPreference())
		if err != nil {
			return nil, err
		}
		for k, v := range iv.SeqStart.Properties() {
			ref.Properties()[k] = v
		}
		startRef = ref
	}
	endRef := iv.SeqEnd
	if newEnd != nil {
		flags := (iv.SeqEnd.RefType() &^ (seqmodel.StayOnRemove | seqmodel.SlideOnRemove)) | lifecycle
		ref, err := position.Create(client, *newEnd, flags, stickiness.EndSlidingPreference())
		if err != nil {
			return nil, err
		}
		for k, v := range iv.SeqEnd.Properties() {
			ref.Properties()[k] = v
		}
		endRef = ref
	}

	out := &Interval{
		Kind:        Sequence,
		SeqStart:    startRef,
		SeqEnd:      endRef,
		Type:        iv.Type,
		Stickiness:  stickiness,
		Properties:  cloneProps(iv.Properties),
		PropManager: iv.PropManager.Clone(),
		id:          iv.id,
		idImmutable: iv.idImmutable,
	}
	return out, nil
}

func cloneProps(props map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}
