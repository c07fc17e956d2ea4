// Package localcollection implements LocalCollection (spec.md §4.4): it
// owns the four cooperating indices and wires the endpoint slide
// callbacks that keep them coherent, one layer below the public
// Collection surface in package collection.
package localcollection

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/grailbio/base/log"

	"github.com/grailbio/intervalcollab/index"
	"github.com/grailbio/intervalcollab/ivl"
	"github.com/grailbio/intervalcollab/seqmodel"
)

// LocalCollection owns an id index, an endpoint index, an overlap index,
// the in-range indices, and a dynamic set of user-attached extra
// indices. All are updated in lockstep (spec.md §4.4).
type LocalCollection struct {
	Label   string
	Client  seqmodel.Client
	Helpers ivl.Helpers
	Indices *index.Bundle

	// OnPositionChange is invoked once a slide burst settles, with the
	// interval's new and previous state (spec.md §4.4). Set by the
	// owning collection.Collection.
	OnPositionChange func(iv, previous *ivl.Interval)

	burst map[string]*burstState
}

type burstState struct {
	pending  int
	previous *ivl.Interval
}

// New returns an empty LocalCollection for label, backed by client.
func New(label string, client seqmodel.Client, helpers ivl.Helpers) *LocalCollection {
	return &LocalCollection{
		Label:   label,
		Client:  client,
		Helpers: helpers,
		Indices: index.NewBundle(),
		burst:   make(map[string]*burstState),
	}
}

// AddInterval creates an interval via the collection's helpers, adds it
// to every index, and — for Sequence intervals — installs slide
// listeners (spec.md §4.4).
//
// Asserts that props' rangeLabels, if present, names this collection
// (spec.md §4.4); assigns a fresh UUID id if props has none.
func (lc *LocalCollection) AddInterval(start, end *seqmodel.SegOffset, typ ivl.Type, props map[string]interface{}, opts ivl.SeqIntervalOpts, stickiness ivl.Stickiness) (*ivl.Interval, error) {
	if err := lc.checkRangeLabels(props); err != nil {
		return nil, err
	}

	var iv *ivl.Interval
	var err error
	switch lc.Helpers.Kind {
	case ivl.Numeric:
		iv = ivl.NewNumeric(int64(start.Offset), int64(end.Offset), typ, props, stickiness)
	default:
		iv, err = ivl.NewSequence(lc.Label, *start, *end, lc.Client, typ, opts, stickiness)
		if err != nil {
			return nil, err
		}
		for k, v := range props {
			if k == ivl.ReservedRangeLabels {
				continue
			}
			iv.Properties[k] = v
		}
	}

	id, _ := iv.Properties[ivl.ReservedIntervalID].(string)
	if id == "" {
		id = uuid.New().String()
	}
	iv.SetID(id)

	lc.Indices.Add(iv)
	if lc.Helpers.Kind == ivl.Sequence {
		lc.installSlideListeners(iv)
	}
	return iv, nil
}

func (lc *LocalCollection) checkRangeLabels(props map[string]interface{}) error {
	raw, ok := props[ivl.ReservedRangeLabels]
	if !ok {
		return nil
	}
	labels, ok := raw.([]string)
	if !ok || len(labels) != 1 {
		log.Panicf("localcollection: rangeLabels must be a single-element []string, got %#v", raw)
	}
	if labels[0] != lc.Label {
		return fmt.Errorf("localcollection: interval's rangeLabels %q does not name this collection %q", labels[0], lc.Label)
	}
	return nil
}

// RemoveExistingInterval removes iv from every index and tears down its
// slide listeners.
func (lc *LocalCollection) RemoveExistingInterval(iv *ivl.Interval) {
	lc.Indices.Remove(iv)
	delete(lc.burst, iv.ID())
	if lc.Helpers.Kind == ivl.Sequence {
		iv.SeqStart.Release()
		iv.SeqEnd.Release()
	}
}

// ChangeInterval returns nil without calling iv.Modify when both newStart
// and newEnd are nil. Otherwise it calls iv.Modify and swaps the old
// interval out of every index for the new one, even if the new endpoints
// resolve to the same positions (spec.md §4.4).
func (lc *LocalCollection) ChangeInterval(iv *ivl.Interval, newStart, newEnd *seqmodel.SegOffset, isLocal bool, stickiness ivl.Stickiness) (*ivl.Interval, error) {
	if newStart == nil && newEnd == nil {
		return nil, nil
	}
	next, err := iv.Modify(lc.Client, newStart, newEnd, isLocal, stickiness)
	if err != nil {
		return nil, err
	}
	lc.Indices.Remove(iv)
	if lc.Helpers.Kind == ivl.Sequence {
		iv.SeqStart.Release()
		iv.SeqEnd.Release()
	}
	lc.Indices.Add(next)
	if lc.Helpers.Kind == ivl.Sequence {
		lc.installSlideListeners(next)
	}
	return next, nil
}

// installSlideListeners wires both endpoints' beforeSlide/afterSlide to
// a single shared handler pair per spec.md §4.4, so a merge-tree
// operation that moves both endpoints in one step is counted as a
// single burst. afterSlide calls must exactly balance beforeSlide calls;
// an unbalanced sequence is a fatal assertion (spec.md §4.4).
func (lc *LocalCollection) installSlideListeners(iv *ivl.Interval) {
	before := func(seqmodel.SegOffset) { lc.onBeforeSlide(iv) }
	after := func(seqmodel.SegOffset) { lc.onAfterSlide(iv) }
	iv.SeqStart.SlideProtocol(before, after)
	iv.SeqEnd.SlideProtocol(before, after)
}

func (lc *LocalCollection) onBeforeSlide(iv *ivl.Interval) {
	st, ok := lc.burst[iv.ID()]
	if !ok {
		prev, err := cloneForBurst(iv)
		if err != nil {
			log.Panicf("localcollection: cloning interval %s for slide burst: %v", iv.ID(), err)
		}
		st = &burstState{previous: prev}
		lc.burst[iv.ID()] = st
		lc.Indices.Remove(iv)
	}
	st.pending++
}

func (lc *LocalCollection) onAfterSlide(iv *ivl.Interval) {
	st, ok := lc.burst[iv.ID()]
	if !ok {
		log.Panicf("localcollection: afterSlide for %s with no matching beforeSlide", iv.ID())
	}
	st.pending--
	if st.pending < 0 {
		log.Panicf("localcollection: unbalanced slide protocol for interval %s", iv.ID())
	}
	if st.pending == 0 {
		delete(lc.burst, iv.ID())
		lc.Indices.Add(iv)
		if lc.OnPositionChange != nil {
			lc.OnPositionChange(iv, st.previous)
		}
	}
}

// cloneForBurst snapshots iv with both endpoint references cloned
// transiently on their old segments, for previousInterval event emission
// (spec.md §4.4).
func cloneForBurst(iv *ivl.Interval) (*ivl.Interval, error) {
	startClone, err := iv.SeqStart.Clone()
	if err != nil {
		return nil, err
	}
	endClone, err := iv.SeqEnd.Clone()
	if err != nil {
		return nil, err
	}
	cp := *iv
	cp.SeqStart = startClone
	cp.SeqEnd = endClone
	return &cp, nil
}

// Entry is a neutral, serialization-ready snapshot of one interval,
// produced by Serialize and consumed by package wire — kept here rather
// than in package wire to avoid a dependency cycle (wire imports
// localcollection, not the reverse).
type Entry struct {
	ID             string
	Start, End     int64
	SequenceNumber int64
	IntervalType   ivl.Type
	Properties     map[string]interface{}
	Stickiness     ivl.Stickiness
}

// Serialize returns every interval's current state as of seq, per
// spec.md §4.4 "serialize() -> SerializedCollectionV2".
func (lc *LocalCollection) Serialize(seq int64) []Entry {
	ivs := lc.Indices.ID.All()
	out := make([]Entry, 0, len(ivs))
	for _, iv := range ivs {
		out = append(out, Entry{
			ID:             iv.ID(),
			Start:          int64(iv.StartPos()),
			End:            int64(iv.EndPos()),
			SequenceNumber: seq,
			IntervalType:   iv.Type,
			Properties:     iv.Properties,
			Stickiness:     iv.Stickiness,
		})
	}
	return out
}

// EnsureSerializedID synthesizes a deterministic legacy id of the form
// "legacy{start}-{end}" for an inbound Entry that lacks one, so multiple
// sites deterministically agree on the id of an unlabeled incoming
// interval (spec.md §4.4). Writes it into Properties and returns it.
func (lc *LocalCollection) EnsureSerializedID(e *Entry) string {
	if e.ID != "" {
		return e.ID
	}
	id := fmt.Sprintf("legacy%d-%d", e.Start, e.End)
	e.ID = id
	if e.Properties == nil {
		e.Properties = map[string]interface{}{}
	}
	e.Properties[ivl.ReservedIntervalID] = id
	return id
}
