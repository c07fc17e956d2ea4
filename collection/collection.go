// Package collection implements Collection (spec.md §4.5), the public
// surface over a LocalCollection: submission of local ops, the
// add/change/remove/changeProperties entry points, and the observable
// event stream.
package collection

import (
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"

	"github.com/grailbio/intervalcollab/errdefs"
	"github.com/grailbio/intervalcollab/index"
	"github.com/grailbio/intervalcollab/ivl"
	"github.com/grailbio/intervalcollab/localcollection"
	"github.com/grailbio/intervalcollab/seqmodel"
)

// Options gates the feature-flagged parts of the add contract (spec.md
// §4.5).
type Options struct {
	// IntervalStickinessEnabled, when false, rejects any add() stickiness
	// other than ivl.StickyEnd.
	IntervalStickinessEnabled bool
}

// Op is an outbound collaborative operation, handed to Submitter for
// transport to other clients. Name is "add", "delete", or "change".
type Op struct {
	Name       string
	Serialized Serialized
	LocalSeq   int64
}

// Serialized is the wire delta for a single op: a start/end position pair
// where either may be nil ("undefined", left unchanged), plus the
// properties named by the op.
type Serialized struct {
	ID             string
	Start, End     *int64
	SequenceNumber int64
	IntervalType   ivl.Type
	Properties     map[string]interface{}
	Stickiness     ivl.Stickiness
}

// Submitter sends an outbound op to the rest of the collaborative
// session. Tests and the demo CLI supply an in-memory implementation
// that loops ops back through Collection.Ack* on every connected client.
type Submitter interface {
	Submit(op Op)
}

type pendingEndpoint struct {
	localSeq int64
	value    int64
}

// Collection is the public, single-client-facing half of spec.md §4.5: a
// LocalCollection plus the op-submission and acknowledgement state
// machine CREATED(StayOnRemove) -> PENDING -> COMMITTED(SlideOnRemove).
type Collection struct {
	label   string
	client  seqmodel.Client
	helpers ivl.Helpers
	opts    Options
	submit  Submitter
	lc      *localcollection.LocalCollection

	localSeqToSerialized map[int64]Serialized
	pendingChangesStart   map[string][]pendingEndpoint
	pendingChangesEnd     map[string][]pendingEndpoint

	onAdd      []func(iv *ivl.Interval, local bool, op *Op)
	onDelete   []func(iv *ivl.Interval, local bool, op *Op)
	onChange   []func(iv, previous *ivl.Interval, local bool, op *Op, slide bool)
	onProperty []func(iv *ivl.Interval, deltas map[string]interface{}, local bool, op *Op)
}

// New returns an empty Collection labeled label, over client, using
// helpers for comparator/constructor dispatch, submitting outbound ops
// through submit.
func New(label string, client seqmodel.Client, helpers ivl.Helpers, opts Options, submit Submitter) *Collection {
	c := &Collection{
		label:                 label,
		client:                client,
		helpers:               helpers,
		opts:                  opts,
		submit:                submit,
		lc:                    localcollection.New(label, client, helpers),
		localSeqToSerialized:  make(map[int64]Serialized),
		pendingChangesStart:   make(map[string][]pendingEndpoint),
		pendingChangesEnd:     make(map[string][]pendingEndpoint),
	}
	c.lc.OnPositionChange = c.onLocalPositionChange
	return c
}

// onLocalPositionChange is LocalCollection's slide-burst callback,
// firing changeInterval for purely-local slide movement (not an ack
// event — those route through ackInterval instead, which calls
// lc.ChangeInterval directly and fires its own changeInterval event).
// Registered so externally-driven segment removals (not originating from
// this client's own ack) still surface as events.
func (c *Collection) onLocalPositionChange(iv, previous *ivl.Interval) {
	c.fireChange(iv, previous, false, nil, true)
}

// AttachIndex adds every existing interval to idx and registers it for
// future updates (spec.md §4.5).
func (c *Collection) AttachIndex(idx index.Index) {
	c.lc.Indices.AttachIndex(idx)
}

// DetachIndex unregisters idx; returns false if it was never attached.
func (c *Collection) DetachIndex(idx index.Index) bool {
	return c.lc.Indices.DetachIndex(idx)
}

// Label returns the collection's attachment label.
func (c *Collection) Label() string { return c.label }

// GetIntervalByID looks the interval up by its stable id.
func (c *Collection) GetIntervalByID(id string) (*ivl.Interval, bool) {
	return c.lc.Indices.ID.Get(id)
}

// FindOverlapping returns every interval overlapping [start,end], a
// convenience built on the overlap index (supplemental to spec.md,
// documented in SPEC_FULL.md).
func (c *Collection) FindOverlapping(start, end int64) []*ivl.Interval {
	return c.lc.Indices.Overlap.FindOverlapping(start, end)
}

// Iterator returns every interval currently in the collection, in no
// defined order (supplemental convenience, see SPEC_FULL.md); it does not
// walk the intervals in endpoint order.
func (c *Collection) Iterator() []*ivl.Interval {
	return c.lc.Indices.ID.All()
}

// LoadSnapshot rebuilds the collection's intervals from a prior
// Serialize (spec.md §4.4 serialize/§6 value factory): each entry is
// inserted born SlideOnRemove, as if already acknowledged, and no ops
// are submitted or addInterval events fired.
func (c *Collection) LoadSnapshot(entries []localcollection.Entry) error {
	for _, e := range entries {
		startAt, err := c.posToSegOffset(e.Start)
		if err != nil {
			return err
		}
		endAt, err := c.posToSegOffset(e.End)
		if err != nil {
			return err
		}
		props := cloneWithID(e.Properties, e.ID)
		if _, err := c.lc.AddInterval(&startAt, &endAt, e.IntervalType, props, ivl.SeqIntervalOpts{FromSnapshot: true}, e.Stickiness); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collection) posToSegOffset(pos int64) (seqmodel.SegOffset, error) {
	if c.helpers.Kind == ivl.Numeric {
		return seqmodel.SegOffset{Offset: int(pos)}, nil
	}
	return c.client.GetContainingSegment(int(pos), nil)
}

// Add builds a new local interval, submits an "add" op, and fires
// addInterval(local=true, op=nil) (spec.md §4.5).
func (c *Collection) Add(start, end int64, intervalType ivl.Type, props map[string]interface{}, stickiness ivl.Stickiness) (*ivl.Interval, error) {
	if intervalType == ivl.TransientType {
		return nil, errors.E(errdefs.Invalid, "collection.Add: Transient intervals cannot be added to a collection")
	}
	if !c.opts.IntervalStickinessEnabled && stickiness != ivl.StickyEnd {
		return nil, errors.E(errdefs.Invalid, "collection.Add: non-End stickiness requires IntervalStickinessEnabled")
	}

	startAt, err := c.posToSegOffset(start)
	if err != nil {
		return nil, err
	}
	endAt, err := c.posToSegOffset(end)
	if err != nil {
		return nil, err
	}

	iv, err := c.lc.AddInterval(&startAt, &endAt, intervalType, props, ivl.SeqIntervalOpts{}, stickiness)
	if err != nil {
		return nil, err
	}

	serialized := c.serializeFull(iv)
	localSeq := c.client.NextLocalSeq()
	c.localSeqToSerialized[localSeq] = serialized
	c.submitOp(Op{Name: "add", Serialized: serialized, LocalSeq: localSeq})

	c.fireAdd(iv, true, nil)
	return iv, nil
}

// RemoveIntervalByID removes the interval locally, submits a "delete"
// op, and fires deleteInterval (spec.md §4.5).
func (c *Collection) RemoveIntervalByID(id string) (*ivl.Interval, bool) {
	iv, ok := c.lc.Indices.ID.Get(id)
	if !ok {
		return nil, false
	}
	c.lc.RemoveExistingInterval(iv)

	c.submitOp(Op{Name: "delete", Serialized: c.serializeFull(iv)})
	c.fireDelete(iv, true, nil)
	return iv, true
}

// Change modifies an existing interval's start and/or end (either may be
// nil, meaning "leave unchanged"), submits a "change" op carrying only
// the changed endpoints, and fires changeInterval(local=true, slide=false)
// (spec.md §4.5).
func (c *Collection) Change(id string, start, end *int64) (*ivl.Interval, error) {
	iv, ok := c.lc.Indices.ID.Get(id)
	if !ok {
		return nil, errors.E(errdefs.NotFound, fmt.Sprintf("collection.Change: no interval with id %q", id))
	}

	var newStart, newEnd *seqmodel.SegOffset
	if start != nil {
		at, err := c.posToSegOffset(*start)
		if err != nil {
			return nil, err
		}
		newStart = &at
	}
	if end != nil {
		at, err := c.posToSegOffset(*end)
		if err != nil {
			return nil, err
		}
		newEnd = &at
	}

	next, err := c.lc.ChangeInterval(iv, newStart, newEnd, true, iv.Stickiness)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return nil, nil
	}

	delta := Serialized{ID: id, Start: start, End: end, Properties: map[string]interface{}{}}
	localSeq := c.client.NextLocalSeq()
	c.localSeqToSerialized[localSeq] = delta
	if start != nil {
		c.pendingChangesStart[id] = append(c.pendingChangesStart[id], pendingEndpoint{localSeq: localSeq, value: *start})
	}
	if end != nil {
		c.pendingChangesEnd[id] = append(c.pendingChangesEnd[id], pendingEndpoint{localSeq: localSeq, value: *end})
	}
	c.submitOp(Op{Name: "change", Serialized: delta, LocalSeq: localSeq})

	c.fireChange(next, iv, true, nil, false)
	return next, nil
}

// ChangeProperties merges props into the interval's property bag,
// tracks them as pending under an Unassigned sequence number, submits a
// "change" op with both endpoints left undefined, and fires
// propertyChanged (spec.md §4.5). Rejects an attempt to overwrite
// rangeLabels.
func (c *Collection) ChangeProperties(id string, props map[string]interface{}) error {
	if _, ok := props[ivl.ReservedRangeLabels]; ok {
		return errors.E(errdefs.Invalid, "collection.ChangeProperties: rangeLabels cannot be overwritten")
	}
	iv, ok := c.lc.Indices.ID.Get(id)
	if !ok {
		return errors.E(errdefs.NotFound, fmt.Sprintf("collection.ChangeProperties: no interval with id %q", id))
	}

	for k, v := range props {
		iv.PropManager.AddPending(k, v, ivl.Unassigned)
	}
	changed := iv.PropManager.Apply(iv.Properties, props, ivl.Unassigned, true)

	localSeq := c.client.NextLocalSeq()
	delta := Serialized{ID: id, Properties: props}
	c.localSeqToSerialized[localSeq] = delta
	c.submitOp(Op{Name: "change", Serialized: delta, LocalSeq: localSeq})

	c.fireProperty(iv, changed, true, nil)
	return nil
}

func (c *Collection) submitOp(op Op) {
	if c.submit == nil {
		log.Panicf("collection: Submitter is nil, cannot submit op %q", op.Name)
	}
	c.submit.Submit(op)
}

func (c *Collection) serializeFull(iv *ivl.Interval) Serialized {
	start := int64(iv.StartPos())
	end := int64(iv.EndPos())
	return Serialized{
		ID:             iv.ID(),
		Start:          &start,
		End:            &end,
		SequenceNumber: c.client.GetCurrentSeq(),
		IntervalType:   iv.Type,
		Properties:     iv.Properties,
		Stickiness:     iv.Stickiness,
	}
}

// --- event registry ---

func (c *Collection) OnAddInterval(fn func(iv *ivl.Interval, local bool, op *Op)) {
	c.onAdd = append(c.onAdd, fn)
}
func (c *Collection) OnDeleteInterval(fn func(iv *ivl.Interval, local bool, op *Op)) {
	c.onDelete = append(c.onDelete, fn)
}
func (c *Collection) OnChangeInterval(fn func(iv, previous *ivl.Interval, local bool, op *Op, slide bool)) {
	c.onChange = append(c.onChange, fn)
}
func (c *Collection) OnPropertyChanged(fn func(iv *ivl.Interval, deltas map[string]interface{}, local bool, op *Op)) {
	c.onProperty = append(c.onProperty, fn)
}

func (c *Collection) fireAdd(iv *ivl.Interval, local bool, op *Op) {
	for _, fn := range c.onAdd {
		fn(iv, local, op)
	}
}
func (c *Collection) fireDelete(iv *ivl.Interval, local bool, op *Op) {
	for _, fn := range c.onDelete {
		fn(iv, local, op)
	}
}
func (c *Collection) fireChange(iv, previous *ivl.Interval, local bool, op *Op, slide bool) {
	for _, fn := range c.onChange {
		fn(iv, previous, local, op, slide)
	}
}
func (c *Collection) fireProperty(iv *ivl.Interval, deltas map[string]interface{}, local bool, op *Op) {
	if len(deltas) == 0 {
		return
	}
	for _, fn := range c.onProperty {
		fn(iv, deltas, local, op)
	}
}

// cloneForEvent snapshots iv with Transient-cloned endpoint references,
// for previousInterval event emission (spec.md §4.5: "previousInterval's
// endpoint references are temporarily retyped to Transient before
// emission" — implemented here as a point-in-time clone rather than an
// in-place retype/restore, so the live interval's own references are
// never disturbed by event emission).
func cloneForEvent(iv *ivl.Interval) (*ivl.Interval, error) {
	if iv.Kind != ivl.Sequence {
		cp := *iv
		return &cp, nil
	}
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
