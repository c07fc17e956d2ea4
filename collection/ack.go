package collection

import (
	"strconv"

	"github.com/grailbio/base/log"

	"github.com/grailbio/intervalcollab/ivl"
	"github.com/grailbio/intervalcollab/position"
	"github.com/grailbio/intervalcollab/seqmodel"
)

// AckAdd processes the acknowledgement of an "add" op (spec.md §4.5). If
// local, it consumes the recorded local-seq entry and promotes the new
// interval's StayOnRemove endpoints via ackInterval. If remote, it
// synthesizes a legacy id when absent and inserts the interval born
// SlideOnRemove.
func (c *Collection) AckAdd(serialized Serialized, local bool, op *Op, metadata interface{}) error {
	if local {
		delete(c.localSeqToSerialized, op.LocalSeq)
		iv, ok := c.lc.Indices.ID.Get(serialized.ID)
		if !ok {
			log.Error.Printf("collection: local ackAdd for unknown id %q", serialized.ID)
			return nil
		}
		return c.ackInterval(iv, op)
	}

	id := c.ensureSerializedID(&serialized)
	startAt, err := c.posToSegOffset(derefOr(serialized.Start, 0))
	if err != nil {
		return err
	}
	endAt, err := c.posToSegOffset(derefOr(serialized.End, 0))
	if err != nil {
		return err
	}
	props := cloneWithID(serialized.Properties, id)
	iv, err := c.lc.AddInterval(&startAt, &endAt, serialized.IntervalType, props, ivl.SeqIntervalOpts{FromAckedOp: true}, serialized.Stickiness)
	if err != nil {
		return err
	}
	c.fireAdd(iv, false, op)
	return nil
}

// AckChange processes the acknowledgement of a "change" op (spec.md
// §4.5). If local, it consumes the local-seq and the matching
// pending-change queue entries (a mismatch is fatal), acks the property
// manager, then promotes via ackInterval. If remote, each endpoint with
// an outstanding local pending change is ignored (local wins); the rest
// are applied via LocalCollection.ChangeInterval, and the property delta
// is applied at the op's sequence number.
func (c *Collection) AckChange(serialized Serialized, local bool, op *Op, metadata interface{}) error {
	props := stripReservedID(serialized.Properties)

	if local {
		delete(c.localSeqToSerialized, op.LocalSeq)
		if serialized.Start != nil {
			popPendingEndpoint(c.pendingChangesStart, serialized.ID, *serialized.Start)
		}
		if serialized.End != nil {
			popPendingEndpoint(c.pendingChangesEnd, serialized.ID, *serialized.End)
		}
		iv, ok := c.lc.Indices.ID.Get(serialized.ID)
		if !ok {
			log.Error.Printf("collection: local ackChange for unknown id %q", serialized.ID)
			return nil
		}
		iv.PropManager.AckPendingProperties(props, serialized.SequenceNumber)
		return c.ackInterval(iv, op)
	}

	iv, ok := c.lc.Indices.ID.Get(serialized.ID)
	if !ok {
		return nil
	}

	var newStart, newEnd *seqmodel.SegOffset
	if serialized.Start != nil && len(c.pendingChangesStart[serialized.ID]) == 0 {
		at, err := c.posToSegOffset(*serialized.Start)
		if err != nil {
			return err
		}
		newStart = &at
	}
	if serialized.End != nil && len(c.pendingChangesEnd[serialized.ID]) == 0 {
		at, err := c.posToSegOffset(*serialized.End)
		if err != nil {
			return err
		}
		newEnd = &at
	}

	next, err := c.lc.ChangeInterval(iv, newStart, newEnd, false, iv.Stickiness)
	if err != nil {
		return err
	}

	target := iv
	if next != nil {
		target = next
	}
	changed := iv.PropManager.Apply(target.Properties, props, serialized.SequenceNumber, false)

	if next != nil {
		c.fireChange(next, iv, false, op, false)
	}
	c.fireProperty(target, changed, false, op)
	return nil
}

// AckDelete processes the acknowledgement of a "delete" op (spec.md
// §4.5). Local acks are no-ops (the removal already applied on submit).
// Remote acks look the interval up by id and remove it if present.
func (c *Collection) AckDelete(serialized Serialized, local bool, op *Op) error {
	if local {
		return nil
	}
	iv, ok := c.lc.Indices.ID.Get(serialized.ID)
	if !ok {
		return nil
	}
	c.lc.RemoveExistingInterval(iv)
	c.fireDelete(iv, false, op)
	return nil
}

// ackInterval implements ack-slide promotion (spec.md §4.5): only
// Sequence Intervals with at least one StayOnRemove endpoint are
// affected. Each endpoint lacking a pending change is promoted to
// SlideOnRemove and its slide-to target computed via GetSlideToSegment.
// If either endpoint's target segment differs from its current one, the
// old interval is cloned for event emission, the references rebuilt on
// the new segments, and changeInterval fires with local=true, slide=true.
func (c *Collection) ackInterval(iv *ivl.Interval, op *Op) error {
	if iv == nil || iv.Kind != ivl.Sequence {
		return nil
	}
	if !iv.SeqStart.IsStayOnRemove() && !iv.SeqEnd.IsStayOnRemove() {
		return nil
	}

	hasPendingStart := len(c.pendingChangesStart[iv.ID()]) > 0
	hasPendingEnd := len(c.pendingChangesEnd[iv.ID()]) > 0

	var newStart, newEnd *seqmodel.SegOffset
	moved := false

	if iv.SeqStart.IsStayOnRemove() && !hasPendingStart {
		target, didMove, err := c.slideTarget(iv.SeqStart)
		if err != nil {
			return err
		}
		iv.SeqStart.PromoteToSlideOnRemove()
		if didMove {
			newStart = &target
			moved = true
		}
	}
	if iv.SeqEnd.IsStayOnRemove() && !hasPendingEnd {
		target, didMove, err := c.slideTarget(iv.SeqEnd)
		if err != nil {
			return err
		}
		iv.SeqEnd.PromoteToSlideOnRemove()
		if didMove {
			newEnd = &target
			moved = true
		}
	}
	if !moved {
		return nil
	}

	prev, err := cloneForEvent(iv)
	if err != nil {
		return err
	}
	next, err := c.lc.ChangeInterval(iv, newStart, newEnd, false, iv.Stickiness)
	if err != nil {
		return err
	}
	if next == nil {
		next = iv
	}
	c.fireChange(next, prev, true, op, true)
	return nil
}

// slideTarget reads ref's current raw anchor (segment, offset) — which
// remains valid even if that segment is dead and ref hasn't slid yet —
// and asks the sequence CRDT where it belongs now, reporting whether
// the two differ.
func (c *Collection) slideTarget(ref *position.Reference) (at seqmodel.SegOffset, moved bool, err error) {
	current := ref.Anchor()
	target, err := c.client.GetSlideToSegment(current)
	if err != nil {
		return seqmodel.SegOffset{}, false, err
	}
	if target.Segment == nil || current.Segment == nil {
		return target, target.Segment != current.Segment, nil
	}
	return target, target.Segment.ID() != current.Segment.ID() || target.Offset != current.Offset, nil
}

// ensureSerializedID synthesizes a deterministic "legacy{start}-{end}"
// id for an inbound Serialized lacking one (spec.md §4.4/§4.5).
func (c *Collection) ensureSerializedID(s *Serialized) string {
	if s.ID != "" {
		return s.ID
	}
	s.ID = legacyID(derefOr(s.Start, 0), derefOr(s.End, 0))
	return s.ID
}

func legacyID(start, end int64) string {
	return "legacy" + strconv.FormatInt(start, 10) + "-" + strconv.FormatInt(end, 10)
}

func derefOr(p *int64, fallback int64) int64 {
	if p == nil {
		return fallback
	}
	return *p
}

func stripReservedID(props map[string]interface{}) map[string]interface{} {
	if props == nil {
		return nil
	}
	out := make(map[string]interface{}, len(props))
	for k, v := range props {
		if k == ivl.ReservedIntervalID {
			continue
		}
		out[k] = v
	}
	return out
}

// cloneWithID copies props and sets the reserved id property to id. An
// empty id (e.g. localcollection.Entry.ID after a JSON round trip, which
// UnmarshalJSON never populates) leaves whatever reserved id property is
// already in props untouched rather than clobbering it with "".
func cloneWithID(props map[string]interface{}, id string) map[string]interface{} {
	out := make(map[string]interface{}, len(props)+1)
	for k, v := range props {
		out[k] = v
	}
	if id != "" {
		out[ivl.ReservedIntervalID] = id
	}
	return out
}

func popPendingEndpoint(queues map[string][]pendingEndpoint, id string, value int64) {
	q := queues[id]
	if len(q) == 0 {
		log.Panicf("collection: ackChange for %s with no pending entry for value %d", id, value)
	}
	head := q[0]
	if head.value != value {
		log.Panicf("collection: ackChange for %s: pending queue head %d does not match acked value %d", id, head.value, value)
	}
	queues[id] = q[1:]
	if len(queues[id]) == 0 {
		delete(queues, id)
	}
}
