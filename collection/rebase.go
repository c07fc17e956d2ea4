package collection

import (
	"github.com/pkg/errors"

	"github.com/grailbio/intervalcollab/seqmodel"
)

// RebaseLocalInterval recomputes a still-pending local op's endpoint
// positions against the current state of the sequence, on reconnect or
// normalize (spec.md §4.6 interval rebase). For each defined endpoint:
// look up the segment that contained it as of localSeq, slide that
// segment to its current location, and if it survived, add the
// segment's reconnection position to the in-segment offset. If either
// endpoint's segment is now detached, the op becomes a no-op and any
// local interval still referencing it is removed. Otherwise the rebased
// delta is returned and, if a local interval still exists, its state is
// updated to match what will be resubmitted.
func (c *Collection) RebaseLocalInterval(opName string, serialized Serialized, localSeq int64) (*Serialized, error) {
	newStart, startDetached, err := c.rebaseEndpoint(serialized.Start, localSeq)
	if err != nil {
		return nil, err
	}
	newEnd, endDetached, err := c.rebaseEndpoint(serialized.End, localSeq)
	if err != nil {
		return nil, err
	}

	if startDetached || endDetached {
		if iv, ok := c.lc.Indices.ID.Get(serialized.ID); ok {
			c.lc.RemoveExistingInterval(iv)
		}
		return nil, nil
	}

	rebased := serialized
	rebased.Start = newStart
	rebased.End = newEnd

	if opName == "change" {
		if newStart != nil {
			replaceQueueHead(c.pendingChangesStart, serialized.ID, localSeq, *newStart)
		}
		if newEnd != nil {
			replaceQueueHead(c.pendingChangesEnd, serialized.ID, localSeq, *newEnd)
		}
	}

	if iv, ok := c.lc.Indices.ID.Get(serialized.ID); ok {
		var segStart, segEnd *seqmodel.SegOffset
		if newStart != nil {
			at, err := c.posToSegOffset(*newStart)
			if err != nil {
				return nil, err
			}
			segStart = &at
		}
		if newEnd != nil {
			at, err := c.posToSegOffset(*newEnd)
			if err != nil {
				return nil, err
			}
			segEnd = &at
		}
		if _, err := c.lc.ChangeInterval(iv, segStart, segEnd, true, iv.Stickiness); err != nil {
			return nil, err
		}
	}

	return &rebased, nil
}

// rebaseEndpoint implements spec.md §4.6 step 1 for a single endpoint.
// detached reports whether the endpoint's segment no longer exists
// anywhere reachable (step 2: "the op becomes a no-op").
func (c *Collection) rebaseEndpoint(pos *int64, localSeq int64) (rebased *int64, detached bool, err error) {
	if pos == nil {
		return nil, false, nil
	}
	at, err := c.client.GetContainingSegment(int(*pos), &localSeq)
	if err != nil {
		return nil, false, errors.Wrapf(err, "rebase: GetContainingSegment(%d, %d)", *pos, localSeq)
	}
	target, err := c.client.GetSlideToSegment(at)
	if err != nil {
		return nil, false, errors.Wrap(err, "rebase: GetSlideToSegment")
	}
	if target.Segment == nil {
		return nil, true, nil
	}
	recPos, err := c.client.FindReconnectionPosition(target.Segment, localSeq)
	if err != nil {
		return nil, false, errors.Wrapf(err, "rebase: FindReconnectionPosition(localSeq=%d)", localSeq)
	}
	final := int64(recPos + target.Offset)
	return &final, false, nil
}

// replaceQueueHead finds the pending-change entry submitted under
// localSeq and overwrites its value with the rebased one (spec.md §4.6
// step 3: "if the op is change and the id has other pending changes,
// replace the old queued entry with the rebased one").
func replaceQueueHead(queues map[string][]pendingEndpoint, id string, localSeq, newValue int64) {
	q := queues[id]
	for i := range q {
		if q[i].localSeq == localSeq {
			q[i].value = newValue
			return
		}
	}
}
