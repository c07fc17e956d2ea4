package collection_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grailbio/intervalcollab/collection"
	"github.com/grailbio/intervalcollab/internal/testseq"
	"github.com/grailbio/intervalcollab/ivl"
	"github.com/grailbio/intervalcollab/seqmodel"
	"github.com/grailbio/intervalcollab/wire"
)

// capture is a Submitter that just records ops for the test to replay.
type capture struct {
	ops []collection.Op
}

func (c *capture) Submit(op collection.Op) { c.ops = append(c.ops, op) }

func (c *capture) last() collection.Op { return c.ops[len(c.ops)-1] }

// hub relays every submitted op to every registered collection, local or
// remote, the way a sequencing service loops an op back to its sender as
// an ack and fans it out to everyone else.
type hub struct {
	members []*collection.Collection
}

func (h *hub) register(c *collection.Collection) { h.members = append(h.members, c) }

func (h *hub) broadcast(from *collection.Collection, op collection.Op) {
	handler := wire.Ops[op.Name]
	for _, c := range h.members {
		if err := handler.Process(c, op.Serialized, c == from, &op, nil); err != nil {
			panic(err)
		}
	}
}

// relaySubmitter routes a single collection's outbound ops through a hub.
type relaySubmitter struct {
	hub  *hub
	self func() *collection.Collection
}

func (r relaySubmitter) Submit(op collection.Op) { r.hub.broadcast(r.self(), op) }

// TestBasicSlideConvergesAcrossClients adapts the "basic slide" scenario
// (spec.md §8 scenario 1): two clients share a document, one adds a
// sequence interval, both ack it, then removes text preceding the
// interval's end so the end reference renumbers and, after the
// intervening segment is literally excised, both sides converge on the
// same resolved span.
func TestBasicSlideConvergesAcrossClients(t *testing.T) {
	doc := testseq.NewDocument()
	doc.InsertText("ABCD")

	var a, b *collection.Collection
	h := &hub{}
	a = collection.New("demo", doc.NewClient("a"), ivl.SequenceHelpers, collection.Options{IntervalStickinessEnabled: true}, relaySubmitter{h, func() *collection.Collection { return a }})
	b = collection.New("demo", doc.NewClient("b"), ivl.SequenceHelpers, collection.Options{IntervalStickinessEnabled: true}, relaySubmitter{h, func() *collection.Collection { return b }})
	h.register(a)
	h.register(b)

	iv, err := a.Add(1, 3, ivl.Simple, nil, ivl.StickyEnd)
	require.NoError(t, err)
	id := iv.ID()

	require.NoError(t, doc.RemoveRange(2, 3)) // removes 'C'

	gotA, ok := a.GetIntervalByID(id)
	require.True(t, ok)
	gotB, ok := b.GetIntervalByID(id)
	require.True(t, ok)

	require.Equal(t, seqmodel.Pos(1), gotA.StartPos())
	require.Equal(t, seqmodel.Pos(2), gotA.EndPos())
	require.Equal(t, gotA.StartPos(), gotB.StartPos())
	require.Equal(t, gotA.EndPos(), gotB.EndPos())
}

// TestDetachedIntervalResolvesToSentinel adapts the "detached interval"
// scenario (spec.md §8 scenario 2): once every segment an interval's
// endpoints anchor to has been removed, both endpoints resolve to the
// detached sentinel and the interval drops out of overlap queries.
func TestDetachedIntervalResolvesToSentinel(t *testing.T) {
	doc := testseq.NewDocument()
	doc.InsertText("ABCDEFGH")

	client := doc.NewClient("a")
	sub := &capture{}
	c := collection.New("demo", client, ivl.SequenceHelpers, collection.Options{IntervalStickinessEnabled: true}, sub)

	iv, err := c.Add(1, 3, ivl.Simple, nil, ivl.StickyEnd)
	require.NoError(t, err)
	id := iv.ID()

	// A second interval anchored well clear of the removed range stays
	// live, so the query below actually reaches the tree instead of
	// being rejected by FindOverlapping's start<=0 guard.
	live, err := c.Add(6, 8, ivl.Simple, nil, ivl.StickyEnd)
	require.NoError(t, err)
	liveID := live.ID()

	require.NoError(t, doc.RemoveRange(0, 4)) // removes 'ABCD', detaching iv's anchors

	got, ok := c.GetIntervalByID(id)
	require.True(t, ok)
	require.True(t, got.StartPos().IsDetached())
	require.True(t, got.EndPos().IsDetached())

	hits := c.FindOverlapping(1, 100)
	foundLive := false
	for _, hit := range hits {
		require.NotEqual(t, id, hit.ID(), "a detached interval must never surface in FindOverlapping")
		if hit.ID() == liveID {
			foundLive = true
		}
	}
	require.True(t, foundLive, "a live interval within the query range must still be found")
}

// TestChangeRemoteIgnoredWhilePendingLocal adapts the "concurrent change
// wins local" scenario (spec.md §8 scenario 3, §5 ordering guarantee 3):
// while a local change for an endpoint is pending ack, an inbound remote
// change for that same endpoint is dropped rather than applied.
func TestChangeRemoteIgnoredWhilePendingLocal(t *testing.T) {
	doc := testseq.NewDocument()
	client := doc.NewClient("a")
	sub := &capture{}
	c := collection.New("demo", client, ivl.NumericHelpers, collection.Options{}, sub)

	iv, err := c.Add(0, 0, ivl.Simple, nil, ivl.StickyEnd)
	require.NoError(t, err)
	id := iv.ID()

	two := int64(2)
	next, err := c.Change(id, &two, &two)
	require.NoError(t, err)
	require.Equal(t, seqmodel.Pos(2), next.StartPos())
	localOp := sub.last()

	one := int64(1)
	remote := collection.Serialized{ID: id, Start: &one, End: &one, SequenceNumber: 7}
	require.NoError(t, wire.Ops["change"].Process(c, remote, false, &collection.Op{Name: "change", Serialized: remote}, nil))

	got, ok := c.GetIntervalByID(id)
	require.True(t, ok)
	require.Equal(t, seqmodel.Pos(2), got.StartPos(), "remote change must not override a pending local change")

	require.NoError(t, wire.Ops["change"].Process(c, localOp.Serialized, true, &localOp, nil))
	got, ok = c.GetIntervalByID(id)
	require.True(t, ok)
	require.Equal(t, seqmodel.Pos(2), got.StartPos())
}

// TestCoherenceAcrossConcurrentSlidesThenRemoval adapts the "coherence
// probe" scenario (spec.md §8 scenario 4): two overlapping intervals
// whose start endpoints all live inside a removed range slide to the
// same surviving character, and removing one of them afterward leaves
// the indices coherent for the one that remains.
func TestCoherenceAcrossConcurrentSlidesThenRemoval(t *testing.T) {
	doc := testseq.NewDocument()
	client := doc.NewClient("a")
	doc.InsertText("ABCDEFG")

	sub := &capture{}
	c := collection.New("demo", client, ivl.SequenceHelpers, collection.Options{IntervalStickinessEnabled: true}, sub)

	iv1, err := c.Add(1, 6, ivl.Simple, nil, ivl.StickyEnd)
	require.NoError(t, err)
	require.NoError(t, wire.Ops["add"].Process(c, sub.last().Serialized, true, &sub.ops[0], nil))

	iv2, err := c.Add(2, 5, ivl.Simple, nil, ivl.StickyEnd)
	require.NoError(t, err)
	require.NoError(t, wire.Ops["add"].Process(c, sub.last().Serialized, true, &sub.ops[1], nil))

	require.NoError(t, doc.RemoveRange(1, 4)) // removes 'B','C','D'

	got1, ok := c.GetIntervalByID(iv1.ID())
	require.True(t, ok)
	got2, ok := c.GetIntervalByID(iv2.ID())
	require.True(t, ok)
	require.Equal(t, seqmodel.Pos(1), got1.StartPos())
	require.Equal(t, seqmodel.Pos(1), got2.StartPos(), "both starts slid to the same surviving character")
	require.Equal(t, seqmodel.Pos(3), got1.EndPos())
	require.Equal(t, seqmodel.Pos(2), got2.EndPos())

	removed, ok := c.RemoveIntervalByID(iv2.ID())
	require.True(t, ok)
	require.Equal(t, iv2.ID(), removed.ID())

	_, ok = c.GetIntervalByID(iv2.ID())
	require.False(t, ok)

	overlapping := c.FindOverlapping(1, 3)
	require.Len(t, overlapping, 1)
	require.Equal(t, iv1.ID(), overlapping[0].ID())

	stillThere, ok := c.GetIntervalByID(iv1.ID())
	require.True(t, ok)
	require.Equal(t, seqmodel.Pos(1), stillThere.StartPos())
	require.Equal(t, seqmodel.Pos(3), stillThere.EndPos())
}

// TestRebaseLocalIntervalRecomputesPendingChangeQueueHead exercises the
// live (non-detached) branch of interval rebase (spec.md §4.6): given a
// still-pending local change, rebasing it against current sequence state
// recomputes its endpoints and replaces the queued entry in place.
func TestRebaseLocalIntervalRecomputesPendingChangeQueueHead(t *testing.T) {
	doc := testseq.NewDocument()
	client := doc.NewClient("a")
	doc.InsertText("ABCDEFGH")

	sub := &capture{}
	c := collection.New("demo", client, ivl.SequenceHelpers, collection.Options{IntervalStickinessEnabled: true}, sub)

	iv, err := c.Add(2, 5, ivl.Simple, nil, ivl.StickyEnd)
	require.NoError(t, err)
	require.NoError(t, wire.Ops["add"].Process(c, sub.last().Serialized, true, &sub.ops[0], nil))

	six := int64(6)
	_, err = c.Change(iv.ID(), nil, &six)
	require.NoError(t, err)
	changeOp := sub.last()

	rebased, err := c.RebaseLocalInterval("change", changeOp.Serialized, changeOp.LocalSeq)
	require.NoError(t, err)
	require.NotNil(t, rebased)
	require.Equal(t, six, *rebased.End)

	got, ok := c.GetIntervalByID(iv.ID())
	require.True(t, ok)
	require.Equal(t, seqmodel.Pos(6), got.EndPos())
}
