package testseq

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grailbio/intervalcollab/seqmodel"
)

func TestInsertAndResolve(t *testing.T) {
	doc := NewDocument()
	client := doc.NewClient("a")

	pos, seg := doc.InsertText("ABCD")
	require.Equal(t, 0, pos)

	at := seqmodel.SegOffset{Segment: seg, Offset: 1}
	ref, err := client.CreateLocalReferencePosition(at, seqmodel.RangeBegin|seqmodel.SlideOnRemove, seqmodel.Forward)
	require.NoError(t, err)
	require.Equal(t, seqmodel.Pos(1), client.Resolve(ref))
}

func TestRemoveRangeSlidesSlideOnRemoveForward(t *testing.T) {
	doc := NewDocument()
	client := doc.NewClient("a")
	_, seg := doc.InsertText("ABCD")

	at := seqmodel.SegOffset{Segment: seg, Offset: 2}
	var beforeCalls, afterCalls int
	ref, err := client.CreateLocalReferencePosition(at, seqmodel.RangeBegin|seqmodel.SlideOnRemove, seqmodel.Forward)
	require.NoError(t, err)
	ref.SetBeforeSlide(func(seqmodel.SegOffset) { beforeCalls++ })
	ref.SetAfterSlide(func(seqmodel.SegOffset) { afterCalls++ })

	require.NoError(t, doc.RemoveRange(1, 3))

	require.Equal(t, 1, beforeCalls)
	require.Equal(t, 1, afterCalls)
	require.Equal(t, seqmodel.Pos(1), client.Resolve(ref))
}

func TestRemoveRangeLeavesStayOnRemovePinned(t *testing.T) {
	doc := NewDocument()
	client := doc.NewClient("a")
	_, seg := doc.InsertText("ABCD")

	at := seqmodel.SegOffset{Segment: seg, Offset: 2}
	ref, err := client.CreateLocalReferencePosition(at, seqmodel.RangeBegin|seqmodel.StayOnRemove, seqmodel.Forward)
	require.NoError(t, err)

	require.NoError(t, doc.RemoveRange(1, 3))

	require.True(t, client.Resolve(ref).IsDetached())

	anchor := ref.Anchor()
	require.NotNil(t, anchor.Segment)

	slid, err := client.GetSlideToSegment(anchor)
	require.NoError(t, err)
	require.NotNil(t, slid.Segment)
}

func TestRemoveRangeEntireDocumentDetaches(t *testing.T) {
	doc := NewDocument()
	client := doc.NewClient("a")
	_, seg := doc.InsertText("AB")

	at := seqmodel.SegOffset{Segment: seg, Offset: 0}
	ref, err := client.CreateLocalReferencePosition(at, seqmodel.RangeBegin|seqmodel.SlideOnRemove, seqmodel.Forward)
	require.NoError(t, err)

	require.NoError(t, doc.RemoveRange(0, 2))
	require.True(t, client.Resolve(ref).IsDetached())
}

func TestFindReconnectionPosition(t *testing.T) {
	doc := NewDocument()
	client := doc.NewClient("a")
	_, seg := doc.InsertText("ABCDEF")

	pos, err := client.FindReconnectionPosition(seg, 0)
	require.NoError(t, err)
	require.Equal(t, 0, pos)

	require.NoError(t, doc.RemoveRange(0, 3))
	pos, err = client.FindReconnectionPosition(seg, 0)
	require.NoError(t, err)
	require.Equal(t, 0, pos)
}

func TestCompareStableUnderSlide(t *testing.T) {
	doc := NewDocument()
	client := doc.NewClient("a")
	_, seg := doc.InsertText("ABCDE")

	r1, err := client.CreateLocalReferencePosition(seqmodel.SegOffset{Segment: seg, Offset: 1}, seqmodel.RangeBegin|seqmodel.SlideOnRemove, seqmodel.Forward)
	require.NoError(t, err)
	r2, err := client.CreateLocalReferencePosition(seqmodel.SegOffset{Segment: seg, Offset: 3}, seqmodel.RangeEnd|seqmodel.SlideOnRemove, seqmodel.Backward)
	require.NoError(t, err)

	require.Equal(t, -1, client.Compare(r1, r2))
	require.NoError(t, doc.RemoveRange(0, 5))
	require.True(t, client.Resolve(r1).IsDetached())
	require.True(t, client.Resolve(r2).IsDetached())
	require.Equal(t, -1, client.Compare(r1, r2))
}
