package ivl

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grailbio/intervalcollab/internal/testseq"
	"github.com/grailbio/intervalcollab/seqmodel"
)

func TestNewNumericOverlaps(t *testing.T) {
	a := NewNumeric(1, 5, Simple, nil, StickyNone)
	b := NewNumeric(4, 8, Simple, nil, StickyNone)
	c := NewNumeric(6, 8, Simple, nil, StickyNone)

	require.True(t, a.Overlaps(nil, b))
	require.False(t, a.Overlaps(nil, c))
	require.Equal(t, seqmodel.Pos(1), a.StartPos())
	require.Equal(t, seqmodel.Pos(5), a.EndPos())
}

func TestNewSequenceStartsStayOnRemove(t *testing.T) {
	doc := testseq.NewDocument()
	client := doc.NewClient("a")
	_, seg := doc.InsertText("ABCDEFGH")

	start := seqmodel.SegOffset{Segment: seg, Offset: 1}
	end := seqmodel.SegOffset{Segment: seg, Offset: 5}
	iv, err := NewSequence("lbl", start, end, client, Simple, SeqIntervalOpts{}, StickyEnd)
	require.NoError(t, err)

	require.True(t, iv.SeqStart.IsStayOnRemove())
	require.True(t, iv.SeqEnd.IsStayOnRemove())
	require.Equal(t, seqmodel.Pos(1), iv.StartPos())
	require.Equal(t, seqmodel.Pos(5), iv.EndPos())
	require.Equal(t, []string{"lbl"}, iv.SeqStart.Properties()[ReservedRangeLabels])
}

func TestNewSequenceFromAckedOpStartsSlideOnRemove(t *testing.T) {
	doc := testseq.NewDocument()
	client := doc.NewClient("a")
	_, seg := doc.InsertText("ABCDEFGH")

	start := seqmodel.SegOffset{Segment: seg, Offset: 1}
	end := seqmodel.SegOffset{Segment: seg, Offset: 5}
	iv, err := NewSequence("lbl", start, end, client, Simple, SeqIntervalOpts{FromAckedOp: true}, StickyEnd)
	require.NoError(t, err)

	require.False(t, iv.SeqStart.IsStayOnRemove())
	require.True(t, iv.SeqStart.RefType().Has(seqmodel.SlideOnRemove))
}

func TestModifyNumericAllocatesNewInterval(t *testing.T) {
	iv := NewNumeric(1, 5, Simple, map[string]interface{}{"k": "v"}, StickyNone)
	newStart := &seqmodel.SegOffset{Offset: 2}
	next, err := iv.Modify(nil, newStart, nil, true, StickyNone)
	require.NoError(t, err)
	require.NotSame(t, iv, next)
	require.Equal(t, int64(2), next.NumStart)
	require.Equal(t, int64(5), next.NumEnd)
	require.Equal(t, "v", next.Properties["k"])
}

func TestModifySequenceCreatesFreshReferences(t *testing.T) {
	doc := testseq.NewDocument()
	client := doc.NewClient("a")
	_, seg := doc.InsertText("ABCDEFGH")

	start := seqmodel.SegOffset{Segment: seg, Offset: 1}
	end := seqmodel.SegOffset{Segment: seg, Offset: 5}
	iv, err := NewSequence("lbl", start, end, client, Simple, SeqIntervalOpts{FromAckedOp: true}, StickyEnd)
	require.NoError(t, err)
	iv.SetID("iv1")

	newStart := seqmodel.SegOffset{Segment: seg, Offset: 2}
	next, err := iv.Modify(client, &newStart, nil, false, StickyEnd)
	require.NoError(t, err)
	require.Equal(t, "iv1", next.ID())
	require.Equal(t, seqmodel.Pos(2), next.StartPos())
	require.Equal(t, seqmodel.Pos(5), next.EndPos())
	require.NotSame(t, iv.SeqStart, next.SeqStart)
	require.Same(t, iv.SeqEnd, next.SeqEnd)
}

func TestSetIDPanicsOnceFrozen(t *testing.T) {
	iv := NewNumeric(1, 5, Simple, nil, StickyNone)
	iv.SetID("x")
	iv.FreezeID()
	require.Panics(t, func() { iv.SetID("y") })
}

func TestHelpersNewProbeNumeric(t *testing.T) {
	iv, err := NumericHelpers.NewProbe(nil, 3, -1)
	require.NoError(t, err)
	require.True(t, iv.IsTransient())
	require.Equal(t, int8(-1), iv.ForceCompare)
}
