package ivl

import (
	"strings"

	"github.com/grailbio/intervalcollab/position"
	"github.com/grailbio/intervalcollab/seqmodel"
)

// CompareEnds orders two intervals by end position with the two
// tie-breakers spec.md §4.3 requires of the endpoint-ordered indices: the
// ForceCompare override, then id lexicographic order.
func CompareEnds(client seqmodel.Client, a, b *Interval) int {
	if c := comparePos(client, a.endCompareKey(), b.endCompareKey(), a.Kind); c != 0 {
		return c
	}
	return tieBreak(a, b)
}

// CompareStarts is CompareEnds' mirror for the startpoint-ordered index.
func CompareStarts(client seqmodel.Client, a, b *Interval) int {
	if c := comparePos(client, a.startCompareKey(), b.startCompareKey(), a.Kind); c != 0 {
		return c
	}
	return tieBreak(a, b)
}

// endCompareKey/startCompareKey return either a numeric position or a
// *position.Reference, depending on Kind, for comparePos to dispatch on.
func (iv *Interval) endCompareKey() interface{} {
	if iv.Kind == Numeric {
		return iv.NumEnd
	}
	return iv.SeqEnd
}

func (iv *Interval) startCompareKey() interface{} {
	if iv.Kind == Numeric {
		return iv.NumStart
	}
	return iv.SeqStart
}

func comparePos(client seqmodel.Client, a, b interface{}, kind Kind) int {
	if kind == Numeric {
		an, bn := a.(int64), b.(int64)
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	}
	// Sequence endpoints compare via the client's stable total order on
	// the underlying seqmodel.Reference.
	ar, br := a.(*position.Reference), b.(*position.Reference)
	return client.Compare(ar.Raw(), br.Raw())
}

func tieBreak(a, b *Interval) int {
	if a.ForceCompare != 0 || b.ForceCompare != 0 {
		// A probe interval precedes or follows every real interval with
		// an equal endpoint, regardless of id.
		if a.ForceCompare != b.ForceCompare {
			return int(a.ForceCompare) - int(b.ForceCompare)
		}
		return 0
	}
	return strings.Compare(a.id, b.id)
}
