package ivl

import "github.com/grailbio/intervalcollab/seqmodel"

// Helpers bundles the type-specific comparators and constructors a
// Collection needs (spec.md §3 Collection attributes: "helpers
// (type-specific comparators/constructors)"). All call sites that used
// to ask "is this a Sequence Interval?" dispatch through here instead,
// per spec.md §9's design note on replacing an inheritance hierarchy
// with explicit variant matches.
type Helpers struct {
	Kind Kind
}

// NumericHelpers and SequenceHelpers are the two concrete Helpers a
// Collection is constructed with.
var (
	NumericHelpers  = Helpers{Kind: Numeric}
	SequenceHelpers = Helpers{Kind: Sequence}
)

// CompareEnds/CompareStarts delegate to the package-level comparators;
// kept as methods so index construction can carry a single Helpers value
// around instead of a free function plus a client.
func (h Helpers) CompareEnds(client seqmodel.Client, a, b *Interval) int {
	return CompareEnds(client, a, b)
}

func (h Helpers) CompareStarts(client seqmodel.Client, a, b *Interval) int {
	return CompareStarts(client, a, b)
}

// NewProbe builds a Transient probe interval at (pos, pos) for
// previousInterval/nextInterval and range-query floor/ceil lookups
// (spec.md §4.3). force is the ForceCompare override: -1 for a low
// probe, +1 for a high probe, 0 for an exact-position probe. For
// Sequence helpers, client resolves pos down to a (segment, offset) so
// the probe's endpoints are real, comparable References; for Numeric
// helpers client is unused and may be nil.
func (h Helpers) NewProbe(client seqmodel.Client, pos int64, force int8) (*Interval, error) {
	if h.Kind == Numeric {
		iv := NewNumeric(pos, pos, TransientType, nil, StickyNone)
		iv.ForceCompare = force
		return iv, nil
	}
	at, err := client.GetContainingSegment(int(pos), nil)
	if err != nil {
		return nil, err
	}
	iv, err := NewSequence("", at, at, client, TransientType, SeqIntervalOpts{}, StickyNone)
	if err != nil {
		return nil, err
	}
	iv.ForceCompare = force
	return iv, nil
}
