package wire

import (
	"github.com/grailbio/intervalcollab/collection"
	"github.com/grailbio/intervalcollab/ivl"
	"github.com/grailbio/intervalcollab/seqmodel"
)

// ValueFactory constructs a Collection from a serialized form (nil for
// a brand-new, empty collection) plus an op submitter, per spec.md §6
// "a value factory producing a Collection from a serialized form plus
// an op emitter".
func ValueFactory(label string, client seqmodel.Client, helpers ivl.Helpers, opts collection.Options, submit collection.Submitter, snapshot *SerializedCollectionV2) (*collection.Collection, error) {
	c := collection.New(label, client, helpers, opts, submit)
	if snapshot != nil {
		if err := c.LoadSnapshot(snapshot.Intervals); err != nil {
			return nil, err
		}
	}
	return c, nil
}
