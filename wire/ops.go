package wire

import "github.com/grailbio/intervalcollab/collection"

// OpHandler bundles the process/rebase pair spec.md §6 registers per op
// name. process applies an acknowledged op to collection's state;
// rebase recomputes a still-pending op's positions before resubmission
// on reconnect.
type OpHandler struct {
	Process func(c *collection.Collection, serialized collection.Serialized, local bool, op *collection.Op, localOpMetadata interface{}) error
	Rebase  func(c *collection.Collection, op collection.Op, localOpMetadata interface{}) (*collection.Serialized, error)
}

// Ops is the ops map of spec.md §6: three op handlers keyed by name.
// Delete's rebase is identity, since delete addresses its target purely
// by id and has no position to recompute.
var Ops = map[string]OpHandler{
	"add": {
		Process: func(c *collection.Collection, s collection.Serialized, local bool, op *collection.Op, metadata interface{}) error {
			return c.AckAdd(s, local, op, metadata)
		},
		Rebase: func(c *collection.Collection, op collection.Op, metadata interface{}) (*collection.Serialized, error) {
			return c.RebaseLocalInterval("add", op.Serialized, op.LocalSeq)
		},
	},
	"delete": {
		Process: func(c *collection.Collection, s collection.Serialized, local bool, op *collection.Op, metadata interface{}) error {
			return c.AckDelete(s, local, op)
		},
		Rebase: func(c *collection.Collection, op collection.Op, metadata interface{}) (*collection.Serialized, error) {
			return &op.Serialized, nil
		},
	},
	"change": {
		Process: func(c *collection.Collection, s collection.Serialized, local bool, op *collection.Op, metadata interface{}) error {
			return c.AckChange(s, local, op, metadata)
		},
		Rebase: func(c *collection.Collection, op collection.Op, metadata interface{}) (*collection.Serialized, error) {
			return c.RebaseLocalInterval("change", op.Serialized, op.LocalSeq)
		},
	},
}
