package ivl

// ReservedIntervalID is the reserved property key holding an interval's
// stable id (spec.md §6). Immutable once set.
const ReservedIntervalID = "intervalId"

// ReservedRangeLabels is the reserved property key an endpoint's
// property bag carries so the endpoint can be located back to its owning
// collection (spec.md §4.2): an array of exactly one string.
const ReservedRangeLabels = "rangeLabels"

// PropertyManager tracks pending property annotations by sequence
// number, so a remote ack can tell whether a given key's value already
// reflects a later local change (spec.md §3 Interval attributes,
// §4.5 changeProperties/ackChange).
//
// Unassigned marks a pending change with no sequence number yet (the op
// hasn't been acked), mirroring how pendingChangesStart/End track
// not-yet-acked endpoint changes.
const Unassigned int64 = -1

type pendingProp struct {
	value interface{}
	seq   int64
}

// PropertyManager is not safe for concurrent use; the interval engine is
// single-threaded cooperatively (spec.md §5).
type PropertyManager struct {
	pending map[string][]pendingProp
}

// NewPropertyManager returns an empty manager.
func NewPropertyManager() *PropertyManager {
	return &PropertyManager{pending: make(map[string][]pendingProp)}
}

// Clone deep-copies the manager's pending queues, for Interval.modify's
// "properties and property-manager state are copied" rule (spec.md
// §4.2).
func (pm *PropertyManager) Clone() *PropertyManager {
	out := NewPropertyManager()
	for k, vs := range pm.pending {
		cp := make([]pendingProp, len(vs))
		copy(cp, vs)
		out.pending[k] = cp
	}
	return out
}

// AddPending records a locally proposed property value for key at seq
// (Unassigned if not yet submitted).
func (pm *PropertyManager) AddPending(key string, value interface{}, seq int64) {
	pm.pending[key] = append(pm.pending[key], pendingProp{value: value, seq: seq})
}

// HasPending reports whether key has any not-yet-acked local value.
func (pm *PropertyManager) HasPending(key string) bool {
	return len(pm.pending[key]) > 0
}

// AckPendingProperties matches the head of each key's pending queue
// against the delta being acknowledged and drops it; mismatches are not
// fatal here (unlike endpoint pending-change queues) since a property
// set op only ever touches keys it names.
func (pm *PropertyManager) AckPendingProperties(delta map[string]interface{}, seq int64) {
	for k := range delta {
		q := pm.pending[k]
		if len(q) == 0 {
			continue
		}
		q[0].seq = seq
		pm.pending[k] = q[1:]
		if len(pm.pending[k]) == 0 {
			delete(pm.pending, k)
		}
	}
}

// Apply writes delta into props at sequence number seq, skipping any key
// that has a pending local value still outstanding — local changes win
// over remote ones for the same key until acked (spec.md §4.5 ackChange,
// generalized from endpoints to properties).
func (pm *PropertyManager) Apply(props map[string]interface{}, delta map[string]interface{}, seq int64, local bool) (changed map[string]interface{}) {
	changed = make(map[string]interface{})
	for k, v := range delta {
		if !local && pm.HasPending(k) {
			continue
		}
		props[k] = v
		changed[k] = v
	}
	return changed
}
