// Package wire implements the exposed value-type surface (spec.md §6):
// the serialized snapshot forms (V1, V2), a value factory and store
// function bridging a Collection to the outer container, and the ops
// map of process/rebase handlers for "add", "delete", "change".
package wire

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/grailbio/intervalcollab/collection"
	"github.com/grailbio/intervalcollab/ivl"
	"github.com/grailbio/intervalcollab/localcollection"
)

// compressThreshold gates gzip compression of a V2 snapshot: below this
// many bytes of uncompressed JSON, the size/CPU tradeoff favors sending
// it plain (spec.md §6 doesn't mandate a threshold; mirrors the
// teacher's klauspost/compress usage in encoding/fastq/downsample.go,
// applied here to snapshot payload rather than read data).
const compressThreshold = 4096

// V1Interval is one entry of the V1 inbound-compat form (spec.md §6):
// "an array of {sequenceNumber, start, end, intervalType, properties?,
// stickiness?}".
type V1Interval struct {
	SequenceNumber int64                  `json:"sequenceNumber"`
	Start          int64                  `json:"start"`
	End            int64                  `json:"end"`
	IntervalType   ivl.Type               `json:"intervalType"`
	Properties     map[string]interface{} `json:"properties,omitempty"`
	Stickiness     ivl.Stickiness         `json:"stickiness,omitempty"`
}

// SerializedCollectionV1 is the full V1 form: a bare array.
type SerializedCollectionV1 []V1Interval

// tupleV2 is one entry of the V2 form: [start, end, sequenceNumber,
// intervalType, properties, stickiness?] (spec.md §6). stickiness is
// trailing-optional: spec.md §6's V2 compression rule omits it whenever
// it equals StickyEnd, the default a reader must assume when the sixth
// element is absent.
type tupleV2 []interface{}

// SerializedCollectionV2 is the primary snapshot form (spec.md §6).
type SerializedCollectionV2 struct {
	Label     string
	Version   int
	Intervals []localcollection.Entry
}

// MarshalJSON renders a SerializedCollectionV2 as
// {label, version, intervals: [[start,end,seq,type,props,stickiness]]},
// matching spec.md §6's tuple-array wire shape.
func (s SerializedCollectionV2) MarshalJSON() ([]byte, error) {
	tuples := make([]tupleV2, len(s.Intervals))
	for i, e := range s.Intervals {
		t := tupleV2{e.Start, e.End, e.SequenceNumber, e.IntervalType, e.Properties}
		if e.Stickiness != ivl.StickyEnd {
			t = append(t, e.Stickiness)
		}
		tuples[i] = t
	}
	return json.Marshal(struct {
		Label     string    `json:"label"`
		Version   int       `json:"version"`
		Intervals []tupleV2 `json:"intervals"`
	}{Label: s.Label, Version: 2, Intervals: tuples})
}

// UnmarshalJSON parses the V2 tuple-array wire shape back into entries.
func (s *SerializedCollectionV2) UnmarshalJSON(data []byte) error {
	var raw struct {
		Label     string          `json:"label"`
		Version   int             `json:"version"`
		Intervals [][]interface{} `json:"intervals"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Label = raw.Label
	s.Version = raw.Version
	s.Intervals = make([]localcollection.Entry, len(raw.Intervals))
	for i, t := range raw.Intervals {
		e := localcollection.Entry{}
		if v, ok := numberAt(t, 0); ok {
			e.Start = v
		}
		if v, ok := numberAt(t, 1); ok {
			e.End = v
		}
		if v, ok := numberAt(t, 2); ok {
			e.SequenceNumber = v
		}
		if v, ok := numberAt(t, 3); ok {
			e.IntervalType = ivl.Type(v)
		}
		if len(t) > 4 {
			if props, ok := t[4].(map[string]interface{}); ok {
				e.Properties = props
			}
		}
		if v, ok := numberAt(t, 5); ok {
			e.Stickiness = ivl.Stickiness(v)
		} else {
			// Sixth element omitted means the compressed-default case
			// (spec.md §6 V2 compression: stickiness==StickyEnd is
			// dropped from the wire tuple entirely).
			e.Stickiness = ivl.StickyEnd
		}
		s.Intervals[i] = e
	}
	return nil
}

func numberAt(t []interface{}, i int) (int64, bool) {
	if i >= len(t) || t[i] == nil {
		return 0, false
	}
	f, ok := t[i].(float64)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

// Store produces a V2 snapshot from a live collection, compressing the
// payload above compressThreshold (spec.md §6 store function).
func Store(c *collection.Collection, seq int64) ([]byte, bool, error) {
	snapshot := SerializedCollectionV2{Label: c.Label(), Version: 2, Intervals: entries(c.Iterator(), seq)}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, false, err
	}
	if len(raw) < compressThreshold {
		return raw, false, nil
	}
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return nil, false, err
	}
	if err := w.Close(); err != nil {
		return nil, false, err
	}
	return buf.Bytes(), true, nil
}

// Load decodes a snapshot previously produced by Store, transparently
// decompressing if compressed is true.
func Load(data []byte, compressed bool) (SerializedCollectionV2, error) {
	var out SerializedCollectionV2
	if compressed {
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return out, err
		}
		defer r.Close()
		raw, err := io.ReadAll(r)
		if err != nil {
			return out, err
		}
		data = raw
	}
	err := json.Unmarshal(data, &out)
	return out, err
}

func entries(iv []*ivl.Interval, seq int64) []localcollection.Entry {
	out := make([]localcollection.Entry, 0, len(iv))
	for _, v := range iv {
		out = append(out, localcollection.Entry{
			ID:             v.ID(),
			Start:          int64(v.StartPos()),
			End:            int64(v.EndPos()),
			SequenceNumber: seq,
			IntervalType:   v.Type,
			Properties:     v.Properties,
			Stickiness:     v.Stickiness,
		})
	}
	return out
}
