package wire_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grailbio/intervalcollab/collection"
	"github.com/grailbio/intervalcollab/internal/testseq"
	"github.com/grailbio/intervalcollab/ivl"
	"github.com/grailbio/intervalcollab/localcollection"
	"github.com/grailbio/intervalcollab/wire"
)

type noopSubmitter struct{}

func (noopSubmitter) Submit(collection.Op) {}

func TestSerializedCollectionV2RoundTrip(t *testing.T) {
	// The V2 tuple has no dedicated id column: a real Entry's Properties
	// already carries intervalId (ivl.SetID writes it), so that's how an
	// id survives the round trip, not a top-level Entry.ID field.
	in := wire.SerializedCollectionV2{
		Label:   "demo",
		Version: 2,
		Intervals: []localcollection.Entry{
			{
				Start:          1,
				End:            5,
				SequenceNumber: 3,
				IntervalType:   ivl.Simple,
				Properties:     map[string]interface{}{"foo": "bar", ivl.ReservedIntervalID: "i1"},
				Stickiness:     ivl.StickyEnd,
			},
			{
				Start:          10,
				End:            10,
				SequenceNumber: 4,
				IntervalType:   ivl.Nest,
				Stickiness:     ivl.StickyFull,
			},
		},
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), `"intervals":[[`), "V2 wire shape is a tuple array, got %s", data)

	var out wire.SerializedCollectionV2
	require.NoError(t, json.Unmarshal(data, &out))

	require.Equal(t, "demo", out.Label)
	require.Equal(t, 2, out.Version)
	require.Len(t, out.Intervals, 2)
	require.Equal(t, in.Intervals[0].Start, out.Intervals[0].Start)
	require.Equal(t, in.Intervals[0].End, out.Intervals[0].End)
	require.Equal(t, in.Intervals[0].SequenceNumber, out.Intervals[0].SequenceNumber)
	require.Equal(t, in.Intervals[0].IntervalType, out.Intervals[0].IntervalType)
	require.Equal(t, in.Intervals[0].Stickiness, out.Intervals[0].Stickiness)
	require.Equal(t, "bar", out.Intervals[0].Properties["foo"])
	require.Equal(t, "i1", out.Intervals[0].Properties[ivl.ReservedIntervalID])
	require.Equal(t, in.Intervals[1].Stickiness, out.Intervals[1].Stickiness)
}

// TestV2OmitsDefaultStickiness checks spec.md §6's V2 compression rule:
// an interval with the default StickyEnd stickiness is serialized as a
// 5-element tuple, not a 6-element one carrying a redundant value.
func TestV2OmitsDefaultStickiness(t *testing.T) {
	def := wire.SerializedCollectionV2{
		Intervals: []localcollection.Entry{
			{Start: 1, End: 2, IntervalType: ivl.Simple, Stickiness: ivl.StickyEnd},
		},
	}
	data, err := json.Marshal(def)
	require.NoError(t, err)

	var raw struct {
		Intervals [][]interface{} `json:"intervals"`
	}
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw.Intervals[0], 5, "StickyEnd must be omitted from the wire tuple, got %v", raw.Intervals[0])

	nonDef := wire.SerializedCollectionV2{
		Intervals: []localcollection.Entry{
			{Start: 1, End: 2, IntervalType: ivl.Simple, Stickiness: ivl.StickyFull},
		},
	}
	data, err = json.Marshal(nonDef)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw.Intervals[0], 6, "non-default stickiness must stay on the wire, got %v", raw.Intervals[0])

	emptyData, err := json.Marshal(def)
	require.NoError(t, err)
	var roundTripped wire.SerializedCollectionV2
	require.NoError(t, json.Unmarshal(emptyData, &roundTripped))
	require.Equal(t, ivl.StickyEnd, roundTripped.Intervals[0].Stickiness, "an omitted sixth element must decode back to StickyEnd")
}

func newNumericCollection(t *testing.T) *collection.Collection {
	t.Helper()
	client := testseq.NewDocument().NewClient("a")
	return collection.New("demo", client, ivl.NumericHelpers, collection.Options{}, noopSubmitter{})
}

func TestStoreLoadRoundTripUncompressed(t *testing.T) {
	c := newNumericCollection(t)
	iv1, err := c.Add(1, 5, ivl.Simple, nil, ivl.StickyEnd)
	require.NoError(t, err)
	iv2, err := c.Add(10, 20, ivl.Simple, map[string]interface{}{"k": "v"}, ivl.StickyEnd)
	require.NoError(t, err)

	data, compressed, err := wire.Store(c, 9)
	require.NoError(t, err)
	require.False(t, compressed)

	loaded, err := wire.Load(data, compressed)
	require.NoError(t, err)
	require.Equal(t, "demo", loaded.Label)
	require.Len(t, loaded.Intervals, 2)

	// The V2 tuple carries no dedicated id column; a round-tripped
	// Entry's id only survives via its intervalId property.
	byID := map[string]localcollection.Entry{}
	for _, e := range loaded.Intervals {
		id, _ := e.Properties[ivl.ReservedIntervalID].(string)
		byID[id] = e
	}
	require.Equal(t, int64(1), byID[iv1.ID()].Start)
	require.Equal(t, int64(5), byID[iv1.ID()].End)
	require.Equal(t, int64(10), byID[iv2.ID()].Start)
	require.Equal(t, int64(20), byID[iv2.ID()].End)
	require.Equal(t, "v", byID[iv2.ID()].Properties["k"])
}

func TestStoreCompressesAboveThreshold(t *testing.T) {
	c := newNumericCollection(t)
	big := strings.Repeat("x", 200)
	for i := 0; i < 40; i++ {
		_, err := c.Add(int64(i+1), int64(i+2), ivl.Simple, map[string]interface{}{"blob": big}, ivl.StickyEnd)
		require.NoError(t, err)
	}

	data, compressed, err := wire.Store(c, 1)
	require.NoError(t, err)
	require.True(t, compressed)

	loaded, err := wire.Load(data, compressed)
	require.NoError(t, err)
	require.Len(t, loaded.Intervals, 40)
}

func TestValueFactoryLoadsSnapshotEntries(t *testing.T) {
	client := testseq.NewDocument().NewClient("a")
	snapshot := &wire.SerializedCollectionV2{
		Label:   "demo",
		Version: 2,
		Intervals: []localcollection.Entry{
			{ID: "i1", Start: 2, End: 8, SequenceNumber: 1, IntervalType: ivl.Simple, Stickiness: ivl.StickyEnd},
		},
	}

	c, err := wire.ValueFactory("demo", client, ivl.NumericHelpers, collection.Options{}, noopSubmitter{}, snapshot)
	require.NoError(t, err)

	got, ok := c.GetIntervalByID("i1")
	require.True(t, ok)
	require.Equal(t, int64(2), int64(got.StartPos()))
	require.Equal(t, int64(8), int64(got.EndPos()))
}
