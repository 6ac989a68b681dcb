package session

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinalizeIsIdempotent(t *testing.T) {
	t.Parallel()

	a := New(DefaultConfig())
	for i := 0; i < 20; i++ {
		a.Push(Sample{TimestampMs: float64(i) * 500, Published: i%3 == 0, Held: i%3 != 0, BPM: 70 + float64(i%4), Confidence: 0.7})
	}
	first := a.Finalize()
	second := a.Finalize()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Finalize() mismatch (-first +second):\n%s", diff)
	}

	// Mutating an export does not leak into the aggregator.
	first.Samples[0].BPM = 999
	third := a.Finalize()
	assert.InDelta(t, 70, third.Samples[0].BPM, 1e-12)
}

func TestRangeExcludesSpike(t *testing.T) {
	t.Parallel()

	a := New(DefaultConfig())
	for i := 0; i < 100; i++ {
		a.Push(Sample{TimestampMs: float64(i) * 500, Published: true, BPM: 70 + 5*float64(i)/99})
	}
	a.Push(Sample{TimestampMs: 50_000, Published: true, BPM: 200})

	exp := a.Finalize()
	pub := exp.RangeBPM.Published
	require.NotNil(t, pub.Min)
	require.NotNil(t, pub.Max)
	assert.InDelta(t, 70, *pub.Min, 1e-9)
	assert.InDelta(t, 75, *pub.Max, 1e-9)
	assert.Equal(t, 100, pub.Count)
	assert.Equal(t, 1, pub.Excluded)

	assert.Equal(t, 101, exp.Session.SampleCount)
	assert.Equal(t, 0.0, exp.Session.StartMs)
	assert.Equal(t, 50_000.0, exp.Session.EndMs)
}

func TestRangeSeries(t *testing.T) {
	t.Parallel()

	a := New(DefaultConfig())
	a.Push(Sample{TimestampMs: 0, Reason: "streak"})
	a.Push(Sample{TimestampMs: 500, Published: true, BPM: 72})
	a.Push(Sample{TimestampMs: 1000, Held: true, BPM: 72, Reason: "hold_low_conf"})
	a.Push(Sample{TimestampMs: 1500, Held: true, BPM: 74, Reason: "hold_low_snr"})

	exp := a.Finalize()
	assert.Equal(t, 3, exp.RangeBPM.Hold.Count)
	assert.Equal(t, 74.0, *exp.RangeBPM.Hold.Max)
	assert.Equal(t, 1, exp.RangeBPM.Published.Count)
	assert.Equal(t, 72.0, *exp.RangeBPM.Published.Min)
}

func TestRobustRange(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		r := RobustRange(nil, 3)
		assert.Nil(t, r.Min)
		assert.Nil(t, r.Max)
		assert.Zero(t, r.Count)
	})

	t.Run("constant keeps everything", func(t *testing.T) {
		r := RobustRange([]float64{72, 72, 72}, 3)
		assert.Equal(t, 3, r.Count)
		assert.Equal(t, 72.0, *r.Min)
	})

	t.Run("zero MAD falls back to mean absolute deviation", func(t *testing.T) {
		// MAD is 0 with the majority at 72; mean absolute deviation is 5.
		vals := []float64{72, 72, 72, 72, 72, 72, 72, 72, 72, 122}
		r := RobustRange(vals, 3)
		assert.Equal(t, 9, r.Count)
		assert.Equal(t, 1, r.Excluded)
		assert.Equal(t, 72.0, *r.Max)
	})
}

func TestMaxSamples(t *testing.T) {
	t.Parallel()

	a := New(Config{MaxSamples: 3, MADCut: 3})
	for i := 0; i < 5; i++ {
		a.Push(Sample{TimestampMs: float64(i), Published: true, BPM: float64(60 + i)})
	}
	assert.Equal(t, 3, a.Len())
	exp := a.Finalize()
	assert.Equal(t, 62.0, exp.Samples[0].BPM)
	assert.Equal(t, 0.0, exp.Session.StartMs, "start survives trimming")

	a.SetConfig(Config{MaxSamples: 1, MADCut: 3})
	assert.Equal(t, 1, a.Len())

	a.Reset()
	assert.Zero(t, a.Len())
	assert.Empty(t, a.Finalize().Samples)
}

func TestExportJSONShape(t *testing.T) {
	t.Parallel()

	a := New(DefaultConfig())
	a.Push(Sample{TimestampMs: 1000, Published: true, BPM: 72, Reason: "ok"})
	raw, err := json.Marshal(a.Finalize())
	require.NoError(t, err)

	var doc map[string]map[string]any
	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Contains(t, generic, "samples")
	delete(generic, "samples")
	b, err := json.Marshal(generic)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &doc))

	assert.Equal(t, 1000.0, doc["session"]["start_ms"])
	assert.Equal(t, 1.0, doc["session"]["sample_count"])
	rng := doc["range_bpm"]
	assert.Contains(t, rng, "hold")
	assert.Contains(t, rng, "published")
	pub := rng["published"].(map[string]any)
	assert.Equal(t, 72.0, pub["min"])
	assert.Equal(t, 1.0, pub["count"])
	hold := rng["hold"].(map[string]any)
	assert.Equal(t, 72.0, hold["max"])
}
