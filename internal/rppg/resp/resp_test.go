package resp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pulse.report/internal/rppg/dsp"
)

func breathing(seconds, rate, hz float64) []float64 {
	x := make([]float64, int(seconds*rate)+1)
	for i := range x {
		x[i] = 150 + 2*math.Sin(2*math.Pi*hz*float64(i)/rate)
	}
	return x
}

func TestEstimateRate(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	for _, bpm := range []float64{9, 15, 24} {
		est := EstimateRate(breathing(20, 10, bpm/60), cfg)
		require.True(t, est.Valid)
		assert.InDelta(t, bpm, est.RateBPM, 1, "breaths %v", bpm)
		assert.GreaterOrEqual(t, est.Confidence, cfg.MinConfidence)
	}
}

func TestEstimateRateTooShort(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Estimate{}, EstimateRate(breathing(7, 10, 0.25), DefaultConfig()))
	assert.False(t, EstimateRate(make([]float64, 201), DefaultConfig()).Valid)
}

func TestEstimatorHoldsAndSmooths(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	var e Estimator

	r := e.Update(make([]float64, 201), cfg)
	assert.Zero(t, r.RateBPM)
	assert.False(t, r.Held)

	r = e.Update(breathing(20, 10, 0.25), cfg)
	require.False(t, r.Held)
	assert.InDelta(t, 15, r.RateBPM, 1)
	first := r.RateBPM

	r = e.Update(make([]float64, 201), cfg)
	assert.True(t, r.Held)
	assert.Equal(t, first, r.RateBPM)

	// The median ignores one stray confident reading.
	e.Update(breathing(20, 10, 0.25), cfg)
	r = e.Update(breathing(20, 10, 0.45), cfg)
	assert.InDelta(t, 15, r.RateBPM, 1)

	e.Reset()
	r = e.Update(make([]float64, 201), cfg)
	assert.Zero(t, r.RateBPM)
}

func TestCouple(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	wave := func(hz float64) dsp.Series {
		w := dsp.Series{StartMs: 0, RateHz: 10, Values: make([]float64, 201)}
		for i := range w.Values {
			w.Values[i] = math.Sin(2 * math.Pi * hz * float64(i) / 10)
		}
		return w
	}
	trace := func(bpm func(tSec float64) float64) []TracePoint {
		var pts []TracePoint
		for ms := 0.0; ms <= 20_000; ms += 500 {
			pts = append(pts, TracePoint{TimestampMs: ms, BPM: bpm(ms / 1000)})
		}
		return pts
	}

	t.Run("coupled", func(t *testing.T) {
		c := Couple(trace(func(s float64) float64 { return 72 + 3*math.Sin(2*math.Pi*0.2*s) }), wave(0.2), cfg)
		require.True(t, c.Evaluated)
		assert.True(t, c.Coupled)
		assert.InDelta(t, 1, c.R, 1e-6)
		assert.Zero(t, c.LagSec)
	})

	t.Run("lagged", func(t *testing.T) {
		c := Couple(trace(func(s float64) float64 { return 72 + 3*math.Sin(2*math.Pi*0.1*(s-1)) }), wave(0.1), cfg)
		require.True(t, c.Evaluated)
		assert.True(t, c.Coupled)
		assert.InDelta(t, -1, c.LagSec, 1e-9)
	})

	t.Run("uncoupled", func(t *testing.T) {
		c := Couple(trace(func(s float64) float64 { return 70 + 0.5*s }), wave(0.4), cfg)
		require.True(t, c.Evaluated)
		assert.False(t, c.Coupled)
		assert.Less(t, math.Abs(c.R), 0.3)
	})

	t.Run("flat trace", func(t *testing.T) {
		c := Couple(trace(func(float64) float64 { return 72 }), wave(0.2), cfg)
		assert.False(t, c.Evaluated)
	})

	t.Run("too few points", func(t *testing.T) {
		pts := trace(func(float64) float64 { return 72 })[:5]
		assert.False(t, Couple(pts, wave(0.2), cfg).Evaluated)
	})
}
