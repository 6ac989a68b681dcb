package fusion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pulse.report/internal/rppg/roi"
	"github.com/banshee-data/pulse.report/internal/rppg/sampler"
	"github.com/banshee-data/pulse.report/internal/rppg/spectral"
)

func goodSample() sampler.Sample {
	return sampler.Sample{
		Active:     true,
		Luma:       150,
		SkinRatio:  1,
		SkinPixels: 500,
		LumaStd:    6,
	}
}

func sine(seconds, rate, hz, amp, phase float64) []float64 {
	x := make([]float64, int(seconds*rate)+1)
	for i := range x {
		x[i] = amp * math.Sin(2*math.Pi*hz*float64(i)/rate+phase)
	}
	return x
}

func TestRegionQuality(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	perfect := RegionInput{ID: roi.Forehead, Active: true, Sample: goodSample()}
	assert.InDelta(t, 1.0, RegionQuality(perfect, 1, cfg), 1e-9)

	tests := []struct {
		name   string
		mutate func(*RegionInput)
		want   float64
	}{
		{"clipped", func(in *RegionInput) { in.Sample.ClippedRatio = 0.2 }, 0.7},
		{"specular", func(in *RegionInput) { in.Sample.SpecularRatio = 0.3 }, 0.7},
		{"few skin pixels", func(in *RegionInput) { in.Sample.SkinPixels = 50 }, 0.6},
		{"luma change", func(in *RegionInput) { in.LumaChange = 0.05 }, math.Exp(-1)},
		{"motion", func(in *RegionInput) { in.Motion = 0.02 }, 0.8 + 0.2*math.Exp(-1)},
		{"dim", func(in *RegionInput) { in.Sample.Luma = 40 }, 0.95},
		{"bright", func(in *RegionInput) { in.Sample.Luma = 245 }, 0.9},
		{"flat", func(in *RegionInput) { in.Sample.LumaStd = 0 }, 0.9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := perfect
			tt.mutate(&in)
			assert.InDelta(t, tt.want, RegionQuality(in, 1, cfg), 1e-9)
		})
	}

	assert.InDelta(t, 0.55, RegionQuality(perfect, 0, cfg), 1e-9, "signal quality carries 0.45")
}

func TestWeights(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	ids := []roi.RegionID{roi.Forehead, roi.LeftCheek, roi.RightCheek, roi.Neck}

	w := Weights(ids, []bool{true, true, false, true}, []float64{1, 1, 1, 0}, cfg)
	assert.Zero(t, w[2], "inactive region has no weight")
	assert.InDelta(t, 1, w[0]+w[1]+w[3], 1e-12)
	assert.InDelta(t, 1/0.9, w[0]/w[1], 1e-9)
	assert.InDelta(t, 0.02/1.0, w[3]/w[0], 1e-9, "zero quality is floored at MinWeight")

	w = Weights(ids, []bool{false, false, false, false}, []float64{1, 1, 1, 1}, cfg)
	assert.Equal(t, []float64{0, 0, 0, 0}, w)

	// Quality enters with gamma 1.5.
	w = Weights(ids[:2], []bool{true, true}, []float64{1, 0.25}, cfg)
	assert.InDelta(t, 0.9*0.125, w[1]/w[0], 1e-9)
}

func TestMix(t *testing.T) {
	t.Parallel()

	a := []float64{1, 2, 3, 4, 5, 6}
	b := []float64{10, 30, 10, 30}
	mix := Mix([][]float64{a, b, {7, 7, 7}}, []float64{0.5, 0.5, 0})
	require.Len(t, mix, 4)

	// Tail of a is 3..6 (z: -1.342, -0.447, 0.447, 1.342); b z-scores to ±1.
	assert.InDelta(t, 0.5*(-1.3416407865)+0.5*(-1), mix[0], 1e-6)
	assert.InDelta(t, 0.5*(1.3416407865)+0.5*(1), mix[3], 1e-6)

	assert.Nil(t, Mix([][]float64{a}, []float64{0}))
	assert.Nil(t, Mix(nil, nil))
}

func TestChoose(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	good := func(bpm, raw float64) spectral.Estimate {
		return spectral.Estimate{Valid: true, BPM: bpm, RawScore: raw, PeakRatio: 3, PeakQuality: 0.8, SignalQuality: 0.8}
	}

	t.Run("invalid inputs", func(t *testing.T) {
		var tr Tracker
		assert.Equal(t, ChoiceNone, tr.choose(spectral.Estimate{}, spectral.Estimate{}, cfg))
		assert.Equal(t, ChoiceFullFallback, tr.choose(spectral.Estimate{}, good(80, 1), cfg))
		assert.Equal(t, ChoiceTight, tr.choose(good(80, 1), spectral.Estimate{}, cfg))
	})

	t.Run("agreeing bands stay tight", func(t *testing.T) {
		var tr Tracker
		assert.Equal(t, ChoiceTight, tr.choose(good(72, 1), good(73, 1.05), cfg))
		assert.Zero(t, tr.EscapeCount())
	})

	t.Run("high escape", func(t *testing.T) {
		var tr Tracker
		assert.Equal(t, ChoiceHighEscape, tr.choose(good(80, 1), good(125, 2), cfg))

		weak := good(125, 2)
		weak.PeakRatio = 1.5
		assert.NotEqual(t, ChoiceHighEscape, tr.choose(good(80, 1), weak, cfg))
	})

	t.Run("escape needs consecutive ticks", func(t *testing.T) {
		var tr Tracker
		tight, full := good(70, 1), good(90, 1.4)
		assert.Equal(t, ChoiceTight, tr.choose(tight, full, cfg))
		assert.Equal(t, 1, tr.EscapeCount())
		assert.Equal(t, ChoiceTight, tr.choose(tight, full, cfg))
		assert.Equal(t, 2, tr.EscapeCount())
		assert.Equal(t, ChoiceEscape, tr.choose(tight, full, cfg))
		assert.Zero(t, tr.EscapeCount())

		// An interrupted run starts over.
		tr.choose(tight, full, cfg)
		tr.choose(tight, good(71, 1), cfg)
		assert.Zero(t, tr.EscapeCount())
	})

	t.Run("weak tight falls back to full", func(t *testing.T) {
		var tr Tracker
		tight := good(70, 1)
		tight.SignalQuality = 0.1
		assert.Equal(t, ChoiceFullFallback, tr.choose(tight, good(72, 1), cfg))
	})

	t.Run("low promotion after escape rules", func(t *testing.T) {
		var tr Tracker
		assert.Equal(t, ChoiceLowPromotion, tr.choose(good(48, 1), good(96, 0.9), cfg))

		// Comparable score is required.
		assert.Equal(t, ChoiceTight, tr.choose(good(48, 1), good(96, 0.5), cfg))
		// Only low tight picks are promoted.
		assert.Equal(t, ChoiceTight, tr.choose(good(70, 1), good(115, 0.9), cfg))
	})
}

func TestTrackerTrack(t *testing.T) {
	t.Parallel()

	opts := spectral.DefaultOptions()
	cfg := DefaultConfig()
	mix := sine(10, 30, 1.2, 1, 0)

	var tr Tracker
	rec := tr.Track(mix, 0, opts, cfg)
	assert.Equal(t, ChoiceFull, rec.Choice)
	assert.False(t, rec.Tight.Valid)
	est, ok := rec.Chosen()
	require.True(t, ok)
	assert.InDelta(t, 72, est.BPM, 2)

	rec = tr.Track(mix, 70, opts, cfg)
	assert.Equal(t, ChoiceTight, rec.Choice)
	assert.InDelta(t, 70, rec.PrevBPM, 1e-12)
	est, ok = rec.Chosen()
	require.True(t, ok)
	assert.InDelta(t, 72, est.BPM, 2)

	rec = tr.Track(make([]float64, 300), 70, opts, cfg)
	assert.Equal(t, ChoiceNone, rec.Choice)
	_, ok = rec.Chosen()
	assert.False(t, ok)
}

func TestFuse(t *testing.T) {
	t.Parallel()

	opts := spectral.DefaultOptions()
	cfg := DefaultConfig()
	inputs := []RegionInput{
		{ID: roi.Forehead, Active: true, Waveform: sine(10, 30, 1.2, 1, 0), Sample: goodSample()},
		{ID: roi.LeftCheek, Active: true, Waveform: sine(10, 30, 1.2, 0.5, 0.3), Sample: goodSample()},
		{ID: roi.RightCheek, Active: false, Waveform: sine(10, 30, 2.5, 1, 0), Sample: sampler.Sample{}},
		{ID: roi.Neck, Active: true, Waveform: nil, Sample: goodSample()},
	}

	var tr Tracker
	out := Fuse("pos", inputs, 0, &tr, opts, cfg)
	require.True(t, out.Valid)
	assert.Equal(t, "pos", out.Algorithm)
	assert.InDelta(t, 72, out.BPM, 2)
	require.Len(t, out.Regions, 4)
	assert.Zero(t, out.Regions[2].Weight)
	assert.False(t, out.Regions[2].Active)
	assert.Zero(t, out.Regions[3].Weight, "no waveform means no weight")
	assert.InDelta(t, 1, out.Regions[0].Weight+out.Regions[1].Weight, 1e-9)
	assert.Greater(t, out.MeanQuality, 0.8)
	assert.Len(t, out.Mix, 301)

	none := Fuse("chrom", inputs[2:], 72, &tr, opts, cfg)
	assert.False(t, none.Valid)
	assert.Equal(t, ChoiceNone, none.Tracking.Choice)
}
