package spectral

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tone struct {
	hz, amp, phase float64
}

func waveform(seconds, rate float64, tones ...tone) []float64 {
	n := int(seconds*rate) + 1
	x := make([]float64, n)
	for i := range x {
		t := float64(i) / rate
		for _, tn := range tones {
			x[i] += tn.amp * math.Sin(2*math.Pi*tn.hz*t+tn.phase)
		}
	}
	return x
}

func TestEstimatePureSinusoids(t *testing.T) {
	t.Parallel()

	for _, bpm := range []float64{48, 72, 90, 120, 150} {
		t.Run(fmt.Sprintf("%.0f bpm", bpm), func(t *testing.T) {
			x := waveform(10, 30, tone{hz: bpm / 60, amp: 1})
			est := Analyze(x, 0, Search{}, DefaultOptions())

			require.True(t, est.Valid)
			assert.InDelta(t, bpm, est.BPM, 2, "bpm %v", bpm)
			assert.InDelta(t, bpm, est.FFTBPM, 1, "fft bpm %v", bpm)
			assert.InDelta(t, bpm, est.ACBPM, 2, "ac bpm %v", bpm)
			assert.False(t, est.HarmonicFixed)
			assert.Equal(t, DirNone, est.HarmonicDir)
			assert.Greater(t, est.SNRdB, 15.0)
			assert.InDelta(t, 1.0, est.SNR01, 1e-9)
			assert.Greater(t, est.PeakQuality, 0.8)
			assert.Greater(t, est.ACQuality, 0.9)
			assert.Greater(t, est.SignalQuality, 0.8)
		})
	}
}

func TestEstimateTooShort(t *testing.T) {
	t.Parallel()

	x := waveform(2.9, 30, tone{hz: 1.2, amp: 1})
	est := Analyze(x, 0, Search{}, DefaultOptions())
	assert.Equal(t, Estimate{}, est)

	assert.Equal(t, Estimate{}, Analyze(nil, 72, Search{}, DefaultOptions()))
}

func TestEstimateSilentWaveform(t *testing.T) {
	t.Parallel()

	est := Analyze(make([]float64, 300), 0, Search{}, DefaultOptions())
	assert.False(t, est.Valid)
}

func TestEstimateHalvingFollowsMargins(t *testing.T) {
	t.Parallel()

	x := waveform(10, 30, tone{hz: 2.4, amp: 1})

	t.Run("margins not met", func(t *testing.T) {
		est := Analyze(x, 0, Search{}, DefaultOptions())
		require.True(t, est.Valid)
		assert.Equal(t, DirNone, est.HarmonicDir)
		assert.InDelta(t, 144, est.FFTBPM, 1)
	})

	t.Run("margins met", func(t *testing.T) {
		opts := DefaultOptions()
		opts.HalvePowerRatio = 0
		opts.HalveSNRMarginDB = -1000
		est := Analyze(x, 0, Search{}, opts)
		require.True(t, est.Valid)
		assert.Equal(t, DirDown2, est.HarmonicDir)
		assert.True(t, est.HarmonicFixed)
		assert.InDelta(t, 72, est.FFTBPM, 1)
		assert.InDelta(t, 72, est.BPM, 1, "a harmonic fix outranks a disagreeing autocorrelation")
		assert.False(t, est.AltHigh.Supported)
	})
}

func TestEstimateHalvingIsMonotoneInPowerRatio(t *testing.T) {
	t.Parallel()

	// Pick sits at 2.4 Hz; the 1.2 Hz sub-harmonic has a quarter of its power.
	x := waveform(10, 30, tone{hz: 2.4, amp: 1}, tone{hz: 1.2, amp: 0.5, phase: 0.3})

	fired := true
	for _, threshold := range []float64{0.05, 0.15, 0.2, 0.3, 0.5, 1.1, 2} {
		opts := DefaultOptions()
		opts.HalvePowerRatio = threshold
		opts.HalveSNRMarginDB = -20
		est := Analyze(x, 0, Search{}, opts)
		require.True(t, est.Valid)

		halved := est.HarmonicDir == DirDown2
		if !fired {
			assert.False(t, halved, "threshold %v halved after a stricter threshold did not", threshold)
		}
		fired = halved
		if halved {
			assert.InDelta(t, 72, est.FFTBPM, 1)
		} else {
			assert.InDelta(t, 144, est.FFTBPM, 1)
		}
	}

	opts := DefaultOptions()
	opts.HalvePowerRatio = 0.15
	opts.HalveSNRMarginDB = -20
	assert.Equal(t, DirDown2, Analyze(x, 0, Search{}, opts).HarmonicDir)
	opts.HalvePowerRatio = 0.5
	assert.Equal(t, DirNone, Analyze(x, 0, Search{}, opts).HarmonicDir)
}

func TestEstimatePromotesDominantSecondHarmonic(t *testing.T) {
	t.Parallel()

	x := waveform(10, 30, tone{hz: 0.8, amp: 1}, tone{hz: 1.6, amp: math.Sqrt2, phase: 1})
	opts := DefaultOptions()
	opts.Harmonic2Weight = 2 // keep the 48 BPM fundamental as the raw pick

	est := Analyze(x, 0, Search{}, opts)
	require.True(t, est.Valid)
	assert.Equal(t, DirUp2Dominance, est.HarmonicDir)
	assert.InDelta(t, 96, est.FFTBPM, 1.5)
}

func TestEstimateRecordsAlternates(t *testing.T) {
	t.Parallel()

	x := waveform(10, 30, tone{hz: 1.2, amp: 1})
	est := Analyze(x, 0, Search{}, DefaultOptions())
	require.True(t, est.Valid)

	require.True(t, est.AltHigh.Valid)
	assert.InDelta(t, 144, est.AltHigh.BPM, 1)
	assert.Less(t, est.AltHigh.PowerRatio, 0.01)
	assert.Less(t, est.AltHigh.SNRDeltaDB, 0.0)
	assert.False(t, est.AltHigh.Supported)

	assert.False(t, est.AltLow.Valid, "36 BPM is below the band")

	est = Analyze(waveform(10, 30, tone{hz: 2, amp: 1}), 0, Search{}, DefaultOptions())
	require.True(t, est.AltLow.Valid)
	assert.InDelta(t, 60, est.AltLow.BPM, 0.5)
	assert.False(t, est.AltHigh.Valid, "240 BPM is above the band")
}

func TestEstimateSearchBand(t *testing.T) {
	t.Parallel()

	x := waveform(10, 30, tone{hz: 1.2, amp: 1}, tone{hz: 2.0, amp: 1.2, phase: 0.5})

	full := Analyze(x, 72, Search{NoContinuity: true}, DefaultOptions())
	require.True(t, full.Valid)
	assert.InDelta(t, 120, full.FFTBPM, 1)

	tight := Analyze(x, 72, Search{LowHz: 57.0 / 60, HighHz: 87.0 / 60}, DefaultOptions())
	require.True(t, tight.Valid)
	assert.InDelta(t, 72, tight.FFTBPM, 1)

	empty := Analyze(x, 72, Search{LowHz: 3.5, HighHz: 4}, DefaultOptions())
	assert.False(t, empty.Valid)
}

func TestEstimateRepicksNearPrevious(t *testing.T) {
	t.Parallel()

	// Two near-equal peaks: 84 BPM slightly stronger than 66 BPM.
	x := waveform(10, 30, tone{hz: 1.1, amp: 1}, tone{hz: 1.4, amp: 1.05, phase: 1})

	noPrev := Analyze(x, 0, Search{}, DefaultOptions())
	require.True(t, noPrev.Valid)
	assert.InDelta(t, 84, noPrev.FFTBPM, 1)
	assert.Less(t, noPrev.PeakRatio, 1.25)

	withPrev := Analyze(x, 64, Search{}, DefaultOptions())
	require.True(t, withPrev.Valid)
	assert.InDelta(t, 66, withPrev.FFTBPM, 1)
}

func TestFuse(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	base := Estimate{FFTBPM: 70, ACBPM: 74, PeakQuality: 1, SNR01: 1, ACQuality: 1}

	assert.InDelta(t, 72, fuse(base, true, 0, opts), 1e-9, "agreeing estimates average")
	assert.InDelta(t, 70, fuse(base, false, 0, opts), 1e-9)

	far := base
	far.ACBPM = 100
	far.ACQuality = 0.9
	assert.InDelta(t, 70, fuse(far, true, 0, opts), 1e-9, "higher confidence wins")

	far.PeakQuality, far.SNR01 = 0.5, 0.5
	assert.InDelta(t, 100, fuse(far, true, 0, opts), 1e-9)
	assert.InDelta(t, 70, fuse(far, true, 68, opts), 1e-9, "distance from previous discounts")
	fixed := far
	fixed.HarmonicFixed = true
	assert.InDelta(t, 70, fuse(fixed, true, 0, opts), 1e-9, "corrected octave is not undone by autocorrelation")
	fixed.ACBPM = 73
	assert.InDelta(t, (70*0.5+73*0.9)/1.4, fuse(fixed, true, 0, opts), 1e-9, "agreeing estimates still average after a correction")
}

func TestEstimateIgnoresSidelobeCandidates(t *testing.T) {
	t.Parallel()

	for _, bpm := range []float64{90, 150} {
		t.Run(fmt.Sprintf("%.0f bpm", bpm), func(t *testing.T) {
			x := waveform(10, 30, tone{hz: bpm / 60, amp: 1})
			opts := DefaultOptions()
			est := Analyze(x, 0, Search{}, opts)
			require.True(t, est.Valid)
			assert.GreaterOrEqual(t, est.PeakRatio, opts.PeakRatioGood)
			assert.Greater(t, est.PeakQuality, 0.8)

			opts.MinCandidateFraction = 0
			unfiltered := Analyze(x, 0, Search{}, opts)
			assert.Less(t, unfiltered.PeakRatio, est.PeakRatio)
		})
	}

	// a genuine competitor above the floor still counts
	x := waveform(10, 30, tone{hz: 1.2, amp: 1}, tone{hz: 2.5, amp: 0.5, phase: 0.2})
	est := Analyze(x, 0, Search{}, DefaultOptions())
	require.True(t, est.Valid)
	assert.InDelta(t, 72, est.BPM, 2)
	assert.Less(t, est.PeakRatio, float64(maxPeakRatio))
}
