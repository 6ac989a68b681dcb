package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pulse.report/internal/rppg/spectral"
)

// strong returns a tick that passes every sample-level check.
func strong(tsMs, bpm float64) Input {
	return Input{
		TimestampMs:   tsMs,
		HasCandidate:  true,
		CandidateBPM:  bpm,
		Confidence:    0.8,
		PQI:           0.8,
		SNRdB:         10,
		PeakRatio:     3,
		SignalQuality: 0.8,
	}
}

// moderate passes sample checks but not the shift guards.
func moderate(tsMs, bpm float64) Input {
	in := strong(tsMs, bpm)
	in.Confidence = 0.45
	in.SNRdB = 4
	return in
}

func publishAt(t *testing.T, g *Gate, startMs, bpm float64) float64 {
	t.Helper()
	ts := startMs
	for i := 0; i < 3; i++ {
		ts += 500
		g.Evaluate(strong(ts, bpm))
	}
	got, _, ok := g.LastPublished()
	require.True(t, ok)
	require.InDelta(t, bpm, got, 1e-9)
	return ts
}

func TestGateStabilitySequence(t *testing.T) {
	t.Parallel()

	g := New(DefaultConfig())
	seq := []float64{72, 73, 71, 95, 72}
	var got []Decision
	for i, bpm := range seq {
		got = append(got, g.Evaluate(moderate(float64(i+1)*500, bpm)))
	}

	assert.False(t, got[0].Published)
	assert.Equal(t, ReasonStreak, got[0].Reason)
	assert.Equal(t, StateCandidatePending, got[0].State)
	assert.False(t, got[1].Published)
	assert.Equal(t, ReasonStreak, got[1].Reason)

	require.True(t, got[2].Published)
	assert.Equal(t, ReasonOK, got[2].Reason)
	assert.InDelta(t, 71, got[2].BPM, 1e-9)

	assert.False(t, got[3].Published, "single-tick outlier is suppressed")
	assert.True(t, got[3].Held)
	assert.Equal(t, HoldPrefix+ReasonDeltaLimit, got[3].Reason)
	assert.InDelta(t, 71, got[3].BPM, 1e-9)
	assert.Equal(t, StateHolding, got[3].State)

	require.True(t, got[4].Published)
	assert.InDelta(t, 72, got[4].BPM, 1e-9)
	assert.Zero(t, got[4].Pending)
}

func TestGateHoldsLastPublished(t *testing.T) {
	t.Parallel()

	g := New(DefaultConfig())
	ts := publishAt(t, g, 0, 72)

	for i := 0; i < 15; i++ {
		ts += 500
		in := strong(ts, 90)
		in.Confidence = 0.1
		d := g.Evaluate(in)
		assert.False(t, d.Published)
		assert.True(t, d.Held)
		assert.InDelta(t, 72, d.BPM, 1e-9)
		assert.Equal(t, HoldPrefix+ReasonLowConf, d.Reason)
	}

	// No candidate at all is held too.
	ts += 500
	d := g.Evaluate(Input{TimestampMs: ts})
	assert.Equal(t, HoldPrefix+ReasonNoBPM, d.Reason)
	assert.InDelta(t, 72, d.BPM, 1e-9)
}

func TestGateHoldExpires(t *testing.T) {
	t.Parallel()

	g := New(DefaultConfig())
	ts := publishAt(t, g, 0, 72)

	in := strong(ts+10_000, 72)
	in.Confidence = 0
	assert.True(t, g.Evaluate(in).Held, "hold window is inclusive")

	in.TimestampMs = ts + 10_500
	d := g.Evaluate(in)
	assert.False(t, d.Held)
	assert.Zero(t, d.BPM)
	assert.Equal(t, ReasonLowConf, d.Reason)
	assert.Equal(t, StateAcquiring, d.State)
}

func TestGateSampleChecks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Input)
		want   string
	}{
		{"no candidate", func(in *Input) { in.HasCandidate = false }, ReasonNoBPM},
		{"low confidence", func(in *Input) { in.Confidence = 0.2 }, ReasonLowConf},
		{"low snr", func(in *Input) { in.SNRdB = 1 }, ReasonLowSNR},
		{"disagreement", func(in *Input) { in.AgreementEvaluated, in.AgreementDeltaBPM = true, 20 }, ReasonLowAgreement},
		{"unevaluated disagreement passes", func(in *Input) { in.AgreementDeltaBPM = 20 }, ReasonStreak},
		{"low pqi", func(in *Input) { in.PQI = 0.1 }, ReasonLowPQI},
		{"subharmonic", func(in *Input) {
			in.AltHigh = spectral.Alternate{Valid: true, BPM: 144, PowerRatio: 0.7, SNRDeltaDB: -1}
		}, ReasonSubharmonicGuard},
		{"weak alternate", func(in *Input) {
			in.AltHigh = spectral.Alternate{Valid: true, BPM: 144, PowerRatio: 0.2, SNRDeltaDB: -1}
		}, ReasonStreak},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(DefaultConfig())
			in := strong(500, 72)
			tt.mutate(&in)
			d := g.Evaluate(in)
			assert.False(t, d.Published)
			assert.Equal(t, tt.want, d.Reason)
		})
	}
}

func TestGateSampleFailureBreaksStreak(t *testing.T) {
	t.Parallel()

	g := New(DefaultConfig())
	g.Evaluate(strong(500, 72))
	g.Evaluate(strong(1000, 72))
	bad := strong(1500, 72)
	bad.SNRdB = 0
	assert.Equal(t, ReasonLowSNR, g.Evaluate(bad).Reason)

	d := g.Evaluate(strong(2000, 72))
	assert.Equal(t, ReasonStreak, d.Reason)
	assert.Equal(t, 1, d.Streak)
}

func TestGateHalfFrequencyRescue(t *testing.T) {
	t.Parallel()

	g := New(DefaultConfig())
	var d Decision
	for i := 1; i <= 3; i++ {
		in := strong(float64(i)*500, 40)
		in.FullValid, in.FullBPM, in.FullSignal, in.FullPeakRatio = true, 81, 0.6, 2
		in.AltHigh = spectral.Alternate{Valid: true, BPM: 80, PowerRatio: 0.9, SNRDeltaDB: 0}
		d = g.Evaluate(in)
		assert.True(t, d.Rescued)
		assert.InDelta(t, 81, d.CandidateBPM, 1e-9)
	}
	require.True(t, d.Published)
	assert.InDelta(t, 81, d.BPM, 1e-9)

	// Without a supportive full band the low value is blocked as a subharmonic.
	g = New(DefaultConfig())
	in := strong(500, 40)
	in.AltHigh = spectral.Alternate{Valid: true, BPM: 80, PowerRatio: 0.9, SNRDeltaDB: 0}
	d = g.Evaluate(in)
	assert.False(t, d.Rescued)
	assert.Equal(t, ReasonSubharmonicGuard, d.Reason)
}

func TestGateShiftGuards(t *testing.T) {
	t.Parallel()

	t.Run("upshift needs strong evidence", func(t *testing.T) {
		g := New(DefaultConfig())
		ts := publishAt(t, g, 0, 70)
		var d Decision
		for i := 0; i < 3; i++ {
			ts += 500
			d = g.Evaluate(moderate(ts, 95))
		}
		assert.False(t, d.Published)
		assert.Equal(t, HoldPrefix+ReasonUpshiftGuard, d.Reason, "pending run became the new level")
	})

	t.Run("downshift", func(t *testing.T) {
		g := New(DefaultConfig())
		ts := publishAt(t, g, 0, 100)
		var d Decision
		for i := 0; i < 3; i++ {
			ts += 500
			d = g.Evaluate(moderate(ts, 80))
		}
		assert.Equal(t, HoldPrefix+ReasonDownshiftGuard, d.Reason)
	})

	t.Run("strong evidence passes after enough time", func(t *testing.T) {
		g := New(DefaultConfig())
		ts := publishAt(t, g, 0, 70)
		ts += 4000
		var d Decision
		for i := 0; i < 3; i++ {
			ts += 500
			d = g.Evaluate(strong(ts, 95))
		}
		require.True(t, d.Published)
		assert.InDelta(t, 95, d.BPM, 1e-9)
	})

	t.Run("physio limit", func(t *testing.T) {
		g := New(DefaultConfig())
		ts := publishAt(t, g, 0, 70)
		var d Decision
		for i := 0; i < 3; i++ {
			ts += 100
			d = g.Evaluate(strong(ts, 95))
		}
		assert.Equal(t, HoldPrefix+ReasonPhysioLimit, d.Reason)
	})
}

func TestGateRespirationCoupling(t *testing.T) {
	t.Parallel()

	g := New(DefaultConfig())
	ts := publishAt(t, g, 0, 90)

	in := strong(ts+500, 70)
	in.RespEvaluated = true
	assert.Equal(t, HoldPrefix+ReasonRespCoupling, g.Evaluate(in).Reason)

	in.RespCoupled = true
	assert.NotEqual(t, HoldPrefix+ReasonRespCoupling, g.Evaluate(in).Reason)
}

func TestGateUnstableStreak(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MaxStdBPM = 2
	g := New(cfg)
	g.Evaluate(strong(500, 70))
	d := g.Evaluate(strong(1000, 76))
	assert.Equal(t, ReasonUnstable, d.Reason)
	assert.Equal(t, 1, d.Pending)

	// The accepted run continues from its last value.
	d = g.Evaluate(strong(1500, 70))
	assert.Equal(t, ReasonStreak, d.Reason)
	assert.Equal(t, 2, d.Streak)
}

func TestGateReset(t *testing.T) {
	t.Parallel()

	g := New(DefaultConfig())
	publishAt(t, g, 0, 72)
	g.Reset()
	_, _, ok := g.LastPublished()
	assert.False(t, ok)
	d := g.Evaluate(Input{TimestampMs: 3000})
	assert.Equal(t, ReasonNoBPM, d.Reason)
	assert.Equal(t, StateAcquiring, d.State)
}
