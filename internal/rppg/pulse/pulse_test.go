package pulse

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

// skinWindow renders n frames of a pulsing skin tone sampled at 30 fps.
func skinWindow(n int, hz float64, amp [3]float64) []RGB {
	base := RGB{200, 140, 110}
	out := make([]RGB, n)
	for i := range out {
		s := math.Sin(2 * math.Pi * hz * float64(i) / 30)
		for c := 0; c < 3; c++ {
			out[i][c] = base[c] * (1 + amp[c]*s)
		}
	}
	return out
}

// trace runs Extract over a growing buffer like the engine does.
func trace(alg Algorithm, frames []RGB, cfg Config) []float64 {
	var out []float64
	for i := range frames {
		if v, ok := Extract(alg, frames[:i+1], cfg); ok {
			out = append(out, v)
		}
	}
	return out
}

func TestAlgorithmString(t *testing.T) {
	assert.Equal(t, "pos", POS.String())
	assert.Equal(t, "chrom", CHROM.String())
	assert.Equal(t, "unknown", Algorithm(9).String())
}

func TestExtractNeedsMinimumFrames(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	frames := skinWindow(29, 1.2, [3]float64{0.01, 0.02, 0.005})
	for _, alg := range Algorithms {
		_, ok := Extract(alg, frames, cfg)
		assert.False(t, ok, alg.String())
		_, ok = Extract(alg, append(frames, frames[0]), cfg)
		assert.True(t, ok, alg.String())
	}
}

func TestExtractRejectsDarkChannel(t *testing.T) {
	t.Parallel()

	frames := make([]RGB, 40)
	for i := range frames {
		frames[i] = RGB{120, 80, 0}
	}
	_, ok := Extract(POS, frames, DefaultConfig())
	assert.False(t, ok)
}

func TestExtractFollowsPulse(t *testing.T) {
	t.Parallel()

	frames := skinWindow(300, 1.2, [3]float64{0.008, 0.02, 0.006})
	for _, alg := range Algorithms {
		t.Run(alg.String(), func(t *testing.T) {
			out := trace(alg, frames, DefaultConfig())
			require.Len(t, out, 300-29)

			// The projected trace oscillates with the pulse: it correlates
			// strongly with the green channel over the same frames.
			green := make([]float64, len(out))
			for i := range green {
				green[i] = frames[29+i][1]
			}
			r := stat.Correlation(out, green, nil)
			assert.Greater(t, math.Abs(r), 0.9)
		})
	}
}

func TestExtractSuppressesLuminanceFlicker(t *testing.T) {
	t.Parallel()

	// Equal relative modulation on every channel is pure intensity change.
	frames := skinWindow(60, 0.3, [3]float64{0.05, 0.05, 0.05})
	for _, alg := range Algorithms {
		v, ok := Extract(alg, frames, DefaultConfig())
		require.True(t, ok)
		assert.InDelta(t, 0, v, 1e-9, alg.String())
	}
}

func TestExtractUsesTrailingWindow(t *testing.T) {
	t.Parallel()

	frames := skinWindow(200, 1.2, [3]float64{0.008, 0.02, 0.006})
	cfg := DefaultConfig()
	full, ok := Extract(POS, frames, cfg)
	require.True(t, ok)
	tail, ok := Extract(POS, frames[len(frames)-cfg.WindowFrames:], cfg)
	require.True(t, ok)
	assert.InDelta(t, tail, full, 1e-12)
}
