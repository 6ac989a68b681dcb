package synth

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pulse.report/internal/rppg/roi"
)

func TestGeneratorDeterministic(t *testing.T) {
	a := NewGenerator(DefaultScene())
	b := NewGenerator(DefaultScene())
	for i := 0; i < 5; i++ {
		fa, fb := a.Next(), b.Next()
		require.Equal(t, fa.TimestampMs, fb.TimestampMs)
		require.Equal(t, fa.Pixels, fb.Pixels)
	}
}

func TestGeneratorTimestampsMonotonic(t *testing.T) {
	scene := DefaultScene()
	scene.JitterMs = 20 // larger than half the frame period
	g := NewGenerator(scene)
	prev := math.Inf(-1)
	for i := 0; i < 200; i++ {
		f := g.Next()
		assert.GreaterOrEqual(t, f.TimestampMs, prev)
		prev = f.TimestampMs
	}
}

func TestGeneratorPaintsRegions(t *testing.T) {
	scene := DefaultScene()
	scene.PixelNoise = 0
	g := NewGenerator(scene)
	f := g.Next()
	require.Len(t, f.Pixels, scene.Width*scene.Height*3)
	require.Len(t, f.Landmarks, roi.FaceMeshSize)

	for _, r := range g.Regions() {
		c := r.Rect.Center()
		off := (int(c.Y)*scene.Width + int(c.X)) * 3
		if r.ID == roi.Neck {
			assert.Equal(t, scene.Background[0], f.Pixels[off], "neck is background")
			continue
		}
		assert.InDelta(t, scene.Regions[r.ID].Base[0], float64(f.Pixels[off]), 5, "region %s", r.ID)
	}
}
