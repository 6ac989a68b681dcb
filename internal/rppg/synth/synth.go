// Package synth renders deterministic synthetic face frames: a static face
// mesh, per-region skin patches whose colour carries a pulse and a
// breathing component, and frame-timing jitter.
package synth

import (
	"math"
	"math/rand/v2"

	"github.com/banshee-data/pulse.report/internal/rppg/roi"
)

// RegionSignal describes how one region is painted.
type RegionSignal struct {
	Base      [3]float64 // mean RGB level
	Amplitude [3]float64 // pulse amplitude per channel, fraction of Base
	PhaseRad  float64    // pulse phase offset
	Noise     float64    // per-frame Gaussian noise on each channel, in levels
}

// Scene configures a Generator.
type Scene struct {
	Width, Height int
	FPS           float64
	JitterMs      float64 // uniform frame-timing jitter, ± milliseconds

	PulseHz       float64
	RespHz        float64
	RespAmplitude float64 // luminance modulation fraction

	PixelNoise float64 // uniform per-pixel dither, ± levels
	Background [3]uint8
	Regions    map[roi.RegionID]RegionSignal

	Seed uint64
}

// SkinTone returns a pulse-bearing skin patch.
func SkinTone(r, g, b, phase float64) RegionSignal {
	return RegionSignal{
		Base:      [3]float64{r, g, b},
		Amplitude: [3]float64{0.008, 0.02, 0.006},
		PhaseRad:  phase,
		Noise:     0.3,
	}
}

// NonSkin returns a bluish patch that the skin classifier rejects, still
// carrying the pulse so a classifier error would leak it into the mix.
func NonSkin(phase float64) RegionSignal {
	return RegionSignal{
		Base:      [3]float64{90, 110, 170},
		Amplitude: [3]float64{0.008, 0.02, 0.006},
		PhaseRad:  phase,
		Noise:     0.3,
	}
}

// DefaultScene is a 320x240, 30 fps scene with forehead and both cheeks
// pulsing at 72 BPM and breathing at 15 breaths per minute. The neck is
// left as background.
func DefaultScene() Scene {
	return Scene{
		Width:         320,
		Height:        240,
		FPS:           30,
		JitterMs:      3,
		PulseHz:       1.2,
		RespHz:        0.25,
		RespAmplitude: 0.01,
		PixelNoise:    3,
		Background:    [3]uint8{40, 60, 110},
		Regions: map[roi.RegionID]RegionSignal{
			roi.Forehead:   SkinTone(200, 140, 110, 0),
			roi.LeftCheek:  SkinTone(190, 130, 105, 0.4),
			roi.RightCheek: SkinTone(192, 132, 104, -0.3),
		},
		Seed: 1,
	}
}

// FaceMesh returns a 468-point landmark set for a frontal face occupying
// roughly x in [0.3, 0.7] and y in [0.2, 0.85] of the frame, with the
// anchor landmarks placed at plausible positions.
func FaceMesh() []roi.Landmark {
	lms := make([]roi.Landmark, roi.FaceMeshSize)
	const cx, cy, rx, ry = 0.5, 0.525, 0.2, 0.325
	for i := range lms {
		theta := 2 * math.Pi * float64(i) / float64(len(lms))
		scale := 1.0
		if i%2 == 1 {
			scale = 0.6
		}
		lms[i] = roi.Landmark{X: cx + scale*rx*math.Cos(theta), Y: cy + scale*ry*math.Sin(theta)}
	}
	anchors := map[int]roi.Landmark{
		roi.AnchorForeheadTop:   {X: 0.50, Y: 0.20},
		roi.AnchorNoseTip:       {X: 0.50, Y: 0.58},
		roi.AnchorLeftEyeOuter:  {X: 0.37, Y: 0.42},
		roi.AnchorLeftEyeInner:  {X: 0.45, Y: 0.42},
		roi.AnchorLeftEyeTop:    {X: 0.41, Y: 0.40},
		roi.AnchorLeftEyeBottom: {X: 0.41, Y: 0.44},
		roi.AnchorRightEyeOuter: {X: 0.63, Y: 0.42},
		roi.AnchorRightEyeInner: {X: 0.55, Y: 0.42},
		roi.AnchorRightEyeTop:   {X: 0.59, Y: 0.40},
		roi.AnchorRightEyeBot:   {X: 0.59, Y: 0.44},
		roi.AnchorMouthLeft:     {X: 0.44, Y: 0.70},
		roi.AnchorMouthRight:    {X: 0.56, Y: 0.70},
		roi.AnchorUpperLip:      {X: 0.50, Y: 0.68},
		roi.AnchorLowerLip:      {X: 0.50, Y: 0.73},
		roi.AnchorChin:          {X: 0.50, Y: 0.85},
		roi.AnchorJawLeft:       {X: 0.30, Y: 0.50},
		roi.AnchorJawRight:      {X: 0.70, Y: 0.50},
	}
	for idx, lm := range anchors {
		lms[idx] = lm
	}
	return lms
}

// Frame is one rendered frame.
type Frame struct {
	TimestampMs float64
	Width       int
	Height      int
	Pixels      []byte // RGB, row-major
	Landmarks   []roi.Landmark
}

// Generator renders successive frames of a Scene.
type Generator struct {
	scene     Scene
	rng       *rand.Rand
	landmarks []roi.Landmark
	regions   []roi.Region
	frame     int
	lastTs    float64
}

// NewGenerator prepares a generator. Region rectangles are computed once
// from the static face mesh with the default region geometry.
func NewGenerator(scene Scene) *Generator {
	lms := FaceMesh()
	ext, _ := roi.Extract(lms, scene.Width, scene.Height, roi.DefaultConfig())
	return &Generator{
		scene:     scene,
		rng:       rand.New(rand.NewPCG(scene.Seed, scene.Seed^0x9e3779b97f4a7c15)),
		landmarks: lms,
		regions:   ext.Regions,
		lastTs:    math.Inf(-1),
	}
}

// Regions returns the painted region rectangles.
func (g *Generator) Regions() []roi.Region { return g.regions }

// Next renders the next frame.
func (g *Generator) Next() Frame {
	s := g.scene
	nominal := float64(g.frame) * 1000 / s.FPS
	ts := nominal
	if s.JitterMs > 0 {
		ts += (g.rng.Float64()*2 - 1) * s.JitterMs
	}
	ts = math.Max(ts, g.lastTs)
	g.lastTs = ts
	g.frame++

	pix := make([]byte, s.Width*s.Height*3)
	for i := 0; i < len(pix); i += 3 {
		pix[i], pix[i+1], pix[i+2] = s.Background[0], s.Background[1], s.Background[2]
	}

	tSec := ts / 1000
	resp := 1 + s.RespAmplitude*math.Sin(2*math.Pi*s.RespHz*tSec)
	for _, region := range g.regions {
		sig, ok := s.Regions[region.ID]
		if !ok {
			continue
		}
		pulse := math.Sin(2*math.Pi*s.PulseHz*tSec + sig.PhaseRad)
		var level [3]float64
		for c := 0; c < 3; c++ {
			level[c] = sig.Base[c]*(1+sig.Amplitude[c]*pulse)*resp + g.rng.NormFloat64()*sig.Noise
		}
		r := region.Rect
		for y := r.Y; y < r.Y+r.H; y++ {
			row := y * s.Width * 3
			for x := r.X; x < r.X+r.W; x++ {
				off := row + x*3
				for c := 0; c < 3; c++ {
					v := level[c]
					if s.PixelNoise > 0 {
						v += (g.rng.Float64()*2 - 1) * s.PixelNoise
					}
					pix[off+c] = byte(math.Round(math.Max(0, math.Min(255, v))))
				}
			}
		}
	}

	lms := make([]roi.Landmark, len(g.landmarks))
	copy(lms, g.landmarks)
	return Frame{
		TimestampMs: ts,
		Width:       s.Width,
		Height:      s.Height,
		Pixels:      pix,
		Landmarks:   lms,
	}
}
