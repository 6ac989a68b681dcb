package rppg

import (
	"math"

	"github.com/banshee-data/pulse.report/internal/rppg/pulse"
	"github.com/banshee-data/pulse.report/internal/rppg/roi"
	"github.com/banshee-data/pulse.report/internal/rppg/sampler"
)

// timeSeries is a time-ordered buffer of scalar samples.
type timeSeries struct {
	ts []float64
	vs []float64
}

func (s *timeSeries) push(tsMs, v float64) {
	s.ts = append(s.ts, tsMs)
	s.vs = append(s.vs, v)
}

// prune drops samples older than cutoffMs.
func (s *timeSeries) prune(cutoffMs float64) {
	i := 0
	for i < len(s.ts) && s.ts[i] < cutoffMs {
		i++
	}
	if i == 0 {
		return
	}
	s.ts = append(s.ts[:0], s.ts[i:]...)
	s.vs = append(s.vs[:0], s.vs[i:]...)
}

func (s *timeSeries) reset() {
	s.ts = s.ts[:0]
	s.vs = s.vs[:0]
}

// regionState is the per-region memory of the engine.
type regionState struct {
	id roi.RegionID

	rect       roi.Rect // EMA-smoothed
	lastCenter roi.Point

	sample       sampler.Sample // diagnostics of the last sampled frame
	lastSampleMs float64
	sampled      bool

	motion     float64 // EMA of centre displacement / face width
	lumaChange float64 // EMA of relative luma change between active frames
	lastLuma   float64

	rgbTs []float64
	rgb   []pulse.RGB
	pulse [2]timeSeries // indexed by pulse.Algorithm
	luma  timeSeries
}

func newRegionState(id roi.RegionID) *regionState {
	return &regionState{id: id}
}

// observe folds one frame's extraction and sample into the state.
func (s *regionState) observe(tsMs float64, region roi.Region, faceWidth float64, pix []byte, width, height int, cfg Config) {
	ec := cfg.Engine
	rect := roi.SmoothRect(s.rect, region.Rect, ec.RectAlpha)
	center := rect.Center()
	if !s.rect.Empty() && faceWidth > 0 {
		d := math.Hypot(center.X-s.lastCenter.X, center.Y-s.lastCenter.Y) / faceWidth
		s.motion = ec.MotionAlpha*d + (1-ec.MotionAlpha)*s.motion
	}
	s.rect = rect
	s.lastCenter = center

	smp := sampler.SampleRegion(pix, width, height, rect, region.Exclusions, cfg.Sampler)
	s.sample = smp
	s.lastSampleMs = tsMs
	s.sampled = true
	if !smp.Active {
		return
	}

	if s.lastLuma > 0 {
		rel := math.Abs(smp.Luma-s.lastLuma) / s.lastLuma
		s.lumaChange = ec.LumaAlpha*rel + (1-ec.LumaAlpha)*s.lumaChange
	}
	s.lastLuma = smp.Luma

	s.rgbTs = append(s.rgbTs, tsMs)
	s.rgb = append(s.rgb, pulse.RGB{smp.R, smp.G, smp.B})
	window := s.rgb
	if n := cfg.Pulse.WindowFrames; n > 0 && len(window) > n {
		window = window[len(window)-n:]
	}
	for _, alg := range pulse.Algorithms {
		if v, ok := pulse.Extract(alg, window, cfg.Pulse); ok {
			s.pulse[alg].push(tsMs, v)
		}
	}
	s.luma.push(tsMs, smp.Luma)
}

// active reports whether the region's latest sample is skin and recent.
func (s *regionState) active(tsMs float64, cfg Config) bool {
	return s.sampled && s.sample.Active && tsMs-s.lastSampleMs <= cfg.Engine.StaleAfterMs
}

func (s *regionState) prune(cutoffMs float64) {
	i := 0
	for i < len(s.rgbTs) && s.rgbTs[i] < cutoffMs {
		i++
	}
	if i > 0 {
		s.rgbTs = append(s.rgbTs[:0], s.rgbTs[i:]...)
		s.rgb = append(s.rgb[:0], s.rgb[i:]...)
	}
	for a := range s.pulse {
		s.pulse[a].prune(cutoffMs)
	}
	s.luma.prune(cutoffMs)
}

func (s *regionState) reset() {
	*s = regionState{id: s.id}
}
