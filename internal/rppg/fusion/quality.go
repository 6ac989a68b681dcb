package fusion

import (
	"math"

	"github.com/banshee-data/pulse.report/internal/rppg/dsp"
	"github.com/banshee-data/pulse.report/internal/rppg/roi"
	"github.com/banshee-data/pulse.report/internal/rppg/sampler"
)

// RegionInput is one region's contribution to a tick.
type RegionInput struct {
	ID         roi.RegionID
	Active     bool      // sampled skin and enough resampled points
	Waveform   []float64 // band-filtered, fixed rate, aligned at the tail
	Sample     sampler.Sample
	Motion     float64 // smoothed centre displacement / face width
	LumaChange float64 // smoothed relative luma change per frame
}

// RegionQuality scores how trustworthy a region is, given the spectral
// signal quality of its own waveform.
func RegionQuality(in RegionInput, signalQuality float64, cfg Config) float64 {
	s := in.Sample
	motion := 1.0
	if cfg.MotionScale > 0 {
		motion = math.Exp(-math.Max(in.Motion, 0) / cfg.MotionScale)
	}
	contrast := 0.0
	if cfg.ContrastFullScale > 0 {
		contrast = dsp.Clamp01(s.LumaStd / cfg.ContrastFullScale)
	}
	q := cfg.SignalWeight*dsp.Clamp01(signalQuality) +
		cfg.MotionWeight*motion +
		cfg.SkinWeight*dsp.Clamp01(s.SkinRatio) +
		cfg.IlluminationWeight*illumination(s.Luma, cfg) +
		cfg.ContrastWeight*contrast

	if in.LumaChange > cfg.LumaChangeThreshold && cfg.LumaChangeScale > 0 {
		q *= math.Exp(-(in.LumaChange - cfg.LumaChangeThreshold) / cfg.LumaChangeScale)
	}
	if s.ClippedRatio > cfg.ClippedThreshold {
		q *= cfg.ClippedPenalty
	}
	if s.SpecularRatio > cfg.SpecularThreshold {
		q *= cfg.SpecularPenalty
	}
	if s.SkinPixels < cfg.LowSkinPixels {
		q *= cfg.LowSkinPenalty
	}
	return dsp.Clamp01(q)
}

func illumination(luma float64, cfg Config) float64 {
	switch {
	case luma >= cfg.LumaLow && luma <= cfg.LumaHigh:
		return 1
	case luma < cfg.LumaLow:
		return dsp.Clamp01((luma - cfg.LumaFloor) / math.Max(cfg.LumaLow-cfg.LumaFloor, 1e-9))
	default:
		return dsp.Clamp01((cfg.LumaCeiling - luma) / math.Max(cfg.LumaCeiling-cfg.LumaHigh, 1e-9))
	}
}

// Weights maps region qualities to mixing weights: base·q^gamma clamped to
// [MinWeight, MaxWeight] and renormalised over active regions. Inactive
// regions get exactly zero.
func Weights(ids []roi.RegionID, active []bool, quality []float64, cfg Config) []float64 {
	w := make([]float64, len(ids))
	var sum float64
	for i, id := range ids {
		if !active[i] {
			continue
		}
		base, ok := cfg.BaseWeights[id]
		if !ok {
			base = 1
		}
		w[i] = dsp.Clamp(base*math.Pow(dsp.Clamp01(quality[i]), cfg.Gamma), cfg.MinWeight, cfg.MaxWeight)
		sum += w[i]
	}
	if sum <= 0 {
		return w
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}
