package fusion

import (
	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/pulse.report/internal/rppg/dsp"
	"github.com/banshee-data/pulse.report/internal/rppg/roi"
	"github.com/banshee-data/pulse.report/internal/rppg/spectral"
)

// RegionResult reports one region's part in an algorithm's fusion.
type RegionResult struct {
	ID            roi.RegionID `json:"id"`
	Active        bool         `json:"active"`
	BPM           float64      `json:"bpm"`
	SignalQuality float64      `json:"signal_quality"`
	Quality       float64      `json:"quality"`
	Weight        float64      `json:"weight"`
}

// AlgorithmOutput is one projection's fused result for a tick.
type AlgorithmOutput struct {
	Algorithm   string            `json:"algorithm"`
	Valid       bool              `json:"valid"`
	BPM         float64           `json:"bpm"`
	Estimate    spectral.Estimate `json:"estimate"`
	Regions     []RegionResult    `json:"regions"`
	MeanQuality float64           `json:"mean_quality"` // weight-averaged region quality
	Tracking    Tracking          `json:"tracking"`
	Mix         []float64         `json:"-"`
}

// Mix z-scores each waveform and sums them by weight. Waveforms are
// aligned at their last sample and the mix has the length of the shortest
// weighted one. Nil when no waveform has positive weight.
func Mix(waves [][]float64, weights []float64) []float64 {
	n := -1
	for i, w := range waves {
		if weights[i] <= 0 || len(w) == 0 {
			continue
		}
		if n < 0 || len(w) < n {
			n = len(w)
		}
	}
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	for i, w := range waves {
		if weights[i] <= 0 || len(w) == 0 {
			continue
		}
		floats.AddScaled(out, weights[i], dsp.ZScore(w[len(w)-n:]))
	}
	return out
}

// Fuse scores each region, mixes the active waveforms and tracks the
// heart rate of the mix against prevBPM (<= 0 for none).
func Fuse(name string, inputs []RegionInput, prevBPM float64, tracker *Tracker, opts spectral.Options, cfg Config) AlgorithmOutput {
	out := AlgorithmOutput{Algorithm: name, Regions: make([]RegionResult, len(inputs))}
	ids := make([]roi.RegionID, len(inputs))
	active := make([]bool, len(inputs))
	quality := make([]float64, len(inputs))
	waves := make([][]float64, len(inputs))

	for i, in := range inputs {
		ids[i] = in.ID
		out.Regions[i] = RegionResult{ID: in.ID}
		if !in.Active || len(in.Waveform) == 0 {
			continue
		}
		est := spectral.Analyze(in.Waveform, prevBPM, spectral.Search{}, opts)
		active[i] = true
		waves[i] = in.Waveform
		quality[i] = RegionQuality(in, est.SignalQuality, cfg)
		out.Regions[i] = RegionResult{
			ID:            in.ID,
			Active:        true,
			BPM:           est.BPM,
			SignalQuality: est.SignalQuality,
			Quality:       quality[i],
		}
	}

	weights := Weights(ids, active, quality, cfg)
	for i := range out.Regions {
		out.Regions[i].Weight = weights[i]
		out.MeanQuality += weights[i] * quality[i]
	}

	out.Mix = Mix(waves, weights)
	if out.Mix == nil {
		tracker.Reset()
		out.Tracking = Tracking{PrevBPM: prevBPM, Choice: ChoiceNone}
		return out
	}
	out.Tracking = tracker.Track(out.Mix, prevBPM, opts, cfg)
	if est, ok := out.Tracking.Chosen(); ok {
		out.Valid = true
		out.BPM = est.BPM
		out.Estimate = est
	}
	return out
}
