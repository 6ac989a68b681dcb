package resp

import (
	"math"

	"github.com/banshee-data/pulse.report/internal/rppg/dsp"
)

// TracePoint is one tick of the heart-rate trace.
type TracePoint struct {
	TimestampMs float64
	BPM         float64
}

// Coupling is the lagged correlation between the heart-rate trace and the
// respiration waveform.
type Coupling struct {
	Evaluated bool    `json:"evaluated"`
	R         float64 `json:"r"`
	LagSec    float64 `json:"lag_sec"`
	Coupled   bool    `json:"coupled"`
}

// Couple correlates the trace points inside the coupling window with the
// respiration waveform sampled at the same instants, over lags of up to
// CouplingMaxLagSec. Too few overlapping points or a flat input leave it
// unevaluated.
func Couple(trace []TracePoint, wave dsp.Series, cfg Config) Coupling {
	if len(trace) < cfg.CouplingMinPoints || wave.Len() == 0 {
		return Coupling{}
	}
	end := trace[len(trace)-1].TimestampMs
	start := end - cfg.CouplingWindowSec*1000

	var bpm, breath, ts []float64
	for _, p := range trace {
		if p.TimestampMs < start || !(p.BPM > 0) {
			continue
		}
		v, ok := wave.ValueAt(p.TimestampMs)
		if !ok {
			continue
		}
		bpm = append(bpm, p.BPM)
		breath = append(breath, v)
		ts = append(ts, p.TimestampMs)
	}
	if len(bpm) < cfg.CouplingMinPoints {
		return Coupling{}
	}

	// Lags are counted in trace points; convert with the mean tick spacing.
	spacing := (ts[len(ts)-1] - ts[0]) / float64(len(ts)-1) / 1000
	maxLag := 0
	if spacing > 0 {
		maxLag = int(math.Round(cfg.CouplingMaxLagSec / spacing))
	}
	minOverlap := max(cfg.CouplingMinPoints, len(bpm)-maxLag)
	r, lag, ok := dsp.LaggedCorrelation(bpm, breath, maxLag, min(minOverlap, len(bpm)))
	if !ok {
		return Coupling{}
	}
	return Coupling{
		Evaluated: true,
		R:         r,
		LagSec:    float64(lag) * spacing,
		Coupled:   math.Abs(r) >= cfg.CouplingMinAbsR,
	}
}
