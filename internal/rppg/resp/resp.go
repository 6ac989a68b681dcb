// Package resp estimates breathing rate from the region-weighted luminance
// signal and measures how strongly the heart-rate trace follows it.
package resp

import (
	"math"

	"github.com/banshee-data/pulse.report/internal/rppg/dsp"
	"github.com/banshee-data/pulse.report/internal/units"
)

// Config tunes the respiration estimator and the coupling check.
type Config struct {
	RateHz         float64
	WindowSec      float64
	LowHz          float64
	HighHz         float64
	MinDurationSec float64
	MinFFTSize     int
	MinConfidence  float64
	HistoryLength  int
	PeakRatioGood  float64
	SNRFullScaleDB float64

	CouplingWindowSec float64
	CouplingMinPoints int
	CouplingMaxLagSec float64
	CouplingMinAbsR   float64
}

// DefaultConfig returns the default respiration tuning: 10 Hz over a 20 s
// window, 0.1-0.5 Hz (6-30 breaths per minute).
func DefaultConfig() Config {
	return Config{
		RateHz:         10,
		WindowSec:      20,
		LowHz:          0.1,
		HighHz:         0.5,
		MinDurationSec: 8,
		MinFFTSize:     512,
		MinConfidence:  0.3,
		HistoryLength:  5,
		PeakRatioGood:  3,
		SNRFullScaleDB: 10,

		CouplingWindowSec: 20,
		CouplingMinPoints: 8,
		CouplingMaxLagSec: 2,
		CouplingMinAbsR:   0.3,
	}
}

// Estimate is one spectral reading of the breathing band.
type Estimate struct {
	Valid      bool    `json:"valid"`
	RateBPM    float64 `json:"rate_bpm"` // breaths per minute
	PeakRatio  float64 `json:"peak_ratio"`
	SNRdB      float64 `json:"snr_db"`
	Confidence float64 `json:"confidence"`
}

// EstimateRate finds the dominant breathing frequency of a luminance
// waveform sampled at cfg.RateHz. The waveform is band-limited here.
func EstimateRate(x []float64, cfg Config) Estimate {
	if cfg.RateHz <= 0 || len(x) < 4 || float64(len(x)-1)/cfg.RateHz < cfg.MinDurationSec {
		return Estimate{}
	}
	filtered := dsp.Bandpass(x, cfg.RateHz, cfg.LowHz, cfg.HighHz)
	spec := dsp.PowerSpectrum(filtered, cfg.RateHz, cfg.MinFFTSize)
	lo, hi := spec.BandBins(cfg.LowHz, cfg.HighHz)
	if hi < lo {
		return Estimate{}
	}

	peaks := spec.LocalMaxima(lo, hi)
	best, second := -1, -1
	for _, k := range peaks {
		switch {
		case best < 0 || spec.Power[k] > spec.Power[best]:
			best, second = k, best
		case second < 0 || spec.Power[k] > spec.Power[second]:
			second = k
		}
	}
	if best < 0 || spec.Power[best] <= 0 {
		return Estimate{}
	}

	f := spec.RefinePeak(best)
	est := Estimate{Valid: true, RateBPM: units.HzToBPM(f), PeakRatio: 100}
	if second >= 0 && spec.Power[second] > 0 {
		est.PeakRatio = math.Min(spec.Power[best]/spec.Power[second], 100)
	}
	halfWidth := math.Max(0.03, spec.MainLobeHz()/2)
	est.SNRdB = dsp.ToDB(spec.SNR(f, halfWidth, cfg.LowHz, cfg.HighHz))
	est.Confidence = 0.5*dsp.Clamp01((est.PeakRatio-1)/math.Max(cfg.PeakRatioGood-1, 1e-9)) +
		0.5*dsp.Clamp01(est.SNRdB/cfg.SNRFullScaleDB)
	return est
}

// Reading is the smoothed respiration output of one tick.
type Reading struct {
	Raw        Estimate `json:"raw"`
	RateBPM    float64  `json:"rate_bpm"` // median-smoothed, 0 before the first confident reading
	Confidence float64  `json:"confidence"`
	Held       bool     `json:"held"` // RateBPM is the previous value
}

// Estimator keeps the median history of confident readings.
type Estimator struct {
	history []float64
	last    float64
}

// Reset clears the history.
func (e *Estimator) Reset() {
	e.history = e.history[:0]
	e.last = 0
}

// Update estimates the rate of x and folds confident readings into the
// history; otherwise the last smoothed value is held.
func (e *Estimator) Update(x []float64, cfg Config) Reading {
	raw := EstimateRate(x, cfg)
	r := Reading{Raw: raw, Confidence: raw.Confidence}
	if !raw.Valid || raw.Confidence < cfg.MinConfidence {
		r.RateBPM = e.last
		r.Held = e.last > 0
		return r
	}
	e.history = append(e.history, raw.RateBPM)
	if n := max(cfg.HistoryLength, 1); len(e.history) > n {
		e.history = append(e.history[:0], e.history[len(e.history)-n:]...)
	}
	e.last = dsp.Median(e.history)
	r.RateBPM = e.last
	return r
}
