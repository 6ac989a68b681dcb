// Package session accumulates per-tick heart-rate outputs over a session
// and summarises them with an outlier-robust range.
package session

import (
	"math"

	"github.com/banshee-data/pulse.report/internal/rppg/dsp"
)

// Config bounds the aggregator.
type Config struct {
	MaxSamples int     // 0 keeps every sample; otherwise the oldest are dropped
	MADCut     float64 // points farther than MADCut x MAD from the median are excluded
}

// DefaultConfig returns an unbounded aggregator with a 3x MAD cut.
func DefaultConfig() Config {
	return Config{MADCut: 3}
}

// Sample is one tick's reportable output.
type Sample struct {
	TimestampMs float64 `json:"t_ms"`
	Published   bool    `json:"published"`
	Held        bool    `json:"held"`
	Reason      string  `json:"reason"`
	BPM         float64 `json:"bpm"` // published or held value, 0 when none
	SmoothedBPM float64 `json:"smoothed_bpm"`
	Confidence  float64 `json:"confidence"`
	RespRateBPM float64 `json:"resp_rate_bpm"`
}

// Range is a robust min/max. Min and Max are nil when no point remains.
type Range struct {
	Min      *float64 `json:"min"`
	Max      *float64 `json:"max"`
	Count    int      `json:"count"`    // points retained
	Excluded int      `json:"excluded"` // points rejected as outliers
}

// Ranges holds the two summarised series: every tick reporting a value
// (published or held), and published ticks only.
type Ranges struct {
	Hold      Range `json:"hold"`
	Published Range `json:"published"`
}

// Info describes the session span.
type Info struct {
	StartMs     float64 `json:"start_ms"`
	EndMs       float64 `json:"end_ms"`
	SampleCount int     `json:"sample_count"`
}

// Export is the finalised, JSON-serialisable session summary.
type Export struct {
	Session  Info     `json:"session"`
	RangeBPM Ranges   `json:"range_bpm"`
	Samples  []Sample `json:"samples"`
}

// Aggregator collects samples in push order. It is not safe for
// concurrent use.
type Aggregator struct {
	cfg     Config
	samples []Sample
	startMs float64
	started bool
}

// New returns an empty aggregator.
func New(cfg Config) *Aggregator {
	return &Aggregator{cfg: cfg}
}

// SetConfig replaces the configuration, trimming to a smaller cap.
func (a *Aggregator) SetConfig(cfg Config) {
	a.cfg = cfg
	a.trim()
}

// Push appends a sample.
func (a *Aggregator) Push(s Sample) {
	if !a.started {
		a.startMs = s.TimestampMs
		a.started = true
	}
	a.samples = append(a.samples, s)
	a.trim()
}

func (a *Aggregator) trim() {
	if a.cfg.MaxSamples > 0 && len(a.samples) > a.cfg.MaxSamples {
		a.samples = append(a.samples[:0], a.samples[len(a.samples)-a.cfg.MaxSamples:]...)
	}
}

// Len returns the number of retained samples.
func (a *Aggregator) Len() int { return len(a.samples) }

// Reset discards every sample.
func (a *Aggregator) Reset() {
	a.samples = nil
	a.started = false
	a.startMs = 0
}

// Finalize summarises the session. It does not modify the aggregator, so
// repeated calls without an intervening Push return equal exports.
func (a *Aggregator) Finalize() Export {
	exp := Export{
		Session: Info{SampleCount: len(a.samples)},
		Samples: make([]Sample, len(a.samples)),
	}
	copy(exp.Samples, a.samples)
	if len(a.samples) == 0 {
		return exp
	}
	exp.Session.StartMs = a.startMs
	exp.Session.EndMs = a.samples[len(a.samples)-1].TimestampMs

	var hold, pub []float64
	for _, s := range a.samples {
		if !(s.BPM > 0) {
			continue
		}
		if s.Published || s.Held {
			hold = append(hold, s.BPM)
		}
		if s.Published {
			pub = append(pub, s.BPM)
		}
	}
	exp.RangeBPM.Hold = RobustRange(hold, a.cfg.MADCut)
	exp.RangeBPM.Published = RobustRange(pub, a.cfg.MADCut)
	return exp
}

// RobustRange returns the min/max of values after excluding points more
// than cut x MAD from the median. A zero MAD falls back to the mean
// absolute deviation; if that is zero too every point is kept.
func RobustRange(values []float64, cut float64) Range {
	if len(values) == 0 {
		return Range{}
	}
	med, scale := dsp.MAD(values)
	if scale == 0 {
		scale = dsp.MeanAbsDev(values, med)
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	var r Range
	for _, v := range values {
		if scale > 0 && math.Abs(v-med) > cut*scale {
			r.Excluded++
			continue
		}
		r.Count++
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if r.Count > 0 {
		r.Min, r.Max = &lo, &hi
	}
	return r
}
