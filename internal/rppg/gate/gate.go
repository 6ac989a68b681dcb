package gate

import (
	"math"

	"github.com/banshee-data/pulse.report/internal/rppg/dsp"
	"github.com/banshee-data/pulse.report/internal/rppg/spectral"
)

// States.
const (
	StateAcquiring        = "acquiring"
	StateCandidatePending = "candidate_pending"
	StatePublished        = "published"
	StateHolding          = "holding"
)

// Reason codes. Failures reported while a value is held carry HoldPrefix.
const (
	ReasonOK               = "ok"
	ReasonNoBPM            = "no_bpm"
	ReasonLowConf          = "low_conf"
	ReasonLowSNR           = "low_snr"
	ReasonLowAgreement     = "low_agreement"
	ReasonLowPQI           = "low_pqi"
	ReasonSubharmonicGuard = "subharmonic_guard"
	ReasonRespCoupling     = "resp_coupling"
	ReasonStreak           = "streak"
	ReasonUnstable         = "unstable"
	ReasonDeltaLimit       = "delta_limit"
	ReasonUpshiftGuard     = "upshift_guard"
	ReasonDownshiftGuard   = "downshift_guard"
	ReasonPhysioLimit      = "physio_limit"

	HoldPrefix = "hold_"
)

// Config holds the publication thresholds.
type Config struct {
	MinConfidence        float64
	MinSNRdB             float64
	MaxAgreementDeltaBPM float64
	MinPQI               float64

	StreakLength int
	MaxStdBPM    float64
	MaxStepBPM   float64

	HoldWindowSec float64

	ShiftDeltaBPM     float64
	ShiftMinSNRdB     float64
	ShiftMinPeakRatio float64
	ShiftMinQuality   float64 // signal quality, confidence and PQI

	PhysioBaseBPM   float64
	PhysioBPMPerSec float64

	RescueMaxBPM       float64
	RescueToleranceBPM float64
	RescueMinSignal    float64
	RescueMinPeakRatio float64

	SubharmonicMinPowerRatio float64
	SubharmonicMinSNRDeltaDB float64
	SubharmonicFraction      float64

	RespDropBPM float64
}

// DefaultConfig returns the default gate thresholds.
func DefaultConfig() Config {
	return Config{
		MinConfidence:        0.3,
		MinSNRdB:             3,
		MaxAgreementDeltaBPM: 12,
		MinPQI:               0.3,

		StreakLength: 3,
		MaxStdBPM:    4,
		MaxStepBPM:   8,

		HoldWindowSec: 10,

		ShiftDeltaBPM:     15,
		ShiftMinSNRdB:     6,
		ShiftMinPeakRatio: 1.8,
		ShiftMinQuality:   0.5,

		PhysioBaseBPM:   6,
		PhysioBPMPerSec: 4,

		RescueMaxBPM:       60,
		RescueToleranceBPM: 8,
		RescueMinSignal:    0.4,
		RescueMinPeakRatio: 1.3,

		SubharmonicMinPowerRatio: 0.5,
		SubharmonicMinSNRDeltaDB: -3,
		SubharmonicFraction:      0.75,

		RespDropBPM: 15,
	}
}

// Input is everything the gate looks at for one tick.
type Input struct {
	TimestampMs  float64
	HasCandidate bool
	CandidateBPM float64

	Confidence    float64
	PQI           float64
	SNRdB         float64
	PeakRatio     float64
	SignalQuality float64

	AgreementEvaluated bool
	AgreementDeltaBPM  float64

	AltHigh spectral.Alternate // doubled candidate of the chosen estimate

	FullValid     bool // full-band search of the primary algorithm
	FullBPM       float64
	FullSignal    float64
	FullPeakRatio float64

	RespEvaluated bool // coupling could be measured
	RespCoupled   bool
}

// Decision is the gate's verdict for one tick. BPM is the published or
// held value, zero when there is none.
type Decision struct {
	State        string  `json:"state"`
	Reason       string  `json:"reason"`
	Published    bool    `json:"published"`
	Held         bool    `json:"held"`
	BPM          float64 `json:"bpm"`
	CandidateBPM float64 `json:"candidate_bpm"` // after any rescue
	Rescued      bool    `json:"rescued"`
	Streak       int     `json:"streak"`
	Pending      int     `json:"pending"`
}

// Gate decides per tick whether to publish, hold or stay silent. It is
// not safe for concurrent use.
type Gate struct {
	cfg Config

	history []float64 // accepted consecutive candidates
	pending []float64 // run of rejected outliers that may become the new level

	lastPublished   float64
	lastPublishedMs float64
	published       bool
}

// New returns a gate in the acquiring state.
func New(cfg Config) *Gate {
	return &Gate{cfg: cfg}
}

// SetConfig replaces the thresholds, keeping state.
func (g *Gate) SetConfig(cfg Config) { g.cfg = cfg }

// Reset returns the gate to acquiring and forgets the published value.
func (g *Gate) Reset() {
	*g = Gate{cfg: g.cfg}
}

// LastPublished returns the last published BPM and its timestamp.
func (g *Gate) LastPublished() (bpm, tsMs float64, ok bool) {
	return g.lastPublished, g.lastPublishedMs, g.published
}

// Evaluate runs one tick.
func (g *Gate) Evaluate(in Input) Decision {
	cfg := g.cfg
	if !in.HasCandidate || !(in.CandidateBPM > 0) {
		g.breakStreak()
		return g.fail(in, ReasonNoBPM, 0, false)
	}

	cand := in.CandidateBPM
	rescued := false
	if cand <= cfg.RescueMaxBPM && in.FullValid &&
		math.Abs(in.FullBPM-2*cand) <= cfg.RescueToleranceBPM &&
		in.FullSignal >= cfg.RescueMinSignal && in.FullPeakRatio >= cfg.RescueMinPeakRatio {
		cand, rescued = in.FullBPM, true
	}

	if reason := g.sampleCheck(in, cand, rescued); reason != "" {
		g.breakStreak()
		return g.fail(in, reason, cand, rescued)
	}
	if reason := g.streakCheck(cand); reason != "" {
		return g.fail(in, reason, cand, rescued)
	}
	if g.current(in.TimestampMs) {
		if reason := g.rateCheck(in, cand); reason != "" {
			return g.fail(in, reason, cand, rescued)
		}
	}

	g.lastPublished = cand
	g.lastPublishedMs = in.TimestampMs
	g.published = true
	g.pending = nil
	return Decision{
		State:        StatePublished,
		Reason:       ReasonOK,
		Published:    true,
		BPM:          cand,
		CandidateBPM: cand,
		Rescued:      rescued,
		Streak:       len(g.history),
	}
}

func (g *Gate) sampleCheck(in Input, cand float64, rescued bool) string {
	cfg := g.cfg
	if !rescued && in.AltHigh.Valid &&
		in.AltHigh.PowerRatio >= cfg.SubharmonicMinPowerRatio &&
		in.AltHigh.SNRDeltaDB >= cfg.SubharmonicMinSNRDeltaDB &&
		cand < cfg.SubharmonicFraction*in.AltHigh.BPM {
		return ReasonSubharmonicGuard
	}
	switch {
	case in.Confidence < cfg.MinConfidence:
		return ReasonLowConf
	case in.SNRdB < cfg.MinSNRdB:
		return ReasonLowSNR
	case in.AgreementEvaluated && in.AgreementDeltaBPM > cfg.MaxAgreementDeltaBPM:
		return ReasonLowAgreement
	case in.PQI < cfg.MinPQI:
		return ReasonLowPQI
	case in.RespEvaluated && !in.RespCoupled && g.current(in.TimestampMs) &&
		cand < g.lastPublished-cfg.RespDropBPM:
		return ReasonRespCoupling
	}
	return ""
}

// streakCheck appends cand to the accepted run when it is consistent
// with it. An inconsistent value starts or extends the pending run, which
// replaces the accepted run once it is itself long and stable.
func (g *Gate) streakCheck(cand float64) string {
	cfg := g.cfg
	n := max(cfg.StreakLength, 1)

	reason := g.accept(cand)
	if reason != "" {
		if len(g.pending) > 0 && math.Abs(cand-g.pending[len(g.pending)-1]) <= cfg.MaxStepBPM {
			g.pending = append(g.pending, cand)
		} else {
			g.pending = []float64{cand}
		}
		if len(g.pending) < n || dsp.StdDev(g.pending) > cfg.MaxStdBPM {
			return reason
		}
		g.history = append(g.history[:0], g.pending...)
		g.pending = nil
	}
	if len(g.history) > 2*n {
		g.history = append(g.history[:0], g.history[len(g.history)-2*n:]...)
	}
	if len(g.history) < n {
		return ReasonStreak
	}
	return ""
}

func (g *Gate) accept(cand float64) string {
	cfg := g.cfg
	if len(g.history) == 0 {
		g.history = append(g.history, cand)
		return ""
	}
	if math.Abs(cand-g.history[len(g.history)-1]) > cfg.MaxStepBPM {
		return ReasonDeltaLimit
	}
	tail := g.history[max(0, len(g.history)-max(cfg.StreakLength, 1)+1):]
	window := append(append([]float64(nil), tail...), cand)
	if dsp.StdDev(window) > cfg.MaxStdBPM {
		return ReasonUnstable
	}
	g.history = append(g.history, cand)
	return ""
}

func (g *Gate) rateCheck(in Input, cand float64) string {
	cfg := g.cfg
	delta := cand - g.lastPublished
	if math.Abs(delta) >= cfg.ShiftDeltaBPM {
		strong := in.SNRdB >= cfg.ShiftMinSNRdB &&
			in.PeakRatio >= cfg.ShiftMinPeakRatio &&
			in.SignalQuality >= cfg.ShiftMinQuality &&
			in.Confidence >= cfg.ShiftMinQuality &&
			in.PQI >= cfg.ShiftMinQuality
		if !strong {
			if delta > 0 {
				return ReasonUpshiftGuard
			}
			return ReasonDownshiftGuard
		}
	}
	elapsed := math.Max(0, (in.TimestampMs-g.lastPublishedMs)/1000)
	if math.Abs(delta) > cfg.PhysioBaseBPM+cfg.PhysioBPMPerSec*elapsed {
		return ReasonPhysioLimit
	}
	return ""
}

// current reports whether a published value exists and is inside the hold
// window at tsMs.
func (g *Gate) current(tsMs float64) bool {
	return g.published && tsMs-g.lastPublishedMs <= g.cfg.HoldWindowSec*1000
}

func (g *Gate) breakStreak() {
	g.history = g.history[:0]
	g.pending = nil
}

func (g *Gate) fail(in Input, reason string, cand float64, rescued bool) Decision {
	d := Decision{
		Reason:       reason,
		CandidateBPM: cand,
		Rescued:      rescued,
		Streak:       len(g.history),
		Pending:      len(g.pending),
	}
	switch {
	case g.current(in.TimestampMs):
		d.State = StateHolding
		d.Held = true
		d.BPM = g.lastPublished
		d.Reason = HoldPrefix + reason
	case len(g.history) > 0:
		d.State = StateCandidatePending
	default:
		d.State = StateAcquiring
	}
	return d
}
