// Package confidence scores how far a fused heart-rate estimate can be
// trusted: cross-algorithm agreement, continuity with the last stable
// value, a physiological rate-of-change prior and the publication quality
// index. Everything here is a pure function of its inputs.
package confidence

import (
	"math"

	"github.com/banshee-data/pulse.report/internal/rppg/dsp"
	"github.com/banshee-data/pulse.report/internal/rppg/spectral"
)

// Config tunes the scores.
type Config struct {
	AgreementSoftBPM     float64
	AgreementHardBPM     float64
	AgreementHardPenalty float64
	AgreementMinSignal   float64 // CHROM signal quality needed to evaluate agreement

	ContinuitySoftBPM  float64
	ContinuityDecayBPM float64

	SignalWeight float64
	PeakWeight   float64
	ACWeight     float64
	RegionWeight float64

	MotionScale         float64
	MotionFloor         float64
	LumaChangeThreshold float64
	LumaChangeScale     float64

	PriorSoftBPMPerSec float64
	PriorHardBPMPerSec float64
	PriorWeight        float64

	PQISignalWeight     float64
	PQIPeakWeight       float64
	PQIRegionWeight     float64
	PQIContinuityWeight float64

	CouplingPenalty float64
}

// DefaultConfig returns the default scoring.
func DefaultConfig() Config {
	return Config{
		AgreementSoftBPM:     5,
		AgreementHardBPM:     15,
		AgreementHardPenalty: 0.6,
		AgreementMinSignal:   0.25,

		ContinuitySoftBPM:  8,
		ContinuityDecayBPM: 15,

		SignalWeight: 0.35,
		PeakWeight:   0.25,
		ACWeight:     0.20,
		RegionWeight: 0.20,

		MotionScale:         0.02,
		MotionFloor:         0.4,
		LumaChangeThreshold: 0.02,
		LumaChangeScale:     0.03,

		PriorSoftBPMPerSec: 2,
		PriorHardBPMPerSec: 6,
		PriorWeight:        0.15,

		PQISignalWeight:     0.35,
		PQIPeakWeight:       0.25,
		PQIRegionWeight:     0.20,
		PQIContinuityWeight: 0.20,

		CouplingPenalty: 0.9,
	}
}

// Agreement compares the POS and CHROM fused estimates.
type Agreement struct {
	Evaluated bool    `json:"evaluated"`
	DeltaBPM  float64 `json:"delta_bpm"`
	Score     float64 `json:"score"`  // 1 within the soft threshold, 0 at the hard one
	Factor    float64 `json:"factor"` // multiplier applied to confidence
}

// Agree scores cross-algorithm agreement. It is only evaluated when both
// estimates exist and CHROM meets AgreementMinSignal; otherwise the
// result is neutral.
func Agree(posBPM float64, posOK bool, chromBPM float64, chrom spectral.Estimate, chromOK bool, cfg Config) Agreement {
	a := Agreement{Score: 1, Factor: 1}
	if !posOK || !chromOK {
		return a
	}
	a.DeltaBPM = math.Abs(posBPM - chromBPM)
	if chrom.SignalQuality < cfg.AgreementMinSignal {
		return a
	}
	a.Evaluated = true
	span := math.Max(cfg.AgreementHardBPM-cfg.AgreementSoftBPM, 1e-9)
	a.Score = dsp.Clamp01(1 - (a.DeltaBPM-cfg.AgreementSoftBPM)/span)
	a.Factor = 0.6 + 0.4*a.Score
	if a.DeltaBPM > cfg.AgreementHardBPM {
		a.Factor *= cfg.AgreementHardPenalty
	}
	return a
}

// Continuity returns 1 while candidate stays within the soft threshold of
// lastStable and decays exponentially beyond it. lastStable <= 0 means no
// history.
func Continuity(candidate, lastStable float64, cfg Config) float64 {
	if lastStable <= 0 || candidate <= 0 {
		return 1
	}
	d := math.Abs(candidate - lastStable)
	if d <= cfg.ContinuitySoftBPM {
		return 1
	}
	return math.Exp(-(d - cfg.ContinuitySoftBPM) / math.Max(cfg.ContinuityDecayBPM, 1e-9))
}

// Prior penalises heart-rate changes faster than the soft BPM/s bound,
// falling off exponentially toward the hard bound.
func Prior(candidate, lastPublished, elapsedSec float64, cfg Config) float64 {
	if lastPublished <= 0 || candidate <= 0 || elapsedSec <= 0 {
		return 1
	}
	rate := math.Abs(candidate-lastPublished) / elapsedSec
	if rate <= cfg.PriorSoftBPMPerSec {
		return 1
	}
	return math.Exp(-(rate - cfg.PriorSoftBPMPerSec) / math.Max(cfg.PriorHardBPMPerSec-cfg.PriorSoftBPMPerSec, 1e-9))
}

// Inputs collects what Evaluate needs for one tick.
type Inputs struct {
	Estimate      spectral.Estimate // chosen fused estimate
	CandidateBPM  float64
	RegionQuality float64 // weight-averaged region quality
	Motion        float64 // mean region motion
	LumaChange    float64 // mean region luma change

	LastStableBPM    float64
	LastPublishedBPM float64
	SincePublishSec  float64

	Agreement       Agreement
	CouplingSuspect bool
}

// Score is the outcome of Evaluate.
type Score struct {
	Confidence   float64 `json:"confidence"`
	PQI          float64 `json:"pqi"`
	Base         float64 `json:"base"`
	Continuity   float64 `json:"continuity"`
	Prior        float64 `json:"prior"`
	MotionFactor float64 `json:"motion_factor"`
	LumaFactor   float64 `json:"luma_factor"`
}

// Evaluate computes confidence and PQI.
func Evaluate(in Inputs, cfg Config) Score {
	est := in.Estimate
	s := Score{
		Continuity:   Continuity(in.CandidateBPM, in.LastStableBPM, cfg),
		Prior:        Prior(in.CandidateBPM, in.LastPublishedBPM, in.SincePublishSec, cfg),
		MotionFactor: 1,
		LumaFactor:   1,
	}
	s.Base = cfg.SignalWeight*est.SignalQuality +
		cfg.PeakWeight*est.PeakQuality +
		cfg.ACWeight*est.ACQuality +
		cfg.RegionWeight*dsp.Clamp01(in.RegionQuality)

	if cfg.MotionScale > 0 {
		s.MotionFactor = math.Max(cfg.MotionFloor, math.Exp(-math.Max(in.Motion, 0)/cfg.MotionScale))
	}
	if cfg.LumaChangeScale > 0 {
		s.LumaFactor = math.Exp(-math.Max(0, in.LumaChange-cfg.LumaChangeThreshold) / cfg.LumaChangeScale)
	}
	agreement := in.Agreement.Factor
	if agreement == 0 && !in.Agreement.Evaluated {
		agreement = 1
	}

	conf := s.Base * s.Continuity * agreement * s.MotionFactor * s.LumaFactor
	conf *= 1 - cfg.PriorWeight + cfg.PriorWeight*s.Prior
	if in.CouplingSuspect {
		conf *= cfg.CouplingPenalty
	}
	s.Confidence = dsp.Clamp01(conf)

	s.PQI = dsp.Clamp01(cfg.PQISignalWeight*est.SignalQuality +
		cfg.PQIPeakWeight*est.PeakQuality +
		cfg.PQIRegionWeight*dsp.Clamp01(in.RegionQuality) +
		cfg.PQIContinuityWeight*s.Continuity)
	return s
}
