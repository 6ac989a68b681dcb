package fusion

import "github.com/banshee-data/pulse.report/internal/rppg/roi"

// Config tunes region quality, weighting and band tracking.
type Config struct {
	// Quality blend.
	SignalWeight       float64
	MotionWeight       float64
	SkinWeight         float64
	IlluminationWeight float64
	ContrastWeight     float64
	MotionScale        float64 // face-width fraction per frame giving 1/e motion score
	ContrastFullScale  float64 // luma std mapped to full contrast score

	// Illumination: full score inside [LumaLow, LumaHigh], zero at the
	// floor/ceiling.
	LumaFloor, LumaLow, LumaHigh, LumaCeiling float64

	// Penalties.
	LumaChangeThreshold float64
	LumaChangeScale     float64
	ClippedThreshold    float64
	ClippedPenalty      float64
	SpecularThreshold   float64
	SpecularPenalty     float64
	LowSkinPixels       int
	LowSkinPenalty      float64

	// Weights.
	BaseWeights map[roi.RegionID]float64
	Gamma       float64
	MinWeight   float64
	MaxWeight   float64

	// Tracking.
	TightHalfWidthBPM float64

	HighEscapeMinBPM     float64
	HighEscapeDeltaBPM   float64
	HighEscapePeakRatio  float64
	HighEscapeSignal     float64
	HighEscapeScoreRatio float64

	EscapeScoreRatio  float64
	EscapePeakQuality float64
	EscapeMinDeltaBPM float64
	EscapeTicks       int

	FallbackSignal float64

	PromoteMaxBPM     float64
	PromoteBPMRatio   float64
	PromoteScoreRatio float64
	PromoteQuality    float64
}

// DefaultConfig returns the default fusion tuning.
func DefaultConfig() Config {
	return Config{
		SignalWeight:       0.45,
		MotionWeight:       0.20,
		SkinWeight:         0.15,
		IlluminationWeight: 0.10,
		ContrastWeight:     0.10,
		MotionScale:        0.02,
		ContrastFullScale:  6,

		LumaFloor:   20,
		LumaLow:     60,
		LumaHigh:    200,
		LumaCeiling: 245,

		LumaChangeThreshold: 0.02,
		LumaChangeScale:     0.03,
		ClippedThreshold:    0.10,
		ClippedPenalty:      0.7,
		SpecularThreshold:   0.15,
		SpecularPenalty:     0.7,
		LowSkinPixels:       80,
		LowSkinPenalty:      0.6,

		BaseWeights: map[roi.RegionID]float64{
			roi.Forehead:   1.0,
			roi.LeftCheek:  0.9,
			roi.RightCheek: 0.9,
			roi.Neck:       0.5,
		},
		Gamma:     1.5,
		MinWeight: 0.02,
		MaxWeight: 1,

		TightHalfWidthBPM: 15,

		HighEscapeMinBPM:     100,
		HighEscapeDeltaBPM:   20,
		HighEscapePeakRatio:  2,
		HighEscapeSignal:     0.5,
		HighEscapeScoreRatio: 1.5,

		EscapeScoreRatio:  1.3,
		EscapePeakQuality: 0.35,
		EscapeMinDeltaBPM: 6,
		EscapeTicks:       3,

		FallbackSignal: 0.2,

		PromoteMaxBPM:     65,
		PromoteBPMRatio:   1.6,
		PromoteScoreRatio: 0.7,
		PromoteQuality:    0.3,
	}
}
