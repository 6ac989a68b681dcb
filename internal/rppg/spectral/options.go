package spectral

// Options tunes the heart-rate estimator. Frequencies are in Hz and rates
// in BPM unless the field name says otherwise.
type Options struct {
	RateHz         float64
	BandLowHz      float64 // full physiological band
	BandHighHz     float64
	MinFFTSize     int
	MinDurationSec float64

	// Candidate scoring.
	MinCandidateFraction float64 // local maxima below this fraction of the band maximum are ignored
	Harmonic2Weight      float64 // weight of power(2f)
	HalfHarmonicWeight   float64 // weight of power(f/2)
	PreferredLowBPM      float64
	PreferredHighBPM     float64
	PreferredBoost       float64
	ContinuityStrength   float64 // 0 disables the pull toward the previous BPM
	ContinuityScaleBPM   float64

	// Re-pick near the previous BPM when the winner is not clearly ahead.
	RepickPeakRatio     float64
	RepickWindowBPM     float64
	RepickMinScoreRatio float64

	PeakRatioGood     float64 // peak ratio mapped to full peak quality
	MinSNRHalfWidthHz float64

	// Harmonic cascade, evaluated in this order.
	PromoteMaxBPM      float64 // (a) 2nd harmonic dominance
	PromotePowerRatio  float64
	PromoteSNRMarginDB float64
	HalvePowerRatio    float64 // (b) sub-harmonic stronger
	HalveSNRMarginDB   float64
	RescueMaxBPM       float64 // (c) low lock rescue
	RescuePowerRatio   float64
	RescueSNRMarginDB  float64
	GuardMaxBPM        float64 // (d) subharmonic guard
	GuardPowerRatio    float64
	GuardSNRMarginDB   float64

	ACMinPeakFraction float64 // first autocorrelation peak at this fraction of the max wins
	FusionAgreeBPM    float64
	SNRFullScaleDB    float64 // SNR mapped to 1.0 in the 0-1 score
}

// DefaultOptions returns the default estimator tuning at 30 Hz over
// 0.7-3.0 Hz (42-180 BPM).
func DefaultOptions() Options {
	return Options{
		RateHz:         30,
		BandLowHz:      0.7,
		BandHighHz:     3.0,
		MinFFTSize:     2048,
		MinDurationSec: 3,

		MinCandidateFraction: 0.01,
		Harmonic2Weight:      0.5,
		HalfHarmonicWeight:   0.1,
		PreferredLowBPM:      55,
		PreferredHighBPM:     100,
		PreferredBoost:       1.1,
		ContinuityStrength:   0.3,
		ContinuityScaleBPM:   15,

		RepickPeakRatio:     1.25,
		RepickWindowBPM:     10,
		RepickMinScoreRatio: 0.5,

		PeakRatioGood:     3,
		MinSNRHalfWidthHz: 0.1,

		PromoteMaxBPM:      60,
		PromotePowerRatio:  1.5,
		PromoteSNRMarginDB: 1,
		HalvePowerRatio:    1.1,
		HalveSNRMarginDB:   0.5,
		RescueMaxBPM:       55,
		RescuePowerRatio:   0.6,
		RescueSNRMarginDB:  -1.5,
		GuardMaxBPM:        65,
		GuardPowerRatio:    0.8,
		GuardSNRMarginDB:   -1,

		ACMinPeakFraction: 0.9,
		FusionAgreeBPM:    8,
		SNRFullScaleDB:    15,
	}
}

// Search restricts candidate enumeration to a sub-band. The zero value
// searches the full band.
type Search struct {
	LowHz, HighHz float64
	NoContinuity  bool // ignore the previous BPM when scoring
}
