package fusion

import (
	"math"

	"github.com/banshee-data/pulse.report/internal/rppg/spectral"
	"github.com/banshee-data/pulse.report/internal/units"
)

// Tracking choices.
const (
	ChoiceNone         = "none"
	ChoiceFull         = "full"          // no previous BPM, full band only
	ChoiceTight        = "tight"         // tight band accepted
	ChoiceFullFallback = "full_fallback" // tight band unusable
	ChoiceHighEscape   = "high_escape"   // clearly dominant high-BPM full-band peak
	ChoiceEscape       = "escape"        // full band won EscapeTicks in a row
	ChoiceLowPromotion = "low_promotion" // low tight pick upgraded to the full-band pick
)

// Tracking records how the fused BPM was chosen.
type Tracking struct {
	PrevBPM     float64           `json:"prev_bpm"`
	EscapeCount int               `json:"escape_count"`
	Tight       spectral.Estimate `json:"tight"`
	Full        spectral.Estimate `json:"full"`
	Choice      string            `json:"choice"`
}

// Chosen returns the selected estimate.
func (t Tracking) Chosen() (spectral.Estimate, bool) {
	switch t.Choice {
	case ChoiceTight:
		return t.Tight, t.Tight.Valid
	case ChoiceNone, "":
		return spectral.Estimate{}, false
	default:
		return t.Full, t.Full.Valid
	}
}

// Tracker holds the escape counter for one algorithm across ticks.
type Tracker struct {
	escape int
}

// Reset clears the escape counter.
func (t *Tracker) Reset() { t.escape = 0 }

// EscapeCount returns the consecutive ticks the full band has beaten the
// tight band.
func (t *Tracker) EscapeCount() int { return t.escape }

// Track estimates the mix on the full band and, when prevBPM > 0, on a
// tight band around it, then chooses between them. Escape rules are
// evaluated before low-candidate promotion.
func (t *Tracker) Track(mix []float64, prevBPM float64, opts spectral.Options, cfg Config) Tracking {
	rec := Tracking{PrevBPM: prevBPM}
	rec.Full = spectral.Analyze(mix, prevBPM, spectral.Search{NoContinuity: true}, opts)

	if prevBPM <= 0 {
		t.escape = 0
		rec.Choice = choiceIf(rec.Full.Valid, ChoiceFull)
		return rec
	}

	rec.Tight = spectral.Analyze(mix, prevBPM, spectral.Search{
		LowHz:  units.BPMToHz(prevBPM - cfg.TightHalfWidthBPM),
		HighHz: units.BPMToHz(prevBPM + cfg.TightHalfWidthBPM),
	}, opts)
	rec.Choice = t.choose(rec.Tight, rec.Full, cfg)
	rec.EscapeCount = t.escape
	return rec
}

// choose picks between the tight and full band estimates and advances the
// escape counter.
func (t *Tracker) choose(tight, full spectral.Estimate, cfg Config) string {
	switch {
	case !tight.Valid && !full.Valid:
		t.escape = 0
		return ChoiceNone
	case !tight.Valid:
		t.escape = 0
		return ChoiceFullFallback
	case !full.Valid:
		t.escape = 0
		return ChoiceTight
	}

	scoreRatio := math.Inf(1)
	if tight.RawScore > 0 {
		scoreRatio = full.RawScore / tight.RawScore
	}
	delta := math.Abs(full.BPM - tight.BPM)

	if full.BPM >= cfg.HighEscapeMinBPM &&
		full.BPM-tight.BPM >= cfg.HighEscapeDeltaBPM &&
		full.PeakRatio >= cfg.HighEscapePeakRatio &&
		full.SignalQuality >= cfg.HighEscapeSignal &&
		scoreRatio >= cfg.HighEscapeScoreRatio {
		t.escape = 0
		return ChoiceHighEscape
	}

	if scoreRatio >= cfg.EscapeScoreRatio && full.PeakQuality >= cfg.EscapePeakQuality && delta > cfg.EscapeMinDeltaBPM {
		t.escape++
	} else {
		t.escape = 0
	}
	if t.escape >= cfg.EscapeTicks {
		t.escape = 0
		return ChoiceEscape
	}
	if tight.SignalQuality < cfg.FallbackSignal {
		return ChoiceFullFallback
	}

	if tight.BPM <= cfg.PromoteMaxBPM &&
		full.BPM >= cfg.PromoteBPMRatio*tight.BPM &&
		full.RawScore >= cfg.PromoteScoreRatio*tight.RawScore &&
		full.PeakQuality >= cfg.PromoteQuality &&
		full.SignalQuality >= cfg.PromoteQuality {
		return ChoiceLowPromotion
	}
	return ChoiceTight
}

func choiceIf(ok bool, choice string) string {
	if ok {
		return choice
	}
	return ChoiceNone
}
