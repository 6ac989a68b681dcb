package rppg

import (
	"errors"
	"fmt"

	"github.com/banshee-data/pulse.report/internal/config"
	"github.com/banshee-data/pulse.report/internal/rppg/confidence"
	"github.com/banshee-data/pulse.report/internal/rppg/fusion"
	"github.com/banshee-data/pulse.report/internal/rppg/gate"
	"github.com/banshee-data/pulse.report/internal/rppg/pulse"
	"github.com/banshee-data/pulse.report/internal/rppg/resp"
	"github.com/banshee-data/pulse.report/internal/rppg/roi"
	"github.com/banshee-data/pulse.report/internal/rppg/sampler"
	"github.com/banshee-data/pulse.report/internal/rppg/session"
	"github.com/banshee-data/pulse.report/internal/rppg/spectral"
)

// SignalConfig sizes the heart-rate analysis window. The resampling rate
// and band edges live in Spectral so the filter and the estimator agree.
type SignalConfig struct {
	WindowSec float64
	MinPoints int // resampled points a region needs to take part in a tick
}

// EngineConfig holds the engine's own timing and smoothing knobs.
type EngineConfig struct {
	MinTickIntervalMs float64
	BufferSlackSec    float64 // kept beyond the longest analysis window
	StaleAfterMs      float64 // a region whose last sample is older is inactive
	SmoothingLength   int     // raw BPM ticks in the running median

	RectAlpha   float64 // region rectangle EMA
	MotionAlpha float64
	LumaAlpha   float64
}

// Config is the complete engine configuration.
type Config struct {
	Engine      EngineConfig
	Regions     roi.Config
	Sampler     sampler.Config
	Pulse       pulse.Config
	Signal      SignalConfig
	Spectral    spectral.Options
	Fusion      fusion.Config
	Confidence  confidence.Config
	Gate        gate.Config
	Respiration resp.Config
	Session     session.Config
}

// DefaultConfig returns the documented defaults of every subsystem.
func DefaultConfig() Config {
	return Config{
		Engine: EngineConfig{
			MinTickIntervalMs: 500,
			BufferSlackSec:    2,
			StaleAfterMs:      1000,
			SmoothingLength:   5,
			RectAlpha:         0.5,
			MotionAlpha:       0.3,
			LumaAlpha:         0.3,
		},
		Regions:     roi.DefaultConfig(),
		Sampler:     sampler.DefaultConfig(),
		Pulse:       pulse.DefaultConfig(),
		Signal:      SignalConfig{WindowSec: 10, MinPoints: 90},
		Spectral:    spectral.DefaultOptions(),
		Fusion:      fusion.DefaultConfig(),
		Confidence:  confidence.DefaultConfig(),
		Gate:        gate.DefaultConfig(),
		Respiration: resp.DefaultConfig(),
		Session:     session.DefaultConfig(),
	}
}

// ConfigFromTuning applies a tuning document on top of the defaults. A nil
// document yields the defaults.
func ConfigFromTuning(t *config.TuningConfig) (Config, error) {
	cfg := DefaultConfig()
	if t == nil {
		return cfg, nil
	}
	if err := t.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid tuning: %w", err)
	}

	cfg.Engine.MinTickIntervalMs = float64(t.GetMinTickInterval().Milliseconds())
	cfg.Signal.WindowSec = t.GetWindowSec()
	cfg.Spectral.RateHz = t.GetSampleRateHz()
	cfg.Spectral.BandLowHz = t.GetHRLowHz()
	cfg.Spectral.BandHighHz = t.GetHRHighHz()
	cfg.Fusion.TightHalfWidthBPM = t.GetTightHalfWidthBPM()

	cfg.Sampler.Stride = t.GetSamplerStride()
	cfg.Sampler.MinSkinRatio = t.GetMinSkinRatio()
	cfg.Sampler.MinSkinPixels = t.GetMinSkinPixels()

	cfg.Gate.MinConfidence = t.GetMinConfidence()
	cfg.Gate.MinSNRdB = t.GetMinSNRdB()
	cfg.Gate.MaxAgreementDeltaBPM = t.GetMaxAgreementDeltaBPM()
	cfg.Gate.MinPQI = t.GetMinPQI()
	cfg.Gate.StreakLength = t.GetStreakLength()
	cfg.Gate.MaxStdBPM = t.GetMaxStdBPM()
	cfg.Gate.MaxStepBPM = t.GetMaxStepBPM()
	cfg.Gate.HoldWindowSec = t.GetHoldWindow().Seconds()

	cfg.Respiration.LowHz = t.GetRespLowHz()
	cfg.Respiration.HighHz = t.GetRespHighHz()
	cfg.Respiration.WindowSec = t.GetRespWindowSec()

	cfg.Session.MaxSamples = t.GetSessionMaxSamples()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid tuning: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field consistency.
func (c Config) Validate() error {
	var errs []error
	s := c.Spectral
	if s.RateHz <= 0 {
		errs = append(errs, fmt.Errorf("spectral rate must be positive, got %g", s.RateHz))
	}
	if s.BandLowHz <= 0 || s.BandHighHz <= s.BandLowHz {
		errs = append(errs, fmt.Errorf("heart-rate band %g-%g Hz is empty", s.BandLowHz, s.BandHighHz))
	}
	if s.RateHz > 0 && s.BandHighHz >= s.RateHz/2 {
		errs = append(errs, fmt.Errorf("heart-rate band edge %g Hz is at or above Nyquist for %g Hz", s.BandHighHz, s.RateHz))
	}
	if c.Signal.WindowSec < s.MinDurationSec {
		errs = append(errs, fmt.Errorf("window %g s is shorter than the %g s minimum", c.Signal.WindowSec, s.MinDurationSec))
	}
	if c.Signal.MinPoints < 4 {
		errs = append(errs, fmt.Errorf("min points must be at least 4, got %d", c.Signal.MinPoints))
	}
	if c.Pulse.MinFrames < 2 || (c.Pulse.WindowFrames > 0 && c.Pulse.WindowFrames < c.Pulse.MinFrames) {
		errs = append(errs, fmt.Errorf("pulse window %d/%d frames is invalid", c.Pulse.WindowFrames, c.Pulse.MinFrames))
	}
	if c.Sampler.Stride < 1 {
		errs = append(errs, fmt.Errorf("sampler stride must be at least 1, got %d", c.Sampler.Stride))
	}
	if c.Regions.MinLandmarks < 1 {
		errs = append(errs, fmt.Errorf("region min landmarks must be positive, got %d", c.Regions.MinLandmarks))
	}
	if c.Fusion.TightHalfWidthBPM <= 0 {
		errs = append(errs, fmt.Errorf("tight half-width must be positive, got %g", c.Fusion.TightHalfWidthBPM))
	}
	if c.Gate.StreakLength < 1 {
		errs = append(errs, fmt.Errorf("gate streak length must be at least 1, got %d", c.Gate.StreakLength))
	}
	if c.Gate.HoldWindowSec < 0 {
		errs = append(errs, fmt.Errorf("hold window must be non-negative, got %g", c.Gate.HoldWindowSec))
	}
	r := c.Respiration
	if r.RateHz <= 0 || r.LowHz <= 0 || r.HighHz <= r.LowHz || r.HighHz >= r.RateHz/2 {
		errs = append(errs, fmt.Errorf("respiration band %g-%g Hz at %g Hz is invalid", r.LowHz, r.HighHz, r.RateHz))
	}
	if r.WindowSec < r.MinDurationSec {
		errs = append(errs, fmt.Errorf("respiration window %g s is shorter than the %g s minimum", r.WindowSec, r.MinDurationSec))
	}
	e := c.Engine
	if e.MinTickIntervalMs < 0 || e.BufferSlackSec < 0 || e.StaleAfterMs <= 0 {
		errs = append(errs, errors.New("engine timing must be non-negative with a positive staleness bound"))
	}
	if e.SmoothingLength < 1 {
		errs = append(errs, fmt.Errorf("smoothing length must be at least 1, got %d", e.SmoothingLength))
	}
	for name, a := range map[string]float64{"rect": e.RectAlpha, "motion": e.MotionAlpha, "luma": e.LumaAlpha} {
		if a <= 0 || a > 1 {
			errs = append(errs, fmt.Errorf("%s alpha must be in (0, 1], got %g", name, a))
		}
	}
	if c.Session.MaxSamples < 0 {
		errs = append(errs, fmt.Errorf("session max samples must be non-negative, got %d", c.Session.MaxSamples))
	}
	return errors.Join(errs...)
}

// horizonMs is how long region buffers are kept.
func (c Config) horizonMs() float64 {
	return (max(c.Signal.WindowSec, c.Respiration.WindowSec) + c.Engine.BufferSlackSec) * 1000
}
