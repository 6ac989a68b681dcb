package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TuningConfig holds the headline rPPG engine knobs as a flat JSON
// document. Every field is optional; the Get* accessors return the
// documented default for fields left out, so partial files are safe.
type TuningConfig struct {
	// Signal window and heart-rate band
	WindowSec         *float64 `json:"window_sec,omitempty"`
	SampleRateHz      *float64 `json:"sample_rate_hz,omitempty"`
	HRLowHz           *float64 `json:"hr_low_hz,omitempty"`
	HRHighHz          *float64 `json:"hr_high_hz,omitempty"`
	TightHalfWidthBPM *float64 `json:"tight_half_width_bpm,omitempty"`
	MinTickInterval   *string  `json:"min_tick_interval,omitempty"` // duration string like "500ms"

	// Sampler
	SamplerStride *int     `json:"sampler_stride,omitempty"`
	MinSkinRatio  *float64 `json:"min_skin_ratio,omitempty"`
	MinSkinPixels *int     `json:"min_skin_pixels,omitempty"`

	// Publication gate
	MinConfidence        *float64 `json:"min_confidence,omitempty"`
	MinSNRdB             *float64 `json:"min_snr_db,omitempty"`
	MaxAgreementDeltaBPM *float64 `json:"max_agreement_delta_bpm,omitempty"`
	MinPQI               *float64 `json:"min_pqi,omitempty"`
	StreakLength         *int     `json:"streak_length,omitempty"`
	MaxStdBPM            *float64 `json:"max_std_bpm,omitempty"`
	MaxStepBPM           *float64 `json:"max_step_bpm,omitempty"`
	HoldWindow           *string  `json:"hold_window,omitempty"` // duration string like "10s"

	// Respiration
	RespLowHz     *float64 `json:"resp_low_hz,omitempty"`
	RespHighHz    *float64 `json:"resp_high_hz,omitempty"`
	RespWindowSec *float64 `json:"resp_window_sec,omitempty"`

	// Session
	SessionMaxSamples *int `json:"session_max_samples,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field set to its
// default, useful as a template for tuning files.
func DefaultTuningConfig() *TuningConfig {
	c := EmptyTuningConfig()
	return &TuningConfig{
		WindowSec:            ptrFloat64(c.GetWindowSec()),
		SampleRateHz:         ptrFloat64(c.GetSampleRateHz()),
		HRLowHz:              ptrFloat64(c.GetHRLowHz()),
		HRHighHz:             ptrFloat64(c.GetHRHighHz()),
		TightHalfWidthBPM:    ptrFloat64(c.GetTightHalfWidthBPM()),
		MinTickInterval:      ptrString(c.GetMinTickInterval().String()),
		SamplerStride:        ptrInt(c.GetSamplerStride()),
		MinSkinRatio:         ptrFloat64(c.GetMinSkinRatio()),
		MinSkinPixels:        ptrInt(c.GetMinSkinPixels()),
		MinConfidence:        ptrFloat64(c.GetMinConfidence()),
		MinSNRdB:             ptrFloat64(c.GetMinSNRdB()),
		MaxAgreementDeltaBPM: ptrFloat64(c.GetMaxAgreementDeltaBPM()),
		MinPQI:               ptrFloat64(c.GetMinPQI()),
		StreakLength:         ptrInt(c.GetStreakLength()),
		MaxStdBPM:            ptrFloat64(c.GetMaxStdBPM()),
		MaxStepBPM:           ptrFloat64(c.GetMaxStepBPM()),
		HoldWindow:           ptrString(c.GetHoldWindow().String()),
		RespLowHz:            ptrFloat64(c.GetRespLowHz()),
		RespHighHz:           ptrFloat64(c.GetRespHighHz()),
		RespWindowSec:        ptrFloat64(c.GetRespWindowSec()),
		SessionMaxSamples:    ptrInt(c.GetSessionMaxSamples()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.WindowSec != nil && *c.WindowSec < 3 {
		return fmt.Errorf("window_sec must be at least 3, got %f", *c.WindowSec)
	}
	if c.SampleRateHz != nil && *c.SampleRateHz <= 0 {
		return fmt.Errorf("sample_rate_hz must be positive, got %f", *c.SampleRateHz)
	}
	if lo, hi := c.GetHRLowHz(), c.GetHRHighHz(); lo <= 0 || hi <= lo {
		return fmt.Errorf("heart-rate band must satisfy 0 < hr_low_hz < hr_high_hz, got %f-%f", lo, hi)
	}
	if c.GetHRHighHz() >= c.GetSampleRateHz()/2 {
		return fmt.Errorf("hr_high_hz %f must be below the Nyquist frequency of sample_rate_hz %f", c.GetHRHighHz(), c.GetSampleRateHz())
	}
	if c.TightHalfWidthBPM != nil && *c.TightHalfWidthBPM <= 0 {
		return fmt.Errorf("tight_half_width_bpm must be positive, got %f", *c.TightHalfWidthBPM)
	}
	if c.MinTickInterval != nil && *c.MinTickInterval != "" {
		if _, err := time.ParseDuration(*c.MinTickInterval); err != nil {
			return fmt.Errorf("invalid min_tick_interval '%s': %w", *c.MinTickInterval, err)
		}
	}
	if c.SamplerStride != nil && *c.SamplerStride < 1 {
		return fmt.Errorf("sampler_stride must be at least 1, got %d", *c.SamplerStride)
	}
	if c.MinSkinRatio != nil && (*c.MinSkinRatio < 0 || *c.MinSkinRatio > 1) {
		return fmt.Errorf("min_skin_ratio must be between 0 and 1, got %f", *c.MinSkinRatio)
	}
	if c.MinSkinPixels != nil && *c.MinSkinPixels < 0 {
		return fmt.Errorf("min_skin_pixels must be non-negative, got %d", *c.MinSkinPixels)
	}
	for name, v := range map[string]*float64{
		"min_confidence": c.MinConfidence,
		"min_pqi":        c.MinPQI,
	} {
		if v != nil && (*v < 0 || *v > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, *v)
		}
	}
	if c.StreakLength != nil && *c.StreakLength < 1 {
		return fmt.Errorf("streak_length must be at least 1, got %d", *c.StreakLength)
	}
	if c.HoldWindow != nil && *c.HoldWindow != "" {
		if _, err := time.ParseDuration(*c.HoldWindow); err != nil {
			return fmt.Errorf("invalid hold_window '%s': %w", *c.HoldWindow, err)
		}
	}
	if lo, hi := c.GetRespLowHz(), c.GetRespHighHz(); lo <= 0 || hi <= lo {
		return fmt.Errorf("respiration band must satisfy 0 < resp_low_hz < resp_high_hz, got %f-%f", lo, hi)
	}
	if c.RespWindowSec != nil && *c.RespWindowSec <= 0 {
		return fmt.Errorf("resp_window_sec must be positive, got %f", *c.RespWindowSec)
	}
	if c.SessionMaxSamples != nil && *c.SessionMaxSamples < 0 {
		return fmt.Errorf("session_max_samples must be non-negative, got %d", *c.SessionMaxSamples)
	}
	return nil
}

// GetWindowSec returns the analysis window length in seconds.
func (c *TuningConfig) GetWindowSec() float64 {
	if c.WindowSec == nil {
		return 10
	}
	return *c.WindowSec
}

// GetSampleRateHz returns the resampling rate of the pulse waveform.
func (c *TuningConfig) GetSampleRateHz() float64 {
	if c.SampleRateHz == nil {
		return 30
	}
	return *c.SampleRateHz
}

// GetHRLowHz returns the lower heart-rate band edge (0.7 Hz = 42 BPM).
func (c *TuningConfig) GetHRLowHz() float64 {
	if c.HRLowHz == nil {
		return 0.7
	}
	return *c.HRLowHz
}

// GetHRHighHz returns the upper heart-rate band edge (3.0 Hz = 180 BPM).
func (c *TuningConfig) GetHRHighHz() float64 {
	if c.HRHighHz == nil {
		return 3.0
	}
	return *c.HRHighHz
}

// GetTightHalfWidthBPM returns the half-width of the tracking band.
func (c *TuningConfig) GetTightHalfWidthBPM() float64 {
	if c.TightHalfWidthBPM == nil {
		return 15
	}
	return *c.TightHalfWidthBPM
}

// GetMinTickInterval parses and returns the MinTickInterval as a time.Duration.
func (c *TuningConfig) GetMinTickInterval() time.Duration {
	if c.MinTickInterval == nil || *c.MinTickInterval == "" {
		return 500 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.MinTickInterval)
	if err != nil {
		return 500 * time.Millisecond // default on parse error
	}
	return d
}

// GetSamplerStride returns the pixel stride of the region sampler.
func (c *TuningConfig) GetSamplerStride() int {
	if c.SamplerStride == nil {
		return 2
	}
	return *c.SamplerStride
}

// GetMinSkinRatio returns the skin fraction a region needs to be active.
func (c *TuningConfig) GetMinSkinRatio() float64 {
	if c.MinSkinRatio == nil {
		return 0.35
	}
	return *c.MinSkinRatio
}

// GetMinSkinPixels returns the skin pixel count a region needs to be active.
func (c *TuningConfig) GetMinSkinPixels() int {
	if c.MinSkinPixels == nil {
		return 40
	}
	return *c.MinSkinPixels
}

// GetMinConfidence returns the min_confidence value or the default.
func (c *TuningConfig) GetMinConfidence() float64 {
	if c.MinConfidence == nil {
		return 0.3
	}
	return *c.MinConfidence
}

// GetMinSNRdB returns the min_snr_db value or the default.
func (c *TuningConfig) GetMinSNRdB() float64 {
	if c.MinSNRdB == nil {
		return 3
	}
	return *c.MinSNRdB
}

// GetMaxAgreementDeltaBPM returns the max_agreement_delta_bpm value or the default.
func (c *TuningConfig) GetMaxAgreementDeltaBPM() float64 {
	if c.MaxAgreementDeltaBPM == nil {
		return 12
	}
	return *c.MaxAgreementDeltaBPM
}

// GetMinPQI returns the min_pqi value or the default.
func (c *TuningConfig) GetMinPQI() float64 {
	if c.MinPQI == nil {
		return 0.3
	}
	return *c.MinPQI
}

// GetStreakLength returns the streak_length value or the default.
func (c *TuningConfig) GetStreakLength() int {
	if c.StreakLength == nil {
		return 3
	}
	return *c.StreakLength
}

// GetMaxStdBPM returns the max_std_bpm value or the default.
func (c *TuningConfig) GetMaxStdBPM() float64 {
	if c.MaxStdBPM == nil {
		return 4
	}
	return *c.MaxStdBPM
}

// GetMaxStepBPM returns the max_step_bpm value or the default.
func (c *TuningConfig) GetMaxStepBPM() float64 {
	if c.MaxStepBPM == nil {
		return 8
	}
	return *c.MaxStepBPM
}

// GetHoldWindow parses and returns the HoldWindow as a time.Duration.
func (c *TuningConfig) GetHoldWindow() time.Duration {
	if c.HoldWindow == nil || *c.HoldWindow == "" {
		return 10 * time.Second // default
	}
	d, err := time.ParseDuration(*c.HoldWindow)
	if err != nil {
		return 10 * time.Second // default on parse error
	}
	return d
}

// GetRespLowHz returns the lower respiration band edge.
func (c *TuningConfig) GetRespLowHz() float64 {
	if c.RespLowHz == nil {
		return 0.1
	}
	return *c.RespLowHz
}

// GetRespHighHz returns the upper respiration band edge.
func (c *TuningConfig) GetRespHighHz() float64 {
	if c.RespHighHz == nil {
		return 0.5
	}
	return *c.RespHighHz
}

// GetRespWindowSec returns the respiration analysis window in seconds.
func (c *TuningConfig) GetRespWindowSec() float64 {
	if c.RespWindowSec == nil {
		return 20
	}
	return *c.RespWindowSec
}

// GetSessionMaxSamples returns the session sample cap; 0 means unbounded.
func (c *TuningConfig) GetSessionMaxSamples() int {
	if c.SessionMaxSamples == nil {
		return 0
	}
	return *c.SessionMaxSamples
}
