package rppg

import (
	"github.com/banshee-data/pulse.report/internal/config"
	"github.com/banshee-data/pulse.report/internal/rppg/confidence"
	"github.com/banshee-data/pulse.report/internal/rppg/fusion"
	"github.com/banshee-data/pulse.report/internal/rppg/gate"
	"github.com/banshee-data/pulse.report/internal/rppg/resp"
	"github.com/banshee-data/pulse.report/internal/rppg/roi"
)

// Frame is one camera frame handed to Update.
type Frame struct {
	TimestampMs float64        `json:"t_ms"`
	Width       int            `json:"width"`
	Height      int            `json:"height"`
	Pixels      []byte         `json:"-"`                   // RGB, row-major
	Landmarks   []roi.Landmark `json:"landmarks,omitempty"` // nil when no face was detected

	// Tuning, when set, replaces the engine configuration before the frame
	// is processed. The same pointer is only applied once.
	Tuning *config.TuningConfig `json:"-"`
}

// RegionDiagnostics reports one region's state at a tick.
type RegionDiagnostics struct {
	ID            roi.RegionID `json:"id"`
	Active        bool         `json:"active"`
	Rect          roi.Rect     `json:"rect"`
	SkinRatio     float64      `json:"skin_ratio"`
	SkinPixels    int          `json:"skin_pixels"`
	ClippedRatio  float64      `json:"clipped_ratio"`
	SpecularRatio float64      `json:"specular_ratio"`
	LumaMean      float64      `json:"luma_mean"`
	LumaStd       float64      `json:"luma_std"`
	Motion        float64      `json:"motion"`
	LumaChange    float64      `json:"luma_change"`
	Weight        float64      `json:"weight"` // in the primary algorithm's mix
}

// UpdateResult is the engine output of one tick. BPM is the published or
// held value and is zero until something has been published.
type UpdateResult struct {
	TimestampMs float64 `json:"t_ms"`

	Valid        bool    `json:"valid"` // a candidate BPM exists this tick
	RawBPM       float64 `json:"raw_bpm"`
	SmoothedBPM  float64 `json:"smoothed_bpm"`
	CandidateBPM float64 `json:"candidate_bpm"` // after any half-frequency rescue
	BPM          float64 `json:"bpm"`
	PublishedBPM float64 `json:"published_bpm"` // last published value, held or not
	Published    bool    `json:"published"`
	Held         bool    `json:"held"`
	Reason       string  `json:"reason"`
	State        string  `json:"state"`

	Confidence float64          `json:"confidence"`
	Score      confidence.Score `json:"score"`

	Primary   string                 `json:"primary"` // algorithm that supplied the candidate
	POS       fusion.AlgorithmOutput `json:"pos"`
	CHROM     fusion.AlgorithmOutput `json:"chrom"`
	Agreement confidence.Agreement   `json:"agreement"`
	Gate      gate.Decision          `json:"gate"`

	Respiration resp.Reading  `json:"respiration"`
	Coupling    resp.Coupling `json:"coupling"`

	Regions []RegionDiagnostics `json:"regions"`
}
