package rppg

import (
	"fmt"
	"math"

	"github.com/banshee-data/pulse.report/internal/config"
	"github.com/banshee-data/pulse.report/internal/monitoring"
	"github.com/banshee-data/pulse.report/internal/rppg/confidence"
	"github.com/banshee-data/pulse.report/internal/rppg/dsp"
	"github.com/banshee-data/pulse.report/internal/rppg/fusion"
	"github.com/banshee-data/pulse.report/internal/rppg/gate"
	"github.com/banshee-data/pulse.report/internal/rppg/pulse"
	"github.com/banshee-data/pulse.report/internal/rppg/resp"
	"github.com/banshee-data/pulse.report/internal/rppg/roi"
	"github.com/banshee-data/pulse.report/internal/rppg/session"
)

var logf = monitoring.Component("rppg")

// Engine turns a stream of frames into gated heart-rate and respiration
// estimates. It is not safe for concurrent use; run one engine per stream.
type Engine struct {
	cfg    Config
	tuning *config.TuningConfig // last applied per-frame override

	regions  []*regionState // in roi.AllRegions order
	trackers [2]fusion.Tracker
	prevBPM  [2]float64 // last valid fused BPM per algorithm

	gate    *gate.Gate
	resp    resp.Estimator
	session *session.Aggregator

	lastFrameMs float64
	hasFrame    bool
	lastTickMs  float64
	ticked      bool

	rawHistory []float64
	smoothed   float64
	trace      []resp.TracePoint // published or held BPM per tick

	wasHolding bool
}

// NewEngine validates cfg and returns an engine with empty buffers.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	e := &Engine{
		cfg:     cfg,
		gate:    gate.New(cfg.Gate),
		session: session.New(cfg.Session),
	}
	for _, id := range roi.AllRegions {
		e.regions = append(e.regions, newRegionState(id))
	}
	return e, nil
}

// Config returns the active configuration.
func (e *Engine) Config() Config { return e.cfg }

// SetConfig validates and applies a new configuration, keeping buffers and
// publication state.
func (e *Engine) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid engine config: %w", err)
	}
	e.cfg = cfg
	e.gate.SetConfig(cfg.Gate)
	e.session.SetConfig(cfg.Session)
	logf("configuration updated: window=%.1fs band=%.2f-%.2fHz tick=%.0fms",
		cfg.Signal.WindowSec, cfg.Spectral.BandLowHz, cfg.Spectral.BandHighHz, cfg.Engine.MinTickIntervalMs)
	return nil
}

// Reset clears every buffer, tracker, the gate, respiration history and
// the session.
func (e *Engine) Reset() {
	for _, r := range e.regions {
		r.reset()
	}
	for i := range e.trackers {
		e.trackers[i].Reset()
	}
	e.prevBPM = [2]float64{}
	e.gate.Reset()
	e.resp.Reset()
	e.session.Reset()
	e.hasFrame, e.ticked, e.wasHolding = false, false, false
	e.lastFrameMs, e.lastTickMs = 0, 0
	e.rawHistory = e.rawHistory[:0]
	e.smoothed = 0
	e.trace = e.trace[:0]
}

// Finalize summarises the session so far.
func (e *Engine) Finalize() session.Export {
	return e.session.Finalize()
}

// Update ingests one frame. Every call samples the regions (when
// landmarks are present) and prunes buffers; a tick runs only once
// MinTickIntervalMs has elapsed since the previous one, and the bool
// reports whether it did.
//
// A non-finite or decreasing timestamp, or a pixel buffer smaller than
// width*height*3 while landmarks are supplied, panics.
func (e *Engine) Update(f Frame) (UpdateResult, bool) {
	ts := f.TimestampMs
	if !dsp.IsFinite(ts) {
		panic(fmt.Sprintf("rppg: non-finite frame timestamp %v", ts))
	}
	if e.hasFrame && ts < e.lastFrameMs {
		panic(fmt.Sprintf("rppg: frame timestamp %.3f ms precedes previous %.3f ms", ts, e.lastFrameMs))
	}
	e.lastFrameMs, e.hasFrame = ts, true

	if f.Tuning != nil && f.Tuning != e.tuning {
		e.tuning = f.Tuning
		cfg, err := ConfigFromTuning(f.Tuning)
		if err == nil {
			err = e.SetConfig(cfg)
		}
		if err != nil {
			logf("ignoring frame tuning override: %v", err)
		}
	}

	if len(f.Landmarks) > 0 {
		if len(f.Pixels) < f.Width*f.Height*3 {
			panic(fmt.Sprintf("rppg: pixel buffer has %d bytes, need %d for %dx%d RGB", len(f.Pixels), f.Width*f.Height*3, f.Width, f.Height))
		}
		e.sample(f)
	}

	cutoff := ts - e.cfg.horizonMs()
	for _, r := range e.regions {
		r.prune(cutoff)
	}

	if e.ticked && ts-e.lastTickMs < e.cfg.Engine.MinTickIntervalMs {
		return UpdateResult{}, false
	}
	e.lastTickMs, e.ticked = ts, true
	return e.tick(ts), true
}

func (e *Engine) sample(f Frame) {
	ext, ok := roi.Extract(f.Landmarks, f.Width, f.Height, e.cfg.Regions)
	if !ok {
		return
	}
	byID := make(map[roi.RegionID]roi.Region, len(ext.Regions))
	for _, r := range ext.Regions {
		byID[r.ID] = r
	}
	for _, st := range e.regions {
		if region, ok := byID[st.id]; ok {
			st.observe(f.TimestampMs, region, ext.Box.Width(), f.Pixels, f.Width, f.Height, e.cfg)
		}
	}
}

// tick runs the analysis pipeline at ts.
func (e *Engine) tick(ts float64) UpdateResult {
	cfg := e.cfg
	res := UpdateResult{TimestampMs: ts}

	var outs [2]fusion.AlgorithmOutput
	for _, alg := range pulse.Algorithms {
		outs[alg] = e.fuse(alg, ts)
	}
	res.POS, res.CHROM = outs[pulse.POS], outs[pulse.CHROM]

	primary := outs[pulse.POS]
	if !primary.Valid && outs[pulse.CHROM].Valid {
		primary = outs[pulse.CHROM]
	}
	res.Primary = primary.Algorithm
	res.Regions = e.diagnostics(ts, primary)

	lastStable := e.smoothed
	if primary.Valid {
		res.Valid = true
		res.RawBPM = primary.BPM
		e.rawHistory = append(e.rawHistory, primary.BPM)
		if n := cfg.Engine.SmoothingLength; len(e.rawHistory) > n {
			e.rawHistory = append(e.rawHistory[:0], e.rawHistory[len(e.rawHistory)-n:]...)
		}
		e.smoothed = dsp.Median(e.rawHistory)
	}
	res.SmoothedBPM = e.smoothed

	res.Agreement = confidence.Agree(res.POS.BPM, res.POS.Valid, res.CHROM.BPM, res.CHROM.Estimate, res.CHROM.Valid, cfg.Confidence)

	res.Respiration, res.Coupling = e.respiration(ts, primary)

	lastPub, lastPubMs, hasPub := e.gate.LastPublished()
	couplingSuspect := hasPub && res.Valid && res.Coupling.Evaluated && !res.Coupling.Coupled &&
		res.RawBPM < lastPub-cfg.Gate.RespDropBPM

	motion, lumaChange := e.regionMotion(ts, primary)
	in := confidence.Inputs{
		Estimate:        primary.Estimate,
		CandidateBPM:    res.RawBPM,
		RegionQuality:   primary.MeanQuality,
		Motion:          motion,
		LumaChange:      lumaChange,
		LastStableBPM:   lastStable,
		Agreement:       res.Agreement,
		CouplingSuspect: couplingSuspect,
	}
	if hasPub {
		in.LastPublishedBPM = lastPub
		in.SincePublishSec = (ts - lastPubMs) / 1000
	}
	res.Score = confidence.Evaluate(in, cfg.Confidence)
	res.Confidence = res.Score.Confidence

	full := primary.Tracking.Full
	d := e.gate.Evaluate(gate.Input{
		TimestampMs:        ts,
		HasCandidate:       res.Valid,
		CandidateBPM:       res.RawBPM,
		Confidence:         res.Score.Confidence,
		PQI:                res.Score.PQI,
		SNRdB:              primary.Estimate.SNRdB,
		PeakRatio:          primary.Estimate.PeakRatio,
		SignalQuality:      primary.Estimate.SignalQuality,
		AgreementEvaluated: res.Agreement.Evaluated,
		AgreementDeltaBPM:  res.Agreement.DeltaBPM,
		AltHigh:            primary.Estimate.AltHigh,
		FullValid:          full.Valid,
		FullBPM:            full.BPM,
		FullSignal:         full.SignalQuality,
		FullPeakRatio:      full.PeakRatio,
		RespEvaluated:      res.Coupling.Evaluated,
		RespCoupled:        res.Coupling.Coupled,
	})
	res.Gate = d
	res.State = d.State
	res.Reason = d.Reason
	res.Published = d.Published
	res.Held = d.Held
	res.BPM = d.BPM
	res.CandidateBPM = d.CandidateBPM
	if bpm, _, ok := e.gate.LastPublished(); ok {
		res.PublishedBPM = bpm
	}
	e.logTransition(hasPub, d)

	if d.BPM > 0 {
		e.trace = append(e.trace, resp.TracePoint{TimestampMs: ts, BPM: d.BPM})
	}
	e.pruneTrace(ts)

	e.session.Push(session.Sample{
		TimestampMs: ts,
		Published:   d.Published,
		Held:        d.Held,
		Reason:      d.Reason,
		BPM:         d.BPM,
		SmoothedBPM: res.SmoothedBPM,
		Confidence:  res.Confidence,
		RespRateBPM: res.Respiration.RateBPM,
	})
	return res
}

// fuse resamples and band-limits every region's pulse buffer for alg and
// runs multi-region fusion and tracking on them.
func (e *Engine) fuse(alg pulse.Algorithm, ts float64) fusion.AlgorithmOutput {
	cfg := e.cfg
	opts := cfg.Spectral
	inputs := make([]fusion.RegionInput, len(e.regions))
	for i, st := range e.regions {
		inputs[i] = fusion.RegionInput{
			ID:         st.id,
			Sample:     st.sample,
			Motion:     st.motion,
			LumaChange: st.lumaChange,
		}
		if !st.active(ts, cfg) {
			continue
		}
		buf := &st.pulse[alg]
		series := dsp.Resample(buf.ts, buf.vs, ts, cfg.Signal.WindowSec, opts.RateHz)
		if series.Len() < cfg.Signal.MinPoints {
			continue
		}
		inputs[i].Active = true
		inputs[i].Waveform = dsp.Bandpass(series.Values, opts.RateHz, opts.BandLowHz, opts.BandHighHz)
	}

	out := fusion.Fuse(alg.String(), inputs, e.prevBPM[alg], &e.trackers[alg], opts, cfg.Fusion)
	switch {
	case out.Valid:
		e.prevBPM[alg] = out.BPM
	case out.Mix == nil:
		e.prevBPM[alg] = 0
	}
	return out
}

// respiration mixes the regions' luminance with the primary algorithm's
// weights, updates the respiration estimator and measures coupling with
// the heart-rate trace.
func (e *Engine) respiration(ts float64, primary fusion.AlgorithmOutput) (resp.Reading, resp.Coupling) {
	rc := e.cfg.Respiration
	waves := make([][]float64, len(e.regions))
	weights := make([]float64, len(e.regions))
	endMs := math.Inf(-1)
	for i, st := range e.regions {
		w := regionWeight(primary, st.id)
		if w <= 0 {
			continue
		}
		series := dsp.Resample(st.luma.ts, st.luma.vs, ts, rc.WindowSec, rc.RateHz)
		if series.Len() < 4 {
			continue
		}
		waves[i] = series.Values
		weights[i] = w
		endMs = max(endMs, series.TimeAt(series.Len()-1))
	}
	mix := fusion.Mix(waves, weights)
	reading := e.resp.Update(mix, rc)
	if len(mix) < 4 {
		return reading, resp.Coupling{}
	}
	wave := dsp.Series{
		StartMs: endMs - float64(len(mix)-1)*1000/rc.RateHz,
		RateHz:  rc.RateHz,
		Values:  dsp.Bandpass(mix, rc.RateHz, rc.LowHz, rc.HighHz),
	}
	return reading, resp.Couple(e.trace, wave, rc)
}

func regionWeight(out fusion.AlgorithmOutput, id roi.RegionID) float64 {
	for _, r := range out.Regions {
		if r.ID == id {
			return r.Weight
		}
	}
	return 0
}

// regionMotion returns the weight-averaged motion and luma change of the
// regions in the primary mix, falling back to the plain mean of active
// regions when nothing is weighted.
func (e *Engine) regionMotion(ts float64, primary fusion.AlgorithmOutput) (motion, lumaChange float64) {
	var wsum float64
	for _, st := range e.regions {
		w := regionWeight(primary, st.id)
		motion += w * st.motion
		lumaChange += w * st.lumaChange
		wsum += w
	}
	if wsum > 0 {
		return motion / wsum, lumaChange / wsum
	}
	var n float64
	for _, st := range e.regions {
		if st.active(ts, e.cfg) {
			motion += st.motion
			lumaChange += st.lumaChange
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return motion / n, lumaChange / n
}

func (e *Engine) diagnostics(ts float64, primary fusion.AlgorithmOutput) []RegionDiagnostics {
	out := make([]RegionDiagnostics, len(e.regions))
	for i, st := range e.regions {
		s := st.sample
		out[i] = RegionDiagnostics{
			ID:            st.id,
			Active:        st.active(ts, e.cfg),
			Rect:          st.rect,
			SkinRatio:     s.SkinRatio,
			SkinPixels:    s.SkinPixels,
			ClippedRatio:  s.ClippedRatio,
			SpecularRatio: s.SpecularRatio,
			LumaMean:      s.LumaMean,
			LumaStd:       s.LumaStd,
			Motion:        st.motion,
			LumaChange:    st.lumaChange,
			Weight:        regionWeight(primary, st.id),
		}
	}
	return out
}

func (e *Engine) pruneTrace(ts float64) {
	cutoff := ts - e.cfg.Respiration.CouplingWindowSec*1000
	i := 0
	for i < len(e.trace) && e.trace[i].TimestampMs < cutoff {
		i++
	}
	if i > 0 {
		e.trace = append(e.trace[:0], e.trace[i:]...)
	}
}

// logTransition reports the first publication and the expiry of a held
// value. Ordinary ticks are silent.
func (e *Engine) logTransition(hadPublished bool, d gate.Decision) {
	if d.Published && !hadPublished {
		logf("first heart rate published: %.1f bpm", d.BPM)
	}
	if e.wasHolding && !d.Held && !d.Published {
		logf("held heart rate expired after %.0fs without publication (%s)", e.cfg.Gate.HoldWindowSec, d.Reason)
	}
	e.wasHolding = d.Held
}
