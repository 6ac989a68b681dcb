package spectral

import (
	"math"
	"sort"

	"github.com/banshee-data/pulse.report/internal/rppg/dsp"
	"github.com/banshee-data/pulse.report/internal/units"
)

// Harmonic correction directions.
const (
	DirNone         = "none"
	DirDown2        = "down2"
	DirUp2          = "up2"
	DirUp2Dominance = "up2_dominance"
	DirUp2Guard     = "up2_guard"
)

// maxPeakRatio is reported when only one candidate exists.
const maxPeakRatio = 100

// Alternate describes a harmonic of the final pick.
type Alternate struct {
	Valid      bool    `json:"valid"`
	BPM        float64 `json:"bpm"`
	PowerRatio float64 `json:"power_ratio"`  // power(alt) / power(pick)
	SNRDeltaDB float64 `json:"snr_delta_db"` // snr(alt) - snr(pick)
	Supported  bool    `json:"supported"`    // met the guard thresholds
}

// Estimate is the heart-rate estimate for one waveform. The zero value is
// the "no estimate" result.
type Estimate struct {
	Valid         bool      `json:"valid"`
	BPM           float64   `json:"bpm"`
	FFTBPM        float64   `json:"fft_bpm"`
	ACBPM         float64   `json:"ac_bpm"`
	SNR           float64   `json:"snr"`
	SNR01         float64   `json:"snr01"`
	SNRdB         float64   `json:"snr_db"`
	PeakQuality   float64   `json:"peak_quality"`
	ACQuality     float64   `json:"ac_quality"`
	SignalQuality float64   `json:"signal_quality"`
	RawScore      float64   `json:"raw_score"`
	PeakRatio     float64   `json:"peak_ratio"`
	Entropy       float64   `json:"entropy"`
	HarmonicDir   string    `json:"harmonic_dir"`
	HarmonicFixed bool      `json:"harmonic_fixed"`
	AltLow        Alternate `json:"alt_low"`
	AltHigh       Alternate `json:"alt_high"`
}

type candidate struct {
	bin   int
	bpm   float64
	raw   float64
	score float64
}

// analysis bundles the spectrum with the band-derived helpers used by the
// harmonic cascade.
type analysis struct {
	spec      dsp.Spectrum
	opts      Options
	halfWidth float64
	tolBins   int
}

func (a analysis) power(f float64) float64 { return a.spec.PeakPower(f, a.tolBins) }

func (a analysis) snrDB(f float64) float64 {
	return dsp.ToDB(a.spec.SNR(f, a.halfWidth, a.opts.BandLowHz, a.opts.BandHighHz))
}

func (a analysis) inBand(f float64) bool {
	return f >= a.opts.BandLowHz && f <= a.opts.BandHighHz
}

// compare returns the power ratio and SNR margin of alt over cur.
func (a analysis) compare(alt, cur float64) (ratio, deltaDB float64) {
	if p := a.power(cur); p > 0 {
		ratio = a.power(alt) / p
	}
	return ratio, a.snrDB(alt) - a.snrDB(cur)
}

// Analyze runs the spectral and autocorrelation estimators on a filtered
// waveform sampled at opts.RateHz. prevBPM <= 0 means no previous value.
// Too short or silent waveforms return the zero Estimate.
func Analyze(x []float64, prevBPM float64, search Search, opts Options) Estimate {
	rate := opts.RateHz
	if rate <= 0 || len(x) < 4 || float64(len(x)-1)/rate < opts.MinDurationSec {
		return Estimate{}
	}
	lo, hi := search.LowHz, search.HighHz
	if lo <= 0 || hi <= 0 {
		lo, hi = opts.BandLowHz, opts.BandHighHz
	}
	lo, hi = math.Max(lo, opts.BandLowHz), math.Min(hi, opts.BandHighHz)
	if hi <= lo {
		return Estimate{}
	}
	if search.NoContinuity {
		prevBPM = 0
	}

	spec := dsp.PowerSpectrum(x, rate, opts.MinFFTSize)
	a := analysis{
		spec:      spec,
		opts:      opts,
		halfWidth: math.Max(opts.MinSNRHalfWidthHz, spec.MainLobeHz()),
		tolBins:   max(1, int(math.Round(0.25*spec.MainLobeHz()/spec.BinHz))),
	}

	cands := a.candidates(lo, hi, prevBPM)
	if len(cands) == 0 {
		return Estimate{}
	}
	peakRatio := float64(maxPeakRatio)
	if len(cands) > 1 && cands[1].score > 0 {
		peakRatio = math.Min(cands[0].score/cands[1].score, maxPeakRatio)
	}
	pick := cands[0]
	if prevBPM > 0 && peakRatio < opts.RepickPeakRatio {
		for _, c := range cands[1:] {
			if math.Abs(c.bpm-prevBPM) <= opts.RepickWindowBPM && c.raw >= opts.RepickMinScoreRatio*cands[0].raw {
				if math.Abs(pick.bpm-prevBPM) > opts.RepickWindowBPM {
					pick = c
				}
				break
			}
		}
	}

	f, dir, altHigh := a.disambiguate(spec.RefinePeak(pick.bin))

	est := Estimate{
		Valid:         true,
		FFTBPM:        units.HzToBPM(f),
		RawScore:      pick.raw,
		PeakRatio:     peakRatio,
		Entropy:       spec.Entropy(opts.BandLowHz, opts.BandHighHz),
		HarmonicDir:   dir,
		HarmonicFixed: dir != DirNone,
		AltHigh:       altHigh,
	}
	if a.inBand(f / 2) {
		ratio, delta := a.compare(f/2, f)
		est.AltLow = Alternate{Valid: true, BPM: units.HzToBPM(f / 2), PowerRatio: ratio, SNRDeltaDB: delta}
	}

	est.SNR = spec.SNR(f, a.halfWidth, opts.BandLowHz, opts.BandHighHz)
	est.SNRdB = dsp.ToDB(est.SNR)
	est.SNR01 = dsp.Clamp01(est.SNRdB / opts.SNRFullScaleDB)
	conc := spec.Concentration(f, a.halfWidth, opts.BandLowHz, opts.BandHighHz)
	ratioTerm := dsp.Clamp01((peakRatio - 1) / math.Max(opts.PeakRatioGood-1, 1e-9))
	est.PeakQuality = dsp.Clamp01(0.6*ratioTerm + 0.4*conc)

	acBPM, acQ, acOK := autocorrBPM(x, rate, units.HzToBPM(lo), units.HzToBPM(hi), opts.ACMinPeakFraction)
	if acOK {
		est.ACBPM, est.ACQuality = acBPM, acQ
	}
	est.BPM = fuse(est, acOK, prevBPM, opts)
	est.SignalQuality = dsp.Clamp01(0.45*est.SNR01 + 0.35*est.PeakQuality + 0.2*est.ACQuality)
	return est
}

// candidates scores the local maxima of the search band, best first.
func (a analysis) candidates(lo, hi, prevBPM float64) []candidate {
	opts := a.opts
	kLo, kHi := a.spec.BandBins(lo, hi)
	if kHi < kLo {
		return nil
	}
	best := kLo
	for k := kLo; k <= kHi; k++ {
		if a.spec.Power[k] > a.spec.Power[best] {
			best = k
		}
	}
	// Window sidelobes are local maxima too; only peaks carrying a
	// meaningful share of the band maximum compete.
	floor := opts.MinCandidateFraction * a.spec.Power[best]
	var peaks []int
	for _, k := range a.spec.LocalMaxima(kLo, kHi) {
		if a.spec.Power[k] >= floor {
			peaks = append(peaks, k)
		}
	}
	if len(peaks) == 0 {
		peaks = []int{best}
	}

	cands := make([]candidate, 0, len(peaks))
	for _, k := range peaks {
		if a.spec.Power[k] <= 0 {
			continue
		}
		f := a.spec.Freq(float64(k))
		c := candidate{bin: k, bpm: units.HzToBPM(f)}
		c.raw = a.spec.Power[k] + opts.Harmonic2Weight*a.power(2*f) + opts.HalfHarmonicWeight*a.power(f/2)
		c.score = c.raw
		if c.bpm >= opts.PreferredLowBPM && c.bpm <= opts.PreferredHighBPM {
			c.score *= opts.PreferredBoost
		}
		if prevBPM > 0 && opts.ContinuityStrength > 0 && opts.ContinuityScaleBPM > 0 {
			s := dsp.Clamp01(opts.ContinuityStrength)
			c.score *= (1 - s) + s*math.Exp(-math.Abs(c.bpm-prevBPM)/opts.ContinuityScaleBPM)
		}
		cands = append(cands, c)
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })
	return cands
}

// disambiguate applies the four harmonic corrections in order. Each one
// is gated on its own thresholds against the current pick. Doubling steps
// never undo a halving made earlier in the same pass.
func (a analysis) disambiguate(f float64) (float64, string, Alternate) {
	opts := a.opts
	dir := DirNone

	// (a) second harmonic dominates a low pick.
	if units.HzToBPM(f) < opts.PromoteMaxBPM && a.inBand(2*f) {
		ratio, delta := a.compare(2*f, f)
		if ratio >= opts.PromotePowerRatio && delta >= opts.PromoteSNRMarginDB {
			f, dir = 2*f, DirUp2Dominance
		}
	}

	// (b) sub-harmonic carries more power and SNR.
	if a.inBand(f / 2) {
		ratio, delta := a.compare(f/2, f)
		if ratio >= opts.HalvePowerRatio && delta >= opts.HalveSNRMarginDB {
			f, dir = f/2, DirDown2
		}
	}

	// (c) rescue a suspiciously low lock.
	if dir != DirDown2 && units.HzToBPM(f) <= opts.RescueMaxBPM && a.inBand(2*f) {
		ratio, delta := a.compare(2*f, f)
		if ratio >= opts.RescuePowerRatio && delta >= opts.RescueSNRMarginDB {
			f, dir = 2*f, DirUp2
		}
	}

	// (d) subharmonic guard; the doubled candidate is recorded either way.
	var alt Alternate
	if a.inBand(2 * f) {
		ratio, delta := a.compare(2*f, f)
		alt = Alternate{Valid: true, BPM: units.HzToBPM(2 * f), PowerRatio: ratio, SNRDeltaDB: delta}
		alt.Supported = dir != DirDown2 && units.HzToBPM(f) <= opts.GuardMaxBPM &&
			ratio >= opts.GuardPowerRatio && delta >= opts.GuardSNRMarginDB
		if alt.Supported {
			f, dir = 2*f, DirUp2Guard
		}
	}
	return f, dir, alt
}

// autocorrBPM returns the time-domain BPM: the first autocorrelation peak
// within minFrac of the maximum over the lags of [loBPM, hiBPM].
func autocorrBPM(x []float64, rate, loBPM, hiBPM, minFrac float64) (bpm, quality float64, ok bool) {
	minLag := max(1, int(math.Floor(units.PeriodSamples(hiBPM, rate))))
	maxLag := int(math.Ceil(units.PeriodSamples(loBPM, rate)))
	ac := dsp.Autocorrelation(x, minLag, maxLag)
	if ac == nil {
		return 0, 0, false
	}
	maxLag = len(ac) - 1

	best := minLag
	for l := minLag; l <= maxLag; l++ {
		if ac[l] > ac[best] {
			best = l
		}
	}
	if ac[best] <= 0 {
		return 0, 0, false
	}
	chosen := best
	for l := minLag + 1; l < maxLag; l++ {
		if ac[l] >= ac[l-1] && ac[l] >= ac[l+1] && ac[l] >= minFrac*ac[best] {
			chosen = l
			break
		}
	}
	lag := float64(chosen)
	if chosen > minLag && chosen < maxLag {
		lag += dsp.ParabolicOffset(ac[chosen-1], ac[chosen], ac[chosen+1])
	}
	return units.HzToBPM(rate / lag), dsp.Clamp01(ac[chosen]), true
}

// fuse combines the FFT and autocorrelation estimates.
func fuse(est Estimate, acOK bool, prevBPM float64, opts Options) float64 {
	if !acOK {
		return est.FFTBPM
	}
	fftConf := 0.5*est.PeakQuality + 0.5*est.SNR01
	acConf := est.ACQuality
	if math.Abs(est.FFTBPM-est.ACBPM) <= opts.FusionAgreeBPM {
		if fftConf+acConf <= 0 {
			return est.FFTBPM
		}
		return (est.FFTBPM*fftConf + est.ACBPM*acConf) / (fftConf + acConf)
	}
	// Autocorrelation locks onto the octave the cascade just corrected.
	if est.HarmonicFixed {
		return est.FFTBPM
	}
	if prevBPM > 0 && opts.ContinuityScaleBPM > 0 {
		fftConf *= math.Exp(-math.Abs(est.FFTBPM-prevBPM) / opts.ContinuityScaleBPM)
		acConf *= math.Exp(-math.Abs(est.ACBPM-prevBPM) / opts.ContinuityScaleBPM)
	}
	if acConf > fftConf {
		return est.ACBPM
	}
	return est.FFTBPM
}
