package dsp

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// maxSNR caps the linear SNR when the out-of-peak band is silent.
const maxSNR = 1e6

// Spectrum is the one-sided power spectrum of a Hamming-windowed,
// zero-padded waveform.
type Spectrum struct {
	Power     []float64 // |X_k|^2 for k in [0, N/2]
	BinHz     float64   // frequency spacing of Power
	N         int       // FFT length
	SignalLen int       // samples before zero-padding
	RateHz    float64   // sample rate of the waveform
}

// NextPow2 returns the smallest power of two >= n (1 for n <= 1).
func NextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// PowerSpectrum computes the power spectrum of x sampled at rateHz. The FFT
// length is the next power of two of max(len(x), minSize).
func PowerSpectrum(x []float64, rateHz float64, minSize int) Spectrum {
	n := NextPow2(max(len(x), minSize))
	buf := make([]float64, n)
	copy(buf, x)
	window.Hamming(buf[:len(x)])

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, buf)
	power := make([]float64, len(coeffs))
	for i, c := range coeffs {
		power[i] = real(c)*real(c) + imag(c)*imag(c)
	}
	return Spectrum{
		Power:     power,
		BinHz:     fft.Freq(1) * rateHz,
		N:         n,
		SignalLen: len(x),
		RateHz:    rateHz,
	}
}

// Freq returns the frequency of bin k.
func (s Spectrum) Freq(k float64) float64 { return k * s.BinHz }

// Bin returns the bin nearest to f, clamped to the spectrum.
func (s Spectrum) Bin(f float64) int {
	if s.BinHz <= 0 {
		return 0
	}
	k := int(math.Round(f / s.BinHz))
	return max(0, min(k, len(s.Power)-1))
}

// BandBins returns the inclusive bin range covering [loHz, hiHz].
func (s Spectrum) BandBins(loHz, hiHz float64) (lo, hi int) {
	if s.BinHz <= 0 || len(s.Power) == 0 {
		return 0, -1
	}
	lo = int(math.Ceil(loHz / s.BinHz))
	hi = int(math.Floor(hiHz / s.BinHz))
	lo = max(lo, 1)
	hi = min(hi, len(s.Power)-2)
	return lo, hi
}

// MainLobeHz returns the half-width of the Hamming main lobe for the
// unpadded signal length.
func (s Spectrum) MainLobeHz() float64 {
	if s.SignalLen == 0 {
		return 0
	}
	return 2 * s.RateHz / float64(s.SignalLen)
}

// PeakPower returns the largest power within tolBins of the bin nearest f.
// Frequencies outside the spectrum return 0.
func (s Spectrum) PeakPower(f float64, tolBins int) float64 {
	if f <= 0 || s.BinHz <= 0 || f > s.Freq(float64(len(s.Power)-1)) {
		return 0
	}
	k := s.Bin(f)
	best := 0.0
	for i := max(0, k-tolBins); i <= min(len(s.Power)-1, k+tolBins); i++ {
		best = math.Max(best, s.Power[i])
	}
	return best
}

// LocalMaxima returns bins in [lo, hi] whose power is >= the left neighbour
// and > the right neighbour.
func (s Spectrum) LocalMaxima(lo, hi int) []int {
	var peaks []int
	for k := max(lo, 1); k <= hi && k < len(s.Power)-1; k++ {
		if s.Power[k] >= s.Power[k-1] && s.Power[k] > s.Power[k+1] {
			peaks = append(peaks, k)
		}
	}
	return peaks
}

// RefinePeak returns the frequency of bin k refined by parabolic
// interpolation of the log power across k-1, k, k+1.
func (s Spectrum) RefinePeak(k int) float64 {
	if k <= 0 || k >= len(s.Power)-1 {
		return s.Freq(float64(k))
	}
	const floor = 1e-300
	a := math.Log(math.Max(s.Power[k-1], floor))
	b := math.Log(math.Max(s.Power[k], floor))
	c := math.Log(math.Max(s.Power[k+1], floor))
	return s.Freq(float64(k) + ParabolicOffset(a, b, c))
}

// SNR returns the ratio of the mean power within halfWidthHz of f to the
// mean power of the remaining bins in [loHz, hiHz].
func (s Spectrum) SNR(f, halfWidthHz, loHz, hiHz float64) float64 {
	lo, hi := s.BandBins(loHz, hiHz)
	if hi < lo {
		return 0
	}
	var sig, noise float64
	var nSig, nNoise int
	for k := lo; k <= hi; k++ {
		if math.Abs(s.Freq(float64(k))-f) <= halfWidthHz {
			sig += s.Power[k]
			nSig++
		} else {
			noise += s.Power[k]
			nNoise++
		}
	}
	if nSig == 0 {
		return 0
	}
	sig /= float64(nSig)
	if nNoise == 0 || noise <= 0 {
		return maxSNR
	}
	return math.Min(sig/(noise/float64(nNoise)), maxSNR)
}

// Concentration returns the fraction of in-band power within halfWidthHz of f.
func (s Spectrum) Concentration(f, halfWidthHz, loHz, hiHz float64) float64 {
	lo, hi := s.BandBins(loHz, hiHz)
	var total, near float64
	for k := lo; k <= hi; k++ {
		total += s.Power[k]
		if math.Abs(s.Freq(float64(k))-f) <= halfWidthHz {
			near += s.Power[k]
		}
	}
	if total <= 0 {
		return 0
	}
	return near / total
}

// Entropy returns the Shannon entropy of the normalised in-band power,
// scaled to [0, 1] by the log of the bin count.
func (s Spectrum) Entropy(loHz, hiHz float64) float64 {
	lo, hi := s.BandBins(loHz, hiHz)
	n := hi - lo + 1
	if n < 2 {
		return 0
	}
	var total float64
	for k := lo; k <= hi; k++ {
		total += s.Power[k]
	}
	if total <= 0 {
		return 1
	}
	var h float64
	for k := lo; k <= hi; k++ {
		p := s.Power[k] / total
		if p > 0 {
			h -= p * math.Log(p)
		}
	}
	return h / math.Log(float64(n))
}

// ToDB converts a linear power ratio to decibels. Non-positive ratios map
// to -100 dB.
func ToDB(ratio float64) float64 {
	if ratio <= 0 {
		return -100
	}
	return 10 * math.Log10(ratio)
}
