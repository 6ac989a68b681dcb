package dsp

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// ButterworthQ is the Q of a maximally flat second-order section.
const ButterworthQ = 0.7071

// Biquad is a second-order IIR section in transposed direct form II.
type Biquad struct {
	b0, b1, b2, a1, a2 float64
	z1, z2             float64
}

// NewHighPass returns an RBJ high-pass section with cutoff fc.
func NewHighPass(fc, fs, q float64) *Biquad {
	w0 := 2 * math.Pi * fc / fs
	cosw, alpha := math.Cos(w0), math.Sin(w0)/(2*q)
	a0 := 1 + alpha
	return &Biquad{
		b0: (1 + cosw) / 2 / a0,
		b1: -(1 + cosw) / a0,
		b2: (1 + cosw) / 2 / a0,
		a1: -2 * cosw / a0,
		a2: (1 - alpha) / a0,
	}
}

// NewLowPass returns an RBJ low-pass section with cutoff fc. A cutoff at
// or above Nyquist yields a pass-through section.
func NewLowPass(fc, fs, q float64) *Biquad {
	if fc >= fs/2 {
		return &Biquad{b0: 1}
	}
	w0 := 2 * math.Pi * fc / fs
	cosw, alpha := math.Cos(w0), math.Sin(w0)/(2*q)
	a0 := 1 + alpha
	return &Biquad{
		b0: (1 - cosw) / 2 / a0,
		b1: (1 - cosw) / a0,
		b2: (1 - cosw) / 2 / a0,
		a1: -2 * cosw / a0,
		a2: (1 - alpha) / a0,
	}
}

// Process filters one sample.
func (b *Biquad) Process(x float64) float64 {
	y := b.b0*x + b.z1
	b.z1 = b.b1*x - b.a1*y + b.z2
	b.z2 = b.b2*x - b.a2*y
	return y
}

// Bandpass removes the mean of x and runs it through two high-pass sections
// at lowHz followed by two low-pass sections at highHz. The filters are
// built fresh on every call, so no state carries between windows.
func Bandpass(x []float64, fs, lowHz, highHz float64) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 || fs <= 0 {
		return out
	}
	mean := stat.Mean(x, nil)
	stages := []*Biquad{
		NewHighPass(lowHz, fs, ButterworthQ),
		NewHighPass(lowHz, fs, ButterworthQ),
		NewLowPass(highHz, fs, ButterworthQ),
		NewLowPass(highHz, fs, ButterworthQ),
	}
	for i, v := range x {
		y := v - mean
		for _, s := range stages {
			y = s.Process(y)
		}
		out[i] = y
	}
	return out
}
