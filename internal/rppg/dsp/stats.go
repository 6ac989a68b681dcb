package dsp

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 limits v to [0, 1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return Clamp(v, 0, 1)
}

// Median returns the midpoint median of xs, averaging the two central
// values for even lengths. Returns NaN for empty input. xs is not modified.
// stat.Quantile(0.5, stat.Empirical, ...) returns the lower middle value
// instead, which biases even-length MAD ranges.
func Median(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return math.NaN()
	}
	sorted := make([]float64, n)
	copy(sorted, xs)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return 0.5 * (sorted[n/2-1] + sorted[n/2])
}

// MAD returns the median and the median absolute deviation of xs.
func MAD(xs []float64) (median, mad float64) {
	median = Median(xs)
	if len(xs) == 0 {
		return median, math.NaN()
	}
	dev := make([]float64, len(xs))
	for i, x := range xs {
		dev[i] = math.Abs(x - median)
	}
	return median, Median(dev)
}

// MeanAbsDev returns the mean absolute deviation of xs around center.
func MeanAbsDev(xs []float64, center float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, x := range xs {
		sum += math.Abs(x - center)
	}
	return sum / float64(len(xs))
}

// ZScore returns (x - mean) / std using the population standard deviation.
// A flat input yields all zeros rather than NaNs.
func ZScore(xs []float64) []float64 {
	out := make([]float64, len(xs))
	if len(xs) == 0 {
		return out
	}
	mean, std := stat.PopMeanStdDev(xs, nil)
	if std < 1e-12 || math.IsNaN(std) {
		return out
	}
	for i, x := range xs {
		out[i] = (x - mean) / std
	}
	return out
}

// StdDev returns the population standard deviation of xs, 0 for fewer than
// two samples.
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	_, std := stat.PopMeanStdDev(xs, nil)
	return std
}

// ParabolicOffset returns the sub-bin offset of a peak at the centre of three
// equally spaced samples a, b, c. The offset is clamped to [-0.5, 0.5] and is
// zero when the samples do not form a local maximum.
func ParabolicOffset(a, b, c float64) float64 {
	denom := a - 2*b + c
	if denom >= 0 || math.IsNaN(denom) {
		return 0
	}
	return Clamp(0.5*(a-c)/denom, -0.5, 0.5)
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
