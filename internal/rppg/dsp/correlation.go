package dsp

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Autocorrelation returns the overlap-normalised autocorrelation of x for
// lags in [minLag, maxLag]. The result is indexed by lag; entries below
// minLag are zero. x should already be zero-mean.
func Autocorrelation(x []float64, minLag, maxLag int) []float64 {
	maxLag = min(maxLag, len(x)-2)
	if maxLag < 1 || minLag > maxLag {
		return nil
	}
	r := make([]float64, maxLag+1)
	for lag := max(minLag, 1); lag <= maxLag; lag++ {
		var xy, xx, yy float64
		for i := 0; i+lag < len(x); i++ {
			a, b := x[i], x[i+lag]
			xy += a * b
			xx += a * a
			yy += b * b
		}
		if den := math.Sqrt(xx * yy); den > 0 {
			r[lag] = xy / den
		}
	}
	return r
}

// LaggedCorrelation returns the Pearson correlation between a and b with
// the largest magnitude over lags in [-maxLag, maxLag], together with the
// lag at which it occurs (positive lag shifts b later). Lags leaving fewer
// than minOverlap paired samples are skipped; ok is false if none remain.
func LaggedCorrelation(a, b []float64, maxLag, minOverlap int) (r float64, lag int, ok bool) {
	n := min(len(a), len(b))
	minOverlap = max(minOverlap, 3)
	for l := -maxLag; l <= maxLag; l++ {
		var xa, xb []float64
		if l >= 0 {
			if l >= n {
				continue
			}
			xa, xb = a[:n-l], b[l:n]
		} else {
			if -l >= n {
				continue
			}
			xa, xb = a[-l:n], b[:n+l]
		}
		if len(xa) < minOverlap {
			continue
		}
		if StdDev(xa) < 1e-12 || StdDev(xb) < 1e-12 {
			continue
		}
		c := stat.Correlation(xa, xb, nil)
		if math.IsNaN(c) {
			continue
		}
		if !ok || math.Abs(c) > math.Abs(r) {
			r, lag, ok = c, l, true
		}
	}
	return r, lag, ok
}
