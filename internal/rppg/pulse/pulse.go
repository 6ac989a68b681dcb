// Package pulse converts a short window of averaged region colour into one
// pulse-correlated scalar per frame using the POS and CHROM chrominance
// projections.
package pulse

import (
	"gonum.org/v1/gonum/stat"
)

// Algorithm selects a projection.
type Algorithm int

const (
	POS Algorithm = iota
	CHROM
)

// Algorithms lists every projection in evaluation order.
var Algorithms = []Algorithm{POS, CHROM}

func (a Algorithm) String() string {
	switch a {
	case POS:
		return "pos"
	case CHROM:
		return "chrom"
	default:
		return "unknown"
	}
}

// Config sizes the projection window.
type Config struct {
	WindowFrames int // most recent frames used
	MinFrames    int // fewer frames produce no sample
}

// DefaultConfig returns the default projection window.
func DefaultConfig() Config {
	return Config{WindowFrames: 45, MinFrames: 30}
}

// RGB is one frame's mean skin colour.
type RGB [3]float64

// Extract projects the trailing window of rgb and returns the most recent
// projected sample. ok is false when the window is too short or a channel
// mean is not positive.
func Extract(alg Algorithm, rgb []RGB, cfg Config) (v float64, ok bool) {
	if len(rgb) < cfg.MinFrames || len(rgb) < 2 {
		return 0, false
	}
	if cfg.WindowFrames > 0 && len(rgb) > cfg.WindowFrames {
		rgb = rgb[len(rgb)-cfg.WindowFrames:]
	}
	r, g, b, ok := normalise(rgb)
	if !ok {
		return 0, false
	}

	n := len(rgb)
	c1 := make([]float64, n)
	c2 := make([]float64, n)
	for i := range rgb {
		switch alg {
		case CHROM:
			c1[i] = 3*r[i] - 2*g[i]
			c2[i] = 1.5*r[i] + g[i] - 1.5*b[i]
		default:
			c1[i] = g[i] - b[i]
			c2[i] = g[i] + b[i] - 2*r[i]
		}
	}
	alpha := 0.0
	if sd2 := stat.PopStdDev(c2, nil); sd2 > 1e-12 {
		alpha = stat.PopStdDev(c1, nil) / sd2
	}
	last := n - 1
	if alg == CHROM {
		return c1[last] - alpha*c2[last], true
	}
	return c1[last] + alpha*c2[last], true
}

// normalise divides each channel by its window mean and subtracts one.
func normalise(rgb []RGB) (r, g, b []float64, ok bool) {
	n := len(rgb)
	ch := [3][]float64{make([]float64, n), make([]float64, n), make([]float64, n)}
	for c := 0; c < 3; c++ {
		for i := range rgb {
			ch[c][i] = rgb[i][c]
		}
		mean := stat.Mean(ch[c], nil)
		if mean <= 0 {
			return nil, nil, nil, false
		}
		for i := range ch[c] {
			ch[c][i] = ch[c][i]/mean - 1
		}
	}
	return ch[0], ch[1], ch[2], true
}
