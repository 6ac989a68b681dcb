// Package dsp holds the signal-processing primitives shared by the pulse
// and respiration estimators.
//
// Responsibilities: resampling irregular frame-timed samples onto a fixed
// grid, biquad band-limiting, Hamming-windowed power spectra, overlap
// normalised autocorrelation, lagged cross-correlation and robust
// statistics (median, MAD, z-scores).
// Key types: Series, Spectrum, Biquad.
//
// Dependency rule: dsp depends on gonum only. It knows nothing about
// faces, regions or publication.
package dsp
