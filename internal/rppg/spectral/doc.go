// Package spectral estimates heart rate from one filtered, fixed-rate
// waveform.
//
// Responsibilities: FFT candidate enumeration and scoring, re-picking near
// the previous estimate, parabolic peak refinement, the four-step harmonic
// cascade (promote, halve, rescue, guard), the autocorrelation estimate and
// the fusion of both into one Estimate with quality scores.
// Key types: Options, Search, Estimate, Alternate.
//
// The cascade order is fixed; its thresholds are Options fields.
package spectral
