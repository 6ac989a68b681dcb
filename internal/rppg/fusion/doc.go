// Package fusion combines the per-region pulse waveforms of one projection
// into a single heart-rate track.
//
// Responsibilities: per-region quality scoring, quality-weighted mixing of
// z-scored waveforms, and choosing between a tight band around the
// previous estimate and the full band (high-HR escape, escape
// confirmation, quality fallback, then low-candidate promotion).
// Key types: RegionInput, AlgorithmOutput, Tracker, Tracking.
//
// Dependency rule: fusion calls spectral for every estimate and never
// reads frames or pixels.
package fusion
