// Package rppg is the remote-photoplethysmography engine: it turns a
// stream of camera frames plus face landmarks into a quality-gated heart
// rate and a breathing rate.
//
// Responsibilities: per-region buffers and their pruning, the tick
// throttle, wiring the pipeline (roi -> sampler -> pulse -> dsp ->
// fusion/spectral -> confidence -> gate), respiration and coupling, and
// the session aggregate.
// Key types: Engine, Config, Frame, UpdateResult.
//
// Dependency rule: the engine owns all mutable state; the subpackages are
// either pure functions or small state holders the engine drives. Nothing
// here blocks or starts goroutines.
package rppg
