// Package units converts between the frequencies used by signal processing
// and the per-minute rates that are reported.
package units

// HzToBPM converts a frequency in Hz to cycles per minute.
func HzToBPM(hz float64) float64 { return hz * 60 }

// BPMToHz converts cycles per minute to Hz.
func BPMToHz(bpm float64) float64 { return bpm / 60 }

// PeriodSamples returns the lag in samples of one cycle at bpm for a
// waveform sampled at sampleRateHz. Returns 0 for non-positive bpm.
func PeriodSamples(bpm, sampleRateHz float64) float64 {
	if bpm <= 0 {
		return 0
	}
	return sampleRateHz * 60 / bpm
}
