package units

import (
	"math"
	"testing"
)

func TestHzToBPM(t *testing.T) {
	tests := []struct {
		name     string
		hz       float64
		expected float64
	}{
		{"resting pulse 1.2 Hz", 1.2, 72},
		{"resting breath 0.25 Hz", 0.25, 15},
		{"band edge 3 Hz", 3, 180},
		{"zero", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HzToBPM(tt.hz); math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("HzToBPM(%f) = %f, want %f", tt.hz, got, tt.expected)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	for _, bpm := range []float64{42, 72, 180} {
		if got := HzToBPM(BPMToHz(bpm)); math.Abs(got-bpm) > 1e-9 {
			t.Errorf("round trip %f -> %f", bpm, got)
		}
	}
}

func TestPeriodSamples(t *testing.T) {
	if got := PeriodSamples(72, 30); math.Abs(got-25) > 1e-9 {
		t.Errorf("PeriodSamples(72, 30) = %f, want 25", got)
	}
	if got := PeriodSamples(0, 30); got != 0 {
		t.Errorf("PeriodSamples(0, 30) = %f, want 0", got)
	}
	// the lag of one period converts back to the same rate
	if got := HzToBPM(30 / PeriodSamples(90, 30)); math.Abs(got-90) > 1e-9 {
		t.Errorf("rate from period = %f, want 90", got)
	}
}
