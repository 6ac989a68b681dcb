package dsp

import "math"

// Series is a uniformly sampled waveform.
type Series struct {
	StartMs float64   // timestamp of Values[0]
	RateHz  float64   // sample rate
	Values  []float64 // samples
}

// Len returns the number of samples.
func (s Series) Len() int { return len(s.Values) }

// DurationSec returns the time spanned by the samples.
func (s Series) DurationSec() float64 {
	if len(s.Values) < 2 || s.RateHz <= 0 {
		return 0
	}
	return float64(len(s.Values)-1) / s.RateHz
}

// TimeAt returns the timestamp in milliseconds of sample i.
func (s Series) TimeAt(i int) float64 {
	return s.StartMs + float64(i)*1000/s.RateHz
}

// ValueAt linearly interpolates the series at tMs. ok is false outside the
// sampled span.
func (s Series) ValueAt(tMs float64) (v float64, ok bool) {
	if len(s.Values) == 0 || s.RateHz <= 0 {
		return 0, false
	}
	pos := (tMs - s.StartMs) * s.RateHz / 1000
	if pos < 0 || pos > float64(len(s.Values)-1) {
		return 0, false
	}
	i := int(math.Floor(pos))
	if i >= len(s.Values)-1 {
		return s.Values[len(s.Values)-1], true
	}
	frac := pos - float64(i)
	return s.Values[i]*(1-frac) + s.Values[i+1]*frac, true
}

// Tail returns the last n samples of s with StartMs adjusted. n larger than
// the series returns s unchanged.
func (s Series) Tail(n int) Series {
	if n >= len(s.Values) || n < 0 {
		return s
	}
	skip := len(s.Values) - n
	return Series{
		StartMs: s.TimeAt(skip),
		RateHz:  s.RateHz,
		Values:  s.Values[skip:],
	}
}

// Resample linearly interpolates the time-ordered samples (tsMs, vs) onto a
// uniform grid at rateHz covering [endMs - windowSec, endMs], truncated to
// the span actually covered by the input. The grid is anchored at its end
// so successive calls line up sample-for-sample with other regions
// resampled to the same endMs.
func Resample(tsMs, vs []float64, endMs, windowSec, rateHz float64) Series {
	out := Series{RateHz: rateHz}
	if len(tsMs) == 0 || len(tsMs) != len(vs) || rateHz <= 0 {
		return out
	}
	last := tsMs[len(tsMs)-1]
	if endMs > last {
		endMs = last
	}
	start := endMs - windowSec*1000
	if start < tsMs[0] {
		start = tsMs[0]
	}
	if endMs < start {
		return out
	}
	dtMs := 1000 / rateHz
	n := int(math.Floor((endMs-start)/dtMs+1e-9)) + 1
	out.StartMs = endMs - float64(n-1)*dtMs
	out.Values = make([]float64, n)

	j := 0
	for k := 0; k < n; k++ {
		t := out.StartMs + float64(k)*dtMs
		for j < len(tsMs)-2 && tsMs[j+1] < t {
			j++
		}
		if len(tsMs) == 1 {
			out.Values[k] = vs[0]
			continue
		}
		t0, t1 := tsMs[j], tsMs[j+1]
		switch {
		case t <= t0:
			out.Values[k] = vs[j]
		case t >= t1:
			out.Values[k] = vs[j+1]
		default:
			frac := (t - t0) / (t1 - t0)
			out.Values[k] = vs[j]*(1-frac) + vs[j+1]*frac
		}
	}
	return out
}
