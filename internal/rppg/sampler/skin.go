package sampler

import "math"

// IsSkin applies the dual skin rule: the RGB heuristic or the YCbCr box,
// either one additionally inside a wide HSV band.
func IsSkin(r, g, b uint8) bool {
	fr, fg, fb := float64(r), float64(g), float64(b)
	if !rgbRule(fr, fg, fb) && !ycbcrRule(fr, fg, fb) {
		return false
	}
	return hsvGate(fr, fg, fb)
}

func rgbRule(r, g, b float64) bool {
	hi := math.Max(r, math.Max(g, b))
	lo := math.Min(r, math.Min(g, b))
	return r > 95 && g > 40 && b > 20 &&
		hi-lo > 15 && math.Abs(r-g) > 15 && r > g && r > b
}

func ycbcrRule(r, g, b float64) bool {
	cb := 128 - 0.168736*r - 0.331264*g + 0.5*b
	cr := 128 + 0.5*r - 0.418688*g - 0.081312*b
	return cb >= 77 && cb <= 127 && cr >= 133 && cr <= 173
}

func hsvGate(r, g, b float64) bool {
	h, s, v := rgbToHSV(r, g, b)
	return (h <= 50 || h >= 335) && s >= 0.08 && s <= 0.85 && v >= 0.2
}

// rgbToHSV returns hue in degrees and saturation/value in [0, 1].
func rgbToHSV(r, g, b float64) (h, s, v float64) {
	r, g, b = r/255, g/255, b/255
	hi := math.Max(r, math.Max(g, b))
	lo := math.Min(r, math.Min(g, b))
	v = hi
	d := hi - lo
	if hi > 0 {
		s = d / hi
	}
	if d == 0 {
		return 0, s, v
	}
	switch hi {
	case r:
		h = 60 * math.Mod((g-b)/d, 6)
	case g:
		h = 60 * ((b-r)/d + 2)
	default:
		h = 60 * ((r-g)/d + 4)
	}
	if h < 0 {
		h += 360
	}
	return h, s, v
}
