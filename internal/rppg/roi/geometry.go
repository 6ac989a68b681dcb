package roi

import "math"

// Landmark is a normalised face-mesh point; X and Y are in [0, 1] of the
// frame width and height.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Point is a position in frame pixel coordinates.
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned pixel rectangle [X, X+W) x [Y, Y+H).
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Empty reports whether r covers no pixels.
func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// Contains reports whether pixel (x, y) lies inside r.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

// Intersects reports whether r and o share at least one pixel.
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.X+o.W && o.X < r.X+r.W && r.Y < o.Y+o.H && o.Y < r.Y+r.H
}

// Center returns the centre of r.
func (r Rect) Center() Point {
	return Point{X: float64(r.X) + float64(r.W)/2, Y: float64(r.Y) + float64(r.H)/2}
}

// Area returns the pixel count of r.
func (r Rect) Area() int {
	if r.Empty() {
		return 0
	}
	return r.W * r.H
}

// ClampRect converts the float box [x0, x1] x [y0, y1] into a pixel
// rectangle inside a width x height frame, at least minSize pixels on
// each side.
func ClampRect(x0, y0, x1, y1 float64, width, height, minSize int) Rect {
	minSize = max(minSize, 1)
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	clampAxis := func(a, b float64, limit int) (int, int) {
		if limit <= minSize {
			return 0, max(limit, 0)
		}
		lo := int(math.Floor(finiteOr(a, 0)))
		hi := int(math.Ceil(finiteOr(b, 0)))
		lo = max(0, min(lo, limit-minSize))
		hi = max(lo+minSize, min(hi, limit))
		return lo, hi
	}
	ax, bx := clampAxis(x0, x1, width)
	ay, by := clampAxis(y0, y1, height)
	return Rect{X: ax, Y: ay, W: bx - ax, H: by - ay}
}

// SmoothRect blends next into prev with weight alpha on next. An empty
// prev returns next unchanged.
func SmoothRect(prev, next Rect, alpha float64) Rect {
	if prev.Empty() || alpha >= 1 {
		return next
	}
	blend := func(a, b int) int {
		return int(math.Round(float64(a)*(1-alpha) + float64(b)*alpha))
	}
	return Rect{
		X: blend(prev.X, next.X),
		Y: blend(prev.Y, next.Y),
		W: max(blend(prev.W, next.W), 1),
		H: max(blend(prev.H, next.H), 1),
	}
}

func finiteOr(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
