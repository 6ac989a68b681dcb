package roi

import (
	"math"
	"sort"
)

// RegionID names a sampled facial region.
type RegionID string

const (
	Forehead   RegionID = "forehead"
	LeftCheek  RegionID = "left_cheek"  // image-left cheek
	RightCheek RegionID = "right_cheek" // image-right cheek
	Neck       RegionID = "neck"
)

// AllRegions lists the regions in extraction order.
var AllRegions = []RegionID{Forehead, LeftCheek, RightCheek, Neck}

// Face-mesh anchor indices (468-point MediaPipe topology).
const (
	FaceMeshSize = 468

	AnchorForeheadTop   = 10
	AnchorNoseTip       = 1
	AnchorLeftEyeOuter  = 33
	AnchorLeftEyeInner  = 133
	AnchorLeftEyeTop    = 159
	AnchorLeftEyeBottom = 145
	AnchorRightEyeOuter = 263
	AnchorRightEyeInner = 362
	AnchorRightEyeTop   = 386
	AnchorRightEyeBot   = 374
	AnchorMouthLeft     = 61
	AnchorMouthRight    = 291
	AnchorUpperLip      = 13
	AnchorLowerLip      = 14
	AnchorChin          = 152
	AnchorJawLeft       = 234
	AnchorJawRight      = 454
)

// fallbackPosition gives each anchor's proportional position inside the
// face box when the detector did not supply it.
var fallbackPosition = map[int]Point{
	AnchorForeheadTop:   {0.50, 0.00},
	AnchorNoseTip:       {0.50, 0.60},
	AnchorLeftEyeOuter:  {0.20, 0.38},
	AnchorLeftEyeInner:  {0.40, 0.38},
	AnchorLeftEyeTop:    {0.30, 0.35},
	AnchorLeftEyeBottom: {0.30, 0.41},
	AnchorRightEyeOuter: {0.80, 0.38},
	AnchorRightEyeInner: {0.60, 0.38},
	AnchorRightEyeTop:   {0.70, 0.35},
	AnchorRightEyeBot:   {0.70, 0.41},
	AnchorMouthLeft:     {0.35, 0.75},
	AnchorMouthRight:    {0.65, 0.75},
	AnchorUpperLip:      {0.50, 0.73},
	AnchorLowerLip:      {0.50, 0.79},
	AnchorChin:          {0.50, 1.00},
	AnchorJawLeft:       {0.00, 0.50},
	AnchorJawRight:      {1.00, 0.50},
}

// Config holds the region geometry, expressed as fractions of the face box.
type Config struct {
	MinLandmarks   int     // fewer landmarks than this skips extraction
	TrimPercentile float64 // lower/upper percentile trimmed from the face box

	ForeheadWidth  float64
	ForeheadHeight float64
	ForeheadGap    float64 // distance above the eye line

	CheekWidth   float64
	CheekHeight  float64
	CheekInset   float64 // horizontal shift away from the nose
	CheekDropout float64 // vertical shift below the eye/nose midpoint

	NeckWidth  float64
	NeckHeight float64
	NeckGap    float64 // distance below the chin

	EyeInflateX   float64
	EyeInflateY   float64
	MouthInflateX float64
	MouthInflateY float64

	MinRectSize int // pixels
}

// DefaultConfig returns the default region geometry.
func DefaultConfig() Config {
	return Config{
		MinLandmarks:   60,
		TrimPercentile: 0.02,
		ForeheadWidth:  0.45,
		ForeheadHeight: 0.16,
		ForeheadGap:    0.10,
		CheekWidth:     0.18,
		CheekHeight:    0.14,
		CheekInset:     0.02,
		CheekDropout:   0.04,
		NeckWidth:      0.35,
		NeckHeight:     0.18,
		NeckGap:        0.04,
		EyeInflateX:    0.04,
		EyeInflateY:    0.03,
		MouthInflateX:  0.03,
		MouthInflateY:  0.03,
		MinRectSize:    2,
	}
}

// FaceBox is the percentile-trimmed bounding box of the landmarks in pixels.
type FaceBox struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// Width returns the box width in pixels.
func (b FaceBox) Width() float64 { return b.MaxX - b.MinX }

// Height returns the box height in pixels.
func (b FaceBox) Height() float64 { return b.MaxY - b.MinY }

// at maps a proportional position inside the box to pixels.
func (b FaceBox) at(p Point) Point {
	return Point{X: b.MinX + p.X*b.Width(), Y: b.MinY + p.Y*b.Height()}
}

// Region is one extracted region of interest.
type Region struct {
	ID         RegionID `json:"id"`
	Rect       Rect     `json:"rect"`
	Exclusions []Rect   `json:"exclusions,omitempty"`
}

// Extraction is the result of Extract.
type Extraction struct {
	Box       FaceBox
	Regions   []Region
	Fallbacks int // anchors that used a proportional fallback
}

// Extract derives the regions of interest for one frame. ok is false when
// fewer than cfg.MinLandmarks landmarks are supplied or the frame is
// degenerate; the caller then skips sampling for the frame.
func Extract(lms []Landmark, width, height int, cfg Config) (ext Extraction, ok bool) {
	if len(lms) < cfg.MinLandmarks || width < cfg.MinRectSize || height < cfg.MinRectSize {
		return Extraction{}, false
	}
	box, ok := faceBox(lms, width, height, cfg.TrimPercentile)
	if !ok {
		return Extraction{}, false
	}
	ext.Box = box

	anchor := func(idx int) Point {
		if idx < len(lms) {
			lm := lms[idx]
			if isFinite(lm.X) && isFinite(lm.Y) {
				return Point{X: lm.X * float64(width), Y: lm.Y * float64(height)}
			}
		}
		ext.Fallbacks++
		return box.at(fallbackPosition[idx])
	}

	fw, fh := box.Width(), box.Height()
	leftEye := eyeBox(anchor(AnchorLeftEyeOuter), anchor(AnchorLeftEyeInner), anchor(AnchorLeftEyeTop), anchor(AnchorLeftEyeBottom))
	rightEye := eyeBox(anchor(AnchorRightEyeOuter), anchor(AnchorRightEyeInner), anchor(AnchorRightEyeTop), anchor(AnchorRightEyeBot))
	nose := anchor(AnchorNoseTip)
	mouthL, mouthR := anchor(AnchorMouthLeft), anchor(AnchorMouthRight)
	lipTop, lipBottom := anchor(AnchorUpperLip), anchor(AnchorLowerLip)
	chin := anchor(AnchorChin)
	top := anchor(AnchorForeheadTop)

	clamp := func(x0, y0, x1, y1 float64) Rect {
		return ClampRect(x0, y0, x1, y1, width, height, cfg.MinRectSize)
	}

	exclusions := []Rect{
		clamp(leftEye.x0-cfg.EyeInflateX*fw, leftEye.y0-cfg.EyeInflateY*fh, leftEye.x1+cfg.EyeInflateX*fw, leftEye.y1+cfg.EyeInflateY*fh),
		clamp(rightEye.x0-cfg.EyeInflateX*fw, rightEye.y0-cfg.EyeInflateY*fh, rightEye.x1+cfg.EyeInflateX*fw, rightEye.y1+cfg.EyeInflateY*fh),
		clamp(math.Min(mouthL.X, mouthR.X)-cfg.MouthInflateX*fw, math.Min(lipTop.Y, lipBottom.Y)-cfg.MouthInflateY*fh,
			math.Max(mouthL.X, mouthR.X)+cfg.MouthInflateX*fw, math.Max(lipTop.Y, lipBottom.Y)+cfg.MouthInflateY*fh),
	}

	// Forehead sits above the eye line, centred between the eyes.
	eyeLineY := (leftEye.cy() + rightEye.cy()) / 2
	fx := (leftEye.cx() + rightEye.cx()) / 2
	fBottom := eyeLineY - cfg.ForeheadGap*fh
	fTop := math.Max(fBottom-cfg.ForeheadHeight*fh, math.Max(box.MinY, top.Y))
	forehead := clamp(fx-cfg.ForeheadWidth*fw/2, fTop, fx+cfg.ForeheadWidth*fw/2, fBottom)

	// Cheeks sit between the eye centre and the mouth corner, below the
	// eye/nose midpoint.
	cheek := func(eye eyeRect, mouth Point, outward float64) Rect {
		cx := (eye.cx()+mouth.X)/2 + outward*cfg.CheekInset*fw
		cy := (nose.Y+eye.cy())/2 + cfg.CheekDropout*fh
		return clamp(cx-cfg.CheekWidth*fw/2, cy-cfg.CheekHeight*fh/2, cx+cfg.CheekWidth*fw/2, cy+cfg.CheekHeight*fh/2)
	}
	left := cheek(leftEye, mouthL, -1)
	right := cheek(rightEye, mouthR, +1)

	nTop := chin.Y + cfg.NeckGap*fh
	neck := clamp(chin.X-cfg.NeckWidth*fw/2, nTop, chin.X+cfg.NeckWidth*fw/2, nTop+cfg.NeckHeight*fh)

	for _, r := range []Region{
		{ID: Forehead, Rect: forehead},
		{ID: LeftCheek, Rect: left},
		{ID: RightCheek, Rect: right},
		{ID: Neck, Rect: neck},
	} {
		for _, ex := range exclusions {
			if r.Rect.Intersects(ex) {
				r.Exclusions = append(r.Exclusions, ex)
			}
		}
		ext.Regions = append(ext.Regions, r)
	}
	return ext, true
}

type eyeRect struct{ x0, y0, x1, y1 float64 }

func (e eyeRect) cx() float64 { return (e.x0 + e.x1) / 2 }
func (e eyeRect) cy() float64 { return (e.y0 + e.y1) / 2 }

func eyeBox(outer, inner, top, bottom Point) eyeRect {
	return eyeRect{
		x0: math.Min(outer.X, inner.X),
		x1: math.Max(outer.X, inner.X),
		y0: math.Min(math.Min(top.Y, bottom.Y), math.Min(outer.Y, inner.Y)),
		y1: math.Max(math.Max(top.Y, bottom.Y), math.Max(outer.Y, inner.Y)),
	}
}

// faceBox computes the percentile-trimmed landmark bounding box in pixels.
func faceBox(lms []Landmark, width, height int, trim float64) (FaceBox, bool) {
	xs := make([]float64, 0, len(lms))
	ys := make([]float64, 0, len(lms))
	for _, lm := range lms {
		if !isFinite(lm.X) || !isFinite(lm.Y) {
			continue
		}
		xs = append(xs, lm.X*float64(width))
		ys = append(ys, lm.Y*float64(height))
	}
	if len(xs) < 2 {
		return FaceBox{}, false
	}
	sort.Float64s(xs)
	sort.Float64s(ys)
	box := FaceBox{
		MinX: percentile(xs, trim),
		MaxX: percentile(xs, 1-trim),
		MinY: percentile(ys, trim),
		MaxY: percentile(ys, 1-trim),
	}
	if box.Width() < 1 || box.Height() < 1 {
		return FaceBox{}, false
	}
	return box, true
}

// percentile linearly interpolates the p-quantile of sorted values.
func percentile(sorted []float64, p float64) float64 {
	pos := p * float64(len(sorted)-1)
	i := int(math.Floor(pos))
	if i >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(i)
	return sorted[i]*(1-frac) + sorted[i+1]*frac
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
