package sampler

import (
	"fmt"
	"math"

	"github.com/banshee-data/pulse.report/internal/rppg/roi"
)

// Config controls pixel selection.
type Config struct {
	Stride         int     // sample every Stride-th pixel in x and y
	MinSkinRatio   float64 // skin pixels / sampled pixels
	MinSkinPixels  int
	ClipLow        uint8 // any channel at or below is clipped
	ClipHigh       uint8 // any channel at or above is clipped
	SpecularLuma   float64
	SpecularMaxSat float64
}

// DefaultConfig returns the default sampler configuration.
func DefaultConfig() Config {
	return Config{
		Stride:         2,
		MinSkinRatio:   0.35,
		MinSkinPixels:  40,
		ClipLow:        5,
		ClipHigh:       250,
		SpecularLuma:   235,
		SpecularMaxSat: 0.12,
	}
}

// Sample is the per-frame aggregate for one region. R, G, B and Luma are
// skin-pixel means and are zero when the region is inactive.
type Sample struct {
	Active bool    `json:"active"`
	R      float64 `json:"r"`
	G      float64 `json:"g"`
	B      float64 `json:"b"`
	Luma   float64 `json:"luma"`

	SkinRatio     float64 `json:"skin_ratio"`
	SkinPixels    int     `json:"skin_pixels"`
	ClippedRatio  float64 `json:"clipped_ratio"`
	SpecularRatio float64 `json:"specular_ratio"`
	LumaMean      float64 `json:"luma_mean"` // over all sampled pixels
	LumaStd       float64 `json:"luma_std"`
	Sampled       int     `json:"sampled"`
}

// SampleRegion classifies the strided pixels of rect, skipping those that
// fall inside any exclusion rectangle. pix is a row-major RGB buffer of a
// width x height frame; a shorter buffer is a caller bug and panics.
func SampleRegion(pix []byte, width, height int, rect roi.Rect, exclusions []roi.Rect, cfg Config) Sample {
	if len(pix) < width*height*3 {
		panic(fmt.Sprintf("sampler: pixel buffer has %d bytes, need %d for %dx%d RGB", len(pix), width*height*3, width, height))
	}
	stride := max(cfg.Stride, 1)
	x0, y0 := max(rect.X, 0), max(rect.Y, 0)
	x1, y1 := min(rect.X+rect.W, width), min(rect.Y+rect.H, height)

	var (
		out                        Sample
		sumR, sumG, sumB, sumSkinY float64
		sumY, sumYY                float64
		clipped, specular          int
	)
	for y := y0; y < y1; y += stride {
		row := y * width * 3
	pixel:
		for x := x0; x < x1; x += stride {
			for _, ex := range exclusions {
				if ex.Contains(x, y) {
					continue pixel
				}
			}
			off := row + x*3
			r, g, b := pix[off], pix[off+1], pix[off+2]
			out.Sampled++

			fr, fg, fb := float64(r), float64(g), float64(b)
			luma := 0.299*fr + 0.587*fg + 0.114*fb
			sumY += luma
			sumYY += luma * luma

			isClipped := isClip(r, g, b, cfg)
			if isClipped {
				clipped++
			}
			hi := math.Max(fr, math.Max(fg, fb))
			lo := math.Min(fr, math.Min(fg, fb))
			sat := 0.0
			if hi > 0 {
				sat = (hi - lo) / hi
			}
			isSpecular := luma >= cfg.SpecularLuma && sat <= cfg.SpecularMaxSat
			if isSpecular {
				specular++
			}
			if isClipped || isSpecular || !IsSkin(r, g, b) {
				continue
			}
			out.SkinPixels++
			sumR += fr
			sumG += fg
			sumB += fb
			sumSkinY += luma
		}
	}
	if out.Sampled == 0 {
		return out
	}

	n := float64(out.Sampled)
	out.SkinRatio = float64(out.SkinPixels) / n
	out.ClippedRatio = float64(clipped) / n
	out.SpecularRatio = float64(specular) / n
	out.LumaMean = sumY / n
	out.LumaStd = math.Sqrt(math.Max(0, sumYY/n-out.LumaMean*out.LumaMean))

	if out.SkinPixels < cfg.MinSkinPixels || out.SkinRatio < cfg.MinSkinRatio {
		return out
	}
	k := float64(out.SkinPixels)
	out.Active = true
	out.R, out.G, out.B = sumR/k, sumG/k, sumB/k
	out.Luma = sumSkinY / k
	return out
}

func isClip(r, g, b uint8, cfg Config) bool {
	return r <= cfg.ClipLow || g <= cfg.ClipLow || b <= cfg.ClipLow ||
		r >= cfg.ClipHigh || g >= cfg.ClipHigh || b >= cfg.ClipHigh
}
