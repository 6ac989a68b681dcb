// Package sampler classifies region pixels as skin or non-skin and reduces
// each region to a mean skin colour plus exposure diagnostics.
//
// Responsibilities: strided pixel walk with exclusion boxes, clipping and
// specular rejection, the RGB/YCbCr skin rule with its HSV gate, and the
// active/inactive decision.
// Key types: Config, Sample.
//
// An inactive region is not an error; it returns zeroed colour with
// Active=false so fusion assigns it no weight.
package sampler
