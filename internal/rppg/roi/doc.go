// Package roi derives the facial regions of interest sampled for the pulse
// signal.
//
// Responsibilities: robust face bounding box from normalised landmarks,
// forehead/cheek/neck rectangles from anchor landmarks, eye and mouth
// exclusion boxes, clamping to frame bounds and rectangle smoothing.
// Key types: Landmark, Rect, Region, FaceBox.
//
// Extraction never fails hard: missing or non-finite anchors fall back to
// proportional positions inside the face box.
package roi
