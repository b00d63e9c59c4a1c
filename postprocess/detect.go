package postprocess

import (
	"math"

	"github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation/geometry"
)

// BoxRect are the dimensions of the bounding box of a detect object in
// pixel coordinates
type BoxRect struct {
	Left   float32
	Top    float32
	Right  float32
	Bottom float32
}

// Width returns the box width
func (b BoxRect) Width() float32 {
	return b.Right - b.Left
}

// Height returns the box height
func (b BoxRect) Height() float32 {
	return b.Bottom - b.Top
}

// IsValid reports whether the box has finite coordinates and a positive
// area
func (b BoxRect) IsValid() bool {

	for _, v := range []float32{b.Left, b.Top, b.Right, b.Bottom} {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}

	return b.Right > b.Left && b.Bottom > b.Top
}

// Clip returns the box limited to a frame of the given resolution
func (b BoxRect) Clip(width, height int) BoxRect {
	return BoxRect{
		Left:   clampf(b.Left, 0, float32(width)),
		Top:    clampf(b.Top, 0, float32(height)),
		Right:  clampf(b.Right, 0, float32(width)),
		Bottom: clampf(b.Bottom, 0, float32(height)),
	}
}

// Anchor returns the point at the given position of the box
func (b BoxRect) Anchor(pos geometry.Position) geometry.Point {
	return geometry.Anchor(float64(b.Left), float64(b.Top), float64(b.Right),
		float64(b.Bottom), pos)
}

// DetectResult defines the attributes of a single object detected
type DetectResult struct {
	// Class is the line number in the labels file the Model was trained on
	// defining the Class of the detected object
	Class int
	// Box are the bounding box dimensions of the object location
	Box BoxRect
	// Probability is the confidence score of the object detected
	Probability float32
	// ID is a unique ID assigned to the detection result
	ID int64
	// TrackID is the tracker identity attached to the detection, zero when
	// the detection has not been associated with a track
	TrackID int
}

// HasTrack reports whether a tracker identity has been attached
func (d DetectResult) HasTrack() bool {
	return d.TrackID > 0
}

// Anchors returns the given anchor point for each detection in order
func Anchors(dets []DetectResult, pos geometry.Position) []geometry.Point {

	points := make([]geometry.Point, len(dets))

	for i, det := range dets {
		points[i] = det.Box.Anchor(pos)
	}

	return points
}

// clampf restricts val to the range min to max
func clampf(val, min, max float32) float32 {

	if val < min {
		return min
	}

	if val > max {
		return max
	}

	return val
}
