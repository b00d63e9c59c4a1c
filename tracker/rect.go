package tracker

import (
	"math"

	"github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation/postprocess"
)

// Xyah (center x, center y, aspect ratio, height) is the Kalman filter
// measurement form of a box
type Xyah [4]float64

// Rect is a box in top-left, width, height form
type Rect struct {
	X, Y, W, H float32
}

// NewRect creates a new Rect with given coordinates
func NewRect(x, y, width, height float32) Rect {
	return Rect{X: x, Y: y, W: width, H: height}
}

// IsValid reports whether the rect has finite coordinates and a positive
// area, which the Kalman measurement form requires
func (r Rect) IsValid() bool {

	for _, v := range []float32{r.X, r.Y, r.W, r.H} {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}

	return r.W > 0 && r.H > 0
}

// RectFromBox converts a detection box to a Rect
func RectFromBox(b postprocess.BoxRect) Rect {
	return Rect{X: b.Left, Y: b.Top, W: b.Width(), H: b.Height()}
}

// RectFromXyah creates a Rect from center x, center y, aspect ratio,
// height form
func RectFromXyah(xyah Xyah) Rect {
	width := xyah[2] * xyah[3]
	return Rect{
		X: float32(xyah[0] - width/2),
		Y: float32(xyah[1] - xyah[3]/2),
		W: float32(width),
		H: float32(xyah[3]),
	}
}

// TLX returns the top-left x coordinate of the rectangle
func (r Rect) TLX() float32 {
	return r.X
}

// TLY returns the top-left y coordinate of the rectangle
func (r Rect) TLY() float32 {
	return r.Y
}

// BRX returns the bottom-right x coordinate of the rectangle
func (r Rect) BRX() float32 {
	return r.X + r.W
}

// BRY returns the bottom-right y coordinate of the rectangle
func (r Rect) BRY() float32 {
	return r.Y + r.H
}

// Box converts the rectangle back to a detection box
func (r Rect) Box() postprocess.BoxRect {
	return postprocess.BoxRect{Left: r.X, Top: r.Y, Right: r.BRX(), Bottom: r.BRY()}
}

// Xyah converts the rectangle to center x, center y, aspect ratio, height
// form
func (r Rect) Xyah() Xyah {
	return Xyah{
		float64(r.X) + float64(r.W)/2,
		float64(r.Y) + float64(r.H)/2,
		float64(r.W) / float64(r.H),
		float64(r.H),
	}
}

// IoU calculates the Intersection over Union with another rectangle.  Box
// edges are pixel inclusive so a box of width w covers w+1 pixels.
func (r Rect) IoU(other Rect) float32 {

	iw := math.Min(float64(r.BRX()), float64(other.BRX())) -
		math.Max(float64(r.X), float64(other.X)) + 1

	if iw <= 0 {
		return 0
	}

	ih := math.Min(float64(r.BRY()), float64(other.BRY())) -
		math.Max(float64(r.Y), float64(other.Y)) + 1

	if ih <= 0 {
		return 0
	}

	inter := iw * ih
	union := float64(r.W+1)*float64(r.H+1) + float64(other.W+1)*float64(other.H+1) - inter

	return float32(inter / union)
}
