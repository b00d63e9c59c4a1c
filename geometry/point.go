package geometry

import (
	"fmt"
	"math"
)

// Point is a 2D coordinate, either in pixel space or on the ground plane
type Point struct {
	X, Y float64
}

// Pt is shorthand for Point{X: x, Y: y}
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Sub returns the vector p-q
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Cross returns the z component of the cross product of p and q treated as
// vectors
func (p Point) Cross(q Point) float64 {
	return p.X*q.Y - p.Y*q.X
}

// Norm returns the euclidean length of p
func (p Point) Norm() float64 {
	return math.Hypot(p.X, p.Y)
}

// IsFinite reports whether both coordinates are finite numbers
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) &&
		!math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// Position names an anchor point on a bounding box
type Position int

const (
	Center Position = iota
	CenterLeft
	CenterRight
	TopCenter
	TopLeft
	TopRight
	BottomLeft
	BottomCenter
	BottomRight
)

// String returns the anchor name
func (p Position) String() string {
	switch p {
	case Center:
		return "center"
	case CenterLeft:
		return "center_left"
	case CenterRight:
		return "center_right"
	case TopCenter:
		return "top_center"
	case TopLeft:
		return "top_left"
	case TopRight:
		return "top_right"
	case BottomLeft:
		return "bottom_left"
	case BottomCenter:
		return "bottom_center"
	case BottomRight:
		return "bottom_right"
	}

	return "unknown"
}

// ParsePosition returns the Position named by s as produced by String
func ParsePosition(s string) (Position, error) {

	for p := Center; p <= BottomRight; p++ {
		if p.String() == s {
			return p, nil
		}
	}

	return Center, fmt.Errorf("unknown anchor position %q", s)
}

// Anchor returns the point at the given position of the box spanning
// (left, top) to (right, bottom)
func Anchor(left, top, right, bottom float64, pos Position) Point {

	cx := (left + right) / 2
	cy := (top + bottom) / 2

	switch pos {
	case CenterLeft:
		return Point{X: left, Y: cy}
	case CenterRight:
		return Point{X: right, Y: cy}
	case TopCenter:
		return Point{X: cx, Y: top}
	case TopLeft:
		return Point{X: left, Y: top}
	case TopRight:
		return Point{X: right, Y: top}
	case BottomLeft:
		return Point{X: left, Y: bottom}
	case BottomCenter:
		return Point{X: cx, Y: bottom}
	case BottomRight:
		return Point{X: right, Y: bottom}
	}

	return Point{X: cx, Y: cy}
}
