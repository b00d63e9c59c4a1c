package zone

import (
	"errors"
	"fmt"
	"math"

	"github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation/geometry"
	"github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation/postprocess"
	clipper "github.com/ctessum/go.clipper"
)

// ErrInvalidZone is returned when a zone is constructed from unusable
// geometry
var ErrInvalidZone = errors.New("invalid zone")

const (
	// clipScale converts pixel coordinates to clipper integer coordinates
	// keeping three decimal places
	clipScale = 1000.0
	// edgeTolerance is the distance in pixels at which a point counts as
	// lying on a polygon edge
	edgeTolerance = 1e-3
)

// PolygonZone tests whether detections lie inside a fixed polygonal region
// of the frame
type PolygonZone struct {
	// polygon as given at construction
	polygon []geometry.Point
	// regions is the polygon clipped to the frame, usually a single ring
	regions [][]geometry.Point
	width   int
	height  int
	// anchor is the box position tested against the zone
	anchor geometry.Position
	// currentCount is the number of detections inside on the last Trigger
	currentCount int
}

// NewPolygonZone returns a zone for the polygon on a frame of the given
// resolution.  The polygon is clipped to the frame.
func NewPolygonZone(polygon []geometry.Point, width, height int,
	anchor geometry.Position) (*PolygonZone, error) {

	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: frame resolution %dx%d", ErrInvalidZone, width, height)
	}

	if len(polygon) < 3 {
		return nil, fmt.Errorf("%w: polygon needs at least 3 vertices, got %d",
			ErrInvalidZone, len(polygon))
	}

	for i, p := range polygon {
		if !p.IsFinite() {
			return nil, fmt.Errorf("%w: vertex %d is not finite", ErrInvalidZone, i)
		}
	}

	if math.Abs(area(polygon)) < edgeTolerance {
		return nil, fmt.Errorf("%w: polygon has no area", ErrInvalidZone)
	}

	regions, err := clipToFrame(polygon, width, height)

	if err != nil {
		return nil, err
	}

	poly := make([]geometry.Point, len(polygon))
	copy(poly, polygon)

	return &PolygonZone{
		polygon: poly,
		regions: regions,
		width:   width,
		height:  height,
		anchor:  anchor,
	}, nil
}

// clipToFrame intersects the polygon with the frame rectangle
func clipToFrame(polygon []geometry.Point, width, height int) ([][]geometry.Point, error) {

	var subject clipper.Path

	for _, p := range polygon {
		subject = append(subject, &clipper.IntPoint{
			X: clipper.CInt(math.Round(p.X * clipScale)),
			Y: clipper.CInt(math.Round(p.Y * clipScale)),
		})
	}

	w := clipper.CInt(width) * clipScale
	h := clipper.CInt(height) * clipScale

	frame := clipper.Path{
		&clipper.IntPoint{X: 0, Y: 0},
		&clipper.IntPoint{X: w, Y: 0},
		&clipper.IntPoint{X: w, Y: h},
		&clipper.IntPoint{X: 0, Y: h},
	}

	c := clipper.NewClipper(0)
	c.AddPath(subject, clipper.PtSubject, true)
	c.AddPath(frame, clipper.PtClip, true)

	solution, ok := c.Execute1(clipper.CtIntersection, clipper.PftNonZero, clipper.PftNonZero)

	if !ok {
		return nil, fmt.Errorf("%w: failed to clip polygon to frame", ErrInvalidZone)
	}

	var regions [][]geometry.Point

	for _, path := range solution {
		if len(path) < 3 {
			continue
		}

		ring := make([]geometry.Point, 0, len(path))

		for _, ip := range path {
			ring = append(ring, geometry.Pt(float64(ip.X)/clipScale, float64(ip.Y)/clipScale))
		}

		regions = append(regions, ring)
	}

	if len(regions) == 0 {
		return nil, fmt.Errorf("%w: polygon lies outside the %dx%d frame", ErrInvalidZone, width, height)
	}

	return regions, nil
}

// Polygon returns a copy of the polygon the zone was created with
func (z *PolygonZone) Polygon() []geometry.Point {
	out := make([]geometry.Point, len(z.polygon))
	copy(out, z.polygon)
	return out
}

// Regions returns a copy of the polygon rings after clipping to the frame
func (z *PolygonZone) Regions() [][]geometry.Point {

	out := make([][]geometry.Point, len(z.regions))

	for i, ring := range z.regions {
		out[i] = make([]geometry.Point, len(ring))
		copy(out[i], ring)
	}

	return out
}

// Anchor returns the box position tested against the zone
func (z *PolygonZone) Anchor() geometry.Position {
	return z.anchor
}

// Contains reports whether p lies inside the zone.  Points on an edge are
// inside.
func (z *PolygonZone) Contains(p geometry.Point) bool {

	for _, ring := range z.regions {
		if onBoundary(ring, p) || rayCast(ring, p) {
			return true
		}
	}

	return false
}

// Trigger returns a mask aligned with dets that is true where the
// detection's anchor, taken from the box clipped to the frame, lies inside
// the zone
func (z *PolygonZone) Trigger(dets []postprocess.DetectResult) []bool {

	mask := make([]bool, len(dets))
	count := 0

	for i, det := range dets {
		anchor := det.Box.Clip(z.width, z.height).Anchor(z.anchor)

		if z.Contains(anchor) {
			mask[i] = true
			count++
		}
	}

	z.currentCount = count

	return mask
}

// CurrentCount returns the number of detections inside the zone on the last
// Trigger
func (z *PolygonZone) CurrentCount() int {
	return z.currentCount
}

// rayCast is the even-odd crossing test of a horizontal ray from p
func rayCast(ring []geometry.Point, p geometry.Point) bool {

	inside := false

	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		a, b := ring[i], ring[j]

		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := a.X + (p.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)

			if p.X < x {
				inside = !inside
			}
		}
	}

	return inside
}

// onBoundary reports whether p lies on any edge of the ring
func onBoundary(ring []geometry.Point, p geometry.Point) bool {

	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		if distToSegment(p, ring[j], ring[i]) <= edgeTolerance {
			return true
		}
	}

	return false
}

// distToSegment returns the distance from p to the segment ab
func distToSegment(p, a, b geometry.Point) float64 {

	ab := b.Sub(a)
	ap := p.Sub(a)
	lenSq := ab.X*ab.X + ab.Y*ab.Y

	if lenSq == 0 {
		return ap.Norm()
	}

	t := (ap.X*ab.X + ap.Y*ab.Y) / lenSq
	t = math.Max(0, math.Min(1, t))

	return p.Sub(geometry.Pt(a.X+t*ab.X, a.Y+t*ab.Y)).Norm()
}

// area returns the signed shoelace area of the polygon
func area(polygon []geometry.Point) float64 {

	var sum float64

	for i, j := 0, len(polygon)-1; i < len(polygon); j, i = i, i+1 {
		sum += polygon[j].Cross(polygon[i])
	}

	return sum / 2
}
