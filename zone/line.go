package zone

import (
	"fmt"

	"github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation/geometry"
	"github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation/postprocess"
)

// side of the line an anchor lies on
type side int

const (
	sideUnknown side = iota
	sideIn
	sideOut
)

// TriggerResult holds the crossings detected on one frame
type TriggerResult struct {
	// CrossedIn is aligned with the detections passed to Trigger and is true
	// where the detection crossed onto the in side
	CrossedIn []bool
	// CrossedOut is true where the detection crossed onto the out side
	CrossedOut []bool
	// InDelta is the number of in crossings on this frame
	InDelta int
	// OutDelta is the number of out crossings on this frame
	OutDelta int
}

// LineZone counts tracked detections crossing a reference segment.  The in
// side is where the cross product (end-start) x (anchor-start) is negative,
// which for a left to right horizontal line is above it.
type LineZone struct {
	start geometry.Point
	end   geometry.Point
	// anchors are the box positions that must all agree on a side
	anchors []geometry.Position
	// limitToSegment ignores anchors beyond the segment ends
	limitToSegment bool
	// sides is the last known side per track id
	sides    map[int]side
	inCount  int
	outCount int
}

// LineOption configures a LineZone
type LineOption func(*LineZone)

// WithAnchors sets the box positions used to decide a detection's side.  A
// detection only has a side when all anchors lie on the same side.
func WithAnchors(anchors ...geometry.Position) LineOption {
	return func(l *LineZone) {
		if len(anchors) > 0 {
			l.anchors = append([]geometry.Position(nil), anchors...)
		}
	}
}

// WithSegmentLimits ignores anchors whose projection falls outside the
// segment, so only traversals of the segment itself are counted
func WithSegmentLimits() LineOption {
	return func(l *LineZone) {
		l.limitToSegment = true
	}
}

// NewLineZone returns a crossing counter for the segment start to end.  The
// bottom center of the box is used as anchor unless WithAnchors is given.
func NewLineZone(start, end geometry.Point, opts ...LineOption) (*LineZone, error) {

	if !start.IsFinite() || !end.IsFinite() {
		return nil, fmt.Errorf("%w: line endpoints must be finite", ErrInvalidZone)
	}

	if end.Sub(start).Norm() == 0 {
		return nil, fmt.Errorf("%w: line endpoints must be distinct", ErrInvalidZone)
	}

	l := &LineZone{
		start:   start,
		end:     end,
		anchors: []geometry.Position{geometry.BottomCenter},
		sides:   make(map[int]side),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l, nil
}

// Start returns the first endpoint of the segment
func (l *LineZone) Start() geometry.Point {
	return l.start
}

// End returns the second endpoint of the segment
func (l *LineZone) End() geometry.Point {
	return l.end
}

// InCount returns the total crossings onto the in side
func (l *LineZone) InCount() int {
	return l.inCount
}

// OutCount returns the total crossings onto the out side
func (l *LineZone) OutCount() int {
	return l.outCount
}

// Len returns the number of track ids with a recorded side
func (l *LineZone) Len() int {
	return len(l.sides)
}

// Remove forgets the recorded side of a track id
func (l *LineZone) Remove(trackID int) {
	delete(l.sides, trackID)
}

// Reset clears counters and recorded sides
func (l *LineZone) Reset() {
	l.sides = make(map[int]side)
	l.inCount = 0
	l.outCount = 0
}

// Trigger updates the counters with the tracked detections of one frame.
// It mutates state so must be called exactly once per frame.  Detections
// without a track id are ignored.
func (l *LineZone) Trigger(dets []postprocess.DetectResult) TriggerResult {

	res := TriggerResult{
		CrossedIn:  make([]bool, len(dets)),
		CrossedOut: make([]bool, len(dets)),
	}

	for i, det := range dets {

		if !det.HasTrack() {
			continue
		}

		current := l.sideOf(det.Box)

		if current == sideUnknown {
			continue
		}

		previous, seen := l.sides[det.TrackID]
		l.sides[det.TrackID] = current

		if !seen || previous == current {
			continue
		}

		if current == sideIn {
			res.CrossedIn[i] = true
			res.InDelta++
			l.inCount++
		} else {
			res.CrossedOut[i] = true
			res.OutDelta++
			l.outCount++
		}
	}

	return res
}

// sideOf returns the side all anchors of the box agree on
func (l *LineZone) sideOf(box postprocess.BoxRect) side {

	result := sideUnknown

	for _, pos := range l.anchors {
		s := l.pointSide(box.Anchor(pos))

		if s == sideUnknown || (result != sideUnknown && s != result) {
			return sideUnknown
		}

		result = s
	}

	return result
}

// pointSide classifies a point against the line.  Points exactly on the
// line, or beyond the segment ends when limited, have no side.
func (l *LineZone) pointSide(p geometry.Point) side {

	dir := l.end.Sub(l.start)
	rel := p.Sub(l.start)

	if l.limitToSegment {
		t := (rel.X*dir.X + rel.Y*dir.Y) / (dir.X*dir.X + dir.Y*dir.Y)

		if t < 0 || t > 1 {
			return sideUnknown
		}
	}

	cross := dir.Cross(rel)

	switch {
	case cross < 0:
		return sideIn
	case cross > 0:
		return sideOut
	}

	return sideUnknown
}
