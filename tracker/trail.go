package tracker

import (
	"sync"

	"github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation/geometry"
)

// Trail keeps the most recent anchor points of each track for drawing
type Trail struct {
	// size is the maximum number of most recent points to keep per track
	size int
	// history of anchor points keyed by track id
	history map[int][]geometry.Point
	sync.Mutex
}

// NewTrail returns a new trail history instance.  Size is the maximum
// length of each trail, a size below 1 keeps a single point.
func NewTrail(size int) *Trail {

	if size < 1 {
		size = 1
	}

	return &Trail{
		size:    size,
		history: make(map[int][]geometry.Point),
	}
}

// Reset clears all history
func (t *Trail) Reset() {
	t.Lock()
	defer t.Unlock()

	t.history = make(map[int][]geometry.Point)
}

// Add appends a point to the trail of the track id dropping the oldest
// point when the trail is full
func (t *Trail) Add(id int, p geometry.Point) {
	t.Lock()
	defer t.Unlock()

	points := append(t.history[id], p)

	if len(points) > t.size {
		points = points[len(points)-t.size:]
	}

	t.history[id] = points
}

// Remove forgets the trail of a track id
func (t *Trail) Remove(id int) {
	t.Lock()
	defer t.Unlock()

	delete(t.history, id)
}

// Len returns the number of tracks with a trail
func (t *Trail) Len() int {
	t.Lock()
	defer t.Unlock()

	return len(t.history)
}

// GetPoints returns a copy of the point history for a track id, oldest
// first
func (t *Trail) GetPoints(id int) []geometry.Point {
	t.Lock()
	defer t.Unlock()

	points, exists := t.history[id]

	if !exists {
		// no history yet
		return nil
	}

	out := make([]geometry.Point, len(points))
	copy(out, points)

	return out
}
