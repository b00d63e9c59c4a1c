package speed

// History is a fixed capacity ring buffer of samples, oldest evicted first
type History struct {
	buf []float64
	// head is the index of the oldest sample
	head int
	size int
}

// NewHistory returns an empty history holding at most capacity samples.  A
// capacity below 1 holds a single sample.
func NewHistory(capacity int) *History {

	if capacity < 1 {
		capacity = 1
	}

	return &History{buf: make([]float64, capacity)}
}

// Push appends a sample, evicting the oldest when full
func (h *History) Push(v float64) {

	if h.size < len(h.buf) {
		h.buf[(h.head+h.size)%len(h.buf)] = v
		h.size++
		return
	}

	h.buf[h.head] = v
	h.head = (h.head + 1) % len(h.buf)
}

// Len returns the number of samples held
func (h *History) Len() int {
	return h.size
}

// Cap returns the capacity
func (h *History) Cap() int {
	return len(h.buf)
}

// Oldest returns the oldest sample, false when empty
func (h *History) Oldest() (float64, bool) {

	if h.size == 0 {
		return 0, false
	}

	return h.buf[h.head], true
}

// Newest returns the most recent sample, false when empty
func (h *History) Newest() (float64, bool) {

	if h.size == 0 {
		return 0, false
	}

	return h.buf[(h.head+h.size-1)%len(h.buf)], true
}

// Values returns the samples oldest first
func (h *History) Values() []float64 {

	out := make([]float64, h.size)

	for i := range out {
		out[i] = h.buf[(h.head+i)%len(h.buf)]
	}

	return out
}
