package classify

import "sync"

// DefaultHistorySize is the number of results a History keeps by default.
const DefaultHistorySize = 20

// History keeps the most recent results in a circular buffer. It is safe
// for concurrent use.
type History struct {
	mu     sync.Mutex
	ring   []*Result // circular buffer of recent results
	pos    int       // next write position
	filled int       // number of slots filled (up to len(ring))
}

// NewHistory creates a History holding up to capacity results. A
// non-positive capacity uses DefaultHistorySize.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{ring: make([]*Result, capacity)}
}

// Add records a result, evicting the oldest when full.
func (h *History) Add(r *Result) {
	if r == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.ring[h.pos] = r
	h.pos = (h.pos + 1) % len(h.ring)
	if h.filled < len(h.ring) {
		h.filled++
	}
}

// Recent returns the stored results, newest first.
func (h *History) Recent() []*Result {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*Result, h.filled)
	for i := range h.filled {
		idx := (h.pos - 1 - i + len(h.ring)) % len(h.ring)
		out[i] = h.ring[idx]
	}
	return out
}

// Len returns the number of stored results.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.filled
}

// Cap returns the capacity.
func (h *History) Cap() int {
	return len(h.ring)
}

// Reset clears the history.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.pos = 0
	h.filled = 0
	clear(h.ring)
}
