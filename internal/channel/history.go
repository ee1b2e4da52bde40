package channel

import "sync"

// History is a fixed-capacity circular buffer of output chunks. It lets
// late consumers catch up on a channel's recent output without holding the
// full stream in memory.
type History struct {
	mu       sync.RWMutex
	buf      []string
	capacity int
	pos      int // next write position
	full     bool
}

// NewHistory creates a history ring with the given capacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 1
	}
	return &History{
		buf:      make([]string, capacity),
		capacity: capacity,
	}
}

// Append adds an output chunk to the ring.
func (h *History) Append(chunk string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buf[h.pos] = chunk
	h.pos = (h.pos + 1) % h.capacity
	if h.pos == 0 {
		h.full = true
	}
}

// Lines returns all buffered chunks in chronological order.
func (h *History) Lines() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.full {
		result := make([]string, h.pos)
		copy(result, h.buf[:h.pos])
		return result
	}

	result := make([]string, h.capacity)
	copy(result, h.buf[h.pos:])
	copy(result[h.capacity-h.pos:], h.buf[:h.pos])
	return result
}

// Tail returns the most recent n chunks in chronological order.
func (h *History) Tail(n int) []string {
	lines := h.Lines()
	if n >= len(lines) {
		return lines
	}
	return lines[len(lines)-n:]
}

// Len returns the number of buffered chunks.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.full {
		return h.capacity
	}
	return h.pos
}
