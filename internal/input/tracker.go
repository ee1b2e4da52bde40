package input

import (
	"sync"

	"github.com/abdullathedruid/blockterm/internal/classify"
)

// Tracker holds the current routing mode, the focused block it belongs
// to, and the locally composed command line.
type Tracker struct {
	mu      sync.RWMutex
	mode    Mode
	blockID string
	buffer  string
}

// NewTracker creates a tracker in normal mode with no focused block.
func NewTracker() *Tracker {
	return &Tracker{
		mode: ModeNormal,
	}
}

// Mode returns the current routing mode.
func (t *Tracker) Mode() Mode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mode
}

// FocusedBlock returns the block id input is associated with, or empty
// when nothing has focus.
func (t *Tracker) FocusedBlock() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.blockID
}

// Observe records a focus change and derives the routing mode from the
// focused block's classification.
func (t *Tracker) Observe(blockID string, cls classify.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.blockID = blockID
	t.mode = ModeFor(cls)
}

// Clear drops focus and returns to normal mode.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.blockID = ""
	t.mode = ModeNormal
}

// ShouldForwardKeys reports whether typed text belongs to the focused
// block rather than the local composer.
func (t *Tracker) ShouldForwardKeys() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mode != ModeNormal
}

// ShouldForwardEscapes reports whether escape sequences are forwarded
// too. Only fullscreen programs get those.
func (t *Tracker) ShouldForwardEscapes() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mode == ModeFullscreen
}

// Buffer returns the composed command line so far.
func (t *Tracker) Buffer() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.buffer
}

// SetBuffer replaces the composed command line.
func (t *Tracker) SetBuffer(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buffer = s
}

// Append adds a character to the composed command line.
func (t *Tracker) Append(ch rune) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buffer += string(ch)
}

// Backspace removes the last character from the composed command line.
func (t *Tracker) Backspace() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.buffer) > 0 {
		t.buffer = t.buffer[:len(t.buffer)-1]
	}
}

// Consume returns and clears the composed command line.
func (t *Tracker) Consume() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	result := t.buffer
	t.buffer = ""
	return result
}
