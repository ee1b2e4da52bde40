package channel

import (
	"strings"
	"sync"

	"github.com/vito/midterm"
)

// Screen models the display state of a fullscreen channel. Fullscreen
// programs (editors, pagers, monitors) repaint with cursor addressing, so
// raw output chunks are useless to a consumer; the screen interprets them
// into a renderable grid instead.
type Screen struct {
	mu   sync.Mutex
	term *midterm.Terminal
}

// NewScreen creates a screen with the given dimensions.
func NewScreen(rows, cols int) *Screen {
	return &Screen{
		term: midterm.NewTerminal(rows, cols),
	}
}

// Write feeds output bytes into the screen model. Thread-safe.
func (s *Screen) Write(data []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.term.Write(data)
}

// Resize changes the screen dimensions. Thread-safe.
func (s *Screen) Resize(rows, cols int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.term.Resize(rows, cols)
}

// Render writes the current screen content to b. Thread-safe.
func (s *Screen) Render(b *strings.Builder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.term.Height <= 0 || s.term.Width <= 0 {
		return nil
	}
	return s.term.Render(b)
}

// RenderString returns the current screen content as a string.
func (s *Screen) RenderString() (string, error) {
	var b strings.Builder
	if err := s.Render(&b); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Cursor returns the current cursor position. Thread-safe.
func (s *Screen) Cursor() (x, y int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.term.Cursor.X, s.term.Cursor.Y
}

// Dimensions returns the screen size. Thread-safe.
func (s *Screen) Dimensions() (rows, cols int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.term.Height, s.term.Width
}

// CursorVisible reports whether the cursor should be drawn. Fullscreen
// programs commonly hide it while repainting. Thread-safe.
func (s *Screen) CursorVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.term.CursorVisible
}
