package channel

import (
	"strings"
	"testing"
)

func TestScreen_WriteAndRender(t *testing.T) {
	s := NewScreen(4, 20)

	if _, err := s.Write([]byte("hello")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	content, err := s.RenderString()
	if err != nil {
		t.Fatalf("RenderString() error = %v", err)
	}
	if !strings.Contains(content, "hello") {
		t.Errorf("rendered screen missing written text:\n%s", content)
	}

	x, y := s.Cursor()
	if x != 5 || y != 0 {
		t.Errorf("Cursor() = (%d, %d), want (5, 0)", x, y)
	}
}

func TestScreen_Dimensions(t *testing.T) {
	s := NewScreen(4, 20)
	rows, cols := s.Dimensions()
	if rows != 4 || cols != 20 {
		t.Errorf("Dimensions() = (%d, %d), want (4, 20)", rows, cols)
	}

	s.Resize(10, 40)
	rows, cols = s.Dimensions()
	if rows != 10 || cols != 40 {
		t.Errorf("Dimensions() after resize = (%d, %d), want (10, 40)", rows, cols)
	}
}

func TestScreen_CursorMovement(t *testing.T) {
	s := NewScreen(4, 20)

	// Move the cursor with an escape sequence, as a fullscreen app would.
	if _, err := s.Write([]byte("\x1b[2;3H")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	x, y := s.Cursor()
	if x != 2 || y != 1 {
		t.Errorf("Cursor() = (%d, %d), want (2, 1)", x, y)
	}
}
