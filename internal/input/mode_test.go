package input

import (
	"testing"

	"github.com/abdullathedruid/blockterm/internal/classify"
)

func TestMode_String(t *testing.T) {
	tests := []struct {
		mode Mode
		want string
	}{
		{ModeNormal, "NORMAL"},
		{ModeBlock, "BLOCK"},
		{ModeFullscreen, "FULLSCREEN"},
		{Mode(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.want {
			t.Errorf("Mode(%d).String() = %q, want %q", tt.mode, got, tt.want)
		}
	}
}

func TestMode_Predicates(t *testing.T) {
	if !ModeNormal.IsNormal() {
		t.Error("ModeNormal.IsNormal() should be true")
	}
	if !ModeBlock.IsBlock() {
		t.Error("ModeBlock.IsBlock() should be true")
	}
	if !ModeFullscreen.IsFullscreen() {
		t.Error("ModeFullscreen.IsFullscreen() should be true")
	}

	// Cross-check
	if ModeNormal.IsBlock() {
		t.Error("ModeNormal.IsBlock() should be false")
	}
	if ModeBlock.IsNormal() {
		t.Error("ModeBlock.IsNormal() should be false")
	}
}

func TestModeFor(t *testing.T) {
	tests := []struct {
		name string
		cls  classify.Result
		want Mode
	}{
		{"fullscreen editor", classify.Result{RequiresFullscreen: true, RequiresInput: true}, ModeFullscreen},
		{"repl", classify.Result{RequiresInput: true}, ModeBlock},
		{"dev server", classify.Result{IsPersistent: true}, ModeNormal},
		{"plain", classify.Result{}, ModeNormal},
	}

	for _, tt := range tests {
		if got := ModeFor(tt.cls); got != tt.want {
			t.Errorf("ModeFor(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
