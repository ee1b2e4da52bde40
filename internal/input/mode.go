// Package input tracks where typed input should go: the local command
// composer, the focused block, or a fullscreen program.
package input

import "github.com/abdullathedruid/blockterm/internal/classify"

// Mode represents the current input routing mode.
type Mode int

const (
	// ModeNormal composes the next command locally.
	ModeNormal Mode = iota
	// ModeBlock forwards lines to the focused block's input.
	ModeBlock
	// ModeFullscreen forwards raw keys, including escape sequences, to a
	// fullscreen program.
	ModeFullscreen
)

// String returns the human-readable mode name.
func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "NORMAL"
	case ModeBlock:
		return "BLOCK"
	case ModeFullscreen:
		return "FULLSCREEN"
	default:
		return "UNKNOWN"
	}
}

// IsNormal returns true if input stays with the local composer.
func (m Mode) IsNormal() bool {
	return m == ModeNormal
}

// IsBlock returns true if input is forwarded to the focused block.
func (m Mode) IsBlock() bool {
	return m == ModeBlock
}

// IsFullscreen returns true if raw keys go to a fullscreen program.
func (m Mode) IsFullscreen() bool {
	return m == ModeFullscreen
}

// ModeFor derives the routing mode for a focused block from its
// classification. Blocks that do not take input leave the composer in
// charge even while focused.
func ModeFor(cls classify.Result) Mode {
	switch {
	case cls.RequiresFullscreen:
		return ModeFullscreen
	case cls.RequiresInput:
		return ModeBlock
	default:
		return ModeNormal
	}
}
