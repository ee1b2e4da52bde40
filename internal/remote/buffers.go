package remote

import (
	"bytes"
	"sync"
)

// Buffers splits a remote shell's output into three views: everything
// (overall), the login banner and prompt that arrive before any command
// (welcome), and the output of the command in flight (command).
//
// Routing pivots on welcomeConfirmed: until it flips, bytes land in the
// welcome buffer; after it flips they land in the command buffer. It flips
// at most once, either when the welcome timer fires or when the first
// command is sent, and never flips back.
type Buffers struct {
	mu               sync.Mutex
	overall          bytes.Buffer
	welcome          bytes.Buffer
	command          bytes.Buffer
	welcomeConfirmed bool
}

func NewBuffers() *Buffers {
	return &Buffers{}
}

// Append routes an output chunk into the overall buffer plus whichever of
// welcome or command is currently receiving.
func (b *Buffers) Append(chunk string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.overall.WriteString(chunk)
	if b.welcomeConfirmed {
		b.command.WriteString(chunk)
	} else {
		b.welcome.WriteString(chunk)
	}
}

// ConfirmWelcome marks the welcome phase over. Reports whether this call
// flipped the flag.
func (b *Buffers) ConfirmWelcome() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.welcomeConfirmed {
		return false
	}
	b.welcomeConfirmed = true
	return true
}

// StartCommand prepares the buffers for a new command: it confirms the
// welcome phase and clears the command buffer in one step, so output
// arriving after the command is written cannot mix with the previous
// command's tail.
func (b *Buffers) StartCommand() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.welcomeConfirmed = true
	b.command.Reset()
}

// WelcomeConfirmed reports whether the welcome phase has ended.
func (b *Buffers) WelcomeConfirmed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.welcomeConfirmed
}

// Overall returns everything received on this connection.
func (b *Buffers) Overall() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.overall.String()
}

// Welcome returns the output received before the welcome phase ended.
func (b *Buffers) Welcome() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.welcome.String()
}

// Command returns the output received since the last StartCommand.
func (b *Buffers) Command() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.command.String()
}
