// Package channel owns spawned processes and their input/output streams.
// A Channel is one block's process: output is merged into a single stream
// and published on the event bus, input is drained from a queue into the
// process, and termination races a graceful interrupt against a deadline.
package channel

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-errors/errors"
	"pkt.systems/pslog"

	"github.com/abdullathedruid/blockterm/internal/classify"
	"github.com/abdullathedruid/blockterm/internal/event"
	"github.com/abdullathedruid/blockterm/internal/procinfo"
)

// State is the lifecycle state of a channel.
type State int

const (
	StateCreated State = iota
	StateRunning
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Signal is a control byte written to a channel's input stream.
type Signal byte

const (
	// SignalInterrupt is ETX (ctrl+c).
	SignalInterrupt Signal = 0x03
	// SignalEOF is EOT (ctrl+d).
	SignalEOF Signal = 0x04
	// SignalSuspend is SUB (ctrl+z).
	SignalSuspend Signal = 0x1A
)

// ParseSignal maps a caller-facing signal name to its control byte.
func ParseSignal(name string) (Signal, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ctrl+c", "interrupt":
		return SignalInterrupt, true
	case "ctrl+d", "eof":
		return SignalEOF, true
	case "ctrl+z", "suspend":
		return SignalSuspend, true
	default:
		return 0, false
	}
}

const inputBufferSize = 100

// Channel is one owned process plus its input/output streams.
type Channel struct {
	ID             string
	BlockID        string
	SessionID      string
	Command        string
	Classification classify.Result

	mu           sync.Mutex
	state        State
	exitCode     int
	exited       bool
	createdAt    time.Time
	terminatedAt time.Time
	outputClosed bool
	onExit       func(*Channel)

	cmd     *exec.Cmd
	ptyFile *os.File     // set when running under a PTY
	stdin   *stdinWriter // set when running under pipes

	inputCh chan []byte
	done    chan struct{} // closed once the process has exited

	history *History
	screen  *Screen // set for fullscreen channels

	disposeGrace time.Duration
	disposeOnce  sync.Once

	bus *event.Bus
	log pslog.Logger
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ExitCode returns the process exit code once terminated.
func (c *Channel) ExitCode() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exitCode, c.exited
}

// CreatedAt returns the channel creation time.
func (c *Channel) CreatedAt() time.Time {
	return c.createdAt
}

// PID returns the process id, or 0 if no process handle exists.
func (c *Channel) PID() int {
	if c.cmd != nil && c.cmd.Process != nil {
		return c.cmd.Process.Pid
	}
	return 0
}

// ProcessLabel names what the channel is running. Known signatures carry
// their own label; otherwise the foreground process under the shell is
// inspected, falling back to the command's leading name.
func (c *Channel) ProcessLabel() string {
	if c.Classification.ProcessLabel != "" {
		return c.Classification.ProcessLabel
	}
	if c.State() == StateRunning {
		if pid := c.PID(); pid > 0 {
			if name, _, err := procinfo.Foreground(pid); err == nil && name != "" {
				return name
			}
		}
	}
	return procinfo.CommandName(c.Command)
}

// History returns the channel's output history ring.
func (c *Channel) History() *History {
	return c.history
}

// Screen returns the screen model for fullscreen channels, or nil.
func (c *Channel) Screen() *Screen {
	return c.screen
}

// Done returns a channel closed once the process has exited.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// SendInput queues text for the process's input, appending a trailing
// newline if the caller's text did not include one. Returns false unless
// the channel is running.
func (c *Channel) SendInput(text string) bool {
	c.mu.Lock()
	running := c.state == StateRunning
	c.mu.Unlock()
	if !running {
		return false
	}

	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return c.enqueue([]byte(text))
}

// SendRaw queues literal bytes for the process's input with no newline
// handling. Fullscreen programs receive keystrokes this way.
func (c *Channel) SendRaw(data []byte) bool {
	c.mu.Lock()
	running := c.state == StateRunning
	c.mu.Unlock()
	if !running {
		return false
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	return c.enqueue(buf)
}

// SendSignal queues a single control byte for the process's input. Returns
// false unless the channel is running.
func (c *Channel) SendSignal(sig Signal) bool {
	c.mu.Lock()
	running := c.state == StateRunning
	c.mu.Unlock()
	if !running {
		return false
	}
	return c.enqueue([]byte{byte(sig)})
}

func (c *Channel) enqueue(data []byte) bool {
	select {
	case c.inputCh <- data:
		return true
	default:
		// Input queue full; the process is not consuming.
		return false
	}
}

// Terminate sends an interrupt, races the process's own exit against the
// timeout, and issues a forced kill on timeout. Returns true if the process
// ended either way, false only if the forced kill itself failed.
func (c *Channel) Terminate(timeout time.Duration) bool {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return true
	}
	proc := (*os.Process)(nil)
	if c.cmd != nil {
		proc = c.cmd.Process
	}
	c.mu.Unlock()

	if proc == nil {
		// No process handle to wait on; settle the bookkeeping directly.
		c.finish(-1)
		return true
	}

	c.log.Debug("terminating channel", "timeout_ms", timeout.Milliseconds())
	proc.Signal(os.Interrupt)

	select {
	case <-c.done:
		return true
	case <-time.After(timeout):
	}

	c.log.Info("graceful exit timed out, killing process")
	if err := proc.Kill(); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			// The process beat the kill and exited on its own; the reaper
			// is about to settle the bookkeeping.
			<-c.done
			return true
		}
		c.log.Error("forced kill failed", "error", err)
		return false
	}
	<-c.done
	return true
}

// Healthy reports whether the channel's streams and process handle are in
// the state its classification requires. Unhealthy channels still operate;
// this is an advisory diagnostic.
func (c *Channel) Healthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRunning {
		return true
	}
	if c.outputClosed {
		return false
	}
	if c.Classification.NeedsChannel && c.cmd == nil {
		return false
	}
	return true
}

// drainInput feeds queued input into the process until exit.
func (c *Channel) drainInput() {
	for {
		select {
		case data := <-c.inputCh:
			c.writeInput(data)
		case <-c.done:
			return
		}
	}
}

func (c *Channel) writeInput(data []byte) {
	if c.ptyFile != nil {
		if _, err := c.ptyFile.Write(data); err != nil {
			c.log.Debug("pty write failed", "error", err)
		}
		return
	}
	if c.stdin != nil {
		if err := c.stdin.Write(data); err != nil {
			c.log.Debug("stdin write failed", "error", err)
		}
	}
}

// emitOutput appends a chunk to history, feeds the screen model if one
// exists, and publishes it on the bus.
func (c *Channel) emitOutput(data string) {
	c.history.Append(data)
	if c.screen != nil {
		c.screen.Write([]byte(data))
	}
	c.bus.PublishBlock(event.TypeBlockOutput, event.BlockEvent{
		BlockID:   c.BlockID,
		SessionID: c.SessionID,
		Data:      data,
	})
}

func (c *Channel) markOutputClosed() {
	c.mu.Lock()
	c.outputClosed = true
	c.mu.Unlock()
}

// waitForExit reaps the process and runs the one-time completion path:
// state flip, synthetic exit marker, exit handler, delayed disposal.
func (c *Channel) waitForExit() {
	err := c.cmd.Wait()

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
				exitCode = 128 + int(status.Signal())
			}
		} else {
			c.log.Error("process wait failed", "error", err)
			exitCode = -1
		}
	}

	c.finish(exitCode)
}

// finish settles termination exactly once.
func (c *Channel) finish(exitCode int) {
	c.mu.Lock()
	if c.state == StateTerminated {
		c.mu.Unlock()
		return
	}
	c.state = StateTerminated
	c.exitCode = exitCode
	c.exited = true
	c.terminatedAt = time.Now()
	handler := c.onExit
	c.onExit = nil
	c.mu.Unlock()

	close(c.done)

	c.emitOutput(fmt.Sprintf("[Process exited with code %d]\n", exitCode))
	c.log.Info("channel terminated", "exit_code", exitCode)

	if handler != nil {
		handler(c)
	}

	// Let already-emitted output drain before closing the streams.
	time.AfterFunc(c.disposeGrace, c.dispose)
}

// dispose closes the channel's I/O handles. Idempotent.
func (c *Channel) dispose() {
	c.disposeOnce.Do(func() {
		if c.stdin != nil {
			c.stdin.Close()
		}
		if c.ptyFile != nil {
			c.ptyFile.Close()
		}
		c.log.Debug("channel disposed")
	})
}
