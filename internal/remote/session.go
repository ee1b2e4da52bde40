package remote

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/go-errors/errors"
	"pkt.systems/pslog"

	"github.com/abdullathedruid/blockterm/internal/config"
	"github.com/abdullathedruid/blockterm/internal/event"
	"github.com/abdullathedruid/blockterm/internal/logx"
)

// Session is one remote shell connection and its state machine. A session
// moves disconnected -> connecting -> authenticating -> connected; an
// explicit Reconnect loops it back through reconnecting. Once it lands in
// failed or disconnected it stays there, and the next connection to the
// same host is a fresh Session.
type Session struct {
	ID      string
	Profile Profile

	cfg    *config.Store
	dialer Dialer
	bus    *event.Bus
	log    pslog.Logger

	mu           sync.Mutex
	status       Status
	started      bool
	closed       bool
	client       Client
	shell        Shell
	buffers      *Buffers
	welcomeTimer *time.Timer
}

func newSession(id string, profile Profile, cfg *config.Store, dialer Dialer, bus *event.Bus, logger pslog.Logger) *Session {
	return &Session{
		ID:      id,
		Profile: profile,
		cfg:     cfg,
		dialer:  dialer,
		bus:     bus,
		log:     logx.WithSession(logger, id),
		status:  StatusDisconnected,
	}
}

// Status returns the session's current connection state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Connect runs the full connection sequence. It may be called once per
// session instance.
func (s *Session) Connect() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("session %s already started", s.ID)
	}
	s.started = true
	s.mu.Unlock()

	return s.connect()
}

func (s *Session) connect() error {
	cfg := s.cfg.Current()
	addr := s.Profile.Addr(cfg.Remote.Port)
	timeout := cfg.Remote.ConnectTimeout()

	s.setStatus(StatusConnecting, addr)
	transport, err := s.dialer.Connect(addr, timeout)
	if err != nil {
		return s.fail(fmt.Errorf("%w: connect %s: %v", ErrTransport, addr, err))
	}

	s.setStatus(StatusAuthenticating, "")
	client, err := transport.Authenticate(s.Profile, timeout)
	if err != nil {
		transport.Close()
		return s.fail(fmt.Errorf("%w: %v", ErrAuthentication, err))
	}

	shell, err := client.OpenShell(cfg.Remote.TermType, cfg.ScreenRows, cfg.ScreenCols)
	if err != nil {
		client.Close()
		return s.fail(fmt.Errorf("open shell: %w", err))
	}

	buffers := NewBuffers()
	s.mu.Lock()
	s.client = client
	s.shell = shell
	s.buffers = buffers
	s.welcomeTimer = time.AfterFunc(cfg.WelcomeTimeout(), func() {
		s.confirmWelcome(buffers)
	})
	s.mu.Unlock()

	go s.pump(shell, shell.Stdout())
	go s.pump(shell, shell.Stderr())

	s.setStatus(StatusConnected, "")
	s.log.Info("connected", "addr", addr)
	return nil
}

// confirmWelcome is the welcome timer callback. It only acts if the
// buffers it was armed for are still the session's current ones.
func (s *Session) confirmWelcome(b *Buffers) {
	s.mu.Lock()
	current := s.buffers == b
	s.mu.Unlock()

	if current && b.ConfirmWelcome() {
		s.log.Debug("welcome confirmed by timeout")
	}
}

// SendCommand writes a command line to the remote shell, appending a
// trailing newline if missing. It confirms the welcome phase and clears
// the command buffer before writing, so the command's output starts clean.
func (s *Session) SendCommand(command string) error {
	s.mu.Lock()
	if s.status != StatusConnected {
		status := s.status
		s.mu.Unlock()
		return fmt.Errorf("session %s is %s: %w", s.ID, status, ErrNotConnected)
	}
	shell := s.shell
	buffers := s.buffers
	timer := s.welcomeTimer
	s.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	buffers.StartCommand()

	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}
	if _, err := io.WriteString(shell, command); err != nil {
		return fmt.Errorf("write command: %w", err)
	}
	return nil
}

// SendData writes literal bytes to the remote shell, with no framing and
// no effect on the welcome or command buffers.
func (s *Session) SendData(data []byte) error {
	s.mu.Lock()
	if s.status != StatusConnected {
		status := s.status
		s.mu.Unlock()
		return fmt.Errorf("session %s is %s: %w", s.ID, status, ErrNotConnected)
	}
	shell := s.shell
	s.mu.Unlock()

	if _, err := shell.Write(data); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	return nil
}

// OpenFileChannel opens a file-transfer channel over the authenticated
// connection.
func (s *Session) OpenFileChannel() (io.ReadWriteCloser, error) {
	s.mu.Lock()
	if s.status != StatusConnected {
		status := s.status
		s.mu.Unlock()
		return nil, fmt.Errorf("session %s is %s: %w", s.ID, status, ErrNotConnected)
	}
	client := s.client
	s.mu.Unlock()

	return client.OpenFileChannel()
}

// Reconnect tears the connection down and runs the connection sequence
// again with the stored profile.
func (s *Session) Reconnect() error {
	s.mu.Lock()
	if s.status != StatusConnected {
		status := s.status
		s.mu.Unlock()
		return fmt.Errorf("session %s is %s: %w", s.ID, status, ErrNotConnected)
	}
	s.mu.Unlock()

	s.setStatus(StatusReconnecting, "")
	if err := s.closeHandles(); err != nil {
		s.log.Debug("teardown before reconnect", "error", err)
	}

	s.mu.Lock()
	s.closed = false
	s.mu.Unlock()

	return s.connect()
}

// Disconnect closes the connection and announces the transition.
func (s *Session) Disconnect() error {
	err := s.closeHandles()
	s.setStatus(StatusDisconnected, "")
	return err
}

// ForceDisconnect closes the connection without emitting events. Meant
// for emergency teardown where ordering no longer matters.
func (s *Session) ForceDisconnect() {
	s.closeHandles()
	s.mu.Lock()
	s.status = StatusDisconnected
	s.mu.Unlock()
}

// closeHandles cancels the welcome timer and closes the shell and client
// handles. Idempotent; safe while pumps are still draining.
func (s *Session) closeHandles() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	timer := s.welcomeTimer
	shell := s.shell
	client := s.client
	s.welcomeTimer = nil
	s.shell = nil
	s.client = nil
	s.buffers = nil
	s.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	var firstErr error
	if shell != nil {
		if err := shell.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if client != nil {
		if err := client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// pump drains one of the shell's output streams into the buffers and the
// event stream. The shell handle identifies the connection generation, so
// a pump left over from before a reconnect cannot touch the new buffers.
func (s *Session) pump(sh Shell, r io.Reader) {
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			s.handleOutput(sh, string(buf[:n]))
		}
		if err != nil {
			s.handleStreamEnd(sh, err)
			return
		}
	}
}

func (s *Session) handleOutput(sh Shell, chunk string) {
	s.mu.Lock()
	if s.shell != sh {
		s.mu.Unlock()
		return
	}
	buffers := s.buffers
	s.mu.Unlock()

	buffers.Append(chunk)
	s.bus.PublishBlock(event.TypeSessionOutput, event.BlockEvent{
		SessionID: s.ID,
		Data:      chunk,
	})
}

// handleStreamEnd reacts to a stream closing underneath us. Expected when
// the session was torn down locally; otherwise the remote side went away.
func (s *Session) handleStreamEnd(sh Shell, err error) {
	s.mu.Lock()
	if s.shell != sh {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.closeHandles()
	if errors.Is(err, io.EOF) {
		s.log.Info("remote closed connection")
		s.setStatus(StatusDisconnected, "remote closed")
		return
	}
	s.fail(fmt.Errorf("stream error: %w", err))
}

// fail reports a connection failure: one error event carrying the failure
// class, then the failed status transition.
func (s *Session) fail(err error) error {
	class := Classify(err)
	s.log.Error("connection failed", "class", class.String(), "error", err)
	s.bus.PublishStatus(event.TypeConnError, event.StatusEvent{
		SessionID: s.ID,
		Status:    StatusFailed.String(),
		Data:      class.String(),
		Error:     err.Error(),
	})
	s.setStatus(StatusFailed, class.String())
	return err
}

func (s *Session) setStatus(status Status, detail string) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()

	s.log.Debug("status changed", "status", status.String())
	s.bus.PublishStatus(event.TypeConnStatus, event.StatusEvent{
		SessionID: s.ID,
		Status:    status.String(),
		Data:      detail,
	})
}

// Welcome returns the output captured before the welcome phase ended.
func (s *Session) Welcome() string {
	if b := s.currentBuffers(); b != nil {
		return b.Welcome()
	}
	return ""
}

// CommandOutput returns the output captured since the last command was
// sent.
func (s *Session) CommandOutput() string {
	if b := s.currentBuffers(); b != nil {
		return b.Command()
	}
	return ""
}

// Output returns everything received on the current connection.
func (s *Session) Output() string {
	if b := s.currentBuffers(); b != nil {
		return b.Overall()
	}
	return ""
}

// WelcomeConfirmed reports whether the welcome phase has ended.
func (s *Session) WelcomeConfirmed() bool {
	if b := s.currentBuffers(); b != nil {
		return b.WelcomeConfirmed()
	}
	return false
}

func (s *Session) currentBuffers() *Buffers {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffers
}
