package channel

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"
	"pkt.systems/pslog"

	"github.com/abdullathedruid/blockterm/internal/classify"
	"github.com/abdullathedruid/blockterm/internal/config"
	"github.com/abdullathedruid/blockterm/internal/event"
	"github.com/abdullathedruid/blockterm/internal/logx"
)

// Manager creates channels and tracks the live ones.
type Manager struct {
	cfg *config.Store
	bus *event.Bus
	log pslog.Logger

	mu       sync.RWMutex
	channels map[string]*Channel // channel id -> live channel
}

// NewManager constructs a channel manager.
func NewManager(cfg *config.Store, bus *event.Bus, logger pslog.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		bus:      bus,
		log:      logger,
		channels: make(map[string]*Channel),
	}
}

// Create spawns the process for a classified command and wires its streams.
// Commands run shell-interpreted. Interactive and fullscreen channels run
// under a PTY; everything else gets pipes with merged output. onExit fires
// exactly once when the process ends, after the exit marker is published.
func (m *Manager) Create(blockID, sessionID, command string, cls classify.Result, onExit func(*Channel)) (*Channel, error) {
	cfg := m.cfg.Current()
	ch := &Channel{
		ID:             uuid.New().String(),
		BlockID:        blockID,
		SessionID:      sessionID,
		Command:        command,
		Classification: cls,
		state:          StateCreated,
		createdAt:      time.Now(),
		inputCh:        make(chan []byte, inputBufferSize),
		done:           make(chan struct{}),
		history:        NewHistory(cfg.HistoryLines),
		disposeGrace:   cfg.DisposeGrace(),
		bus:            m.bus,
	}
	ch.log = logx.WithChannel(logx.WithBlock(m.log, blockID), ch.ID)

	if cls.RequiresFullscreen {
		ch.screen = NewScreen(cfg.ScreenRows, cfg.ScreenCols)
	}

	// The manager untracks before the caller's handler runs.
	ch.onExit = func(c *Channel) {
		m.untrack(c.ID)
		if onExit != nil {
			onExit(c)
		}
	}

	if !cls.NeedsProcess() {
		// Special handling without a live process. The built-in rules never
		// produce this, but creation stays total for callers that do.
		ch.state = StateRunning
		m.track(ch)
		return ch, nil
	}

	cmd := exec.Command(cfg.Shell, "-c", command)

	if cls.RequiresInput || cls.RequiresFullscreen {
		cmd.Env = append(os.Environ(), "TERM=xterm-256color")
		ptyFile, err := pty.Start(cmd)
		if err != nil {
			return nil, fmt.Errorf("start pty: %w", err)
		}
		pty.Setsize(ptyFile, &pty.Winsize{
			Rows: uint16(cfg.ScreenRows),
			Cols: uint16(cfg.ScreenCols),
		})
		ch.cmd = cmd
		ch.ptyFile = ptyFile
		go ch.readPTY()
	} else {
		stdinR, stdinW, err := os.Pipe()
		if err != nil {
			return nil, fmt.Errorf("create stdin pipe: %w", err)
		}
		stdoutR, stdoutW, err := os.Pipe()
		if err != nil {
			stdinR.Close()
			stdinW.Close()
			return nil, fmt.Errorf("create stdout pipe: %w", err)
		}
		stderrR, stderrW, err := os.Pipe()
		if err != nil {
			stdinR.Close()
			stdinW.Close()
			stdoutR.Close()
			stdoutW.Close()
			return nil, fmt.Errorf("create stderr pipe: %w", err)
		}

		cmd.Stdin = stdinR
		cmd.Stdout = stdoutW
		cmd.Stderr = stderrW

		if err := cmd.Start(); err != nil {
			stdinR.Close()
			stdinW.Close()
			stdoutR.Close()
			stdoutW.Close()
			stderrR.Close()
			stderrW.Close()
			return nil, fmt.Errorf("start process: %w", err)
		}

		// The child holds its own copies now.
		stdinR.Close()
		stdoutW.Close()
		stderrW.Close()

		ch.cmd = cmd
		ch.stdin = &stdinWriter{writer: stdinW}
		go ch.scanPipes(stdoutR, stderrR)
	}

	ch.mu.Lock()
	ch.state = StateRunning
	ch.mu.Unlock()

	// Track before the reaper starts: an instantly-exiting process must
	// find its entry in place when the exit handler untracks it.
	m.track(ch)
	go ch.drainInput()
	go ch.waitForExit()

	ch.log.Info("channel created",
		"command", command,
		"category", cls.Category.String(),
		"pid", ch.PID())
	return ch, nil
}

// Get returns a live channel by id.
func (m *Manager) Get(id string) (*Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[id]
	return ch, ok
}

// List returns all live channels.
func (m *Manager) List() []*Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		result = append(result, ch)
	}
	return result
}

// Count returns the number of live channels.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.channels)
}

// CloseAll terminates every live channel, used at shutdown.
func (m *Manager) CloseAll(timeout time.Duration) {
	for _, ch := range m.List() {
		ch.Terminate(timeout)
	}
}

func (m *Manager) track(ch *Channel) {
	m.mu.Lock()
	m.channels[ch.ID] = ch
	m.mu.Unlock()
}

func (m *Manager) untrack(id string) {
	m.mu.Lock()
	delete(m.channels, id)
	m.mu.Unlock()
}
