package remote

import (
	"fmt"
	"sort"
	"sync"

	"pkt.systems/pslog"

	"github.com/abdullathedruid/blockterm/internal/config"
	"github.com/abdullathedruid/blockterm/internal/event"
)

// Manager owns the registry of live remote sessions, keyed by session ID.
type Manager struct {
	cfg    *config.Store
	dialer Dialer
	bus    *event.Bus
	log    pslog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager. A nil dialer gets the SSH dialer.
func NewManager(cfg *config.Store, dialer Dialer, bus *event.Bus, logger pslog.Logger) *Manager {
	if dialer == nil {
		dialer = NewDialer()
	}
	return &Manager{
		cfg:      cfg,
		dialer:   dialer,
		bus:      bus,
		log:      logger,
		sessions: make(map[string]*Session),
	}
}

// Connect builds a fresh session for the profile and runs its connection
// sequence. The session is registered only once connected; a failed
// attempt leaves no trace in the registry.
func (m *Manager) Connect(sessionID string, profile Profile) (*Session, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if _, exists := m.sessions[sessionID]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("session %s already connected", sessionID)
	}
	m.mu.Unlock()

	s := newSession(sessionID, profile, m.cfg, m.dialer, m.bus, m.log)
	if err := s.Connect(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[sessionID] = s
	m.mu.Unlock()

	m.log.Info("session registered", "session_id", sessionID, "host", profile.Host)
	return s, nil
}

// Get looks up a registered session.
func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

// Reconnect cycles a registered session's connection. The session stays
// registered either way; a failed reconnect leaves it in the failed state
// for the caller to disconnect.
func (m *Manager) Reconnect(sessionID string) error {
	s, ok := m.Get(sessionID)
	if !ok {
		return fmt.Errorf("unknown session %s", sessionID)
	}
	return s.Reconnect()
}

// Disconnect closes a session and removes it from the registry.
func (m *Manager) Disconnect(sessionID string) error {
	s, ok := m.Get(sessionID)
	if !ok {
		return fmt.Errorf("unknown session %s", sessionID)
	}
	err := s.Disconnect()
	m.remove(sessionID)
	return err
}

// ForceDisconnect tears a session down without events and removes it from
// the registry.
func (m *Manager) ForceDisconnect(sessionID string) {
	s, ok := m.Get(sessionID)
	if !ok {
		return
	}
	s.ForceDisconnect()
	m.remove(sessionID)
}

// DisconnectAll force-disconnects every registered session.
func (m *Manager) DisconnectAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.ForceDisconnect()
	}
}

// Count returns the number of registered sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sessions returns the registered session IDs in sorted order.
func (m *Manager) Sessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stats summarizes the session registry for reporting.
type Stats struct {
	Sessions int
	Statuses map[string]int
}

// Snapshot derives read-only statistics from the registry.
func (m *Manager) Snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Stats{
		Sessions: len(m.sessions),
		Statuses: make(map[string]int),
	}
	for _, s := range m.sessions {
		stats.Statuses[s.Status().String()]++
	}
	return stats
}

func (m *Manager) remove(sessionID string) {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
}
