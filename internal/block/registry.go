package block

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/abdullathedruid/blockterm/internal/channel"
	"github.com/abdullathedruid/blockterm/internal/classify"
)

// RemoteSession is the remote side of a block: commands and raw bytes are
// written to a connected shell instead of a local process.
type RemoteSession interface {
	SendCommand(command string) error
	SendData(data []byte) error
}

// Entry ties a block to whatever runs it. Exactly one of Channel or
// Remote is set.
type Entry struct {
	BlockID        string
	SessionID      string
	Command        string
	Classification classify.Result
	Channel        *channel.Channel
	Remote         RemoteSession
	Focused        bool
	StartedAt      time.Time
}

// Stats is a read-only snapshot of the registry for reporting.
type Stats struct {
	Blocks     int
	Running    int
	Terminated int
	Unhealthy  int
	Focused    string
	Categories map[string]int
}

// Registry holds every tracked block. It enforces one entry per block id
// and remembers, per session, which entry is the active one, plus the
// single focused block. The orchestrator is its only writer.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	active  map[string]string // sessionID -> blockID
	focused string
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
		active:  make(map[string]string),
	}
}

// Add registers an entry and makes it the active one for its session.
func (r *Registry) Add(e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[e.BlockID]; exists {
		return fmt.Errorf("block %s already registered", e.BlockID)
	}
	r.entries[e.BlockID] = e
	r.active[e.SessionID] = e.BlockID
	return nil
}

// Get looks up an entry by block id.
func (r *Registry) Get(blockID string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[blockID]
	return e, ok
}

// Remove drops an entry and clears any active or focused bookkeeping that
// pointed at it. Reports the removed entry and whether it held focus.
func (r *Registry) Remove(blockID string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[blockID]
	if !ok {
		return nil, false
	}
	delete(r.entries, blockID)
	if r.active[e.SessionID] == blockID {
		delete(r.active, e.SessionID)
	}
	wasFocused := r.focused == blockID
	if wasFocused {
		r.focused = ""
		e.Focused = false
	}
	return e, wasFocused
}

// SetFocus moves focus to the named block. Fails when the block is not
// registered.
func (r *Registry) SetFocus(blockID string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[blockID]
	if !ok {
		return nil, false
	}
	if r.focused != "" && r.focused != blockID {
		if prev, ok := r.entries[r.focused]; ok {
			prev.Focused = false
		}
	}
	r.focused = blockID
	e.Focused = true
	return e, true
}

// ClearFocus drops focus. Reports the previously focused block id.
func (r *Registry) ClearFocus() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.focused == "" {
		return "", false
	}
	if e, ok := r.entries[r.focused]; ok {
		e.Focused = false
	}
	prev := r.focused
	r.focused = ""
	return prev, true
}

// Focused returns the focused block id, if any.
func (r *Registry) Focused() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.focused, r.focused != ""
}

// ActiveBlock returns the session's active block id, if any.
func (r *Registry) ActiveBlock(sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.active[sessionID]
	return id, ok
}

// List returns the entries ordered by start time.
func (r *Registry) List() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].StartedAt.Before(list[j].StartedAt)
	})
	return list
}

// Count returns the number of tracked blocks.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Snapshot derives current statistics. Reporting only; it takes no part
// in any invariant.
func (r *Registry) Snapshot() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		Blocks:     len(r.entries),
		Focused:    r.focused,
		Categories: make(map[string]int),
	}
	for _, e := range r.entries {
		stats.Categories[e.Classification.Category.String()]++
		if e.Channel == nil {
			stats.Running++
			continue
		}
		switch e.Channel.State() {
		case channel.StateTerminated:
			stats.Terminated++
		default:
			stats.Running++
		}
		if !e.Channel.Healthy() {
			stats.Unhealthy++
		}
	}
	return stats
}
