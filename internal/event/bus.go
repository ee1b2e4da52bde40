// Package event provides the typed publish/subscribe bus for engine events.
package event

import (
	"context"
	"sync"
	"time"

	"pkt.systems/pslog"
)

// Type identifies the event payload.
type Type string

const (
	// TypeBlockActivated fires when the orchestrator registers a block.
	TypeBlockActivated Type = "block_activated"
	// TypeBlockOutput carries a chunk of channel output for a block.
	TypeBlockOutput Type = "block_output"
	// TypeBlockTerminated fires when a block's channel ends.
	TypeBlockTerminated Type = "block_terminated"
	// TypeBlockError carries a synthetic error line for a block.
	TypeBlockError Type = "block_error"
	// TypeFocusChanged fires when the focused block changes.
	TypeFocusChanged Type = "focus_changed"
	// TypeSessionOutput carries remote shell output not tied to a block.
	TypeSessionOutput Type = "session_output"
	// TypeConnStatus carries a remote connection status transition.
	TypeConnStatus Type = "connection_status"
	// TypeConnError carries a categorized remote connection failure.
	TypeConnError Type = "connection_error"
)

// BlockEvent describes an orchestration event for a block or session.
type BlockEvent struct {
	BlockID   string    `json:"block_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Message   string    `json:"message,omitempty"`
	Data      string    `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusEvent describes a remote connection status or failure.
type StatusEvent struct {
	SessionID string    `json:"session_id"`
	Status    string    `json:"status"`
	Data      string    `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Event is the envelope delivered to subscribers.
type Event struct {
	Type   Type
	Block  BlockEvent
	Status StatusEvent
}

// Bus fanouts events to subscribers.
type Bus struct {
	mu    sync.Mutex
	subs  map[chan Event]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus with the default subscriber depth.
func New(logger pslog.Logger) *Bus {
	return NewSized(logger, 256)
}

// NewSized constructs a Bus whose subscriber channels buffer depth events.
func NewSized(logger pslog.Logger, depth int) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	if depth <= 0 {
		depth = 256
	}
	return &Bus{
		subs:  make(map[chan Event]struct{}),
		log:   logger,
		depth: depth,
	}
}

// Subscribe registers a subscriber and returns a channel + cancel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan Event, b.depth)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	count := len(b.subs)
	b.mu.Unlock()
	if b.log != nil {
		b.log.Debug("event bus subscribe", "subs", count)
	}
	return ch, func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
		if b.log != nil {
			b.log.Debug("event bus unsubscribe")
		}
	}
}

// PublishBlock publishes an orchestration event.
func (b *Bus) PublishBlock(typ Type, ev BlockEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	b.publish(Event{Type: typ, Block: ev})
}

// PublishStatus publishes a connection status event.
func (b *Bus) PublishStatus(typ Type, ev StatusEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	b.publish(Event{Type: typ, Status: ev})
}

// publish delivers under the subscriber lock: sends never block, and
// holding the lock means a cancel cannot close a channel mid-fanout.
func (b *Bus) publish(event Event) {
	if b == nil {
		return
	}
	dropped := 0
	b.mu.Lock()
	for sub := range b.subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	b.mu.Unlock()
	if dropped > 0 && b.log != nil {
		b.log.With("type", string(event.Type)).Trace("event bus dropped", "count", dropped)
	}
}
