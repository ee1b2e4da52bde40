package block

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"pkt.systems/pslog"

	"github.com/abdullathedruid/blockterm/internal/channel"
	"github.com/abdullathedruid/blockterm/internal/classify"
	"github.com/abdullathedruid/blockterm/internal/config"
	"github.com/abdullathedruid/blockterm/internal/event"
	"github.com/abdullathedruid/blockterm/internal/input"
	"github.com/abdullathedruid/blockterm/internal/logx"
)

// Orchestrator routes commands into blocks. It decides which commands get
// tracked at all, owns the registry bookkeeping around their lifecycle,
// and arbitrates which block holds focus.
type Orchestrator struct {
	cfg        *config.Store
	classifier *classify.Classifier
	channels   *channel.Manager
	registry   *Registry
	tracker    *input.Tracker
	resolve    func(sessionID string) (RemoteSession, bool)
	bus        *event.Bus
	log        pslog.Logger
}

// NewOrchestrator wires an orchestrator. resolve looks up the remote
// session for a session id and may be nil when everything runs locally;
// tracker may be nil when no input routing is attached.
func NewOrchestrator(cfg *config.Store, classifier *classify.Classifier, channels *channel.Manager, tracker *input.Tracker, resolve func(sessionID string) (RemoteSession, bool), bus *event.Bus, logger pslog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		classifier: classifier,
		channels:   channels,
		registry:   NewRegistry(),
		tracker:    tracker,
		resolve:    resolve,
		bus:        bus,
		log:        logger,
	}
}

// Registry exposes the block registry for read-side consumers.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// ActivateBlock classifies a command and, when it needs special handling,
// starts it as a tracked block. Ordinary commands return nil and are
// never tracked. A spawn failure also returns nil, after reporting a
// block_error event; the caller proceeds without a block either way.
func (o *Orchestrator) ActivateBlock(blockID, sessionID, command, blockData string) *Entry {
	cls := o.classifier.Classify(command)
	log := logx.WithBlock(o.log, blockID).With("session_id", sessionID)

	if !cls.NeedsBlock() {
		log.Trace("command needs no block", "command", command)
		return nil
	}

	// A session runs at most one active block; the newcomer evicts it.
	if activeID, ok := o.registry.ActiveBlock(sessionID); ok {
		log.Info("terminating active block for new command", "active_block_id", activeID)
		o.TerminateBlock(activeID)
	}

	entry := &Entry{
		BlockID:        blockID,
		SessionID:      sessionID,
		Command:        command,
		Classification: cls,
		StartedAt:      time.Now(),
	}

	if o.resolve != nil {
		if session, ok := o.resolve(sessionID); ok {
			if err := session.SendCommand(command); err != nil {
				log.Error("remote command failed", "error", err)
				o.publishError(blockID, sessionID, fmt.Sprintf("[Failed to start process: %v]", err))
				return nil
			}
			entry.Remote = session
		}
	}

	if entry.Remote == nil {
		ch, err := o.channels.Create(blockID, sessionID, command, cls, o.handleChannelExit)
		if err != nil {
			log.Error("spawn failed", "error", err)
			o.publishError(blockID, sessionID, fmt.Sprintf("[Failed to start process: %v]", err))
			return nil
		}
		entry.Channel = ch
	}

	if err := o.registry.Add(entry); err != nil {
		log.Error("block registration failed", "error", err)
		if entry.Channel != nil {
			entry.Channel.Terminate(o.cfg.Current().TerminateTimeout())
		}
		o.publishError(blockID, sessionID, fmt.Sprintf("[Failed to start process: %v]", err))
		return nil
	}

	o.bus.PublishBlock(event.TypeBlockActivated, event.BlockEvent{
		BlockID:   blockID,
		SessionID: sessionID,
		Message:   cls.Category.String(),
		Data:      blockData,
	})
	log.Info("block activated", "category", cls.Category.String(), "command", command)

	if cls.RequiresInput || cls.IsPersistent {
		o.FocusBlock(blockID)
	}

	// The process may have exited before the entry landed in the
	// registry, in which case the exit handler found nothing to clean.
	if entry.Channel != nil && entry.Channel.State() == channel.StateTerminated {
		o.finishBlock(entry.Channel)
	}

	return entry
}

// FocusBlock gives the named block the single system-wide focus. A block
// that is not registered is a logged no-op.
func (o *Orchestrator) FocusBlock(blockID string) bool {
	entry, ok := o.registry.SetFocus(blockID)
	if !ok {
		o.log.Debug("focus requested for unknown block", "block_id", blockID)
		return false
	}
	if o.tracker != nil {
		o.tracker.Observe(blockID, entry.Classification)
	}
	o.bus.PublishBlock(event.TypeFocusChanged, event.BlockEvent{
		BlockID:   blockID,
		SessionID: entry.SessionID,
	})
	return true
}

// ClearFocus drops focus entirely. Clearing when nothing is focused is a
// logged no-op.
func (o *Orchestrator) ClearFocus() bool {
	prev, ok := o.registry.ClearFocus()
	if !ok {
		o.log.Debug("clear focus with nothing focused")
		return false
	}
	if o.tracker != nil {
		o.tracker.Clear()
	}
	o.bus.PublishBlock(event.TypeFocusChanged, event.BlockEvent{
		Data: prev,
	})
	return true
}

// SendInput routes a line of text to a block. Rejected when the block is
// not registered, its classification takes no input, or it has ended.
func (o *Orchestrator) SendInput(blockID, text string) bool {
	entry, ok := o.acceptsInput(blockID)
	if !ok {
		return false
	}
	if entry.Remote != nil {
		if !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		return entry.Remote.SendData([]byte(text)) == nil
	}
	return entry.Channel.SendInput(text)
}

// SendSignal routes a control byte to a block, under the same gating as
// SendInput.
func (o *Orchestrator) SendSignal(blockID string, sig channel.Signal) bool {
	entry, ok := o.acceptsInput(blockID)
	if !ok {
		return false
	}
	if entry.Remote != nil {
		return entry.Remote.SendData([]byte{byte(sig)}) == nil
	}
	return entry.Channel.SendSignal(sig)
}

func (o *Orchestrator) acceptsInput(blockID string) (*Entry, bool) {
	entry, ok := o.registry.Get(blockID)
	if !ok {
		o.log.Debug("input for unknown block", "block_id", blockID)
		return nil, false
	}
	if !entry.Classification.RequiresInput {
		o.log.Debug("input for non-input block", "block_id", blockID)
		return nil, false
	}
	if entry.Channel != nil && entry.Channel.State() != channel.StateRunning {
		return nil, false
	}
	return entry, true
}

// TerminateBlock ends a block. Registry, focus, and active-session
// bookkeeping are cleaned up whether or not the underlying termination
// succeeded.
func (o *Orchestrator) TerminateBlock(blockID string) bool {
	entry, ok := o.registry.Get(blockID)
	if !ok {
		o.log.Debug("terminate for unknown block", "block_id", blockID)
		return false
	}

	ended := true
	if entry.Channel != nil {
		ended = entry.Channel.Terminate(o.cfg.Current().TerminateTimeout())
	} else if entry.Remote != nil {
		// No per-command process handle exists remotely; an interrupt
		// byte is the strongest stop available.
		ended = entry.Remote.SendData([]byte{byte(channel.SignalInterrupt)}) == nil
	}

	o.cleanup(blockID, exitData(entry))
	return ended
}

// OnNewCommandStarted enforces the one-active-block rule before a new
// command runs: a still-active block of the session is terminated first.
func (o *Orchestrator) OnNewCommandStarted(sessionID, newCommand string) {
	activeID, ok := o.registry.ActiveBlock(sessionID)
	if !ok {
		return
	}
	o.log.Info("new command preempts active block",
		"session_id", sessionID, "active_block_id", activeID, "command", newCommand)
	o.TerminateBlock(activeID)
}

func (o *Orchestrator) publishError(blockID, sessionID, message string) {
	o.bus.PublishBlock(event.TypeBlockError, event.BlockEvent{
		BlockID:   blockID,
		SessionID: sessionID,
		Message:   message,
	})
}

// handleChannelExit runs when a block's process ends on its own.
func (o *Orchestrator) handleChannelExit(ch *channel.Channel) {
	o.finishBlock(ch)
}

func (o *Orchestrator) finishBlock(ch *channel.Channel) {
	data := ""
	if code, exited := ch.ExitCode(); exited {
		data = strconv.Itoa(code)
	}
	o.cleanup(ch.BlockID, data)
}

// cleanup removes a block's entry and emits the termination event. Safe
// to race from the exit handler and the terminate path; only the caller
// that actually removed the entry publishes.
func (o *Orchestrator) cleanup(blockID, data string) {
	entry, wasFocused := o.registry.Remove(blockID)
	if entry == nil {
		return
	}
	if wasFocused && o.tracker != nil {
		o.tracker.Clear()
	}
	o.bus.PublishBlock(event.TypeBlockTerminated, event.BlockEvent{
		BlockID:   blockID,
		SessionID: entry.SessionID,
		Data:      data,
	})
	logx.WithBlock(o.log, blockID).Info("block removed", "exit_code", data)
}

func exitData(entry *Entry) string {
	if entry.Channel == nil {
		return ""
	}
	if code, exited := entry.Channel.ExitCode(); exited {
		return strconv.Itoa(code)
	}
	return ""
}
