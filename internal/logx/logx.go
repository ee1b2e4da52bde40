// Package logx provides contextual logging helpers for the engine.
package logx

import (
	"context"

	"pkt.systems/pslog"
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithBlock annotates the logger with a block id when available.
func WithBlock(log pslog.Logger, blockID string) pslog.Logger {
	if blockID != "" {
		log = log.With("block", blockID)
	}
	return log
}

// WithSession annotates the logger with a session id when available.
func WithSession(log pslog.Logger, sessionID string) pslog.Logger {
	if sessionID != "" {
		log = log.With("session", sessionID)
	}
	return log
}

// WithChannel annotates the logger with a channel id when available.
func WithChannel(log pslog.Logger, channelID string) pslog.Logger {
	if channelID != "" {
		log = log.With("channel", channelID)
	}
	return log
}
