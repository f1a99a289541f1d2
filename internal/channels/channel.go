// Package channels provides the channel abstraction between chat platforms
// and the bot controller. A Channel owns its transport connection, converts
// platform events into bus.InboundMessage and delivers bus.OutboundMessage.
package channels

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/nextlevelbuilder/browserbot/internal/bus"
)

// Channel defines the interface that all channel implementations must satisfy.
type Channel interface {
	// Name returns the channel identifier (e.g. "slack").
	Name() string

	// Start connects and begins delivering messages to the handler. Non-blocking.
	Start(ctx context.Context) error

	// Stop disconnects. Messages already handed to the handler are not affected.
	Stop(ctx context.Context) error

	// Send delivers an outbound message.
	Send(ctx context.Context, msg bus.OutboundMessage) error

	// SetHandler registers the callback for inbound messages. Must be called before Start.
	SetHandler(h bus.MessageHandler)

	IsRunning() bool

	// IsAllowed checks if a sender is permitted by the channel's allow list.
	IsAllowed(senderID string) bool
}

// BaseChannel provides shared functionality for channel implementations.
// Channel implementations should embed this struct.
type BaseChannel struct {
	name      string
	running   atomic.Bool
	allowList []string

	mu      sync.RWMutex
	handler bus.MessageHandler
}

// NewBaseChannel creates a new BaseChannel with the given parameters.
func NewBaseChannel(name string, allowList []string) *BaseChannel {
	return &BaseChannel{
		name:      name,
		allowList: allowList,
	}
}

// Name returns the channel name.
func (c *BaseChannel) Name() string { return c.name }

// IsRunning returns whether the channel is running.
func (c *BaseChannel) IsRunning() bool { return c.running.Load() }

// SetRunning updates the running state.
func (c *BaseChannel) SetRunning(running bool) { c.running.Store(running) }

// SetHandler registers the inbound message callback.
func (c *BaseChannel) SetHandler(h bus.MessageHandler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

// HasAllowList returns true if an allow list is configured (non-empty).
func (c *BaseChannel) HasAllowList() bool { return len(c.allowList) > 0 }

// IsAllowed checks if a sender is permitted by the allow list.
// Entries may carry a leading "@". Empty allow list means all senders are allowed.
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowList) == 0 {
		return true
	}
	if senderID == "" {
		return false
	}
	for _, allowed := range c.allowList {
		if senderID == allowed || senderID == strings.TrimPrefix(allowed, "@") {
			return true
		}
	}
	return false
}

// HandleMessage forwards msg to the registered handler. Messages arriving
// before a handler is set are dropped.
func (c *BaseChannel) HandleMessage(ctx context.Context, msg bus.InboundMessage) error {
	c.mu.RLock()
	h := c.handler
	c.mu.RUnlock()
	if h == nil {
		return nil
	}
	if msg.Channel == "" {
		msg.Channel = c.name
	}
	return h(ctx, msg)
}

// CodedError is implemented by send errors that carry a platform error code.
type CodedError interface {
	error
	ErrorCode() string
}

// ErrorCode returns the platform error code carried by err, or "".
func ErrorCode(err error) string {
	var coded CodedError
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}
	return ""
}

// Truncate shortens a string to maxLen bytes, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
