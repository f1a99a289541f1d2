package bus

import "context"

// Notification kinds delivered by a channel.
const (
	KindMessage = "message"
)

// SubTypeBotMessage marks messages posted by bots or integrations.
const SubTypeBotMessage = "bot_message"

// InboundMessage represents one notification received from a channel (Slack, etc.).
// It is built once by the channel adapter and never mutated afterwards.
type InboundMessage struct {
	Channel   string            `json:"channel"`              // channel adapter name, e.g. "slack"
	EventID   string            `json:"event_id"`             // unique per delivery, repeats on redelivery
	Kind      string            `json:"kind"`                 // "message" or another platform event type
	SubType   string            `json:"sub_type,omitempty"`   // e.g. "bot_message", "message_changed"
	SenderID  string            `json:"sender_id"`            // platform user ID
	BotID     string            `json:"bot_id,omitempty"`     // set when a bot authored the message
	Self      bool              `json:"self,omitempty"`       // authored by this bot's own user
	ChatID    string            `json:"chat_id"`              // conversation ID
	Content   string            `json:"content"`              // raw message text
	MessageTS string            `json:"message_ts,omitempty"` // message timestamp, used as thread anchor
	ThreadTS  string            `json:"thread_ts,omitempty"`  // parent thread timestamp when already threaded
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ThreadAnchor returns the timestamp replies should be threaded under.
// Replies to a threaded message stay in that thread; top-level messages start one.
func (m InboundMessage) ThreadAnchor() string {
	if m.ThreadTS != "" {
		return m.ThreadTS
	}
	return m.MessageTS
}

// OutboundMessage represents a message to be sent to a channel.
// ChatID + ThreadTS form the conversation thread reference; neither is interpreted.
type OutboundMessage struct {
	Channel  string            `json:"channel"`
	ChatID   string            `json:"chat_id"`
	ThreadTS string            `json:"thread_ts,omitempty"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"` // channel-specific metadata
}

// MessageHandler handles an inbound message from a specific channel.
type MessageHandler func(ctx context.Context, msg InboundMessage) error
