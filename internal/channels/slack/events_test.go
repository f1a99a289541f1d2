package slack

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/nextlevelbuilder/browserbot/internal/bus"
	"github.com/nextlevelbuilder/browserbot/internal/config"
)

const messageCallback = `{
	"token": "t",
	"team_id": "T1",
	"api_app_id": "A1",
	"type": "event_callback",
	"event_id": "Ev123",
	"event_time": 1700000000,
	"event": {
		"type": "message",
		"channel": "C1",
		"channel_type": "channel",
		"user": "U1",
		"text": "$bu find the top story",
		"ts": "1700000000.000100"
	}
}`

func parseCallback(t *testing.T, raw string) slackevents.EventsAPIEvent {
	t.Helper()
	ev, err := slackevents.ParseEvent(json.RawMessage(raw), slackevents.OptionNoVerifyToken())
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	return ev
}

func newTestChannel(t *testing.T) *Channel {
	t.Helper()
	c, err := New(config.SlackConfig{BotToken: "xoxb-test", AppToken: "xapp-test", ReplyRate: 1000, ReplyBurst: 10})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestToInbound(t *testing.T) {
	msg := toInbound(parseCallback(t, messageCallback), "UBOT", "BBOT")

	want := bus.InboundMessage{
		Channel:   ChannelName,
		EventID:   "Ev123",
		Kind:      bus.KindMessage,
		SenderID:  "U1",
		ChatID:    "C1",
		Content:   "$bu find the top story",
		MessageTS: "1700000000.000100",
	}
	if msg.Channel != want.Channel || msg.EventID != want.EventID || msg.Kind != want.Kind ||
		msg.SenderID != want.SenderID || msg.ChatID != want.ChatID || msg.Content != want.Content ||
		msg.MessageTS != want.MessageTS || msg.ThreadTS != "" || msg.Self {
		t.Errorf("toInbound() = %+v, want %+v", msg, want)
	}
	if msg.ThreadAnchor() != "1700000000.000100" {
		t.Errorf("ThreadAnchor() = %q, want message ts", msg.ThreadAnchor())
	}
	if msg.Metadata["team_id"] != "T1" || msg.Metadata["channel_type"] != "channel" {
		t.Errorf("Metadata = %v", msg.Metadata)
	}
}

func TestToInboundVariants(t *testing.T) {
	tests := []struct {
		name  string
		event string
		check func(t *testing.T, m bus.InboundMessage)
	}{
		{
			name:  "threaded reply",
			event: `{"type":"message","channel":"C1","user":"U1","text":"hi","ts":"2.0","thread_ts":"1.0"}`,
			check: func(t *testing.T, m bus.InboundMessage) {
				if m.ThreadAnchor() != "1.0" {
					t.Errorf("ThreadAnchor() = %q, want parent ts 1.0", m.ThreadAnchor())
				}
			},
		},
		{
			name:  "bot message",
			event: `{"type":"message","subtype":"bot_message","channel":"C1","bot_id":"B9","text":"hi","ts":"2.0"}`,
			check: func(t *testing.T, m bus.InboundMessage) {
				if m.SubType != bus.SubTypeBotMessage || m.BotID != "B9" || m.Self {
					t.Errorf("got %+v", m)
				}
			},
		},
		{
			name:  "own message",
			event: `{"type":"message","channel":"C1","user":"UBOT","bot_id":"BBOT","text":"Task completed","ts":"2.0"}`,
			check: func(t *testing.T, m bus.InboundMessage) {
				if !m.Self {
					t.Error("message from the bot user should be marked Self")
				}
			},
		},
		{
			name:  "non-message event",
			event: `{"type":"app_mention","channel":"C1","user":"U1","text":"<@UBOT> hi","ts":"2.0"}`,
			check: func(t *testing.T, m bus.InboundMessage) {
				if m.Kind != "app_mention" || m.EventID != "Ev1" {
					t.Errorf("got %+v", m)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := `{"type":"event_callback","team_id":"T1","event_id":"Ev1","event":` + tt.event + `}`
			tt.check(t, toInbound(parseCallback(t, raw), "UBOT", "BBOT"))
		})
	}
}

func TestHandleEventAcksBeforeHandler(t *testing.T) {
	c := newTestChannel(t)

	var order []string
	c.ack = func(req socketmode.Request) { order = append(order, "ack:"+req.EnvelopeID) }
	c.SetHandler(func(_ context.Context, msg bus.InboundMessage) error {
		order = append(order, "handle:"+msg.EventID)
		return nil
	})

	c.handleEvent(context.Background(), socketmode.Event{
		Type:    socketmode.EventTypeEventsAPI,
		Data:    parseCallback(t, messageCallback),
		Request: &socketmode.Request{Type: "events_api", EnvelopeID: "env-1"},
	})

	if len(order) != 2 || order[0] != "ack:env-1" || order[1] != "handle:Ev123" {
		t.Errorf("order = %v, want [ack:env-1 handle:Ev123]", order)
	}
}

func TestHandleEventNonEventsAPI(t *testing.T) {
	c := newTestChannel(t)

	acks, handled := 0, 0
	c.ack = func(socketmode.Request) { acks++ }
	c.SetHandler(func(context.Context, bus.InboundMessage) error {
		handled++
		return nil
	})

	// Slash commands are acknowledged but not handled.
	c.handleEvent(context.Background(), socketmode.Event{
		Type:    socketmode.EventTypeSlashCommand,
		Request: &socketmode.Request{Type: "slash_commands", EnvelopeID: "env-2"},
	})
	// Connection lifecycle events carry nothing to acknowledge.
	c.handleEvent(context.Background(), socketmode.Event{Type: socketmode.EventTypeConnected})
	// Hello has a request without an envelope.
	c.handleEvent(context.Background(), socketmode.Event{
		Type:    socketmode.EventTypeHello,
		Request: &socketmode.Request{Type: "hello"},
	})

	if acks != 1 || handled != 0 {
		t.Errorf("acks = %d, handled = %d, want 1 and 0", acks, handled)
	}
}
