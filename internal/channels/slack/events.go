package slack

import (
	"context"
	"log/slog"

	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/nextlevelbuilder/browserbot/internal/bus"
	"github.com/nextlevelbuilder/browserbot/internal/channels"
)

// handleEvent acknowledges the envelope first, then hands Events API
// payloads to the message handler.
func (c *Channel) handleEvent(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		slog.Debug("slack socket mode connecting")
		return
	case socketmode.EventTypeConnected:
		slog.Info("slack socket mode connected")
		return
	case socketmode.EventTypeConnectionError:
		slog.Warn("slack socket mode connection error", "kind", "transport", "data", evt.Data)
		return
	case socketmode.EventTypeDisconnect:
		slog.Info("slack socket mode disconnect requested")
		return
	}

	if evt.Request != nil && evt.Request.EnvelopeID != "" {
		c.ack(*evt.Request)
	}

	if evt.Type != socketmode.EventTypeEventsAPI {
		slog.Debug("slack event ignored", "type", evt.Type)
		return
	}

	eventsAPI, ok := evt.Data.(slackevents.EventsAPIEvent)
	if !ok {
		slog.Warn("slack events_api payload has unexpected type", "kind", "malformed")
		return
	}

	userID, botID := c.identity()
	msg := toInbound(eventsAPI, userID, botID)

	slog.Debug("slack message received",
		"event_id", msg.EventID,
		"event_type", msg.Kind,
		"sender_id", msg.SenderID,
		"chat_id", msg.ChatID,
		"preview", channels.Truncate(msg.Content, 50),
	)

	if err := c.HandleMessage(ctx, msg); err != nil {
		slog.Error("slack message handler failed", "kind", "handler", "event_id", msg.EventID, "error", err)
	}
}

// toInbound converts an Events API callback into a bus message. Fields the
// payload lacks stay empty; the handler decides what is malformed.
func toInbound(ev slackevents.EventsAPIEvent, selfUserID, selfBotID string) bus.InboundMessage {
	msg := bus.InboundMessage{
		Channel: ChannelName,
		Kind:    ev.InnerEvent.Type,
	}
	if cb, ok := ev.Data.(*slackevents.EventsAPICallbackEvent); ok {
		msg.EventID = cb.EventID
		msg.Metadata = map[string]string{"team_id": cb.TeamID}
	}

	m, ok := ev.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		return msg
	}
	msg.SubType = m.SubType
	msg.SenderID = m.User
	msg.BotID = m.BotID
	msg.ChatID = m.Channel
	msg.Content = m.Text
	msg.MessageTS = m.TimeStamp
	msg.ThreadTS = m.ThreadTimeStamp
	msg.Self = (selfUserID != "" && m.User == selfUserID) || (selfBotID != "" && m.BotID == selfBotID)
	if m.ChannelType != "" {
		if msg.Metadata == nil {
			msg.Metadata = map[string]string{}
		}
		msg.Metadata["channel_type"] = m.ChannelType
	}
	return msg
}
