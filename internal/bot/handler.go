package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/browserbot/internal/bus"
	"github.com/nextlevelbuilder/browserbot/internal/channels"
	"github.com/nextlevelbuilder/browserbot/internal/command"
)

const rateLimitedReply = "%s You're sending tasks too quickly. Please wait a minute and try again."

// HandleMessage runs one notification through the filter chain and dispatches
// recognized commands. It never blocks on a task run and always returns nil;
// every drop and failure is logged instead.
func (c *Controller) HandleMessage(ctx context.Context, msg bus.InboundMessage) error {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while handling message", "kind", "handler", "event_id", msg.EventID, "panic", r)
		}
	}()

	if msg.EventID == "" {
		slog.Warn("notification without event id dropped", "kind", "malformed", "channel", msg.Channel)
		return nil
	}
	if !c.dedupe.Admit(msg.EventID) {
		slog.Debug("duplicate event dropped", "event_id", msg.EventID)
		return nil
	}
	if msg.Kind != bus.KindMessage {
		return nil
	}
	if msg.Self || msg.SubType == bus.SubTypeBotMessage || msg.BotID != "" {
		return nil
	}

	s := c.Settings()
	cmd := command.Parse(msg.Content, s.CommandPrefix)
	if cmd.Kind == command.Ignore {
		return nil
	}

	if msg.SenderID == "" || msg.ChatID == "" {
		slog.Error("command without user or channel dropped", "kind", "malformed",
			"event_id", msg.EventID, "user", msg.SenderID, "chat_id", msg.ChatID)
		return nil
	}
	if !c.ch.IsAllowed(msg.SenderID) {
		slog.Debug("sender not in allow list", "user", msg.SenderID, "chat_id", msg.ChatID)
		return nil
	}

	slog.Info("inbound: command",
		"event_id", msg.EventID,
		"command", cmd.Kind.String(),
		"user", msg.SenderID,
		"chat_id", msg.ChatID,
		"preview", channels.Truncate(cmd.Task, 80),
	)

	thread := threadOf(msg)
	switch {
	case cmd.Kind == command.Help, cmd.IsEmptyTask():
		c.reply(ctx, thread, command.HelpText(s.CommandPrefix))
	case !c.allowRate(msg.SenderID):
		slog.Info("task rate limited", "user", msg.SenderID, "chat_id", msg.ChatID)
		c.reply(ctx, thread, fmt.Sprintf(rateLimitedReply, mention(msg.SenderID)))
	default:
		c.startTask(msg, cmd.Task, s.Ack)
	}
	return nil
}

// startTask runs task on its own goroutine. The run context is detached from
// the connection so stopping the channel does not cancel it.
func (c *Controller) startTask(msg bus.InboundMessage, task string, ack bool) {
	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()
		ctx := context.Background()
		thread := threadOf(msg)
		user := mention(msg.SenderID)

		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in task run", "kind", "handler", "event_id", msg.EventID, "panic", r)
				c.reply(ctx, thread, fmt.Sprintf("%s Error during task execution: %v", user, r))
			}
		}()

		if ack {
			c.reply(ctx, thread, fmt.Sprintf("%s I'm working on: *%s*\nThis may take a few minutes...", user, task))
		}

		if err := c.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer c.sem.Release(1)

		c.runTask(ctx, msg, thread, task)
	}()
}

func (c *Controller) runTask(ctx context.Context, msg bus.InboundMessage, thread bus.OutboundMessage, task string) {
	ctx, span := c.tracer.Start(ctx, "bot.task", trace.WithAttributes(
		attribute.String("channel", msg.Channel),
		attribute.String("event_id", msg.EventID),
		attribute.String("chat_id", msg.ChatID),
	))
	defer span.End()

	start := time.Now()
	user := mention(msg.SenderID)

	result, err := c.runner.Run(ctx, task)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("task failed", "kind", "delegation", "event_id", msg.EventID, "user", msg.SenderID,
			"error", err, "duration_ms", time.Since(start).Milliseconds())
		c.reply(ctx, thread, fmt.Sprintf("%s Error during task execution: %s", user, err))
		return
	}

	slog.Info("task completed", "event_id", msg.EventID, "user", msg.SenderID,
		"result_len", len(result), "duration_ms", time.Since(start).Milliseconds())
	c.reply(ctx, thread, fmt.Sprintf("%s Task completed:\n\n%s", user, result))
}

// reply posts text in thread. Failures are logged and swallowed.
func (c *Controller) reply(ctx context.Context, thread bus.OutboundMessage, text string) {
	thread.Content = text
	if err := c.ch.Send(ctx, thread); err != nil {
		slog.Error("reply failed", "kind", "transport",
			"channel", thread.Channel,
			"chat_id", thread.ChatID,
			"thread_ts", thread.ThreadTS,
			"code", channels.ErrorCode(err),
			"error", err,
		)
	}
}

func threadOf(msg bus.InboundMessage) bus.OutboundMessage {
	return bus.OutboundMessage{
		Channel:  msg.Channel,
		ChatID:   msg.ChatID,
		ThreadTS: msg.ThreadAnchor(),
	}
}

func mention(userID string) string { return "<@" + userID + ">" }
