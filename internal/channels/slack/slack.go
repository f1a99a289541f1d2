// Package slack connects browserbot to a Slack workspace over Socket Mode.
package slack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/browserbot/internal/channels"
	"github.com/nextlevelbuilder/browserbot/internal/config"
)

// ChannelName identifies Slack in bus messages.
const ChannelName = "slack"

// Channel receives events over Socket Mode and replies through the Web API.
type Channel struct {
	*channels.BaseChannel
	api     *slackapi.Client
	socket  *socketmode.Client
	limiter *rate.Limiter

	// ack is swapped in tests; socketmode buffers responses internally.
	ack func(req socketmode.Request)

	mu        sync.Mutex
	botUserID string
	botID     string
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a Slack channel from config. Nothing connects until Start.
func New(cfg config.SlackConfig) (*Channel, error) {
	if cfg.BotToken == "" || cfg.AppToken == "" {
		return nil, fmt.Errorf("slack: %w: bot token and app token must be provided", config.ErrMissingCredential)
	}

	apiOpts := []slackapi.Option{slackapi.OptionAppLevelToken(cfg.AppToken)}
	if cfg.APIURL != "" {
		apiOpts = append(apiOpts, slackapi.OptionAPIURL(cfg.APIURL))
	}
	var sockOpts []socketmode.Option
	if cfg.Debug {
		logger := slog.NewLogLogger(slog.Default().Handler(), slog.LevelDebug)
		apiOpts = append(apiOpts, slackapi.OptionDebug(true), slackapi.OptionLog(logger))
		sockOpts = append(sockOpts, socketmode.OptionDebug(true), socketmode.OptionLog(logger))
	}

	api := slackapi.New(cfg.BotToken, apiOpts...)
	socket := socketmode.New(api, sockOpts...)

	replyRate := cfg.ReplyRate
	if replyRate <= 0 {
		replyRate = 1
	}
	burst := cfg.ReplyBurst
	if burst <= 0 {
		burst = 3
	}

	c := &Channel{
		BaseChannel: channels.NewBaseChannel(ChannelName, cfg.AllowFrom),
		api:         api,
		socket:      socket,
		limiter:     rate.NewLimiter(rate.Limit(replyRate), burst),
	}
	c.ack = func(req socketmode.Request) { c.socket.Ack(req) }
	return c, nil
}

// Start resolves the bot identity and opens the Socket Mode connection.
// The connection outlives ctx; use Stop to close it.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("starting slack bot")

	auth, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth test: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	c.mu.Lock()
	c.botUserID, c.botID = auth.UserID, auth.BotID
	c.cancel, c.done = cancel, done
	c.mu.Unlock()

	go c.consume(runCtx)
	go func() {
		defer close(done)
		if err := c.socket.RunContext(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("slack socket mode stopped", "kind", "transport", "error", err)
		}
		c.SetRunning(false)
	}()

	c.SetRunning(true)
	slog.Info("slack bot connected", "team", auth.Team, "user", auth.User, "user_id", auth.UserID,
		"allow_list", c.HasAllowList())
	return nil
}

// Stop closes the Socket Mode connection and waits for it to wind down.
func (c *Channel) Stop(ctx context.Context) error {
	slog.Info("stopping slack bot")

	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	c.SetRunning(false)
	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("slack stop: %w", ctx.Err())
	case <-time.After(10 * time.Second):
		return errors.New("slack stop: socket mode did not shut down within 10s")
	}
}

// consume reads socketmode events until ctx is cancelled.
func (c *Channel) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-c.socket.Events:
			if !ok {
				return
			}
			c.handleEvent(ctx, evt)
		}
	}
}

func (c *Channel) identity() (userID, botID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.botUserID, c.botID
}
