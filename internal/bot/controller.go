// Package bot wires a chat channel to the browser agent: it filters inbound
// notifications, parses commands and dispatches tasks, replying in thread.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/nextlevelbuilder/browserbot/internal/bus"
	"github.com/nextlevelbuilder/browserbot/internal/channels"
	"github.com/nextlevelbuilder/browserbot/internal/command"
	"github.com/nextlevelbuilder/browserbot/internal/config"
)

// ErrInvalidState is returned by Start and Stop when called from the wrong state.
var ErrInvalidState = errors.New("bot: invalid state transition")

// State is the controller lifecycle state.
type State int

const (
	Stopped State = iota
	Starting
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// Runner executes one task and returns the text to relay to the user.
// *agent.Client satisfies it.
type Runner interface {
	Run(ctx context.Context, task string) (string, error)
}

// Options configures a Controller.
type Options struct {
	Channel  channels.Channel
	Runner   Runner
	Settings config.BotConfig
}

// Controller owns the channel connection and the seen-set for the process
// lifetime. Task runs execute on their own goroutines, bounded by a semaphore,
// on a context detached from the connection so Stop does not cancel them.
type Controller struct {
	ch     channels.Channel
	runner Runner
	dedupe *bus.DedupeCache
	sem    *semaphore.Weighted
	tracer trace.Tracer

	stateMu sync.Mutex
	state   State

	settingsMu sync.RWMutex
	settings   config.BotConfig
	limiter    *channels.SenderRateLimiter

	tasks sync.WaitGroup
}

// New creates a stopped controller. The dedupe bounds and concurrency cap are
// fixed here; the rest of the settings can be swapped with UpdateSettings.
func New(opts Options) *Controller {
	s := normalize(opts.Settings)
	return &Controller{
		ch:       opts.Channel,
		runner:   opts.Runner,
		dedupe:   bus.NewDedupeCache(s.DedupeTTLDuration(), s.DedupeMaxEntries),
		sem:      semaphore.NewWeighted(int64(s.MaxConcurrentTasks)),
		tracer:   otel.Tracer("browserbot/bot"),
		settings: s,
		limiter:  channels.NewSenderRateLimiter(s.RateLimitPerMinute, time.Minute),
	}
}

func normalize(s config.BotConfig) config.BotConfig {
	if s.CommandPrefix == "" {
		s.CommandPrefix = command.DefaultPrefix
	}
	if s.MaxConcurrentTasks <= 0 {
		s.MaxConcurrentTasks = 1
	}
	if s.DedupeMaxEntries <= 0 {
		s.DedupeMaxEntries = bus.DefaultDedupeMaxEntries
	}
	return s
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

func (c *Controller) transition(from, to State) error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.state != from {
		return fmt.Errorf("%w: %s -> %s from %s", ErrInvalidState, from, to, c.state)
	}
	c.state = to
	return nil
}

func (c *Controller) setState(s State) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
}

// Start registers the message handler and connects the channel.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.transition(Stopped, Starting); err != nil {
		return err
	}

	c.ch.SetHandler(c.HandleMessage)
	if err := c.ch.Start(ctx); err != nil {
		c.setState(Stopped)
		return fmt.Errorf("start %s channel: %w", c.ch.Name(), err)
	}

	c.setState(Running)
	s := c.Settings()
	slog.Info("bot started",
		"channel", c.ch.Name(),
		"prefix", s.CommandPrefix,
		"ack", s.Ack,
		"max_concurrent_tasks", s.MaxConcurrentTasks,
	)
	return nil
}

// Stop disconnects the channel. In-flight tasks keep running; use Wait to
// drain them.
func (c *Controller) Stop(ctx context.Context) error {
	if err := c.transition(Running, Stopping); err != nil {
		return err
	}
	err := c.ch.Stop(ctx)
	c.setState(Stopped)
	if err != nil {
		return fmt.Errorf("stop %s channel: %w", c.ch.Name(), err)
	}
	slog.Info("bot stopped", "channel", c.ch.Name())
	return nil
}

// Wait blocks until all in-flight tasks finish or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Settings returns the active bot settings.
func (c *Controller) Settings() config.BotConfig {
	c.settingsMu.RLock()
	defer c.settingsMu.RUnlock()
	return c.settings
}

// UpdateSettings swaps the hot-reloadable settings. The dedupe bounds and
// the concurrency cap keep their startup values.
func (c *Controller) UpdateSettings(s config.BotConfig) {
	s = normalize(s)

	c.settingsMu.Lock()
	defer c.settingsMu.Unlock()
	if s.RateLimitPerMinute != c.settings.RateLimitPerMinute {
		c.limiter = channels.NewSenderRateLimiter(s.RateLimitPerMinute, time.Minute)
	}
	s.MaxConcurrentTasks = c.settings.MaxConcurrentTasks
	s.DedupeMaxEntries = c.settings.DedupeMaxEntries
	s.DedupeTTL = c.settings.DedupeTTL
	c.settings = s

	slog.Info("bot settings updated", "kind", "config", "prefix", s.CommandPrefix, "ack", s.Ack,
		"rate_limit_per_minute", s.RateLimitPerMinute)
}

func (c *Controller) allowRate(senderID string) bool {
	c.settingsMu.RLock()
	l := c.limiter
	c.settingsMu.RUnlock()
	return l.Allow(senderID)
}
