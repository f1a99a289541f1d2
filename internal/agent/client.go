// Package agent delegates free-text tasks to a browser-automation agent and
// turns its run history into a single reply string.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// NoResultMessage is returned when a run finishes without extracted content.
const NoResultMessage = "Task completed, but no specific result was returned."

// DefaultMaxSteps bounds an agent run when no budget is configured.
const DefaultMaxSteps = 100

// ErrNoLauncher is returned by Run when the client has no launcher.
var ErrNoLauncher = errors.New("agent: no launcher configured")

// Agent is a single-use task runner bound to one task and one browser.
type Agent interface {
	// Run drives the task for at most maxSteps steps.
	Run(ctx context.Context, maxSteps int) (*History, error)
	Close() error
}

// Launcher creates a fresh Agent for every task.
type Launcher interface {
	Launch(ctx context.Context, task string) (Agent, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context, task string) (Agent, error)

func (f LauncherFunc) Launch(ctx context.Context, task string) (Agent, error) { return f(ctx, task) }

// RunError wraps any failure of a delegation call. Its message is the
// underlying failure text so it can be shown to the requesting user verbatim.
type RunError struct {
	RunID string
	Task  string
	Err   error
}

func (e *RunError) Error() string { return e.Err.Error() }
func (e *RunError) Unwrap() error { return e.Err }

// ClientConfig configures a Client.
type ClientConfig struct {
	MaxSteps   int           // default DefaultMaxSteps
	RunTimeout time.Duration // 0 = no timeout beyond the step budget
}

// Client runs tasks through agents obtained from a Launcher.
type Client struct {
	launcher   Launcher
	maxSteps   int
	runTimeout time.Duration
	tracer     trace.Tracer
}

// NewClient creates a delegation client.
func NewClient(launcher Launcher, cfg ClientConfig) *Client {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	return &Client{
		launcher:   launcher,
		maxSteps:   cfg.MaxSteps,
		runTimeout: cfg.RunTimeout,
		tracer:     tracer,
	}
}

// MaxSteps returns the step budget passed to each agent run.
func (c *Client) MaxSteps() int { return c.maxSteps }

// Run executes task and returns the agent's final extracted content, or
// NoResultMessage when the agent produced none. Every failure, including a
// panic inside the agent, comes back as a *RunError.
func (c *Client) Run(ctx context.Context, task string) (result string, err error) {
	runID := uuid.NewString()
	start := time.Now()

	ctx, span := c.tracer.Start(ctx, "agent.run", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.Int("max_steps", c.maxSteps),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("agent panicked", "kind", "delegation", "run_id", runID, "panic", r)
			result, err = "", &RunError{RunID: runID, Task: task, Err: fmt.Errorf("agent panic: %v", r)}
		}
	}()

	if c.launcher == nil {
		return "", &RunError{RunID: runID, Task: task, Err: ErrNoLauncher}
	}

	if c.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.runTimeout)
		defer cancel()
	}

	slog.Info("agent run started", "run_id", runID, "max_steps", c.maxSteps)

	a, err := c.launcher.Launch(ctx, task)
	if err != nil {
		return "", &RunError{RunID: runID, Task: task, Err: err}
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			slog.Warn("agent close failed", "run_id", runID, "error", cerr)
		}
	}()

	history, err := a.Run(ctx, c.maxSteps)
	if err != nil {
		slog.Warn("agent run failed", "kind", "delegation", "run_id", runID, "error", err,
			"duration_ms", time.Since(start).Milliseconds())
		return "", &RunError{RunID: runID, Task: task, Err: err}
	}

	steps := 0
	if history != nil {
		steps = len(history.Steps)
	}
	span.SetAttributes(attribute.Int("steps", steps), attribute.Bool("done", history.IsDone()))
	slog.Info("agent run finished", "run_id", runID, "steps", steps, "done", history.IsDone(),
		"duration_ms", time.Since(start).Milliseconds())

	if content := history.FinalResult(); content != "" {
		return content, nil
	}
	return NoResultMessage, nil
}
