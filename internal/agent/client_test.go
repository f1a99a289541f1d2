package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type stubAgent struct {
	history  *History
	err      error
	panicVal interface{}
	gotSteps int
	closed   bool
}

func (a *stubAgent) Run(_ context.Context, maxSteps int) (*History, error) {
	a.gotSteps = maxSteps
	if a.panicVal != nil {
		panic(a.panicVal)
	}
	return a.history, a.err
}

func (a *stubAgent) Close() error {
	a.closed = true
	return nil
}

func launcherFor(a *stubAgent) Launcher {
	return LauncherFunc(func(context.Context, string) (Agent, error) { return a, nil })
}

func doneHistory(content string) *History {
	return &History{Steps: []StepRecord{
		{Step: 1, Results: []ActionResult{{Action: "navigate", Success: true}}},
		{Step: 2, Results: []ActionResult{{Action: "done", IsDone: true, Success: true, ExtractedContent: content}}},
	}}
}

func TestClientRun(t *testing.T) {
	tests := []struct {
		name    string
		agent   *stubAgent
		want    string
		wantErr string
	}{
		{"done with content", &stubAgent{history: doneHistory("Top story: X")}, "Top story: X", ""},
		{"done without content", &stubAgent{history: doneHistory("")}, NoResultMessage, ""},
		{"budget exhausted", &stubAgent{history: &History{Steps: []StepRecord{{Step: 1, Results: []ActionResult{{Action: "scroll", Success: true}}}}}}, NoResultMessage, ""},
		{"nil history", &stubAgent{}, NoResultMessage, ""},
		{"agent error", &stubAgent{err: errors.New("LLM quota exceeded")}, "", "LLM quota exceeded"},
		{"agent panic", &stubAgent{panicVal: "nil map write"}, "", "agent panic: nil map write"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(launcherFor(tt.agent), ClientConfig{MaxSteps: 7})
			got, err := c.Run(context.Background(), "find the top story")

			if tt.wantErr != "" {
				var runErr *RunError
				if !errors.As(err, &runErr) {
					t.Fatalf("Run error = %v, want *RunError", err)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("Run error = %q, want containing %q", err, tt.wantErr)
				}
				if runErr.Task != "find the top story" {
					t.Errorf("RunError.Task = %q", runErr.Task)
				}
				if got != "" {
					t.Errorf("result = %q, want empty on error", got)
				}
			} else {
				if err != nil {
					t.Fatalf("Run: %v", err)
				}
				if got != tt.want {
					t.Errorf("Run() = %q, want %q", got, tt.want)
				}
			}

			if tt.agent.gotSteps != 7 {
				t.Errorf("agent got maxSteps %d, want 7", tt.agent.gotSteps)
			}
			if !tt.agent.closed {
				t.Error("agent should be closed after the run")
			}
		})
	}
}

func TestClientRunLaunchError(t *testing.T) {
	c := NewClient(LauncherFunc(func(context.Context, string) (Agent, error) {
		return nil, errors.New("chromium not found")
	}), ClientConfig{})

	_, err := c.Run(context.Background(), "t")
	if err == nil || err.Error() != "chromium not found" {
		t.Fatalf("Run error = %v, want chromium not found", err)
	}
}

func TestClientRunNoLauncher(t *testing.T) {
	_, err := NewClient(nil, ClientConfig{}).Run(context.Background(), "t")
	if !errors.Is(err, ErrNoLauncher) {
		t.Errorf("Run error = %v, want ErrNoLauncher", err)
	}
}

func TestClientDefaultMaxSteps(t *testing.T) {
	if got := NewClient(nil, ClientConfig{}).MaxSteps(); got != DefaultMaxSteps {
		t.Errorf("MaxSteps() = %d, want %d", got, DefaultMaxSteps)
	}
}

func TestClientRunTimeout(t *testing.T) {
	var deadline time.Time
	var hasDeadline bool
	c := NewClient(LauncherFunc(func(ctx context.Context, _ string) (Agent, error) {
		deadline, hasDeadline = ctx.Deadline()
		return &stubAgent{history: doneHistory("ok")}, nil
	}), ClientConfig{RunTimeout: time.Minute})

	if _, err := c.Run(context.Background(), "t"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !hasDeadline || time.Until(deadline) > time.Minute {
		t.Errorf("launch context deadline = %v (set=%v), want within 1m", deadline, hasDeadline)
	}
}
