package agent

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/browserbot/internal/browser"
	"github.com/nextlevelbuilder/browserbot/internal/providers"
)

// BrowserLauncher starts a new browser session and BrowserAgent per task.
type BrowserLauncher struct {
	Provider    providers.Provider
	Model       string
	Browser     browser.Config
	UseVision   bool
	MaxFailures int
	MaxTokens   int
	Temperature float64

	// newSession is replaced in tests.
	newSession func(ctx context.Context, cfg browser.Config) (Browser, error)
}

// Launch implements Launcher.
func (l *BrowserLauncher) Launch(ctx context.Context, task string) (Agent, error) {
	if l.Provider == nil {
		return nil, fmt.Errorf("launch agent: no LLM provider configured")
	}

	newSession := l.newSession
	if newSession == nil {
		newSession = func(ctx context.Context, cfg browser.Config) (Browser, error) {
			return browser.New(ctx, cfg)
		}
	}

	sess, err := newSession(ctx, l.Browser)
	if err != nil {
		return nil, fmt.Errorf("launch agent: %w", err)
	}

	return NewBrowserAgent(BrowserAgentConfig{
		Task:        task,
		Provider:    l.Provider,
		Model:       l.Model,
		Browser:     sess,
		UseVision:   l.UseVision,
		MaxFailures: l.MaxFailures,
		MaxTokens:   l.MaxTokens,
		Temperature: l.Temperature,
	}), nil
}
