package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/browserbot/internal/agent"
	"github.com/nextlevelbuilder/browserbot/internal/bot"
	"github.com/nextlevelbuilder/browserbot/internal/browser"
	"github.com/nextlevelbuilder/browserbot/internal/channels/slack"
	"github.com/nextlevelbuilder/browserbot/internal/config"
	"github.com/nextlevelbuilder/browserbot/internal/logging"
	"github.com/nextlevelbuilder/browserbot/internal/providers"
	"github.com/nextlevelbuilder/browserbot/internal/tracing"
)

var drainTimeout = 5 * time.Minute

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Connect to Slack and handle browser tasks (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	cmd.Flags().DurationVar(&drainTimeout, "drain-timeout", drainTimeout, "how long to wait for in-flight tasks on shutdown")
	return cmd
}

// loadConfig reads .env, the config file and env overrides, then installs
// the logger. The returned cleanup closes the log file.
func loadConfig() (*config.Config, string, func(), error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, "", nil, err
	}
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, "", nil, err
	}
	closer := logging.Setup(cfg.Log, verbose)
	return cfg, cfgPath, func() { _ = closer.Close() }, nil
}

func newAgentClient(cfg *config.Config) *agent.Client {
	provider := providers.NewOpenAIProvider(cfg.Provider.Name, cfg.Provider.APIKey, cfg.Provider.APIBase, cfg.Provider.Model)
	launcher := &agent.BrowserLauncher{
		Provider: provider,
		Model:    cfg.Provider.Model,
		Browser: browser.Config{
			Headless:       cfg.Browser.Headless,
			NoSandbox:      cfg.Browser.NoSandbox,
			ExecutablePath: config.ExpandHome(cfg.Browser.ExecutablePath),
			ControlURL:     cfg.Browser.ControlURL,
			ActionTimeout:  cfg.Browser.ActionTimeoutDuration(),
		},
		UseVision:   cfg.Agent.UseVision,
		MaxFailures: cfg.Agent.MaxFailures,
		MaxTokens:   cfg.Provider.MaxTokens,
		Temperature: cfg.Provider.Temperature,
	}
	return agent.NewClient(launcher, agent.ClientConfig{
		MaxSteps:   cfg.Agent.MaxSteps,
		RunTimeout: cfg.Agent.RunTimeoutDuration(),
	})
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, cfgPath, cleanup, err := loadConfig()
	if err != nil {
		slog.Error("failed to load config", "kind", "config", "error", err)
		return err
	}
	defer cleanup()

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "kind", "config", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Telemetry)
	if err != nil {
		slog.Warn("otel tracing disabled", "error", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			slog.Warn("otel shutdown failed", "error", err)
		}
	}()

	ch, err := slack.New(cfg.Slack)
	if err != nil {
		return err
	}

	ctrl := bot.New(bot.Options{
		Channel:  ch,
		Runner:   newAgentClient(cfg),
		Settings: cfg.BotSettings(),
	})
	if err := ctrl.Start(ctx); err != nil {
		slog.Error("failed to start bot", "error", err)
		return err
	}

	slog.Info("browserbot running",
		"version", Version,
		"config", cfgPath,
		"model", cfg.Provider.Model,
		"max_steps", cfg.Agent.MaxSteps,
		"headless", cfg.Browser.Headless,
	)

	g, gctx := errgroup.WithContext(ctx)
	if w, err := config.NewWatcher(cfgPath, func(updated *config.Config) {
		if updated.Hash() == cfg.Hash() {
			return
		}
		cfg.ReplaceFrom(updated)
		ctrl.UpdateSettings(cfg.BotSettings())
	}); err != nil {
		slog.Warn("config hot reload disabled", "kind", "config", "error", err)
	} else {
		g.Go(func() error { return w.Run(gctx) })
	}

	<-ctx.Done()
	slog.Info("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := ctrl.Stop(stopCtx); err != nil {
		slog.Warn("bot stop failed", "error", err)
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("config watcher stopped", "kind", "config", "error", err)
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), drainTimeout)
	defer cancelDrain()
	if err := ctrl.Wait(drainCtx); err != nil {
		return fmt.Errorf("in-flight tasks still running after %s", drainTimeout)
	}
	return nil
}
