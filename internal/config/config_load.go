package config

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/titanous/json5"
)

// ErrMissingCredential is wrapped by Validate errors for absent tokens or keys.
var ErrMissingCredential = errors.New("missing credential")

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Slack: SlackConfig{
			ReplyRate:  1,
			ReplyBurst: 3,
		},
		Provider: ProviderConfig{
			Name:  "openai",
			Model: "gpt-4o",
		},
		Agent: AgentConfig{
			MaxSteps:    100,
			MaxFailures: 3,
		},
		Browser: BrowserConfig{
			Headless:      true,
			ActionTimeout: "30s",
		},
		Bot: BotConfig{
			CommandPrefix:      "$bu",
			Ack:                true,
			MaxConcurrentTasks: 4,
			RateLimitPerMinute: 10,
			DedupeMaxEntries:   10000,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Telemetry: TelemetryConfig{
			Protocol:    "grpc",
			ServiceName: "browserbot",
		},
	}
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env") into
// the process environment. Variables already set are not overridden and
// missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file yields the defaults plus env overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		if err := json5.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values; BROWSERBOT_* names win over the bare ones.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	envBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	// Credentials
	envStr("SLACK_BOT_TOKEN", &c.Slack.BotToken)
	envStr("SLACK_APP_TOKEN", &c.Slack.AppToken)
	envStr("OPENAI_API_KEY", &c.Provider.APIKey)
	envStr("BROWSERBOT_SLACK_BOT_TOKEN", &c.Slack.BotToken)
	envStr("BROWSERBOT_SLACK_APP_TOKEN", &c.Slack.AppToken)
	envStr("BROWSERBOT_OPENAI_API_KEY", &c.Provider.APIKey)

	// Provider
	envStr("OPENAI_BASE_URL", &c.Provider.APIBase)
	envStr("BROWSERBOT_OPENAI_BASE_URL", &c.Provider.APIBase)
	envStr("BROWSERBOT_MODEL", &c.Provider.Model)

	// Bot behaviour
	envStr("BROWSERBOT_COMMAND_PREFIX", &c.Bot.CommandPrefix)
	envBool("BROWSERBOT_ACK", &c.Bot.Ack)
	envInt("BROWSERBOT_MAX_CONCURRENT_TASKS", &c.Bot.MaxConcurrentTasks)
	envInt("BROWSERBOT_RATE_LIMIT_PER_MINUTE", &c.Bot.RateLimitPerMinute)
	if v := os.Getenv("BROWSERBOT_ALLOW_FROM"); v != "" {
		c.Slack.AllowFrom = splitList(v)
	}

	// Agent & browser
	envInt("BROWSERBOT_MAX_STEPS", &c.Agent.MaxSteps)
	envBool("BROWSERBOT_USE_VISION", &c.Agent.UseVision)
	envStr("BROWSERBOT_RUN_TIMEOUT", &c.Agent.RunTimeout)
	envBool("BROWSERBOT_HEADLESS", &c.Browser.Headless)
	envBool("BROWSERBOT_NO_SANDBOX", &c.Browser.NoSandbox)
	envStr("BROWSERBOT_BROWSER_PATH", &c.Browser.ExecutablePath)
	envStr("BROWSERBOT_BROWSER_URL", &c.Browser.ControlURL)

	// Logging
	envStr("BROWSERBOT_LOG_LEVEL", &c.Log.Level)
	envStr("BROWSERBOT_LOG_FORMAT", &c.Log.Format)
	envStr("BROWSERBOT_LOG_FILE", &c.Log.File)

	// Telemetry
	envStr("BROWSERBOT_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("BROWSERBOT_TELEMETRY_PROTOCOL", &c.Telemetry.Protocol)
	envStr("BROWSERBOT_TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)
	envBool("BROWSERBOT_TELEMETRY_ENABLED", &c.Telemetry.Enabled)
	envBool("BROWSERBOT_TELEMETRY_INSECURE", &c.Telemetry.Insecure)
}

// ValidateSlack checks what the Slack bridge needs to connect.
func (c *Config) ValidateSlack() error {
	var errs []error
	if c.Slack.BotToken == "" {
		errs = append(errs, fmt.Errorf("%w: slack bot token (SLACK_BOT_TOKEN)", ErrMissingCredential))
	}
	if c.Slack.AppToken == "" {
		errs = append(errs, fmt.Errorf("%w: slack app-level token (SLACK_APP_TOKEN)", ErrMissingCredential))
	}
	if strings.TrimSpace(c.Bot.CommandPrefix) == "" {
		errs = append(errs, errors.New("bot.command_prefix must not be empty"))
	}
	if c.Bot.MaxConcurrentTasks < 1 {
		errs = append(errs, errors.New("bot.max_concurrent_tasks must be at least 1"))
	}
	errs = append(errs, checkDuration("bot.dedupe_ttl", c.Bot.DedupeTTL))
	return errors.Join(errs...)
}

// ValidateAgent checks what a browser agent run needs.
func (c *Config) ValidateAgent() error {
	var errs []error
	if c.Provider.APIKey == "" {
		errs = append(errs, fmt.Errorf("%w: LLM API key (OPENAI_API_KEY)", ErrMissingCredential))
	}
	if c.Agent.MaxSteps < 1 {
		errs = append(errs, errors.New("agent.max_steps must be at least 1"))
	}
	errs = append(errs,
		checkDuration("agent.run_timeout", c.Agent.RunTimeout),
		checkDuration("browser.action_timeout", c.Browser.ActionTimeout),
	)
	return errors.Join(errs...)
}

// Validate runs every check needed to serve.
func (c *Config) Validate() error {
	return errors.Join(c.ValidateSlack(), c.ValidateAgent())
}

func checkDuration(field, v string) error {
	if v == "" {
		return nil
	}
	if _, err := time.ParseDuration(v); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	return nil
}

// Hash returns a short SHA-256 hash of the config, used to skip no-op reloads.
func (c *Config) Hash() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, _ := json.Marshal(c)
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:8])
}

const secretMask = "***"

// MaskedCopy returns a copy of the config with all secret fields masked.
// Used by the doctor command when printing the effective config.
func (c *Config) MaskedCopy() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := json.Marshal(c)
	if err != nil {
		return &Config{}
	}
	cp := Default()
	if err := json.Unmarshal(data, cp); err != nil {
		return &Config{}
	}

	maskNonEmpty(&cp.Slack.BotToken)
	maskNonEmpty(&cp.Slack.AppToken)
	maskNonEmpty(&cp.Provider.APIKey)
	for k := range cp.Telemetry.Headers {
		cp.Telemetry.Headers[k] = secretMask
	}
	return cp
}

func maskNonEmpty(s *string) {
	if *s != "" {
		*s = secretMask
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ExpandHome replaces leading ~ with the user home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
