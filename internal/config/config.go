package config

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// FlexibleStringSlice accepts both ["str"] and [123] in JSON.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

// Config is the root configuration for browserbot.
type Config struct {
	Slack     SlackConfig     `json:"slack"`
	Provider  ProviderConfig  `json:"provider"`
	Agent     AgentConfig     `json:"agent"`
	Browser   BrowserConfig   `json:"browser"`
	Bot       BotConfig       `json:"bot"`
	Log       LogConfig       `json:"log"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
	mu        sync.RWMutex
}

// SlackConfig holds Socket Mode credentials and reply settings.
type SlackConfig struct {
	BotToken   string              `json:"bot_token"`             // xoxb-..., env SLACK_BOT_TOKEN
	AppToken   string              `json:"app_token"`             // xapp-..., env SLACK_APP_TOKEN
	AllowFrom  FlexibleStringSlice `json:"allow_from"`            // user IDs allowed to run tasks (empty = everyone)
	APIURL     string              `json:"api_url,omitempty"`     // override Slack Web API base URL
	Debug      bool                `json:"debug,omitempty"`       // log slack-go protocol traffic
	ReplyRate  float64             `json:"reply_rate,omitempty"`  // replies per second (default 1)
	ReplyBurst int                 `json:"reply_burst,omitempty"` // reply burst size (default 3)
}

// ProviderConfig configures the OpenAI-compatible LLM endpoint.
type ProviderConfig struct {
	Name        string  `json:"name,omitempty"`     // display name (default "openai")
	APIKey      string  `json:"api_key"`            // env OPENAI_API_KEY
	APIBase     string  `json:"api_base,omitempty"` // empty = api.openai.com
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// AgentConfig configures browser agent runs.
type AgentConfig struct {
	MaxSteps    int    `json:"max_steps"`              // step budget per task (default 100)
	MaxFailures int    `json:"max_failures,omitempty"` // consecutive failed steps before abort (default 3)
	UseVision   bool   `json:"use_vision,omitempty"`   // attach page screenshots to LLM requests
	RunTimeout  string `json:"run_timeout,omitempty"`  // Go duration, empty = no timeout
}

// BrowserConfig configures the Chromium instance launched per task.
type BrowserConfig struct {
	Headless       bool   `json:"headless"`
	NoSandbox      bool   `json:"no_sandbox,omitempty"`      // required when running as root in containers
	ExecutablePath string `json:"executable_path,omitempty"` // empty = auto-detect or download
	ControlURL     string `json:"control_url,omitempty"`     // connect to a running browser instead of launching
	ActionTimeout  string `json:"action_timeout,omitempty"`  // Go duration (default "30s")
}

// BotConfig holds the settings that can be hot-reloaded while running.
type BotConfig struct {
	CommandPrefix      string `json:"command_prefix"`        // default "$bu"
	Ack                bool   `json:"ack"`                   // post an in-progress notice (default true)
	MaxConcurrentTasks int    `json:"max_concurrent_tasks"`  // default 4
	RateLimitPerMinute int    `json:"rate_limit_per_minute"` // tasks per user per minute (default 10, 0 = unlimited)
	DedupeMaxEntries   int    `json:"dedupe_max_entries"`    // default 10000
	DedupeTTL          string `json:"dedupe_ttl,omitempty"`  // Go duration, empty = entries never expire
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Format     string `json:"format"` // text or json
	File       string `json:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty"`
}

// TelemetryConfig configures OpenTelemetry OTLP export.
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled,omitempty"`      // enable OTLP export (default false)
	Endpoint    string            `json:"endpoint,omitempty"`     // OTLP endpoint (e.g. "localhost:4317")
	Protocol    string            `json:"protocol,omitempty"`     // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure,omitempty"`     // plaintext connection, for local collectors
	ServiceName string            `json:"service_name,omitempty"` // default "browserbot"
	Headers     map[string]string `json:"headers,omitempty"`      // extra headers (e.g. auth tokens for cloud backends)
}

// BotSettings returns a copy of the hot-reloadable bot section.
func (c *Config) BotSettings() BotConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Bot
}

// ReplaceFrom copies all data fields from src into c, preserving c's mutex.
func (c *Config) ReplaceFrom(src *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Slack = src.Slack
	c.Provider = src.Provider
	c.Agent = src.Agent
	c.Browser = src.Browser
	c.Bot = src.Bot
	c.Log = src.Log
	c.Telemetry = src.Telemetry
}

// RunTimeoutDuration parses RunTimeout; invalid or empty values mean no timeout.
func (a AgentConfig) RunTimeoutDuration() time.Duration { return parseDuration(a.RunTimeout) }

// ActionTimeoutDuration parses ActionTimeout; zero means the browser default.
func (b BrowserConfig) ActionTimeoutDuration() time.Duration { return parseDuration(b.ActionTimeout) }

// DedupeTTLDuration parses DedupeTTL; zero means entries never expire.
func (b BotConfig) DedupeTTLDuration() time.Duration { return parseDuration(b.DedupeTTL) }

func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0
	}
	return d
}
