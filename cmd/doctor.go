package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/browserbot/internal/config"
)

func doctorCmd() *cobra.Command {
	var showConfig bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor(showConfig)
		},
	}
	cmd.Flags().BoolVar(&showConfig, "show-config", false, "print the effective config with secrets masked")
	return cmd
}

func runDoctor(showConfig bool) {
	fmt.Println("browserbot doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	if err := config.LoadDotEnv(); err != nil {
		fmt.Printf("  .env load error: %s\n", err)
	}

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, using defaults + env)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Credentials:")
	checkSecret("Slack bot", cfg.Slack.BotToken)
	checkSecret("Slack app", cfg.Slack.AppToken)
	checkSecret("LLM key", cfg.Provider.APIKey)

	fmt.Println()
	fmt.Println("  Agent:")
	fmt.Printf("    %-12s %s (%s)\n", "Model:", cfg.Provider.Model, orDefault(cfg.Provider.APIBase, "api.openai.com"))
	fmt.Printf("    %-12s %d\n", "Max steps:", cfg.Agent.MaxSteps)
	fmt.Printf("    %-12s %v\n", "Vision:", cfg.Agent.UseVision)
	fmt.Printf("    %-12s %s\n", "Timeout:", orDefault(cfg.Agent.RunTimeout, "none"))

	fmt.Println()
	fmt.Println("  Bot:")
	fmt.Printf("    %-12s %s\n", "Prefix:", cfg.Bot.CommandPrefix)
	fmt.Printf("    %-12s %v\n", "Ack:", cfg.Bot.Ack)
	fmt.Printf("    %-12s %d\n", "Concurrency:", cfg.Bot.MaxConcurrentTasks)
	if len(cfg.Slack.AllowFrom) > 0 {
		fmt.Printf("    %-12s %s\n", "Allow from:", strings.Join(cfg.Slack.AllowFrom, ", "))
	}

	fmt.Println()
	fmt.Println("  Browser:")
	checkBrowser(cfg.Browser)

	fmt.Println()
	if err := cfg.Validate(); err != nil {
		fmt.Println("  Problems:")
		for _, line := range strings.Split(err.Error(), "\n") {
			fmt.Printf("    - %s\n", line)
		}
	} else {
		fmt.Println("  Config valid.")
	}

	if showConfig {
		data, err := json.MarshalIndent(cfg.MaskedCopy(), "", "  ")
		if err == nil {
			fmt.Println()
			fmt.Println(string(data))
		}
	}

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkSecret(name, value string) {
	if value == "" {
		fmt.Printf("    %-12s (not configured)\n", name+":")
		return
	}
	fmt.Printf("    %-12s %s\n", name+":", maskSecret(value))
}

// maskSecret keeps the first and last four characters of long secrets.
func maskSecret(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}

func checkBrowser(b config.BrowserConfig) {
	switch {
	case b.ControlURL != "":
		fmt.Printf("    %-12s %s (remote)\n", "Control URL:", b.ControlURL)
	case b.ExecutablePath != "":
		path := config.ExpandHome(b.ExecutablePath)
		fmt.Printf("    %-12s %s", "Binary:", path)
		if _, err := os.Stat(path); err != nil {
			fmt.Println(" (NOT FOUND)")
		} else {
			fmt.Println(" (OK)")
		}
	default:
		if path, ok := launcher.LookPath(); ok {
			fmt.Printf("    %-12s %s (OK)\n", "Binary:", path)
		} else {
			fmt.Printf("    %-12s not found (Chromium is downloaded on first run)\n", "Binary:")
		}
	}
	fmt.Printf("    %-12s %v\n", "Headless:", b.Headless)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
