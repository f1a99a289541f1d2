package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	var maxSteps int
	cmd := &cobra.Command{
		Use:   "run <task>",
		Short: "Run one browser task locally and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTask(cmd.Context(), strings.Join(args, " "), maxSteps)
		},
	}
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "step budget (default from config)")
	return cmd
}

func runTask(parent context.Context, task string, maxSteps int) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, _, cleanup, err := loadConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	if maxSteps > 0 {
		cfg.Agent.MaxSteps = maxSteps
	}
	if err := cfg.ValidateAgent(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := newAgentClient(cfg).Run(ctx, task)
	if err != nil {
		return fmt.Errorf("task failed: %w", err)
	}
	fmt.Println(result)
	return nil
}
