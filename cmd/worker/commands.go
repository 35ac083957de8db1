package main

import (
	"fmt"
	"log/slog"

	"github.com/phrazzld/goalforge/internal/config"
	"github.com/phrazzld/goalforge/internal/platform/logger"
	"github.com/spf13/cobra"
)

// newRootCommand assembles the command tree.
func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "worker",
		Short:        "Goalforge background worker",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "config file (default ./config.yaml if present)")

	root.AddCommand(
		newRunCommand(),
		newMigrateCommand(),
		newEnqueueCommand(),
		newTriggerCommand(),
		newDeadLettersCommand(),
	)
	return root
}

// loadConfig reads configuration and sets up the process logger.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	return cfg, log, nil
}
