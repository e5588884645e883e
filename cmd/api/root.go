package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"proposal-review/internal/config"
	"proposal-review/internal/logger"
)

// rootCommand creates the CLI. Configuration is loaded once before any
// subcommand runs.
func rootCommand() *cobra.Command {
	cfg := &config.Config{}
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "proposal-review",
		Short:         "Proposal review assignment and reputation engine",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")

	keygenCmd := keygenCommand()

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// keygen produces the secret the configuration requires
		if cmd.Name() == keygenCmd.Name() {
			return nil
		}

		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if logLevel != "" {
			loaded.Log.Level = logLevel
		}
		*cfg = *loaded

		logger.Setup(logger.Config{
			Level:   cfg.Log.Level,
			Service: cfg.App.Name,
			Version: cfg.App.Version,
		})
		slog.Debug("Configuration loaded", "command", cmd.Name(), "env", cfg.App.Env, "store", cfg.Store.Driver)
		return nil
	}

	rootCmd.AddCommand(
		serveCommand(cfg),
		migrateCommand(cfg),
		reconcileCommand(cfg),
		reclaimCommand(cfg),
		tokenCommand(cfg),
		keygenCmd,
	)
	return rootCmd
}
