// Package cmd implements ticketctl, the operator CLI of the help-desk router.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-router/internal/app"
	"github.com/spec-kit/helpdesk-router/internal/config"
	"github.com/spec-kit/helpdesk-router/internal/observability"
)

var (
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ticketctl",
	Short: "Help-desk router operator CLI",
	Long: `Inspect teams, on-call coverage and tickets, edit support rosters and
issue admin API tokens. Reads the same environment as the server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		if logger, err = observability.NewLogger(config.LoggerConfig{Level: "warn"}); err != nil {
			return err
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withApp builds the router components for the duration of fn.
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}
	defer a.Close(ctx)
	return fn(a)
}
