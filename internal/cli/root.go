// Package cli is the command-line surface of the bot.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hstefan/fotc/internal/app"
	"github.com/hstefan/fotc/internal/config"
	"github.com/hstefan/fotc/internal/logger"
)

// Exit codes.
const (
	ExitOK     = 0
	ExitError  = 1
	ExitConfig = 2
)

// errConfig marks failures that happen before anything is served.
var errConfig = errors.New("configuration error")

// Execute runs the root command and returns the process exit code.
func Execute(version string) int {
	err := newRootCmd(version).Execute()
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, errConfig):
		fmt.Fprintln(os.Stderr, err)
		return ExitConfig
	default:
		fmt.Fprintln(os.Stderr, err)
		return ExitError
	}
}

func newRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "fotc",
		Short:         "Group chat bot with reminders and quotes",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(serveCmd(), migrateCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the schema and tables, then exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return app.Migrate(cmd.Context(), cfg, log)
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("app init failed", zap.Error(err))
		return err
	}
	return a.Run(ctx)
}

// bootstrap loads configuration and builds the logger.
func bootstrap() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, fmt.Errorf("%w: %v", errConfig, err)
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return cfg, nil, fmt.Errorf("%w: %v", errConfig, err)
	}
	return cfg, log, nil
}
