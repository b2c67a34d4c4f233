package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/courtside/rankings/internal/app"
	"github.com/courtside/rankings/internal/config"
)

func newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Run a single update cycle and exit",
		Long: `Fetches the rankings page, parses it, and replaces the stored
snapshot once. Exits non-zero if the cycle fails, leaving the previous
snapshot intact.`,
		RunE: runUpdate,
	}
}

func runUpdate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize service: %w", err)
	}
	defer a.Close()

	outcome := a.RunOnce(ctx)
	if !outcome.Success {
		return fmt.Errorf("update cycle failed: %s", outcome.Reason)
	}

	a.Logger().Info("update cycle complete",
		zap.Int("players", outcome.PlayerCount),
		zap.Duration("duration", outcome.Duration),
	)
	return nil
}
