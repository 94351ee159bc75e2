package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/layout-scout/internal/config"
	"github.com/xkilldash9x/layout-scout/internal/store"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Open the browser, log in if needed and save the session cookies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			return runLogin(cmd.Context(), cfg, logger)
		},
	}
}

func runLogin(ctx context.Context, cfg config.Interface, logger *zap.Logger) error {
	if err := ensureConfigDir(cfg.Paths()); err != nil {
		return err
	}
	sess, err := openSession(ctx, cfg, store.New(logger), newClock(), logger)
	if err != nil {
		return err
	}
	defer sess.Close(ctx, logger)

	logger.Info("Session is ready.", zap.String("cookies", cfg.Paths().CookiesFile))
	return nil
}
