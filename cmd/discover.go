package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/layout-scout/internal/config"
	"github.com/xkilldash9x/layout-scout/internal/discovery"
	"github.com/xkilldash9x/layout-scout/internal/store"
)

// newDiscoverCmd creates the `discover` command, the full pipeline.
func newDiscoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Log in if needed, capture the profile page and infer its selector mapping",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := fromContext(ctx)
			if err != nil {
				return err
			}
			if err := applyDiscoverFlags(cmd, cfg); err != nil {
				return err
			}

			if err := runDiscover(ctx, cfg, logger); err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Warn("Discovery aborted.")
				}
				return err
			}
			return nil
		},
	}

	cmd.Flags().Bool("force", true, "Run discovery even when a layout file already exists")
	cmd.Flags().String("engine", config.EngineChromedp, "Browser engine: chromedp, rod or playwright")
	cmd.Flags().Bool("headless", false, "Run the browser without a visible window")
	cmd.Flags().Int("scroll-count", 5, "Number of viewport scrolls before the screenshot")
	return cmd
}

// applyDiscoverFlags copies explicitly set flags over the loaded
// configuration.
func applyDiscoverFlags(cmd *cobra.Command, cfg config.Interface) error {
	flags := cmd.Flags()
	if flags.Changed("force") {
		v, err := flags.GetBool("force")
		if err != nil {
			return err
		}
		cfg.SetDiscoveryForce(v)
	}
	if flags.Changed("engine") {
		v, err := flags.GetString("engine")
		if err != nil {
			return err
		}
		cfg.SetBrowserEngine(v)
	}
	if flags.Changed("headless") {
		v, err := flags.GetBool("headless")
		if err != nil {
			return err
		}
		cfg.SetBrowserHeadless(v)
	}
	if flags.Changed("scroll-count") {
		v, err := flags.GetInt("scroll-count")
		if err != nil {
			return err
		}
		if v < 0 {
			return fmt.Errorf("--scroll-count must not be negative (got %d)", v)
		}
		cfg.SetDiscoveryScrollCount(v)
	}
	return nil
}

// runDiscover authenticates and, when forced or no layout exists yet, runs
// one discovery pass.
func runDiscover(ctx context.Context, cfg config.Interface, logger *zap.Logger) error {
	paths := cfg.Paths()
	if err := ensureConfigDir(paths); err != nil {
		return err
	}

	files := store.New(logger)
	if !discovery.NeedsDiscovery(cfg.Discovery().Force, files, paths.LayoutFile) {
		logger.Info("Layout file already exists, skipping discovery.", zap.String("path", paths.LayoutFile))
		return nil
	}

	llm, err := newLLMClient(ctx, cfg.LLM(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	defer llm.Close()

	clk := newClock()
	sess, err := openSession(ctx, cfg, files, clk, logger)
	if err != nil {
		return err
	}
	defer sess.Close(ctx, logger)

	waiter := discovery.NewReadinessWaiter(cfg.Discovery(), logger)
	orchestrator := discovery.NewOrchestrator(
		waiter,
		discovery.NewExpander(waiter, files, paths.ScreenshotsDir, cfg.Discovery(), clk, logger),
		discovery.NewExtractor(clk, logger),
		discovery.NewInferenceClient(llm, files, logger),
		files,
		paths,
		logger,
	)

	if _, err := orchestrator.Run(ctx, sess.page); err != nil {
		return fmt.Errorf("layout discovery failed: %w", err)
	}
	return nil
}
