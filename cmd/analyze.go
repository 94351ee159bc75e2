package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/layout-scout/internal/config"
	"github.com/xkilldash9x/layout-scout/internal/discovery"
	"github.com/xkilldash9x/layout-scout/internal/store"
)

// newAnalyzeCmd creates the `analyze` command, which re-runs inference on a
// layout file that is already on disk. No browser is started.
func newAnalyzeCmd() *cobra.Command {
	var layoutPath string
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Infer the selector mapping from an existing layout file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			return runAnalyze(cmd.Context(), cfg, layoutPath, logger)
		},
	}
	cmd.Flags().StringVar(&layoutPath, "layout", "", "layout file to analyze (default is paths.layout_file)")
	return cmd
}

func runAnalyze(ctx context.Context, cfg config.Interface, layoutPath string, logger *zap.Logger) error {
	paths := cfg.Paths()
	if layoutPath == "" {
		layoutPath = paths.LayoutFile
	}

	llm, err := newLLMClient(ctx, cfg.LLM(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	defer llm.Close()

	files := store.New(logger)
	result, err := discovery.NewInferenceClient(llm, files, logger).Analyze(ctx, layoutPath)
	if err != nil {
		return err
	}
	if err := files.WriteJSON(paths.SelectorsFile, result); err != nil {
		return err
	}
	logger.Info("Selector mapping saved.", zap.String("path", paths.SelectorsFile), zap.Bool("raw", result.IsRaw))
	return nil
}
