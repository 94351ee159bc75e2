// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/layout-scout/internal/browser/engine"
	"github.com/xkilldash9x/layout-scout/internal/clock"
	"github.com/xkilldash9x/layout-scout/internal/config"
	"github.com/xkilldash9x/layout-scout/internal/llmclient"
	"github.com/xkilldash9x/layout-scout/internal/observability"
)

// envPrefix scopes environment overrides, e.g. LAYOUTSCOUT_BROWSER_ENGINE.
const envPrefix = "LAYOUTSCOUT"

// Function variables so tests can replace the real browser, model, clock
// and logger flush.
var (
	launchBrowser engine.LaunchFunc = engine.Launch
	newLLMClient                    = llmclient.NewClient
	newClock                        = func() clock.Clock { return clock.Real{} }
	syncLogger                      = observability.Sync
)

type contextKey string

const (
	configKey contextKey = "config"
	loggerKey contextKey = "logger"
)

// NewRootCommand builds the command tree. Each call returns an independent
// tree, so flags never leak between executions.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:          "layout-scout",
		Short:        "Discovers the interactive layout of the X web app and maps it to CSS selectors.",
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(v, cfgFile); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			logger := observability.NewLogger(cfg.Logger(), zapcore.AddSync(cmd.ErrOrStderr()))
			logger.Debug("Starting layout-scout", zap.String("version", Version), zap.String("command", cmd.Name()))

			ctx := context.WithValue(cmd.Context(), configKey, config.Interface(cfg))
			ctx = context.WithValue(ctx, loggerKey, logger)
			cmd.SetContext(ctx)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")

	rootCmd.AddCommand(newDiscoverCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the command tree under ctx. Cobra prints the returned error.
func Execute(ctx context.Context) error {
	return execute(ctx, NewRootCommand())
}

// execute runs root and flushes the logger of the command that ran, whether
// or not it failed. Cobra skips post-run hooks after an error.
func execute(ctx context.Context, root *cobra.Command) error {
	executed, err := root.ExecuteContextC(ctx)
	if executed != nil && executed.Context() != nil {
		if logger, ok := executed.Context().Value(loggerKey).(*zap.Logger); ok {
			syncLogger(logger)
		}
	}
	return err
}

// initializeConfig layers an optional config file and LAYOUTSCOUT_*
// environment variables over the defaults already set on v.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// fromContext returns the configuration and logger PersistentPreRunE stored.
func fromContext(ctx context.Context) (config.Interface, *zap.Logger, error) {
	cfg, ok := ctx.Value(configKey).(config.Interface)
	if !ok {
		return nil, nil, errors.New("configuration not initialized")
	}
	logger, ok := ctx.Value(loggerKey).(*zap.Logger)
	if !ok {
		logger = zap.NewNop()
	}
	return cfg, logger, nil
}
