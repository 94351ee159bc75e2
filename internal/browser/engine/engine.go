// Package engine selects a browser driver backend by name.
package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/layout-scout/internal/browser"
	"github.com/xkilldash9x/layout-scout/internal/browser/cdpdriver"
	"github.com/xkilldash9x/layout-scout/internal/browser/pwdriver"
	"github.com/xkilldash9x/layout-scout/internal/browser/roddriver"
	"github.com/xkilldash9x/layout-scout/internal/config"
)

// LaunchFunc starts a browser. Commands take one so tests can substitute it.
type LaunchFunc func(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (browser.Browser, error)

// Options converts the browser configuration into driver launch options.
func Options(cfg config.BrowserConfig) browser.Options {
	return browser.Options{
		Headless: cfg.Headless,
		ExecPath: cfg.ExecPath,
		Args:     cfg.Args,
		Stealth:  cfg.Stealth,
	}
}

// Launch starts the backend named by cfg.Engine.
func Launch(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (browser.Browser, error) {
	opts := Options(cfg)
	logger.Debug("Launching browser.", zap.String("engine", cfg.Engine))

	switch cfg.Engine {
	case config.EngineChromedp, "":
		b, err := cdpdriver.Launch(ctx, opts, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.EngineRod:
		b, err := roddriver.Launch(ctx, opts, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.EnginePlaywright:
		b, err := pwdriver.Launch(ctx, opts, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%w: %q", browser.ErrUnsupportedEngine, cfg.Engine)
	}
}
