package discovery

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/layout-scout/internal/browser"
	"github.com/xkilldash9x/layout-scout/internal/config"
)

// ReadinessWaiter decides when a dynamically rendered page is ready enough to
// capture. Readiness is best effort: only the load-state waits and context
// cancellation can fail it.
type ReadinessWaiter struct {
	selectors    []string
	mediaTimeout time.Duration
	logger       *zap.Logger
}

// NewReadinessWaiter builds a waiter from the discovery configuration.
func NewReadinessWaiter(cfg config.DiscoveryConfig, logger *zap.Logger) *ReadinessWaiter {
	selectors := cfg.ReadySelectors
	if len(selectors) == 0 {
		selectors = config.DefaultReadySelectors
	}
	return &ReadinessWaiter{
		selectors:    selectors,
		mediaTimeout: cfg.MediaTimeout,
		logger:       logger.Named("readiness"),
	}
}

// Wait blocks until the DOM is ready and the network is quiet, then gives
// each expected selector up to the media timeout to appear and lets present
// media settle. Missing selectors and unsettled media are logged only.
func (w *ReadinessWaiter) Wait(ctx context.Context, page browser.Page) error {
	for _, state := range []browser.LoadState{browser.LoadStateDOMContentLoaded, browser.LoadStateNetworkIdle} {
		if err := page.WaitForLoadState(ctx, state); err != nil {
			return err
		}
	}

	for _, selector := range w.selectors {
		result, err := page.WaitForSelector(ctx, selector, w.mediaTimeout)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		switch {
		case err != nil:
			w.logger.Warn("Could not wait for element.", zap.String("selector", selector), zap.Error(err))
		case !result.Found():
			w.logger.Warn("Could not find element after waiting.",
				zap.String("selector", selector), zap.Duration("timeout", w.mediaTimeout))
		}
	}

	if err := page.SettleMedia(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.logger.Warn("Some media elements did not load completely.", zap.Error(err))
	}
	return nil
}
