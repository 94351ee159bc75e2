package discovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gobwas/glob"
	"go.uber.org/zap"

	"github.com/xkilldash9x/layout-scout/internal/browser"
	"github.com/xkilldash9x/layout-scout/internal/clock"
	"github.com/xkilldash9x/layout-scout/internal/config"
	"github.com/xkilldash9x/layout-scout/internal/store"
)

const (
	// ScreenshotPattern matches every screenshot a discovery run produces.
	ScreenshotPattern = "layout_discovery_*.png"

	screenshotPrefix     = "layout_discovery_"
	screenshotTimeLayout = "20060102_150405"
)

// PageWaiter waits for a page to become ready.
type PageWaiter interface {
	Wait(ctx context.Context, page browser.Page) error
}

// Expander scrolls a page to trigger lazy loading and then records a
// full-page screenshot. Only the newest screenshot is kept.
type Expander struct {
	waiter      PageWaiter
	files       *store.FileStore
	dir         string
	scrollCount int
	scrollWait  time.Duration
	settleDelay time.Duration
	clock       clock.Clock
	logger      *zap.Logger
	stale       glob.Glob
	remove      func(name string) error
}

// NewExpander creates an Expander that writes screenshots into dir.
func NewExpander(waiter PageWaiter, files *store.FileStore, dir string, cfg config.DiscoveryConfig, clk clock.Clock, logger *zap.Logger) *Expander {
	return &Expander{
		waiter:      waiter,
		files:       files,
		dir:         dir,
		scrollCount: cfg.ScrollCount,
		scrollWait:  cfg.ScrollWait,
		settleDelay: cfg.SettleDelay,
		clock:       clk,
		logger:      logger.Named("expander"),
		stale:       glob.MustCompile(ScreenshotPattern),
		remove:      os.Remove,
	}
}

// Capture removes earlier screenshots, scrolls the page scrollCount times,
// waits for the page to settle and saves a full-page screenshot. It returns
// the screenshot path.
func (e *Expander) Capture(ctx context.Context, page browser.Page) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory %s: %w", e.dir, err)
	}
	e.removeStale()

	for i := 0; i < e.scrollCount; i++ {
		if err := page.ScrollByViewport(ctx); err != nil {
			return "", fmt.Errorf("scroll %d failed: %w", i+1, err)
		}
		if err := e.clock.Sleep(ctx, e.scrollWait); err != nil {
			return "", err
		}
		if err := e.waiter.Wait(ctx, page); err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			e.logger.Warn("Some media elements did not load after scrolling.",
				zap.Int("scroll", i+1), zap.Error(err))
		}
	}

	if err := e.clock.Sleep(ctx, e.settleDelay); err != nil {
		return "", err
	}

	data, err := page.Screenshot(ctx, true)
	if err != nil {
		return "", fmt.Errorf("failed to capture screenshot: %w", err)
	}

	path := filepath.Join(e.dir, screenshotPrefix+e.clock.Now().Format(screenshotTimeLayout)+".png")
	if err := e.files.WriteFile(path, data); err != nil {
		return "", err
	}
	e.logger.Info("Screenshot saved.", zap.String("path", path))
	return path, nil
}

// removeStale deletes earlier discovery screenshots. Failures are logged and
// never abort the run.
func (e *Expander) removeStale() {
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		e.logger.Warn("Could not list screenshot directory.", zap.String("dir", e.dir), zap.Error(err))
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !e.stale.Match(entry.Name()) {
			continue
		}
		path := filepath.Join(e.dir, entry.Name())
		if err := e.remove(path); err != nil {
			e.logger.Warn("Could not delete old screenshot.", zap.String("path", path), zap.Error(err))
			continue
		}
		e.logger.Info("Deleted old screenshot.", zap.String("path", path))
	}
}
