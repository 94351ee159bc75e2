package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/layout-scout/internal/browser"
	"github.com/xkilldash9x/layout-scout/internal/clock"
	"github.com/xkilldash9x/layout-scout/internal/config"
	"github.com/xkilldash9x/layout-scout/internal/session"
	"github.com/xkilldash9x/layout-scout/internal/store"
)

// closeTimeout bounds browser teardown, which must still run after the
// command context is canceled.
const closeTimeout = 10 * time.Second

// browserSession owns one launched browser and its authenticated page.
type browserSession struct {
	browser browser.Browser
	context browser.Context
	page    browser.Page
}

// openSession launches the configured engine, restores saved cookies, makes
// sure the session is logged in and leaves the page on the profile.
// On error everything opened so far is already closed.
func openSession(ctx context.Context, cfg config.Interface, files *store.FileStore, clk clock.Clock, logger *zap.Logger) (s *browserSession, err error) {
	b, err := launchBrowser(ctx, cfg.Browser(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	s = &browserSession{browser: b}
	defer func() {
		if err != nil {
			s.Close(ctx, logger)
			s = nil
		}
	}()

	if s.context, err = b.NewContext(ctx); err != nil {
		return s, fmt.Errorf("failed to create browser context: %w", err)
	}

	auth := session.NewAuthenticator(
		session.NewStore(cfg.Paths().CookiesFile, files, logger),
		cfg.Target(), cfg.Discovery(), clk, logger)
	auth.Restore(ctx, s.context)

	if s.page, err = s.context.NewPage(ctx); err != nil {
		return s, fmt.Errorf("failed to open page: %w", err)
	}
	if _, err = auth.EnsureLoggedIn(ctx, s.context, s.page); err != nil {
		return s, err
	}
	if err = auth.NavigateToProfile(ctx, s.page); err != nil {
		return s, err
	}
	return s, nil
}

// Close tears down the page, context and browser in that order. Errors are
// logged.
func (s *browserSession) Close(ctx context.Context, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()

	var errs []error
	if s.page != nil {
		errs = append(errs, s.page.Close(ctx))
	}
	if s.context != nil {
		errs = append(errs, s.context.Close(ctx))
	}
	errs = append(errs, s.browser.Close(ctx))
	if err := errors.Join(errs...); err != nil {
		logger.Warn("Error while closing the browser.", zap.Error(err))
	}
}

// ensureConfigDir creates the directory holding every persisted artifact.
func ensureConfigDir(paths config.PathsConfig) error {
	if err := os.MkdirAll(paths.ConfigDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", paths.ConfigDir, err)
	}
	return nil
}
