package session

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/layout-scout/internal/browser"
	"github.com/xkilldash9x/layout-scout/internal/clock"
	"github.com/xkilldash9x/layout-scout/internal/config"
)

// Authenticator establishes a logged-in session on the target site, either
// from saved cookies or by waiting for the user to log in by hand.
type Authenticator struct {
	store  *Store
	target config.TargetConfig
	timing config.DiscoveryConfig
	clock  clock.Clock
	logger *zap.Logger
}

// NewAuthenticator wires an authenticator. Only the page-load and
// manual-login timeouts of timing are used.
func NewAuthenticator(store *Store, target config.TargetConfig, timing config.DiscoveryConfig, clk clock.Clock, logger *zap.Logger) *Authenticator {
	return &Authenticator{
		store:  store,
		target: target,
		timing: timing,
		clock:  clk,
		logger: logger.Named("auth"),
	}
}

// Restore imports saved cookies into bctx. It reports whether any were
// applied; every failure is logged and tolerated.
func (a *Authenticator) Restore(ctx context.Context, bctx browser.Context) bool {
	cookies, ok := a.store.Load(ctx)
	if !ok {
		a.logger.Info("You must log in manually to generate cookies.")
		return false
	}
	if err := bctx.AddCookies(ctx, cookies); err != nil {
		a.logger.Warn("Could not apply saved cookies.", zap.Error(err))
		a.logger.Info("You must log in manually to generate cookies.")
		return false
	}
	return true
}

// EnsureLoggedIn opens the home page and, when the site redirects to its
// login flow, gives the user the manual-login window and then saves the
// resulting cookies. It reports whether a manual login took place. Failing to
// save the new cookies is fatal.
func (a *Authenticator) EnsureLoggedIn(ctx context.Context, bctx browser.Context, page browser.Page) (bool, error) {
	if err := page.Navigate(ctx, a.target.HomeURL); err != nil {
		return false, err
	}
	if err := a.clock.Sleep(ctx, a.timing.PageLoadTimeout); err != nil {
		return false, err
	}

	current, err := page.URL(ctx)
	if err != nil {
		return false, err
	}
	if !strings.Contains(strings.ToLower(current), "login") {
		a.logger.Debug("Session is authenticated.", zap.String("url", current))
		return false, nil
	}

	a.logger.Info("Not logged in. Please log in manually in the opened browser window.",
		zap.Duration("timeout", a.timing.ManualLoginTimeout))
	if err := a.clock.Sleep(ctx, a.timing.ManualLoginTimeout); err != nil {
		return false, err
	}

	cookies, err := bctx.Cookies(ctx)
	if err != nil {
		return true, err
	}
	if err := a.store.Save(ctx, cookies); err != nil {
		return true, fmt.Errorf("failed to save session cookies: %w", err)
	}
	return true, nil
}

// NavigateToProfile opens the configured profile page and waits for it to
// load.
func (a *Authenticator) NavigateToProfile(ctx context.Context, page browser.Page) error {
	if err := page.Navigate(ctx, a.target.ProfileURL); err != nil {
		return err
	}
	if err := a.clock.Sleep(ctx, a.timing.PageLoadTimeout); err != nil {
		return err
	}
	current, err := page.URL(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("Navigated to profile.", zap.String("url", current))
	return nil
}
