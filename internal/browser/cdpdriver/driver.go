// internal/browser/cdpdriver/driver.go
package cdpdriver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/layout-scout/internal/browser"
	"github.com/xkilldash9x/layout-scout/internal/browser/stealth"
)

const readyStatePollInterval = 100 * time.Millisecond

// Browser is a Chrome process driven over the DevTools protocol by chromedp.
type Browser struct {
	logger        *zap.Logger
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	stealth       bool
}

// allocatorOptions translates launch options into chromedp allocator options.
func allocatorOptions(opts browser.Options) []chromedp.ExecAllocatorOption {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	for _, arg := range opts.Args {
		name, value := browser.SplitFlag(arg)
		if name == "" {
			continue
		}
		if value == "" {
			allocOpts = append(allocOpts, chromedp.Flag(name, true))
		} else {
			allocOpts = append(allocOpts, chromedp.Flag(name, value))
		}
	}
	return allocOpts
}

// Launch starts Chrome and opens its first tab. The process is detached from
// ctx's cancellation and lives until Close.
func Launch(ctx context.Context, opts browser.Options, logger *zap.Logger) (*Browser, error) {
	logger = logger.Named("chromedp")

	allocCtx, allocCancel := chromedp.NewExecAllocator(Detach(ctx), allocatorOptions(opts)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Sugar().Debugf),
		chromedp.WithErrorf(logger.Sugar().Debugf),
	)

	// The first Run must use the browser context itself; running it under a
	// shorter-lived child would tie the process to that child.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	logger.Info("Browser launched.", zap.Bool("headless", opts.Headless))
	return &Browser{
		logger:        logger,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		stealth:       opts.Stealth,
	}, nil
}

// NewContext returns the browser's default context. chromedp tabs share one
// cookie jar, which is all a single discovery run needs.
func (b *Browser) NewContext(ctx context.Context) (browser.Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Context{browser: b}, nil
}

// Close shuts Chrome down gracefully and releases the allocator.
func (b *Browser) Close(ctx context.Context) error {
	err := chromedp.Cancel(b.browserCtx)
	b.browserCancel()
	b.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to close chrome: %w", err)
	}
	b.logger.Debug("Browser closed.")
	return nil
}

// Context owns cookie import/export and tab creation.
type Context struct {
	browser *Browser
}

func (c *Context) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := CombineContext(c.browser.browserCtx, ctx)
	defer cancel()
	return opError(opCtx, chromedp.Run(opCtx, actions...))
}

// AddCookies imports cookies into the browser.
func (c *Context) AddCookies(ctx context.Context, cookies []browser.Cookie) error {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, ck := range cookies {
		params = append(params, toCookieParam(ck))
	}
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return storage.SetCookies(params).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("failed to set cookies: %w", err)
	}
	return nil
}

// Cookies exports every cookie the browser holds.
func (c *Context) Cookies(ctx context.Context) ([]browser.Cookie, error) {
	var raw []*network.Cookie
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to get cookies: %w", err)
	}
	cookies := make([]browser.Cookie, 0, len(raw))
	for _, ck := range raw {
		cookies = append(cookies, fromCookie(ck))
	}
	return cookies, nil
}

// NewPage opens a tab and starts tracking its network activity. Stealth
// evasions are installed before the first navigation.
func (c *Context) NewPage(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tabCtx, tabCancel := chromedp.NewContext(c.browser.browserCtx)
	tracker := newNetworkTracker(c.browser.logger)
	if err := tracker.start(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	if c.browser.stealth {
		if err := chromedp.Run(tabCtx, stealth.Apply(c.browser.logger)); err != nil {
			tabCancel()
			return nil, err
		}
	}
	return &Page{
		logger:    c.browser.logger.Named("page"),
		tabCtx:    tabCtx,
		tabCancel: tabCancel,
		tracker:   tracker,
	}, nil
}

// Close is a no-op; the default context ends with the browser.
func (c *Context) Close(ctx context.Context) error { return nil }

// Page is one Chrome tab.
type Page struct {
	logger    *zap.Logger
	tabCtx    context.Context
	tabCancel context.CancelFunc
	tracker   *networkTracker
}

func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := CombineContext(p.tabCtx, ctx)
	defer cancel()
	return opError(opCtx, chromedp.Run(opCtx, actions...))
}

// evaluate calls a function expression and awaits its (possibly promised) result.
func (p *Page) evaluate(ctx context.Context, fn string, res interface{}) error {
	return p.run(ctx, chromedp.Evaluate("("+fn+")()", res, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
		return ep.WithAwaitPromise(true)
	}))
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	var u string
	if err := p.run(ctx, chromedp.Location(&u)); err != nil {
		return "", fmt.Errorf("failed to read page url: %w", err)
	}
	return u, nil
}

func (p *Page) WaitForLoadState(ctx context.Context, state browser.LoadState) error {
	ctx, cancel := context.WithTimeout(ctx, browser.DefaultWaitTimeout)
	defer cancel()

	var err error
	switch state {
	case browser.LoadStateDOMContentLoaded:
		err = p.waitReadyState(ctx, "interactive", "complete")
	case browser.LoadStateLoad:
		err = p.waitReadyState(ctx, "complete")
	case browser.LoadStateNetworkIdle:
		err = p.tracker.waitIdle(ctx, browser.NetworkIdleQuietPeriod)
	default:
		return fmt.Errorf("unknown load state %q", state)
	}
	if err != nil {
		return fmt.Errorf("failed waiting for load state %s: %w", state, err)
	}
	return nil
}

// waitReadyState polls document.readyState until it is one of accepted.
func (p *Page) waitReadyState(ctx context.Context, accepted ...string) error {
	ticker := time.NewTicker(readyStatePollInterval)
	defer ticker.Stop()
	for {
		var current string
		if err := p.run(ctx, chromedp.Evaluate("document.readyState", &current)); err != nil {
			return err
		}
		for _, s := range accepted {
			if current == s {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Page) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) (browser.WaitResult, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := p.run(waitCtx, chromedp.WaitVisible(selector, chromedp.ByQuery))
	return waitOutcome(ctx, waitCtx, selector, err)
}

// waitOutcome classifies a selector wait. Only the elapse of waitCtx's own
// deadline, with the caller's ctx still live, counts as a clean timeout.
func waitOutcome(ctx, waitCtx context.Context, selector string, err error) (browser.WaitResult, error) {
	switch {
	case err == nil:
		return browser.WaitFound, nil
	case ctx.Err() == nil && errors.Is(waitCtx.Err(), context.DeadlineExceeded):
		return browser.WaitTimedOut, nil
	default:
		return browser.WaitTimedOut, fmt.Errorf("failed waiting for %q: %w", selector, err)
	}
}

func (p *Page) SettleMedia(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, browser.DefaultWaitTimeout)
	defer cancel()
	var settled bool
	if err := p.evaluate(ctx, browser.ScriptSettleMedia, &settled); err != nil {
		return fmt.Errorf("media did not settle: %w", err)
	}
	return nil
}

func (p *Page) ScrollByViewport(ctx context.Context) error {
	var ok bool
	if err := p.evaluate(ctx, browser.ScriptScrollViewport, &ok); err != nil {
		return fmt.Errorf("failed to scroll: %w", err)
	}
	return nil
}

func (p *Page) QueryElements(ctx context.Context) ([]browser.ElementRecord, error) {
	var records []browser.ElementRecord
	if err := p.evaluate(ctx, browser.ScriptQueryElements, &records); err != nil {
		return nil, fmt.Errorf("failed to query elements: %w", err)
	}
	return records, nil
}

func (p *Page) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	var buf []byte
	action := chromedp.CaptureScreenshot(&buf)
	if fullPage {
		// Quality 100 keeps the capture in PNG format.
		action = chromedp.FullScreenshot(&buf, 100)
	}
	if err := p.run(ctx, action); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

// Close closes the tab, which also stops the network listener.
func (p *Page) Close(ctx context.Context) error {
	err := chromedp.Cancel(p.tabCtx)
	p.tabCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to close tab: %w", err)
	}
	return nil
}

func fromCookie(c *network.Cookie) browser.Cookie {
	expires := c.Expires
	if c.Session {
		expires = -1
	}
	return browser.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Expires:  expires,
		HTTPOnly: c.HTTPOnly,
		Secure:   c.Secure,
		SameSite: string(c.SameSite),
	}
}

func toCookieParam(c browser.Cookie) *network.CookieParam {
	p := &network.CookieParam{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		HTTPOnly: c.HTTPOnly,
		Secure:   c.Secure,
	}
	if c.SameSite != "" {
		p.SameSite = network.CookieSameSite(c.SameSite)
	}
	if !c.IsSession() {
		sec, frac := math.Modf(c.Expires)
		t := cdp.TimeSinceEpoch(time.Unix(int64(sec), int64(frac*1e9)))
		p.Expires = &t
	}
	return p
}
