// Package roddriver implements the browser driver contract on go-rod, with
// optional stealth pages that mask common automation fingerprints.
package roddriver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"

	"github.com/xkilldash9x/layout-scout/internal/browser"
)

// Browser is a Chrome process driven by rod.
type Browser struct {
	logger   *zap.Logger
	browser  *rod.Browser
	launcher *launcher.Launcher
	stealth  bool
}

func newLauncher(opts browser.Options) *launcher.Launcher {
	l := launcher.New().
		Headless(opts.Headless).
		Set("disable-blink-features", "AutomationControlled")
	if opts.ExecPath != "" {
		l = l.Bin(opts.ExecPath)
	}
	for _, arg := range opts.Args {
		name, value := browser.SplitFlag(arg)
		if name == "" {
			continue
		}
		if value == "" {
			l = l.Set(flags.Flag(name))
		} else {
			l = l.Set(flags.Flag(name), value)
		}
	}
	return l
}

// Launch starts a local Chrome and connects to it.
func Launch(ctx context.Context, opts browser.Options, logger *zap.Logger) (*Browser, error) {
	logger = logger.Named("rod")

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// The launcher is not bound to ctx; the process lives until Close.
	l := newLauncher(opts)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch chrome: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to chrome: %w", err)
	}

	logger.Info("Browser launched.", zap.Bool("headless", opts.Headless), zap.Bool("stealth", opts.Stealth))
	return &Browser{logger: logger, browser: b, launcher: l, stealth: opts.Stealth}, nil
}

// NewContext returns the browser's default context.
func (b *Browser) NewContext(ctx context.Context) (browser.Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Context{browser: b}, nil
}

func (b *Browser) Close(ctx context.Context) error {
	err := b.browser.Close()
	b.launcher.Cleanup()
	if err != nil {
		return fmt.Errorf("failed to close chrome: %w", err)
	}
	b.logger.Debug("Browser closed.")
	return nil
}

// Context wraps the default browser context.
type Context struct {
	browser *Browser
}

func (c *Context) AddCookies(ctx context.Context, cookies []browser.Cookie) error {
	// An empty slice would clear the jar.
	if len(cookies) == 0 {
		return nil
	}
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, ck := range cookies {
		params = append(params, toCookieParam(ck))
	}
	if err := c.browser.browser.Context(ctx).SetCookies(params); err != nil {
		return fmt.Errorf("failed to set cookies: %w", err)
	}
	return nil
}

func (c *Context) Cookies(ctx context.Context) ([]browser.Cookie, error) {
	raw, err := c.browser.browser.Context(ctx).GetCookies()
	if err != nil {
		return nil, fmt.Errorf("failed to get cookies: %w", err)
	}
	cookies := make([]browser.Cookie, 0, len(raw))
	for _, ck := range raw {
		cookies = append(cookies, fromCookie(ck))
	}
	return cookies, nil
}

// NewPage opens a tab, through the stealth helper when enabled.
func (c *Context) NewPage(ctx context.Context) (browser.Page, error) {
	b := c.browser.browser.Context(ctx)
	var (
		page *rod.Page
		err  error
	)
	if c.browser.stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	// Detach the page from the creation context; calls bind their own.
	return &Page{page: page.Context(context.Background())}, nil
}

func (c *Context) Close(ctx context.Context) error { return nil }

// Page is one rod tab.
type Page struct {
	page *rod.Page
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx)
	if err := pg.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := pg.Timeout(browser.DefaultWaitTimeout).WaitLoad(); err != nil {
		return fmt.Errorf("failed waiting for %s to load: %w", url, err)
	}
	return nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("failed to read page url: %w", err)
	}
	return info.URL, nil
}

// WaitForLoadState maps both document milestones onto the load event, which
// implies DOMContentLoaded.
func (p *Page) WaitForLoadState(ctx context.Context, state browser.LoadState) error {
	pg := p.page.Context(ctx).Timeout(browser.DefaultWaitTimeout)
	var err error
	switch state {
	case browser.LoadStateDOMContentLoaded, browser.LoadStateLoad:
		err = pg.WaitLoad()
	case browser.LoadStateNetworkIdle:
		waitCtx, cancel := context.WithTimeout(ctx, browser.DefaultWaitTimeout)
		defer cancel()
		p.page.Context(waitCtx).WaitRequestIdle(browser.NetworkIdleQuietPeriod, nil, nil, nil)()
		err = waitCtx.Err()
	default:
		return fmt.Errorf("unknown load state %q", state)
	}
	if err != nil {
		return fmt.Errorf("failed waiting for load state %s: %w", state, err)
	}
	return nil
}

func (p *Page) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) (browser.WaitResult, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	el, err := p.page.Context(waitCtx).Element(selector)
	if err == nil {
		err = el.WaitVisible()
	}
	switch {
	case err == nil:
		return browser.WaitFound, nil
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return browser.WaitTimedOut, nil
	default:
		return browser.WaitTimedOut, fmt.Errorf("failed waiting for %q: %w", selector, err)
	}
}

// eval runs a function expression, awaiting a returned promise, and decodes
// the JSON value into out when out is non-nil.
func (p *Page) eval(ctx context.Context, fn string, out interface{}) error {
	res, err := p.page.Context(ctx).Eval(fn)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal([]byte(res.Value.JSON("", "")), out)
}

func (p *Page) SettleMedia(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, browser.DefaultWaitTimeout)
	defer cancel()
	if err := p.eval(ctx, browser.ScriptSettleMedia, nil); err != nil {
		return fmt.Errorf("media did not settle: %w", err)
	}
	return nil
}

func (p *Page) ScrollByViewport(ctx context.Context) error {
	if err := p.eval(ctx, browser.ScriptScrollViewport, nil); err != nil {
		return fmt.Errorf("failed to scroll: %w", err)
	}
	return nil
}

func (p *Page) QueryElements(ctx context.Context) ([]browser.ElementRecord, error) {
	var records []browser.ElementRecord
	if err := p.eval(ctx, browser.ScriptQueryElements, &records); err != nil {
		return nil, fmt.Errorf("failed to query elements: %w", err)
	}
	return records, nil
}

func (p *Page) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	data, err := p.page.Context(ctx).Screenshot(fullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return data, nil
}

func (p *Page) Close(ctx context.Context) error {
	if err := p.page.Close(); err != nil {
		return fmt.Errorf("failed to close tab: %w", err)
	}
	return nil
}

func fromCookie(c *proto.NetworkCookie) browser.Cookie {
	expires := float64(c.Expires)
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

func toCookieParam(c browser.Cookie) *proto.NetworkCookieParam {
	p := &proto.NetworkCookieParam{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		HTTPOnly: c.HTTPOnly,
		Secure:   c.Secure,
		SameSite: proto.NetworkCookieSameSite(c.SameSite),
	}
	if !c.IsSession() {
		p.Expires = proto.TimeSinceEpoch(c.Expires)
	}
	return p
}
