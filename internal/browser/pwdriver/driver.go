// Package pwdriver implements the browser driver contract on Playwright.
// Playwright calls are not context aware, so page calls run through await,
// which returns as soon as ctx ends or the call's bound elapses.
package pwdriver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/layout-scout/internal/browser"
	"github.com/xkilldash9x/layout-scout/internal/browser/stealth"
)

var defaultTimeoutMs = float64(browser.DefaultWaitTimeout / time.Millisecond)

const selectorWaitGrace = 5 * time.Second

// Browser is a Chromium instance launched by the Playwright driver.
type Browser struct {
	logger  *zap.Logger
	pw      *playwright.Playwright
	browser playwright.Browser
	stealth bool
}

func launchOptions(opts browser.Options) playwright.BrowserTypeLaunchOptions {
	args := []string{"--disable-blink-features=AutomationControlled"}
	for _, arg := range opts.Args {
		if name, _ := browser.SplitFlag(arg); name != "" {
			args = append(args, browser.NormalizeFlag(arg))
		}
	}
	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     args,
	}
	if opts.ExecPath != "" {
		launchOpts.ExecutablePath = playwright.String(opts.ExecPath)
	}
	return launchOpts
}

// Launch starts the Playwright driver and a Chromium browser. The driver and
// browsers must already be installed.
func Launch(ctx context.Context, opts browser.Options, logger *zap.Logger) (*Browser, error) {
	logger = logger.Named("playwright")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run(&playwright.RunOptions{
		Browsers: []string{"chromium"},
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	b, err := pw.Chromium.Launch(launchOptions(opts))
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch chromium: %w", err)
	}

	logger.Info("Browser launched.", zap.Bool("headless", opts.Headless))
	return &Browser{logger: logger, pw: pw, browser: b, stealth: opts.Stealth}, nil
}

func (b *Browser) NewContext(ctx context.Context) (browser.Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bc, err := b.browser.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	if b.stealth {
		if err := bc.AddInitScript(playwright.Script{Content: playwright.String(stealth.Script)}); err != nil {
			_ = bc.Close()
			return nil, fmt.Errorf("failed to inject evasions script: %w", err)
		}
	}
	return &Context{ctx: bc}, nil
}

func (b *Browser) Close(ctx context.Context) error {
	var errs []error
	if err := b.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close chromium: %w", err))
	}
	if err := b.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
	}
	b.logger.Debug("Browser closed.")
	return errors.Join(errs...)
}

// Context is an isolated Playwright browser context.
type Context struct {
	ctx playwright.BrowserContext
}

func (c *Context) AddCookies(ctx context.Context, cookies []browser.Cookie) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(cookies) == 0 {
		return nil
	}
	params := make([]playwright.OptionalCookie, 0, len(cookies))
	for _, ck := range cookies {
		params = append(params, toOptionalCookie(ck))
	}
	if err := c.ctx.AddCookies(params); err != nil {
		return fmt.Errorf("failed to set cookies: %w", err)
	}
	return nil
}

func (c *Context) Cookies(ctx context.Context) ([]browser.Cookie, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := c.ctx.Cookies()
	if err != nil {
		return nil, fmt.Errorf("failed to get cookies: %w", err)
	}
	cookies := make([]browser.Cookie, 0, len(raw))
	for _, ck := range raw {
		cookies = append(cookies, fromCookie(ck))
	}
	return cookies, nil
}

func (c *Context) NewPage(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page, err := c.ctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	page.SetDefaultTimeout(defaultTimeoutMs)
	return &Page{page: page}, nil
}

func (c *Context) Close(ctx context.Context) error {
	if err := c.ctx.Close(); err != nil {
		return fmt.Errorf("failed to close browser context: %w", err)
	}
	return nil
}

// Page is one Playwright page.
type Page struct {
	page playwright.Page
}

// await runs a blocking Playwright call and returns its result, or ctx's
// error once ctx is done or timeout elapses. An abandoned call finishes in
// the background and its result is discarded; closing the page ends it.
func await[T any](ctx context.Context, timeout time.Duration, call func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		val, err := call()
		done <- result{val, err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	_, err := await(ctx, browser.DefaultWaitTimeout, func() (playwright.Response, error) {
		return p.page.Goto(url)
	})
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.URL(), nil
}

func (p *Page) WaitForLoadState(ctx context.Context, state browser.LoadState) error {
	s := playwright.LoadState(state)
	_, err := await(ctx, browser.DefaultWaitTimeout, func() (struct{}, error) {
		return struct{}{}, p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{State: &s})
	})
	if err != nil {
		return fmt.Errorf("failed waiting for load state %s: %w", state, err)
	}
	return nil
}

func (p *Page) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) (browser.WaitResult, error) {
	// Playwright enforces timeout itself; the grace period only covers a
	// driver that stops answering.
	_, err := await(ctx, timeout+selectorWaitGrace, func() (playwright.ElementHandle, error) {
		return p.page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
			Timeout: playwright.Float(float64(timeout / time.Millisecond)),
		})
	})
	switch {
	case err == nil:
		return browser.WaitFound, nil
	case errors.Is(err, playwright.ErrTimeout):
		return browser.WaitTimedOut, nil
	case ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded):
		return browser.WaitTimedOut, nil
	default:
		return browser.WaitTimedOut, fmt.Errorf("failed waiting for %q: %w", selector, err)
	}
}

// evaluate calls a function expression; Playwright awaits returned promises.
// Evaluation has no Playwright timeout, so it is bounded by DefaultWaitTimeout.
func (p *Page) evaluate(ctx context.Context, fn string, out interface{}) error {
	res, err := await(ctx, browser.DefaultWaitTimeout, func() (interface{}, error) {
		return p.page.Evaluate(fn)
	})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	// Results arrive as generic maps and slices; a JSON round trip types them.
	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (p *Page) SettleMedia(ctx context.Context) error {
	if err := p.evaluate(ctx, browser.ScriptSettleMedia, nil); err != nil {
		return fmt.Errorf("media did not settle: %w", err)
	}
	return nil
}

func (p *Page) ScrollByViewport(ctx context.Context) error {
	if err := p.evaluate(ctx, browser.ScriptScrollViewport, nil); err != nil {
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
	format := playwright.ScreenshotType("png")
	data, err := await(ctx, browser.DefaultWaitTimeout, func() ([]byte, error) {
		return p.page.Screenshot(playwright.PageScreenshotOptions{
			FullPage: playwright.Bool(fullPage),
			Type:     &format,
		})
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

func fromCookie(c playwright.Cookie) browser.Cookie {
	out := browser.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Expires:  c.Expires,
		HTTPOnly: c.HttpOnly,
		Secure:   c.Secure,
	}
	if c.SameSite != nil {
		out.SameSite = string(*c.SameSite)
	}
	return out
}

func toOptionalCookie(c browser.Cookie) playwright.OptionalCookie {
	oc := playwright.OptionalCookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   playwright.String(c.Domain),
		Path:     playwright.String(c.Path),
		HttpOnly: playwright.Bool(c.HTTPOnly),
		Secure:   playwright.Bool(c.Secure),
	}
	if !c.IsSession() {
		oc.Expires = playwright.Float(c.Expires)
	}
	if c.SameSite != "" {
		s := playwright.SameSiteAttribute(c.SameSite)
		oc.SameSite = &s
	}
	return oc
}
