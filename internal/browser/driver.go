// internal/browser/driver.go
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrUnsupportedEngine is returned when a configured engine name has no backend.
var ErrUnsupportedEngine = errors.New("browser: unsupported engine")

// DefaultWaitTimeout bounds waits for which the caller supplies no explicit
// timeout (load states, media settling). It matches Playwright's default.
const DefaultWaitTimeout = 30 * time.Second

// NetworkIdleQuietPeriod is how long the page must have no requests in
// flight to count as network-idle.
const NetworkIdleQuietPeriod = 500 * time.Millisecond

// LoadState names a page lifecycle milestone.
type LoadState string

const (
	LoadStateDOMContentLoaded LoadState = "domcontentloaded"
	LoadStateLoad             LoadState = "load"
	LoadStateNetworkIdle      LoadState = "networkidle"
)

// WaitResult distinguishes a selector that appeared from a bounded wait that
// elapsed without it. Absence is an expected outcome, not an error.
type WaitResult int

const (
	WaitFound WaitResult = iota
	WaitTimedOut
)

// Found reports whether the awaited element appeared.
func (r WaitResult) Found() bool { return r == WaitFound }

func (r WaitResult) String() string {
	if r == WaitFound {
		return "found"
	}
	return "timed_out"
}

// Options configure how a backend launches its browser process.
type Options struct {
	Headless bool
	ExecPath string
	Args     []string
	Stealth  bool
}

// Browser is a launched browser process.
type Browser interface {
	// NewContext opens a browsing context that owns cookies and pages.
	NewContext(ctx context.Context) (Context, error)
	// Close terminates the browser process and everything it owns.
	Close(ctx context.Context) error
}

// Context is a browsing context supporting credential import and export.
type Context interface {
	AddCookies(ctx context.Context, cookies []Cookie) error
	// Cookies returns every cookie the context holds, unfiltered.
	Cookies(ctx context.Context) ([]Cookie, error)
	NewPage(ctx context.Context) (Page, error)
	Close(ctx context.Context) error
}

// Page is a single tab. Every method blocks until the driver answers or the
// context ends.
type Page interface {
	Navigate(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)
	// WaitForLoadState blocks until the page reaches state, bounded by the
	// driver's default timeout.
	WaitForLoadState(ctx context.Context, state LoadState) error
	// WaitForSelector waits up to timeout for a visible element matching
	// selector. A timeout is reported as WaitTimedOut with a nil error.
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) (WaitResult, error)
	// SettleMedia resolves once every present image has loaded or failed
	// and every present video has data or failed.
	SettleMedia(ctx context.Context) error
	// ScrollByViewport scrolls the window down by one viewport height.
	ScrollByViewport(ctx context.Context) error
	// QueryElements returns the meaningful elements of the document in
	// document order.
	QueryElements(ctx context.Context) ([]ElementRecord, error)
	// Screenshot captures a PNG of the viewport or the full page.
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
	Close(ctx context.Context) error
}

// ElementRecord is the raw per-element answer of QueryElements.
type ElementRecord struct {
	Tag       string   `json:"tag"`
	Classes   []string `json:"classes"`
	Role      *string  `json:"role"`
	AriaLabel *string  `json:"ariaLabel"`
	Text      string   `json:"text"`
	HasImage  bool     `json:"hasImage"`
	Href      *string  `json:"href"`
}
