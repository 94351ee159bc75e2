// internal/browser/cdpdriver/tracker.go
package cdpdriver

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// networkTracker counts in-flight requests of one tab so the page can
// implement a network-idle load state, which CDP has no direct signal for.
type networkTracker struct {
	logger *zap.Logger

	mu       sync.RWMutex
	inflight map[network.RequestID]struct{}
}

func newNetworkTracker(logger *zap.Logger) *networkTracker {
	return &networkTracker{
		logger:   logger.Named("network"),
		inflight: make(map[network.RequestID]struct{}),
	}
}

// start registers the event listener on the tab and enables the network
// domain. The listener is removed when tabCtx is canceled.
func (t *networkTracker) start(tabCtx context.Context) error {
	chromedp.ListenTarget(tabCtx, t.handle)
	return chromedp.Run(tabCtx, network.Enable())
}

func (t *networkTracker) handle(ev interface{}) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		t.mu.Lock()
		t.inflight[e.RequestID] = struct{}{}
		t.mu.Unlock()
	case *network.EventLoadingFinished:
		t.done(e.RequestID)
	case *network.EventLoadingFailed:
		t.done(e.RequestID)
	}
}

func (t *networkTracker) done(id network.RequestID) {
	t.mu.Lock()
	delete(t.inflight, id)
	t.mu.Unlock()
}

func (t *networkTracker) pending() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.inflight)
}

// waitIdle polls until no request has been in flight for quietPeriod.
func (t *networkTracker) waitIdle(ctx context.Context, quietPeriod time.Duration) error {
	ticker := time.NewTicker(quietPeriod / 5)
	defer ticker.Stop()

	lastActivity := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := t.pending(); n > 0 {
				lastActivity = time.Now()
				t.logger.Debug("Waiting for network idle...", zap.Int("inflight_requests", n))
			} else if time.Since(lastActivity) >= quietPeriod {
				return nil
			}
		}
	}
}
