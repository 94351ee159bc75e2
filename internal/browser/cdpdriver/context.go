// internal/browser/cdpdriver/context.go
package cdpdriver

import (
	"context"
	"errors"
	"time"
)

// CombineContext returns a context derived from primary that is also
// canceled when secondary is done. Values (the chromedp target) come from
// primary; the deadline of an operation usually comes from secondary.
// context.Cause of the combined context reports why secondary ended, so an
// elapsed deadline stays distinguishable from a cancellation.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancelCause(primary)

	go func() {
		select {
		case <-secondary.Done():
			cancel(context.Cause(secondary))
		case <-combined.Done():
		}
	}()

	return combined, func() { cancel(context.Canceled) }
}

// opError replaces the bare cancellation chromedp reports with the reason
// opCtx ended.
func opError(opCtx context.Context, err error) error {
	if err == nil || !errors.Is(err, context.Canceled) {
		return err
	}
	if cause := context.Cause(opCtx); cause != nil {
		return cause
	}
	return err
}

// valueOnlyContext keeps the parent's values but drops its deadline and
// cancellation.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                   { return nil }
func (valueOnlyContext) Err() error                              { return nil }

// Detach returns a context carrying ctx's values that is never canceled by
// ctx. The browser process must outlive the context used to launch it.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
