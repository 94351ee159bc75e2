// Package stealth hides common automation fingerprints from the pages a run
// visits. The evasion bundle is the one maintained by go-rod/stealth.
package stealth

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	rodstealth "github.com/go-rod/stealth"
	"go.uber.org/zap"
)

// Script must run before any page script on every new document.
var Script = rodstealth.JS

// Apply returns the chromedp actions that install Script on the current tab.
// Documents already loaded are not affected.
func Apply(logger *zap.Logger) chromedp.Tasks {
	logger.Debug("Applying stealth evasions.", zap.Int("script_bytes", len(Script)))

	return chromedp.Tasks{
		chromedp.ActionFunc(func(ctx context.Context) error {
			if _, err := page.AddScriptToEvaluateOnNewDocument(Script).Do(ctx); err != nil {
				return fmt.Errorf("failed to inject evasions script: %w", err)
			}
			return nil
		}),
	}
}
