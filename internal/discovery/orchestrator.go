package discovery

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/layout-scout/internal/browser"
	"github.com/xkilldash9x/layout-scout/internal/config"
	"github.com/xkilldash9x/layout-scout/internal/store"
)

// Capturer produces a screenshot of a fully expanded page.
type Capturer interface {
	Capture(ctx context.Context, page browser.Page) (string, error)
}

// StructureExtractor records the structure of a page.
type StructureExtractor interface {
	Extract(ctx context.Context, page browser.Page) (*LayoutSnapshot, error)
}

// Analyzer infers a selector mapping from a persisted layout file.
type Analyzer interface {
	Analyze(ctx context.Context, layoutPath string) (*InferenceResult, error)
}

// Orchestrator runs one discovery pass over an authenticated page.
type Orchestrator struct {
	waiter    PageWaiter
	capturer  Capturer
	extractor StructureExtractor
	analyzer  Analyzer
	files     *store.FileStore
	paths     config.PathsConfig
	logger    *zap.Logger
}

// NewOrchestrator wires the pipeline stages together.
func NewOrchestrator(waiter PageWaiter, capturer Capturer, extractor StructureExtractor, analyzer Analyzer,
	files *store.FileStore, paths config.PathsConfig, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		waiter:    waiter,
		capturer:  capturer,
		extractor: extractor,
		analyzer:  analyzer,
		files:     files,
		paths:     paths,
		logger:    logger.Named("discovery"),
	}
}

// Run waits for the page, captures it, persists the layout snapshot, then
// persists the inferred selector mapping. The layout file is always written
// before inference starts. Stage errors are returned unchanged.
func (o *Orchestrator) Run(ctx context.Context, page browser.Page) (*LayoutSnapshot, error) {
	log := o.logger.With(zap.String("run_id", uuid.NewString()))
	log.Info("Starting layout discovery...")

	if err := o.waiter.Wait(ctx, page); err != nil {
		return nil, err
	}

	screenshot, err := o.capturer.Capture(ctx, page)
	if err != nil {
		return nil, err
	}

	snapshot, err := o.extractor.Extract(ctx, page)
	if err != nil {
		return nil, err
	}
	snapshot.ScreenshotPath = screenshot

	if err := o.files.WriteJSON(o.paths.LayoutFile, snapshot); err != nil {
		return nil, err
	}
	log.Info("Layout saved.", zap.String("path", o.paths.LayoutFile), zap.Int("elements", len(snapshot.Elements)))

	result, err := o.analyzer.Analyze(ctx, o.paths.LayoutFile)
	if err != nil {
		return nil, err
	}
	if err := o.files.WriteJSON(o.paths.SelectorsFile, result); err != nil {
		return nil, err
	}
	log.Info("Layout discovery completed!", zap.String("selectors", o.paths.SelectorsFile))
	return snapshot, nil
}

// NeedsDiscovery reports whether a run is required: when forced, or when no
// layout file exists yet.
func NeedsDiscovery(force bool, files *store.FileStore, layoutPath string) bool {
	return force || !files.Exists(layoutPath)
}
