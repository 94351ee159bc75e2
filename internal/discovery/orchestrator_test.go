package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/layout-scout/internal/browser"
	"github.com/xkilldash9x/layout-scout/internal/clock"
	"github.com/xkilldash9x/layout-scout/internal/config"
	"github.com/xkilldash9x/layout-scout/internal/mocks"
	"github.com/xkilldash9x/layout-scout/internal/store"
)

type stubCapturer struct {
	path string
	err  error
}

func (s stubCapturer) Capture(ctx context.Context, page browser.Page) (string, error) {
	return s.path, s.err
}

// recordingAnalyzer checks that the layout file exists when inference starts.
type recordingAnalyzer struct {
	result     *InferenceResult
	err        error
	sawLayout  bool
	layoutPath string
}

func (r *recordingAnalyzer) Analyze(ctx context.Context, layoutPath string) (*InferenceResult, error) {
	r.layoutPath = layoutPath
	_, statErr := os.Stat(layoutPath)
	r.sawLayout = statErr == nil
	return r.result, r.err
}

func testPaths(t *testing.T) config.PathsConfig {
	dir := t.TempDir()
	return config.PathsConfig{
		ConfigDir:      dir,
		LayoutFile:     filepath.Join(dir, "layout.json"),
		SelectorsFile:  filepath.Join(dir, "layout_selectors.json"),
		ScreenshotsDir: filepath.Join(dir, "screenshots"),
	}
}

func pageWithElements() *mocks.MockPage {
	page := new(mocks.MockPage)
	page.On("QueryElements", mock.Anything).Return([]browser.ElementRecord{
		{Tag: "BUTTON", Classes: []string{"r-1"}, AriaLabel: strPtr("Post"), Text: "Post"},
	}, nil)
	page.On("URL", mock.Anything).Return("https://x.com/someone", nil)
	return page
}

func TestOrchestratorRun(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)
	paths := testPaths(t)
	shot := filepath.Join(paths.ScreenshotsDir, "layout_discovery_20250301_123045.png")
	analyzer := &recordingAnalyzer{result: ParseInferenceResponse(sampleMapping)}

	o := NewOrchestrator(&stubWaiter{}, stubCapturer{path: shot}, NewExtractor(clock.NewFake(testStart), logger),
		analyzer, store.New(logger), paths, logger)

	snap, err := o.Run(context.Background(), pageWithElements())
	require.NoError(t, err)
	assert.Equal(t, shot, snap.ScreenshotPath)

	assert.True(t, analyzer.sawLayout, "layout file must be persisted before inference")
	assert.Equal(t, paths.LayoutFile, analyzer.layoutPath)

	var layout map[string]any
	data, err := os.ReadFile(paths.LayoutFile)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &layout))
	assert.Equal(t, shot, layout["screenshot_path"])
	assert.Equal(t, "https://x.com/someone", layout["url"])
	assert.Equal(t, testStart.Format(time.RFC3339Nano), layout["timestamp"])

	var selectors struct {
		Mapping SelectorMapping `json:"element_selector_mapping"`
	}
	data, err = os.ReadFile(paths.SelectorsFile)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &selectors))
	assert.Len(t, selectors.Mapping, 2)

	completed := logs.FilterMessage("Layout discovery completed!").All()
	require.Len(t, completed, 1)
	assert.NotEmpty(t, completed[0].ContextMap()["run_id"])
}

func TestOrchestratorRun_RawResponsePersisted(t *testing.T) {
	logger := zap.NewNop()
	paths := testPaths(t)
	analyzer := &recordingAnalyzer{result: ParseInferenceResponse("not json at all")}
	o := NewOrchestrator(&stubWaiter{}, stubCapturer{path: "shot.png"}, NewExtractor(clock.NewFake(testStart), logger),
		analyzer, store.New(logger), paths, logger)

	_, err := o.Run(context.Background(), pageWithElements())
	require.NoError(t, err)

	data, err := os.ReadFile(paths.SelectorsFile)
	require.NoError(t, err)
	assert.JSONEq(t, `{"raw_response":"not json at all"}`, string(data))
}

func TestOrchestratorRun_StageFailures(t *testing.T) {
	stageErr := errors.New("stage failed")

	t.Run("readiness", func(t *testing.T) {
		logger := zap.NewNop()
		paths := testPaths(t)
		analyzer := &recordingAnalyzer{}
		o := NewOrchestrator(&stubWaiter{err: stageErr}, stubCapturer{path: "shot.png"},
			NewExtractor(clock.NewFake(testStart), logger), analyzer, store.New(logger), paths, logger)

		_, err := o.Run(context.Background(), new(mocks.MockPage))
		assert.ErrorIs(t, err, stageErr)
		assert.NoFileExists(t, paths.LayoutFile)
	})

	t.Run("capture", func(t *testing.T) {
		logger := zap.NewNop()
		paths := testPaths(t)
		o := NewOrchestrator(&stubWaiter{}, stubCapturer{err: stageErr},
			NewExtractor(clock.NewFake(testStart), logger), &recordingAnalyzer{}, store.New(logger), paths, logger)

		_, err := o.Run(context.Background(), new(mocks.MockPage))
		assert.ErrorIs(t, err, stageErr)
		assert.NoFileExists(t, paths.LayoutFile)
	})

	t.Run("inference keeps layout", func(t *testing.T) {
		logger := zap.NewNop()
		paths := testPaths(t)
		analyzer := &recordingAnalyzer{err: stageErr}
		o := NewOrchestrator(&stubWaiter{}, stubCapturer{path: "shot.png"},
			NewExtractor(clock.NewFake(testStart), logger), analyzer, store.New(logger), paths, logger)

		_, err := o.Run(context.Background(), pageWithElements())
		assert.ErrorIs(t, err, stageErr)
		assert.FileExists(t, paths.LayoutFile)
		assert.NoFileExists(t, paths.SelectorsFile)
	})
}

func TestNeedsDiscovery(t *testing.T) {
	files := store.New(zap.NewNop())
	dir := t.TempDir()
	existing := filepath.Join(dir, "layout.json")
	require.NoError(t, os.WriteFile(existing, []byte("{}"), 0o644))
	missing := filepath.Join(dir, "missing.json")

	assert.True(t, NeedsDiscovery(true, files, existing))
	assert.True(t, NeedsDiscovery(false, files, missing))
	assert.False(t, NeedsDiscovery(false, files, existing))
}
