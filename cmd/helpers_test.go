// File: cmd/helpers_test.go
package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/layout-scout/internal/browser"
	"github.com/xkilldash9x/layout-scout/internal/browser/engine"
	"github.com/xkilldash9x/layout-scout/internal/clock"
	"github.com/xkilldash9x/layout-scout/internal/config"
	"github.com/xkilldash9x/layout-scout/internal/llmclient"
	"github.com/xkilldash9x/layout-scout/internal/mocks"
)

const testMapping = `{"element_selector_mapping":{"compose":{"selector":"[data-testid='SideNav_NewTweet_Button']","type":"link","action":"compose tweet"}}}`

// testEnv is an isolated working area with a config file pointing into it.
type testEnv struct {
	dir        string
	configFile string
	paths      config.PathsConfig
}

// newTestEnv writes a config file whose artifacts all live under a temp dir.
// extra is appended verbatim to the YAML document.
func newTestEnv(t *testing.T, extra string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	configDir := filepath.Join(dir, "config")
	content := fmt.Sprintf(`
logger:
  level: error
paths:
  config_dir: %s
  cookies_file: %s
target:
  profile_username: someone
%s`, configDir, filepath.Join(dir, "cookies.json"), extra)

	configFile := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0o644))

	return &testEnv{
		dir:        dir,
		configFile: configFile,
		paths: config.PathsConfig{
			ConfigDir:      configDir,
			CookiesFile:    filepath.Join(dir, "cookies.json"),
			LayoutFile:     filepath.Join(configDir, "layout.json"),
			SelectorsFile:  filepath.Join(configDir, "layout_selectors.json"),
			ScreenshotsDir: filepath.Join(configDir, "screenshots"),
		},
	}
}

// executeCommand runs a fresh command tree and returns stdout and the
// combined stderr/log output.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := execute(context.Background(), root)
	return stdout.String(), stderr.String(), err
}

// stubDependencies swaps the browser launcher, model client and clock for
// the duration of the test.
func stubDependencies(t *testing.T, launch engine.LaunchFunc, llm llmclient.Client) *clock.Fake {
	t.Helper()
	origLaunch, origLLM, origClock := launchBrowser, newLLMClient, newClock
	t.Cleanup(func() {
		launchBrowser, newLLMClient, newClock = origLaunch, origLLM, origClock
	})

	fake := clock.NewFake(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	if launch != nil {
		launchBrowser = launch
	} else {
		launchBrowser = func(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (browser.Browser, error) {
			t.Error("browser launched unexpectedly")
			return nil, fmt.Errorf("unexpected launch")
		}
	}
	newLLMClient = func(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger) (llmclient.Client, error) {
		if llm == nil {
			t.Error("LLM client created unexpectedly")
			return nil, fmt.Errorf("unexpected LLM client")
		}
		return llm, nil
	}
	newClock = func() clock.Clock { return fake }
	return fake
}

// mockBrowserStack wires a browser, context and page that always succeed.
// The page reports currentURL and a small element tree.
func mockBrowserStack(currentURL string) (*mocks.MockBrowser, *mocks.MockBrowserContext, *mocks.MockPage) {
	b := new(mocks.MockBrowser)
	bctx := new(mocks.MockBrowserContext)
	page := new(mocks.MockPage)

	b.On("NewContext", mock.Anything).Return(bctx, nil)
	b.On("Close", mock.Anything).Return(nil)
	bctx.On("NewPage", mock.Anything).Return(page, nil)
	bctx.On("AddCookies", mock.Anything, mock.Anything).Return(nil)
	bctx.On("Close", mock.Anything).Return(nil)

	role := "button"
	page.On("Navigate", mock.Anything, mock.Anything).Return(nil)
	page.On("URL", mock.Anything).Return(currentURL, nil)
	page.On("WaitForLoadState", mock.Anything, mock.Anything).Return(nil)
	page.On("WaitForSelector", mock.Anything, mock.Anything, mock.Anything).Return(browser.WaitFound, nil)
	page.On("SettleMedia", mock.Anything).Return(nil)
	page.On("ScrollByViewport", mock.Anything).Return(nil)
	page.On("QueryElements", mock.Anything).Return([]browser.ElementRecord{
		{Tag: "A", Classes: []string{"r-1oszu61"}, Role: &role, Text: "Post"},
	}, nil)
	page.On("Screenshot", mock.Anything, true).Return([]byte("png"), nil)
	page.On("Close", mock.Anything).Return(nil)
	return b, bctx, page
}

func launchReturning(b browser.Browser, seen *config.BrowserConfig) engine.LaunchFunc {
	return func(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (browser.Browser, error) {
		if seen != nil {
			*seen = cfg
		}
		return b, nil
	}
}
