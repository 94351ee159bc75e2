// File: cmd/root_test.go
package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/layout-scout/internal/browser"
	"github.com/xkilldash9x/layout-scout/internal/config"
	"github.com/xkilldash9x/layout-scout/internal/mocks"
)

func TestRootCmd_VersionFlag(t *testing.T) {
	out, _, err := executeCommand(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "layout-scout version dev\n", out)
}

func TestVersionCmd(t *testing.T) {
	// A broken config file must not matter for `version`.
	out, _, err := executeCommand(t, "version", "-c", "/nonexistent/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "layout-scout dev\n", out)
}

func TestRootCmd_NoArgsPrintsHelp(t *testing.T) {
	out, _, err := executeCommand(t)
	require.NoError(t, err)
	assert.Contains(t, out, "discover")
	assert.Contains(t, out, "analyze")
}

func TestConfigCmd_EffectiveConfiguration(t *testing.T) {
	env := newTestEnv(t, `
discovery:
  scroll_count: 3
`)
	t.Setenv("GEMINI_API_KEY", "super-secret-key")
	t.Setenv("LAYOUTSCOUT_BROWSER_ENGINE", "rod")

	out, _, err := executeCommand(t, "config", "-c", env.configFile)
	require.NoError(t, err)
	assert.NotContains(t, out, "super-secret-key")

	var doc struct {
		Browser struct {
			Engine string `yaml:"engine"`
		} `yaml:"browser"`
		Discovery struct {
			ScrollCount int    `yaml:"scroll_count"`
			ScrollWait  string `yaml:"scroll_wait"`
		} `yaml:"discovery"`
		Paths struct {
			LayoutFile string `yaml:"layout_file"`
		} `yaml:"paths"`
		Target struct {
			ProfileURL string `yaml:"profile_url"`
		} `yaml:"target"`
		LLM struct {
			APIKey string `yaml:"api_key"`
			Model  string `yaml:"model"`
		} `yaml:"llm"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))

	assert.Equal(t, "rod", doc.Browser.Engine)
	assert.Equal(t, 3, doc.Discovery.ScrollCount)
	assert.Equal(t, "1.1s", doc.Discovery.ScrollWait)
	assert.Equal(t, env.paths.LayoutFile, doc.Paths.LayoutFile)
	assert.Equal(t, "https://x.com/someone", doc.Target.ProfileURL)
	assert.Equal(t, "<redacted>", doc.LLM.APIKey)
	assert.Equal(t, "gemini-2.0-pro-exp-02-05", doc.LLM.Model)
}

func TestConfigCmd_InvalidConfiguration(t *testing.T) {
	env := newTestEnv(t, `
discovery:
  scroll_count: -1
`)
	_, _, err := executeCommand(t, "config", "-c", env.configFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scroll_count")
}

func TestConfigCmd_MissingExplicitFile(t *testing.T) {
	_, _, err := executeCommand(t, "config", "-c", "/nonexistent/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

// recordSyncs counts logger flushes for the duration of the test.
func recordSyncs(t *testing.T) *[]*zap.Logger {
	t.Helper()
	orig := syncLogger
	t.Cleanup(func() { syncLogger = orig })
	var synced []*zap.Logger
	syncLogger = func(logger *zap.Logger) { synced = append(synced, logger) }
	return &synced
}

func TestExecute_SyncsLoggerAfterSuccess(t *testing.T) {
	env := newTestEnv(t, "")
	synced := recordSyncs(t)

	_, _, err := executeCommand(t, "config", "-c", env.configFile)
	require.NoError(t, err)
	assert.Len(t, *synced, 1)
}

func TestExecute_SyncsLoggerAfterFailure(t *testing.T) {
	env := newTestEnv(t, fastDiscovery)
	synced := recordSyncs(t)
	llm := new(mocks.MockLLMClient)
	llm.On("Close").Return(nil).Once()
	stubDependencies(t, func(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (browser.Browser, error) {
		return nil, errors.New("chrome not found")
	}, llm)

	_, _, err := executeCommand(t, "discover", "-c", env.configFile)
	require.Error(t, err)
	require.Len(t, *synced, 1)
	assert.NotNil(t, (*synced)[0])
}

func TestExecute_NoLoggerWhenConfigFails(t *testing.T) {
	synced := recordSyncs(t)

	_, _, err := executeCommand(t, "config", "-c", "/nonexistent/config.yaml")
	require.Error(t, err)
	assert.Empty(t, *synced)
}
