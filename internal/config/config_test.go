// File: internal/config/config_test.go
package config

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv keeps the developer's shell from leaking into config tests.
func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("PROFILE_USERNAME", "")
}

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	clearEnv(t)
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "layout-scout", cfg.Logger().ServiceName)
	assert.Equal(t, EngineChromedp, cfg.Browser().Engine)
	assert.False(t, cfg.Browser().Headless)

	assert.Equal(t, "https://x.com", cfg.Target().HomeURL)
	assert.Equal(t, "https://x.com/yourusername", cfg.Target().ProfileURL)

	assert.Equal(t, "cookies.json", cfg.Paths().CookiesFile)
	assert.Equal(t, filepath.Join("config", "layout.json"), cfg.Paths().LayoutFile)
	assert.Equal(t, filepath.Join("config", "layout_selectors.json"), cfg.Paths().SelectorsFile)
	assert.Equal(t, filepath.Join("config", "screenshots"), cfg.Paths().ScreenshotsDir)

	d := cfg.Discovery()
	assert.True(t, d.Force)
	assert.Equal(t, 5, d.ScrollCount)
	assert.Equal(t, 1100*time.Millisecond, d.ScrollWait)
	assert.Equal(t, 5*time.Second, d.MediaTimeout)
	assert.Equal(t, 2*time.Second, d.SettleDelay)
	assert.Equal(t, 5*time.Second, d.PageLoadTimeout)
	assert.Equal(t, 60*time.Second, d.ManualLoginTimeout)
	assert.Equal(t, DefaultReadySelectors, d.ReadySelectors)

	llm := cfg.LLM()
	assert.Equal(t, ProviderGemini, llm.Provider)
	assert.Equal(t, float32(1.0), llm.Temperature)
	assert.Equal(t, float32(0.95), llm.TopP)
	assert.Equal(t, 64, llm.TopK)
	assert.Equal(t, 8192, llm.MaxTokens)
	assert.Empty(t, llm.APIKey)
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	clearEnv(t)

	t.Run("Core Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		assert.NoError(t, cfg.Validate(), "A valid config should not produce a validation error")

		badEngine := *cfg
		badEngine.browser.Engine = "netscape"
		err := badEngine.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "browser.engine must be one of")

		noHome := *cfg
		noHome.target.HomeURL = ""
		err = noHome.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "target.home_url is a required configuration field")

		badProvider := *cfg
		badProvider.llm.Provider = "openai"
		err = badProvider.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is not supported")
	})

	t.Run("Discovery Validation", func(t *testing.T) {
		valid := DiscoveryConfig{
			ScrollCount:  0,
			ScrollWait:   time.Second,
			MediaTimeout: time.Second,
		}
		assert.NoError(t, valid.Validate(), "zero scrolls is a legal configuration")

		negative := valid
		negative.ScrollCount = -1
		err := negative.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "scroll_count must not be negative")

		noMedia := valid
		noMedia.MediaTimeout = 0
		err = noMedia.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "media_timeout must be a positive duration")

		negWait := valid
		negWait.SettleDelay = -time.Second
		assert.Error(t, negWait.Validate())
	})
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		clearEnv(t)
		yamlBytes := []byte(`
browser:
  engine: rod
  headless: true
paths:
  config_dir: /tmp/scout
discovery:
  scroll_count: 2
  scroll_wait: 250ms
target:
  profile_username: someone
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, EngineRod, cfg.Browser().Engine)
		assert.True(t, cfg.Browser().Headless)
		assert.Equal(t, 2, cfg.Discovery().ScrollCount)
		assert.Equal(t, 250*time.Millisecond, cfg.Discovery().ScrollWait)
		// Derived paths follow the configured directory.
		assert.Equal(t, filepath.Join("/tmp/scout", "layout.json"), cfg.Paths().LayoutFile)
		assert.Equal(t, filepath.Join("/tmp/scout", "screenshots"), cfg.Paths().ScreenshotsDir)
		assert.Equal(t, "https://x.com/someone", cfg.Target().ProfileURL)
		// Check a default value was also loaded
		assert.Equal(t, "info", cfg.Logger().Level)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		clearEnv(t)
		v := viper.New()
		SetDefaults(v)
		v.Set("discovery.scroll_count", -3)

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "scroll_count must not be negative")
	})

	t.Run("Environment Variable Binding", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)

		t.Setenv("GEMINI_API_KEY", "env-key-123")
		t.Setenv("PROFILE_USERNAME", "envuser")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "env-key-123", cfg.LLM().APIKey)
		assert.Equal(t, "https://x.com/envuser", cfg.Target().ProfileURL)
	})

	t.Run("Home Directory Expansion", func(t *testing.T) {
		clearEnv(t)
		home, err := homedir.Dir()
		if err != nil {
			t.Skip("no home directory available")
		}
		v := viper.New()
		SetDefaults(v)
		v.Set("paths.cookies_file", "~/scout/cookies.json")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "scout", "cookies.json"), cfg.Paths().CookiesFile)
	})
}

func TestSnapshotRedactsAPIKey(t *testing.T) {
	clearEnv(t)
	cfg := NewDefaultConfig()
	cfg.llm.APIKey = "super-secret"

	snap, ok := cfg.Snapshot().(rawConfig)
	require.True(t, ok)
	assert.Equal(t, "<redacted>", snap.LLM.APIKey)
	assert.Equal(t, "super-secret", cfg.LLM().APIKey, "the live config must keep the key")
}

func TestSetters(t *testing.T) {
	clearEnv(t)
	cfg := NewDefaultConfig()

	cfg.SetBrowserEngine(EnginePlaywright)
	cfg.SetBrowserHeadless(true)
	cfg.SetDiscoveryForce(false)
	cfg.SetDiscoveryScrollCount(0)

	assert.Equal(t, EnginePlaywright, cfg.Browser().Engine)
	assert.True(t, cfg.Browser().Headless)
	assert.False(t, cfg.Discovery().Force)
	assert.Equal(t, 0, cfg.Discovery().ScrollCount)
}
