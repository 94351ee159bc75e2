// File: internal/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Target() TargetConfig
	Paths() PathsConfig
	Discovery() DiscoveryConfig
	LLM() LLMModelConfig

	// Snapshot returns a display copy with secrets redacted.
	Snapshot() any

	// Browser Setters
	SetBrowserEngine(string)
	SetBrowserHeadless(bool)

	// Discovery Setters
	SetDiscoveryForce(bool)
	SetDiscoveryScrollCount(int)
}

// Config holds the entire application configuration.
// It uses private fields to enforce access through the Interface's getter methods.
type Config struct {
	logger    LoggerConfig
	browser   BrowserConfig
	target    TargetConfig
	paths     PathsConfig
	discovery DiscoveryConfig
	llm       LLMModelConfig
}

// rawConfig is the exported mirror of Config that viper decodes into.
type rawConfig struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Target    TargetConfig    `mapstructure:"target" yaml:"target"`
	Paths     PathsConfig     `mapstructure:"paths" yaml:"paths"`
	Discovery DiscoveryConfig `mapstructure:"discovery" yaml:"discovery"`
	LLM       LLMModelConfig  `mapstructure:"llm" yaml:"llm"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig       { return c.logger }
func (c *Config) Browser() BrowserConfig     { return c.browser }
func (c *Config) Target() TargetConfig       { return c.target }
func (c *Config) Paths() PathsConfig         { return c.paths }
func (c *Config) Discovery() DiscoveryConfig { return c.discovery }
func (c *Config) LLM() LLMModelConfig        { return c.llm }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserEngine(e string)     { c.browser.Engine = e }
func (c *Config) SetBrowserHeadless(b bool)     { c.browser.Headless = b }
func (c *Config) SetDiscoveryForce(b bool)      { c.discovery.Force = b }
func (c *Config) SetDiscoveryScrollCount(n int) { c.discovery.ScrollCount = n }

// Snapshot returns a copy of the configuration suitable for display.
// Secrets are redacted.
func (c *Config) Snapshot() any {
	raw := rawConfig{
		Logger:    c.logger,
		Browser:   c.browser,
		Target:    c.target,
		Paths:     c.paths,
		Discovery: c.discovery,
		LLM:       c.llm,
	}
	if raw.LLM.APIKey != "" {
		raw.LLM.APIKey = "<redacted>"
	}
	return raw
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// Supported browser engines.
const (
	EngineChromedp   = "chromedp"
	EngineRod        = "rod"
	EnginePlaywright = "playwright"
)

// BrowserConfig holds settings for the browser instance.
type BrowserConfig struct {
	Engine   string   `mapstructure:"engine" yaml:"engine"`
	Headless bool     `mapstructure:"headless" yaml:"headless"`
	ExecPath string   `mapstructure:"exec_path" yaml:"exec_path"`
	Args     []string `mapstructure:"args" yaml:"args"`
	// Stealth installs the go-rod/stealth evasion script on every new page.
	Stealth bool `mapstructure:"stealth" yaml:"stealth"`
}

// TargetConfig names the pages the session works against.
type TargetConfig struct {
	HomeURL         string `mapstructure:"home_url" yaml:"home_url"`
	ProfileUsername string `mapstructure:"profile_username" yaml:"profile_username"`
	ProfileURL      string `mapstructure:"profile_url" yaml:"profile_url"`
}

// PathsConfig locates every durable artifact the tool reads or writes.
type PathsConfig struct {
	ConfigDir      string `mapstructure:"config_dir" yaml:"config_dir"`
	CookiesFile    string `mapstructure:"cookies_file" yaml:"cookies_file"`
	LayoutFile     string `mapstructure:"layout_file" yaml:"layout_file"`
	SelectorsFile  string `mapstructure:"selectors_file" yaml:"selectors_file"`
	ScreenshotsDir string `mapstructure:"screenshots_dir" yaml:"screenshots_dir"`
}

// DiscoveryConfig tunes the layout discovery pipeline.
type DiscoveryConfig struct {
	Force              bool          `mapstructure:"force" yaml:"force"`
	ScrollCount        int           `mapstructure:"scroll_count" yaml:"scroll_count"`
	ScrollWait         time.Duration `mapstructure:"scroll_wait" yaml:"scroll_wait"`
	MediaTimeout       time.Duration `mapstructure:"media_timeout" yaml:"media_timeout"`
	SettleDelay        time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	PageLoadTimeout    time.Duration `mapstructure:"page_load_timeout" yaml:"page_load_timeout"`
	ManualLoginTimeout time.Duration `mapstructure:"manual_login_timeout" yaml:"manual_login_timeout"`
	ReadySelectors     []string      `mapstructure:"ready_selectors" yaml:"ready_selectors"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
)

// LLMModelConfig defines the configuration for the inference model.
type LLMModelConfig struct {
	Provider    LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	TopP        float32       `mapstructure:"top_p" yaml:"top_p"`
	TopK        int           `mapstructure:"top_k" yaml:"top_k"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	// MaxRetryElapsed bounds retries of transient API errors. Zero disables retries.
	MaxRetryElapsed time.Duration `mapstructure:"max_retry_elapsed" yaml:"max_retry_elapsed"`
}

// DefaultReadySelectors are the elements the readiness wait looks for, in order.
var DefaultReadySelectors = []string{
	"article",
	"[data-testid='primaryColumn']",
	"[role='button']",
	"img",
	"video",
	"[data-testid='tweetPhoto']",
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	cfg, err := NewConfigFromViper(v)
	if err != nil {
		// This should not happen with defaults.
		panic(fmt.Sprintf("failed to build default config: %v", err))
	}
	return cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "layout-scout")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.engine", EngineChromedp)
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.stealth", true)

	// -- Target --
	v.SetDefault("target.home_url", "https://x.com")
	v.SetDefault("target.profile_username", "yourusername")

	// -- Paths --
	v.SetDefault("paths.config_dir", "config")
	v.SetDefault("paths.cookies_file", "cookies.json")

	// -- Discovery --
	v.SetDefault("discovery.force", true)
	v.SetDefault("discovery.scroll_count", 5)
	v.SetDefault("discovery.scroll_wait", "1100ms")
	v.SetDefault("discovery.media_timeout", "5s")
	v.SetDefault("discovery.settle_delay", "2s")
	v.SetDefault("discovery.page_load_timeout", "5s")
	v.SetDefault("discovery.manual_login_timeout", "60s")
	v.SetDefault("discovery.ready_selectors", DefaultReadySelectors)

	// -- LLM --
	v.SetDefault("llm.provider", string(ProviderGemini))
	v.SetDefault("llm.model", "gemini-2.0-pro-exp-02-05")
	v.SetDefault("llm.api_timeout", "2m")
	v.SetDefault("llm.temperature", 1.0)
	v.SetDefault("llm.top_p", 0.95)
	v.SetDefault("llm.top_k", 64)
	v.SetDefault("llm.max_tokens", 8192)
	v.SetDefault("llm.max_retry_elapsed", "1m")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind environment variables for sensitive data and the legacy names.
	_ = v.BindEnv("llm.api_key", "GEMINI_API_KEY")
	_ = v.BindEnv("target.profile_username", "PROFILE_USERNAME")

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg := &Config{
		logger:    raw.Logger,
		browser:   raw.Browser,
		target:    raw.Target,
		paths:     raw.Paths,
		discovery: raw.Discovery,
		llm:       raw.LLM,
	}
	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}
	cfg.resolveTarget()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// resolvePaths expands home-relative paths and derives the artifact paths
// that live under the configuration directory.
func (c *Config) resolvePaths() error {
	p := &c.paths
	for _, field := range []*string{&p.ConfigDir, &p.CookiesFile, &p.LayoutFile, &p.SelectorsFile, &p.ScreenshotsDir} {
		if *field == "" {
			continue
		}
		expanded, err := homedir.Expand(*field)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *field, err)
		}
		*field = expanded
	}
	if p.LayoutFile == "" {
		p.LayoutFile = filepath.Join(p.ConfigDir, "layout.json")
	}
	if p.SelectorsFile == "" {
		p.SelectorsFile = filepath.Join(p.ConfigDir, "layout_selectors.json")
	}
	if p.ScreenshotsDir == "" {
		p.ScreenshotsDir = filepath.Join(p.ConfigDir, "screenshots")
	}
	return nil
}

func (c *Config) resolveTarget() {
	if c.target.ProfileURL == "" {
		c.target.ProfileURL = strings.TrimRight(c.target.HomeURL, "/") + "/" + c.target.ProfileUsername
	}
	if len(c.discovery.ReadySelectors) == 0 {
		c.discovery.ReadySelectors = append([]string(nil), DefaultReadySelectors...)
	}
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch c.browser.Engine {
	case EngineChromedp, EngineRod, EnginePlaywright:
	default:
		return fmt.Errorf("browser.engine must be one of %q, %q, %q (got %q)",
			EngineChromedp, EngineRod, EnginePlaywright, c.browser.Engine)
	}
	if c.target.HomeURL == "" {
		return fmt.Errorf("target.home_url is a required configuration field")
	}
	if c.paths.ConfigDir == "" {
		return fmt.Errorf("paths.config_dir is a required configuration field")
	}
	if c.paths.CookiesFile == "" {
		return fmt.Errorf("paths.cookies_file is a required configuration field")
	}
	if err := c.discovery.Validate(); err != nil {
		return fmt.Errorf("discovery configuration invalid: %w", err)
	}
	if c.llm.Provider != ProviderGemini {
		return fmt.Errorf("llm.provider %q is not supported", c.llm.Provider)
	}
	return nil
}

// Validate checks the DiscoveryConfig settings.
func (d *DiscoveryConfig) Validate() error {
	if d.ScrollCount < 0 {
		return fmt.Errorf("scroll_count must not be negative")
	}
	if d.ScrollWait < 0 || d.SettleDelay < 0 {
		return fmt.Errorf("scroll_wait and settle_delay must not be negative")
	}
	if d.MediaTimeout <= 0 {
		return fmt.Errorf("media_timeout must be a positive duration")
	}
	if d.PageLoadTimeout < 0 || d.ManualLoginTimeout < 0 {
		return fmt.Errorf("page_load_timeout and manual_login_timeout must not be negative")
	}
	return nil
}
