// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/layout-scout/internal/browser"
	"github.com/xkilldash9x/layout-scout/internal/config"
	"github.com/xkilldash9x/layout-scout/internal/llmclient"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

var _ config.Interface = (*MockConfig)(nil)

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Browser() config.BrowserConfig {
	args := m.Called()
	return args.Get(0).(config.BrowserConfig)
}

func (m *MockConfig) Target() config.TargetConfig {
	args := m.Called()
	return args.Get(0).(config.TargetConfig)
}

func (m *MockConfig) Paths() config.PathsConfig {
	args := m.Called()
	return args.Get(0).(config.PathsConfig)
}

func (m *MockConfig) Discovery() config.DiscoveryConfig {
	args := m.Called()
	return args.Get(0).(config.DiscoveryConfig)
}

func (m *MockConfig) LLM() config.LLMModelConfig {
	args := m.Called()
	return args.Get(0).(config.LLMModelConfig)
}

func (m *MockConfig) Snapshot() any {
	return m.Called().Get(0)
}

func (m *MockConfig) SetBrowserEngine(e string)     { m.Called(e) }
func (m *MockConfig) SetBrowserHeadless(b bool)     { m.Called(b) }
func (m *MockConfig) SetDiscoveryForce(b bool)      { m.Called(b) }
func (m *MockConfig) SetDiscoveryScrollCount(n int) { m.Called(n) }

// -- LLM Client Mock --

// MockLLMClient mocks the llmclient.Client interface.
type MockLLMClient struct {
	mock.Mock
}

var _ llmclient.Client = (*MockLLMClient)(nil)

func (m *MockLLMClient) Generate(ctx context.Context, req llmclient.GenerationRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockLLMClient) Close() error {
	return m.Called().Error(0)
}

// -- Browser Mocks --

// MockBrowser mocks browser.Browser.
type MockBrowser struct {
	mock.Mock
}

var _ browser.Browser = (*MockBrowser)(nil)

func (m *MockBrowser) NewContext(ctx context.Context) (browser.Context, error) {
	args := m.Called(ctx)
	if c := args.Get(0); c != nil {
		return c.(browser.Context), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBrowser) Close(ctx context.Context) error { return m.Called(ctx).Error(0) }

// MockBrowserContext mocks browser.Context.
type MockBrowserContext struct {
	mock.Mock
}

var _ browser.Context = (*MockBrowserContext)(nil)

func (m *MockBrowserContext) AddCookies(ctx context.Context, cookies []browser.Cookie) error {
	return m.Called(ctx, cookies).Error(0)
}

func (m *MockBrowserContext) Cookies(ctx context.Context) ([]browser.Cookie, error) {
	args := m.Called(ctx)
	cookies, _ := args.Get(0).([]browser.Cookie)
	return cookies, args.Error(1)
}

func (m *MockBrowserContext) NewPage(ctx context.Context) (browser.Page, error) {
	args := m.Called(ctx)
	if p := args.Get(0); p != nil {
		return p.(browser.Page), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBrowserContext) Close(ctx context.Context) error { return m.Called(ctx).Error(0) }

// MockPage mocks browser.Page.
type MockPage struct {
	mock.Mock
}

var _ browser.Page = (*MockPage)(nil)

func (m *MockPage) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockPage) URL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockPage) WaitForLoadState(ctx context.Context, state browser.LoadState) error {
	return m.Called(ctx, state).Error(0)
}

func (m *MockPage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) (browser.WaitResult, error) {
	args := m.Called(ctx, selector, timeout)
	return args.Get(0).(browser.WaitResult), args.Error(1)
}

func (m *MockPage) SettleMedia(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *MockPage) ScrollByViewport(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *MockPage) QueryElements(ctx context.Context) ([]browser.ElementRecord, error) {
	args := m.Called(ctx)
	records, _ := args.Get(0).([]browser.ElementRecord)
	return records, args.Error(1)
}

func (m *MockPage) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	args := m.Called(ctx, fullPage)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockPage) Close(ctx context.Context) error { return m.Called(ctx).Error(0) }
