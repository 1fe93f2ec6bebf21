// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/chatpilot/internal/config"
	"github.com/xkilldash9x/chatpilot/internal/driver"
	"github.com/xkilldash9x/chatpilot/internal/locator"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

var _ config.Interface = (*MockConfig)(nil)

// --- Getters ---

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Browser() config.BrowserConfig {
	args := m.Called()
	return args.Get(0).(config.BrowserConfig)
}

func (m *MockConfig) Site() config.SiteConfig {
	args := m.Called()
	return args.Get(0).(config.SiteConfig)
}

func (m *MockConfig) Timeouts() config.TimeoutsConfig {
	args := m.Called()
	return args.Get(0).(config.TimeoutsConfig)
}

func (m *MockConfig) Chat() config.ChatConfig {
	args := m.Called()
	return args.Get(0).(config.ChatConfig)
}

func (m *MockConfig) Credentials() config.CredentialsConfig {
	args := m.Called()
	return args.Get(0).(config.CredentialsConfig)
}

func (m *MockConfig) Locators() locator.Set {
	args := m.Called()
	return args.Get(0).(locator.Set)
}

// --- Setters ---

func (m *MockConfig) SetBrowserHeadless(b bool) {
	m.Called(b)
}

func (m *MockConfig) SetBrowserEngine(e string) {
	m.Called(e)
}

func (m *MockConfig) SetCredentials(email, password string) {
	m.Called(email, password)
}

// -- Driver Mock --

// MockDriver mocks driver.Driver.
type MockDriver struct {
	mock.Mock
}

var _ driver.Driver = (*MockDriver)(nil)

func (m *MockDriver) Navigate(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func (m *MockDriver) CurrentURL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockDriver) WaitURL(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func (m *MockDriver) WaitPresent(ctx context.Context, l locator.Locator) error {
	args := m.Called(ctx, l)
	return args.Error(0)
}

func (m *MockDriver) WaitVisible(ctx context.Context, l locator.Locator) error {
	args := m.Called(ctx, l)
	return args.Error(0)
}

func (m *MockDriver) WaitClickable(ctx context.Context, l locator.Locator) error {
	args := m.Called(ctx, l)
	return args.Error(0)
}

func (m *MockDriver) Click(ctx context.Context, l locator.Locator) error {
	args := m.Called(ctx, l)
	return args.Error(0)
}

func (m *MockDriver) SendKeys(ctx context.Context, l locator.Locator, text string) error {
	args := m.Called(ctx, l, text)
	return args.Error(0)
}

func (m *MockDriver) HumanClick(ctx context.Context, l locator.Locator, timing driver.ClickTiming) error {
	args := m.Called(ctx, l, timing)
	return args.Error(0)
}

func (m *MockDriver) Text(ctx context.Context, l locator.Locator) (string, error) {
	args := m.Called(ctx, l)
	return args.String(0), args.Error(1)
}

// Evaluate returns the configured error. When the first return value is a
// func(res interface{}), it is called to fill res.
func (m *MockDriver) Evaluate(ctx context.Context, script string, res interface{}, args ...interface{}) error {
	called := m.Called(ctx, script, res, args)
	if fill, ok := called.Get(0).(func(interface{})); ok {
		fill(res)
		return called.Error(1)
	}
	return called.Error(0)
}

func (m *MockDriver) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
