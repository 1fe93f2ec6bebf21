// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/xkilldash9x/chatpilot/internal/locator"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Site() SiteConfig
	Timeouts() TimeoutsConfig
	Chat() ChatConfig
	Credentials() CredentialsConfig
	Locators() locator.Set

	// Browser Setters
	SetBrowserHeadless(bool)
	SetBrowserEngine(string)

	// Credentials Setter
	SetCredentials(email, password string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	BrowserCfg     BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	SiteCfg        SiteConfig        `mapstructure:"site" yaml:"site"`
	TimeoutsCfg    TimeoutsConfig    `mapstructure:"timeouts" yaml:"timeouts"`
	ChatCfg        ChatConfig        `mapstructure:"chat" yaml:"chat"`
	CredentialsCfg CredentialsConfig `mapstructure:"credentials" yaml:"credentials"`
	LocatorsCfg    locator.Set       `mapstructure:"locators" yaml:"locators"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig           { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig         { return c.BrowserCfg }
func (c *Config) Site() SiteConfig               { return c.SiteCfg }
func (c *Config) Timeouts() TimeoutsConfig       { return c.TimeoutsCfg }
func (c *Config) Chat() ChatConfig               { return c.ChatCfg }
func (c *Config) Credentials() CredentialsConfig { return c.CredentialsCfg }
func (c *Config) Locators() locator.Set          { return c.LocatorsCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool) { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserEngine(e string) { c.BrowserCfg.Engine = e }
func (c *Config) SetCredentials(email, password string) {
	c.CredentialsCfg.Email = email
	c.CredentialsCfg.Password = password
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
	EngineChromium = "chromium"
	EngineFirefox  = "firefox"
)

// BrowserConfig holds settings for the browser instance.
type BrowserConfig struct {
	// Engine selects the backend: "chromium" (chromedp) or "firefox" (playwright).
	Engine          string `mapstructure:"engine" yaml:"engine"`
	Headless        bool   `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool   `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`

	// RemoteURL attaches to an already running Chromium DevTools endpoint instead of launching one.
	RemoteURL     string        `mapstructure:"remote_url" yaml:"remote_url"`
	ExecPath      string        `mapstructure:"exec_path" yaml:"exec_path"`
	Args          []string      `mapstructure:"args" yaml:"args"`
	LaunchTimeout time.Duration `mapstructure:"launch_timeout" yaml:"launch_timeout"`

	// InstallDriver lets playwright download its driver and browsers on first use.
	InstallDriver bool           `mapstructure:"install_driver" yaml:"install_driver"`
	Viewport      ViewportConfig `mapstructure:"viewport" yaml:"viewport"`
	Persona       PersonaConfig  `mapstructure:"persona" yaml:"persona"`
	Humanoid      HumanoidConfig `mapstructure:"humanoid" yaml:"humanoid"`
}

// ViewportConfig is the browser window size.
type ViewportConfig struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// PersonaConfig is the browser identity presented to the site.
type PersonaConfig struct {
	UserAgent string   `mapstructure:"user_agent" yaml:"user_agent"`
	Platform  string   `mapstructure:"platform" yaml:"platform"`
	Languages []string `mapstructure:"languages" yaml:"languages"`
	Timezone  string   `mapstructure:"timezone" yaml:"timezone"`
	Locale    string   `mapstructure:"locale" yaml:"locale"`
}

// SiteConfig locates the target chat application.
type SiteConfig struct {
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	SignInPath string `mapstructure:"sign_in_path" yaml:"sign_in_path"`
	HomePath   string `mapstructure:"home_path" yaml:"home_path"`
}

// SignInURL is the address of the sign-in page.
func (s SiteConfig) SignInURL() string { return joinURL(s.BaseURL, s.SignInPath) }

// HomeURL is the address of the authenticated landing page.
func (s SiteConfig) HomeURL() string { return joinURL(s.BaseURL, s.HomePath) }

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// TimeoutsConfig bounds every wait the session controller performs.
type TimeoutsConfig struct {
	LoginForm  time.Duration `mapstructure:"login_form" yaml:"login_form"`
	Navigation time.Duration `mapstructure:"navigation" yaml:"navigation"`
	Menu       time.Duration `mapstructure:"menu" yaml:"menu"`
	NewChat    time.Duration `mapstructure:"new_chat" yaml:"new_chat"`
	DeepThink  time.Duration `mapstructure:"deep_think" yaml:"deep_think"`
	SendButton time.Duration `mapstructure:"send_button" yaml:"send_button"`
	Generation time.Duration `mapstructure:"generation" yaml:"generation"`
	Response   time.Duration `mapstructure:"response" yaml:"response"`
}

// ChatConfig tunes the message send pipeline.
type ChatConfig struct {
	ChunkSize       int           `mapstructure:"chunk_size" yaml:"chunk_size"`
	ChunkPause      time.Duration `mapstructure:"chunk_pause" yaml:"chunk_pause"`
	ClearPause      time.Duration `mapstructure:"clear_pause" yaml:"clear_pause"`
	MinSendInterval time.Duration `mapstructure:"min_send_interval" yaml:"min_send_interval"`
}

// CredentialsConfig holds the account used to sign in. Prefer the
// CHATPILOT_EMAIL / CHATPILOT_PASSWORD environment variables over the config file.
type CredentialsConfig struct {
	Email    string `mapstructure:"email" yaml:"email"`
	Password string `mapstructure:"password" yaml:"-"`
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "chatpilot")
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
	v.SetDefault("browser.engine", EngineChromium)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.remote_url", "")
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.launch_timeout", "30s")
	v.SetDefault("browser.install_driver", false)
	v.SetDefault("browser.viewport.width", 1920)
	v.SetDefault("browser.viewport.height", 1080)
	v.SetDefault("browser.persona.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36")
	v.SetDefault("browser.persona.platform", "Win32")
	v.SetDefault("browser.persona.languages", []string{"en-US", "en"})
	v.SetDefault("browser.persona.timezone", "America/Los_Angeles")
	v.SetDefault("browser.persona.locale", "en-US")
	setHumanoidDefaults(v)

	// -- Site --
	v.SetDefault("site.base_url", "https://chat.deepseek.com")
	v.SetDefault("site.sign_in_path", "/sign_in")
	v.SetDefault("site.home_path", "/")

	// -- Timeouts --
	v.SetDefault("timeouts.login_form", "2m")
	v.SetDefault("timeouts.navigation", "20s")
	v.SetDefault("timeouts.menu", "20s")
	v.SetDefault("timeouts.new_chat", "10s")
	v.SetDefault("timeouts.deep_think", "2m")
	v.SetDefault("timeouts.send_button", "15s")
	v.SetDefault("timeouts.generation", "10m")
	v.SetDefault("timeouts.response", "10s")

	// -- Chat --
	v.SetDefault("chat.chunk_size", 500)
	v.SetDefault("chat.chunk_pause", "300ms")
	v.SetDefault("chat.clear_pause", "1s")
	v.SetDefault("chat.min_send_interval", "0s")

	// -- Credentials --
	v.SetDefault("credentials.email", "")
	v.SetDefault("credentials.password", "")

	// -- Locators --
	for name, l := range locator.Default().Named() {
		v.SetDefault("locators."+name+".query", l.Query)
		v.SetDefault("locators."+name+".by", string(l.By))
	}
}

// NewConfigFromViper unmarshals the viper state into a Config and validates it.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Credentials come from the unprefixed CHATPILOT_EMAIL/CHATPILOT_PASSWORD
	// names rather than the CHATPILOT_CREDENTIALS_* keys AutomaticEnv derives.
	if err := v.BindEnv("credentials.email", "CHATPILOT_EMAIL"); err != nil {
		return nil, fmt.Errorf("error binding credentials.email: %w", err)
	}
	if err := v.BindEnv("credentials.password", "CHATPILOT_PASSWORD"); err != nil {
		return nil, fmt.Errorf("error binding credentials.password: %w", err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch c.BrowserCfg.Engine {
	case EngineChromium, EngineFirefox:
	default:
		return fmt.Errorf("browser.engine must be %q or %q, got %q", EngineChromium, EngineFirefox, c.BrowserCfg.Engine)
	}
	if c.BrowserCfg.RemoteURL != "" && c.BrowserCfg.Engine != EngineChromium {
		return fmt.Errorf("browser.remote_url is only supported with the %s engine", EngineChromium)
	}
	if err := c.SiteCfg.Validate(); err != nil {
		return err
	}
	if c.ChatCfg.ChunkSize <= 0 {
		return fmt.Errorf("chat.chunk_size must be a positive integer")
	}
	if c.ChatCfg.ChunkPause < 0 || c.ChatCfg.ClearPause < 0 || c.ChatCfg.MinSendInterval < 0 {
		return fmt.Errorf("chat pauses must not be negative")
	}
	if err := c.TimeoutsCfg.Validate(); err != nil {
		return err
	}
	if err := c.BrowserCfg.Humanoid.Validate(); err != nil {
		return fmt.Errorf("browser.humanoid configuration invalid: %w", err)
	}
	if err := c.LocatorsCfg.Validate(); err != nil {
		return err
	}
	return nil
}

// Validate checks the site addresses.
func (s SiteConfig) Validate() error {
	u, err := url.Parse(s.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("site.base_url must be an absolute URL, got %q", s.BaseURL)
	}
	if s.SignInURL() == s.HomeURL() {
		return fmt.Errorf("site.sign_in_path and site.home_path must differ")
	}
	return nil
}

// Validate checks that every timeout is a positive duration.
func (t TimeoutsConfig) Validate() error {
	named := map[string]time.Duration{
		"login_form":  t.LoginForm,
		"navigation":  t.Navigation,
		"menu":        t.Menu,
		"new_chat":    t.NewChat,
		"deep_think":  t.DeepThink,
		"send_button": t.SendButton,
		"generation":  t.Generation,
		"response":    t.Response,
	}
	for name, d := range named {
		if d <= 0 {
			return fmt.Errorf("timeouts.%s must be a positive duration", name)
		}
	}
	return nil
}
