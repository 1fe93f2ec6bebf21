// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/chatpilot/internal/locator"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	// Verify a few key defaults to ensure the mechanism works.
	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "chatpilot", cfg.Logger().ServiceName)
	assert.Equal(t, EngineChromium, cfg.Browser().Engine)
	assert.True(t, cfg.Browser().Headless)
	assert.True(t, cfg.Browser().Humanoid.Enabled)
	assert.Equal(t, 200*time.Millisecond, cfg.Browser().Humanoid.PreClickPause)
	assert.Equal(t, 500*time.Millisecond, cfg.Browser().Humanoid.PostClickPause)
	assert.Equal(t, []string{"en-US", "en"}, cfg.Browser().Persona.Languages)

	assert.Equal(t, "https://chat.deepseek.com/sign_in", cfg.Site().SignInURL())
	assert.Equal(t, "https://chat.deepseek.com/", cfg.Site().HomeURL())

	assert.Equal(t, 500, cfg.Chat().ChunkSize)
	assert.Equal(t, 300*time.Millisecond, cfg.Chat().ChunkPause)
	assert.Equal(t, time.Second, cfg.Chat().ClearPause)
	assert.Equal(t, 20*time.Second, cfg.Timeouts().Navigation)
	assert.Equal(t, 10*time.Second, cfg.Timeouts().Response)

	assert.Equal(t, locator.Default(), cfg.Locators())
	assert.NoError(t, cfg.Validate())
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Core Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		assert.NoError(t, cfg.Validate(), "A valid config should not produce a validation error")

		badEngine := *cfg
		badEngine.BrowserCfg.Engine = "safari"
		err := badEngine.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "browser.engine must be")

		remoteFirefox := *cfg
		remoteFirefox.BrowserCfg.Engine = EngineFirefox
		remoteFirefox.BrowserCfg.RemoteURL = "ws://127.0.0.1:9222"
		err = remoteFirefox.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "browser.remote_url is only supported")

		badChunk := *cfg
		badChunk.ChatCfg.ChunkSize = 0
		err = badChunk.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "chat.chunk_size must be a positive integer")

		negativePause := *cfg
		negativePause.ChatCfg.ChunkPause = -time.Second
		err = negativePause.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "chat pauses must not be negative")
	})

	t.Run("Site Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()

		relative := *cfg
		relative.SiteCfg.BaseURL = "chat.example.com"
		err := relative.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "site.base_url must be an absolute URL")

		samePaths := *cfg
		samePaths.SiteCfg.HomePath = "/sign_in"
		err = samePaths.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "must differ")
	})

	t.Run("Timeout Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.TimeoutsCfg.Generation = 0
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "timeouts.generation must be a positive duration")
	})

	t.Run("Humanoid Validation", func(t *testing.T) {
		valid := NewDefaultConfig().Browser().Humanoid
		assert.NoError(t, valid.Validate())

		disabled := valid
		disabled.Enabled = false
		disabled.MinSteps = -1
		assert.NoError(t, disabled.Validate(), "disabled humanoid config should always be valid")

		badSteps := valid
		badSteps.MaxSteps = badSteps.MinSteps - 1
		err := badSteps.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "min_steps must be positive")

		badHold := valid
		badHold.ClickHoldMaxMs = 0
		err = badHold.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "click_hold_min_ms")
	})

	t.Run("Locator Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.LocatorsCfg.LastResponse.Query = ""
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "locators.last_response")
	})
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
browser:
  engine: firefox
  headless: false
chat:
  chunk_size: 250
timeouts:
  generation: 90s
locators:
  compose:
    query: "textarea#prompt"
    by: css
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, EngineFirefox, cfg.Browser().Engine)
		assert.False(t, cfg.Browser().Headless)
		assert.Equal(t, 250, cfg.Chat().ChunkSize)
		assert.Equal(t, 90*time.Second, cfg.Timeouts().Generation)
		assert.Equal(t, locator.CSS("textarea#prompt"), cfg.Locators().Compose)
		// Locators not mentioned in the file keep their defaults.
		assert.Equal(t, locator.Default().SendButton, cfg.Locators().SendButton)
		// Check a default value was also loaded
		assert.Equal(t, "info", cfg.Logger().Level)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("chat.chunk_size", 0) // Intentionally invalid

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "chat.chunk_size must be a positive integer")
	})

	t.Run("Environment Variable Binding", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)

		yamlConfig := []byte(`
credentials:
  email: "file@example.com"
`)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlConfig)))

		t.Setenv("CHATPILOT_EMAIL", "env@example.com")
		t.Setenv("CHATPILOT_PASSWORD", "hunter2")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		// The environment overrides the config file.
		assert.Equal(t, "env@example.com", cfg.Credentials().Email)
		assert.Equal(t, "hunter2", cfg.Credentials().Password)
	})
}

func TestSetters(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.SetBrowserHeadless(false)
	cfg.SetBrowserEngine(EngineFirefox)
	cfg.SetCredentials("a@b.c", "pw")

	assert.False(t, cfg.Browser().Headless)
	assert.Equal(t, EngineFirefox, cfg.Browser().Engine)
	assert.Equal(t, CredentialsConfig{Email: "a@b.c", Password: "pw"}, cfg.Credentials())
}
