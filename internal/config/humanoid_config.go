// File: internal/config/humanoid_config.go
// This file defines the HumanoidConfig struct, which contains the tunable
// parameters for the pointer simulation used when clicking the send control.
// The settings shape the bezier path the cursor follows, the jitter applied to
// each step, and the dwell time between press and release.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// HumanoidConfig controls the human-like pointer movement.
type HumanoidConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// MinSteps and MaxSteps bound the number of mouseMoved events per movement.
	MinSteps int `mapstructure:"min_steps" yaml:"min_steps"`
	MaxSteps int `mapstructure:"max_steps" yaml:"max_steps"`
	// CurveSpread is the maximum offset, in pixels, of the bezier control points.
	CurveSpread float64 `mapstructure:"curve_spread" yaml:"curve_spread"`
	// Jitter is the maximum per-step tremor in pixels.
	Jitter float64 `mapstructure:"jitter" yaml:"jitter"`
	// StepDelay is the base pause between mouseMoved events.
	StepDelay time.Duration `mapstructure:"step_delay" yaml:"step_delay"`
	// ClickHoldMinMs and ClickHoldMaxMs bound the press-to-release dwell.
	ClickHoldMinMs int `mapstructure:"click_hold_min_ms" yaml:"click_hold_min_ms"`
	ClickHoldMaxMs int `mapstructure:"click_hold_max_ms" yaml:"click_hold_max_ms"`
	// PreClickPause and PostClickPause surround the click itself.
	PreClickPause  time.Duration `mapstructure:"pre_click_pause" yaml:"pre_click_pause"`
	PostClickPause time.Duration `mapstructure:"post_click_pause" yaml:"post_click_pause"`
}

func setHumanoidDefaults(v *viper.Viper) {
	v.SetDefault("browser.humanoid.enabled", true)
	v.SetDefault("browser.humanoid.min_steps", 5)
	v.SetDefault("browser.humanoid.max_steps", 30)
	v.SetDefault("browser.humanoid.curve_spread", 50.0)
	v.SetDefault("browser.humanoid.jitter", 2.0)
	v.SetDefault("browser.humanoid.step_delay", "16ms")
	v.SetDefault("browser.humanoid.click_hold_min_ms", 30)
	v.SetDefault("browser.humanoid.click_hold_max_ms", 120)
	v.SetDefault("browser.humanoid.pre_click_pause", "200ms")
	v.SetDefault("browser.humanoid.post_click_pause", "500ms")
}

// Validate checks the humanoid parameters.
func (h HumanoidConfig) Validate() error {
	if !h.Enabled {
		return nil
	}
	if h.MinSteps <= 0 || h.MaxSteps < h.MinSteps {
		return fmt.Errorf("min_steps must be positive and not exceed max_steps")
	}
	if h.ClickHoldMinMs < 0 || h.ClickHoldMaxMs < h.ClickHoldMinMs {
		return fmt.Errorf("click_hold_min_ms must be non-negative and not exceed click_hold_max_ms")
	}
	if h.PreClickPause < 0 || h.PostClickPause < 0 || h.StepDelay < 0 {
		return fmt.Errorf("pauses must not be negative")
	}
	return nil
}
