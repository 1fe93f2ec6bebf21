// internal/browser/chromium/options.go
package chromium

import (
	"runtime"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/chatpilot/internal/config"
)

// launchFlags assembles the command line switches for a stealthy, configurable
// Chromium instance. Boolean false values are dropped by the allocator, which
// is how the default enable-automation switch is removed.
func launchFlags(cfg config.BrowserConfig, goos string) map[string]interface{} {
	flags := map[string]interface{}{
		"headless":                  cfg.Headless,
		"enable-automation":         false,
		"ignore-certificate-errors": cfg.IgnoreTLSErrors,
		// Hides navigator.webdriver from the Blink side.
		"disable-blink-features": "AutomationControlled",
		"disable-extensions":     true,
		"disable-gpu":            cfg.Headless,
	}

	// Custom arguments from the config file, in "--name=value" or "--name" form.
	for _, arg := range cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if name == "" {
			continue
		}
		if len(parts) == 2 {
			flags[name] = parts[1]
		} else {
			flags[name] = true
		}
	}

	// Containers (Docker on Linux) need the sandbox disabled.
	if goos == "linux" {
		flags["no-sandbox"] = true
		flags["disable-dev-shm-usage"] = true
		flags["disable-setuid-sandbox"] = true
	}
	return flags
}

// AllocatorOptions builds the exec allocator options for cfg.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for name, value := range launchFlags(cfg, runtime.GOOS) {
		opts = append(opts, chromedp.Flag(name, value))
	}
	if cfg.Viewport.Width > 0 && cfg.Viewport.Height > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.Viewport.Width, cfg.Viewport.Height))
	}
	if cfg.Persona.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.Persona.UserAgent))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}
