// internal/browser/launch.go
// Package browser selects and starts the browser backend configured for the
// session.
package browser

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/internal/browser/chromium"
	"github.com/xkilldash9x/chatpilot/internal/browser/firefox"
	"github.com/xkilldash9x/chatpilot/internal/config"
	"github.com/xkilldash9x/chatpilot/internal/driver"
)

// Launcher opens a browser page. Tests substitute their own.
type Launcher func(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (driver.Driver, error)

// Launch starts the engine named by cfg.Engine.
func Launch(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (driver.Driver, error) {
	logger.Debug("Launching browser.", zap.String("engine", cfg.Engine), zap.Bool("headless", cfg.Headless))
	// Keep a failed launch from surfacing as a non-nil interface holding a nil page.
	switch cfg.Engine {
	case config.EngineChromium, "":
		page, err := chromium.Launch(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return page, nil
	case config.EngineFirefox:
		page, err := firefox.Launch(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return page, nil
	default:
		return nil, fmt.Errorf("unsupported browser engine %q", cfg.Engine)
	}
}

var _ Launcher = Launch
