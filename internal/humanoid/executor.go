// Filename: internal/humanoid/executor.go
package humanoid

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/input"
)

// Executor is the slice of the browser the pointer simulation needs. Tests
// substitute a recorder; production uses CDPExecutor.
type Executor interface {
	// Sleep pauses execution for a given duration (context-aware).
	Sleep(ctx context.Context, d time.Duration) error
	// DispatchMouseEvent sends a raw low-level mouse event.
	DispatchMouseEvent(ctx context.Context, p *input.DispatchMouseEventParams) error
}

// CDPExecutor dispatches through the chromedp target carried by ctx.
type CDPExecutor struct{}

// NewCDPExecutor creates a new production-ready executor.
func NewCDPExecutor() *CDPExecutor {
	return &CDPExecutor{}
}

func (e *CDPExecutor) Sleep(ctx context.Context, d time.Duration) error {
	return sleepContext(ctx, d)
}

func (e *CDPExecutor) DispatchMouseEvent(ctx context.Context, p *input.DispatchMouseEventParams) error {
	return p.Do(ctx)
}

// sleepContext is a utility for context-aware sleeps.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
