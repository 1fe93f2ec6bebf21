// internal/humanoid/humanoid.go
// Package humanoid moves the pointer and clicks the way a person does: a
// curved, slightly shaky path to the target, a short hesitation, a press held
// for a few dozen milliseconds, and a pause after release.
package humanoid

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/internal/config"
)

// Humanoid tracks the pointer position across interactions with one page.
// It is safe for concurrent use, although the session controller drives it
// sequentially.
type Humanoid struct {
	mu         sync.Mutex
	cfg        config.HumanoidConfig
	logger     *zap.Logger
	exec       Executor
	rng        *rand.Rand
	currentPos Vector2D
	hasPos     bool
}

// New creates a Humanoid. A nil rng is seeded from the clock.
func New(cfg config.HumanoidConfig, logger *zap.Logger, exec Executor, rng *rand.Rand) *Humanoid {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Humanoid{
		cfg:    cfg,
		logger: logger.Named("humanoid"),
		exec:   exec,
		rng:    rng,
	}
}

// Position returns the last known pointer position and whether one is known.
func (h *Humanoid) Position() (Vector2D, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentPos, h.hasPos
}

// MoveTo moves the pointer to target. With simulation disabled the pointer
// jumps there in a single event.
func (h *Humanoid) MoveTo(ctx context.Context, target Vector2D) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.moveLocked(ctx, target)
}

func (h *Humanoid) moveLocked(ctx context.Context, target Vector2D) error {
	if !h.cfg.Enabled {
		if err := h.dispatchMove(ctx, target); err != nil {
			return err
		}
		h.currentPos, h.hasPos = target, true
		return nil
	}

	start := h.currentPos
	if !h.hasPos {
		// Unknown position: enter from a random point near the target.
		start = target.Add(Vector2D{
			X: (h.rng.Float64()-0.5)*200 + 50,
			Y: (h.rng.Float64()-0.5)*200 + 50,
		})
		if err := h.dispatchMove(ctx, start); err != nil {
			return err
		}
	}

	steps := stepCount(start.Dist(target), h.cfg.MinSteps, h.cfg.MaxSteps, h.rng)
	path := bezierPath(start, target, steps, h.cfg.CurveSpread, h.cfg.Jitter, h.rng)
	for _, p := range path {
		if err := h.dispatchMove(ctx, p); err != nil {
			return err
		}
		if err := h.exec.Sleep(ctx, stepDelay(h.cfg.StepDelay, h.rng)); err != nil {
			return err
		}
	}

	h.currentPos, h.hasPos = target, true
	return nil
}

// Click performs move, pause, press, hold, release, pause at target.
// before and after override the configured pauses when positive.
func (h *Humanoid) Click(ctx context.Context, target Vector2D, before, after time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if before <= 0 {
		before = h.cfg.PreClickPause
	}
	if after <= 0 {
		after = h.cfg.PostClickPause
	}

	if err := h.moveLocked(ctx, target); err != nil {
		return fmt.Errorf("failed to move pointer: %w", err)
	}
	if err := h.exec.Sleep(ctx, before); err != nil {
		return err
	}

	press := input.DispatchMouseEvent(input.MousePressed, target.X, target.Y).
		WithButton(input.Left).
		WithClickCount(1)
	if err := h.exec.DispatchMouseEvent(ctx, press); err != nil {
		return fmt.Errorf("failed to dispatch mousedown: %w", err)
	}

	if err := h.exec.Sleep(ctx, h.holdDuration()); err != nil {
		return err
	}

	release := input.DispatchMouseEvent(input.MouseReleased, target.X, target.Y).
		WithButton(input.Left).
		WithClickCount(1)
	if err := h.exec.DispatchMouseEvent(ctx, release); err != nil {
		return fmt.Errorf("failed to dispatch mouseup: %w", err)
	}

	h.logger.Debug("Pointer click dispatched.", zap.Float64("x", target.X), zap.Float64("y", target.Y))
	return h.exec.Sleep(ctx, after)
}

func (h *Humanoid) holdDuration() time.Duration {
	minMs, maxMs := h.cfg.ClickHoldMinMs, h.cfg.ClickHoldMaxMs
	if maxMs <= minMs {
		return time.Duration(minMs) * time.Millisecond
	}
	return time.Duration(minMs+h.rng.Intn(maxMs-minMs+1)) * time.Millisecond
}

func (h *Humanoid) dispatchMove(ctx context.Context, p Vector2D) error {
	return h.exec.DispatchMouseEvent(ctx, input.DispatchMouseEvent(input.MouseMoved, p.X, p.Y))
}
