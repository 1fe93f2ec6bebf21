// internal/browser/chromium/page.go
// Package chromium drives a Chromium tab over the DevTools protocol with
// chromedp. It either launches a local browser or attaches to a remote
// DevTools endpoint.
package chromium

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/internal/browser/stealth"
	"github.com/xkilldash9x/chatpilot/internal/config"
	"github.com/xkilldash9x/chatpilot/internal/driver"
	"github.com/xkilldash9x/chatpilot/internal/humanoid"
	"github.com/xkilldash9x/chatpilot/internal/locator"
)

const urlPollInterval = 250 * time.Millisecond

// Page is a single Chromium tab. It implements driver.Driver.
type Page struct {
	ctx         context.Context // tab context, carries the chromedp target
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      *zap.Logger
	human       *humanoid.Humanoid

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

var _ driver.Driver = (*Page)(nil)

// Launch starts (or attaches to) a browser, opens a tab, applies the stealth
// persona and verifies the tab responds within cfg.LaunchTimeout.
func Launch(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Page, error) {
	logger = logger.Named("chromium")

	// The allocator must outlive ctx, which callers often bound with a timeout.
	root := Detach(ctx)

	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if cfg.RemoteURL != "" {
		logger.Info("Attaching to remote browser...", zap.String("url", cfg.RemoteURL))
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(root, cfg.RemoteURL)
	} else {
		logger.Info("Initializing browser allocator...", zap.Bool("headless", cfg.Headless))
		allocCtx, allocCancel = chromedp.NewExecAllocator(root, AllocatorOptions(cfg)...)
	}

	sugar := logger.Sugar()
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Debugf),
	)

	persona, err := stealth.Apply(cfg.Persona, logger)
	if err != nil {
		tabCancel()
		allocCancel()
		return nil, err
	}

	// The first Run allocates the browser, so it must not carry a deadline
	// of its own: cancelling it would kill the browser. Bound it from outside.
	probe := append(chromedp.Tasks{}, persona...)
	probe = append(probe, chromedp.Navigate("about:blank"))
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(tabCtx, probe)
	}()

	timeout := cfg.LaunchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err = <-done:
	case <-timer.C:
		err = fmt.Errorf("no response within %s", timeout)
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("browser failed to start or respond: %w", err)
	}

	p := &Page{
		ctx:         tabCtx,
		cancel:      tabCancel,
		allocCancel: allocCancel,
		logger:      logger,
	}
	p.human = humanoid.New(cfg.Humanoid, logger, humanoid.NewCDPExecutor(), nil)

	logger.Info("Browser launched successfully and is responsive.")
	return p, nil
}

// queryOptions maps a locator to the chromedp selector strategy.
func queryOptions(l locator.Locator) []chromedp.QueryOption {
	if l.IsXPath() {
		return []chromedp.QueryOption{chromedp.BySearch}
	}
	return []chromedp.QueryOption{chromedp.ByQuery}
}

// runActions executes actions on the tab, bounded by both the tab lifetime
// and the caller's ctx.
func (p *Page) runActions(ctx context.Context, actions ...chromedp.Action) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return driver.ErrClosed
	}

	runCtx, cancel := CombineContext(p.ctx, ctx)
	defer cancel()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		// Surface the deadline rather than whatever the protocol reported.
		if runCtx.Err() != nil {
			return context.Cause(runCtx)
		}
		return err
	}
	return nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := p.runActions(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (p *Page) CurrentURL(ctx context.Context) (string, error) {
	var u string
	if err := p.runActions(ctx, chromedp.Location(&u)); err != nil {
		return "", err
	}
	return u, nil
}

// WaitURL polls the document location until it matches url.
func (p *Page) WaitURL(ctx context.Context, url string) error {
	ticker := time.NewTicker(urlPollInterval)
	defer ticker.Stop()
	for {
		current, err := p.CurrentURL(ctx)
		if err == nil && driver.SameURL(current, url) {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, driver.ErrClosed) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Page) WaitPresent(ctx context.Context, l locator.Locator) error {
	return p.runActions(ctx, chromedp.WaitReady(l.Query, queryOptions(l)...))
}

func (p *Page) WaitVisible(ctx context.Context, l locator.Locator) error {
	return p.runActions(ctx, chromedp.WaitVisible(l.Query, queryOptions(l)...))
}

func (p *Page) WaitClickable(ctx context.Context, l locator.Locator) error {
	opts := queryOptions(l)
	return p.runActions(ctx,
		chromedp.WaitVisible(l.Query, opts...),
		chromedp.WaitEnabled(l.Query, opts...),
	)
}

func (p *Page) Click(ctx context.Context, l locator.Locator) error {
	return p.runActions(ctx, chromedp.Click(l.Query, append(queryOptions(l), chromedp.NodeVisible)...))
}

func (p *Page) SendKeys(ctx context.Context, l locator.Locator, text string) error {
	return p.runActions(ctx, chromedp.SendKeys(l.Query, text, append(queryOptions(l), chromedp.NodeVisible)...))
}

// HumanClick scrolls the element into view and clicks the centre of its
// content box with the simulated pointer.
func (p *Page) HumanClick(ctx context.Context, l locator.Locator, timing driver.ClickTiming) error {
	opts := queryOptions(l)
	return p.runActions(ctx,
		chromedp.ScrollIntoView(l.Query, opts...),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var nodes []*cdp.Node
			if err := chromedp.Nodes(l.Query, &nodes, append(opts, chromedp.AtLeast(1))...).Do(ctx); err != nil {
				return fmt.Errorf("failed to resolve %s: %w", l, err)
			}
			box, err := dom.GetBoxModel().WithNodeID(nodes[0].NodeID).Do(ctx)
			if err != nil {
				return fmt.Errorf("failed to get box model for %s: %w", l, err)
			}
			center, err := contentCenter(box.Content)
			if err != nil {
				return fmt.Errorf("%s: %w", l, err)
			}
			return p.human.Click(ctx, center, timing.BeforeClick, timing.AfterClick)
		}),
	)
}

// contentCenter returns the centroid of a box model quad (four x,y pairs).
func contentCenter(q dom.Quad) (humanoid.Vector2D, error) {
	if len(q) != 8 {
		return humanoid.Vector2D{}, fmt.Errorf("element has no layout box")
	}
	var c humanoid.Vector2D
	for i := 0; i < 8; i += 2 {
		c.X += q[i]
		c.Y += q[i+1]
	}
	return c.Mul(0.25), nil
}

func (p *Page) Text(ctx context.Context, l locator.Locator) (string, error) {
	var text string
	if err := p.runActions(ctx, chromedp.Text(l.Query, &text, append(queryOptions(l), chromedp.NodeVisible)...)); err != nil {
		return "", err
	}
	return text, nil
}

func (p *Page) Evaluate(ctx context.Context, script string, res interface{}, args ...interface{}) error {
	expr, err := driver.WrapScript(script, args...)
	if err != nil {
		return err
	}
	var raw []byte
	if err := p.runActions(ctx, chromedp.Evaluate(expr, &raw)); err != nil {
		return fmt.Errorf("script evaluation failed: %w", err)
	}
	if res == nil || len(raw) == 0 {
		return nil
	}
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(raw, res); err != nil {
		return fmt.Errorf("failed to decode evaluation result: %w", err)
	}
	return nil
}

// Close closes the tab and shuts the browser down. It is safe to call more
// than once.
func (p *Page) Close(ctx context.Context) error {
	var err error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		done := make(chan error, 1)
		go func() {
			done <- chromedp.Cancel(p.ctx)
		}()
		select {
		case err = <-done:
		case <-ctx.Done():
			err = ctx.Err()
		}
		p.cancel()
		p.allocCancel()

		if err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Warn("Browser did not close cleanly.", zap.Error(err))
			err = fmt.Errorf("failed to close browser: %w", err)
		} else {
			err = nil
			p.logger.Info("Browser closed.")
		}
	})
	return err
}
