// internal/browser/firefox/page.go
// Package firefox drives a Firefox page through the playwright driver.
package firefox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/internal/browser/stealth"
	"github.com/xkilldash9x/chatpilot/internal/config"
	"github.com/xkilldash9x/chatpilot/internal/driver"
	"github.com/xkilldash9x/chatpilot/internal/humanoid"
	"github.com/xkilldash9x/chatpilot/internal/locator"
)

const urlPollInterval = 250 * time.Millisecond

// Page is a single Firefox page. It implements driver.Driver.
type Page struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	bctx    playwright.BrowserContext
	page    playwright.Page
	logger  *zap.Logger
	human   *humanoid.Humanoid

	// playwright pages are not safe for concurrent use.
	mu     sync.Mutex
	closed bool
}

var _ driver.Driver = (*Page)(nil)

// Launch starts the playwright driver and a Firefox instance, then opens a
// page with the configured viewport and persona.
func Launch(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Page, error) {
	logger = logger.Named("firefox")

	runOpts := &playwright.RunOptions{
		Browsers: []string{"firefox"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}
	if cfg.InstallDriver {
		logger.Info("Installing playwright driver and Firefox...")
		if err := playwright.Install(runOpts); err != nil {
			return nil, fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	type launched struct {
		page *Page
		err  error
	}
	done := make(chan launched, 1)
	go func() {
		p, err := start(cfg, runOpts, logger)
		done <- launched{p, err}
	}()

	timeout := cfg.LaunchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var err error
	select {
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("browser failed to start or respond: %w", res.err)
		}
		logger.Info("Browser launched successfully and is responsive.")
		return res.page, nil
	case <-timer.C:
		err = fmt.Errorf("no response within %s", timeout)
	case <-ctx.Done():
		err = ctx.Err()
	}

	// Reap a late start so the browser process does not linger.
	go func() {
		if res := <-done; res.page != nil {
			_ = res.page.Close(context.Background())
		}
	}()
	return nil, fmt.Errorf("browser failed to start or respond: %w", err)
}

func start(cfg config.BrowserConfig, runOpts *playwright.RunOptions, logger *zap.Logger) (*Page, error) {
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		Args:     cfg.Args,
	}
	if cfg.ExecPath != "" {
		launchOpts.ExecutablePath = playwright.String(cfg.ExecPath)
	}
	browser, err := pw.Firefox.Launch(launchOpts)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	bctx, err := browser.NewContext(contextOptions(cfg))
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	personaJS, err := stealth.PersonaScript(cfg.Persona)
	if err == nil {
		err = bctx.AddInitScript(playwright.Script{Content: playwright.String(personaJS + "\n" + stealth.EvasionsJS)})
	}
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to apply persona: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	p := &Page{pw: pw, browser: browser, bctx: bctx, page: page, logger: logger}
	p.human = humanoid.New(cfg.Humanoid, logger, &mouseExecutor{mouse: page.Mouse()}, nil)
	return p, nil
}

func contextOptions(cfg config.BrowserConfig) playwright.BrowserNewContextOptions {
	opts := playwright.BrowserNewContextOptions{
		IgnoreHttpsErrors: playwright.Bool(cfg.IgnoreTLSErrors),
	}
	if cfg.Viewport.Width > 0 && cfg.Viewport.Height > 0 {
		opts.Viewport = &playwright.Size{Width: cfg.Viewport.Width, Height: cfg.Viewport.Height}
	}
	p := cfg.Persona
	if p.UserAgent != "" {
		opts.UserAgent = playwright.String(p.UserAgent)
	}
	if p.Locale != "" {
		opts.Locale = playwright.String(p.Locale)
	}
	if p.Timezone != "" {
		opts.TimezoneId = playwright.String(p.Timezone)
	}
	if lang := stealth.AcceptLanguage(p.Languages); lang != "" {
		opts.ExtraHttpHeaders = map[string]string{"Accept-Language": lang}
	}
	return opts
}

// selector renders a locator in playwright's engine-prefixed syntax.
func selector(l locator.Locator) string {
	return l.String()
}

// timeoutMs converts the ctx deadline into a playwright timeout. Zero means
// no timeout.
func timeoutMs(ctx context.Context) float64 {
	dl, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	ms := float64(time.Until(dl).Milliseconds())
	if ms < 1 {
		return 1
	}
	return ms
}

// translateError maps a playwright timeout onto context.DeadlineExceeded.
func translateError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return err
}

// do runs fn under the page lock after checking ctx and the closed flag.
func (p *Page) do(ctx context.Context, fn func(timeout float64) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return driver.ErrClosed
	}
	return translateError(ctx, fn(timeoutMs(ctx)))
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	err := p.do(ctx, func(timeout float64) error {
		_, err := p.page.Goto(url, playwright.PageGotoOptions{
			Timeout:   playwright.Float(timeout),
			WaitUntil: playwright.WaitUntilStateLoad,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (p *Page) CurrentURL(ctx context.Context) (string, error) {
	var u string
	err := p.do(ctx, func(float64) error {
		u = p.page.URL()
		return nil
	})
	return u, err
}

// WaitURL polls the page address until it matches url.
func (p *Page) WaitURL(ctx context.Context, url string) error {
	ticker := time.NewTicker(urlPollInterval)
	defer ticker.Stop()
	for {
		current, err := p.CurrentURL(ctx)
		if err != nil {
			return err
		}
		if driver.SameURL(current, url) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Page) waitFor(ctx context.Context, l locator.Locator, state *playwright.WaitForSelectorState) error {
	return p.do(ctx, func(timeout float64) error {
		return p.page.Locator(selector(l)).First().WaitFor(playwright.LocatorWaitForOptions{
			State:   state,
			Timeout: playwright.Float(timeout),
		})
	})
}

func (p *Page) WaitPresent(ctx context.Context, l locator.Locator) error {
	return p.waitFor(ctx, l, playwright.WaitForSelectorStateAttached)
}

func (p *Page) WaitVisible(ctx context.Context, l locator.Locator) error {
	return p.waitFor(ctx, l, playwright.WaitForSelectorStateVisible)
}

// WaitClickable waits for visibility, then polls until the element is enabled.
func (p *Page) WaitClickable(ctx context.Context, l locator.Locator) error {
	if err := p.WaitVisible(ctx, l); err != nil {
		return err
	}
	ticker := time.NewTicker(urlPollInterval)
	defer ticker.Stop()
	for {
		var enabled bool
		err := p.do(ctx, func(timeout float64) error {
			var err error
			enabled, err = p.page.Locator(selector(l)).First().IsEnabled(playwright.LocatorIsEnabledOptions{
				Timeout: playwright.Float(timeout),
			})
			return err
		})
		if err != nil {
			return err
		}
		if enabled {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Page) Click(ctx context.Context, l locator.Locator) error {
	return p.do(ctx, func(timeout float64) error {
		return p.page.Locator(selector(l)).First().Click(playwright.LocatorClickOptions{
			Timeout: playwright.Float(timeout),
		})
	})
}

func (p *Page) SendKeys(ctx context.Context, l locator.Locator, text string) error {
	return p.do(ctx, func(timeout float64) error {
		return p.page.Locator(selector(l)).First().PressSequentially(text, playwright.LocatorPressSequentiallyOptions{
			Timeout: playwright.Float(timeout),
		})
	})
}

// HumanClick moves the simulated pointer to the centre of the element's
// bounding box and clicks it there.
func (p *Page) HumanClick(ctx context.Context, l locator.Locator, timing driver.ClickTiming) error {
	var box *playwright.Rect
	err := p.do(ctx, func(timeout float64) error {
		loc := p.page.Locator(selector(l)).First()
		if err := loc.ScrollIntoViewIfNeeded(playwright.LocatorScrollIntoViewIfNeededOptions{
			Timeout: playwright.Float(timeout),
		}); err != nil {
			return err
		}
		var err error
		box, err = loc.BoundingBox(playwright.LocatorBoundingBoxOptions{Timeout: playwright.Float(timeout)})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", l, err)
	}
	if box == nil {
		return fmt.Errorf("%s: element has no layout box", l)
	}

	center := humanoid.Vector2D{X: box.X + box.Width/2, Y: box.Y + box.Height/2}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return driver.ErrClosed
	}
	return p.human.Click(ctx, center, timing.BeforeClick, timing.AfterClick)
}

func (p *Page) Text(ctx context.Context, l locator.Locator) (string, error) {
	var text string
	err := p.do(ctx, func(timeout float64) error {
		var err error
		text, err = p.page.Locator(selector(l)).First().InnerText(playwright.LocatorInnerTextOptions{
			Timeout: playwright.Float(timeout),
		})
		return err
	})
	return text, err
}

func (p *Page) Evaluate(ctx context.Context, script string, res interface{}, args ...interface{}) error {
	expr, err := driver.WrapScript(script, args...)
	if err != nil {
		return err
	}
	var raw interface{}
	err = p.do(ctx, func(float64) error {
		var err error
		raw, err = p.page.Evaluate(expr)
		return err
	})
	if err != nil {
		return fmt.Errorf("script evaluation failed: %w", err)
	}
	return driver.DecodeResult(raw, res)
}

// Close tears down the page, context, browser and driver. It is safe to call
// more than once.
func (p *Page) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	if err := p.page.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := p.bctx.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := p.browser.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := p.pw.Stop(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		err := errors.Join(errs...)
		p.logger.Warn("Browser did not close cleanly.", zap.Error(err))
		return fmt.Errorf("failed to close browser: %w", err)
	}
	p.logger.Info("Browser closed.")
	return nil
}

// pointer is the part of playwright.Mouse the pointer simulation drives.
type pointer interface {
	Move(x float64, y float64, options ...playwright.MouseMoveOptions) error
	Down(options ...playwright.MouseDownOptions) error
	Up(options ...playwright.MouseUpOptions) error
}

// mouseExecutor replays the simulated pointer events through playwright.
type mouseExecutor struct {
	mouse pointer
}

func (m *mouseExecutor) Sleep(ctx context.Context, d time.Duration) error {
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

func (m *mouseExecutor) DispatchMouseEvent(ctx context.Context, ev *input.DispatchMouseEventParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch ev.Type {
	case input.MouseMoved:
		return m.mouse.Move(ev.X, ev.Y)
	case input.MousePressed:
		return m.mouse.Down(playwright.MouseDownOptions{ClickCount: playwright.Int(int(ev.ClickCount))})
	case input.MouseReleased:
		return m.mouse.Up(playwright.MouseUpOptions{ClickCount: playwright.Int(int(ev.ClickCount))})
	default:
		return fmt.Errorf("unsupported mouse event %q", ev.Type)
	}
}
