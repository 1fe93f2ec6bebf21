// internal/chat/controller.go
// Package chat drives a web chat application through a real browser the way a
// person would: sign in, start conversations, toggle deep thinking, send
// messages and read the replies back.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/chatpilot/internal/browser"
	"github.com/xkilldash9x/chatpilot/internal/config"
	"github.com/xkilldash9x/chatpilot/internal/driver"
	"github.com/xkilldash9x/chatpilot/internal/locator"
)

// Controller owns one browser page signed in to the chat site. It is not
// safe for concurrent use.
type Controller struct {
	drv       driver.Driver
	cfg       config.Interface
	logger    *zap.Logger
	limiter   *rate.Limiter
	sessionID string

	// injected counts characters written to the compose field.
	injected int

	closeOnce sync.Once
	closeErr  error
}

// New wraps an already launched page. It does not sign in.
func New(drv driver.Driver, cfg config.Interface, logger *zap.Logger) *Controller {
	id := uuid.New().String()

	limit := rate.Inf
	if d := cfg.Chat().MinSendInterval; d > 0 {
		limit = rate.Every(d)
	}

	return &Controller{
		drv:       drv,
		cfg:       cfg,
		logger:    logger.Named("controller").With(zap.String("session_id", id)),
		limiter:   rate.NewLimiter(limit, 1),
		sessionID: id,
	}
}

// Open launches the configured browser and signs in with the configured
// credentials. On a failed login the browser is closed and the error wraps
// ErrLoginFailed.
func Open(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Controller, error) {
	return open(ctx, cfg, logger, browser.Launch)
}

func open(ctx context.Context, cfg config.Interface, logger *zap.Logger, launch browser.Launcher) (*Controller, error) {
	creds := cfg.Credentials()
	if creds.Email == "" || creds.Password == "" {
		return nil, fmt.Errorf("%w: credentials are not configured (set CHATPILOT_EMAIL and CHATPILOT_PASSWORD)", ErrLoginFailed)
	}

	drv, err := launch(ctx, cfg.Browser(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	c := New(drv, cfg, logger)
	if err := c.Login(ctx, creds.Email, creds.Password); err != nil {
		if closeErr := drv.Close(context.Background()); closeErr != nil {
			c.logger.Warn("Failed to close browser after login failure.", zap.Error(closeErr))
		}
		return nil, err
	}
	return c, nil
}

// SessionID identifies this controller in log output.
func (c *Controller) SessionID() string { return c.sessionID }

// InjectedChars is the running total of characters injected into the compose
// field across all sends.
func (c *Controller) InjectedChars() int { return c.injected }

// withTimeout runs fn with ctx bounded by d.
func withTimeout(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}

// IsAuthenticated reports whether the page is anywhere other than the
// sign-in page. A page whose address cannot be read counts as signed out.
func (c *Controller) IsAuthenticated(ctx context.Context) bool {
	signIn := c.cfg.Site().SignInURL()
	current, err := c.drv.CurrentURL(ctx)
	if err != nil {
		c.logger.Warn("Could not read the current page address.", zap.Error(err))
		return false
	}
	if driver.SameURL(current, signIn) {
		c.logger.Warn("User is not logged in.")
		return false
	}
	return true
}

// Login signs in and waits for the home page.
func (c *Controller) Login(ctx context.Context, email, password string) error {
	site := c.cfg.Site()
	loc := c.cfg.Locators()
	timeouts := c.cfg.Timeouts()

	fail := func(step string, err error) error {
		c.logger.Error("Login failed.", zap.String("step", step), zap.Error(err))
		return fmt.Errorf("%w: %s: %w", ErrLoginFailed, step, err)
	}

	c.logger.Info("Signing in.", zap.String("email", email))
	if err := c.drv.Navigate(ctx, site.SignInURL()); err != nil {
		return fail("open sign-in page", err)
	}

	err := withTimeout(ctx, timeouts.LoginForm, func(ctx context.Context) error {
		return c.drv.WaitVisible(ctx, loc.Email)
	})
	if err != nil {
		return fail("wait for sign-in form", err)
	}

	if err := c.drv.SendKeys(ctx, loc.Email, email); err != nil {
		return fail("enter email", err)
	}
	if err := c.drv.SendKeys(ctx, loc.Password, password); err != nil {
		return fail("enter password", err)
	}
	if err := c.drv.Click(ctx, loc.Terms); err != nil {
		return fail("accept terms", err)
	}
	if err := c.drv.Click(ctx, loc.Submit); err != nil {
		return fail("submit", err)
	}

	err = withTimeout(ctx, timeouts.Navigation, func(ctx context.Context) error {
		return c.drv.WaitURL(ctx, site.HomeURL())
	})
	if err != nil {
		return fail("wait for home page", err)
	}

	c.logger.Info("Login successful.")
	return nil
}

// Logout signs out through the account menu and waits for the sign-in page.
// ErrLogoutUnconfirmed means the menu was used but the sign-in page never
// appeared.
func (c *Controller) Logout(ctx context.Context) error {
	loc := c.cfg.Locators()
	timeouts := c.cfg.Timeouts()

	if err := c.clickWhenClickable(ctx, loc.AccountMenu, timeouts.Menu); err != nil {
		return fmt.Errorf("logout failed: open account menu: %w", err)
	}
	if err := c.clickWhenClickable(ctx, loc.LogoutItem, timeouts.Menu); err != nil {
		return fmt.Errorf("logout failed: click log out: %w", err)
	}

	err := withTimeout(ctx, timeouts.Navigation, func(ctx context.Context) error {
		return c.drv.WaitURL(ctx, c.cfg.Site().SignInURL())
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLogoutUnconfirmed, err)
	}

	c.logger.Info("Session closed properly.")
	return nil
}

// Close signs out when signed in and shuts the browser down. Logout problems
// are logged, not returned. Close is idempotent.
func (c *Controller) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		if c.IsAuthenticated(ctx) {
			if err := c.Logout(ctx); err != nil {
				if errors.Is(err, ErrLogoutUnconfirmed) {
					c.logger.Warn("Logout could not be confirmed.", zap.Error(err))
				} else {
					c.logger.Warn("Logout failed; closing the browser anyway.", zap.Error(err))
				}
			}
		}
		if err := c.drv.Close(ctx); err != nil {
			c.closeErr = fmt.Errorf("failed to close browser: %w", err)
			return
		}
		c.logger.Info("Session terminated.")
	})
	return c.closeErr
}

// NewConversation starts a fresh conversation. It does nothing when the
// session is signed out.
func (c *Controller) NewConversation(ctx context.Context) error {
	if !c.IsAuthenticated(ctx) {
		return nil
	}
	loc := c.cfg.Locators().NewChat
	err := withTimeout(ctx, c.cfg.Timeouts().NewChat, func(ctx context.Context) error {
		if err := c.drv.WaitPresent(ctx, loc); err != nil {
			return err
		}
		return c.drv.Click(ctx, loc)
	})
	if err != nil {
		c.logger.Error("Could not start a new conversation.", zap.Error(err))
		return fmt.Errorf("failed to start a new conversation: %w", err)
	}
	c.logger.Info("New conversation started.")
	return nil
}

// EnableDeepThink switches on the enhanced reasoning mode. It does nothing
// when the session is signed out.
func (c *Controller) EnableDeepThink(ctx context.Context) error {
	if !c.IsAuthenticated(ctx) {
		return nil
	}
	loc := c.cfg.Locators().DeepThink
	if err := c.clickWhenClickable(ctx, loc, c.cfg.Timeouts().DeepThink); err != nil {
		c.logger.Error("Could not enable deep think.", zap.Error(err))
		return fmt.Errorf("failed to enable deep think: %w", err)
	}
	c.logger.Info("Deep think enabled.")
	return nil
}

// clickWhenClickable waits up to d for l to become clickable, then clicks it.
func (c *Controller) clickWhenClickable(ctx context.Context, l locator.Locator, d time.Duration) error {
	return withTimeout(ctx, d, func(ctx context.Context) error {
		if err := c.drv.WaitClickable(ctx, l); err != nil {
			return err
		}
		return c.drv.Click(ctx, l)
	})
}
