// internal/browser/chromium/page_test.go
package chromium

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/chatpilot/internal/config"
	"github.com/xkilldash9x/chatpilot/internal/driver"
	"github.com/xkilldash9x/chatpilot/internal/humanoid"
	"github.com/xkilldash9x/chatpilot/internal/locator"
)

func TestContentCenter(t *testing.T) {
	center, err := contentCenter(dom.Quad{10, 20, 110, 20, 110, 60, 10, 60})
	require.NoError(t, err)
	assert.Equal(t, humanoid.Vector2D{X: 60, Y: 40}, center)

	_, err = contentCenter(dom.Quad{})
	assert.Error(t, err)
}

func TestQueryOptions(t *testing.T) {
	assert.Len(t, queryOptions(locator.CSS("#chat-input")), 1)
	assert.Len(t, queryOptions(locator.XPath("//button")), 1)
}

const fixturePage = `<!DOCTYPE html>
<html><body>
<textarea id="chat-input"></textarea>
<button id="send" onclick="document.getElementById('out').textContent = 'clicked ' + document.getElementById('chat-input').value">Send</button>
<button id="disabled" disabled>Nope</button>
<div id="out"></div>
</body></html>`

// newFixtureServer serves the test page. Every path returns the same document.
func newFixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, fixturePage)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// newDetachedPage returns a Page with no browser behind it. chromedp rejects
// every action on it, which is enough to exercise the error mapping.
func newDetachedPage() *Page {
	return &Page{
		ctx:         context.Background(),
		cancel:      func() {},
		allocCancel: func() {},
		logger:      zap.NewNop(),
	}
}

func TestRunActionsErrorMapping(t *testing.T) {
	page := newDetachedPage()
	target := locator.CSS("#chat-input")

	t.Run("expired wait reports the deadline", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
			<-ctx.Done()
			err := page.WaitVisible(ctx, target)
			cancel()
			require.ErrorIs(t, err, context.DeadlineExceeded, "iteration %d", i)
		}
	})

	t.Run("deadline from a parent context", func(t *testing.T) {
		parent, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		defer cancel()
		<-parent.Done()
		ctx, cancelChild := context.WithCancel(parent)
		defer cancelChild()

		assert.ErrorIs(t, page.WaitClickable(ctx, target), context.DeadlineExceeded)
	})

	t.Run("caller cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := page.WaitVisible(ctx, target)
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("live context surfaces the driver error", func(t *testing.T) {
		err := page.WaitPresent(context.Background(), target)
		assert.ErrorIs(t, err, chromedp.ErrInvalidContext)
	})

	t.Run("closed page", func(t *testing.T) {
		closed := newDetachedPage()
		closed.closed = true
		assert.ErrorIs(t, closed.Click(context.Background(), target), driver.ErrClosed)
	})
}

// TestPageIntegration drives a real Chromium. It runs only when
// CHATPILOT_BROWSER_TESTS is set.
func TestPageIntegration(t *testing.T) {
	if testing.Short() || os.Getenv("CHATPILOT_BROWSER_TESTS") == "" {
		t.Skip("set CHATPILOT_BROWSER_TESTS=1 to run browser integration tests")
	}

	srv := newFixtureServer(t)
	cfg := config.NewDefaultConfig().Browser()
	cfg.Humanoid.StepDelay = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	page, err := Launch(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer page.Close(context.Background())

	require.NoError(t, page.Navigate(ctx, srv.URL))
	require.NoError(t, page.WaitURL(ctx, srv.URL+"/"))

	compose := locator.CSS("#chat-input")
	require.NoError(t, page.WaitVisible(ctx, compose))
	require.NoError(t, page.SendKeys(ctx, compose, "hello"))

	var value string
	require.NoError(t, page.Evaluate(ctx, driver.ResolveElementJS+"\nreturn __chatpilotFind(arguments[0], arguments[1]).value;", &value, driver.LocatorArgs(compose)...))
	assert.Equal(t, "hello", value)

	require.NoError(t, page.HumanClick(ctx, locator.XPath("//button[@id='send']"), driver.ClickTiming{BeforeClick: time.Millisecond, AfterClick: time.Millisecond}))
	text, err := page.Text(ctx, locator.CSS("#out"))
	require.NoError(t, err)
	assert.Equal(t, "clicked hello", text)

	t.Run("disabled element never becomes clickable", func(t *testing.T) {
		waitCtx, waitCancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer waitCancel()
		err := page.WaitClickable(waitCtx, locator.CSS("#disabled"))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	require.NoError(t, page.Close(context.Background()))
	assert.NoError(t, page.Close(context.Background()), "Close must be idempotent")
	assert.ErrorIs(t, page.Navigate(ctx, srv.URL), driver.ErrClosed)
}
