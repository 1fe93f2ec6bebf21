// File: internal/driver/driver.go
// Package driver defines the browser contract the chat controller depends on.
// Backends (chromedp, playwright) implement it; tests replace it with doubles.
package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/chatpilot/internal/locator"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrClosed is returned by every operation on a page after Close.
var ErrClosed = errors.New("browser page is closed")

// ClickTiming shapes a human-like click: the pause after the pointer reaches
// the element and the pause after the button is released.
type ClickTiming struct {
	BeforeClick time.Duration
	AfterClick  time.Duration
}

// Driver is a single browser page. All waits are bounded by the deadline of
// the supplied context; an expired wait returns an error matching
// context.DeadlineExceeded.
type Driver interface {
	// Navigate loads url in the page.
	Navigate(ctx context.Context, url string) error
	// CurrentURL returns the address of the current document.
	CurrentURL(ctx context.Context) (string, error)
	// WaitURL blocks until the current address equals url.
	WaitURL(ctx context.Context, url string) error

	// WaitPresent blocks until the element is attached to the DOM.
	WaitPresent(ctx context.Context, l locator.Locator) error
	// WaitVisible blocks until the element is rendered and visible.
	WaitVisible(ctx context.Context, l locator.Locator) error
	// WaitClickable blocks until the element is visible and enabled.
	WaitClickable(ctx context.Context, l locator.Locator) error

	// Click clicks the element directly.
	Click(ctx context.Context, l locator.Locator) error
	// SendKeys types text into the element.
	SendKeys(ctx context.Context, l locator.Locator, text string) error
	// HumanClick moves the pointer to the element, pauses, clicks and pauses again.
	HumanClick(ctx context.Context, l locator.Locator, timing ClickTiming) error
	// Text returns the visible text of the element.
	Text(ctx context.Context, l locator.Locator) (string, error)

	// Evaluate runs script in the page and decodes its JSON result into res
	// (res may be nil). script is a function body; args are available to it as
	// arguments[0..n].
	Evaluate(ctx context.Context, script string, res interface{}, args ...interface{}) error

	// Close releases the page and its browser.
	Close(ctx context.Context) error
}

// WrapScript turns a function body into a self-invoking expression with the
// JSON-encoded args bound to its arguments object.
func WrapScript(body string, args ...interface{}) (string, error) {
	if args == nil {
		args = []interface{}{}
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("failed to encode script arguments: %w", err)
	}
	return fmt.Sprintf("(function(){\n%s\n}).apply(null, %s)", body, encoded), nil
}

// DecodeResult copies a loosely typed evaluation result (as returned by
// drivers that hand back interface{}) into res.
func DecodeResult(raw interface{}, res interface{}) error {
	if res == nil {
		return nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to encode evaluation result: %w", err)
	}
	if err := json.Unmarshal(b, res); err != nil {
		return fmt.Errorf("failed to decode evaluation result: %w", err)
	}
	return nil
}

// ResolveElementJS is a page-side helper that resolves a locator inside
// scripts: __chatpilotFind(query, by) returns the element or null.
const ResolveElementJS = `function __chatpilotFind(q, by) {
	if (by === 'xpath' || (!by && (q.charAt(0) === '/' || q.charAt(0) === '('))) {
		return document.evaluate(q, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
	}
	return document.querySelector(q);
}`

// LocatorArgs flattens a locator into the (query, by) argument pair expected
// by ResolveElementJS.
func LocatorArgs(l locator.Locator) []interface{} {
	by := string(locator.ByCSS)
	if l.IsXPath() {
		by = string(locator.ByXPath)
	}
	return []interface{}{l.Query, by}
}

// SameURL reports whether two addresses name the same page, ignoring a
// trailing slash and any fragment.
func SameURL(a, b string) bool {
	return normalizeURL(a) == normalizeURL(b)
}

func normalizeURL(u string) string {
	if i := strings.IndexByte(u, '#'); i >= 0 {
		u = u[:i]
	}
	return strings.TrimRight(u, "/")
}
