// internal/chat/fake_test.go
package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xkilldash9x/chatpilot/internal/config"
	"github.com/xkilldash9x/chatpilot/internal/driver"
	"github.com/xkilldash9x/chatpilot/internal/locator"
)

// fakePage is a stateful stand-in for the chat page. It understands the
// controller's page scripts and keeps the compose field value in memory.
type fakePage struct {
	mu  sync.Mutex
	loc locator.Set

	url            string
	ready          bool
	composeMissing bool
	// dropChunk is the index of an injection that is silently lost, or -1.
	dropChunk int
	// tamperValue prefixes the compose value on read, which keeps every
	// suffix check passing but breaks the final equality check.
	tamperValue    bool
	sendClickable  bool
	generationDone bool
	responses      []string

	compose  string
	injected []string
	events   []string
	closed   int
}

var _ driver.Driver = (*fakePage)(nil)

func newFakePage(cfg *config.Config) *fakePage {
	return &fakePage{
		loc:            cfg.Locators(),
		url:            cfg.Site().HomeURL(),
		ready:          true,
		dropChunk:      -1,
		sendClickable:  true,
		generationDone: true,
	}
}

func (f *fakePage) record(event string) {
	f.events = append(f.events, event)
}

func (f *fakePage) Events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func (f *fakePage) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("navigate")
	f.url = url
	return nil
}

func (f *fakePage) CurrentURL(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url, nil
}

func (f *fakePage) WaitURL(ctx context.Context, url string) error {
	f.mu.Lock()
	match := driver.SameURL(f.url, url)
	f.mu.Unlock()
	if match {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakePage) WaitPresent(ctx context.Context, l locator.Locator) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("wait-present " + l.Query)
	return nil
}

// WaitVisible blocks on the idle state until generation is done and on the
// response block until a response exists.
func (f *fakePage) WaitVisible(ctx context.Context, l locator.Locator) error {
	f.mu.Lock()
	var blocked bool
	switch l {
	case f.loc.SendIdle:
		blocked = !f.generationDone
	case f.loc.LastResponse:
		blocked = len(f.responses) == 0
	}
	f.mu.Unlock()
	if blocked {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (f *fakePage) WaitClickable(ctx context.Context, l locator.Locator) error {
	f.mu.Lock()
	blocked := l == f.loc.SendButton && !f.sendClickable
	f.mu.Unlock()
	if blocked {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (f *fakePage) Click(ctx context.Context, l locator.Locator) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("click " + l.Query)
	return nil
}

func (f *fakePage) SendKeys(ctx context.Context, l locator.Locator, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("keys " + l.Query)
	return nil
}

func (f *fakePage) HumanClick(ctx context.Context, l locator.Locator, timing driver.ClickTiming) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l == f.loc.SendButton {
		f.record("send-click")
	} else {
		f.record("human-click " + l.Query)
	}
	return nil
}

func (f *fakePage) Text(ctx context.Context, l locator.Locator) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l != f.loc.LastResponse || len(f.responses) == 0 {
		return "", fmt.Errorf("no text for %s", l)
	}
	return f.responses[len(f.responses)-1], nil
}

func (f *fakePage) Evaluate(ctx context.Context, script string, res interface{}, args ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch script {
	case readyScript:
		f.record("ready")
		*(res.(*bool)) = f.ready
	case clearScript:
		f.record("clear")
		f.compose = ""
		*(res.(*bool)) = !f.composeMissing
	case injectScript:
		f.record("inject")
		chunk := args[2].(string)
		if len(f.injected) != f.dropChunk {
			f.compose += chunk
		}
		f.injected = append(f.injected, chunk)
		*(res.(*bool)) = !f.composeMissing
	case valueScript:
		f.record("read")
		value := f.compose
		if f.tamperValue {
			value = "x" + value
		}
		*(res.(*string)) = value
	default:
		return fmt.Errorf("unexpected script")
	}
	return nil
}

func (f *fakePage) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

// testConfig returns defaults with pauses removed and short timeouts.
func testConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.ChatCfg.ChunkPause = 0
	cfg.ChatCfg.ClearPause = 0
	cfg.TimeoutsCfg.SendButton = 50 * time.Millisecond
	cfg.TimeoutsCfg.Generation = 50 * time.Millisecond
	cfg.TimeoutsCfg.Response = 50 * time.Millisecond
	cfg.TimeoutsCfg.Navigation = 50 * time.Millisecond
	cfg.TimeoutsCfg.Menu = 50 * time.Millisecond
	cfg.TimeoutsCfg.NewChat = 50 * time.Millisecond
	cfg.TimeoutsCfg.DeepThink = 50 * time.Millisecond
	cfg.TimeoutsCfg.LoginForm = 50 * time.Millisecond
	return cfg
}
