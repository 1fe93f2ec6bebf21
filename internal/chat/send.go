// internal/chat/send.go
package chat

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/internal/driver"
)

// Page scripts. Each is a function body; the compose or loading-indicator
// locator arrives as arguments[0] (query) and arguments[1] (strategy).
const (
	readyScript = driver.ResolveElementJS + `
return document.readyState === 'complete' && !__chatpilotFind(arguments[0], arguments[1]);`

	clearScript = driver.ResolveElementJS + `
const input = __chatpilotFind(arguments[0], arguments[1]);
if (!input) { return false; }
input.value = '';
input.dispatchEvent(new Event('input', { bubbles: true }));
setTimeout(() => input.focus(), 100);
return true;`

	// injectScript appends arguments[2] through the prototype's native value
	// setter so framework-controlled inputs observe the change.
	injectScript = driver.ResolveElementJS + `
const input = __chatpilotFind(arguments[0], arguments[1]);
if (!input) { return false; }
const proto = input instanceof HTMLTextAreaElement ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
const nativeSetter = Object.getOwnPropertyDescriptor(proto, 'value').set;
nativeSetter.call(input, input.value + arguments[2]);
['keydown', 'input', 'change'].forEach(name => {
	input.dispatchEvent(new Event(name, { bubbles: true }));
});
return true;`

	valueScript = driver.ResolveElementJS + `
const input = __chatpilotFind(arguments[0], arguments[1]);
return input ? input.value : null;`
)

var errComposeMissing = errors.New("compose field not found")

// splitChunks cuts text into pieces of at most size characters (runes).
func splitChunks(text string, size int) []string {
	if size <= 0 || text == "" {
		return nil
	}
	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// sleep pauses for d unless ctx ends first.
func sleep(ctx context.Context, d time.Duration) error {
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

// classifyWait maps a bounded wait failure to kind when the wait itself timed
// out, and to KindDriver for anything else, including caller cancellation.
func classifyWait(ctx context.Context, kind Kind, err error) *SendError {
	if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return newSendError(kind, err)
	}
	return newSendError(KindDriver, err)
}

// Send types text into the compose field in chunks, verifies it, clicks the
// send control, waits for generation to finish and returns the text of the
// newest response block. Failures are returned as *SendError.
func (c *Controller) Send(ctx context.Context, text string) (string, error) {
	chat := c.cfg.Chat()
	logger := c.logger.With(zap.Int("chars", utf8.RuneCountInString(text)))

	reply, sendErr := c.send(ctx, text, logger)
	if sendErr != nil {
		logger.Error("Message send failed.",
			zap.Stringer("kind", sendErr.Kind),
			zap.Int("chunk", sendErr.Chunk),
			zap.Error(sendErr.Err),
		)
		return "", sendErr
	}

	logger.Info("Response received.",
		zap.Int("chunk_size", chat.ChunkSize),
		zap.Int("reply_chars", utf8.RuneCountInString(reply)),
	)
	return reply, nil
}

func (c *Controller) send(ctx context.Context, text string, logger *zap.Logger) (string, *SendError) {
	if text == "" {
		return "", newSendError(KindEmptyMessage, ErrEmptyMessage)
	}

	chat := c.cfg.Chat()
	loc := c.cfg.Locators()
	timeouts := c.cfg.Timeouts()
	compose := driver.LocatorArgs(loc.Compose)

	if err := c.limiter.Wait(ctx); err != nil {
		return "", newSendError(KindDriver, err)
	}

	var ready bool
	if err := c.drv.Evaluate(ctx, readyScript, &ready, driver.LocatorArgs(loc.LoadingIndicator)...); err != nil {
		return "", newSendError(KindDriver, err)
	}
	if !ready {
		return "", newSendError(KindNotReady, ErrNotReady)
	}

	var found bool
	if err := c.drv.Evaluate(ctx, clearScript, &found, compose...); err != nil {
		return "", newSendError(KindDriver, err)
	}
	if !found {
		return "", newSendError(KindNotReady, errComposeMissing)
	}
	if err := sleep(ctx, chat.ClearPause); err != nil {
		return "", newSendError(KindDriver, err)
	}

	chunks := splitChunks(text, chat.ChunkSize)
	for i, chunk := range chunks {
		args := append(append([]interface{}{}, compose...), chunk)
		if err := c.drv.Evaluate(ctx, injectScript, &found, args...); err != nil {
			return "", &SendError{Kind: KindDriver, Chunk: i, Err: err}
		}
		if !found {
			return "", &SendError{Kind: KindInjection, Chunk: i, Err: errComposeMissing}
		}
		if err := sleep(ctx, chat.ChunkPause); err != nil {
			return "", &SendError{Kind: KindDriver, Chunk: i, Err: err}
		}

		var value string
		if err := c.drv.Evaluate(ctx, valueScript, &value, compose...); err != nil {
			return "", &SendError{Kind: KindDriver, Chunk: i, Err: err}
		}
		if !strings.HasSuffix(value, chunk) {
			return "", &SendError{Kind: KindInjection, Chunk: i, Err: ErrInjectionMismatch}
		}
		c.injected += utf8.RuneCountInString(chunk)
		logger.Debug("Chunk injected.", zap.Int("chunk", i), zap.Int("of", len(chunks)))
	}

	var value string
	if err := c.drv.Evaluate(ctx, valueScript, &value, compose...); err != nil {
		return "", newSendError(KindDriver, err)
	}
	if value != text {
		return "", newSendError(KindValidation, ErrValidationMismatch)
	}

	err := withTimeout(ctx, timeouts.SendButton, func(ctx context.Context) error {
		return c.drv.WaitClickable(ctx, loc.SendButton)
	})
	if err == nil {
		humanoid := c.cfg.Browser().Humanoid
		err = c.drv.HumanClick(ctx, loc.SendButton, driver.ClickTiming{
			BeforeClick: humanoid.PreClickPause,
			AfterClick:  humanoid.PostClickPause,
		})
	}
	if err != nil {
		if ctx.Err() != nil {
			return "", newSendError(KindDriver, err)
		}
		return "", newSendError(KindSendControl, err)
	}
	logger.Debug("Message submitted; waiting for the response.")

	err = withTimeout(ctx, timeouts.Generation, func(ctx context.Context) error {
		return c.drv.WaitVisible(ctx, loc.SendIdle)
	})
	if err != nil {
		return "", classifyWait(ctx, KindGenerationTimeout, err)
	}

	var reply string
	err = withTimeout(ctx, timeouts.Response, func(ctx context.Context) error {
		if err := c.drv.WaitVisible(ctx, loc.LastResponse); err != nil {
			return err
		}
		var err error
		reply, err = c.drv.Text(ctx, loc.LastResponse)
		return err
	})
	if err != nil {
		return "", classifyWait(ctx, KindNoResponse, err)
	}
	return strings.TrimSpace(reply), nil
}
