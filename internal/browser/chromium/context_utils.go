// internal/browser/chromium/context_utils.go
package chromium

import (
	"context"
	"errors"
	"time"
)

// CombineContext creates a context derived from ctx1 that inherits its values
// (the chromedp target lives there) and is canceled when either ctx1 or ctx2
// is done. ctx2's deadline is applied to the combined context, so a timed-out
// wait reports context.DeadlineExceeded; any other end of ctx2 is recorded as
// the cancellation cause.
func CombineContext(ctx1, ctx2 context.Context) (context.Context, context.CancelFunc) {
	base, cancelCause := context.WithCancelCause(ctx1)
	combinedCtx := context.Context(base)
	cancel := func() { cancelCause(context.Canceled) }

	dl, hasDeadline := ctx2.Deadline()
	if hasDeadline {
		var cancelDeadline context.CancelFunc
		combinedCtx, cancelDeadline = context.WithDeadline(base, dl)
		cancel = func() {
			cancelDeadline()
			cancelCause(context.Canceled)
		}
	}

	forward := func() {
		// The combined context carries the same deadline and expires on its own.
		if hasDeadline && errors.Is(ctx2.Err(), context.DeadlineExceeded) {
			return
		}
		cancelCause(context.Cause(ctx2))
	}
	if ctx2.Err() != nil {
		forward()
		return combinedCtx, cancel
	}

	go func() {
		select {
		case <-ctx2.Done():
			forward()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}

// valueOnlyContext keeps the values of its parent but drops its deadline and
// cancellation.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                   { return nil }
func (valueOnlyContext) Err() error                              { return nil }

// Detach returns a context that inherits values from ctx but is not canceled
// when ctx is. The browser allocator is rooted here so that it outlives the
// context passed to Launch.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
