// internal/chat/errors.go
package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrLoginFailed is returned when the sign-in flow does not reach the home page.
	ErrLoginFailed = errors.New("login failed")
	// ErrLogoutUnconfirmed is returned when the sign-in page did not appear after logging out.
	ErrLogoutUnconfirmed = errors.New("logout not confirmed")

	ErrEmptyMessage       = errors.New("message is empty")
	ErrNotReady           = errors.New("chat page is not ready for input")
	ErrInjectionMismatch  = errors.New("chunk injection failed")
	ErrValidationMismatch = errors.New("compose field does not match the message")
	ErrSendControl        = errors.New("send control unavailable")
	ErrGenerationTimeout  = errors.New("response generation did not finish in time")
	ErrNoResponse         = errors.New("no response block found")
	ErrDriver             = errors.New("browser driver failure")
)

// Kind classifies a send failure.
type Kind int

const (
	KindDriver Kind = iota
	KindEmptyMessage
	KindNotReady
	KindInjection
	KindValidation
	KindSendControl
	KindGenerationTimeout
	KindNoResponse
)

var kindSentinels = map[Kind]error{
	KindDriver:            ErrDriver,
	KindEmptyMessage:      ErrEmptyMessage,
	KindNotReady:          ErrNotReady,
	KindInjection:         ErrInjectionMismatch,
	KindValidation:        ErrValidationMismatch,
	KindSendControl:       ErrSendControl,
	KindGenerationTimeout: ErrGenerationTimeout,
	KindNoResponse:        ErrNoResponse,
}

func (k Kind) sentinel() error {
	if err, ok := kindSentinels[k]; ok {
		return err
	}
	return ErrDriver
}

func (k Kind) String() string {
	switch k {
	case KindDriver:
		return "driver"
	case KindEmptyMessage:
		return "empty_message"
	case KindNotReady:
		return "not_ready"
	case KindInjection:
		return "injection"
	case KindValidation:
		return "validation"
	case KindSendControl:
		return "send_control"
	case KindGenerationTimeout:
		return "generation_timeout"
	case KindNoResponse:
		return "no_response"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// SendError reports why Send did not produce a reply. errors.Is matches the
// sentinel of its Kind as well as the underlying cause.
type SendError struct {
	Kind Kind
	// Chunk is the zero-based index of the chunk that failed, or -1.
	Chunk int
	Err   error
}

func newSendError(kind Kind, err error) *SendError {
	return &SendError{Kind: kind, Chunk: -1, Err: err}
}

func (e *SendError) Error() string {
	msg := e.Kind.sentinel().Error()
	if e.Chunk >= 0 {
		msg = fmt.Sprintf("%s (chunk %d)", msg, e.Chunk)
	}
	if e.Err != nil && e.Err != e.Kind.sentinel() {
		msg += ": " + e.Err.Error()
	}
	return "send failed: " + msg
}

func (e *SendError) Unwrap() error { return e.Err }

func (e *SendError) Is(target error) bool {
	return target == e.Kind.sentinel()
}
