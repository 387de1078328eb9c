package retry

import (
	"errors"
	"fmt"
)

// The error taxonomy of a read operation. Every terminal error returned to a caller
// matches exactly one of these with errors.Is.
var (
	ErrRetryableTransport   = errors.New("retryable transport error")
	ErrFatalTransport       = errors.New("fatal transport error")
	ErrProtocol             = errors.New("protocol error")
	ErrCancelled            = errors.New("operation cancelled")
	ErrRetryBudgetExhausted = errors.New("retry budget exhausted")
)

// Error wraps a taxonomy sentinel with context and the error that caused it.
type Error struct {
	err     error  // the taxonomy sentinel
	context string // additional error context
	cause   error  // underlying transport or protocol error, may be nil
}

// Error satisfies the error interface
func (e *Error) Error() string {
	msg := e.err.Error()
	if e.context != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.context)
	}
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

// Unwrap exposes both the sentinel and the cause, so errors.Is matches the taxonomy
// and status.Code still finds a gRPC status carried by the cause.
func (e *Error) Unwrap() []error {
	if e.cause == nil {
		return []error{e.err}
	}
	return []error{e.err, e.cause}
}

// Cause returns the underlying error.
func (e *Error) Cause() error {
	return e.cause
}

// Wrap creates an Error for sentinel caused by cause.
func Wrap(sentinel, cause error, format string, args ...any) *Error {
	return &Error{
		err:     sentinel,
		context: fmt.Sprintf(format, args...),
		cause:   cause,
	}
}
