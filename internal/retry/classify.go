package retry

import (
	"context"
	"errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind is the classification of an attempt failure.
type Kind int

const (
	KindNone Kind = iota
	KindRetryable
	KindFatal
	KindProtocol
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindRetryable:
		return "retryable"
	case KindFatal:
		return "fatal"
	case KindProtocol:
		return "protocol"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Retryable reports whether an operation may issue another attempt after a failure of
// this kind.
func (k Kind) Retryable() bool {
	return k == KindRetryable || k == KindProtocol
}

var retryableCodes = map[codes.Code]bool{
	codes.DeadlineExceeded:  true,
	codes.ResourceExhausted: true,
	codes.Aborted:           true,
	codes.Unavailable:       true,
}

// IsRetryableCode reports whether a status code is worth another attempt.
func IsRetryableCode(c codes.Code) bool {
	return retryableCodes[c]
}

// Classify maps an attempt failure to its Kind.
//
// A Canceled status sent by the service is fatal; only the caller's own
// context.Canceled (or ErrCancelled) classifies as KindCancelled.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrProtocol):
		return KindProtocol
	case errors.Is(err, ErrFatalTransport):
		return KindFatal
	case errors.Is(err, ErrRetryableTransport):
		return KindRetryable
	}

	if IsRetryableCode(Code(err)) {
		return KindRetryable
	}
	return KindFatal
}

// Code returns the gRPC status code carried by err. Bare context errors map to
// their status equivalents.
func Code(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if _, ok := status.FromError(err); ok {
		return status.Code(err)
	}
	if s := status.FromContextError(err); s.Code() != codes.Unknown {
		return s.Code()
	}
	return codes.Unknown
}
