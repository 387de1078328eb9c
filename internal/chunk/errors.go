package chunk

import (
	"fmt"
	"github.com/litetable/litetable-reader/internal/retry"
)

// ProtocolError reports a chunk sequence that cannot be assembled into rows. It
// matches retry.ErrProtocol with errors.Is.
type ProtocolError struct {
	RowKey  []byte // row open when the violation was detected, if any
	context string
}

// Error satisfies the error interface
func (e *ProtocolError) Error() string {
	if e.RowKey == nil {
		return fmt.Sprintf("%s: %s", retry.ErrProtocol, e.context)
	}
	return fmt.Sprintf("%s: %s (row %q)", retry.ErrProtocol, e.context, e.RowKey)
}

// Is matches the protocol sentinel.
func (e *ProtocolError) Is(target error) bool {
	return target == retry.ErrProtocol
}

func newError(rowKey []byte, format string, args ...any) *ProtocolError {
	return &ProtocolError{
		RowKey:  rowKey,
		context: fmt.Sprintf(format, args...),
	}
}
