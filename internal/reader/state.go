package reader

import (
	"bytes"
	"github.com/litetable/litetable-reader/internal/retry"
	"github.com/litetable/litetable-reader/internal/rowset"
)

// attemptState is the resumption state of one read operation. Transitions return a
// new value and never modify the receiver.
type attemptState struct {
	// remaining is what a retry must still ask for.
	remaining rowset.RowSet
	// limit is the remaining row limit; meaningful only when limited is set.
	limit   int64
	limited bool

	rowsEmitted int64
	lastKey     rowset.Key

	// attempt is the 1-based number of the attempt in flight.
	attempt int
	// failures counts failed attempts since the last delivered row.
	failures int
	lastKind retry.Kind
}

func newAttemptState(spec ReadSpec) attemptState {
	s := attemptState{
		remaining: rowset.FullTable(),
		limit:     spec.Limit,
		limited:   spec.Limit > 0,
	}
	if spec.RowSet != nil {
		s.remaining = *spec.RowSet
	}
	return s
}

// started moves to the next attempt.
func (s attemptState) started() attemptState {
	s.attempt++
	return s
}

// delivered records a row handed to the caller. Delivering a row clears the
// consecutive failure count.
func (s attemptState) delivered(key rowset.Key) attemptState {
	s.rowsEmitted++
	if s.limited {
		s.limit--
	}
	s.lastKey = bytes.Clone(key)
	s.remaining = s.remaining.AdvancePast(key)
	s.failures = 0
	return s
}

// scanned records the service's last scanned row key. Nothing was delivered, so the
// counters and failure count are untouched.
func (s attemptState) scanned(key rowset.Key) attemptState {
	if s.lastKey != nil && key.Compare(s.lastKey) <= 0 {
		return s
	}
	s.lastKey = bytes.Clone(key)
	s.remaining = s.remaining.AdvancePast(key)
	return s
}

// failed records a failed attempt.
func (s attemptState) failed(kind retry.Kind) attemptState {
	s.failures++
	s.lastKind = kind
	return s
}

// complete reports whether nothing is left to read: the limit is used up or every
// requested key and range has been consumed.
func (s attemptState) complete() bool {
	return (s.limited && s.limit <= 0) || s.remaining.IsExhausted()
}
