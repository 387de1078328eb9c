package retry

import (
	"context"
	"errors"
	"fmt"
	"github.com/cenkalti/backoff/v4"
	"time"
)

const (
	// DefaultMaxRetries is the number of consecutive failed attempts an operation
	// tolerates when the caller does not choose one.
	DefaultMaxRetries = 4

	defaultInitial    = 100 * time.Millisecond
	defaultMax        = 60 * time.Second
	defaultMultiplier = 2.0
)

// Policy decides how long to wait between attempts and when to give up.
type Policy struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	// MaxRetries is the number of consecutive attempts allowed before the operation
	// fails. Zero and one both allow a single attempt with no retry.
	MaxRetries int
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		Initial:    defaultInitial,
		Max:        defaultMax,
		Multiplier: defaultMultiplier,
		MaxRetries: DefaultMaxRetries,
	}
}

// Validate reports every invalid field of p.
func (p Policy) Validate() error {
	var errGrp []error
	if p.Initial <= 0 {
		errGrp = append(errGrp, errors.New("initial backoff must be positive"))
	}
	if p.Max < p.Initial {
		errGrp = append(errGrp, fmt.Errorf("max backoff %s is below initial backoff %s", p.Max, p.Initial))
	}
	if p.Multiplier < 1 {
		errGrp = append(errGrp, fmt.Errorf("backoff multiplier %.2f must be at least 1", p.Multiplier))
	}
	if p.MaxRetries < 0 {
		errGrp = append(errGrp, errors.New("max retries cannot be negative"))
	}

	return errors.Join(errGrp...)
}

// WithMaxRetries returns a copy of p with a different retry ceiling.
func (p Policy) WithMaxRetries(n int) Policy {
	p.MaxRetries = n
	return p
}

// Delay returns the wait before retry number n (1 for the first retry). It is
// non-decreasing in n and never exceeds Max.
func (p Policy) Delay(n int) time.Duration {
	if n <= 0 {
		return 0
	}

	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.Initial,
		RandomizationFactor: 0,
		Multiplier:          p.Multiplier,
		MaxInterval:         p.Max,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()

	var d time.Duration
	for range n {
		d = b.NextBackOff()
	}
	return d
}

// Exhausted reports whether an operation that has seen failures consecutive failed
// attempts must stop. The first attempt is always made, so MaxRetries of 0 and 1
// both allow exactly one failure.
func (p Policy) Exhausted(failures int) bool {
	return failures >= max(p.MaxRetries, 1)
}

// Wait blocks for d or until ctx is done, whichever comes first.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
