// Package reader runs resumable row reads: one logical read becomes a sequence of
// streaming attempts whose rows are delivered in key order, exactly once.
package reader

import (
	"context"
	"errors"
	"github.com/google/uuid"
	"github.com/litetable/litetable-reader/internal/chunk"
	"github.com/litetable/litetable-reader/internal/litetable"
	"github.com/litetable/litetable-reader/internal/metrics"
	"github.com/litetable/litetable-reader/internal/retry"
	"github.com/litetable/litetable-reader/internal/transport"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
	"iter"
	"time"
)

// Done is returned by RowIterator.Next when every row has been delivered.
var Done = iterator.Done

// Reader issues read operations against one table.
type Reader struct {
	transport    transport.Transport
	sink         metrics.Sink
	table        string
	appProfileID string
	policy       retry.Policy
	debug        bool

	// wait sleeps between attempts; replaced in tests.
	wait  func(ctx context.Context, d time.Duration) error
	newID func() string
}

type Config struct {
	Transport transport.Transport
	// Sink is optional.
	Sink metrics.Sink
	// Table is the full table name, projects/<p>/instances/<i>/tables/<t>.
	Table        string
	AppProfileID string
	// Policy defaults to retry.DefaultPolicy when left zero.
	Policy retry.Policy
	// Debug logs metrics sink failures instead of discarding them.
	Debug bool
}

func (c *Config) validate() error {
	var errGrp []error
	if c.Transport == nil {
		errGrp = append(errGrp, errors.New("transport required"))
	}
	if c.Table == "" {
		errGrp = append(errGrp, errors.New("table required"))
	}
	if c.Policy != (retry.Policy{}) {
		if err := c.Policy.Validate(); err != nil {
			errGrp = append(errGrp, err)
		}
	}

	return errors.Join(errGrp...)
}

// New creates a Reader.
func New(cfg *Config) (*Reader, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	sink := cfg.Sink
	if sink == nil {
		sink = metrics.Noop{}
	}
	policy := cfg.Policy
	if policy == (retry.Policy{}) {
		policy = retry.DefaultPolicy()
	}

	return &Reader{
		transport:    cfg.Transport,
		sink:         sink,
		table:        cfg.Table,
		appProfileID: cfg.AppProfileID,
		policy:       policy,
		debug:        cfg.Debug,
		wait:         retry.Wait,
		newID:        uuid.NewString,
	}, nil
}

// ReadRows starts a read operation. No request is sent until the first call to
// Next. The caller must call Stop if it abandons the iterator before it returns
// Done or an error.
func (r *Reader) ReadRows(ctx context.Context, spec ReadSpec) *RowIterator {
	var cancel context.CancelFunc
	if spec.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	policy := r.policy
	if spec.MaxRetries != nil {
		policy = policy.WithMaxRetries(*spec.MaxRetries)
	}
	appProfileID := r.appProfileID
	if spec.AppProfileID != "" {
		appProfileID = spec.AppProfileID
	}

	it := &RowIterator{
		r:            r,
		ctx:          ctx,
		cancel:       cancel,
		id:           r.newID(),
		filter:       spec.Filter,
		appProfileID: appProfileID,
		policy:       policy,
		state:        newAttemptState(spec),
		asm:          chunk.New(nil),
		started:      time.Now(),
	}
	if err := spec.validate(); err != nil {
		it.finish(err)
	}
	return it
}

// Rows is ReadRows as a range-over-func sequence. A terminal error is yielded once
// as the last element; breaking out of the loop stops the operation.
func (r *Reader) Rows(ctx context.Context, spec ReadSpec) iter.Seq2[litetable.Row, error] {
	return func(yield func(litetable.Row, error) bool) {
		it := r.ReadRows(ctx, spec)
		defer it.Stop()

		for {
			row, err := it.Next()
			if errors.Is(err, Done) {
				return
			}
			if err != nil {
				yield(litetable.Row{}, err)
				return
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}

// notify delivers one sink notification. Sink errors and panics never reach the
// read; in debug mode they are logged.
func (r *Reader) notify(event string, fn func(s metrics.Sink) error) {
	defer func() {
		if p := recover(); p != nil && r.debug {
			log.Debug().Str("event", event).Interface("panic", p).Msg("metrics sink panicked")
		}
	}()

	if err := fn(r.sink); err != nil && r.debug {
		log.Debug().Str("event", event).Err(err).Msg("metrics sink failed")
	}
}
