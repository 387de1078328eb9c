package reader

import (
	"cloud.google.com/go/bigtable/apiv2/bigtablepb"
	"context"
	"errors"
	"fmt"
	"github.com/litetable/litetable-reader/internal/chunk"
	"github.com/litetable/litetable-reader/internal/litetable"
	"github.com/litetable/litetable-reader/internal/metrics"
	"github.com/litetable/litetable-reader/internal/retry"
	"github.com/litetable/litetable-reader/internal/transport"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"io"
	"net/url"
	"strconv"
	"time"
)

const (
	attemptHeader     = "bigtable-attempt"
	operationIDHeader = "x-litetable-operation-id"
	routingHeader     = "x-goog-request-params"
)

type phase int

const (
	phaseIdle phase = iota
	phaseRunning
	phaseRetryPending
	phaseDone
	phaseFailed
)

func (p phase) String() string {
	switch p {
	case phaseIdle:
		return "idle"
	case phaseRunning:
		return "running"
	case phaseRetryPending:
		return "retry pending"
	case phaseDone:
		return "done"
	case phaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RowIterator is one read operation. Rows are produced only as Next is called, so a
// caller that stops pulling stops the stream. It is not safe for concurrent use.
type RowIterator struct {
	r      *Reader
	ctx    context.Context
	cancel context.CancelFunc

	id           string
	filter       *bigtablepb.RowFilter
	appProfileID string
	policy       retry.Policy
	started      time.Time

	phase   phase
	state   attemptState
	asm     *chunk.Assembler
	err     error
	attempt metrics.Attempt

	// stream is the attempt in flight; resp and next track the chunks of the last
	// response that have not been assembled yet.
	stream transport.Stream
	resp   *bigtablepb.ReadRowsResponse
	next   int
}

// Next returns the next row. It returns Done once the read is complete, or the
// terminal error of the operation; both are returned again on every later call.
func (it *RowIterator) Next() (litetable.Row, error) {
	for {
		switch it.phase {
		case phaseDone:
			return litetable.Row{}, Done
		case phaseFailed:
			return litetable.Row{}, it.err
		case phaseIdle:
			it.startAttempt()
		case phaseRetryPending:
			it.backoff()
		case phaseRunning:
			if row, ok := it.pull(); ok {
				return row, nil
			}
		}
	}
}

// Stop ends the operation and closes any open stream. Rows already returned stay
// delivered. Stopping an unfinished operation fails it: later calls to Next return
// an error matching retry.ErrCancelled.
func (it *RowIterator) Stop() {
	switch it.phase {
	case phaseDone, phaseFailed:
		return
	case phaseRunning:
		it.endAttempt(codes.Canceled)
	}
	it.complete(codes.Canceled)
	it.phase = phaseFailed
	it.err = retry.Wrap(retry.ErrCancelled, context.Canceled, "stopped after %d rows", it.state.rowsEmitted)
}

// startAttempt opens the next stream from the current state.
func (it *RowIterator) startAttempt() {
	if it.state.complete() {
		it.finish(nil)
		return
	}
	if err := it.ctx.Err(); err != nil {
		it.finish(it.contextError(err))
		return
	}

	it.state = it.state.started()
	it.attempt = metrics.Attempt{
		OperationID: it.id,
		Table:       it.r.table,
		Number:      it.state.attempt,
		Started:     time.Now(),
	}
	req := it.state.request(it.r.table, it.appProfileID, it.filter)
	it.logRequest(req)

	it.r.notify("attempt_started", func(s metrics.Sink) error {
		return s.AttemptStarted(it.attempt)
	})

	stream, err := it.r.transport.Open(it.attemptContext(), req)
	if err != nil {
		it.attemptFailed(err)
		return
	}
	it.stream = stream
	it.phase = phaseRunning
}

// attemptContext carries the per-attempt request headers.
func (it *RowIterator) attemptContext() context.Context {
	params := "table_name=" + url.QueryEscape(it.r.table)
	if it.appProfileID != "" {
		params += "&app_profile_id=" + url.QueryEscape(it.appProfileID)
	}
	return metadata.AppendToOutgoingContext(it.ctx,
		attemptHeader, strconv.Itoa(it.state.attempt-1),
		operationIDHeader, it.id,
		routingHeader, params,
	)
}

// pull advances the attempt by one chunk or one response. It returns a row when a
// chunk commits one.
func (it *RowIterator) pull() (litetable.Row, bool) {
	// Chunks already received are not assembled once the operation is cancelled.
	if err := it.ctx.Err(); err != nil {
		it.attemptFailed(err)
		return litetable.Row{}, false
	}

	if it.resp != nil && it.next < len(it.resp.GetChunks()) {
		c := it.resp.GetChunks()[it.next]
		it.next++

		row, err := it.asm.Process(c)
		if err != nil {
			it.attemptFailed(err)
			return litetable.Row{}, false
		}
		if row == nil {
			return litetable.Row{}, false
		}

		it.state = it.state.delivered(row.Key)
		if it.state.complete() {
			it.endAttempt(codes.OK)
			it.finish(nil)
		}
		return *row, true
	}

	if it.resp != nil {
		if key := it.resp.GetLastScannedRowKey(); len(key) > 0 && !it.asm.RowOpen() {
			it.asm.AdvanceTo(key)
			it.state = it.state.scanned(key)
		}
		it.resp = nil
		if it.state.complete() {
			it.endAttempt(codes.OK)
			it.finish(nil)
		}
		return litetable.Row{}, false
	}

	resp, err := it.stream.Recv()
	switch {
	case errors.Is(err, io.EOF):
		it.reportMetadata()
		if ferr := it.asm.Flush(); ferr != nil {
			it.attemptFailed(ferr)
			return litetable.Row{}, false
		}
		it.endAttempt(codes.OK)
		it.finish(nil)
	case err != nil:
		it.reportMetadata()
		it.attemptFailed(err)
	default:
		it.resp = resp
		it.next = 0
	}
	return litetable.Row{}, false
}

// attemptFailed closes the attempt, discards any uncommitted row and decides
// between retrying and failing the operation.
func (it *RowIterator) attemptFailed(err error) {
	it.closeStream()
	it.asm.Reset()
	it.resp = nil

	if ctxErr := it.ctx.Err(); ctxErr != nil {
		it.endAttempt(retry.Code(ctxErr))
		it.finish(it.contextError(ctxErr))
		return
	}

	kind := retry.Classify(err)
	it.state = it.state.failed(kind)
	it.endAttempt(attemptCode(err, kind))

	logger := log.With().
		Str("operation_id", it.id).
		Int("attempt", it.state.attempt).
		Str("kind", kind.String()).
		Err(err).
		Logger()

	switch {
	case kind == retry.KindCancelled:
		it.finish(retry.Wrap(retry.ErrCancelled, err, "attempt %d", it.state.attempt))
	case !kind.Retryable():
		it.finish(retry.Wrap(retry.ErrFatalTransport, err, "attempt %d", it.state.attempt))
	case it.policy.Exhausted(it.state.failures):
		last := retry.Wrap(sentinelFor(kind), err, "")
		it.finish(retry.Wrap(retry.ErrRetryBudgetExhausted, last, "%d consecutive failed attempts", it.state.failures))
	default:
		logger.Warn().Msgf("attempt failed, retrying from %s", it.state.remaining)
		it.phase = phaseRetryPending
	}
}

// backoff waits before the next attempt. Cancellation during the wait fails the
// operation without another attempt.
func (it *RowIterator) backoff() {
	d := it.policy.Delay(it.state.failures)
	log.Debug().
		Str("operation_id", it.id).
		Dur("delay", d).
		Int("failures", it.state.failures).
		Msg("waiting before retry")

	if err := it.r.wait(it.ctx, d); err != nil {
		it.finish(it.contextError(err))
		return
	}
	it.startAttempt()
}

// reportMetadata forwards the header and trailer of an attempt whose stream has
// ended, when neither call can block.
func (it *RowIterator) reportMetadata() {
	if md, err := it.stream.Header(); err == nil {
		it.r.notify("metadata", func(s metrics.Sink) error {
			return s.Metadata(it.attempt, md)
		})
	}
	trailer := it.stream.Trailer()
	it.r.notify("trailers", func(s metrics.Sink) error {
		return s.Trailers(it.attempt, trailer)
	})
}

func (it *RowIterator) endAttempt(code codes.Code) {
	attempt := it.attempt
	it.r.notify("attempt_completed", func(s metrics.Sink) error {
		return s.AttemptCompleted(attempt, code)
	})
}

func (it *RowIterator) closeStream() {
	if it.stream != nil {
		it.stream.Close()
		it.stream = nil
	}
}

// finish moves to a terminal phase. A nil err is success.
func (it *RowIterator) finish(err error) {
	code := codes.OK
	if err != nil {
		code = terminalCode(err)
	}
	it.complete(code)

	if err != nil {
		it.phase = phaseFailed
		it.err = err
		log.Error().
			Str("operation_id", it.id).
			Str("table", it.r.table).
			Int64("rows", it.state.rowsEmitted).
			Err(err).
			Msg("read failed")
		return
	}
	it.phase = phaseDone
	log.Debug().
		Str("operation_id", it.id).
		Str("table", it.r.table).
		Int64("rows", it.state.rowsEmitted).
		Int("attempts", it.state.attempt).
		Msg("read complete")
}

// complete releases the stream and context and reports the operation outcome.
func (it *RowIterator) complete(code codes.Code) {
	it.closeStream()
	it.cancel()

	op := metrics.Operation{
		ID:       it.id,
		Table:    it.r.table,
		Started:  it.started,
		Attempts: it.state.attempt,
		Rows:     it.state.rowsEmitted,
	}
	it.r.notify("operation_completed", func(s metrics.Sink) error {
		return s.OperationCompleted(op, code)
	})
}

// contextError maps the operation context ending to the taxonomy. An expired
// operation deadline is not retried: no time is left for another attempt.
func (it *RowIterator) contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return retry.Wrap(retry.ErrFatalTransport, status.FromContextError(err).Err(),
			"operation deadline exceeded after %d rows", it.state.rowsEmitted)
	}
	return retry.Wrap(retry.ErrCancelled, err, "after %d rows", it.state.rowsEmitted)
}

func (it *RowIterator) logRequest(req *bigtablepb.ReadRowsRequest) {
	e := log.Debug()
	if !e.Enabled() {
		return
	}
	body, err := protojson.Marshal(req)
	if err != nil {
		body = []byte(fmt.Sprintf("%q", err.Error()))
	}
	e.Str("operation_id", it.id).
		Int("attempt", it.state.attempt).
		RawJSON("request", body).
		Msg("starting attempt")
}

func terminalCode(err error) codes.Code {
	code := retry.Code(err)
	if code != codes.Unknown {
		return code
	}
	switch {
	case errors.Is(err, errInvalidSpec):
		return codes.InvalidArgument
	case errors.Is(err, retry.ErrProtocol):
		return codes.Internal
	}
	return code
}

func attemptCode(err error, kind retry.Kind) codes.Code {
	if kind == retry.KindProtocol {
		return codes.Internal
	}
	return retry.Code(err)
}

func sentinelFor(kind retry.Kind) error {
	if kind == retry.KindProtocol {
		return retry.ErrProtocol
	}
	return retry.ErrRetryableTransport
}
