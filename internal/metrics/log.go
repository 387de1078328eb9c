package metrics

import (
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"time"
)

// LogSink writes every notification to the global logger at debug level.
type LogSink struct{}

func (LogSink) AttemptStarted(a Attempt) error {
	log.Debug().
		Str("operation_id", a.OperationID).
		Str("table", a.Table).
		Int("attempt", a.Number).
		Msg("attempt started")
	return nil
}

func (LogSink) AttemptCompleted(a Attempt, code codes.Code) error {
	log.Debug().
		Str("operation_id", a.OperationID).
		Str("table", a.Table).
		Int("attempt", a.Number).
		Str("code", code.String()).
		Dur("elapsed", time.Since(a.Started)).
		Msg("attempt completed")
	return nil
}

func (LogSink) OperationCompleted(op Operation, code codes.Code) error {
	log.Debug().
		Str("operation_id", op.ID).
		Str("table", op.Table).
		Int("attempts", op.Attempts).
		Int64("rows", op.Rows).
		Str("code", code.String()).
		Dur("elapsed", time.Since(op.Started)).
		Msg("operation completed")
	return nil
}

func (LogSink) Metadata(a Attempt, md metadata.MD) error {
	log.Debug().
		Str("operation_id", a.OperationID).
		Int("attempt", a.Number).
		Interface("header", md).
		Msg("attempt metadata")
	return nil
}

func (LogSink) Trailers(a Attempt, md metadata.MD) error {
	log.Debug().
		Str("operation_id", a.OperationID).
		Int("attempt", a.Number).
		Interface("trailer", md).
		Msg("attempt trailers")
	return nil
}
