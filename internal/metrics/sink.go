// Package metrics receives lifecycle notifications from read operations.
package metrics

import (
	"errors"
	"fmt"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"time"
)

//go:generate mockgen -destination=./sink_mock.go -package=metrics -source=sink.go

// Attempt identifies one RPC within a read operation.
type Attempt struct {
	OperationID string
	Table       string
	// Number is 1 for the first attempt of an operation.
	Number  int
	Started time.Time
}

// Operation summarizes a finished read operation.
type Operation struct {
	ID       string
	Table    string
	Started  time.Time
	Attempts int
	Rows     int64
}

// Sink is notified of attempt and operation boundaries. Sinks only observe: a
// returned error never changes the outcome of a read.
type Sink interface {
	AttemptStarted(a Attempt) error
	AttemptCompleted(a Attempt, code codes.Code) error
	OperationCompleted(op Operation, code codes.Code) error
	// Metadata receives the header metadata of an attempt.
	Metadata(a Attempt, md metadata.MD) error
	// Trailers receives the trailing metadata of an attempt.
	Trailers(a Attempt, md metadata.MD) error
}

// Noop discards every notification.
type Noop struct{}

func (Noop) AttemptStarted(Attempt) error                   { return nil }
func (Noop) AttemptCompleted(Attempt, codes.Code) error     { return nil }
func (Noop) OperationCompleted(Operation, codes.Code) error { return nil }
func (Noop) Metadata(Attempt, metadata.MD) error            { return nil }
func (Noop) Trailers(Attempt, metadata.MD) error            { return nil }

type multi []Sink

// Multi fans each notification out to every sink and joins their errors.
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

func (m multi) each(fn func(s Sink) error) error {
	var errGrp []error
	for _, s := range m {
		if err := notifyOne(s, fn); err != nil {
			errGrp = append(errGrp, err)
		}
	}
	return errors.Join(errGrp...)
}

// notifyOne calls fn on s, turning a panic into an error so the remaining sinks are
// still notified.
func notifyOne(s Sink, fn func(s Sink) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("sink %T panicked: %v", s, p)
		}
	}()
	return fn(s)
}

func (m multi) AttemptStarted(a Attempt) error {
	return m.each(func(s Sink) error { return s.AttemptStarted(a) })
}

func (m multi) AttemptCompleted(a Attempt, code codes.Code) error {
	return m.each(func(s Sink) error { return s.AttemptCompleted(a, code) })
}

func (m multi) OperationCompleted(op Operation, code codes.Code) error {
	return m.each(func(s Sink) error { return s.OperationCompleted(op, code) })
}

func (m multi) Metadata(a Attempt, md metadata.MD) error {
	return m.each(func(s Sink) error { return s.Metadata(a, md) })
}

func (m multi) Trailers(a Attempt, md metadata.MD) error {
	return m.each(func(s Sink) error { return s.Trailers(a, md) })
}
