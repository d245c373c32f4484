// Package sink holds the last-resort handler for failures that escape every
// handler chain. A Sink accepts one fallback for its whole lifetime; Default
// is the process-wide instance.
package sink

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/ib-77/errflow/pkg/flow"
	"github.com/ib-77/errflow/pkg/flow/operation"
)

// Report describes an escaped failure. Mode tells a synchronous uncaught
// error apart from an unhandled async rejection.
type Report struct {
	OperationID uuid.UUID
	Name        string
	Mode        operation.Mode
	Err         *flow.Error
	Suppressed  []error
	At          time.Time
}

// Rejection reports whether the failure came from an async operation.
func (r Report) Rejection() bool {
	return r.Mode == operation.Async
}

type Fallback func(ctx context.Context, r Report) error

type Sink struct {
	fallback atomic.Pointer[Fallback]
	captured atomic.Int64
	log      logr.Logger
}

func New(log logr.Logger) *Sink {
	return &Sink{log: log}
}

var global = New(logr.Discard())

// Default returns the process-wide sink.
func Default() *Sink {
	return global
}

// RegisterGlobal registers fn on the process-wide sink.
func RegisterGlobal(fn Fallback) error {
	return global.Register(fn)
}

// Register sets the fallback. It succeeds once per sink.
func (s *Sink) Register(fn Fallback) error {
	if fn == nil {
		return flow.New(flow.InvalidState, "sink fallback must not be nil")
	}
	if !s.fallback.CompareAndSwap(nil, &fn) {
		return flow.New(flow.AlreadySet, "sink fallback is already registered")
	}
	return nil
}

func (s *Sink) Registered() bool {
	return s.fallback.Load() != nil
}

// Captured counts reports handed to the fallback.
func (s *Sink) Captured() int64 {
	return s.captured.Load()
}

// Capture hands r to the fallback and reports whether one was registered.
// It never panics; a failing fallback is logged and swallowed. Capture holds
// no lock while the fallback runs, so the fallback may itself capture.
func (s *Sink) Capture(ctx context.Context, r Report) bool {
	fn := s.fallback.Load()
	if fn == nil {
		return false
	}
	if r.At.IsZero() {
		r.At = time.Now().UTC()
	}

	s.captured.Add(1)
	if err := s.invoke(ctx, *fn, r); err != nil {
		s.log.Error(err, "sink fallback failed",
			"operation", r.Name, "id", r.OperationID, "mode", r.Mode.String())
	}
	return true
}

func (s *Sink) invoke(ctx context.Context, fn Fallback, r Report) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = flow.Recover(rec)
		}
	}()
	return fn(ctx, r)
}
