// Package engine runs operations to completion. It dispatches settled
// outcomes through the attached handler chain, finalizes the operation and
// routes whatever failure is left unclaimed: into the enclosing body for a
// nested synchronous operation, to the sink otherwise, and to the fatal
// handler when no sink fallback exists. A failure a catch handler observed is
// claimed: it is returned as is and never routed.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ib-77/errflow/pkg/flow"
	"github.com/ib-77/errflow/pkg/flow/core"
	"github.com/ib-77/errflow/pkg/flow/operation"
	"github.com/ib-77/errflow/pkg/flow/sink"
)

const spanName = "errflow.operation"

// UnhandledError is handed to the fatal handler when a failure escapes and
// the sink has no fallback.
type UnhandledError struct {
	Report sink.Report
}

func (e *UnhandledError) Error() string {
	return fmt.Sprintf("unhandled %s failure in operation %s: %v", e.Report.Mode, e.Report.Name, e.Report.Err)
}

func (e *UnhandledError) Unwrap() error {
	return e.Report.Err
}

type Engine struct {
	sink       *sink.Sink
	log        logr.Logger
	registerer prometheus.Registerer
	metrics    *metrics
	tracer     trace.Tracer
	fatal      func(error)
	sched      *core.Scheduler
}

func New(opts ...Option) *Engine {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.scheduler == nil {
		o.scheduler = core.NewScheduler(o.log.WithName("scheduler"))
	}
	return &Engine{
		sink:       o.sink,
		log:        o.log,
		registerer: o.registerer,
		metrics:    newMetrics(o.registerer),
		tracer:     o.tracer,
		fatal:      o.fatal,
		sched:      o.scheduler,
	}
}

func (e *Engine) Sink() *sink.Sink {
	return e.sink
}

func (e *Engine) Scheduler() *core.Scheduler {
	return e.sched
}

// Gatherer exposes the metrics registry when the registerer can be gathered.
func (e *Engine) Gatherer() (prometheus.Gatherer, bool) {
	g, ok := e.registerer.(prometheus.Gatherer)
	return g, ok
}

// Wait drives the scheduler until every async operation is finalized. When
// ctx ends the remaining operations are cancelled first.
func (e *Engine) Wait(ctx context.Context) error {
	return e.sched.Run(ctx)
}

// RunSync runs a sync operation on the caller's stack and returns its final
// outcome. An unclaimed failure inside another operation's body is raised
// into that body instead of being returned.
func RunSync[T any](ctx context.Context, e *Engine, op *operation.Operation[T]) flow.Outcome[T] {
	nested := core.IsNested(ctx)
	ctx, span := e.start(ctx, op.Name(), op.Mode())
	defer span.End()

	if op.Mode() != operation.Sync || op.Started() {
		out := op.RunSync(ctx)
		e.log.Error(out.Err(), "operation misuse", "operation", op.Name(), "id", op.Id())
		span.RecordError(out.Err())
		span.SetStatus(codes.Error, out.Err().Error())
		return out
	}

	settled := runBody(core.WithEnclosing(ctx, op.Id()), op)
	final := dispatch(ctx, op, settled)
	finalize(ctx, e, span, op, final)

	if final.IsFailure() && !final.Handled() {
		if nested {
			e.log.V(1).Info("re-raising into enclosing operation", "operation", op.Name(), "id", op.Id())
			flow.Rethrow(final)
		}
		e.escape(ctx, report(op, final))
	}
	return final
}

// Go schedules an async operation and returns its future. Nothing runs until
// Wait drives the scheduler. A failure left unclaimed is an unhandled
// rejection and goes to the sink even when Go is called from another body.
func Go[T any](ctx context.Context, e *Engine, op *operation.Operation[T]) *operation.Future[T] {
	ctx, span := e.start(ctx, op.Name(), op.Mode())

	if op.Started() {
		defer span.End()
		span.SetStatus(codes.Error, "operation already started")
		return op.RunAsync(ctx, e.sched, nil)
	}

	return op.RunAsync(core.WithEnclosing(ctx, op.Id()), e.sched,
		func(_ context.Context, settled flow.Outcome[T]) flow.Outcome[T] {
			defer span.End()

			final := dispatch(ctx, op, settled)
			finalize(ctx, e, span, op, final)
			if final.IsFailure() && !final.Handled() {
				e.escape(ctx, report(op, final))
			}
			return final
		})
}

// Run schedules op, drives the scheduler and returns the final outcome.
func Run[T any](ctx context.Context, e *Engine, op *operation.Operation[T]) (flow.Outcome[T], error) {
	f := Go(ctx, e, op)
	if err := e.Wait(ctx); err != nil {
		if out, ok := f.Outcome(); ok {
			return out, err
		}
		return flow.Cancel[T](err), err
	}
	out, _ := f.Outcome()
	return out, nil
}

func (e *Engine) start(ctx context.Context, name string, mode operation.Mode) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, spanName,
		trace.WithAttributes(
			attribute.String("errflow.operation", name),
			attribute.String("errflow.mode", mode.String()),
		))
}

// escape hands r to the sink, or to the fatal handler when the sink has no
// fallback.
func (e *Engine) escape(ctx context.Context, r sink.Report) {
	if e.sink.Capture(ctx, r) {
		e.metrics.captures.WithLabelValues(r.Mode.String()).Inc()
		e.log.Info("failure captured by sink",
			"operation", r.Name, "id", r.OperationID, "mode", r.Mode.String(), "kind", r.Err.Kind.String())
		return
	}
	e.log.Error(r.Err, "unhandled failure and no sink registered",
		"operation", r.Name, "id", r.OperationID, "mode", r.Mode.String())
	e.fatal(&UnhandledError{Report: r})
}

// runBody runs a sync body. A raised error that escapes a body without a
// handler chain becomes the settled failure.
func runBody[T any](ctx context.Context, op *operation.Operation[T]) (out flow.Outcome[T]) {
	defer func() {
		if r := recover(); r != nil {
			out = flow.FailRecovered[T](r)
		}
	}()
	return op.RunSync(ctx)
}

func dispatch[T any](ctx context.Context, op *operation.Operation[T], settled flow.Outcome[T]) flow.Outcome[T] {
	h, ok := op.Handler()
	if !ok {
		return settled
	}
	out := flow.Guard(func() flow.Outcome[T] {
		return h.Dispatch(ctx, settled)
	})
	if out.IsEmpty() {
		return flow.Fail[T](flow.Newf(flow.InvalidState, "handler chain of %s returned an empty outcome", op.Name()))
	}
	return out
}

func finalize[T any](_ context.Context, e *Engine, span trace.Span, op *operation.Operation[T], final flow.Outcome[T]) {
	if err := op.Finalize(final); err != nil {
		e.log.Error(err, "finalize", "operation", op.Name(), "id", op.Id())
	}

	mode := op.Mode().String()
	result := resultLabel(final)
	e.metrics.operations.WithLabelValues(mode, result).Inc()
	e.metrics.duration.WithLabelValues(mode).Observe(op.Duration().Seconds())

	suppressed := final.Suppressed()
	if len(suppressed) > 0 {
		e.metrics.secondary.Add(float64(len(suppressed)))
	}
	for _, err := range suppressed {
		e.log.Error(err, "cleanup failed", "operation", op.Name(), "id", op.Id())
	}

	span.SetAttributes(
		attribute.String("errflow.result", result),
		attribute.Int("errflow.suppressed", len(suppressed)),
	)
	if final.IsFailure() {
		info := final.Info()
		span.SetAttributes(attribute.String("errflow.kind", info.Kind.String()))
		span.RecordError(final.Err())
		span.SetStatus(codes.Error, info.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	e.log.V(1).Info("operation finalized",
		"operation", op.Name(), "id", op.Id(), "mode", mode, "result", result, "duration", op.Duration())
}

type identity interface {
	Id() uuid.UUID
	Name() string
	Mode() operation.Mode
}

func report(op identity, final flow.Settled) sink.Report {
	return sink.Report{
		OperationID: op.Id(),
		Name:        op.Name(),
		Mode:        op.Mode(),
		Err:         flow.Info(final.Err()),
		Suppressed:  final.Suppressed(),
		At:          time.Now().UTC(),
	}
}

func resultLabel(out flow.Settled) string {
	switch {
	case out.IsCancel():
		return "cancel"
	case out.IsFailure():
		return "failure"
	default:
		return "success"
	}
}
