package engine

import (
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/ib-77/errflow/pkg/flow/core"
	"github.com/ib-77/errflow/pkg/flow/sink"
)

const instrumentationName = "github.com/ib-77/errflow"

// Option configures an Engine.
type Option func(*options)

type options struct {
	sink       *sink.Sink
	log        logr.Logger
	registerer prometheus.Registerer
	tracer     trace.Tracer
	fatal      func(error)
	scheduler  *core.Scheduler
}

func defaultOptions() options {
	return options{
		sink:       sink.Default(),
		log:        logr.Discard(),
		registerer: prometheus.NewRegistry(),
		tracer:     otel.Tracer(instrumentationName),
		fatal:      func(err error) { panic(err) },
	}
}

// WithSink routes escaped failures to s instead of the process-wide sink.
func WithSink(s *sink.Sink) Option {
	return func(o *options) {
		if s != nil {
			o.sink = s
		}
	}
}

func WithLogger(log logr.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithRegisterer registers engine metrics on reg. By default every engine
// gets its own registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		if reg != nil {
			o.registerer = reg
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithFatal replaces the process-boundary handler called when a failure
// escapes and no sink fallback is registered. The default panics with
// *UnhandledError.
func WithFatal(fn func(error)) Option {
	return func(o *options) {
		if fn != nil {
			o.fatal = fn
		}
	}
}

func WithScheduler(s *core.Scheduler) Option {
	return func(o *options) {
		if s != nil {
			o.scheduler = s
		}
	}
}
