package engine

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	operations *prometheus.CounterVec
	captures   *prometheus.CounterVec
	secondary  prometheus.Counter
	duration   *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		operations: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "errflow_operations_total",
				Help: "Finalized operations by mode and result",
			},
			[]string{"mode", "result"},
		)),
		captures: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "errflow_sink_captures_total",
				Help: "Failures that escaped every handler chain and reached the sink",
			},
			[]string{"mode"},
		)),
		secondary: register(reg, prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "errflow_secondary_failures_total",
				Help: "Cleanup failures recorded without overriding the primary outcome",
			},
		)),
		duration: register(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "errflow_operation_duration_seconds",
				Help:    "Time from operation start to settlement",
				Buckets: prometheus.ExponentialBuckets(0.0001, 10, 6),
			},
			[]string{"mode"},
		)),
	}
}

// register reuses a collector already registered under the same name.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}
