// SPDX-License-Identifier: ice License 1.0

package router

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "rwrouter"

type (
	// PrometheusSink turns router events into metrics.
	PrometheusSink struct {
		operations *prometheus.CounterVec
		durations  *prometheus.HistogramVec
		healthy    *prometheus.GaugeVec
	}
)

func NewPrometheusSink(registerer prometheus.Registerer) *PrometheusSink {
	sink := &PrometheusSink{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "operations_total",
				Help:      "Total number of routed operations and health probes by target, kind and outcome",
			},
			[]string{"target", "kind", "outcome"},
		),
		durations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of routed operations and health probes",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"target", "kind"},
		),
		healthy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "target_healthy",
				Help:      "1 if the last health probe of the target succeeded, 0 otherwise",
			},
			[]string{"target", "role"},
		),
	}
	registerer.MustRegister(sink.operations, sink.durations, sink.healthy)

	return sink
}

func (s *PrometheusSink) Observe(evt *Event) {
	kind := evt.Kind.String()
	s.operations.WithLabelValues(evt.Target, kind, evt.Outcome.String()).Inc()
	s.durations.WithLabelValues(evt.Target, kind).Observe(evt.Duration.Seconds())
	if evt.Kind == KindHealth {
		var val float64
		if evt.Outcome == OutcomeOK {
			val = 1
		}
		s.healthy.WithLabelValues(evt.Target, evt.Role.String()).Set(val)
	}
}
