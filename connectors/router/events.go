// SPDX-License-Identifier: ice License 1.0

package router

import (
	stdlibtime "time"

	"github.com/ice-blockchain/rwrouter/log"
)

func (r *Router) observe(kind Kind, target *Target, duration stdlibtime.Duration, err error, correlationID string) {
	r.sink.Observe(&Event{
		Err:           err,
		Target:        target.id,
		CorrelationID: correlationID,
		Duration:      duration,
		Kind:          kind,
		Role:          target.role,
		Outcome:       outcomeOf(err),
	})
}

func (m MultiSink) Observe(evt *Event) {
	for _, sink := range m {
		sink.Observe(evt)
	}
}

func (logSink) Observe(evt *Event) {
	fields := []any{
		"target", evt.Target,
		"kind", evt.Kind.String(),
		"outcome", evt.Outcome.String(),
		"duration", evt.Duration,
	}
	if evt.CorrelationID != "" {
		fields = append(fields, "correlationId", evt.CorrelationID)
	}
	if evt.Err != nil {
		fields = append(fields, "error", evt.Err.Error())
	}
	log.Debug("router event", fields...)
}

// NewLogSink returns the sink used when no other is configured: every event is logged at debug level.
func NewLogSink() EventSink {
	return logSink{}
}
