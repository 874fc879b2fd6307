package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"lockdrop/core/events"
)

type eventMetrics struct {
	committed *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking committed state events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			committed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lockdrop",
				Subsystem: "events",
				Name:      "committed_total",
				Help:      "Count of committed state events segmented by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.committed)
	})
	return eventRegistry
}

// RecordEvent increments the counter for the supplied event type.
func (m *eventMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(strings.ToLower(eventType))
	if normalized == "" {
		normalized = "unknown"
	}
	m.committed.WithLabelValues(normalized).Inc()
}

// Counter exposes the underlying vector for tests.
func (m *eventMetrics) Counter() *prometheus.CounterVec { return m.committed }

// Emitter returns an events.Emitter that counts every delivered event.
func (m *eventMetrics) Emitter() events.Emitter {
	return events.EmitterFunc(func(e events.Event) {
		if e != nil {
			m.RecordEvent(e.EventType())
		}
	})
}
