package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/EHam1/very-professional-blog/pkg/types"
)

// Rejection reasons for the rejected counter.
const (
	ReasonMissingFields = "missing_fields"
	ReasonMalformedBody = "malformed_body"
	ReasonMethod        = "method_not_allowed"
)

// EventOther labels received events whose name is not a known event.
const EventOther = "other"

// Metrics holds the sink's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	received       *prometheus.CounterVec
	persisted      prometheus.Counter
	degraded       prometheus.Counter
	rejected       *prometheus.CounterVec
	failed         prometheus.Counter
	insertDuration prometheus.Histogram
}

// NewMetrics creates and registers the sink metrics.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.received = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blog",
		Name:      "events_received_total",
		Help:      "Events received by the sink, by known event name",
	}, []string{"event"})
	m.persisted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "blog",
		Name:      "events_persisted_total",
		Help:      "Events written to the event store",
	})
	m.degraded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "blog",
		Name:      "events_degraded_total",
		Help:      "Events acknowledged without storage configured",
	})
	m.rejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blog",
		Name:      "events_rejected_total",
		Help:      "Requests rejected before reaching storage, by reason",
	}, []string{"reason"})
	m.failed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "blog",
		Name:      "events_failed_total",
		Help:      "Events the event store failed to write",
	})
	m.insertDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "blog",
		Name:      "sink_insert_duration_seconds",
		Help:      "Time spent writing one event to the event store",
		Buckets:   prometheus.DefBuckets,
	})

	m.registry.MustRegister(
		m.received, m.persisted, m.degraded, m.rejected, m.failed, m.insertDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Received counts an event that passed validation. Event names come from
// clients, so unknown names share the EventOther label.
func (m *Metrics) Received(event string) {
	if m == nil {
		return
	}
	m.received.WithLabelValues(eventLabel(event)).Inc()
}

func eventLabel(event string) string {
	switch event {
	case types.EventPageView, types.EventAssignment:
		return event
	}
	return EventOther
}

// Persisted records a successful insert and its duration.
func (m *Metrics) Persisted(d time.Duration) {
	if m == nil {
		return
	}
	m.persisted.Inc()
	m.insertDuration.Observe(d.Seconds())
}

// Failed records a failed insert and its duration.
func (m *Metrics) Failed(d time.Duration) {
	if m == nil {
		return
	}
	m.failed.Inc()
	m.insertDuration.Observe(d.Seconds())
}

// Degraded counts an event acknowledged without storage.
func (m *Metrics) Degraded() {
	if m == nil {
		return
	}
	m.degraded.Inc()
}

// Rejected counts a request rejected for reason.
func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}
