package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics tracks relay outcomes per event type.
type OutboxMetrics struct {
	outcomes *prometheus.CounterVec
}

const (
	OutboxPublished = "published"
	OutboxRetried   = "retried"
	OutboxDeadLet   = "dead_lettered"
	// OutboxDeferred counts rows held back behind a failed row of the same aggregate.
	OutboxDeferred = "deferred"
)

// NewOutboxMetrics registers the outbox relay metrics on reg.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rx_outbox_events_total",
		Help: "Outbox rows handled by the publisher, by outcome.",
	}, []string{"event_type", "outcome"})
	reg.MustRegister(outcomes)
	return &OutboxMetrics{outcomes: outcomes}
}

func (m *OutboxMetrics) Inc(eventType, outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}
