package metrics

import "github.com/prometheus/client_golang/prometheus"

// VerificationMetrics counts persisted verification status transitions.
type VerificationMetrics struct {
	transitions *prometheus.CounterVec
	conflicts   *prometheus.CounterVec
}

// NewVerificationMetrics registers the verification metrics on reg.
func NewVerificationMetrics(reg prometheus.Registerer) *VerificationMetrics {
	if reg == nil {
		return &VerificationMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rx_verification_transitions_total",
		Help: "Persisted verification status transitions.",
	}, []string{"from", "to"})
	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rx_verification_conflicts_total",
		Help: "Transitions rejected because the record moved concurrently or was in the wrong state.",
	}, []string{"action"})
	reg.MustRegister(transitions, conflicts)
	return &VerificationMetrics{transitions: transitions, conflicts: conflicts}
}

// IncTransition records one persisted transition.
func (m *VerificationMetrics) IncTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// IncConflict records a rejected transition attempt.
func (m *VerificationMetrics) IncConflict(action string) {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.WithLabelValues(normalizeLabel(action)).Inc()
}
