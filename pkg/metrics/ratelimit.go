package metrics

import "github.com/prometheus/client_golang/prometheus"

// RateLimitMetrics tracks blocked requests and degraded limiter decisions.
type RateLimitMetrics struct {
	blocked  *prometheus.CounterVec
	degraded prometheus.Counter
}

// NewRateLimitMetrics registers the limiter metrics on reg.
func NewRateLimitMetrics(reg prometheus.Registerer) *RateLimitMetrics {
	if reg == nil {
		return &RateLimitMetrics{}
	}
	blocked := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rx_rate_limit_blocked_total",
		Help: "Requests rejected by the rate limiter.",
	}, []string{"route"})
	degraded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rx_rate_limit_degraded_total",
		Help: "Limiter decisions served by the in-process fallback because Redis failed.",
	})
	reg.MustRegister(blocked, degraded)
	return &RateLimitMetrics{blocked: blocked, degraded: degraded}
}

func (m *RateLimitMetrics) IncBlocked(route string) {
	if m == nil || m.blocked == nil {
		return
	}
	m.blocked.WithLabelValues(normalizeLabel(route)).Inc()
}

func (m *RateLimitMetrics) IncDegraded() {
	if m == nil || m.degraded == nil {
		return
	}
	m.degraded.Inc()
}
