package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cron run outcomes.
const (
	CronSucceeded = "succeeded"
	CronFailed    = "failed"
	CronSkipped   = "skipped"
)

// CronJobMetrics tracks each job's runs, durations and last success. A stale
// last-success gauge on verification_lifecycle means expiries are not being
// persisted.
type CronJobMetrics struct {
	duration    *prometheus.HistogramVec
	runs        *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
	now         func() time.Time
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rx_cron_job_duration_seconds",
		Help:    "Duration of cron job runs that held their lock.",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rx_cron_job_runs_total",
		Help: "Cron job runs by outcome (succeeded, failed, skipped).",
	}, []string{"job", "outcome"})
	lastSuccess := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rx_cron_job_last_success_timestamp_seconds",
		Help: "Unix time of the job's last successful run.",
	}, []string{"job"})
	reg.MustRegister(duration, runs, lastSuccess)
	return &CronJobMetrics{duration: duration, runs: runs, lastSuccess: lastSuccess, now: time.Now}
}

func (c *CronJobMetrics) ObserveDuration(job string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(jobLabel(job)).Observe(duration.Seconds())
}

func (c *CronJobMetrics) IncSuccess(job string) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(jobLabel(job), CronSucceeded).Inc()
	c.lastSuccess.WithLabelValues(jobLabel(job)).Set(float64(c.now().Unix()))
}

func (c *CronJobMetrics) IncFailure(job string) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(jobLabel(job), CronFailed).Inc()
}

// IncSkipped counts runs skipped because another replica held the lock.
func (c *CronJobMetrics) IncSkipped(job string) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(jobLabel(job), CronSkipped).Inc()
}

func jobLabel(job string) string {
	return normalizeLabel(job)
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
