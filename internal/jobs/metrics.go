package jobs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records scheduled job runs.
type Metrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "radops_job_duration_seconds",
		Help:    "Duration of scheduled jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "radops_job_runs_total",
		Help: "Scheduled job runs by outcome.",
	}, []string{"job", "outcome"})
	reg.MustRegister(duration, runs)
	return &Metrics{duration: duration, runs: runs}
}

func (m *Metrics) observe(job string, d time.Duration, outcome string) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(job).Observe(d.Seconds())
	m.runs.WithLabelValues(job, outcome).Inc()
}
