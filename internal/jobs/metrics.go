// Package jobmetrics instruments background job runs.
package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs        *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	swept       prometheus.Counter
	now         func() time.Time
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against registerer, or once against
// the default registerer when it is nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker times one job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track starts timing a run of job. A nil Metrics yields a no-op tracker.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job}
	}
	return &Tracker{metrics: m, job: job, start: m.now()}
}

// End records the run outcome and returns err unchanged.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	m := t.metrics
	end := m.now()
	m.duration.WithLabelValues(t.job).Observe(end.Sub(t.start).Seconds())
	if err != nil {
		m.failures.WithLabelValues(t.job).Inc()
		m.runs.WithLabelValues(t.job, "failure").Inc()
		return err
	}
	m.runs.WithLabelValues(t.job, "success").Inc()
	m.lastSuccess.WithLabelValues(t.job).Set(float64(end.Unix()))
	return nil
}

// AddSwept counts staged files removed by a sweep.
func (m *Metrics) AddSwept(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.swept.Add(float64(count))
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_jobs_total",
			Help: "Job executions by job name and status.",
		}, []string{"job", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_jobs_failures_total",
			Help: "Failed job executions by job name.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "console_job_duration_seconds",
			Help:    "Job execution duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "console_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run by job name.",
		}, []string{"job"}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "console_staging_swept_files_total",
			Help: "Staged upload files removed by the sweep job.",
		}),
		now: time.Now,
	}
	registerer.MustRegister(m.runs, m.failures, m.duration, m.lastSuccess, m.swept)
	return m
}
