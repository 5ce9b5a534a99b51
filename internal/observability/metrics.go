package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/machineskills/console/internal/media"
)

// Metrics collects Prometheus metrics for the console.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	mediaSaves      *prometheus.CounterVec
	mediaUploads    *prometheus.CounterVec
	backendErrors   *prometheus.CounterVec
}

// NewMetrics initialises the registry and every console metric.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "console_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "console_http_request_duration_seconds",
		Help:    "HTTP request duration by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	saves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "console_media_saves_total",
		Help: "Completed form saves by entity and terminal state.",
	}, []string{"entity", "state"})
	uploads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "console_media_uploads_total",
		Help: "Attachment uploads by entity and result.",
	}, []string{"entity", "result"})
	backendErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "console_backend_errors_total",
		Help: "Failed backend calls surfaced to handlers, by kind.",
	}, []string{"kind"})
	registry.MustRegister(
		requests, duration, saves, uploads, backendErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		mediaSaves:      saves,
		mediaUploads:    uploads,
		backendErrors:   backendErrors,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency per route.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveSave implements media.Observer.
func (m *Metrics) ObserveSave(entity string, state media.State) {
	if m == nil {
		return
	}
	m.mediaSaves.WithLabelValues(entity, state.String()).Inc()
}

// ObserveUpload implements media.Observer.
func (m *Metrics) ObserveUpload(entity string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.mediaUploads.WithLabelValues(entity, result).Inc()
}

// ObserveBackendError counts a backend failure of the given kind.
func (m *Metrics) ObserveBackendError(kind string) {
	if m == nil {
		return
	}
	m.backendErrors.WithLabelValues(kind).Inc()
}

// TrackActivePreviews exports the live preview count as a gauge.
func (m *Metrics) TrackActivePreviews(count func() int) {
	if m == nil || count == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "console_active_previews",
		Help: "Preview resources currently held by open forms.",
	}, func() float64 { return float64(count()) }))
}

// TrackOpenDrafts exports the open draft count as a gauge.
func (m *Metrics) TrackOpenDrafts(count func() int) {
	if m == nil || count == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "console_open_drafts",
		Help: "Form drafts currently open.",
	}, func() float64 { return float64(count()) }))
}

// Registerer exposes the registry for custom metrics.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
