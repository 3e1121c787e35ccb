package internal

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scheduling-api/internal/scheduling"
)

// Metrics collects HTTP and scheduling metrics on a private registry. It
// doubles as the scheduling service's observer.
type Metrics struct {
	reqTotal   *prometheus.CounterVec
	reqLatency *prometheus.HistogramVec

	stateEvaluations *prometheus.CounterVec
	taskUpdates      *prometheus.CounterVec
	lifecycleOps     *prometheus.CounterVec

	registry *prometheus.Registry
}

var _ scheduling.Observer = (*Metrics)(nil)

// NewMetrics creates a new Metrics instance with a private Prometheus registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	reqTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	reqLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	stateEvaluations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "task_state_evaluations_total",
			Help: "Task states derived, by resulting state",
		},
		[]string{"state"},
	)

	taskUpdates := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "task_updates_total",
			Help: "Progress reports recorded on tasks",
		},
		[]string{"completed"},
	)

	lifecycleOps := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "project_lifecycle_operations_total",
			Help: "Split, merge, clone, restore and postpone operations",
		},
		[]string{"operation"},
	)

	registry.MustRegister(reqTotal, reqLatency, stateEvaluations, taskUpdates, lifecycleOps)

	return &Metrics{
		reqTotal:         reqTotal,
		reqLatency:       reqLatency,
		stateEvaluations: stateEvaluations,
		taskUpdates:      taskUpdates,
		lifecycleOps:     lifecycleOps,
		registry:         registry,
	}
}

func (m *Metrics) TaskStateEvaluated(state scheduling.State) {
	m.stateEvaluations.WithLabelValues(string(state)).Inc()
}

func (m *Metrics) TaskUpdateRecorded(completed bool) {
	m.taskUpdates.WithLabelValues(strconv.FormatBool(completed)).Inc()
}

func (m *Metrics) LifecycleOperation(op string) {
	m.lifecycleOps.WithLabelValues(op).Inc()
}

// Middleware returns a Chi middleware that collects metrics
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, code: http.StatusOK}

			next.ServeHTTP(rw, r)

			path := routePattern(r)
			status := http.StatusText(rw.code)
			m.reqTotal.WithLabelValues(r.Method, path, status).Inc()
			m.reqLatency.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler returns an http.Handler that serves Prometheus metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// routePattern prefers Chi's matched pattern over the raw path so that
// project and task names do not explode label cardinality.
func routePattern(r *http.Request) string {
	if chiCtx := chi.RouteContext(r.Context()); chiCtx != nil {
		if p := chiCtx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// statusRecorder captures the HTTP status code for metrics and logs
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.code = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	return sr.ResponseWriter.Write(b)
}
