package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for crash reporting.
// Recording helpers are safe to call on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	// Breadcrumb metrics
	BreadcrumbsAppendedTotal prometheus.Counter
	BreadcrumbRotationsTotal prometheus.Counter
	BreadcrumbErrorsTotal    *prometheus.CounterVec

	// Crash handler metrics
	HandlerInitializationsTotal *prometheus.CounterVec
	CrashHandlerRunsTotal       *prometheus.CounterVec
	CrashHandlerRunDuration     prometheus.Histogram

	// Crash database metrics
	CrashDumpsDetectedTotal prometheus.Counter
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		BreadcrumbsAppendedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "breadcrumbs_appended_total",
				Help: "Total number of breadcrumb lines written",
			},
		),
		BreadcrumbRotationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "breadcrumb_rotations_total",
				Help: "Total number of breadcrumb file rotations",
			},
		),
		BreadcrumbErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "breadcrumb_errors_total",
				Help: "Total number of breadcrumb I/O errors",
			},
			[]string{"op"},
		),

		HandlerInitializationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crash_handler_initializations_total",
				Help: "Total number of crash handler initialization attempts",
			},
			[]string{"mode", "status"},
		),
		CrashHandlerRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crash_handler_runs_total",
				Help: "Total number of second-chance crash handler runs",
			},
			[]string{"status"},
		),
		CrashHandlerRunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crash_handler_run_duration_seconds",
				Help:    "Duration of second-chance crash handler runs in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		CrashDumpsDetectedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "crash_dumps_detected_total",
				Help: "Total number of crash dumps observed in the crash database",
			},
		),
	}

	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.BreadcrumbsAppendedTotal)
	m.registry.MustRegister(m.BreadcrumbRotationsTotal)
	m.registry.MustRegister(m.BreadcrumbErrorsTotal)

	m.registry.MustRegister(m.HandlerInitializationsTotal)
	m.registry.MustRegister(m.CrashHandlerRunsTotal)
	m.registry.MustRegister(m.CrashHandlerRunDuration)

	m.registry.MustRegister(m.CrashDumpsDetectedTotal)
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) BreadcrumbAppended() {
	if m == nil {
		return
	}
	m.BreadcrumbsAppendedTotal.Inc()
}

func (m *Metrics) BreadcrumbRotated() {
	if m == nil {
		return
	}
	m.BreadcrumbRotationsTotal.Inc()
}

func (m *Metrics) BreadcrumbFailed(op string) {
	if m == nil {
		return
	}
	m.BreadcrumbErrorsTotal.WithLabelValues(op).Inc()
}

func (m *Metrics) HandlerInitialized(mode string, ok bool) {
	if m == nil {
		return
	}
	m.HandlerInitializationsTotal.WithLabelValues(mode, status(ok)).Inc()
}

func (m *Metrics) CrashHandlerRan(ok bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.CrashHandlerRunsTotal.WithLabelValues(status(ok)).Inc()
	m.CrashHandlerRunDuration.Observe(duration.Seconds())
}

func (m *Metrics) CrashDumpDetected() {
	if m == nil {
		return
	}
	m.CrashDumpsDetectedTotal.Inc()
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
