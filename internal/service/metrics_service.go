package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and
// the registration workflow.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	selectionEvents *prometheus.CounterVec
	emailsSent      prometheus.Counter
	emailsFailed    prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	selectionEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "registration_events_total",
		Help: "Registration workflow events by action",
	}, []string{"action"})

	emailsSent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "removal_emails_sent_total",
		Help: "Removal notice emails successfully handed to the provider",
	})

	emailsFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "removal_emails_failed_total",
		Help: "Removal notice emails the provider rejected",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, selectionEvents, emailsSent, emailsFailed, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		selectionEvents: selectionEvents,
		emailsSent:      emailsSent,
		emailsFailed:    emailsFailed,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordRegistrationEvent counts a workflow action: select, cancel,
// lock, unlock, or remove.
func (m *MetricsService) RecordRegistrationEvent(action string) {
	if m == nil {
		return
	}
	m.selectionEvents.WithLabelValues(action).Inc()
}

// RecordEmailResult counts a removal email delivery attempt.
func (m *MetricsService) RecordEmailResult(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.emailsSent.Inc()
	} else {
		m.emailsFailed.Inc()
	}
}
