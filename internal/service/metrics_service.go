package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/presence-api/internal/models"
)

// Absence sources label presence_absences_marked_total.
const (
	AbsenceSourceSweeper  = "sweeper"
	AbsenceSourceBackfill = "backfill"
)

// MetricsService encapsulates Prometheus instrumentation. A nil service records nothing.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	scansTotal      *prometheus.CounterVec
	absencesMarked  *prometheus.CounterVec
	sweeperRuns     *prometheus.CounterVec
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

	scansTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "presence_scans_total",
		Help: "Presence scans recorded, by classified status",
	}, []string{"status"})

	absencesMarked := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "presence_absences_marked_total",
		Help: "Absence records written automatically, by source",
	}, []string{"source"})

	sweeperRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "presence_sweeper_runs_total",
		Help: "End-of-day sweeper runs, by outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, scansTotal, absencesMarked, sweeperRuns, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		scansTotal:      scansTotal,
		absencesMarked:  absencesMarked,
		sweeperRuns:     sweeperRuns,
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

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// RecordScan counts a classified scan.
func (m *MetricsService) RecordScan(status models.PresenceStatus) {
	if m == nil {
		return
	}
	m.scansTotal.WithLabelValues(string(status)).Inc()
}

// RecordAbsencesMarked counts absences written by source.
func (m *MetricsService) RecordAbsencesMarked(source string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.absencesMarked.WithLabelValues(source).Add(float64(count))
}

// RecordSweeperRun counts a sweeper run by outcome (ok, skipped, failed).
func (m *MetricsService) RecordSweeperRun(outcome string) {
	if m == nil {
		return
	}
	m.sweeperRuns.WithLabelValues(outcome).Inc()
}
