package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/secmon-lab/proteus/pkg/domain/model"
)

// Tick result labels
const (
	ResultSkipped       = "skipped"
	ResultSucceeded     = "succeeded"
	ResultFailed        = "failed"
	ResultPersistFailed = "persist_failed"
	ResultAbandoned     = "abandoned"
)

// Metrics holds all Prometheus collectors of proteus. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	TickUsersTotal      *prometheus.CounterVec
	TickDuration        prometheus.Histogram
	TickLastSuccess     prometheus.Gauge
	InteractionsTotal   *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers all metrics on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		TickUsersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proteus_tick_users_total",
			Help: "Users evaluated by rotation ticks, by result.",
		}, []string{"result"}),

		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "proteus_tick_duration_seconds",
			Help:    "Duration of rotation ticks in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}),

		TickLastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "proteus_tick_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last tick that completed.",
		}),

		InteractionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proteus_interactions_total",
			Help: "Slack interaction payloads handled, by outcome.",
		}, []string{"outcome"}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proteus_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "proteus_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		m.TickUsersTotal,
		m.TickDuration,
		m.TickLastSuccess,
		m.InteractionsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry returns the private Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RegisterDBPoolCollector exposes connection pool gauges of the SQL backend
func (m *Metrics) RegisterDBPoolCollector(statFunc DBPoolStatFunc) {
	if m == nil {
		return
	}
	m.registry.MustRegister(NewDBPoolCollector(statFunc))
}

// RecordTick adds the counts of a finished tick
func (m *Metrics) RecordTick(report *model.TickReport) {
	if m == nil || report == nil {
		return
	}

	m.TickUsersTotal.WithLabelValues(ResultSkipped).Add(float64(report.Candidates - report.Eligible))
	m.TickUsersTotal.WithLabelValues(ResultSucceeded).Add(float64(report.Succeeded))
	m.TickUsersTotal.WithLabelValues(ResultFailed).Add(float64(report.Failed))
	m.TickUsersTotal.WithLabelValues(ResultPersistFailed).Add(float64(report.PersistFailed))
	m.TickUsersTotal.WithLabelValues(ResultAbandoned).Add(float64(report.Abandoned))
	m.TickDuration.Observe(report.Duration().Seconds())
	if report.Abandoned == 0 {
		m.TickLastSuccess.Set(float64(report.FinishedAt.Unix()))
	}
}

// IncInteraction counts one handled interaction
func (m *Metrics) IncInteraction(outcome string) {
	if m == nil {
		return
	}
	m.InteractionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveHTTP records one served request
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
