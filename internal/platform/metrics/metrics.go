package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Token refresh outcomes.
const (
	RefreshSucceeded = "refreshed"
	RefreshFailed    = "failed"
)

// Metrics holds the Prometheus collectors exported by drivedesk.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	TokenRefreshTotal   *prometheus.CounterVec
	UpstreamRequests    *prometheus.CounterVec
}

// New creates the collectors on a dedicated registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drivedesk_http_requests_total",
				Help: "Total number of HTTP requests served.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "drivedesk_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latency.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		TokenRefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drivedesk_token_refresh_total",
				Help: "Access token refresh attempts by outcome.",
			},
			[]string{"outcome"},
		),
		UpstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drivedesk_upstream_requests_total",
				Help: "Requests issued to downstream Google APIs.",
			},
			[]string{"api", "status"},
		),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.TokenRefreshTotal,
		m.UpstreamRequests,
	)

	return m
}

// ObserveTokenRefresh records the outcome of a refresh attempt.
func (m *Metrics) ObserveTokenRefresh(outcome string) {
	m.TokenRefreshTotal.WithLabelValues(outcome).Inc()
}

// ObserveUpstream records a downstream API call. Status 0 means the request never got a response.
func (m *Metrics) ObserveUpstream(api string, status int) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.UpstreamRequests.WithLabelValues(api, label).Inc()
}

// ObserveRequest records a served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, seconds float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(seconds)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
