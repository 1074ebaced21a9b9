// Package metrics exposes Prometheus counters and histograms for analyses,
// rate limiting, alert delivery and HTTP latency.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so that building it more than once (as
// tests do) never collides with the default registerer.
type Metrics struct {
	Registry *prometheus.Registry

	analyses        *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
	alerts          *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New registers all collectors in a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		analyses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prospect_analyses_total",
				Help: "Completed company analyses by propensity class.",
			},
			[]string{"class"},
		),
		rateLimited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prospect_rate_limited_total",
				Help: "Requests denied by the rate limiter.",
			},
			[]string{"route"},
		),
		alerts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prospect_alerts_total",
				Help: "Alert outcomes by rule and delivery status.",
			},
			[]string{"rule", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "prospect_http_request_duration_seconds",
				Help:    "HTTP request latency by route pattern.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncAnalysis(class string) {
	if m == nil {
		return
	}
	m.analyses.WithLabelValues(class).Inc()
}

func (m *Metrics) IncRateLimited(route string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(route).Inc()
}

func (m *Metrics) IncAlert(rule, status string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(rule, status).Inc()
}

func (m *Metrics) ObserveRequest(route string, d time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}
