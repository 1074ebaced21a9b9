package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.IncAnalysis("Alto Potencial")
	m.IncAnalysis("Alto Potencial")
	m.IncRateLimited("/api/v1/companies/analyze")
	m.IncAlert("high_propensity", "sent")

	assert.InDelta(t, 2, testutil.ToFloat64(m.analyses.WithLabelValues("Alto Potencial")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.rateLimited.WithLabelValues("/api/v1/companies/analyze")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.alerts.WithLabelValues("high_propensity", "sent")), 1e-9)
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.IncAnalysis("Bom Potencial")
	assert.InDelta(t, 0, testutil.ToFloat64(b.analyses.WithLabelValues("Bom Potencial")), 1e-9)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncAnalysis("x")
		m.IncRateLimited("x")
		m.IncAlert("x", "y")
		m.ObserveRequest("x", time.Second)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveRequest("/health", 5*time.Millisecond)
	m.IncAlert("low_maturity", "muted")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `prospect_alerts_total{rule="low_maturity",status="muted"} 1`)
	assert.Contains(t, string(body), "prospect_http_request_duration_seconds_bucket")
}
