package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestRegistererExposesCustomCollectors(t *testing.T) {
	m := NewMetrics()

	jobsDone := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "beacon_test_jobs_done_total",
		Help: "Jobs completed during the test.",
	})
	m.Registerer().MustRegister(jobsDone)
	jobsDone.Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "beacon_test_jobs_done_total 1")
}

func TestRegistererOnNilMetricsFallsBack(t *testing.T) {
	var m *Metrics
	require.NotNil(t, m.Registerer())
}
