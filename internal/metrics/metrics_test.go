package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveHTTP(http.MethodGet, "/api/v1/listings", 200, 10*time.Millisecond)
	m.ObserveBackend("rest", 200, 5*time.Millisecond)
	m.Report("sent")
	m.Report("sent")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/v1/listings", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.backendRequests.WithLabelValues("rest", "200")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.reports.WithLabelValues("sent")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.Report("invalid")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `marketplace_report_issues_total{result="invalid"} 1`)
}
