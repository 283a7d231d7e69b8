package obs

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainpayment "staybook/internal/domain/payment"
)

func TestMetricsRecordsDomainCounters(t *testing.T) {
	m := NewMetrics()
	m.BookingReserved("created")
	m.BookingReserved("created")
	m.GatewayCall("query", 10*time.Millisecond, domainpayment.ErrGatewayUnavailable)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.bookingsReserved.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.gatewayCalls.WithLabelValues("query", "unavailable")))
}

func TestMiddlewareSetsRequestIDAndServesMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()
	var buf bytes.Buffer
	mw := Middleware{Logger: newLogger("prod", &buf, levelFromEnv("")), Metrics: m}

	r := gin.New()
	r.Use(mw.RequestID(), mw.LoggerMiddleware())
	r.GET("/livez", HealthHandlers{}.Livez)
	r.GET("/metrics", m.Handler())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Contains(t, buf.String(), `"path":"/livez"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `http_requests_total{endpoint="/livez",method="GET",status="200"} 1`)
}

func TestReadyzReportsFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/readyz", HealthHandlers{Checks: map[string]Check{
		"store": func(context.Context) error { return assert.AnError },
	}}.Readyz)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "store")
}
