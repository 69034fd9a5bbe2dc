package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oocana-go/oocana/internal/infrastructure/monitoring"
)

func TestMetricsMiddleware_RecordsHTTPRequestMetrics(t *testing.T) {
	m := monitoring.NewMetrics("test_mw_ns")
	e := echo.New()
	mw := Metrics(m)

	handler := mw(func(c echo.Context) error {
		return c.String(http.StatusCreated, "ok")
	})

	req := httptest.NewRequest(http.MethodPost, "/sessions", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/sessions")

	require.NoError(t, handler(c))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodPost, "/sessions", "2xx")))
}

func TestMetricsEndpoint_ReturnsStatusPayload(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, MetricsEndpoint()(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "metrics available")
}
