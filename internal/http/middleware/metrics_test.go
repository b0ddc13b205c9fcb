package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/neurocanvas-backend/internal/observability"
)

func scrape(t *testing.T, m *observability.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMetricsSeparatesStreamsFromLatency(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := observability.NewMetrics()
	r := gin.New()
	r.Use(Metrics(m))

	var openDuringStream string
	r.GET("/api/canvases/:id/events", func(c *gin.Context) {
		openDuringStream = scrape(t, m)
		c.Status(http.StatusOK)
	})
	r.GET("/api/canvases/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/healthcheck", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, p := range []string{"/api/canvases/c-1/events", "/api/canvases/c-1", "/healthcheck"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	assert.Contains(t, openDuringStream, `nc_api_open_streams{route="/api/canvases/:id/events"} 1`)

	out := scrape(t, m)
	assert.Contains(t, out, `nc_api_open_streams{route="/api/canvases/:id/events"} 0`)
	assert.Contains(t, out, `nc_api_requests_total{method="GET",route="/api/canvases/:id/events",status="200"} 1`)
	assert.Contains(t, out, `nc_api_request_duration_seconds_count{method="GET",route="/api/canvases/:id"} 1`)
	assert.NotContains(t, out, `nc_api_request_duration_seconds_count{method="GET",route="/api/canvases/:id/events"}`)
	assert.NotContains(t, out, `route="/healthcheck"`)
}
