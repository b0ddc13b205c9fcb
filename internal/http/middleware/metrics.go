package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/neurocanvas-backend/internal/observability"
)

// Metrics instruments HTTP request counts/latency when metrics are enabled.
// Event streams stay open for the life of a canvas view, so they are tracked
// as open streams and counted without a latency sample. Scrapes of /metrics
// and health checks are not instrumented.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		switch {
		case route == "/metrics" || route == "/healthcheck":
			c.Next()
			return
		case route == "":
			route = "unknown"
		}

		if isStreamRoute(route) {
			done := m.StreamOpened(route)
			c.Next()
			done()
			m.CountAPI(c.Request.Method, route, strconv.Itoa(c.Writer.Status()))
			return
		}

		start := time.Now()
		m.APIInflightInc()
		defer m.APIInflightDec()

		c.Next()

		m.ObserveAPI(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

func isStreamRoute(route string) bool {
	return strings.HasSuffix(route, "/events")
}
