package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/neurocanvas-backend/internal/platform/ctxutil"
)

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"
)

// AttachTraceContext stores trace and request ids on the request context and
// echoes them as response headers. An active OTel span wins over a fresh id.
// Canvas and module routes also tag the ids they address onto the trace data
// and the active span.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := strings.TrimSpace(c.GetHeader(headerRequestID))
		if reqID == "" {
			reqID = uuid.New().String()
		}
		span := trace.SpanFromContext(c.Request.Context())
		traceID := strings.TrimSpace(c.GetHeader(headerTraceID))
		if traceID == "" && span.SpanContext().HasTraceID() {
			traceID = span.SpanContext().TraceID().String()
		}
		if traceID == "" {
			traceID = uuid.New().String()
		}
		td := &ctxutil.TraceData{TraceID: traceID, RequestID: reqID}
		td.CanvasID, td.ModuleID = routeResource(c)

		if td.CanvasID != "" {
			c.Set("canvas_id", td.CanvasID)
			span.SetAttributes(attribute.String("canvas.id", td.CanvasID))
		}
		if td.ModuleID != "" {
			c.Set("module_id", td.ModuleID)
			span.SetAttributes(attribute.String("module.id", td.ModuleID))
		}
		c.Request = c.Request.WithContext(ctxutil.WithTraceData(c.Request.Context(), td))
		c.Set("trace_id", traceID)
		c.Set("request_id", reqID)
		c.Writer.Header().Set(headerTraceID, traceID)
		c.Writer.Header().Set(headerRequestID, reqID)
		c.Next()
	}
}

// routeResource maps the matched route's :id to a canvas or module id.
func routeResource(c *gin.Context) (canvasID, moduleID string) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return "", ""
	}
	switch path := c.FullPath(); {
	case strings.HasPrefix(path, "/api/canvases/"):
		return id, ""
	case strings.HasPrefix(path, "/api/modules/"):
		return "", id
	}
	return "", ""
}
