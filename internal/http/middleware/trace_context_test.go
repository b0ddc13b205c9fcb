package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/yungbote/neurocanvas-backend/internal/platform/ctxutil"
)

func TestAttachTraceContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext())
	var seen *ctxutil.TraceData
	r.GET("/x", func(c *gin.Context) {
		seen = ctxutil.GetTraceData(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(headerRequestID, "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "req-1", rec.Header().Get(headerRequestID))
	assert.NotEmpty(t, rec.Header().Get(headerTraceID))
	if assert.NotNil(t, seen) {
		assert.Equal(t, "req-1", seen.RequestID)
		assert.Equal(t, rec.Header().Get(headerTraceID), seen.TraceID)
	}
}

func TestAttachTraceContextTagsRouteResource(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext())
	var seen *ctxutil.TraceData
	capture := func(c *gin.Context) {
		seen = ctxutil.GetTraceData(c.Request.Context())
		c.Status(http.StatusNoContent)
	}
	r.GET("/api/canvases/:id/events", capture)
	r.POST("/api/modules/:id/edit", capture)
	r.PUT("/api/modules/reorder", capture)

	cases := []struct {
		method, path   string
		canvas, module string
	}{
		{http.MethodGet, "/api/canvases/c-1/events", "c-1", ""},
		{http.MethodPost, "/api/modules/m-9/edit", "", "m-9"},
		{http.MethodPut, "/api/modules/reorder", "", ""},
	}
	for _, tc := range cases {
		seen = nil
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(tc.method, tc.path, nil))
		if assert.NotNil(t, seen, tc.path) {
			assert.Equal(t, tc.canvas, seen.CanvasID, tc.path)
			assert.Equal(t, tc.module, seen.ModuleID, tc.path)
		}
	}
}
