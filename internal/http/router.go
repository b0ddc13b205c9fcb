package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/neurocanvas-backend/internal/http/handlers"
	httpMW "github.com/yungbote/neurocanvas-backend/internal/http/middleware"
	"github.com/yungbote/neurocanvas-backend/internal/observability"
	"github.com/yungbote/neurocanvas-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	CORSOrigins []string
	// OTelService enables otelgin spans when non-empty.
	OTelService string
	// MediaDir is served under MediaPrefix when set.
	MediaDir    string
	MediaPrefix string

	CanvasHandler   *httpH.CanvasHandler
	ModuleHandler   *httpH.ModuleHandler
	RealtimeHandler *httpH.RealtimeHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.OTelService != "" {
		r.Use(otelgin.Middleware(cfg.OTelService))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}
	if cfg.MediaDir != "" && cfg.MediaPrefix != "" {
		r.Static(cfg.MediaPrefix, cfg.MediaDir)
	}

	api := r.Group("/api")
	{
		// Canvases
		if cfg.CanvasHandler != nil {
			api.POST("/canvases", cfg.CanvasHandler.CreateCanvas)
			api.GET("/canvases", cfg.CanvasHandler.ListCanvases)
			api.GET("/canvases/:id", cfg.CanvasHandler.GetCanvas)
			api.POST("/canvases/:id/expand", cfg.CanvasHandler.ExpandCanvas)
			api.POST("/canvases/:id/new", cfg.CanvasHandler.NewTopic)
			api.DELETE("/canvases/:id", cfg.CanvasHandler.DeleteCanvas)
			api.POST("/interact", cfg.CanvasHandler.Interact)
		}

		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			api.GET("/canvases/:id/events", cfg.RealtimeHandler.CanvasEvents)
		}

		// Modules
		if cfg.ModuleHandler != nil {
			api.PUT("/modules/reorder", cfg.ModuleHandler.ReorderModules)
			api.POST("/modules/:id/edit", cfg.ModuleHandler.EditModule)
			api.GET("/modules/:id/versions", cfg.ModuleHandler.ListVersions)
			api.POST("/modules/:id/refresh", cfg.ModuleHandler.RefreshModule)
			api.DELETE("/modules/:id", cfg.ModuleHandler.DeleteModule)
			api.PUT("/modules/:id/size", cfg.ModuleHandler.ResizeModule)
			api.GET("/async/status", cfg.ModuleHandler.MediaStatus)
		}
	}

	return r
}
