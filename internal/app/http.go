package app

import (
	"context"

	"gorm.io/gorm"

	"github.com/yungbote/neurocanvas-backend/internal/config"
	httpserver "github.com/yungbote/neurocanvas-backend/internal/http"
	httpH "github.com/yungbote/neurocanvas-backend/internal/http/handlers"
	"github.com/yungbote/neurocanvas-backend/internal/observability"
	"github.com/yungbote/neurocanvas-backend/internal/platform/logger"
	"github.com/yungbote/neurocanvas-backend/internal/realtime"
)

func wireHTTP(
	log *logger.Logger,
	cfg config.AppConfig,
	gdb *gorm.DB,
	clients Clients,
	svcs Services,
	hub *realtime.SSEHub,
	metrics *observability.Metrics,
) *httpserver.Server {
	log.Info("Wiring handlers...")
	checks := map[string]httpH.Pinger{
		"db": func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if clients.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return clients.Redis.Ping(ctx).Err() }
	}

	rc := httpserver.RouterConfig{
		Log:             log,
		Metrics:         metrics,
		CORSOrigins:     cfg.CORSOrigins,
		CanvasHandler:   httpH.NewCanvasHandler(svcs.Canvas),
		ModuleHandler:   httpH.NewModuleHandler(svcs.Module),
		RealtimeHandler: httpH.NewRealtimeHandler(log, hub, svcs.Canvas),
		HealthHandler:   httpH.NewHealthHandler(checks),
	}
	if cfg.OTel.Enabled {
		rc.OTelService = cfg.OTel.ServiceName
	}
	if clients.MediaDir != "" {
		rc.MediaDir = clients.MediaDir
		rc.MediaPrefix = cfg.Media.LocalURLPrefix
	}
	return httpserver.NewServer(rc)
}
