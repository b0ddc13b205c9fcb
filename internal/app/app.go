package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/neurocanvas-backend/internal/config"
	"github.com/yungbote/neurocanvas-backend/internal/data/db"
	httpserver "github.com/yungbote/neurocanvas-backend/internal/http"
	"github.com/yungbote/neurocanvas-backend/internal/observability"
	"github.com/yungbote/neurocanvas-backend/internal/platform/logger"
	"github.com/yungbote/neurocanvas-backend/internal/realtime"
)

const shutdownTimeout = 15 * time.Second

type App struct {
	Log      *logger.Logger
	Cfg      config.AppConfig
	DB       *gorm.DB
	Clients  Clients
	Services Services
	Server   *httpserver.Server
	SSEHub   *realtime.SSEHub
	Metrics  *observability.Metrics

	otelShutdown func(context.Context) error
}

// OpenDB connects with the configured driver and migrates when enabled.
func OpenDB(log *logger.Logger, cfg config.AppConfig, migrate bool) (*gorm.DB, error) {
	dsn := cfg.DB.PostgresDSN()
	if cfg.DB.Driver == "sqlite" {
		dsn = cfg.DB.SQLitePath
	}
	gdb, err := db.Open(log, db.Options{Driver: cfg.DB.Driver, DSN: dsn})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if migrate {
		if err := db.AutoMigrateAll(gdb); err != nil {
			return nil, fmt.Errorf("automigrate: %w", err)
		}
	}
	return gdb, nil
}

func New(ctx context.Context, log *logger.Logger, cfg config.AppConfig) (*App, error) {
	metrics := observability.Init(log, cfg.MetricsEnabled)
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:      cfg.OTel.Enabled,
		ServiceName:  cfg.OTel.ServiceName,
		Environment:  cfg.OTel.Environment,
		Endpoint:     cfg.OTel.Endpoint,
		Headers:      observability.ParseHeaders(cfg.OTel.Headers),
		Insecure:     cfg.OTel.Insecure,
		SampleRatio:  cfg.OTel.SampleRatio,
		StdoutPretty: cfg.OTel.StdoutPretty,
	})

	gdb, err := OpenDB(log, cfg, cfg.DB.AutoMigrate)
	if err != nil {
		return nil, err
	}

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		return nil, err
	}

	hub := realtime.NewSSEHub(log)
	serviceset, err := wireServices(gdb, log, cfg, clients, hub)
	if err != nil {
		clients.Close(ctx)
		return nil, err
	}

	server := wireHTTP(log, cfg, gdb, clients, serviceset, hub, metrics)

	return &App{
		Log:          log,
		Cfg:          cfg,
		DB:           gdb,
		Clients:      clients,
		Services:     serviceset,
		Server:       server,
		SSEHub:       hub,
		Metrics:      metrics,
		otelShutdown: otelShutdown,
	}, nil
}

// Start brings up background work: the cross-process event forwarder, the
// Temporal worker and recovery of media jobs left active by a previous run.
func (a *App) Start(ctx context.Context) error {
	if a.Services.Bus != nil {
		if err := a.Services.Bus.StartForwarder(ctx, a.SSEHub.Broadcast); err != nil {
			return fmt.Errorf("start sse forwarder: %w", err)
		}
	}
	if a.Services.Workers != nil {
		if err := a.Services.Workers.Start(ctx); err != nil {
			return fmt.Errorf("start temporal worker: %w", err)
		}
	}
	n, err := a.Services.Media.Recover(ctx)
	if err != nil {
		a.Log.Error("media job recovery failed", "error", err)
	} else if n > 0 {
		a.Log.Info("resumed media jobs", "count", n)
	}
	return nil
}

// Run serves HTTP until ctx is cancelled, then stops pollers.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	if err := a.Start(ctx); err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Log.Info("HTTP server listening", "port", a.Cfg.Port)
		return a.Server.Run(gctx, ":"+a.Cfg.Port, shutdownTimeout)
	})
	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.Services.Media.Shutdown(stopCtx)
	})
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) Close() {
	if a == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if a.Services.Bus != nil {
		_ = a.Services.Bus.Close()
	}
	a.Clients.Close(ctx)
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(ctx)
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
