package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/neurocanvas-backend/internal/config"
	"github.com/yungbote/neurocanvas-backend/internal/data/repos"
	"github.com/yungbote/neurocanvas-backend/internal/data/store"
	"github.com/yungbote/neurocanvas-backend/internal/modules/canvas/dispatch"
	"github.com/yungbote/neurocanvas-backend/internal/modules/canvas/intent"
	"github.com/yungbote/neurocanvas-backend/internal/modules/canvas/media"
	"github.com/yungbote/neurocanvas-backend/internal/modules/canvas/plan"
	"github.com/yungbote/neurocanvas-backend/internal/platform/logger"
	"github.com/yungbote/neurocanvas-backend/internal/platform/redisx"
	"github.com/yungbote/neurocanvas-backend/internal/realtime"
	"github.com/yungbote/neurocanvas-backend/internal/realtime/bus"
	"github.com/yungbote/neurocanvas-backend/internal/services"
	"github.com/yungbote/neurocanvas-backend/internal/temporalx/mediapoll"
	"github.com/yungbote/neurocanvas-backend/internal/temporalx/temporalworker"
)

const leasePrefix = "neurocanvas:lease:"

type Services struct {
	Store   store.VersionStore
	Media   *media.Manager
	Canvas  services.CanvasService
	Module  services.ModuleService
	Bus     bus.Bus
	Workers *temporalworker.Runner
}

func wireServices(gdb *gorm.DB, log *logger.Logger, cfg config.AppConfig, clients Clients, hub *realtime.SSEHub) (Services, error) {
	log.Info("Wiring services...")
	vs := store.New(gdb, log)

	eventBus := bus.NewLocalBus(hub)
	if clients.Redis != nil {
		rb, err := bus.NewRedisBus(log, clients.Redis, cfg.Redis.Channel)
		if err != nil {
			return Services{}, fmt.Errorf("init redis sse bus: %w", err)
		}
		eventBus = rb
	}
	notify := services.NewCanvasNotifier(&services.BusEmitter{Bus: eventBus, Log: log})

	var primary plan.Planner
	if clients.OpenAI != nil && cfg.Plan.LLMEnabled {
		primary = plan.NewLLMPlanner(clients.OpenAI, cfg.Plan.MaxModules)
	}
	templates, err := plan.NewTemplatePlanner(cfg.Plan.MaxModules)
	if err != nil {
		return Services{}, fmt.Errorf("init template planner: %w", err)
	}
	planner := plan.WithFallback(primary, templates, log)

	reg, err := dispatch.NewDefaultRegistry(clients.OpenAI)
	if err != nil {
		return Services{}, fmt.Errorf("init handler registry: %w", err)
	}
	dispatcher, err := dispatch.New(log, reg)
	if err != nil {
		return Services{}, fmt.Errorf("init dispatcher: %w", err)
	}

	mediaManager, err := wireMedia(log, cfg, clients, vs, repos.NewMediaJobRepo(gdb, log), notify)
	if err != nil {
		return Services{}, err
	}

	var workers *temporalworker.Runner
	if clients.Temporal != nil && cfg.Media.Executor == "temporal" {
		sched, err := mediapoll.NewScheduler(clients.Temporal, cfg.Temporal.TaskQueue, cfg.Media.PollInterval)
		if err != nil {
			return Services{}, fmt.Errorf("init media scheduler: %w", err)
		}
		mediaManager.SetScheduler(sched)
		workers, err = temporalworker.NewRunner(log, clients.Temporal, cfg.Temporal, mediaManager)
		if err != nil {
			return Services{}, fmt.Errorf("init temporal worker: %w", err)
		}
	}

	var classifier intent.Classifier
	if clients.OpenAI != nil && cfg.Intent.LLMEnabled {
		classifier = intent.NewLLMClassifier(clients.OpenAI)
	}
	router := intent.NewRouter(log, classifier)

	gen := services.NewGenerator(log, vs, planner, dispatcher, mediaManager, notify)
	return Services{
		Store:   vs,
		Media:   mediaManager,
		Canvas:  services.NewCanvasService(log, vs, gen, router, clients.Neo4j, notify),
		Module:  services.NewModuleService(log, vs, gen, mediaManager, notify),
		Bus:     eventBus,
		Workers: workers,
	}, nil
}

func wireMedia(
	log *logger.Logger,
	cfg config.AppConfig,
	clients Clients,
	vs store.VersionStore,
	jobs repos.MediaJobRepo,
	notify *services.CanvasNotifier,
) (*media.Manager, error) {
	var providers []media.Provider
	if clients.OpenAI != nil {
		providers = append(providers,
			media.NewVideoProvider(log, clients.OpenAI, clients.MediaStore, cfg.Media.VideoSeconds, cfg.Media.PromptBrief),
			media.NewImageProvider(log, clients.OpenAI, clients.MediaStore, cfg.Media.PromptBrief),
		)
	}
	var thumbs *media.ThumbnailMaker
	if cfg.Media.Thumbnails && clients.MediaStore != nil {
		t, err := media.NewThumbnailMaker(clients.MediaStore)
		if err != nil {
			log.Warn("thumbnail renderer unavailable; video placeholders carry no thumbnail", "error", err)
		} else {
			thumbs = t
		}
	}
	var annotator media.Annotator
	if clients.Annotator != nil {
		annotator = clients.Annotator
	}
	var locker media.Locker
	if clients.Redis != nil {
		locker = media.RedisLocker(redisx.NewLocker(clients.Redis, leasePrefix))
	}
	m, err := media.NewManager(media.Config{
		PollInterval:       cfg.Media.PollInterval,
		VideoTimeout:       cfg.Media.VideoTimeout,
		ImageTimeout:       cfg.Media.ImageTimeout,
		MaxConcurrentPolls: cfg.Media.MaxConcurrentPolls,
		LeaseTTL:           cfg.Media.LeaseTTL,
		AnnotateTimeout:    cfg.Media.AnnotateTimeout,
	}, media.Deps{
		Log:       log,
		Store:     vs,
		Jobs:      jobs,
		Providers: providers,
		Notifier:  notify,
		Locker:    locker,
		Thumbs:    thumbs,
		Annotator: annotator,
	})
	if err != nil {
		return nil, fmt.Errorf("init media manager: %w", err)
	}
	return m, nil
}
