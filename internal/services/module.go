package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/neurocanvas-backend/internal/data/store"
	"github.com/yungbote/neurocanvas-backend/internal/domain"
	"github.com/yungbote/neurocanvas-backend/internal/modules/canvas/media"
	"github.com/yungbote/neurocanvas-backend/internal/platform/apierr"
	"github.com/yungbote/neurocanvas-backend/internal/platform/ctxutil"
	"github.com/yungbote/neurocanvas-backend/internal/platform/errs"
	"github.com/yungbote/neurocanvas-backend/internal/platform/logger"
	"github.com/yungbote/neurocanvas-backend/internal/realtime"
)

type ModuleResult struct {
	Module         *domain.Module        `json:"module"`
	CurrentVersion *domain.ModuleVersion `json:"current_version"`
}

type RefreshResult struct {
	Module         *domain.Module        `json:"module"`
	CurrentVersion *domain.ModuleVersion `json:"current_version"`
	JobStatus      *domain.MediaJob      `json:"job_status"`
}

type ModuleService interface {
	// Edit regenerates the module from prompt. A generation failure is not an
	// error: the result carries the error version.
	Edit(ctx context.Context, id uuid.UUID, prompt string) (*ModuleResult, error)
	Versions(ctx context.Context, id uuid.UUID) ([]*domain.ModuleVersion, error)
	Refresh(ctx context.Context, id uuid.UUID) (*RefreshResult, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Reorder(ctx context.Context, orders []store.OrderAssignment) error
	Resize(ctx context.Context, id uuid.UUID, width, height int) error
	MediaStatus(ctx context.Context) (media.StatusSnapshot, error)
}

type moduleService struct {
	log    *logger.Logger
	store  store.VersionStore
	gen    *Generator
	media  MediaManager
	notify *CanvasNotifier
}

func NewModuleService(
	baseLog *logger.Logger,
	vs store.VersionStore,
	gen *Generator,
	mediaManager MediaManager,
	notify *CanvasNotifier,
) ModuleService {
	return &moduleService{
		log:    baseLog.With("service", "ModuleService"),
		store:  vs,
		gen:    gen,
		media:  mediaManager,
		notify: notify,
	}
}

func (s *moduleService) Edit(ctx context.Context, id uuid.UUID, prompt string) (*ModuleResult, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, apierr.BadRequest("invalid_prompt", fmt.Errorf("prompt is required"))
	}
	module, err := s.findModule(ctx, id)
	if err != nil {
		return nil, err
	}
	canvas, err := s.store.FindCanvas(ctx, module.CanvasID)
	if err != nil {
		return nil, storageErr(err)
	}
	siblings, err := s.store.FindModulesByCanvas(ctx, canvas.ID)
	if err != nil {
		return nil, storageErr(err)
	}

	ctx = ctxutil.Detached(ctx)
	if err := s.store.UpdateModuleStatus(ctx, module.ID, domain.ModuleGenerating); err != nil {
		return nil, storageErr(err)
	}
	module.Status = domain.ModuleGenerating
	s.notify.Notify(ctx, canvas.ID, realtime.SSEEventModuleStatusChanged, statusEvent(module))

	prior, err := s.gen.Digest(ctx, siblings, module.ID)
	if err != nil {
		return nil, storageErr(err)
	}
	v, err := s.gen.Generate(ctx, canvas, module, prompt, prior)
	if err != nil {
		return nil, storageErr(err)
	}
	return &ModuleResult{Module: module, CurrentVersion: v}, nil
}

func (s *moduleService) Versions(ctx context.Context, id uuid.UUID) ([]*domain.ModuleVersion, error) {
	out, err := s.store.FindAllVersions(ctx, id)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, apierr.NotFound("module_not_found", err)
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return out, nil
}

func (s *moduleService) Refresh(ctx context.Context, id uuid.UUID) (*RefreshResult, error) {
	if _, err := s.findModule(ctx, id); err != nil {
		return nil, err
	}
	job, err := s.media.CheckStatus(ctx, id)
	if err != nil {
		return nil, storageErr(err)
	}
	module, err := s.findModule(ctx, id)
	if err != nil {
		return nil, err
	}
	v, err := s.store.FindLatestVersion(ctx, id)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, storageErr(err)
	}
	return &RefreshResult{Module: module, CurrentVersion: v, JobStatus: job}, nil
}

func (s *moduleService) Delete(ctx context.Context, id uuid.UUID) error {
	module, err := s.findModule(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteModule(ctx, id); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return apierr.NotFound("module_not_found", err)
		}
		return storageErr(err)
	}
	s.notify.Notify(ctx, module.CanvasID, realtime.SSEEventModuleDeleted, map[string]any{"module_id": id})
	return nil
}

func (s *moduleService) Reorder(ctx context.Context, orders []store.OrderAssignment) error {
	if len(orders) == 0 {
		return apierr.BadRequest("invalid_module_orders", fmt.Errorf("module_orders is required"))
	}
	for _, o := range orders {
		if o.ModuleID == uuid.Nil {
			return apierr.BadRequest("invalid_module_orders", fmt.Errorf("module id is required"))
		}
		if o.OrderIndex < 0 {
			return apierr.BadRequest("invalid_module_orders", fmt.Errorf("order_index must not be negative"))
		}
	}
	if err := s.store.UpdateModuleOrder(ctx, orders); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return apierr.NotFound("module_not_found", err)
		}
		return storageErr(err)
	}
	return nil
}

func (s *moduleService) Resize(ctx context.Context, id uuid.UUID, width, height int) error {
	if width <= 0 || height <= 0 {
		return apierr.BadRequest("invalid_size", fmt.Errorf("width and height must be positive"))
	}
	if err := s.store.UpdateModuleSize(ctx, id, width, height); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return apierr.NotFound("module_not_found", err)
		}
		return storageErr(err)
	}
	return nil
}

func (s *moduleService) MediaStatus(ctx context.Context) (media.StatusSnapshot, error) {
	snap, err := s.media.Status(ctx)
	if err != nil {
		return media.StatusSnapshot{}, storageErr(err)
	}
	return snap, nil
}

func (s *moduleService) findModule(ctx context.Context, id uuid.UUID) (*domain.Module, error) {
	m, err := s.store.FindModule(ctx, id)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, apierr.NotFound("module_not_found", err)
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return m, nil
}
