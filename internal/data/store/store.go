package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/neurocanvas-backend/internal/data/db"
	"github.com/yungbote/neurocanvas-backend/internal/data/repos"
	"github.com/yungbote/neurocanvas-backend/internal/domain"
	"github.com/yungbote/neurocanvas-backend/internal/domain/content"
	"github.com/yungbote/neurocanvas-backend/internal/platform/dbctx"
	"github.com/yungbote/neurocanvas-backend/internal/platform/errs"
	"github.com/yungbote/neurocanvas-backend/internal/platform/logger"
)

// OrderAssignment moves one module to a new order_index.
type OrderAssignment struct {
	ModuleID   uuid.UUID
	OrderIndex int
}

// VersionStore is the single write path for canvases, modules and their
// versions. Versions are append-only; the current version of a module is
// always derived by query.
type VersionStore interface {
	CreateCanvas(ctx context.Context, canvas *domain.Canvas) error
	FindCanvas(ctx context.Context, id uuid.UUID) (*domain.Canvas, error)
	ArchiveCanvas(ctx context.Context, id uuid.UUID, supersededBy *uuid.UUID) error
	ListCanvases(ctx context.Context, status domain.CanvasStatus) ([]*domain.Canvas, error)
	DeleteCanvas(ctx context.Context, id uuid.UUID) error

	CreateModule(ctx context.Context, module *domain.Module) error
	FindModule(ctx context.Context, id uuid.UUID) (*domain.Module, error)
	FindModulesByCanvas(ctx context.Context, canvasID uuid.UUID) ([]*domain.Module, error)
	NextOrderIndex(ctx context.Context, canvasID uuid.UUID) (int, error)
	UpdateModuleStatus(ctx context.Context, id uuid.UUID, status domain.ModuleStatus) error
	UpdateModuleOrder(ctx context.Context, assignments []OrderAssignment) error
	UpdateModuleSize(ctx context.Context, id uuid.UUID, width, height int) error
	DeleteModule(ctx context.Context, id uuid.UUID) error

	CreateVersion(ctx context.Context, moduleID uuid.UUID, prompt string, payload content.Payload) (*domain.ModuleVersion, error)
	// CommitVersion appends a version and sets the module status in one
	// transaction.
	CommitVersion(ctx context.Context, moduleID uuid.UUID, prompt string, payload content.Payload, status domain.ModuleStatus) (*domain.ModuleVersion, error)
	FindLatestVersion(ctx context.Context, moduleID uuid.UUID) (*domain.ModuleVersion, error)
	FindAllVersions(ctx context.Context, moduleID uuid.UUID) ([]*domain.ModuleVersion, error)
	LatestVersions(ctx context.Context, moduleIDs []uuid.UUID) (map[uuid.UUID]*domain.ModuleVersion, error)
	CountVersions(ctx context.Context, moduleIDs []uuid.UUID) (map[uuid.UUID]int, error)
}

type versionStore struct {
	log      *logger.Logger
	tx       db.TxRunner
	canvases repos.CanvasRepo
	modules  repos.ModuleRepo
	versions repos.ModuleVersionRepo
	jobs     repos.MediaJobRepo
}

func New(gdb *gorm.DB, baseLog *logger.Logger) VersionStore {
	return NewWithRepos(baseLog, db.NewGormTxRunner(gdb),
		repos.NewCanvasRepo(gdb, baseLog),
		repos.NewModuleRepo(gdb, baseLog),
		repos.NewModuleVersionRepo(gdb, baseLog),
		repos.NewMediaJobRepo(gdb, baseLog),
	)
}

func NewWithRepos(
	baseLog *logger.Logger,
	tx db.TxRunner,
	canvases repos.CanvasRepo,
	modules repos.ModuleRepo,
	versions repos.ModuleVersionRepo,
	jobs repos.MediaJobRepo,
) VersionStore {
	return &versionStore{
		log:      baseLog.With("component", "VersionStore"),
		tx:       tx,
		canvases: canvases,
		modules:  modules,
		versions: versions,
		jobs:     jobs,
	}
}

func (s *versionStore) CreateCanvas(ctx context.Context, canvas *domain.Canvas) error {
	if canvas == nil {
		return fmt.Errorf("create canvas: %w", errs.ErrInvalidArgument)
	}
	return s.canvases.Create(dbctx.Background(ctx), canvas)
}

func (s *versionStore) FindCanvas(ctx context.Context, id uuid.UUID) (*domain.Canvas, error) {
	return s.canvases.GetByID(dbctx.Background(ctx), id)
}

// ArchiveCanvas is idempotent. An archived canvas keeps its modules and
// versions and is never reactivated.
func (s *versionStore) ArchiveCanvas(ctx context.Context, id uuid.UUID, supersededBy *uuid.UUID) error {
	updates := map[string]interface{}{"status": domain.CanvasArchived}
	if supersededBy != nil {
		updates["superseded_by"] = *supersededBy
	}
	ok, err := s.canvases.UpdateFields(dbctx.Background(ctx), id, updates)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("canvas %s: %w", id, errs.ErrNotFound)
	}
	return nil
}

func (s *versionStore) ListCanvases(ctx context.Context, status domain.CanvasStatus) ([]*domain.Canvas, error) {
	return s.canvases.List(dbctx.Background(ctx), status)
}

func (s *versionStore) DeleteCanvas(ctx context.Context, id uuid.UUID) error {
	return s.tx.InTx(ctx, func(dbc dbctx.Context) error {
		if _, err := s.canvases.GetByID(dbc, id); err != nil {
			return err
		}
		moduleIDs, err := s.modules.IDsByCanvas(dbc, id)
		if err != nil {
			return err
		}
		if err := s.jobs.DeleteByModules(dbc, moduleIDs); err != nil {
			return err
		}
		if err := s.versions.DeleteByModules(dbc, moduleIDs); err != nil {
			return err
		}
		if err := s.modules.DeleteByCanvas(dbc, id); err != nil {
			return err
		}
		_, err = s.canvases.Delete(dbc, id)
		return err
	})
}

func (s *versionStore) CreateModule(ctx context.Context, module *domain.Module) error {
	if module == nil {
		return fmt.Errorf("create module: %w", errs.ErrInvalidArgument)
	}
	return s.modules.Create(dbctx.Background(ctx), module)
}

func (s *versionStore) FindModule(ctx context.Context, id uuid.UUID) (*domain.Module, error) {
	return s.modules.GetByID(dbctx.Background(ctx), id)
}

func (s *versionStore) FindModulesByCanvas(ctx context.Context, canvasID uuid.UUID) ([]*domain.Module, error) {
	return s.modules.ListByCanvas(dbctx.Background(ctx), canvasID)
}

func (s *versionStore) NextOrderIndex(ctx context.Context, canvasID uuid.UUID) (int, error) {
	maxIdx, err := s.modules.MaxOrderIndex(dbctx.Background(ctx), canvasID)
	if err != nil {
		return 0, err
	}
	return maxIdx + 1, nil
}

func (s *versionStore) UpdateModuleStatus(ctx context.Context, id uuid.UUID, status domain.ModuleStatus) error {
	ok, err := s.modules.UpdateFields(dbctx.Background(ctx), id, map[string]interface{}{"status": status})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("module %s: %w", id, errs.ErrNotFound)
	}
	return nil
}

// UpdateModuleOrder applies every assignment or none. Later assignments for
// the same module win.
func (s *versionStore) UpdateModuleOrder(ctx context.Context, assignments []OrderAssignment) error {
	if len(assignments) == 0 {
		return nil
	}
	return s.tx.InTx(ctx, func(dbc dbctx.Context) error {
		for _, a := range assignments {
			ok, err := s.modules.UpdateFields(dbc, a.ModuleID, map[string]interface{}{"order_index": a.OrderIndex})
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("module %s: %w", a.ModuleID, errs.ErrNotFound)
			}
		}
		return nil
	})
}

func (s *versionStore) UpdateModuleSize(ctx context.Context, id uuid.UUID, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("module size %dx%d: %w", width, height, errs.ErrInvalidArgument)
	}
	ok, err := s.modules.UpdateFields(dbctx.Background(ctx), id, map[string]interface{}{
		"width":  width,
		"height": height,
	})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("module %s: %w", id, errs.ErrNotFound)
	}
	return nil
}

func (s *versionStore) DeleteModule(ctx context.Context, id uuid.UUID) error {
	return s.tx.InTx(ctx, func(dbc dbctx.Context) error {
		ids := []uuid.UUID{id}
		if err := s.jobs.DeleteByModules(dbc, ids); err != nil {
			return err
		}
		if err := s.versions.DeleteByModules(dbc, ids); err != nil {
			return err
		}
		ok, err := s.modules.Delete(dbc, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("module %s: %w", id, errs.ErrNotFound)
		}
		return nil
	})
}

func (s *versionStore) CreateVersion(ctx context.Context, moduleID uuid.UUID, prompt string, payload content.Payload) (*domain.ModuleVersion, error) {
	var out *domain.ModuleVersion
	err := s.tx.InTx(ctx, func(dbc dbctx.Context) error {
		v, err := s.appendVersion(dbc, moduleID, prompt, payload)
		out = v
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *versionStore) CommitVersion(ctx context.Context, moduleID uuid.UUID, prompt string, payload content.Payload, status domain.ModuleStatus) (*domain.ModuleVersion, error) {
	var out *domain.ModuleVersion
	err := s.tx.InTx(ctx, func(dbc dbctx.Context) error {
		v, err := s.appendVersion(dbc, moduleID, prompt, payload)
		if err != nil {
			return err
		}
		ok, err := s.modules.UpdateFields(dbc, moduleID, map[string]interface{}{"status": status})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("module %s: %w", moduleID, errs.ErrNotFound)
		}
		out = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// appendVersion inserts a version whose created_at is strictly after the
// module's current one, so a later write is always the latest.
func (s *versionStore) appendVersion(dbc dbctx.Context, moduleID uuid.UUID, prompt string, payload content.Payload) (*domain.ModuleVersion, error) {
	body, err := content.Encode(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrInvalidArgument, err)
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	latest, err := s.versions.Latest(dbc, moduleID)
	switch {
	case err == nil:
		if !now.After(latest.CreatedAt) {
			now = latest.CreatedAt.Add(time.Microsecond)
		}
	case errors.Is(err, errs.ErrNotFound):
	default:
		return nil, err
	}
	v := &domain.ModuleVersion{
		ModuleID:    moduleID,
		Prompt:      prompt,
		ContentJSON: datatypes.JSON(body),
		CreatedAt:   now,
	}
	if err := s.versions.Create(dbc, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *versionStore) FindLatestVersion(ctx context.Context, moduleID uuid.UUID) (*domain.ModuleVersion, error) {
	return s.versions.Latest(dbctx.Background(ctx), moduleID)
}

func (s *versionStore) FindAllVersions(ctx context.Context, moduleID uuid.UUID) ([]*domain.ModuleVersion, error) {
	dbc := dbctx.Background(ctx)
	if _, err := s.modules.GetByID(dbc, moduleID); err != nil {
		return nil, err
	}
	return s.versions.ListByModule(dbc, moduleID)
}

func (s *versionStore) LatestVersions(ctx context.Context, moduleIDs []uuid.UUID) (map[uuid.UUID]*domain.ModuleVersion, error) {
	return s.versions.LatestByModules(dbctx.Background(ctx), moduleIDs)
}

func (s *versionStore) CountVersions(ctx context.Context, moduleIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	return s.versions.CountByModules(dbctx.Background(ctx), moduleIDs)
}
