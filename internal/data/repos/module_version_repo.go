package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/neurocanvas-backend/internal/data/db"
	"github.com/yungbote/neurocanvas-backend/internal/domain"
	"github.com/yungbote/neurocanvas-backend/internal/platform/dbctx"
	"github.com/yungbote/neurocanvas-backend/internal/platform/logger"
)

type ModuleVersionRepo interface {
	// Create is a plain INSERT; versions are never updated.
	Create(dbc dbctx.Context, version *domain.ModuleVersion) error
	Latest(dbc dbctx.Context, moduleID uuid.UUID) (*domain.ModuleVersion, error)
	// LatestByModules returns the current version per module id. Modules
	// without versions are absent from the map.
	LatestByModules(dbc dbctx.Context, moduleIDs []uuid.UUID) (map[uuid.UUID]*domain.ModuleVersion, error)
	ListByModule(dbc dbctx.Context, moduleID uuid.UUID) ([]*domain.ModuleVersion, error)
	CountByModules(dbc dbctx.Context, moduleIDs []uuid.UUID) (map[uuid.UUID]int, error)
	DeleteByModules(dbc dbctx.Context, moduleIDs []uuid.UUID) error
}

type moduleVersionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewModuleVersionRepo(db *gorm.DB, baseLog *logger.Logger) ModuleVersionRepo {
	return &moduleVersionRepo{
		db:  db,
		log: baseLog.With("repo", "ModuleVersionRepo"),
	}
}

func (r *moduleVersionRepo) Create(dbc dbctx.Context, version *domain.ModuleVersion) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(dbc.Ctx).Create(version).Error; err != nil {
		return db.MapError("module "+version.ModuleID.String(), err)
	}
	return nil
}

func (r *moduleVersionRepo) Latest(dbc dbctx.Context, moduleID uuid.UUID) (*domain.ModuleVersion, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out domain.ModuleVersion
	err := transaction.WithContext(dbc.Ctx).
		Where("module_id = ?", moduleID).
		Order("created_at DESC").
		Order("id DESC").
		First(&out).Error
	if err != nil {
		return nil, db.MapError("latest version of module "+moduleID.String(), err)
	}
	return &out, nil
}

func (r *moduleVersionRepo) LatestByModules(dbc dbctx.Context, moduleIDs []uuid.UUID) (map[uuid.UUID]*domain.ModuleVersion, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	out := make(map[uuid.UUID]*domain.ModuleVersion, len(moduleIDs))
	if len(moduleIDs) == 0 {
		return out, nil
	}
	var rows []*domain.ModuleVersion
	err := transaction.WithContext(dbc.Ctx).
		Where("module_id IN ?", moduleIDs).
		Order("module_id ASC").
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, v := range rows {
		if _, seen := out[v.ModuleID]; !seen {
			out[v.ModuleID] = v
		}
	}
	return out, nil
}

func (r *moduleVersionRepo) ListByModule(dbc dbctx.Context, moduleID uuid.UUID) ([]*domain.ModuleVersion, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*domain.ModuleVersion
	err := transaction.WithContext(dbc.Ctx).
		Where("module_id = ?", moduleID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *moduleVersionRepo) CountByModules(dbc dbctx.Context, moduleIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	out := make(map[uuid.UUID]int, len(moduleIDs))
	if len(moduleIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		ModuleID uuid.UUID
		N        int
	}
	err := transaction.WithContext(dbc.Ctx).
		Model(&domain.ModuleVersion{}).
		Select("module_id, COUNT(*) AS n").
		Where("module_id IN ?", moduleIDs).
		Group("module_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ModuleID] = row.N
	}
	return out, nil
}

func (r *moduleVersionRepo) DeleteByModules(dbc dbctx.Context, moduleIDs []uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(moduleIDs) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Where("module_id IN ?", moduleIDs).Delete(&domain.ModuleVersion{}).Error
}
