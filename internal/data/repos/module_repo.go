package repos

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/neurocanvas-backend/internal/data/db"
	"github.com/yungbote/neurocanvas-backend/internal/domain"
	"github.com/yungbote/neurocanvas-backend/internal/platform/dbctx"
	"github.com/yungbote/neurocanvas-backend/internal/platform/logger"
)

type ModuleRepo interface {
	Create(dbc dbctx.Context, module *domain.Module) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Module, error)
	// ListByCanvas orders by order_index, then created_at, then id.
	ListByCanvas(dbc dbctx.Context, canvasID uuid.UUID) ([]*domain.Module, error)
	MaxOrderIndex(dbc dbctx.Context, canvasID uuid.UUID) (int, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) (bool, error)
	Delete(dbc dbctx.Context, id uuid.UUID) (bool, error)
	DeleteByCanvas(dbc dbctx.Context, canvasID uuid.UUID) error
	IDsByCanvas(dbc dbctx.Context, canvasID uuid.UUID) ([]uuid.UUID, error)
}

type moduleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewModuleRepo(db *gorm.DB, baseLog *logger.Logger) ModuleRepo {
	return &moduleRepo{
		db:  db,
		log: baseLog.With("repo", "ModuleRepo"),
	}
}

func (r *moduleRepo) Create(dbc dbctx.Context, module *domain.Module) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(dbc.Ctx).Create(module).Error; err != nil {
		return db.MapError("canvas "+module.CanvasID.String(), err)
	}
	return nil
}

func (r *moduleRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Module, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out domain.Module
	if err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).First(&out).Error; err != nil {
		return nil, db.MapError("module "+id.String(), err)
	}
	return &out, nil
}

func (r *moduleRepo) ListByCanvas(dbc dbctx.Context, canvasID uuid.UUID) ([]*domain.Module, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*domain.Module
	err := transaction.WithContext(dbc.Ctx).
		Where("canvas_id = ?", canvasID).
		Order("order_index ASC").
		Order("created_at ASC").
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MaxOrderIndex returns -1 for a canvas without modules.
func (r *moduleRepo) MaxOrderIndex(dbc dbctx.Context, canvasID uuid.UUID) (int, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var maxIdx sql.NullInt64
	err := transaction.WithContext(dbc.Ctx).
		Model(&domain.Module{}).
		Where("canvas_id = ?", canvasID).
		Select("MAX(order_index)").
		Scan(&maxIdx).Error
	if err != nil {
		return 0, err
	}
	if !maxIdx.Valid {
		return -1, nil
	}
	return int(maxIdx.Int64), nil
}

func (r *moduleRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&domain.Module{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *moduleRepo) Delete(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).Where("id = ?", id).Delete(&domain.Module{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *moduleRepo) DeleteByCanvas(dbc dbctx.Context, canvasID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Where("canvas_id = ?", canvasID).Delete(&domain.Module{}).Error
}

func (r *moduleRepo) IDsByCanvas(dbc dbctx.Context, canvasID uuid.UUID) ([]uuid.UUID, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var ids []uuid.UUID
	err := transaction.WithContext(dbc.Ctx).
		Model(&domain.Module{}).
		Where("canvas_id = ?", canvasID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
