package repos

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/neurocanvas-backend/internal/data/db"
	"github.com/yungbote/neurocanvas-backend/internal/domain"
	"github.com/yungbote/neurocanvas-backend/internal/platform/dbctx"
	"github.com/yungbote/neurocanvas-backend/internal/platform/logger"
)

type CanvasRepo interface {
	Create(dbc dbctx.Context, canvas *domain.Canvas) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Canvas, error)
	// List returns canvases newest first. Empty status means all.
	List(dbc dbctx.Context, status domain.CanvasStatus) ([]*domain.Canvas, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) (bool, error)
	Delete(dbc dbctx.Context, id uuid.UUID) (bool, error)
}

type canvasRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCanvasRepo(db *gorm.DB, baseLog *logger.Logger) CanvasRepo {
	return &canvasRepo{
		db:  db,
		log: baseLog.With("repo", "CanvasRepo"),
	}
}

func (r *canvasRepo) Create(dbc dbctx.Context, canvas *domain.Canvas) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Create(canvas).Error
}

func (r *canvasRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Canvas, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out domain.Canvas
	if err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).First(&out).Error; err != nil {
		return nil, db.MapError("canvas "+id.String(), err)
	}
	return &out, nil
}

func (r *canvasRepo) List(dbc dbctx.Context, status domain.CanvasStatus) ([]*domain.Canvas, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).Model(&domain.Canvas{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []*domain.Canvas
	if err := q.Order("created_at DESC").Order("id DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *canvasRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) (bool, error) {
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
		Model(&domain.Canvas{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *canvasRepo) Delete(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).Where("id = ?", id).Delete(&domain.Canvas{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
