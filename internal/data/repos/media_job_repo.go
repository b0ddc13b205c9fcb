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

type MediaJobRepo interface {
	Create(dbc dbctx.Context, job *domain.MediaJob) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.MediaJob, error)
	// LatestForModule returns nil, nil when the module never had a job.
	LatestForModule(dbc dbctx.Context, moduleID uuid.UUID) (*domain.MediaJob, error)
	ListByStatus(dbc dbctx.Context, statuses []domain.MediaJobStatus) ([]*domain.MediaJob, error)
	CountByStatus(dbc dbctx.Context) (map[domain.MediaJobStatus]int, error)
	// UpdateFieldsIfStatus applies updates only while the job is in one of
	// the allowed states. It reports whether a row changed.
	UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, allowed []domain.MediaJobStatus, updates map[string]interface{}) (bool, error)
	DeleteByModules(dbc dbctx.Context, moduleIDs []uuid.UUID) error
}

type mediaJobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMediaJobRepo(db *gorm.DB, baseLog *logger.Logger) MediaJobRepo {
	return &mediaJobRepo{
		db:  db,
		log: baseLog.With("repo", "MediaJobRepo"),
	}
}

func (r *mediaJobRepo) Create(dbc dbctx.Context, job *domain.MediaJob) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(dbc.Ctx).Create(job).Error; err != nil {
		return db.MapError("module "+job.ModuleID.String(), err)
	}
	return nil
}

func (r *mediaJobRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.MediaJob, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out domain.MediaJob
	if err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).First(&out).Error; err != nil {
		return nil, db.MapError("media job "+id.String(), err)
	}
	return &out, nil
}

func (r *mediaJobRepo) LatestForModule(dbc dbctx.Context, moduleID uuid.UUID) (*domain.MediaJob, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out domain.MediaJob
	err := transaction.WithContext(dbc.Ctx).
		Where("module_id = ?", moduleID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(1).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *mediaJobRepo) ListByStatus(dbc dbctx.Context, statuses []domain.MediaJobStatus) ([]*domain.MediaJob, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*domain.MediaJob
	if len(statuses) == 0 {
		return out, nil
	}
	err := transaction.WithContext(dbc.Ctx).
		Where("status IN ?", statuses).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *mediaJobRepo) CountByStatus(dbc dbctx.Context) (map[domain.MediaJobStatus]int, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []struct {
		Status domain.MediaJobStatus
		N      int
	}
	err := transaction.WithContext(dbc.Ctx).
		Model(&domain.MediaJob{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[domain.MediaJobStatus]int, len(rows))
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, nil
}

func (r *mediaJobRepo) UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, allowed []domain.MediaJobStatus, updates map[string]interface{}) (bool, error) {
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
	q := transaction.WithContext(dbc.Ctx).
		Model(&domain.MediaJob{}).
		Where("id = ?", id)
	if len(allowed) > 0 {
		q = q.Where("status IN ?", allowed)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *mediaJobRepo) DeleteByModules(dbc dbctx.Context, moduleIDs []uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(moduleIDs) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Where("module_id IN ?", moduleIDs).Delete(&domain.MediaJob{}).Error
}
