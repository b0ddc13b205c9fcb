package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ModuleVersion is an immutable snapshot of a module's content. The
// module's current content is the version with the greatest CreatedAt
// (ties broken by ID).
type ModuleVersion struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ModuleID    uuid.UUID      `gorm:"type:uuid;not null;index:idx_module_version_latest,priority:1" json:"module_id"`
	Prompt      string         `gorm:"column:prompt;type:text" json:"prompt"`
	ContentJSON datatypes.JSON `gorm:"column:content_json" json:"content_json"`
	CreatedAt   time.Time      `gorm:"not null;index:idx_module_version_latest,priority:2,sort:desc" json:"created_at"`

	Module *Module `gorm:"constraint:OnDelete:CASCADE;foreignKey:ModuleID;references:ID" json:"-"`
}

func (ModuleVersion) TableName() string { return "module_version" }

func (v *ModuleVersion) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
