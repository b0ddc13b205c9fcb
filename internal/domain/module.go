package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ModuleStatus string

const (
	ModuleGenerating ModuleStatus = "generating"
	ModuleReady      ModuleStatus = "ready"
	ModuleError      ModuleStatus = "error"
)

const (
	DefaultModuleWidth  = 1
	DefaultModuleHeight = 1
)

// Module is one content block on a canvas. Type is an open string; the
// dispatcher falls back to a default handler for unknown types.
type Module struct {
	ID          uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	CanvasID    uuid.UUID    `gorm:"type:uuid;not null;index:idx_module_canvas_order,priority:1" json:"canvas_id"`
	Type        string       `gorm:"column:type;not null" json:"type"`
	Title       string       `gorm:"column:title" json:"title"`
	Description string       `gorm:"column:description" json:"description,omitempty"`
	Status      ModuleStatus `gorm:"column:status;not null;index" json:"status"`
	OrderIndex  int          `gorm:"column:order_index;not null;index:idx_module_canvas_order,priority:2" json:"order_index"`
	Width       int          `gorm:"column:width;not null" json:"width"`
	Height      int          `gorm:"column:height;not null" json:"height"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`

	Canvas *Canvas `gorm:"constraint:OnDelete:CASCADE;foreignKey:CanvasID;references:ID" json:"-"`
}

func (Module) TableName() string { return "module" }

func (m *Module) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Status == "" {
		m.Status = ModuleGenerating
	}
	if m.Width <= 0 {
		m.Width = DefaultModuleWidth
	}
	if m.Height <= 0 {
		m.Height = DefaultModuleHeight
	}
	return nil
}
