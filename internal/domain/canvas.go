package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CanvasDomain string

const (
	DomainLanguage    CanvasDomain = "LANGUAGE"
	DomainScience     CanvasDomain = "SCIENCE"
	DomainLiberalArts CanvasDomain = "LIBERAL_ARTS"
)

// ParseCanvasDomain accepts any casing and "-" or " " separators.
func ParseCanvasDomain(raw string) (CanvasDomain, bool) {
	switch normalizeEnum(raw) {
	case string(DomainLanguage):
		return DomainLanguage, true
	case string(DomainScience):
		return DomainScience, true
	case string(DomainLiberalArts), "LIBERALARTS":
		return DomainLiberalArts, true
	default:
		return "", false
	}
}

type CanvasStatus string

const (
	CanvasActive   CanvasStatus = "active"
	CanvasArchived CanvasStatus = "archived"
)

type Canvas struct {
	ID           uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	Title        string       `gorm:"column:title;not null" json:"title"`
	Topic        string       `gorm:"column:topic;not null" json:"topic"`
	Domain       CanvasDomain `gorm:"column:domain;not null;index" json:"domain"`
	Status       CanvasStatus `gorm:"column:status;not null;index" json:"status"`
	SupersededBy *uuid.UUID   `gorm:"type:uuid;column:superseded_by" json:"superseded_by,omitempty"`
	CreatedAt    time.Time    `gorm:"not null;index" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`
}

func (Canvas) TableName() string { return "canvas" }

func (c *Canvas) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CanvasActive
	}
	return nil
}
