package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaImage MediaKind = "image"
)

type MediaJobStatus string

const (
	MediaJobQueued     MediaJobStatus = "queued"
	MediaJobCreating   MediaJobStatus = "creating"
	MediaJobPolling    MediaJobStatus = "polling"
	MediaJobCompleted  MediaJobStatus = "completed"
	MediaJobFailed     MediaJobStatus = "failed"
	MediaJobTimeout    MediaJobStatus = "timeout"
	MediaJobSuperseded MediaJobStatus = "superseded"
)

// Terminal reports whether no further transitions are allowed.
func (s MediaJobStatus) Terminal() bool {
	switch s {
	case MediaJobCompleted, MediaJobFailed, MediaJobTimeout, MediaJobSuperseded:
		return true
	default:
		return false
	}
}

// ActiveMediaJobStatuses are the states a restarted process must resume.
var ActiveMediaJobStatuses = []MediaJobStatus{MediaJobQueued, MediaJobCreating, MediaJobPolling}

// MediaJob is the durable record of one external media generation.
type MediaJob struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ModuleID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"module_id"`
	CanvasID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"canvas_id"`
	Kind          MediaKind      `gorm:"column:kind;not null" json:"kind"`
	ModuleType    string         `gorm:"column:module_type;not null" json:"module_type"`
	Prompt        string         `gorm:"column:prompt;type:text" json:"prompt"`
	Title         string         `gorm:"column:title" json:"title"`
	ExternalJobID string         `gorm:"column:external_job_id;index" json:"external_job_id,omitempty"`
	Status        MediaJobStatus `gorm:"column:status;not null;index" json:"status"`
	Attempts      int            `gorm:"column:attempts;not null" json:"attempts"`
	Error         string         `gorm:"column:error;type:text" json:"error,omitempty"`
	ResultURL     string         `gorm:"column:result_url" json:"result_url,omitempty"`
	ThumbnailURL  string         `gorm:"column:thumbnail_url" json:"thumbnail_url,omitempty"`
	DeadlineAt    time.Time      `gorm:"column:deadline_at;not null" json:"deadline_at"`
	FinishedAt    *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreatedAt     time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null" json:"updated_at"`

	Module *Module `gorm:"constraint:OnDelete:CASCADE;foreignKey:ModuleID;references:ID" json:"-"`
}

func (MediaJob) TableName() string { return "media_job" }

func (j *MediaJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.Status == "" {
		j.Status = MediaJobQueued
	}
	return nil
}
