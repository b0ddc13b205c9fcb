package media

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/neurocanvas-backend/internal/domain"
)

type JobState string

const (
	StatePending   JobState = "pending"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
)

// JobStatus is one read of an external job.
type JobStatus struct {
	ExternalID   string
	State        JobState
	URL          string
	ThumbnailURL string
	Error        string
	Raw          map[string]any
}

type CreateRequest struct {
	JobID      uuid.UUID
	ModuleID   uuid.UUID
	ModuleType string
	Title      string
	Prompt     string
}

// Provider wraps one external media generation API.
type Provider interface {
	Kind() domain.MediaKind
	Create(ctx context.Context, req CreateRequest) (JobStatus, error)
	Poll(ctx context.Context, externalID string) (JobStatus, error)
}

// MediaStore persists generated bytes and returns a public URL.
type MediaStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// NormalizeState maps provider status strings onto JobState.
func NormalizeState(raw string) JobState {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "completed", "complete", "succeeded", "success", "done":
		return StateCompleted
	case "failed", "failure", "error", "cancelled", "canceled", "expired", "rejected":
		return StateFailed
	default:
		return StatePending
	}
}
