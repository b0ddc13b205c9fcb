package media

import (
	"context"
	"fmt"
	"sync"

	"github.com/yungbote/neurocanvas-backend/internal/domain"
	"github.com/yungbote/neurocanvas-backend/internal/platform/logger"
	"github.com/yungbote/neurocanvas-backend/internal/platform/openai"
	"github.com/yungbote/neurocanvas-backend/internal/platform/thumbnail"
)

const (
	imageThumbWidth  = 480
	imageThumbHeight = 270
)

// ImageProvider generates images synchronously inside Create. Results are
// kept in memory so a concurrent Poll sees the same outcome.
type ImageProvider struct {
	log   *logger.Logger
	ai    openai.Client
	store MediaStore
	brief bool

	mu      sync.Mutex
	results map[string]JobStatus
}

func NewImageProvider(log *logger.Logger, ai openai.Client, store MediaStore, brief bool) *ImageProvider {
	return &ImageProvider{
		log:     log.With("component", "ImageProvider"),
		ai:      ai,
		store:   store,
		brief:   brief,
		results: map[string]JobStatus{},
	}
}

func (p *ImageProvider) Kind() domain.MediaKind { return domain.MediaImage }

func (p *ImageProvider) Create(ctx context.Context, req CreateRequest) (JobStatus, error) {
	if p.store == nil {
		return JobStatus{}, fmt.Errorf("image generation requires a media store")
	}
	extID := "image-" + req.JobID.String()
	img, err := p.ai.GenerateImage(ctx, refinePrompt(ctx, p.log, p.ai, p.brief, "image", req))
	if err != nil {
		return JobStatus{}, err
	}
	mime := img.MimeType
	if mime == "" {
		mime = "image/png"
	}
	u, err := p.store.Put(ctx, "images/"+req.JobID.String()+".png", mime, img.Bytes)
	if err != nil {
		return JobStatus{}, fmt.Errorf("store image: %w", err)
	}
	st := JobStatus{ExternalID: extID, State: StateCompleted, URL: u}
	if thumb, err := thumbnail.Downscale(img.Bytes, imageThumbWidth, imageThumbHeight); err == nil {
		if tu, err := p.store.Put(ctx, "thumbnails/"+req.JobID.String()+".png", "image/png", thumb); err == nil {
			st.ThumbnailURL = tu
		}
	} else {
		p.log.Debug("image thumbnail skipped", "job_id", req.JobID, "error", err)
	}
	p.mu.Lock()
	p.results[extID] = st
	p.mu.Unlock()
	return st, nil
}

func (p *ImageProvider) Poll(ctx context.Context, externalID string) (JobStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if st, ok := p.results[externalID]; ok {
		return st, nil
	}
	return JobStatus{ExternalID: externalID, State: StateFailed, Error: "image result is no longer available; regenerate the module"}, nil
}
