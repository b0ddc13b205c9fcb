package media

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/neurocanvas-backend/internal/domain"
	"github.com/yungbote/neurocanvas-backend/internal/modules/canvas/prompts"
	"github.com/yungbote/neurocanvas-backend/internal/platform/logger"
	"github.com/yungbote/neurocanvas-backend/internal/platform/openai"
)

// VideoProvider drives the OpenAI video jobs API. Completed videos without a
// URL in the job body are downloaded and re-hosted on the media store.
type VideoProvider struct {
	log     *logger.Logger
	ai      openai.Client
	store   MediaStore
	seconds int
	brief   bool
}

func NewVideoProvider(log *logger.Logger, ai openai.Client, store MediaStore, seconds int, brief bool) *VideoProvider {
	return &VideoProvider{
		log:     log.With("component", "VideoProvider"),
		ai:      ai,
		store:   store,
		seconds: seconds,
		brief:   brief,
	}
}

func (p *VideoProvider) Kind() domain.MediaKind { return domain.MediaVideo }

func (p *VideoProvider) Create(ctx context.Context, req CreateRequest) (JobStatus, error) {
	prompt := refinePrompt(ctx, p.log, p.ai, p.brief, "video", req)
	vj, err := p.ai.CreateVideoJob(ctx, prompt, p.seconds)
	if err != nil {
		return JobStatus{}, err
	}
	if strings.TrimSpace(vj.ID) == "" {
		return JobStatus{}, fmt.Errorf("video job created without id")
	}
	return JobStatus{ExternalID: vj.ID, State: NormalizeState(vj.Status), Error: vj.Error, Raw: vj.Raw}, nil
}

func (p *VideoProvider) Poll(ctx context.Context, externalID string) (JobStatus, error) {
	vj, err := p.ai.GetVideoJob(ctx, externalID)
	if err != nil {
		return JobStatus{}, err
	}
	st := JobStatus{ExternalID: externalID, State: NormalizeState(vj.Status), Error: vj.Error, Raw: vj.Raw}
	if st.State != StateCompleted {
		return st, nil
	}
	if u, _ := ExtractURL(vj.Raw); u != "" {
		st.URL = u
		return st, nil
	}
	if p.store == nil {
		st.State = StateFailed
		st.Error = "video completed but no media store is configured to host it"
		return st, nil
	}
	data, mime, err := p.ai.DownloadVideoContent(ctx, externalID)
	if err != nil {
		return JobStatus{}, fmt.Errorf("download video %s: %w", externalID, err)
	}
	if mime == "" {
		mime = "video/mp4"
	}
	u, err := p.store.Put(ctx, "videos/"+externalID+".mp4", mime, data)
	if err != nil {
		return JobStatus{}, fmt.Errorf("store video %s: %w", externalID, err)
	}
	st.URL = u
	return st, nil
}

// refinePrompt asks the LLM for a concrete scene description. Any failure
// keeps the composed prompt.
func refinePrompt(ctx context.Context, log *logger.Logger, ai openai.Client, enabled bool, kind string, req CreateRequest) string {
	if !enabled || ai == nil {
		return req.Prompt
	}
	pr, err := prompts.Build(prompts.PromptMediaBrief, prompts.Input{
		Topic:             req.Prompt,
		ModuleType:        kind,
		ModuleTitle:       req.Title,
		ModuleDescription: req.Prompt,
	})
	if err != nil {
		return req.Prompt
	}
	obj, err := ai.GenerateJSON(ctx, pr.System, pr.User, pr.SchemaName, pr.Schema)
	if err != nil {
		log.Warn("media brief failed; using composed prompt", "job_id", req.JobID, "error", err)
		return req.Prompt
	}
	if s, _ := obj["prompt"].(string); strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	return req.Prompt
}
