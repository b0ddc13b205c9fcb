package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/neurocanvas-backend/internal/data/testutil"
	"github.com/yungbote/neurocanvas-backend/internal/platform/openai"
)

type fakeAI struct {
	openai.Client
	job     openai.VideoJob
	image   openai.ImageGeneration
	brief   map[string]any
	prompts []string
}

func (f *fakeAI) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	if f.brief == nil {
		return nil, errors.New("no brief")
	}
	return f.brief, nil
}

func (f *fakeAI) CreateVideoJob(ctx context.Context, prompt string, seconds int) (openai.VideoJob, error) {
	f.prompts = append(f.prompts, prompt)
	return openai.VideoJob{ID: "vid_1", Status: "queued"}, nil
}

func (f *fakeAI) GetVideoJob(ctx context.Context, id string) (openai.VideoJob, error) {
	return f.job, nil
}

func (f *fakeAI) DownloadVideoContent(ctx context.Context, id string) ([]byte, string, error) {
	return []byte("mp4"), "video/mp4", nil
}

func (f *fakeAI) GenerateImage(ctx context.Context, prompt string) (openai.ImageGeneration, error) {
	f.prompts = append(f.prompts, prompt)
	return f.image, nil
}

type memStore struct {
	mu   sync.Mutex
	keys []string
}

func (m *memStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	return "https://media.example.com/" + key, nil
}

func TestVideoProviderUsesURLFromJob(t *testing.T) {
	ai := &fakeAI{job: openai.VideoJob{Status: "completed", Raw: map[string]any{"url": "https://cdn.example.com/v.mp4"}}}
	p := NewVideoProvider(testutil.Logger(t), ai, &memStore{}, 8, false)

	st, err := p.Create(context.Background(), CreateRequest{JobID: uuid.New(), Prompt: "orbit"})
	require.NoError(t, err)
	assert.Equal(t, "vid_1", st.ExternalID)
	assert.Equal(t, StatePending, st.State)
	assert.Equal(t, []string{"orbit"}, ai.prompts)

	st, err = p.Poll(context.Background(), "vid_1")
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, st.State)
	assert.Equal(t, "https://cdn.example.com/v.mp4", st.URL)
}

func TestVideoProviderRehostsContent(t *testing.T) {
	store := &memStore{}
	ai := &fakeAI{job: openai.VideoJob{Status: "completed", Raw: map[string]any{"id": "vid_1"}}}
	p := NewVideoProvider(testutil.Logger(t), ai, store, 8, false)

	st, err := p.Poll(context.Background(), "vid_1")
	require.NoError(t, err)
	assert.Equal(t, "https://media.example.com/videos/vid_1.mp4", st.URL)

	noStore := NewVideoProvider(testutil.Logger(t), ai, nil, 8, false)
	st, err = noStore.Poll(context.Background(), "vid_1")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, st.State)
}

func TestVideoProviderBriefFallsBack(t *testing.T) {
	ai := &fakeAI{brief: map[string]any{"prompt": "A slow pan across a spiral galaxy"}}
	p := NewVideoProvider(testutil.Logger(t), ai, nil, 8, true)
	_, err := p.Create(context.Background(), CreateRequest{JobID: uuid.New(), Title: "Galaxies", Prompt: "galaxies"})
	require.NoError(t, err)

	ai.brief = nil
	_, err = p.Create(context.Background(), CreateRequest{JobID: uuid.New(), Title: "Galaxies", Prompt: "galaxies"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A slow pan across a spiral galaxy", "galaxies"}, ai.prompts)
}

func TestImageProviderCompletesOnCreate(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 32))
	img.Set(1, 1, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	store := &memStore{}
	ai := &fakeAI{image: openai.ImageGeneration{Bytes: buf.Bytes(), MimeType: "image/png"}}
	p := NewImageProvider(testutil.Logger(t), ai, store, false)
	id := uuid.New()

	st, err := p.Create(context.Background(), CreateRequest{JobID: id, Prompt: "an apple"})
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, st.State)
	assert.Equal(t, "https://media.example.com/images/"+id.String()+".png", st.URL)
	assert.NotEmpty(t, st.ThumbnailURL)

	again, err := p.Poll(context.Background(), st.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, st, again)

	lost, err := p.Poll(context.Background(), "image-unknown")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, lost.State)

	_, err = NewImageProvider(testutil.Logger(t), ai, nil, false).Create(context.Background(), CreateRequest{JobID: id})
	assert.Error(t, err)
}
