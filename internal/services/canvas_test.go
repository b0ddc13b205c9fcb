package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/neurocanvas-backend/internal/data/repos"
	"github.com/yungbote/neurocanvas-backend/internal/data/store"
	"github.com/yungbote/neurocanvas-backend/internal/data/testutil"
	"github.com/yungbote/neurocanvas-backend/internal/domain"
	"github.com/yungbote/neurocanvas-backend/internal/domain/content"
	"github.com/yungbote/neurocanvas-backend/internal/modules/canvas/dispatch"
	"github.com/yungbote/neurocanvas-backend/internal/modules/canvas/intent"
	"github.com/yungbote/neurocanvas-backend/internal/modules/canvas/media"
	"github.com/yungbote/neurocanvas-backend/internal/modules/canvas/plan"
	"github.com/yungbote/neurocanvas-backend/internal/platform/apierr"
	"github.com/yungbote/neurocanvas-backend/internal/platform/openai"
	"github.com/yungbote/neurocanvas-backend/internal/realtime"
)

// fakeAI answers structured calls by schema name and records the user
// prompt of every call.
type fakeAI struct {
	openai.Client

	mu      sync.Mutex
	answers map[string]map[string]any
	fail    map[string]error
	prompts map[string][]string
}

func newFakeAI() *fakeAI {
	return &fakeAI{
		answers: map[string]map[string]any{
			"text_module":  {"title": "", "subtitle": "", "body": "An apple is a round fruit that grows on trees."},
			"story_module": {"title": "", "narrative": "Mia picked a red apple and shared it with her brother.", "moral": "Sharing is kind."},
			"quiz_module": {"title": "", "questions": []any{
				map[string]any{"question": "What is an apple?", "options": []any{"A fruit", "A car"}, "answer_index": 0, "explanation": ""},
			}},
			"formula_module": {"title": "", "main_formula": "F = ma", "explanation": "Force equals mass times acceleration.", "variables": []any{}},
		},
		fail:    map[string]error{},
		prompts: map[string][]string{},
	}
}

func (f *fakeAI) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts[schemaName] = append(f.prompts[schemaName], user)
	if err := f.fail[schemaName]; err != nil {
		return nil, err
	}
	obj, ok := f.answers[schemaName]
	if !ok {
		return nil, errors.New("unexpected schema " + schemaName)
	}
	return obj, nil
}

func (f *fakeAI) promptsFor(schema string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts[schema]...)
}

type fakeVideo struct{}

func (fakeVideo) Kind() domain.MediaKind { return domain.MediaVideo }

func (fakeVideo) Create(ctx context.Context, req media.CreateRequest) (media.JobStatus, error) {
	return media.JobStatus{ExternalID: "vid-" + req.JobID.String(), State: media.StateCompleted, URL: "https://cdn.example.com/" + req.JobID.String() + ".mp4"}, nil
}

func (fakeVideo) Poll(ctx context.Context, id string) (media.JobStatus, error) {
	return media.JobStatus{ExternalID: id, State: media.StatePending}, nil
}

// heldScheduler accepts every job and never runs it, so tests drive media
// jobs through Refresh.
type heldScheduler struct{}

func (heldScheduler) Schedule(ctx context.Context, id uuid.UUID) error { return nil }
func (heldScheduler) Name() string                                     { return "held" }

type recordingEmitter struct {
	mu   sync.Mutex
	msgs []realtime.SSEMessage
}

func (e *recordingEmitter) Emit(ctx context.Context, msg realtime.SSEMessage) {
	e.mu.Lock()
	e.msgs = append(e.msgs, msg)
	e.mu.Unlock()
}

func (e *recordingEmitter) events(channel string) []realtime.SSEEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []realtime.SSEEvent
	for _, m := range e.msgs {
		if m.Channel == channel {
			out = append(out, m.Event)
		}
	}
	return out
}

type harness struct {
	ai      *fakeAI
	store   store.VersionStore
	canvas  CanvasService
	modules ModuleService
	emitter *recordingEmitter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithPlanner(t, nil)
}

// newHarnessWithPlanner uses the domain templates when planner is nil.
func newHarnessWithPlanner(t *testing.T, planner plan.Planner) *harness {
	t.Helper()
	gdb := testutil.DB(t)
	log := testutil.Logger(t)
	vs := store.New(gdb, log)
	ai := newFakeAI()

	reg, err := dispatch.NewDefaultRegistry(ai)
	require.NoError(t, err)
	disp, err := dispatch.New(log, reg)
	require.NoError(t, err)
	if planner == nil {
		tp, err := plan.NewTemplatePlanner(0)
		require.NoError(t, err)
		planner = tp
	}

	emitter := &recordingEmitter{}
	notify := NewCanvasNotifier(emitter)
	mgr, err := media.NewManager(media.Config{}, media.Deps{
		Log:       log,
		Store:     vs,
		Jobs:      repos.NewMediaJobRepo(gdb, log),
		Providers: []media.Provider{fakeVideo{}},
		Notifier:  notify,
		Scheduler: heldScheduler{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Shutdown(context.Background()) })

	gen := NewGenerator(log, vs, planner, disp, mgr, notify)
	return &harness{
		ai:      ai,
		store:   vs,
		canvas:  NewCanvasService(log, vs, gen, intent.NewRouter(log, nil), nil, notify),
		modules: NewModuleService(log, vs, gen, mgr, notify),
		emitter: emitter,
	}
}

func decode(t *testing.T, v *domain.ModuleVersion) content.Payload {
	t.Helper()
	require.NotNil(t, v)
	p, err := content.Decode(v.ContentJSON)
	require.NoError(t, err)
	return p
}

func apiStatus(err error) int {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

func apiCode(err error) string {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

func TestCreateAppleLanguageCanvas(t *testing.T) {
	h := newHarness(t)
	snap, err := h.canvas.Create(context.Background(), "apple", "language")
	require.NoError(t, err)

	assert.Equal(t, domain.DomainLanguage, snap.Canvas.Domain)
	assert.Equal(t, domain.CanvasActive, snap.Canvas.Status)
	require.Len(t, snap.Modules, 4)
	wantTypes := []string{"definition", "examples", "story", "quiz"}
	for i, mv := range snap.Modules {
		assert.Equal(t, wantTypes[i], mv.Module.Type)
		assert.Equal(t, i, mv.Module.OrderIndex)
		assert.Equal(t, domain.ModuleReady, mv.Module.Status)
		assert.Equal(t, 1, mv.VersionsCount)
		assert.False(t, content.IsError(decode(t, mv.CurrentVersion)))
	}

	quiz, ok := decode(t, snap.Modules[3].CurrentVersion).(content.Quiz)
	require.True(t, ok)
	assert.Len(t, quiz.Questions, 1)

	// The quiz is generated last and sees every earlier module.
	quizPrompts := h.ai.promptsFor("quiz_module")
	require.Len(t, quizPrompts, 1)
	for _, want := range []string{"[definition]", "[examples]", "[story]", "round fruit", "Mia picked"} {
		assert.Contains(t, quizPrompts[0], want)
	}
	textPrompts := h.ai.promptsFor("text_module")
	require.Len(t, textPrompts, 2)
	assert.NotContains(t, textPrompts[0], "[definition]")

	assert.Contains(t, h.emitter.events(realtime.CanvasChannel(snap.Canvas.ID)), realtime.SSEEventCanvasCreated)
}

type emptyPlanner struct{}

func (emptyPlanner) PlanModules(ctx context.Context, topic string, dom domain.CanvasDomain) ([]plan.Descriptor, error) {
	return nil, nil
}

func TestCreateWithEmptyPlanHasNoModules(t *testing.T) {
	h := newHarnessWithPlanner(t, emptyPlanner{})
	snap, err := h.canvas.Create(context.Background(), "quarks", "science")
	require.NoError(t, err)

	assert.Equal(t, domain.CanvasActive, snap.Canvas.Status)
	assert.Empty(t, snap.Modules)

	got, err := h.canvas.Get(context.Background(), snap.Canvas.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Modules)
}

func TestCreateValidatesInput(t *testing.T) {
	h := newHarness(t)
	_, err := h.canvas.Create(context.Background(), "  ", "SCIENCE")
	assert.Equal(t, http.StatusBadRequest, apiStatus(err))
	assert.Equal(t, "invalid_topic", apiCode(err))

	_, err = h.canvas.Create(context.Background(), "gravity", "astrology")
	assert.Equal(t, "invalid_domain", apiCode(err))

	_, err = h.canvas.Get(context.Background(), uuid.New())
	assert.Equal(t, http.StatusNotFound, apiStatus(err))
	assert.Equal(t, "canvas_not_found", apiCode(err))
}

func TestGenerationFailureIsLocalToModule(t *testing.T) {
	h := newHarness(t)
	h.ai.fail["story_module"] = errors.New("model overloaded")

	snap, err := h.canvas.Create(context.Background(), "apple", "LANGUAGE")
	require.NoError(t, err)
	require.Len(t, snap.Modules, 4)

	story := snap.Modules[2]
	assert.Equal(t, domain.ModuleError, story.Module.Status)
	e, ok := decode(t, story.CurrentVersion).(content.Error)
	require.True(t, ok)
	assert.Equal(t, content.ReasonGenerationFailed, e.Reason)
	assert.Equal(t, "story", e.ModuleType)

	assert.Equal(t, domain.ModuleReady, snap.Modules[3].Module.Status)
	assert.NotContains(t, h.ai.promptsFor("quiz_module")[0], "[story]")
}

func TestExpandAppendsModule(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	snap, err := h.canvas.Create(ctx, "apple", "LANGUAGE")
	require.NoError(t, err)

	_, err = h.canvas.Expand(ctx, snap.Canvas.ID, "   ")
	assert.Equal(t, "invalid_prompt", apiCode(err))
	_, err = h.canvas.Expand(ctx, uuid.New(), "more examples")
	assert.Equal(t, http.StatusNotFound, apiStatus(err))

	out, err := h.canvas.Expand(ctx, snap.Canvas.ID, "give me more examples with colors")
	require.NoError(t, err)
	require.Len(t, out.Modules, 5)
	added := out.Modules[4]
	assert.Equal(t, "examples", added.Module.Type)
	assert.Equal(t, 4, added.Module.OrderIndex)
	assert.Equal(t, domain.ModuleReady, added.Module.Status)
	assert.Equal(t, "give me more examples with colors", added.CurrentVersion.Prompt)

	prompts := h.ai.promptsFor("text_module")
	assert.Contains(t, prompts[len(prompts)-1], "[quiz]")
}

func TestNewTopicArchivesPrevious(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first, err := h.canvas.Create(ctx, "apple", "LANGUAGE")
	require.NoError(t, err)

	_, err = h.canvas.NewTopic(ctx, first.Canvas.ID, "", "")
	assert.Equal(t, "invalid_topic", apiCode(err))
	_, err = h.canvas.NewTopic(ctx, first.Canvas.ID, "gravity", "nope")
	assert.Equal(t, "invalid_domain", apiCode(err))

	second, err := h.canvas.NewTopic(ctx, first.Canvas.ID, "banana", "")
	require.NoError(t, err)
	assert.Equal(t, domain.DomainLanguage, second.Canvas.Domain)
	assert.Equal(t, "banana", second.Canvas.Topic)

	old, err := h.canvas.Get(ctx, first.Canvas.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CanvasArchived, old.Canvas.Status)
	require.NotNil(t, old.Canvas.SupersededBy)
	assert.Equal(t, second.Canvas.ID, *old.Canvas.SupersededBy)
	assert.Len(t, old.Modules, 4)

	active, err := h.canvas.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.Canvas.ID, active[0].ID)

	all, err := h.canvas.List(ctx, "all")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	archived, err := h.canvas.List(ctx, "ARCHIVED")
	require.NoError(t, err)
	assert.Len(t, archived, 1)
	_, err = h.canvas.List(ctx, "deleted")
	assert.Equal(t, "invalid_status", apiCode(err))

	third, err := h.canvas.NewTopic(ctx, second.Canvas.ID, "gravity", "science")
	require.NoError(t, err)
	assert.Equal(t, domain.DomainScience, third.Canvas.Domain)
}

func TestInteractRoutes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.canvas.Interact(ctx, nil, "")
	assert.Equal(t, "invalid_prompt", apiCode(err))
	missing := uuid.New()
	_, err = h.canvas.Interact(ctx, &missing, "tell me about apples")
	assert.Equal(t, http.StatusNotFound, apiStatus(err))

	res, err := h.canvas.Interact(ctx, nil, "tell me about apple")
	require.NoError(t, err)
	assert.Equal(t, intent.ActionNewCanvas, res.Action)
	assert.Equal(t, "apple", res.Data.Canvas.Topic)
	assert.Equal(t, domain.DomainLanguage, res.Data.Canvas.Domain)
	id := res.Data.Canvas.ID

	res, err = h.canvas.Interact(ctx, &id, "add another quiz please")
	require.NoError(t, err)
	assert.Equal(t, intent.ActionExpandCanvas, res.Action)
	assert.Equal(t, id, res.Data.Canvas.ID)
	require.Len(t, res.Data.Modules, 5)
	assert.Equal(t, "quiz", res.Data.Modules[4].Module.Type)

	res, err = h.canvas.Interact(ctx, &id, "switch to photosynthesis")
	require.NoError(t, err)
	assert.Equal(t, intent.ActionNewCanvas, res.Action)
	assert.NotEqual(t, id, res.Data.Canvas.ID)
	assert.True(t, strings.EqualFold(res.Data.Canvas.Topic, "photosynthesis"))

	old, err := h.canvas.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.CanvasArchived, old.Canvas.Status)
}

func TestDeleteCanvas(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	snap, err := h.canvas.Create(ctx, "apple", "LANGUAGE")
	require.NoError(t, err)

	require.NoError(t, h.canvas.Delete(ctx, snap.Canvas.ID))
	_, err = h.canvas.Get(ctx, snap.Canvas.ID)
	assert.Equal(t, http.StatusNotFound, apiStatus(err))
	_, err = h.modules.Versions(ctx, snap.Modules[0].Module.ID)
	assert.Equal(t, "module_not_found", apiCode(err))
	assert.Equal(t, "canvas_not_found", apiCode(h.canvas.Delete(ctx, snap.Canvas.ID)))
}
