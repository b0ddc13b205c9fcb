package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/neurocanvas-backend/internal/data/store"
	"github.com/yungbote/neurocanvas-backend/internal/domain"
	"github.com/yungbote/neurocanvas-backend/internal/domain/content"
	"github.com/yungbote/neurocanvas-backend/internal/modules/canvas/digest"
	"github.com/yungbote/neurocanvas-backend/internal/modules/canvas/dispatch"
	"github.com/yungbote/neurocanvas-backend/internal/modules/canvas/media"
	"github.com/yungbote/neurocanvas-backend/internal/modules/canvas/plan"
	"github.com/yungbote/neurocanvas-backend/internal/platform/logger"
	"github.com/yungbote/neurocanvas-backend/internal/realtime"
)

// MediaManager is the slice of the media job manager the services use.
type MediaManager interface {
	Request(ctx context.Context, module *domain.Module, prompt string, req dispatch.MediaRequest) (*domain.ModuleVersion, *domain.MediaJob, error)
	CheckStatus(ctx context.Context, moduleID uuid.UUID) (*domain.MediaJob, error)
	Status(ctx context.Context) (media.StatusSnapshot, error)
}

// Generator runs plan -> dispatch -> commit. Generation failures become error
// versions; only storage failures are returned.
type Generator struct {
	log        *logger.Logger
	store      store.VersionStore
	planner    plan.Planner
	dispatcher *dispatch.Dispatcher
	media      MediaManager
	notify     *CanvasNotifier
}

func NewGenerator(
	baseLog *logger.Logger,
	vs store.VersionStore,
	planner plan.Planner,
	dispatcher *dispatch.Dispatcher,
	mediaManager MediaManager,
	notify *CanvasNotifier,
) *Generator {
	return &Generator{
		log:        baseLog.With("service", "Generator"),
		store:      vs,
		planner:    planner,
		dispatcher: dispatcher,
		media:      mediaManager,
		notify:     notify,
	}
}

// Populate plans the canvas and generates every module in plan order. Each
// module sees a digest of the modules generated before it. A planner error
// leaves the canvas empty.
func (g *Generator) Populate(ctx context.Context, canvas *domain.Canvas) ([]*domain.Module, error) {
	descs, err := g.planner.PlanModules(ctx, canvas.Topic, canvas.Domain)
	if err != nil {
		g.log.Error("plan failed; canvas left empty", "canvas_id", canvas.ID, "topic", canvas.Topic, "error", err)
		descs = nil
	}

	modules := make([]*domain.Module, 0, len(descs))
	for i, d := range descs {
		m := &domain.Module{
			CanvasID:    canvas.ID,
			Type:        moduleType(d.Type),
			Title:       d.Title,
			Description: d.Description,
			OrderIndex:  i,
			Status:      domain.ModuleGenerating,
		}
		if err := g.store.CreateModule(ctx, m); err != nil {
			return modules, err
		}
		g.notify.Notify(ctx, canvas.ID, realtime.SSEEventModuleCreated, m)
		modules = append(modules, m)
	}

	inputs := make([]digest.Input, 0, len(modules))
	for _, m := range modules {
		v, err := g.Generate(ctx, canvas, m, "", digest.Summarize(inputs))
		if err != nil {
			return modules, err
		}
		inputs = append(inputs, digest.FromVersion(m.Type, m.Title, v.ContentJSON))
	}
	return modules, nil
}

// Append adds one module at the end of the canvas and generates it with the
// whole canvas as context.
func (g *Generator) Append(ctx context.Context, canvas *domain.Canvas, desc plan.Descriptor, userPrompt string) (*domain.Module, error) {
	existing, err := g.store.FindModulesByCanvas(ctx, canvas.ID)
	if err != nil {
		return nil, err
	}
	prior, err := g.Digest(ctx, existing, uuid.Nil)
	if err != nil {
		return nil, err
	}
	next, err := g.store.NextOrderIndex(ctx, canvas.ID)
	if err != nil {
		return nil, err
	}
	m := &domain.Module{
		CanvasID:    canvas.ID,
		Type:        moduleType(desc.Type),
		Title:       strings.TrimSpace(desc.Title),
		Description: strings.TrimSpace(desc.Description),
		OrderIndex:  next,
		Status:      domain.ModuleGenerating,
	}
	if m.Title == "" {
		m.Title = strings.ReplaceAll(m.Type, "_", " ")
	}
	if err := g.store.CreateModule(ctx, m); err != nil {
		return nil, err
	}
	g.notify.Notify(ctx, canvas.ID, realtime.SSEEventModuleCreated, m)
	if _, err := g.Generate(ctx, canvas, m, userPrompt, prior); err != nil {
		return m, err
	}
	return m, nil
}

// Digest summarizes the current version of every module except exclude, in
// canvas order.
func (g *Generator) Digest(ctx context.Context, modules []*domain.Module, exclude uuid.UUID) (digest.Digest, error) {
	ids := make([]uuid.UUID, 0, len(modules))
	for _, m := range modules {
		if m.ID != exclude {
			ids = append(ids, m.ID)
		}
	}
	latest, err := g.store.LatestVersions(ctx, ids)
	if err != nil {
		return digest.Digest{}, err
	}
	inputs := make([]digest.Input, 0, len(ids))
	for _, m := range modules {
		v, ok := latest[m.ID]
		if !ok || m.ID == exclude {
			continue
		}
		inputs = append(inputs, digest.FromVersion(m.Type, m.Title, v.ContentJSON))
	}
	return digest.Summarize(inputs), nil
}

// Generate produces and commits one version for module. Media kinds commit a
// placeholder and leave the module generating.
func (g *Generator) Generate(ctx context.Context, canvas *domain.Canvas, module *domain.Module, userPrompt string, prior digest.Digest) (*domain.ModuleVersion, error) {
	prompt := versionPrompt(module, userPrompt)
	desc := plan.Descriptor{Type: module.Type, Title: module.Title, Description: module.Description}
	gctx := dispatch.GenContext{Topic: canvas.Topic, Domain: canvas.Domain, UserPrompt: userPrompt, Prior: prior}

	res, err := g.dispatch(ctx, desc, gctx)
	if err != nil {
		return g.commitError(ctx, module, prompt, err)
	}
	if res.IsMedia() {
		v, _, err := g.media.Request(ctx, module, prompt, *res.Media)
		if err != nil {
			return g.commitError(ctx, module, prompt, err)
		}
		module.Status = domain.ModuleGenerating
		g.notify.Notify(ctx, canvas.ID, realtime.SSEEventModuleStatusChanged, statusEvent(module))
		return v, nil
	}

	v, err := g.store.CommitVersion(ctx, module.ID, prompt, res.Payload, domain.ModuleReady)
	if err != nil {
		return nil, err
	}
	module.Status = domain.ModuleReady
	g.notify.Notify(ctx, canvas.ID, realtime.SSEEventModuleVersionCreated, v)
	g.notify.Notify(ctx, canvas.ID, realtime.SSEEventModuleStatusChanged, statusEvent(module))
	return v, nil
}

func (g *Generator) dispatch(ctx context.Context, desc plan.Descriptor, gctx dispatch.GenContext) (res dispatch.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("module handler panic", "module_type", desc.Type, "panic", r)
			err = fmt.Errorf("generate %s: unexpected error", desc.Type)
		}
	}()
	return g.dispatcher.Generate(ctx, desc, gctx)
}

func (g *Generator) commitError(ctx context.Context, module *domain.Module, prompt string, cause error) (*domain.ModuleVersion, error) {
	g.log.Warn("module generation failed; committing error version", "module_id", module.ID, "module_type", module.Type, "error", cause)
	payload := content.Error{
		Title:      module.Title,
		Message:    "This module could not be generated. Edit it to try again.",
		Reason:     content.ReasonGenerationFailed,
		ModuleType: module.Type,
	}
	v, err := g.store.CommitVersion(ctx, module.ID, prompt, payload, domain.ModuleError)
	if err != nil {
		return nil, err
	}
	module.Status = domain.ModuleError
	g.notify.Notify(ctx, module.CanvasID, realtime.SSEEventModuleVersionCreated, v)
	g.notify.Notify(ctx, module.CanvasID, realtime.SSEEventModuleStatusChanged, statusEvent(module))
	return v, nil
}

func moduleType(raw string) string {
	if t := plan.NormalizeType(raw); t != "" {
		return t
	}
	return dispatch.DefaultType
}

func versionPrompt(m *domain.Module, userPrompt string) string {
	for _, s := range []string{userPrompt, m.Description, m.Title} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return m.Type
}

func statusEvent(m *domain.Module) map[string]any {
	return map[string]any{"module_id": m.ID, "status": m.Status}
}
