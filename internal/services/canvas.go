package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/neurocanvas-backend/internal/data/graph"
	"github.com/yungbote/neurocanvas-backend/internal/data/store"
	"github.com/yungbote/neurocanvas-backend/internal/domain"
	"github.com/yungbote/neurocanvas-backend/internal/modules/canvas/intent"
	"github.com/yungbote/neurocanvas-backend/internal/modules/canvas/plan"
	"github.com/yungbote/neurocanvas-backend/internal/platform/apierr"
	"github.com/yungbote/neurocanvas-backend/internal/platform/ctxutil"
	"github.com/yungbote/neurocanvas-backend/internal/platform/errs"
	"github.com/yungbote/neurocanvas-backend/internal/platform/logger"
	"github.com/yungbote/neurocanvas-backend/internal/platform/neo4jdb"
	"github.com/yungbote/neurocanvas-backend/internal/realtime"
)

type InteractResult struct {
	Action   intent.Action   `json:"action"`
	Decision intent.Decision `json:"-"`
	Data     *Snapshot       `json:"data"`
}

type CanvasService interface {
	Create(ctx context.Context, topic, domainRaw string) (*Snapshot, error)
	Get(ctx context.Context, id uuid.UUID) (*Snapshot, error)
	// List returns canvases newest first. status is active, archived or all;
	// empty means active.
	List(ctx context.Context, status string) ([]*domain.Canvas, error)
	Expand(ctx context.Context, id uuid.UUID, prompt string) (*Snapshot, error)
	NewTopic(ctx context.Context, id uuid.UUID, newTopic, domainRaw string) (*Snapshot, error)
	Interact(ctx context.Context, canvasID *uuid.UUID, prompt string) (*InteractResult, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type canvasService struct {
	log    *logger.Logger
	store  store.VersionStore
	gen    *Generator
	router *intent.Router
	graph  *neo4jdb.Client
	notify *CanvasNotifier
}

func NewCanvasService(
	baseLog *logger.Logger,
	vs store.VersionStore,
	gen *Generator,
	router *intent.Router,
	graphClient *neo4jdb.Client,
	notify *CanvasNotifier,
) CanvasService {
	return &canvasService{
		log:    baseLog.With("service", "CanvasService"),
		store:  vs,
		gen:    gen,
		router: router,
		graph:  graphClient,
		notify: notify,
	}
}

func (s *canvasService) Create(ctx context.Context, topic, domainRaw string) (*Snapshot, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, apierr.BadRequest("invalid_topic", fmt.Errorf("topic is required"))
	}
	dom, ok := domain.ParseCanvasDomain(domainRaw)
	if !ok {
		return nil, apierr.BadRequest("invalid_domain", fmt.Errorf("domain must be LANGUAGE, SCIENCE or LIBERAL_ARTS"))
	}
	return s.create(ctxutil.Detached(ctx), topic, dom, nil)
}

// create writes the canvas, archives prev when given, then generates.
func (s *canvasService) create(ctx context.Context, topic string, dom domain.CanvasDomain, prev *domain.Canvas) (*Snapshot, error) {
	canvas := &domain.Canvas{Title: canvasTitle(topic), Topic: topic, Domain: dom, Status: domain.CanvasActive}
	if err := s.store.CreateCanvas(ctx, canvas); err != nil {
		return nil, storageErr(err)
	}
	s.notify.Notify(ctx, canvas.ID, realtime.SSEEventCanvasCreated, canvas)
	s.log.Info("canvas created", "canvas_id", canvas.ID, "topic", topic, "domain", dom)

	if prev != nil {
		if err := s.store.ArchiveCanvas(ctx, prev.ID, &canvas.ID); err != nil {
			return nil, storageErr(err)
		}
		prev.Status = domain.CanvasArchived
		prev.SupersededBy = &canvas.ID
		s.notify.Notify(ctx, prev.ID, realtime.SSEEventCanvasArchived, prev)
	}

	modules, err := s.gen.Populate(ctx, canvas)
	if err != nil {
		return nil, storageErr(err)
	}
	if err := graph.UpsertCanvasGraph(ctx, s.graph, s.log, canvas, modules, prev); err != nil {
		s.log.Warn("canvas graph projection failed", "canvas_id", canvas.ID, "error", err)
	}
	return s.snapshot(ctx, canvas)
}

func (s *canvasService) Get(ctx context.Context, id uuid.UUID) (*Snapshot, error) {
	canvas, err := s.findCanvas(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.snapshot(ctx, canvas)
}

func (s *canvasService) List(ctx context.Context, status string) ([]*domain.Canvas, error) {
	var filter domain.CanvasStatus
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "", string(domain.CanvasActive):
		filter = domain.CanvasActive
	case string(domain.CanvasArchived):
		filter = domain.CanvasArchived
	case "all":
		filter = ""
	default:
		return nil, apierr.BadRequest("invalid_status", fmt.Errorf("status must be active, archived or all"))
	}
	out, err := s.store.ListCanvases(ctx, filter)
	if err != nil {
		return nil, storageErr(err)
	}
	return out, nil
}

func (s *canvasService) Expand(ctx context.Context, id uuid.UUID, prompt string) (*Snapshot, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, apierr.BadRequest("invalid_prompt", fmt.Errorf("prompt is required"))
	}
	canvas, err := s.findCanvas(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.expand(ctxutil.Detached(ctx), canvas, intent.ModuleTypeFor(prompt), prompt)
}

func (s *canvasService) expand(ctx context.Context, canvas *domain.Canvas, moduleType, prompt string) (*Snapshot, error) {
	desc := plan.Descriptor{Type: moduleType, Title: expandTitle(moduleType, canvas.Topic), Description: prompt}
	if _, err := s.gen.Append(ctx, canvas, desc, prompt); err != nil {
		return nil, storageErr(err)
	}
	return s.snapshot(ctx, canvas)
}

func (s *canvasService) NewTopic(ctx context.Context, id uuid.UUID, newTopic, domainRaw string) (*Snapshot, error) {
	newTopic = strings.TrimSpace(newTopic)
	if newTopic == "" {
		return nil, apierr.BadRequest("invalid_topic", fmt.Errorf("new_topic is required"))
	}
	prev, err := s.findCanvas(ctx, id)
	if err != nil {
		return nil, err
	}
	dom := prev.Domain
	if strings.TrimSpace(domainRaw) != "" {
		parsed, ok := domain.ParseCanvasDomain(domainRaw)
		if !ok {
			return nil, apierr.BadRequest("invalid_domain", fmt.Errorf("domain must be LANGUAGE, SCIENCE or LIBERAL_ARTS"))
		}
		dom = parsed
	}
	return s.create(ctxutil.Detached(ctx), newTopic, dom, prev)
}

func (s *canvasService) Interact(ctx context.Context, canvasID *uuid.UUID, prompt string) (*InteractResult, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, apierr.BadRequest("invalid_prompt", fmt.Errorf("prompt is required"))
	}
	var current *domain.Canvas
	if canvasID != nil && *canvasID != uuid.Nil {
		c, err := s.findCanvas(ctx, *canvasID)
		if err != nil {
			return nil, err
		}
		current = c
	}

	topic, dom := "", domain.CanvasDomain("")
	if current != nil {
		topic, dom = current.Topic, current.Domain
	}
	decision := s.router.Route(ctx, prompt, topic, dom)
	s.log.Debug("interaction routed", "action", decision.Action, "source", decision.Source, "topic", decision.Topic, "module_type", decision.ModuleType)

	ctx = ctxutil.Detached(ctx)
	var (
		snap *Snapshot
		err  error
	)
	if decision.Action == intent.ActionExpandCanvas && current != nil {
		snap, err = s.expand(ctx, current, decision.ModuleType, prompt)
	} else {
		newTopic := decision.Topic
		if newTopic == "" {
			newTopic = prompt
		}
		newDomain := decision.Domain
		if newDomain == "" {
			newDomain = intent.InferDomain(newTopic, dom)
		}
		decision.Action = intent.ActionNewCanvas
		snap, err = s.create(ctx, newTopic, newDomain, current)
	}
	if err != nil {
		return nil, err
	}
	return &InteractResult{Action: decision.Action, Decision: decision, Data: snap}, nil
}

func (s *canvasService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteCanvas(ctx, id); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return apierr.NotFound("canvas_not_found", err)
		}
		return storageErr(err)
	}
	if err := graph.DeleteCanvasGraph(ctx, s.graph, id); err != nil {
		s.log.Warn("canvas graph delete failed", "canvas_id", id, "error", err)
	}
	s.log.Info("canvas deleted", "canvas_id", id)
	return nil
}

func (s *canvasService) findCanvas(ctx context.Context, id uuid.UUID) (*domain.Canvas, error) {
	canvas, err := s.store.FindCanvas(ctx, id)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, apierr.NotFound("canvas_not_found", err)
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return canvas, nil
}

func (s *canvasService) snapshot(ctx context.Context, canvas *domain.Canvas) (*Snapshot, error) {
	snap, err := buildSnapshot(ctx, s.store, canvas)
	if err != nil {
		return nil, storageErr(err)
	}
	return snap, nil
}

func storageErr(err error) error {
	return apierr.From(err, "storage_error")
}

func canvasTitle(topic string) string {
	t := strings.TrimSpace(topic)
	if t == "" {
		return t
	}
	r := []rune(t)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

func expandTitle(moduleType, topic string) string {
	label := strings.ReplaceAll(moduleType, "_", " ")
	if topic == "" {
		return canvasTitle(label)
	}
	return canvasTitle(label) + ": " + topic
}
