package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/neurocanvas-backend/internal/domain"
	"github.com/yungbote/neurocanvas-backend/internal/domain/content"
	"github.com/yungbote/neurocanvas-backend/internal/modules/canvas/digest"
	"github.com/yungbote/neurocanvas-backend/internal/modules/canvas/plan"
	"github.com/yungbote/neurocanvas-backend/internal/observability"
	"github.com/yungbote/neurocanvas-backend/internal/platform/logger"
)

// DefaultType handles every module type without a registered handler.
const DefaultType = plan.DefaultType

// GenContext carries everything a handler may use besides the descriptor.
type GenContext struct {
	Topic      string
	Domain     domain.CanvasDomain
	UserPrompt string
	Prior      digest.Digest
}

// MediaRequest is returned for slow media kinds instead of content. The
// caller persists a placeholder and hands the request to the media manager.
type MediaRequest struct {
	Kind       domain.MediaKind
	ModuleType string
	Title      string
	Prompt     string
}

// Placeholder is the pending payload committed while the job runs.
func (m MediaRequest) Placeholder() content.Payload {
	if m.Kind == domain.MediaImage {
		return content.Image{Title: m.Title, Pending: true}
	}
	return content.Video{Title: m.Title, Pending: true}
}

// Result holds exactly one of Payload or Media.
type Result struct {
	Payload content.Payload
	Media   *MediaRequest
}

func (r Result) IsMedia() bool { return r.Media != nil }

// Dispatcher maps a descriptor to its handler. It never writes to storage.
type Dispatcher struct {
	log *logger.Logger
	reg *Registry
}

// New requires a handler registered under DefaultType.
func New(log *logger.Logger, reg *Registry) (*Dispatcher, error) {
	if reg == nil {
		return nil, fmt.Errorf("dispatch: registry required")
	}
	if _, ok := reg.Get(DefaultType); !ok {
		return nil, fmt.Errorf("dispatch: no default %q handler registered", DefaultType)
	}
	return &Dispatcher{log: log.With("component", "Dispatcher"), reg: reg}, nil
}

// Resolve returns the handler for kind, falling back to the default.
func (d *Dispatcher) Resolve(kind string) Handler {
	if h, ok := d.reg.Get(kind); ok {
		return h
	}
	h, _ := d.reg.Get(DefaultType)
	return h
}

func (d *Dispatcher) Generate(ctx context.Context, desc plan.Descriptor, gctx GenContext) (Result, error) {
	kind := plan.NormalizeType(desc.Type)
	if kind == "" {
		kind = DefaultType
	}
	desc.Type = kind
	if strings.TrimSpace(desc.Title) == "" {
		desc.Title = strings.ReplaceAll(kind, "_", " ")
	}

	ctx, span := observability.StartSpan(ctx, "dispatch.generate",
		attribute.String("module.type", kind),
		attribute.Bool("context.prior", gctx.Prior.NonEmpty()),
	)
	defer span.End()

	start := time.Now()
	res, err := d.Resolve(kind).Generate(ctx, desc, gctx)
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case res.IsMedia():
		outcome = "media"
	case res.Payload == nil:
		err = fmt.Errorf("generate %s: handler returned no content", kind)
		outcome = "error"
	}
	observability.Current().ObserveGeneration(kind, outcome, time.Since(start))
	if err != nil {
		d.log.Warn("module generation failed", "module_type", kind, "error", err)
		return Result{}, err
	}
	return res, nil
}
