package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/yungbote/neurocanvas-backend/internal/modules/canvas/plan"
)

// Handler generates content for one module kind.
type Handler interface {
	Type() string
	Generate(ctx context.Context, desc plan.Descriptor, gctx GenContext) (Result, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc struct {
	Kind string
	Fn   func(ctx context.Context, desc plan.Descriptor, gctx GenContext) (Result, error)
}

func (h HandlerFunc) Type() string { return h.Kind }

func (h HandlerFunc) Generate(ctx context.Context, desc plan.Descriptor, gctx GenContext) (Result, error) {
	return h.Fn(ctx, desc, gctx)
}

type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(h Handler) error {
	if h == nil {
		return fmt.Errorf("nil handler")
	}
	t := plan.NormalizeType(h.Type())
	if t == "" {
		return fmt.Errorf("handler Type() is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[t]; exists {
		return fmt.Errorf("handler already registered for module_type=%s", t)
	}
	r.handlers[t] = h
	return nil
}

// Alias registers h under an additional module type.
func (r *Registry) Alias(kind string, h Handler) error {
	return r.Register(aliased{kind: kind, Handler: h})
}

func (r *Registry) Get(kind string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[plan.NormalizeType(kind)]
	return h, ok
}

type aliased struct {
	kind string
	Handler
}

func (a aliased) Type() string { return a.kind }
