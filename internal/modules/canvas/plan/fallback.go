package plan

import (
	"context"

	"github.com/yungbote/neurocanvas-backend/internal/domain"
	"github.com/yungbote/neurocanvas-backend/internal/platform/logger"
)

type fallbackPlanner struct {
	primary  Planner
	fallback Planner
	log      *logger.Logger
}

// WithFallback consults primary first and uses fallback when primary is nil
// or errors.
func WithFallback(primary, fallback Planner, log *logger.Logger) Planner {
	return &fallbackPlanner{primary: primary, fallback: fallback, log: log.With("component", "Planner")}
}

func (p *fallbackPlanner) PlanModules(ctx context.Context, topic string, dom domain.CanvasDomain) ([]Descriptor, error) {
	if p.primary != nil {
		out, err := p.primary.PlanModules(ctx, topic, dom)
		if err == nil {
			return out, nil
		}
		p.log.Warn("primary planner failed; using template plan", "topic", topic, "domain", dom, "error", err)
	}
	return p.fallback.PlanModules(ctx, topic, dom)
}
