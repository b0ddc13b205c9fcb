package plan

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/yungbote/neurocanvas-backend/internal/domain"
	"github.com/yungbote/neurocanvas-backend/internal/modules/canvas/prompts"
	"github.com/yungbote/neurocanvas-backend/internal/observability"
	"github.com/yungbote/neurocanvas-backend/internal/platform/openai"
)

type LLMPlanner struct {
	ai         openai.Client
	maxModules int
}

func NewLLMPlanner(ai openai.Client, maxModules int) *LLMPlanner {
	return &LLMPlanner{ai: ai, maxModules: maxModules}
}

func (p *LLMPlanner) PlanModules(ctx context.Context, topic string, dom domain.CanvasDomain) ([]Descriptor, error) {
	if p == nil || p.ai == nil {
		return nil, fmt.Errorf("llm planner not configured")
	}
	ctx, span := observability.StartSpan(ctx, "plan.llm")
	defer span.End()

	pr, err := prompts.Build(prompts.PromptPlanModules, prompts.Input{Topic: topic, Domain: string(dom), MaxModules: p.maxModules})
	if err != nil {
		return nil, err
	}
	obj, err := p.ai.GenerateJSON(ctx, pr.System, pr.User, pr.SchemaName, pr.Schema)
	if err != nil {
		return nil, fmt.Errorf("plan modules: %w", err)
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	var out struct {
		Modules []Descriptor `json:"modules"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("plan modules: decode: %w", err)
	}
	return normalize(out.Modules, p.maxModules), nil
}
