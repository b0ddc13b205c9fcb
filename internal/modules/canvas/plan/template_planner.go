package plan

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/neurocanvas-backend/internal/domain"
)

//go:embed templates.yaml
var defaultTemplates []byte

// TemplatePlanner is the deterministic planner used when no LLM is
// configured or the LLM call fails.
type TemplatePlanner struct {
	plans      map[domain.CanvasDomain][]Descriptor
	maxModules int
}

func NewTemplatePlanner(maxModules int) (*TemplatePlanner, error) {
	return ParseTemplates(defaultTemplates, maxModules)
}

// ParseTemplates reads a domain-keyed YAML plan document.
func ParseTemplates(raw []byte, maxModules int) (*TemplatePlanner, error) {
	var doc map[string][]Descriptor
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("plan templates: %w", err)
	}
	plans := make(map[domain.CanvasDomain][]Descriptor, len(doc))
	for key, list := range doc {
		dom, ok := domain.ParseCanvasDomain(key)
		if !ok {
			return nil, fmt.Errorf("plan templates: unknown domain %q", key)
		}
		plans[dom] = list
	}
	return &TemplatePlanner{plans: plans, maxModules: maxModules}, nil
}

func (p *TemplatePlanner) PlanModules(ctx context.Context, topic string, dom domain.CanvasDomain) ([]Descriptor, error) {
	list, ok := p.plans[dom]
	if !ok {
		list = p.plans[domain.DomainScience]
	}
	topic = strings.TrimSpace(topic)
	out := make([]Descriptor, 0, len(list))
	for _, d := range list {
		out = append(out, Descriptor{
			Type:        d.Type,
			Title:       strings.ReplaceAll(d.Title, "{topic}", topic),
			Description: strings.ReplaceAll(d.Description, "{topic}", topic),
		})
	}
	return normalize(out, p.maxModules), nil
}
