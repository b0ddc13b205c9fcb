package plan

import (
	"context"
	"strings"

	"github.com/yungbote/neurocanvas-backend/internal/domain"
)

// DefaultType is the module type given to descriptors that name none.
const DefaultType = "explanation"

// Descriptor is one planned module. Type is an open string.
type Descriptor struct {
	Type        string `json:"type" yaml:"type"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// Planner returns the ordered modules for a new canvas. An empty plan is
// valid.
type Planner interface {
	PlanModules(ctx context.Context, topic string, dom domain.CanvasDomain) ([]Descriptor, error)
}

// NormalizeType lowercases and snake_cases a module type.
func NormalizeType(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return strings.Trim(s, "_")
}

func normalize(in []Descriptor, maxModules int) []Descriptor {
	out := make([]Descriptor, 0, len(in))
	for _, d := range in {
		t := NormalizeType(d.Type)
		title := strings.TrimSpace(d.Title)
		if t == "" {
			if title == "" && strings.TrimSpace(d.Description) == "" {
				continue
			}
			t = DefaultType
		}
		if title == "" {
			title = strings.ReplaceAll(t, "_", " ")
		}
		out = append(out, Descriptor{Type: t, Title: title, Description: strings.TrimSpace(d.Description)})
		if maxModules > 0 && len(out) >= maxModules {
			break
		}
	}
	return out
}
