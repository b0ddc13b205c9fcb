package intent

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/neurocanvas-backend/internal/domain"
	"github.com/yungbote/neurocanvas-backend/internal/modules/canvas/plan"
	"github.com/yungbote/neurocanvas-backend/internal/observability"
	"github.com/yungbote/neurocanvas-backend/internal/platform/logger"
)

type Action string

const (
	ActionNewCanvas    Action = "NEW_CANVAS"
	ActionExpandCanvas Action = "EXPAND_CANVAS"
)

// Decision sources.
const (
	SourceRule       = "rule"
	SourceClassifier = "classifier"
	SourceHeuristic  = "heuristic"
)

type Decision struct {
	Action     Action              `json:"action"`
	Topic      string              `json:"topic,omitempty"`
	Domain     domain.CanvasDomain `json:"domain,omitempty"`
	ModuleType string              `json:"module_type,omitempty"`
	Source     string              `json:"source"`
}

// Classifier is the pluggable primary tier. It may be slow or fail; the
// router never depends on it for an answer.
type Classifier interface {
	Classify(ctx context.Context, prompt, currentTopic string, currentDomain domain.CanvasDomain) (Decision, error)
}

type Router struct {
	log     *logger.Logger
	primary Classifier
}

// NewRouter accepts a nil primary; the heuristic tier is always present.
func NewRouter(log *logger.Logger, primary Classifier) *Router {
	return &Router{log: log.With("component", "IntentRouter"), primary: primary}
}

func (r *Router) Route(ctx context.Context, prompt, currentTopic string, currentDomain domain.CanvasDomain) Decision {
	d := r.route(ctx, prompt, currentTopic, currentDomain)
	observability.Current().IncIntentDecision(string(d.Action), d.Source)
	return d
}

func (r *Router) route(ctx context.Context, prompt, currentTopic string, currentDomain domain.CanvasDomain) Decision {
	prompt = strings.TrimSpace(prompt)
	if strings.TrimSpace(currentTopic) == "" {
		return newCanvas(prompt, currentDomain, SourceRule)
	}
	if r.primary != nil {
		d, err := r.primary.Classify(ctx, prompt, currentTopic, currentDomain)
		if err == nil {
			if d, err = validate(d, prompt, currentDomain); err == nil {
				d.Source = SourceClassifier
				return d
			}
		}
		r.log.Warn("intent classifier unavailable; using heuristic", "error", err)
	}
	return Heuristic(prompt, currentTopic, currentDomain)
}

// validate fills derivable fields and rejects decisions the caller cannot act on.
func validate(d Decision, prompt string, currentDomain domain.CanvasDomain) (Decision, error) {
	switch d.Action {
	case ActionNewCanvas:
		if strings.TrimSpace(d.Topic) == "" {
			d.Topic = ExtractTopic(prompt)
		}
		if d.Topic == "" {
			return Decision{}, fmt.Errorf("new canvas decision without topic")
		}
		if _, ok := domain.ParseCanvasDomain(string(d.Domain)); !ok {
			d.Domain = InferDomain(d.Topic, currentDomain)
		}
		d.ModuleType = ""
		return d, nil
	case ActionExpandCanvas:
		d.ModuleType = plan.NormalizeType(d.ModuleType)
		if d.ModuleType == "" {
			d.ModuleType = ModuleTypeFor(prompt)
		}
		d.Topic = ""
		d.Domain = currentDomain
		return d, nil
	default:
		return Decision{}, fmt.Errorf("invalid action %q", d.Action)
	}
}

func newCanvas(prompt string, currentDomain domain.CanvasDomain, source string) Decision {
	topic := ExtractTopic(prompt)
	return Decision{
		Action: ActionNewCanvas,
		Topic:  topic,
		Domain: InferDomain(topic, currentDomain),
		Source: source,
	}
}
