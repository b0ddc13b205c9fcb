package intent

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/neurocanvas-backend/internal/domain"
	"github.com/yungbote/neurocanvas-backend/internal/modules/canvas/prompts"
	"github.com/yungbote/neurocanvas-backend/internal/platform/openai"
)

// minConfidence below which an LLM answer is treated as unusable.
const minConfidence = 0.35

type LLMClassifier struct {
	ai openai.Client
}

func NewLLMClassifier(ai openai.Client) *LLMClassifier {
	return &LLMClassifier{ai: ai}
}

func (c *LLMClassifier) Classify(ctx context.Context, prompt, currentTopic string, currentDomain domain.CanvasDomain) (Decision, error) {
	if c == nil || c.ai == nil {
		return Decision{}, fmt.Errorf("intent classifier not configured")
	}
	pr, err := prompts.Build(prompts.PromptIntentClassify, prompts.Input{
		UserPrompt:    prompt,
		CurrentTopic:  currentTopic,
		CurrentDomain: string(currentDomain),
	})
	if err != nil {
		return Decision{}, err
	}
	obj, err := c.ai.GenerateJSON(ctx, pr.System, pr.User, pr.SchemaName, pr.Schema)
	if err != nil {
		return Decision{}, fmt.Errorf("intent classify: %w", err)
	}
	action, _ := obj["action"].(string)
	topic, _ := obj["topic"].(string)
	dom, _ := obj["domain"].(string)
	moduleType, _ := obj["module_type"].(string)
	if conf, ok := obj["confidence"].(float64); ok && conf < minConfidence {
		return Decision{}, fmt.Errorf("intent classify: low confidence %.2f", conf)
	}
	parsed, _ := domain.ParseCanvasDomain(dom)
	return Decision{
		Action:     Action(strings.ToUpper(strings.TrimSpace(action))),
		Topic:      strings.TrimSpace(topic),
		Domain:     parsed,
		ModuleType: moduleType,
	}, nil
}
