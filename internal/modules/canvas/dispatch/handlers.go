package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yungbote/neurocanvas-backend/internal/domain"
	"github.com/yungbote/neurocanvas-backend/internal/domain/content"
	"github.com/yungbote/neurocanvas-backend/internal/modules/canvas/plan"
	"github.com/yungbote/neurocanvas-backend/internal/modules/canvas/prompts"
	"github.com/yungbote/neurocanvas-backend/internal/platform/openai"
)

// Module types that resolve to dedicated handlers. Anything else is text.
var (
	textKinds      = []string{"definition", "examples", "experiment", "perspectives", "summary", "text"}
	animationKinds = []string{"html_animation", "animation"}
	appKinds       = []string{"interactive_app", "simulation"}
	videoKinds     = []string{"video", "animation_video"}
	imageKinds     = []string{"image", "illustration", "ai_image"}
)

// MediaKindFor reports whether a module type is generated asynchronously.
func MediaKindFor(moduleType string) (domain.MediaKind, bool) {
	t := plan.NormalizeType(moduleType)
	for _, k := range videoKinds {
		if t == k {
			return domain.MediaVideo, true
		}
	}
	for _, k := range imageKinds {
		if t == k {
			return domain.MediaImage, true
		}
	}
	return "", false
}

// NewDefaultRegistry wires every built-in kind to ai.
func NewDefaultRegistry(ai openai.Client) (*Registry, error) {
	reg := NewRegistry()
	text := &llmHandler{kind: DefaultType, ai: ai, prompt: prompts.PromptExplanation, decode: decodeText}
	if err := reg.Register(text); err != nil {
		return nil, err
	}
	for _, k := range textKinds {
		if err := reg.Alias(k, text); err != nil {
			return nil, err
		}
	}
	singles := []*llmHandler{
		{kind: "quiz", ai: ai, prompt: prompts.PromptQuiz, decode: decodeQuiz},
		{kind: "formula", ai: ai, prompt: prompts.PromptFormula, decode: decodeFormula},
		{kind: "story", ai: ai, prompt: prompts.PromptStory, decode: decodeStory},
	}
	for _, h := range singles {
		if err := reg.Register(h); err != nil {
			return nil, err
		}
	}
	anim := &llmHandler{kind: animationKinds[0], ai: ai, prompt: prompts.PromptHTMLAnimation, decode: decodeHTMLAnimation}
	app := &llmHandler{kind: appKinds[0], ai: ai, prompt: prompts.PromptInteractiveApp, decode: decodeInteractiveApp}
	for _, pair := range []struct {
		h     Handler
		kinds []string
	}{{anim, animationKinds}, {app, appKinds}} {
		if err := reg.Register(pair.h); err != nil {
			return nil, err
		}
		for _, k := range pair.kinds[1:] {
			if err := reg.Alias(k, pair.h); err != nil {
				return nil, err
			}
		}
	}
	for _, k := range append(append([]string{}, videoKinds...), imageKinds...) {
		if err := reg.Register(mediaHandler{kind: k}); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

type llmHandler struct {
	kind   string
	ai     openai.Client
	prompt prompts.PromptName
	decode func(obj map[string]any, desc plan.Descriptor) (content.Payload, error)
}

func (h *llmHandler) Type() string { return h.kind }

func (h *llmHandler) Generate(ctx context.Context, desc plan.Descriptor, gctx GenContext) (Result, error) {
	if h.ai == nil {
		return Result{}, fmt.Errorf("generate %s: content generator not configured", desc.Type)
	}
	pr, err := prompts.Build(h.prompt, prompts.Input{
		Topic:             gctx.Topic,
		Domain:            string(gctx.Domain),
		ModuleType:        desc.Type,
		ModuleTitle:       desc.Title,
		ModuleDescription: desc.Description,
		UserPrompt:        gctx.UserPrompt,
		PriorContext:      gctx.Prior.String(),
	})
	if err != nil {
		return Result{}, fmt.Errorf("generate %s: %w", desc.Type, err)
	}
	obj, err := h.ai.GenerateJSON(ctx, pr.System, pr.User, pr.SchemaName, pr.Schema)
	if err != nil {
		return Result{}, fmt.Errorf("generate %s: %w", desc.Type, err)
	}
	p, err := h.decode(obj, desc)
	if err != nil {
		return Result{}, fmt.Errorf("generate %s: %w", desc.Type, err)
	}
	return Result{Payload: p}, nil
}

type mediaHandler struct {
	kind string
}

func (h mediaHandler) Type() string { return h.kind }

// Generate makes no external call; the media manager owns the job.
func (h mediaHandler) Generate(ctx context.Context, desc plan.Descriptor, gctx GenContext) (Result, error) {
	kind, _ := MediaKindFor(desc.Type)
	if kind == "" {
		kind, _ = MediaKindFor(h.kind)
	}
	return Result{Media: &MediaRequest{
		Kind:       kind,
		ModuleType: desc.Type,
		Title:      desc.Title,
		Prompt:     MediaPrompt(desc, gctx),
	}}, nil
}

// MediaPrompt composes the provider prompt from the descriptor and context.
func MediaPrompt(desc plan.Descriptor, gctx GenContext) string {
	parts := []string{strings.TrimSpace(desc.Title)}
	if d := strings.TrimSpace(desc.Description); d != "" {
		parts = append(parts, d)
	}
	if t := strings.TrimSpace(gctx.Topic); t != "" {
		parts = append(parts, "Topic: "+t)
	}
	if u := strings.TrimSpace(gctx.UserPrompt); u != "" {
		parts = append(parts, "Request: "+u)
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, strings.TrimRight(p, "."))
		}
	}
	return strings.Join(out, ". ") + "."
}

func decodeInto(obj map[string]any, dst any) error {
	raw, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func titleOr(got string, desc plan.Descriptor) string {
	if s := strings.TrimSpace(got); s != "" {
		return s
	}
	return desc.Title
}

func decodeText(obj map[string]any, desc plan.Descriptor) (content.Payload, error) {
	var out content.Text
	if err := decodeInto(obj, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.Body) == "" {
		return nil, fmt.Errorf("empty body")
	}
	out.Title = titleOr(out.Title, desc)
	out.Subtitle = strings.TrimSpace(out.Subtitle)
	return out, nil
}

func decodeQuiz(obj map[string]any, desc plan.Descriptor) (content.Payload, error) {
	var out content.Quiz
	if err := decodeInto(obj, &out); err != nil {
		return nil, err
	}
	valid := make([]content.QuizQuestion, 0, len(out.Questions))
	for _, q := range out.Questions {
		if strings.TrimSpace(q.Question) == "" || len(q.Options) < 2 {
			continue
		}
		if q.AnswerIndex < 0 || q.AnswerIndex >= len(q.Options) {
			continue
		}
		valid = append(valid, q)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("quiz has no valid questions")
	}
	out.Questions = valid
	out.Title = titleOr(out.Title, desc)
	return out, nil
}

func decodeFormula(obj map[string]any, desc plan.Descriptor) (content.Payload, error) {
	var out content.Formula
	if err := decodeInto(obj, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.MainFormula) == "" {
		return nil, fmt.Errorf("empty main_formula")
	}
	out.Title = titleOr(out.Title, desc)
	return out, nil
}

func decodeStory(obj map[string]any, desc plan.Descriptor) (content.Payload, error) {
	var out content.Story
	if err := decodeInto(obj, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.Narrative) == "" {
		return nil, fmt.Errorf("empty narrative")
	}
	out.Title = titleOr(out.Title, desc)
	return out, nil
}

func decodeHTMLAnimation(obj map[string]any, desc plan.Descriptor) (content.Payload, error) {
	var out content.HTMLAnimation
	if err := decodeInto(obj, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.HTMLContent) == "" {
		return nil, fmt.Errorf("empty html_content")
	}
	out.Title = titleOr(out.Title, desc)
	return out, nil
}

func decodeInteractiveApp(obj map[string]any, desc plan.Descriptor) (content.Payload, error) {
	var in struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		HTMLContent string `json:"html_content"`
		Parameters  []struct {
			Name string  `json:"name"`
			Min  float64 `json:"min"`
			Max  float64 `json:"max"`
			Unit string  `json:"unit"`
		} `json:"parameters"`
	}
	if err := decodeInto(obj, &in); err != nil {
		return nil, err
	}
	params := make([]any, 0, len(in.Parameters))
	for _, p := range in.Parameters {
		if strings.TrimSpace(p.Name) == "" {
			continue
		}
		lo, hi := p.Min, p.Max
		if lo > hi {
			lo, hi = hi, lo
		}
		entry := map[string]any{"name": strings.TrimSpace(p.Name), "min": lo, "max": hi}
		if u := strings.TrimSpace(p.Unit); u != "" {
			entry["unit"] = u
		}
		params = append(params, entry)
	}
	if len(params) == 0 && strings.TrimSpace(in.HTMLContent) == "" {
		return nil, fmt.Errorf("interactive app has neither parameters nor html")
	}
	return content.InteractiveApp{
		Title: titleOr(in.Title, desc),
		AppData: map[string]any{
			"description":  strings.TrimSpace(in.Description),
			"html_content": in.HTMLContent,
			"parameters":   params,
		},
	}, nil
}
