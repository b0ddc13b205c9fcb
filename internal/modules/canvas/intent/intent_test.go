package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/neurocanvas-backend/internal/domain"
	"github.com/yungbote/neurocanvas-backend/internal/platform/logger"
	"github.com/yungbote/neurocanvas-backend/internal/platform/openai"
)

type stubClassifier struct {
	d     Decision
	err   error
	calls int
}

func (s *stubClassifier) Classify(ctx context.Context, prompt, currentTopic string, currentDomain domain.CanvasDomain) (Decision, error) {
	s.calls++
	return s.d, s.err
}

func TestEmptyTopicAlwaysNewCanvas(t *testing.T) {
	cls := &stubClassifier{d: Decision{Action: ActionExpandCanvas, ModuleType: "quiz"}}
	r := NewRouter(logger.Nop(), cls)
	for _, prompt := range []string{"gravity", "add more examples", "show me a long detailed explanation of orbits please"} {
		d := r.Route(context.Background(), prompt, "", "")
		assert.Equal(t, ActionNewCanvas, d.Action, prompt)
		assert.Equal(t, SourceRule, d.Source)
	}
	assert.Zero(t, cls.calls, "classifier is not consulted without a current topic")

	d := r.Route(context.Background(), "gravity", "", "")
	assert.Equal(t, "gravity", d.Topic)
	assert.Equal(t, domain.DomainScience, d.Domain)
}

func TestHeuristicRules(t *testing.T) {
	cases := []struct {
		prompt     string
		action     Action
		moduleType string
		topic      string
	}{
		{"add more examples", ActionExpandCanvas, "examples", ""},
		{"show me a video", ActionExpandCanvas, "video", ""},
		{"quiz", ActionExpandCanvas, "quiz", ""},
		{"add a new quiz", ActionExpandCanvas, "quiz", ""},
		{"explain the formula", ActionExpandCanvas, "formula", ""},
		{"tell me about black holes", ActionNewCanvas, "", "black holes"},
		{"switch to chemistry", ActionNewCanvas, "", "chemistry"},
		{"add more, but switch to a new topic instead", ActionNewCanvas, "", ""},
		{"photosynthesis", ActionNewCanvas, "", "photosynthesis"},
		{"french revolution causes", ActionNewCanvas, "", "french revolution causes"},
		{"what happens when the apple falls down", ActionExpandCanvas, "explanation", ""},
		{"the roman empire today", ActionNewCanvas, "", "the roman empire today"},
	}
	for _, tc := range cases {
		d := Heuristic(tc.prompt, "gravity", domain.DomainScience)
		assert.Equal(t, tc.action, d.Action, tc.prompt)
		assert.Equal(t, SourceHeuristic, d.Source, tc.prompt)
		if tc.action == ActionExpandCanvas {
			assert.Equal(t, tc.moduleType, d.ModuleType, tc.prompt)
			assert.Equal(t, domain.DomainScience, d.Domain, tc.prompt)
		}
		if tc.topic != "" {
			assert.Equal(t, tc.topic, d.Topic, tc.prompt)
		}
	}
}

func TestExtractTopic(t *testing.T) {
	assert.Equal(t, "black holes", ExtractTopic("Tell me about black holes?"))
	assert.Equal(t, "the French Revolution", ExtractTopic("I want to learn about the French Revolution!"))
	assert.Equal(t, "gravity", ExtractTopic("new topic: gravity"))
	assert.Equal(t, "learn", ExtractTopic("learn"))
}

func TestInferDomain(t *testing.T) {
	assert.Equal(t, domain.DomainScience, InferDomain("black holes", ""))
	assert.Equal(t, domain.DomainLiberalArts, InferDomain("the french revolution history", ""))
	assert.Equal(t, domain.DomainLanguage, InferDomain("spanish verbs", ""))
	assert.Equal(t, domain.DomainLanguage, InferDomain("apple", ""))
	assert.Equal(t, domain.DomainScience, InferDomain("how bridges stand", ""))
	assert.Equal(t, domain.DomainLiberalArts, InferDomain("gravity", domain.DomainLiberalArts))
}

func TestClassifierPreferredWhenValid(t *testing.T) {
	cls := &stubClassifier{d: Decision{Action: ActionExpandCanvas, ModuleType: "Fun Facts"}}
	r := NewRouter(logger.Nop(), cls)
	d := r.Route(context.Background(), "gravity", "orbits", domain.DomainScience)
	assert.Equal(t, ActionExpandCanvas, d.Action)
	assert.Equal(t, "fun_facts", d.ModuleType)
	assert.Equal(t, SourceClassifier, d.Source)

	cls.d = Decision{Action: ActionNewCanvas, Domain: "bogus"}
	d = r.Route(context.Background(), "tell me about volcanoes", "orbits", domain.DomainScience)
	assert.Equal(t, ActionNewCanvas, d.Action)
	assert.Equal(t, "volcanoes", d.Topic)
	assert.Equal(t, domain.DomainScience, d.Domain)
}

func TestFallbackOnClassifierFailure(t *testing.T) {
	for _, cls := range []*stubClassifier{
		{err: errors.New("timeout")},
		{d: Decision{Action: "MAYBE"}},
	} {
		r := NewRouter(logger.Nop(), cls)
		d := r.Route(context.Background(), "add more examples", "gravity", domain.DomainScience)
		assert.Equal(t, ActionExpandCanvas, d.Action)
		assert.Equal(t, "examples", d.ModuleType)
		assert.Equal(t, SourceHeuristic, d.Source)
	}
	d := NewRouter(logger.Nop(), nil).Route(context.Background(), "gravity", "orbits", domain.DomainScience)
	assert.Equal(t, ActionNewCanvas, d.Action)
	assert.Equal(t, SourceHeuristic, d.Source)
}

type fakeAI struct {
	openai.Client
	obj map[string]any
	err error
}

func (f fakeAI) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	return f.obj, f.err
}

func TestLLMClassifier(t *testing.T) {
	c := NewLLMClassifier(fakeAI{obj: map[string]any{
		"action": "expand_canvas", "topic": "", "domain": "", "module_type": "story", "confidence": 0.9,
	}})
	d, err := c.Classify(context.Background(), "tell a story", "apple", domain.DomainLanguage)
	require.NoError(t, err)
	assert.Equal(t, ActionExpandCanvas, d.Action)
	assert.Equal(t, "story", d.ModuleType)

	c = NewLLMClassifier(fakeAI{obj: map[string]any{"action": "NEW_CANVAS", "confidence": 0.1}})
	_, err = c.Classify(context.Background(), "x", "apple", "")
	assert.Error(t, err)

	_, err = NewLLMClassifier(nil).Classify(context.Background(), "x", "apple", "")
	assert.Error(t, err)
}
