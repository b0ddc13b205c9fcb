package prompts

type PromptName string

const (
	// Planning
	PromptPlanModules PromptName = "plan_modules"

	// Realization (synchronous module kinds)
	PromptExplanation    PromptName = "explanation"
	PromptQuiz           PromptName = "quiz"
	PromptFormula        PromptName = "formula"
	PromptStory          PromptName = "story"
	PromptHTMLAnimation  PromptName = "html_animation"
	PromptInteractiveApp PromptName = "interactive_app"

	// Media prompt shaping (video, image)
	PromptMediaBrief PromptName = "media_brief"

	// Routing
	PromptIntentClassify PromptName = "intent_classify"
)
