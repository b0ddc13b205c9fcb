package prompts

func RegisterAll() {
	// ---------- Planning ----------

	RegisterSpec(Spec{
		Name:       PromptPlanModules,
		Version:    1,
		SchemaName: "plan_modules",
		Schema:     PlanModulesSchema,
		System: `
You design a learning canvas: an ordered set of independent content modules about one topic.
Each module has a type (snake_case), a short title and a one-sentence description.
Prefer types from: definition, explanation, examples, story, formula, experiment, interactive_app, html_animation, video, image, quiz.
Put any quiz last so it can reference the other modules.
Return JSON only.`,
		User: `
TOPIC: {{.Topic}}
DOMAIN: {{.Domain}}

Output rules:
- modules: 3-{{if .MaxModules}}{{.MaxModules}}{{else}}6{{end}} entries, in display order.
- LANGUAGE canvases favor definition, examples, story, quiz.
- SCIENCE canvases favor explanation, formula, experiment or interactive_app, video, quiz.
- LIBERAL_ARTS canvases favor explanation, story, image, perspectives, quiz.`,
		Validators: []Validator{
			RequireNonEmpty("Topic", func(in Input) string { return in.Topic }),
		},
	})

	// ---------- Realization ----------

	RegisterSpec(Spec{
		Name:       PromptExplanation,
		Version:    1,
		SchemaName: "text_module",
		Schema:     TextSchema,
		System: `
You write one self-contained text module for a learning canvas.
The module kind is given; shape the body to fit it (a definition defines, examples list examples, an experiment gives steps).
Keep the body under 250 words. Plain text with simple line breaks.
Return JSON only.`,
		User: `
TOPIC: {{.Topic}}
DOMAIN: {{.Domain}}
MODULE KIND: {{.ModuleType}}
MODULE TITLE: {{.ModuleTitle}}
MODULE DESCRIPTION: {{.ModuleDescription}}
{{if .UserPrompt}}
USER REQUEST: {{.UserPrompt}}
{{end}}{{if .PriorContext}}
OTHER MODULES ON THIS CANVAS (avoid repeating them):
{{.PriorContext}}
{{end}}
subtitle may be empty.`,
		Validators: []Validator{
			RequireNonEmpty("Topic", func(in Input) string { return in.Topic }),
		},
	})

	RegisterSpec(Spec{
		Name:       PromptQuiz,
		Version:    1,
		SchemaName: "quiz_module",
		Schema:     QuizSchema,
		System: `
You write a short multiple-choice quiz for a learning canvas.
Questions must reference specific details from the other modules on the canvas (names, numbers, events, parameters), not generic recall.
Return JSON only.`,
		User: `
TOPIC: {{.Topic}}
DOMAIN: {{.Domain}}
MODULE TITLE: {{.ModuleTitle}}
{{if .UserPrompt}}
USER REQUEST: {{.UserPrompt}}
{{end}}
CANVAS CONTENT:
{{if .PriorContext}}{{.PriorContext}}{{else}}(none yet; ask about core facts of the topic){{end}}

Output rules:
- 3-5 questions, 3-4 options each.
- answer_index is the 0-based index of the correct option.
- explanation: one sentence, may be empty.`,
		Validators: []Validator{
			RequireNonEmpty("Topic", func(in Input) string { return in.Topic }),
		},
	})

	RegisterSpec(Spec{
		Name:       PromptFormula,
		Version:    1,
		SchemaName: "formula_module",
		Schema:     FormulaSchema,
		System: `
You present the single most important formula for a topic.
main_formula is plain text (for example "E = mc^2"), not LaTeX.
Return JSON only.`,
		User: `
TOPIC: {{.Topic}}
MODULE TITLE: {{.ModuleTitle}}
MODULE DESCRIPTION: {{.ModuleDescription}}
{{if .UserPrompt}}
USER REQUEST: {{.UserPrompt}}
{{end}}
explanation: 2-5 sentences. variables: every symbol in main_formula.`,
		Validators: []Validator{
			RequireNonEmpty("Topic", func(in Input) string { return in.Topic }),
		},
	})

	RegisterSpec(Spec{
		Name:       PromptStory,
		Version:    1,
		SchemaName: "story_module",
		Schema:     StorySchema,
		System: `
You write a short story (120-250 words) that makes a topic memorable.
Use named characters and concrete events so later questions can refer to them.
Return JSON only.`,
		User: `
TOPIC: {{.Topic}}
DOMAIN: {{.Domain}}
MODULE TITLE: {{.ModuleTitle}}
{{if .UserPrompt}}
USER REQUEST: {{.UserPrompt}}
{{end}}{{if .PriorContext}}
OTHER MODULES ON THIS CANVAS:
{{.PriorContext}}
{{end}}
moral may be empty.`,
		Validators: []Validator{
			RequireNonEmpty("Topic", func(in Input) string { return in.Topic }),
		},
	})

	RegisterSpec(Spec{
		Name:       PromptHTMLAnimation,
		Version:    1,
		SchemaName: "html_animation_module",
		Schema:     HTMLAnimationSchema,
		System: `
You write a single self-contained HTML document (inline CSS and JS, no external resources) that animates one idea.
It must fit a 480x320 box and loop.
Return JSON only.`,
		User: `
TOPIC: {{.Topic}}
MODULE TITLE: {{.ModuleTitle}}
MODULE DESCRIPTION: {{.ModuleDescription}}
{{if .UserPrompt}}
USER REQUEST: {{.UserPrompt}}
{{end}}`,
		Validators: []Validator{
			RequireNonEmpty("Topic", func(in Input) string { return in.Topic }),
		},
	})

	RegisterSpec(Spec{
		Name:       PromptInteractiveApp,
		Version:    1,
		SchemaName: "interactive_app_module",
		Schema:     InteractiveAppSchema,
		System: `
You design a small interactive simulation: a self-contained HTML document with sliders for each parameter.
Every parameter has a name, numeric min and max, and a unit (may be empty).
Return JSON only.`,
		User: `
TOPIC: {{.Topic}}
MODULE TITLE: {{.ModuleTitle}}
MODULE DESCRIPTION: {{.ModuleDescription}}
{{if .UserPrompt}}
USER REQUEST: {{.UserPrompt}}
{{end}}
parameters: 1-4 entries.`,
		Validators: []Validator{
			RequireNonEmpty("Topic", func(in Input) string { return in.Topic }),
		},
	})

	RegisterSpec(Spec{
		Name:       PromptMediaBrief,
		Version:    1,
		SchemaName: "media_brief",
		Schema:     MediaBriefSchema,
		System: `
You write a generation prompt for a {{.ModuleType}} about a learning topic.
Describe the scene concretely: subject, setting, motion or composition, style. No text overlays.
Return JSON only.`,
		User: `
TOPIC: {{.Topic}}
MODULE TITLE: {{.ModuleTitle}}
MODULE DESCRIPTION: {{.ModuleDescription}}
{{if .UserPrompt}}
USER REQUEST: {{.UserPrompt}}
{{end}}
prompt: under 80 words. alt: one sentence describing the result.`,
		Validators: []Validator{
			RequireNonEmpty("Topic", func(in Input) string { return in.Topic }),
		},
	})

	// ---------- Routing ----------

	RegisterSpec(Spec{
		Name:       PromptIntentClassify,
		Version:    1,
		SchemaName: "intent_classify",
		Schema:     IntentClassifySchema,
		System: `
You route a learner's message on a learning canvas.
NEW_CANVAS: the learner wants a different topic. topic is the new topic in a few words.
EXPAND_CANVAS: the learner wants more on the current topic. module_type is one snake_case module kind (examples, quiz, story, formula, experiment, video, image, definition, explanation).
domain is LANGUAGE, SCIENCE or LIBERAL_ARTS when it can be inferred, else empty.
Return JSON only.`,
		User: `
CURRENT TOPIC: {{.CurrentTopic}}
CURRENT DOMAIN: {{.CurrentDomain}}
MESSAGE: {{.UserPrompt}}`,
		Validators: []Validator{
			RequireNonEmpty("UserPrompt", func(in Input) string { return in.UserPrompt }),
		},
	})
}
