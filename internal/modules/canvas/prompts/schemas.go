package prompts

// OpenAI strict JSON schema requires additionalProperties=false and every
// property listed in required. Optional fields are sent as empty values.

func EnumSchema(values ...string) map[string]any {
	return map[string]any{"type": "string", "enum": values}
}

func StringArraySchema() map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
}

func objectSchema(props map[string]any) map[string]any {
	req := make([]string, 0, len(props))
	for k := range props {
		req = append(req, k)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             req,
		"additionalProperties": false,
	}
}

func str() map[string]any { return map[string]any{"type": "string"} }

func PlanModulesSchema() map[string]any {
	return objectSchema(map[string]any{
		"modules": map[string]any{
			"type": "array",
			"items": objectSchema(map[string]any{
				"type":        str(),
				"title":       str(),
				"description": str(),
			}),
		},
	})
}

func TextSchema() map[string]any {
	return objectSchema(map[string]any{
		"title":    str(),
		"subtitle": str(),
		"body":     str(),
	})
}

func QuizSchema() map[string]any {
	return objectSchema(map[string]any{
		"title": str(),
		"questions": map[string]any{
			"type": "array",
			"items": objectSchema(map[string]any{
				"question":     str(),
				"options":      StringArraySchema(),
				"answer_index": map[string]any{"type": "integer"},
				"explanation":  str(),
			}),
		},
	})
}

func FormulaSchema() map[string]any {
	return objectSchema(map[string]any{
		"title":        str(),
		"main_formula": str(),
		"explanation":  str(),
		"variables": map[string]any{
			"type": "array",
			"items": objectSchema(map[string]any{
				"symbol":  str(),
				"meaning": str(),
			}),
		},
	})
}

func StorySchema() map[string]any {
	return objectSchema(map[string]any{
		"title":     str(),
		"narrative": str(),
		"moral":     str(),
	})
}

func HTMLAnimationSchema() map[string]any {
	return objectSchema(map[string]any{
		"title":        str(),
		"html_content": str(),
	})
}

func InteractiveAppSchema() map[string]any {
	return objectSchema(map[string]any{
		"title":        str(),
		"description":  str(),
		"html_content": str(),
		"parameters": map[string]any{
			"type": "array",
			"items": objectSchema(map[string]any{
				"name": str(),
				"min":  map[string]any{"type": "number"},
				"max":  map[string]any{"type": "number"},
				"unit": str(),
			}),
		},
	})
}

func MediaBriefSchema() map[string]any {
	return objectSchema(map[string]any{
		"title":  str(),
		"prompt": str(),
		"alt":    str(),
	})
}

func IntentClassifySchema() map[string]any {
	return objectSchema(map[string]any{
		"action":      EnumSchema("NEW_CANVAS", "EXPAND_CANVAS"),
		"topic":       str(),
		"domain":      EnumSchema("", "LANGUAGE", "SCIENCE", "LIBERAL_ARTS"),
		"module_type": str(),
		"confidence":  map[string]any{"type": "number"},
	})
}
