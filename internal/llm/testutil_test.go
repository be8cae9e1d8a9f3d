package llm

var testSchema = &Schema{
	Name: "test-question",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"stem": map[string]any{"type": "string"},
			"choices": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"minItems": 4,
				"maxItems": 4,
			},
			"correctIndex": map[string]any{"type": "integer", "minimum": 0, "maximum": 3},
		},
		"required":             []any{"stem", "choices", "correctIndex"},
		"additionalProperties": false,
	},
}

const validQuestionJSON = `{"stem":"Which channel has the widest reach?","choices":["TV","Radio","Print","Outdoor"],"correctIndex":0}`
