package questions

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/publicis/arena/internal/llm"
	"github.com/publicis/arena/internal/store"
)

// Draft is a generated question before it is stored.
type Draft struct {
	Question     string    `json:"question"`
	Choices      [4]string `json:"choices"`
	CorrectIndex int       `json:"correctIndex"`
	TopicCluster string    `json:"topic_cluster"`
	HashHint     string    `json:"hash_hint"`
	Rationale    string    `json:"rationale"`
}

// HashQuestion returns the first 16 hex characters of the SHA-256 of stem.
func HashQuestion(stem string) string {
	sum := sha256.Sum256([]byte(stem))
	return hex.EncodeToString(sum[:])[:16]
}

func (d *Draft) toQuestion(category, level, hash string) store.Question {
	return store.Question{
		CategorySlug: category,
		LevelSlug:    level,
		Question:     d.Question,
		Choices:      d.Choices[:],
		CorrectIndex: d.CorrectIndex,
		TopicCluster: d.TopicCluster,
		Rationale:    d.Rationale,
		HashHint:     hash,
	}
}

// DraftSchema is the structured output requested from the model.
var DraftSchema = &llm.Schema{
	Name:        "quiz-question",
	Description: "A single multiple-choice assessment question",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question": map[string]any{
				"type":        "string",
				"description": "The question stem",
			},
			"choices": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"minItems":    4,
				"maxItems":    4,
				"description": "Four plausible options, exactly one correct",
			},
			"correctIndex": map[string]any{
				"type":        "integer",
				"minimum":     0,
				"maximum":     3,
				"description": "Zero-based index of the correct option",
			},
			"topic_cluster": map[string]any{
				"type":        "string",
				"description": "Short topic label, e.g. Bidding Strategy or Attribution",
			},
			"hash_hint": map[string]any{
				"type":        "string",
				"description": "A short string unique to this question",
			},
			"rationale": map[string]any{
				"type":        "string",
				"description": "One sentence explaining why the correct option is right",
			},
		},
		"required":             []any{"question", "choices", "correctIndex", "topic_cluster", "hash_hint", "rationale"},
		"additionalProperties": false,
	},
}
