package llm

import (
	"context"
	"encoding/json"
)

// Provider generates structured output from a language model.
type Provider interface {
	// Generate sends req and returns the model output. When req.Schema is
	// set the provider requests native structured output and the returned
	// Content has already been validated against the schema.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the configured model identifier.
	ModelID() string
}

// Request is a single generation call.
type Request struct {
	System   string
	Messages []Message

	// Schema, when non-nil, constrains the response to a JSON document.
	Schema *Schema

	MaxTokens int

	// Temperature in [0, 1]. Zero leaves the provider default.
	Temperature float64
}

// Message is one conversation turn.
type Message struct {
	Role    Role
	Content string
}

// Role is the sender of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema is a named JSON Schema document.
type Schema struct {
	// Name is a kebab-case identifier, e.g. "quiz-question". It doubles as
	// the cache key for the compiled validator.
	Name        string
	Description string
	Definition  map[string]any
}

// Response is the output of a Generate call.
type Response struct {
	// Content is the JSON document produced by the model.
	Content json.RawMessage

	Usage Usage

	// Model is the model that served the call, which may differ from the
	// configured alias.
	Model string

	// StopReason is "end" or "max_tokens".
	StopReason string
}

// Usage reports token counts for one call.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// User builds a single-turn request.
func User(system, prompt string, schema *Schema) Request {
	return Request{
		System:   system,
		Messages: []Message{{Role: RoleUser, Content: prompt}},
		Schema:   schema,
	}
}
