package questions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/publicis/arena/internal/llm"
)

// GenerateInput is the context for one generation call.
type GenerateInput struct {
	Category    string
	Level       string
	AvoidHashes []string
}

// Generator produces a single validated draft.
type Generator interface {
	Generate(ctx context.Context, input GenerateInput) (*Draft, error)
}

// Config controls the LLMGenerator.
type Config struct {
	// Validators run in order; the first failure rejects the draft.
	Validators []Validator

	MaxTokens   int
	Temperature float64

	// MaxAvoidHashes caps the avoid list embedded in the prompt.
	MaxAvoidHashes int
}

// DefaultConfig returns the standard validator chain and limits.
func DefaultConfig() Config {
	return Config{
		Validators:     []Validator{&StructuralValidator{}},
		MaxTokens:      600,
		Temperature:    0.7,
		MaxAvoidHashes: 50,
	}
}

// LLMGenerator implements Generator on an llm.Provider.
type LLMGenerator struct {
	provider llm.Provider
	config   Config
}

// NewLLMGenerator returns a generator backed by provider.
func NewLLMGenerator(provider llm.Provider, cfg Config) *LLMGenerator {
	return &LLMGenerator{provider: provider, config: cfg}
}

func (g *LLMGenerator) Generate(ctx context.Context, input GenerateInput) (*Draft, error) {
	// Callers such as the warm command label their own calls.
	if llm.PurposeFrom(ctx) == "unknown" {
		ctx = llm.WithPurpose(ctx, llm.PurposeQuestionGen)
	}

	req := llm.User(systemPrompt, buildUserMessage(input, g.config.MaxAvoidHashes), DraftSchema)
	req.MaxTokens = g.config.MaxTokens
	req.Temperature = g.config.Temperature

	resp, err := g.provider.Generate(ctx, req)
	if err != nil {
		var (
			inv   *llm.ErrInvalidResponse
			trunc *llm.ErrMaxTokensExceeded
		)
		if errors.As(err, &inv) || errors.As(err, &trunc) {
			return nil, &GenerationFormatError{Err: err}
		}
		return nil, fmt.Errorf("generate question: %w", err)
	}

	var d Draft
	if err := json.Unmarshal(resp.Content, &d); err != nil {
		return nil, &GenerationFormatError{Err: fmt.Errorf("parse response: %w", err)}
	}
	for _, v := range g.config.Validators {
		if verr := v.Validate(&d); verr != nil {
			return nil, &GenerationFormatError{Err: verr}
		}
	}
	return &d, nil
}
