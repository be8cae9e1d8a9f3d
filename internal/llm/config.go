package llm

import (
	"fmt"
	"os"
	"time"
)

// Provider names accepted by Config.Provider.
const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
	ProviderMock       = "mock"
)

// Config selects and configures the generation backend.
type Config struct {
	Provider string

	OpenAI     OpenAIConfig
	Anthropic  AnthropicConfig
	Gemini     GeminiConfig
	OpenRouter OpenRouterConfig
	Retry      RetryConfig

	// Timeout bounds a single Generate call including retries.
	Timeout time.Duration
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type AnthropicConfig struct {
	APIKey string
	Model  string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type OpenRouterConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// RetryConfig configures exponential backoff for transient failures.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultConfig returns the defaults: OpenAI with gpt-4o-mini.
func DefaultConfig() Config {
	return Config{
		Provider:   ProviderOpenAI,
		OpenAI:     OpenAIConfig{Model: "gpt-4o-mini"},
		Anthropic:  AnthropicConfig{Model: "claude-haiku"},
		Gemini:     GeminiConfig{Model: "gemini-flash"},
		OpenRouter: OpenRouterConfig{Model: "openai/gpt-4o-mini"},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: time.Second,
			MaxWait:     10 * time.Second,
			Multiplier:  2,
		},
		Timeout: 30 * time.Second,
	}
}

// ConfigFromEnv reads ARENA_LLM_PROVIDER and the ARENA_<PROVIDER>_*
// variables over the defaults.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	set := func(dst *string, name string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	set(&cfg.Provider, "ARENA_LLM_PROVIDER")
	set(&cfg.OpenAI.APIKey, "ARENA_OPENAI_API_KEY")
	set(&cfg.OpenAI.Model, "ARENA_OPENAI_MODEL")
	set(&cfg.OpenAI.BaseURL, "ARENA_OPENAI_BASE_URL")
	set(&cfg.Anthropic.APIKey, "ARENA_ANTHROPIC_API_KEY")
	set(&cfg.Anthropic.Model, "ARENA_ANTHROPIC_MODEL")
	set(&cfg.Gemini.APIKey, "ARENA_GEMINI_API_KEY")
	set(&cfg.Gemini.Model, "ARENA_GEMINI_MODEL")
	set(&cfg.OpenRouter.APIKey, "ARENA_OPENROUTER_API_KEY")
	set(&cfg.OpenRouter.Model, "ARENA_OPENROUTER_MODEL")

	return cfg
}

// DiscoverConfig looks for the vendors' standard key variables in the
// order OpenAI, Anthropic, Gemini, OpenRouter and returns a Config for the
// first one found.
func DiscoverConfig() (Config, bool) {
	cfg := DefaultConfig()
	switch {
	case os.Getenv("OPENAI_API_KEY") != "":
		cfg.Provider = ProviderOpenAI
		cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	case os.Getenv("ANTHROPIC_API_KEY") != "":
		cfg.Provider = ProviderAnthropic
		cfg.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	case os.Getenv("GEMINI_API_KEY") != "":
		cfg.Provider = ProviderGemini
		cfg.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	case os.Getenv("OPENROUTER_API_KEY") != "":
		cfg.Provider = ProviderOpenRouter
		cfg.OpenRouter.APIKey = os.Getenv("OPENROUTER_API_KEY")
	default:
		return Config{}, false
	}
	return cfg, true
}

// ResolveConfig prefers explicit ARENA_* settings and falls back to key
// discovery. It reports false when no usable backend is configured.
func ResolveConfig() (Config, bool) {
	cfg := ConfigFromEnv()
	if cfg.Validate() == nil {
		return cfg, true
	}
	if os.Getenv("ARENA_LLM_PROVIDER") != "" {
		return cfg, false
	}
	return DiscoverConfig()
}

// Validate checks that the selected provider has an API key.
func (c Config) Validate() error {
	var key, env string
	switch c.Provider {
	case ProviderOpenAI:
		key, env = c.OpenAI.APIKey, "ARENA_OPENAI_API_KEY"
	case ProviderAnthropic:
		key, env = c.Anthropic.APIKey, "ARENA_ANTHROPIC_API_KEY"
	case ProviderGemini:
		key, env = c.Gemini.APIKey, "ARENA_GEMINI_API_KEY"
	case ProviderOpenRouter:
		key, env = c.OpenRouter.APIKey, "ARENA_OPENROUTER_API_KEY"
	case ProviderMock:
		return nil
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	if key == "" {
		return fmt.Errorf("%s is required for the %s provider", env, c.Provider)
	}
	return nil
}
