package questions

import (
	"errors"
	"fmt"
)

// ErrNotConfigured means no generation backend is available.
var ErrNotConfigured = errors.New("question generation backend not configured")

// ConfigurationError is returned by EnsureQuestions when generation is
// needed but no backend is configured.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string { return "configuration error: " + e.Err.Error() }

func (e *ConfigurationError) Unwrap() error { return e.Err }

// GenerationFormatError means the model output could not be parsed or
// failed validation.
type GenerationFormatError struct {
	Err error
}

func (e *GenerationFormatError) Error() string {
	return fmt.Sprintf("generated question has bad format: %v", e.Err)
}

func (e *GenerationFormatError) Unwrap() error { return e.Err }

// DuplicateError means a generated question was already known for the pair.
type DuplicateError struct {
	Hash string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate question hash %s", e.Hash)
}
