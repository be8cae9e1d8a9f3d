package questions

import (
	"fmt"
	"strings"
)

// Validator checks a generated draft. Implementations must be safe for
// concurrent use.
type Validator interface {
	Name() string
	Validate(d *Draft) *ValidationError
}

// ValidationError describes why a draft was rejected.
type ValidationError struct {
	Validator string
	Message   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validator %q: %s", e.Validator, e.Message)
}

const (
	maxStemLen      = 500
	maxChoiceLen    = 200
	maxRationaleLen = 1000
	maxTopicLen     = 120
)

// StructuralValidator checks required fields, length limits and the
// answer index.
type StructuralValidator struct{}

func (v *StructuralValidator) Name() string { return "structural" }

func (v *StructuralValidator) Validate(d *Draft) *ValidationError {
	fail := func(format string, args ...any) *ValidationError {
		return &ValidationError{Validator: v.Name(), Message: fmt.Sprintf(format, args...)}
	}

	if strings.TrimSpace(d.Question) == "" {
		return fail("question is empty")
	}
	if len(d.Question) > maxStemLen {
		return fail("question exceeds %d characters", maxStemLen)
	}
	if d.CorrectIndex < 0 || d.CorrectIndex >= len(d.Choices) {
		return fail("correctIndex %d out of range", d.CorrectIndex)
	}

	seen := make(map[string]bool, len(d.Choices))
	for i, c := range d.Choices {
		c = strings.TrimSpace(c)
		if c == "" {
			return fail("choice %d is empty", i)
		}
		if len(c) > maxChoiceLen {
			return fail("choice %d exceeds %d characters", i, maxChoiceLen)
		}
		key := strings.ToLower(c)
		if seen[key] {
			return fail("choice %d repeats an earlier option", i)
		}
		seen[key] = true
	}

	if len(d.Rationale) > maxRationaleLen {
		return fail("rationale exceeds %d characters", maxRationaleLen)
	}
	if len(d.TopicCluster) > maxTopicLen {
		return fail("topic_cluster exceeds %d characters", maxTopicLen)
	}
	return nil
}
