package llm

import "context"

type purposeKey struct{}

// Purposes recorded with LLM events.
const (
	PurposeQuestionGen = "question-gen"
	PurposeWarm        = "warm"
)

// WithPurpose labels calls made with ctx for event logging.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey{}, purpose)
}

// PurposeFrom returns the label set by WithPurpose, or "unknown".
func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey{}).(string); ok {
		return v
	}
	return "unknown"
}
