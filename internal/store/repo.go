package store

import (
	"context"
	"time"
)

// User is a lightweight player profile.
type User struct {
	ID        string    `sql:"id" json:"id"`
	Name      string    `sql:"name" json:"name"`
	Agency    string    `sql:"agency" json:"agency"`
	Function  string    `sql:"function" json:"function"`
	CreatedAt time.Time `sql:"created_at" json:"created_at"`
}

// Category is a quiz topic.
type Category struct {
	ID    string `sql:"id" json:"id"`
	Slug  string `sql:"slug" json:"slug"`
	Label string `sql:"label" json:"label"`
}

// Level is a difficulty tier as listed in the catalog.
type Level struct {
	ID    string `sql:"id" json:"id"`
	Slug  string `sql:"slug" json:"slug"`
	Label string `sql:"label" json:"label"`
}

// Question is a stored multiple-choice question. Optional text columns are
// empty when absent.
type Question struct {
	ID           string
	CreatedAt    time.Time
	CategorySlug string
	LevelSlug    string
	Question     string
	Choices      []string
	CorrectIndex int
	TopicCluster string
	Rationale    string
	HashHint     string
}

// Attempt is one quiz session. QuestionIDs are the questions served at
// start, in order. SubmittedAt is nil until the attempt is claimed by a
// submission.
type Attempt struct {
	ID              string
	CreatedAt       time.Time
	UserID          string
	CategorySlug    string
	LevelSlug       string
	TotalScore      int
	DurationSeconds float64
	QuestionCount   int
	QuestionIDs     []string
	SubmittedAt     *time.Time
}

// AttemptItem is one answered question within an attempt.
type AttemptItem struct {
	ID               string  `sql:"id"`
	AttemptID        string  `sql:"attempt_id"`
	QuestionID       *string `sql:"question_id"`
	Position         int     `sql:"position"`
	UserAnswerIndex  *int    `sql:"user_answer_index"`
	Correct          bool    `sql:"correct"`
	TimeTakenSeconds float64 `sql:"time_taken_seconds"`
	ScoreDelta       int     `sql:"score_delta"`
}

// LeaderboardRow is one append-only scoring event.
type LeaderboardRow struct {
	ID           string    `sql:"id"`
	UserID       string    `sql:"user_id"`
	Agency       string    `sql:"agency"`
	CategorySlug string    `sql:"category_slug"`
	LevelSlug    string    `sql:"level_slug"`
	Score        int       `sql:"score"`
	OccurredAt   time.Time `sql:"occurred_at"`

	// Name is filled from pk_users by LeaderboardRepo.Recent; empty when
	// the user row is missing.
	Name string `sql:"-"`
}

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit   int       // max results (0 = unlimited)
	Purpose string    // exact purpose match when set
	From    time.Time // created_at >= From
	To      time.Time // created_at <= To
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMEvent is a stored LLM request event.
type LLMEvent struct {
	ID           int       `sql:"id"`
	Timestamp    time.Time `sql:"created_at"`
	Provider     string    `sql:"provider"`
	Model        string    `sql:"model"`
	Purpose      string    `sql:"purpose"`
	InputTokens  int       `sql:"input_tokens"`
	OutputTokens int       `sql:"output_tokens"`
	LatencyMs    int64     `sql:"latency_ms"`
	Success      bool      `sql:"success"`
	ErrorMessage string    `sql:"error_message"`
	RequestBody  string    `sql:"request_body"`
	ResponseBody string    `sql:"response_body"`
}

// PurposeUsage aggregates LLM usage for one purpose.
type PurposeUsage struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// ModelUsage aggregates LLM usage for one model.
type ModelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// EventRepo provides append access to LLM request events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error
}
