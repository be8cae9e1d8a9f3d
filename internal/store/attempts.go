package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

var (
	attemptColumns = []string{
		"id", "created_at", "user_id", "category_slug", "level_slug",
		"total_score", "duration_seconds", "question_count",
		"question_ids", "submitted_at",
	}
	itemColumns = []string{
		"id", "attempt_id", "question_id", "position", "user_answer_index",
		"correct", "time_taken_seconds", "score_delta",
	}
)

// attemptRow is the scan shape of pk_quiz_attempts. QuestionIDs is scanned
// as text and decoded separately.
type attemptRow struct {
	ID              string     `sql:"id"`
	CreatedAt       time.Time  `sql:"created_at"`
	UserID          string     `sql:"user_id"`
	CategorySlug    string     `sql:"category_slug"`
	LevelSlug       string     `sql:"level_slug"`
	TotalScore      int        `sql:"total_score"`
	DurationSeconds float64    `sql:"duration_seconds"`
	QuestionCount   int        `sql:"question_count"`
	QuestionIDs     string     `sql:"question_ids"`
	SubmittedAt     *time.Time `sql:"submitted_at"`
}

func (ar attemptRow) attempt() (Attempt, error) {
	a := Attempt{
		ID:              ar.ID,
		CreatedAt:       ar.CreatedAt,
		UserID:          ar.UserID,
		CategorySlug:    ar.CategorySlug,
		LevelSlug:       ar.LevelSlug,
		TotalScore:      ar.TotalScore,
		DurationSeconds: ar.DurationSeconds,
		QuestionCount:   ar.QuestionCount,
		SubmittedAt:     ar.SubmittedAt,
	}
	if ar.QuestionIDs != "" {
		if err := json.Unmarshal([]byte(ar.QuestionIDs), &a.QuestionIDs); err != nil {
			return Attempt{}, fmt.Errorf("decode question ids of attempt %s: %w", ar.ID, err)
		}
	}
	return a, nil
}

// AttemptRepo reads and writes pk_quiz_attempts and pk_attempt_items.
type AttemptRepo struct {
	gw *Gateway
}

func (r *AttemptRepo) selectAttempts(ctx context.Context, opts ...SelectOption) ([]Attempt, error) {
	var rows []attemptRow
	if err := r.gw.Select(ctx, TableAttempts, attemptColumns, &rows, opts...); err != nil {
		return nil, err
	}
	out := make([]Attempt, 0, len(rows))
	for _, row := range rows {
		a, err := row.attempt()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Create inserts a new attempt and returns it with id and creation time set.
func (r *AttemptRepo) Create(ctx context.Context, a Attempt) (*Attempt, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	var served any
	if len(a.QuestionIDs) > 0 {
		b, err := json.Marshal(a.QuestionIDs)
		if err != nil {
			return nil, fmt.Errorf("encode question ids: %w", err)
		}
		served = string(b)
	}
	err := r.gw.Insert(ctx, TableAttempts, Row{
		"id":               a.ID,
		"created_at":       a.CreatedAt,
		"user_id":          a.UserID,
		"category_slug":    nullIfEmpty(a.CategorySlug),
		"level_slug":       nullIfEmpty(a.LevelSlug),
		"total_score":      a.TotalScore,
		"duration_seconds": a.DurationSeconds,
		"question_count":   a.QuestionCount,
		"question_ids":     served,
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetOwned returns the attempt with id if it belongs to userID, else nil.
func (r *AttemptRepo) GetOwned(ctx context.Context, id, userID string) (*Attempt, error) {
	rows, err := r.selectAttempts(ctx, Where(entsql.EQ("id", id)), Where(entsql.EQ("user_id", userID)), Limit(1))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// Claim marks the attempt as submitted at at, provided it belongs to userID
// and has not been submitted yet. It reports whether this call won the
// claim; only the winner may write items and leaderboard rows.
func (r *AttemptRepo) Claim(ctx context.Context, id, userID string, at time.Time) (bool, error) {
	n, err := r.gw.Update(ctx, TableAttempts, Row{"submitted_at": at}, entsql.And(
		entsql.EQ("id", id),
		entsql.EQ("user_id", userID),
		entsql.IsNull("submitted_at"),
	))
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Unclaim clears a claim whose submission could not be persisted, so the
// player can submit again.
func (r *AttemptRepo) Unclaim(ctx context.Context, id string) error {
	_, err := r.gw.Update(ctx, TableAttempts, Row{"submitted_at": nil}, entsql.EQ("id", id))
	return err
}

// UpdateTotals writes the final score and duration of an attempt.
func (r *AttemptRepo) UpdateTotals(ctx context.Context, id string, totalScore int, durationSeconds float64) error {
	_, err := r.gw.Update(ctx, TableAttempts, Row{
		"total_score":      totalScore,
		"duration_seconds": durationSeconds,
	}, entsql.EQ("id", id))
	return err
}

// RecentByUser returns up to n attempts of userID, newest first.
func (r *AttemptRepo) RecentByUser(ctx context.Context, userID string, n int) ([]Attempt, error) {
	return r.selectAttempts(ctx,
		Where(entsql.EQ("user_id", userID)),
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id")),
		Limit(n))
}

// InsertItems stores items in one statement, assigning missing ids.
func (r *AttemptRepo) InsertItems(ctx context.Context, items []AttemptItem) error {
	rows := make([]Row, 0, len(items))
	for _, it := range items {
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		var qid, answer any
		if it.QuestionID != nil {
			qid = *it.QuestionID
		}
		if it.UserAnswerIndex != nil {
			answer = *it.UserAnswerIndex
		}
		rows = append(rows, Row{
			"id":                 it.ID,
			"attempt_id":         it.AttemptID,
			"question_id":        qid,
			"position":           it.Position,
			"user_answer_index":  answer,
			"correct":            it.Correct,
			"time_taken_seconds": it.TimeTakenSeconds,
			"score_delta":        it.ScoreDelta,
		})
	}
	return r.gw.InsertMany(ctx, TableAttemptItems, rows)
}

// ItemsForAttempts returns the items of the given attempts keyed by attempt
// id, each list in answer order.
func (r *AttemptRepo) ItemsForAttempts(ctx context.Context, attemptIDs []string) (map[string][]AttemptItem, error) {
	out := make(map[string][]AttemptItem, len(attemptIDs))
	if len(attemptIDs) == 0 {
		return out, nil
	}
	var rows []AttemptItem
	err := r.gw.Select(ctx, TableAttemptItems, itemColumns, &rows,
		Where(entsql.In("attempt_id", anySlice(attemptIDs)...)),
		OrderBy(entsql.Asc("attempt_id"), entsql.Asc("position")))
	if err != nil {
		return nil, err
	}
	for _, it := range rows {
		out[it.AttemptID] = append(out[it.AttemptID], it)
	}
	return out, nil
}
