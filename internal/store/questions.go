package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

var questionColumns = []string{
	"id", "created_at", "category_slug", "level_slug", "question", "choices",
	"correct_index", "topic_cluster", "rationale", "hash_hint",
}

// questionRow is the scan shape of pk_questions. Choices is scanned as
// text and decoded separately.
type questionRow struct {
	ID           string    `sql:"id"`
	CreatedAt    time.Time `sql:"created_at"`
	CategorySlug string    `sql:"category_slug"`
	LevelSlug    string    `sql:"level_slug"`
	Question     string    `sql:"question"`
	Choices      string    `sql:"choices"`
	CorrectIndex int       `sql:"correct_index"`
	TopicCluster string    `sql:"topic_cluster"`
	Rationale    string    `sql:"rationale"`
	HashHint     string    `sql:"hash_hint"`
}

func (qr questionRow) question() (Question, error) {
	q := Question{
		ID:           qr.ID,
		CreatedAt:    qr.CreatedAt,
		CategorySlug: qr.CategorySlug,
		LevelSlug:    qr.LevelSlug,
		Question:     qr.Question,
		CorrectIndex: qr.CorrectIndex,
		TopicCluster: qr.TopicCluster,
		Rationale:    qr.Rationale,
		HashHint:     qr.HashHint,
	}
	if qr.Choices != "" {
		if err := json.Unmarshal([]byte(qr.Choices), &q.Choices); err != nil {
			return Question{}, fmt.Errorf("decode choices of question %s: %w", qr.ID, err)
		}
	}
	return q, nil
}

// QuestionRepo reads and writes pk_questions.
type QuestionRepo struct {
	gw *Gateway
}

func (r *QuestionRepo) selectQuestions(ctx context.Context, opts ...SelectOption) ([]Question, error) {
	var rows []questionRow
	if err := r.gw.Select(ctx, TableQuestions, questionColumns, &rows, opts...); err != nil {
		return nil, err
	}
	out := make([]Question, 0, len(rows))
	for _, row := range rows {
		q, err := row.question()
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

func pairFilter(category, level string) SelectOption {
	return Where(entsql.And(entsql.EQ("category_slug", category), entsql.EQ("level_slug", level)))
}

// ListByPair returns up to limit questions for the pair in store order.
func (r *QuestionRepo) ListByPair(ctx context.Context, category, level string, limit int) ([]Question, error) {
	return r.selectQuestions(ctx, pairFilter(category, level), Limit(limit))
}

// RecentByPair returns up to limit questions for the pair, newest first.
func (r *QuestionRepo) RecentByPair(ctx context.Context, category, level string, limit int) ([]Question, error) {
	return r.selectQuestions(ctx, pairFilter(category, level),
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id")), Limit(limit))
}

// Count returns the number of questions stored for the pair.
func (r *QuestionRepo) Count(ctx context.Context, category, level string) (int, error) {
	return r.gw.Count(ctx, TableQuestions, pairFilter(category, level))
}

// GetMany returns the questions whose id is in ids, keyed by id.
func (r *QuestionRepo) GetMany(ctx context.Context, ids []string) (map[string]Question, error) {
	out := make(map[string]Question, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	qs, err := r.selectQuestions(ctx, Where(entsql.In("id", anySlice(ids)...)))
	if err != nil {
		return nil, err
	}
	for _, q := range qs {
		out[q.ID] = q
	}
	return out, nil
}

// Insert stores q and returns the stored row with its id and creation time
// assigned. A duplicate (category, level, hash_hint) fails with an error
// for which IsUniqueViolation is true.
func (r *QuestionRepo) Insert(ctx context.Context, q Question) (*Question, error) {
	choices, err := json.Marshal(q.Choices)
	if err != nil {
		return nil, fmt.Errorf("encode choices: %w", err)
	}
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	err = r.gw.Insert(ctx, TableQuestions, Row{
		"id":            q.ID,
		"created_at":    q.CreatedAt,
		"category_slug": nullIfEmpty(q.CategorySlug),
		"level_slug":    nullIfEmpty(q.LevelSlug),
		"question":      q.Question,
		"choices":       string(choices),
		"correct_index": q.CorrectIndex,
		"topic_cluster": nullIfEmpty(q.TopicCluster),
		"rationale":     nullIfEmpty(q.Rationale),
		"hash_hint":     nullIfEmpty(q.HashHint),
	})
	if err != nil {
		return nil, err
	}
	return &q, nil
}
