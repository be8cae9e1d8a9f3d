package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/publicis/arena/internal/store"
)

const historyLimit = 20

type attemptView struct {
	ID              string    `json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	CategorySlug    *string   `json:"category_slug"`
	LevelSlug       *string   `json:"level_slug"`
	TotalScore      int       `json:"total_score"`
	DurationSeconds float64   `json:"duration_seconds"`
}

func newAttemptView(a store.Attempt) attemptView {
	return attemptView{
		ID:              a.ID,
		CreatedAt:       a.CreatedAt,
		CategorySlug:    nullable(a.CategorySlug),
		LevelSlug:       nullable(a.LevelSlug),
		TotalScore:      a.TotalScore,
		DurationSeconds: a.DurationSeconds,
	}
}

type historyItem struct {
	Correct         bool     `json:"correct"`
	ScoreDelta      int      `json:"scoreDelta"`
	TimeTaken       float64  `json:"timeTaken"`
	CorrectIndex    *int     `json:"correctIndex"`
	TopicCluster    *string  `json:"topic_cluster"`
	Rationale       *string  `json:"rationale"`
	Choices         []string `json:"choices"`
	UserAnswerIndex *int     `json:"userAnswerIndex"`
}

type historyAttempt struct {
	attemptView
	Items []historyItem `json:"items"`
}

func (s *Server) history(c *gin.Context) {
	ctx := c.Request.Context()
	userID := sessionUserID(c)

	attempts, err := s.store.Attempts().RecentByUser(ctx, userID, historyLimit)
	if err != nil {
		s.log.Error("load history", "user_id", userID, "error", err)
		respondError(c, http.StatusInternalServerError, msgHistoryFailed)
		return
	}

	items, known := s.historyDetails(ctx, attempts)
	out := make([]historyAttempt, 0, len(attempts))
	for _, a := range attempts {
		ha := historyAttempt{attemptView: newAttemptView(a), Items: []historyItem{}}
		for _, it := range items[a.ID] {
			hi := historyItem{
				Correct:         it.Correct,
				ScoreDelta:      it.ScoreDelta,
				TimeTaken:       it.TimeTakenSeconds,
				Choices:         []string{},
				UserAnswerIndex: it.UserAnswerIndex,
			}
			if it.QuestionID != nil {
				if q, ok := known[*it.QuestionID]; ok {
					idx := q.CorrectIndex
					hi.CorrectIndex = &idx
					hi.TopicCluster = nullable(q.TopicCluster)
					hi.Rationale = nullable(q.Rationale)
					if q.Choices != nil {
						hi.Choices = q.Choices
					}
				}
			}
			ha.Items = append(ha.Items, hi)
		}
		out = append(out, ha)
	}
	c.JSON(http.StatusOK, gin.H{"attempts": out})
}

// historyDetails loads items and their questions. Failures degrade to
// attempts without detail.
func (s *Server) historyDetails(ctx context.Context, attempts []store.Attempt) (map[string][]store.AttemptItem, map[string]store.Question) {
	ids := make([]string, 0, len(attempts))
	for _, a := range attempts {
		ids = append(ids, a.ID)
	}
	items, err := s.store.Attempts().ItemsForAttempts(ctx, ids)
	if err != nil {
		s.log.Warn("load attempt items", "error", err)
		return nil, nil
	}

	var qids []string
	for _, list := range items {
		for _, it := range list {
			if it.QuestionID != nil {
				qids = append(qids, *it.QuestionID)
			}
		}
	}
	known, err := s.store.Questions().GetMany(ctx, qids)
	if err != nil {
		s.log.Warn("load history questions", "error", err)
		return items, nil
	}
	return items, known
}
