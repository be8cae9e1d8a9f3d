package server

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/publicis/arena/internal/questions"
	"github.com/publicis/arena/internal/ratelimit"
	"github.com/publicis/arena/internal/scoring"
	"github.com/publicis/arena/internal/store"
)

const unknownAgency = "unknown"

type startRequest struct {
	CategorySlug string `json:"categorySlug" binding:"required"`
	LevelSlug    string `json:"levelSlug" binding:"required"`
}

// servedQuestion is a question as shown to the player, without the answer.
type servedQuestion struct {
	ID           string   `json:"id"`
	Question     string   `json:"question"`
	Choices      []string `json:"choices"`
	TopicCluster *string  `json:"topic_cluster"`
}

type startResponse struct {
	AttemptID string           `json:"attemptId"`
	Questions []servedQuestion `json:"questions"`
}

func (s *Server) startQuiz(c *gin.Context) {
	ctx := c.Request.Context()
	userID := sessionUserID(c)

	var req startRequest
	if !s.bindJSON(c, &req) {
		return
	}

	if s.rateLimited(c, ratelimit.QuizStartPolicy, ratelimit.QuizStartKey(c.ClientIP(), userID)) {
		return
	}

	if ok, err := s.pairExists(c, req.CategorySlug, req.LevelSlug); err != nil {
		s.log.Error("check catalog", "error", err)
		respondError(c, http.StatusInternalServerError, msgCatalogFailed)
		return
	} else if !ok {
		respondError(c, http.StatusBadRequest, msgUnknownPair)
		return
	}

	qs, err := s.engine.EnsureQuestions(ctx, req.CategorySlug, req.LevelSlug, s.cfg.QuestionsPerQuiz)
	if err != nil {
		var cerr *questions.ConfigurationError
		if errors.As(err, &cerr) {
			s.log.Error("question generation not configured", "error", err)
			respondError(c, http.StatusInternalServerError, msgNotConfigured)
			return
		}
		s.log.Error("ensure questions", "category", req.CategorySlug, "level", req.LevelSlug, "error", err)
		respondError(c, http.StatusInternalServerError, msgQuestionsFailed)
		return
	}
	if len(qs) == 0 {
		respondError(c, http.StatusServiceUnavailable, msgNoQuestions)
		return
	}

	served := make([]string, 0, len(qs))
	for _, q := range qs {
		served = append(served, q.ID)
	}
	attempt, err := s.store.Attempts().Create(ctx, store.Attempt{
		UserID:        userID,
		CategorySlug:  req.CategorySlug,
		LevelSlug:     req.LevelSlug,
		QuestionCount: len(qs),
		QuestionIDs:   served,
	})
	if err != nil {
		s.log.Error("create attempt", "user_id", userID, "error", err)
		respondError(c, http.StatusInternalServerError, msgAttemptCreateFailed)
		return
	}

	resp := startResponse{AttemptID: attempt.ID, Questions: make([]servedQuestion, 0, len(qs))}
	for _, q := range qs {
		resp.Questions = append(resp.Questions, servedQuestion{
			ID:           q.ID,
			Question:     q.Question,
			Choices:      q.Choices,
			TopicCluster: nullable(q.TopicCluster),
		})
	}
	c.JSON(http.StatusOK, resp)
}

// rateLimited applies p to key and answers 429 when the limit is exceeded.
// A limiter outage does not block the request.
func (s *Server) rateLimited(c *gin.Context, p ratelimit.Policy, key string) bool {
	err := p.Apply(c.Request.Context(), s.limiter, key)
	if err == nil {
		return false
	}
	var exceeded *ratelimit.ExceededError
	if errors.As(err, &exceeded) {
		s.metrics.RateLimited(c.FullPath())
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(exceeded.RetryAfter)))
		respondError(c, http.StatusTooManyRequests, msgRateLimited)
		return true
	}
	s.log.Warn("rate limiter unavailable", "error", err)
	return false
}

func retryAfterSeconds(d time.Duration) int {
	return max(1, int(math.Ceil(d.Seconds())))
}

func (s *Server) pairExists(c *gin.Context, category, level string) (bool, error) {
	ctx := c.Request.Context()
	ok, err := s.store.Catalog().CategoryExists(ctx, category)
	if err != nil || !ok {
		return false, err
	}
	return s.store.Catalog().LevelExists(ctx, level)
}

type submitAnswer struct {
	QuestionID      string   `json:"questionId" binding:"required,uuid"`
	UserAnswerIndex *int     `json:"userAnswerIndex" binding:"omitempty,min=0,max=3"`
	TimeTaken       *float64 `json:"timeTaken" binding:"required,min=0,max=60"`
}

type submitRequest struct {
	AttemptID string         `json:"attemptId" binding:"required,uuid"`
	Answers   []submitAnswer `json:"answers" binding:"required,min=1,unique=QuestionID,dive"`
}

type breakdownItem struct {
	QuestionID   *string `json:"questionId"`
	Correct      bool    `json:"correct"`
	ScoreDelta   int     `json:"scoreDelta"`
	TimeTaken    float64 `json:"timeTaken"`
	CorrectIndex *int    `json:"correctIndex"`
	TopicCluster *string `json:"topic_cluster"`
	Rationale    *string `json:"rationale"`
}

type submitResponse struct {
	TotalScore      int             `json:"totalScore"`
	DurationSeconds float64         `json:"durationSeconds"`
	Breakdown       []breakdownItem `json:"breakdown"`
}

func (s *Server) submitQuiz(c *gin.Context) {
	ctx := c.Request.Context()
	userID := sessionUserID(c)

	var req submitRequest
	if !s.bindJSON(c, &req) {
		return
	}

	attempt, err := s.store.Attempts().GetOwned(ctx, req.AttemptID, userID)
	if err != nil {
		s.log.Error("load attempt", "attempt_id", req.AttemptID, "error", err)
		respondError(c, http.StatusInternalServerError, msgAttemptLoadFailed)
		return
	}
	if attempt == nil {
		respondError(c, http.StatusNotFound, msgAttemptNotFound)
		return
	}
	if len(req.Answers) != attempt.QuestionCount {
		respondError(c, http.StatusBadRequest, msgAnswerCount)
		return
	}
	if !answersServed(req.Answers, attempt.QuestionIDs) {
		respondError(c, http.StatusBadRequest, msgUnservedQuestion)
		return
	}

	claimed, err := s.store.Attempts().Claim(ctx, attempt.ID, userID, time.Now().UTC())
	if err != nil {
		s.log.Error("claim attempt", "attempt_id", attempt.ID, "error", err)
		respondError(c, http.StatusInternalServerError, msgAttemptLoadFailed)
		return
	}
	if !claimed {
		respondError(c, http.StatusConflict, msgAlreadySubmitted)
		return
	}

	ids := make([]string, 0, len(req.Answers))
	for _, a := range req.Answers {
		ids = append(ids, a.QuestionID)
	}
	known, err := s.store.Questions().GetMany(ctx, ids)
	if err != nil {
		s.log.Error("load answered questions", "attempt_id", attempt.ID, "error", err)
		s.unclaim(ctx, attempt.ID)
		respondError(c, http.StatusInternalServerError, msgQuestionsFailed)
		return
	}

	level := scoring.ClampLevel(attempt.LevelSlug)
	items := make([]store.AttemptItem, 0, len(req.Answers))
	resp := submitResponse{Breakdown: make([]breakdownItem, 0, len(req.Answers))}
	for i, a := range req.Answers {
		q, found := known[a.QuestionID]
		correct := found && a.UserAnswerIndex != nil && *a.UserAnswerIndex == q.CorrectIndex
		delta := scoring.ScoreDelta(level, correct)
		resp.TotalScore += delta
		resp.DurationSeconds += *a.TimeTaken

		item := store.AttemptItem{
			AttemptID:        attempt.ID,
			Position:         i,
			UserAnswerIndex:  a.UserAnswerIndex,
			Correct:          correct,
			TimeTakenSeconds: *a.TimeTaken,
			ScoreDelta:       delta,
		}
		line := breakdownItem{
			Correct:    correct,
			ScoreDelta: delta,
			TimeTaken:  *a.TimeTaken,
		}
		if found {
			qid, idx := q.ID, q.CorrectIndex
			item.QuestionID = &qid
			line.QuestionID = &qid
			line.CorrectIndex = &idx
			line.TopicCluster = nullable(q.TopicCluster)
			line.Rationale = nullable(q.Rationale)
		}
		items = append(items, item)
		resp.Breakdown = append(resp.Breakdown, line)
	}

	if err := s.store.Attempts().InsertItems(ctx, items); err != nil {
		s.log.Error("persist attempt items", "attempt_id", attempt.ID, "error", err)
		s.unclaim(ctx, attempt.ID)
		respondError(c, http.StatusInternalServerError, msgItemsFailed)
		return
	}
	if err := s.store.Attempts().UpdateTotals(ctx, attempt.ID, resp.TotalScore, resp.DurationSeconds); err != nil {
		s.log.Error("update attempt totals", "attempt_id", attempt.ID, "error", err)
	}

	agency := unknownAgency
	if u, err := s.store.Users().Get(ctx, userID); err != nil {
		s.log.Warn("load user agency", "user_id", userID, "error", err)
	} else if u != nil && u.Agency != "" {
		agency = u.Agency
	}
	err = s.store.Leaderboard().Append(ctx, store.LeaderboardRow{
		UserID:       userID,
		Agency:       agency,
		CategorySlug: attempt.CategorySlug,
		LevelSlug:    attempt.LevelSlug,
		Score:        resp.TotalScore,
	})
	if err != nil {
		s.log.Error("append leaderboard row", "user_id", userID, "error", err)
	}

	c.JSON(http.StatusOK, resp)
}

// answersServed reports whether every answer refers to a question served
// for the attempt. Attempts stored without served ids accept any id.
func answersServed(answers []submitAnswer, served []string) bool {
	if len(served) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(served))
	for _, id := range served {
		set[id] = struct{}{}
	}
	for _, a := range answers {
		if _, ok := set[a.QuestionID]; !ok {
			return false
		}
	}
	return true
}

func (s *Server) unclaim(ctx context.Context, attemptID string) {
	if err := s.store.Attempts().Unclaim(ctx, attemptID); err != nil {
		s.log.Error("release attempt claim", "attempt_id", attemptID, "error", err)
	}
}
