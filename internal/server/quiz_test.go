package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/publicis/arena/internal/llm"
	"github.com/publicis/arena/internal/store"
)

type startResult struct {
	AttemptID string `json:"attemptId"`
	Questions []struct {
		ID           string   `json:"id"`
		Question     string   `json:"question"`
		Choices      []string `json:"choices"`
		TopicCluster *string  `json:"topic_cluster"`
		CorrectIndex *int     `json:"correctIndex"`
	} `json:"questions"`
}

func (h *harness) start(cookie *http.Cookie, category, level string) startResult {
	h.t.Helper()
	resp := h.do("POST", "/api/quiz/start", map[string]string{"categorySlug": category, "levelSlug": level}, cookie)
	require.Equal(h.t, http.StatusOK, resp.Code, resp.Body.String())
	var out startResult
	resp.decode(h.t, &out)
	return out
}

func TestStart_RequiresSession(t *testing.T) {
	h := newHarness(t)
	resp := h.do("POST", "/api/quiz/start", map[string]string{"categorySlug": "seo", "levelSlug": "beginner"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, msgUnauthorized, resp.errorMessage(t))
}

func TestStart_GeneratesAndCreatesAttempt(t *testing.T) {
	h := newHarness(t)
	cookie, userID := h.signUp("Ada", "Leo")

	out := h.start(cookie, "media-planning", "beginner")
	require.NotEmpty(t, out.Questions)
	assert.LessOrEqual(t, len(out.Questions), 10)

	ids := make([]string, 0, len(out.Questions))
	for _, q := range out.Questions {
		assert.Nil(t, q.CorrectIndex, "answer must be withheld")
		assert.Len(t, q.Choices, 4)
		ids = append(ids, q.ID)
	}
	stored, err := h.store.Questions().GetMany(context.Background(), ids)
	require.NoError(t, err)
	require.Len(t, stored, len(ids))
	for _, q := range stored {
		assert.Equal(t, "media-planning", q.CategorySlug)
		assert.Equal(t, "beginner", q.LevelSlug)
	}

	attempt, err := h.store.Attempts().GetOwned(context.Background(), out.AttemptID, userID)
	require.NoError(t, err)
	require.NotNil(t, attempt)
	assert.Equal(t, 0, attempt.TotalScore)
	assert.Equal(t, len(out.Questions), attempt.QuestionCount)
}

func TestStart_SessionWithoutProfile(t *testing.T) {
	h := newHarness(t)
	out := h.start(h.cookieFor(uuid.NewString()), "seo", "expert")
	assert.NotEmpty(t, out.AttemptID)
}

func TestStart_UnknownPair(t *testing.T) {
	h := newHarness(t)
	cookie, _ := h.signUp("Ada", "Leo")
	resp := h.do("POST", "/api/quiz/start", map[string]string{"categorySlug": "astrology", "levelSlug": "beginner"}, cookie)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, msgUnknownPair, resp.errorMessage(t))
}

func TestStart_BadBody(t *testing.T) {
	h := newHarness(t)
	cookie, _ := h.signUp("Ada", "Leo")
	resp := h.do("POST", "/api/quiz/start", map[string]string{"categorySlug": "seo"}, cookie)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	msg := resp.errorMessage(t)
	assert.Equal(t, msgInvalidBody, msg)
	assert.NotContains(t, msg, "LevelSlug", "validator details stay in the logs")
}

func TestStart_NotConfigured(t *testing.T) {
	h := newHarness(t, withoutGenerator())
	cookie, _ := h.signUp("Ada", "Leo")

	resp := h.do("POST", "/api/quiz/start", map[string]string{"categorySlug": "seo", "levelSlug": "beginner"}, cookie)
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Equal(t, msgNotConfigured, resp.errorMessage(t))
}

func TestStart_NoQuestionsAvailable(t *testing.T) {
	h := newHarness(t)
	h.mock.Func = func(context.Context, llm.Request) (*llm.Response, error) {
		return nil, &llm.ErrProviderUnavailable{Err: errors.New("down")}
	}
	cookie, _ := h.signUp("Ada", "Leo")

	resp := h.do("POST", "/api/quiz/start", map[string]string{"categorySlug": "seo", "levelSlug": "beginner"}, cookie)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.Equal(t, msgNoQuestions, resp.errorMessage(t))
}

func TestStart_RateLimited(t *testing.T) {
	h := newHarness(t)
	cookie, _ := h.signUp("Ada", "Leo")
	for range 3 {
		h.start(cookie, "seo", "beginner")
	}

	resp := h.do("POST", "/api/quiz/start", map[string]string{"categorySlug": "seo", "levelSlug": "beginner"}, cookie)
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Equal(t, msgRateLimited, resp.errorMessage(t))
	assert.NotEmpty(t, resp.Header().Get("Retry-After"))

	// Another user is not affected.
	other, _ := h.signUp("Bo", "Saatchi")
	h.start(other, "seo", "beginner")
}

func TestStart_ForwardedForIgnoredByDefault(t *testing.T) {
	h := newHarness(t)
	cookie, _ := h.signUp("Ada", "Leo")

	startFrom := func(forwarded string) response {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(map[string]string{"categorySlug": "seo", "levelSlug": "beginner"}))
		req := httptest.NewRequest("POST", "/api/quiz/start", &buf)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", forwarded)
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		h.server.Handler().ServeHTTP(rec, req)
		return response{rec}
	}

	for i := range 3 {
		resp := startFrom(fmt.Sprintf("203.0.113.%d", i+1))
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	}
	resp := startFrom("203.0.113.99")
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
}

// answersFor answers the served questions, getting the first `correct`
// of them right.
func (h *harness) answersFor(out startResult, correct int) []map[string]any {
	h.t.Helper()
	ids := make([]string, 0, len(out.Questions))
	for _, q := range out.Questions {
		ids = append(ids, q.ID)
	}
	stored, err := h.store.Questions().GetMany(context.Background(), ids)
	require.NoError(h.t, err)

	answers := make([]map[string]any, 0, len(ids))
	for i, id := range ids {
		idx := stored[id].CorrectIndex
		if i >= correct {
			idx = (idx + 1) % 4
		}
		answers = append(answers, map[string]any{"questionId": id, "userAnswerIndex": idx, "timeTaken": 4.5})
	}
	return answers
}

func TestSubmit_ScoresAndRecords(t *testing.T) {
	h := newHarness(t)
	cookie, userID := h.signUp("Ada", "Leo")
	out := h.start(cookie, "strategy", "intermediate")
	require.Len(t, out.Questions, 10)

	resp := h.do("POST", "/api/quiz/submit", map[string]any{
		"attemptId": out.AttemptID,
		"answers":   h.answersFor(out, 6),
	}, cookie)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var result submitResponse
	resp.decode(t, &result)
	assert.Equal(t, 80, result.TotalScore)
	assert.InDelta(t, 45.0, result.DurationSeconds, 1e-9)
	require.Len(t, result.Breakdown, 10)
	assert.True(t, result.Breakdown[0].Correct)
	assert.Equal(t, 20, result.Breakdown[0].ScoreDelta)
	assert.False(t, result.Breakdown[9].Correct)
	assert.Equal(t, -10, result.Breakdown[9].ScoreDelta)
	require.NotNil(t, result.Breakdown[0].TopicCluster)
	assert.Equal(t, "Attribution", *result.Breakdown[0].TopicCluster)

	ctx := context.Background()
	attempt, err := h.store.Attempts().GetOwned(ctx, out.AttemptID, userID)
	require.NoError(t, err)
	assert.Equal(t, 80, attempt.TotalScore)

	rows, err := h.store.Leaderboard().Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Leo", rows[0].Agency)
	assert.Equal(t, 80, rows[0].Score)
	assert.Equal(t, "strategy", rows[0].CategorySlug)
}

func TestSubmit_NullAnswer(t *testing.T) {
	h := newHarness(t)
	cookie, _ := h.signUp("Ada", "Leo")
	out := h.start(cookie, "seo", "expert")

	answers := h.answersFor(out, len(out.Questions))
	answers[1]["userAnswerIndex"] = nil

	resp := h.do("POST", "/api/quiz/submit", map[string]any{"attemptId": out.AttemptID, "answers": answers}, cookie)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var result submitResponse
	resp.decode(t, &result)
	require.NotNil(t, result.Breakdown[1].QuestionID)
	require.NotNil(t, result.Breakdown[1].CorrectIndex)
	assert.False(t, result.Breakdown[1].Correct)
	assert.Equal(t, -15, result.Breakdown[1].ScoreDelta)
	assert.Equal(t, (len(out.Questions)-1)*30-15, result.TotalScore)
}

func TestSubmit_UnservedQuestion(t *testing.T) {
	h := newHarness(t)
	cookie, userID := h.signUp("Ada", "Leo")
	out := h.start(cookie, "seo", "expert")

	answers := h.answersFor(out, len(out.Questions))
	answers[0]["questionId"] = uuid.NewString()

	resp := h.do("POST", "/api/quiz/submit", map[string]any{"attemptId": out.AttemptID, "answers": answers}, cookie)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, msgUnservedQuestion, resp.errorMessage(t))

	// The rejected submission does not consume the attempt.
	attempt, err := h.store.Attempts().GetOwned(context.Background(), out.AttemptID, userID)
	require.NoError(t, err)
	assert.Nil(t, attempt.SubmittedAt)

	resp = h.do("POST", "/api/quiz/submit", map[string]any{"attemptId": out.AttemptID, "answers": h.answersFor(out, 1)}, cookie)
	assert.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
}

func TestSubmit_RepeatedQuestionRejected(t *testing.T) {
	h := newHarness(t)
	cookie, _ := h.signUp("Ada", "Leo")
	out := h.start(cookie, "seo", "expert")

	answers := h.answersFor(out, len(out.Questions))
	for _, a := range answers {
		a["questionId"] = answers[0]["questionId"]
	}

	resp := h.do("POST", "/api/quiz/submit", map[string]any{"attemptId": out.AttemptID, "answers": answers}, cookie)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, msgInvalidBody, resp.errorMessage(t))

	rows, err := h.store.Leaderboard().Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSubmit_OnlyOnce(t *testing.T) {
	h := newHarness(t)
	cookie, _ := h.signUp("Ada", "Leo")
	out := h.start(cookie, "strategy", "expert")
	require.Len(t, out.Questions, 10)
	body := map[string]any{"attemptId": out.AttemptID, "answers": h.answersFor(out, 10)}

	codes := make([]int, 0, 3)
	for range 3 {
		codes = append(codes, h.do("POST", "/api/quiz/submit", body, cookie).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusConflict, http.StatusConflict}, codes)

	resp := h.do("POST", "/api/quiz/submit", body, cookie)
	assert.Equal(t, msgAlreadySubmitted, resp.errorMessage(t))

	ctx := context.Background()
	items, err := h.store.Attempts().ItemsForAttempts(ctx, []string{out.AttemptID})
	require.NoError(t, err)
	assert.Len(t, items[out.AttemptID], 10)

	rows, err := h.store.Leaderboard().Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 300, rows[0].Score)
}

func TestSubmit_ConcurrentResubmitsScoreOnce(t *testing.T) {
	h := newHarness(t)
	cookie, _ := h.signUp("Ada", "Leo")
	out := h.start(cookie, "seo", "beginner")
	body := map[string]any{"attemptId": out.AttemptID, "answers": h.answersFor(out, 2)}

	const n = 8
	var wg sync.WaitGroup
	codes := make([]int, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes[i] = h.do("POST", "/api/quiz/submit", body, cookie).Code
		}()
	}
	wg.Wait()

	var ok int
	for _, c := range codes {
		if c == http.StatusOK {
			ok++
		} else {
			assert.Equal(t, http.StatusConflict, c)
		}
	}
	assert.Equal(t, 1, ok)

	rows, err := h.store.Leaderboard().Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSubmit_AnonymousAgencyFallback(t *testing.T) {
	h := newHarness(t)
	userID := uuid.NewString()
	cookie := h.cookieFor(userID)
	out := h.start(cookie, "seo", "beginner")

	resp := h.do("POST", "/api/quiz/submit", map[string]any{"attemptId": out.AttemptID, "answers": h.answersFor(out, 0)}, cookie)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	rows, err := h.store.Leaderboard().Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "unknown", rows[0].Agency)
}

func TestSubmit_WrongAnswerCount(t *testing.T) {
	h := newHarness(t)
	cookie, _ := h.signUp("Ada", "Leo")
	out := h.start(cookie, "seo", "beginner")

	resp := h.do("POST", "/api/quiz/submit", map[string]any{
		"attemptId": out.AttemptID,
		"answers":   h.answersFor(out, 3)[:5],
	}, cookie)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, msgAnswerCount, resp.errorMessage(t))
}

func TestSubmit_NotOwned(t *testing.T) {
	h := newHarness(t)
	cookie, _ := h.signUp("Ada", "Leo")
	out := h.start(cookie, "seo", "beginner")
	intruder, _ := h.signUp("Eve", "Leo")

	resp := h.do("POST", "/api/quiz/submit", map[string]any{"attemptId": out.AttemptID, "answers": h.answersFor(out, 3)}, intruder)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, msgAttemptNotFound, resp.errorMessage(t))

	resp = h.do("POST", "/api/quiz/submit", map[string]any{"attemptId": uuid.NewString(), "answers": h.answersFor(out, 3)}, cookie)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestSubmit_Validation(t *testing.T) {
	h := newHarness(t)
	cookie, _ := h.signUp("Ada", "Leo")
	qid := uuid.NewString()

	cases := []map[string]any{
		{"attemptId": "not-a-uuid", "answers": []map[string]any{{"questionId": qid, "userAnswerIndex": 0, "timeTaken": 1}}},
		{"attemptId": uuid.NewString(), "answers": []map[string]any{}},
		{"attemptId": uuid.NewString(), "answers": []map[string]any{{"questionId": qid, "userAnswerIndex": 4, "timeTaken": 1}}},
		{"attemptId": uuid.NewString(), "answers": []map[string]any{{"questionId": qid, "userAnswerIndex": 0, "timeTaken": 61}}},
		{"attemptId": uuid.NewString(), "answers": []map[string]any{{"questionId": "q1", "userAnswerIndex": 0, "timeTaken": 1}}},
		{"attemptId": uuid.NewString(), "answers": []map[string]any{{"questionId": qid, "userAnswerIndex": 0}}},
		{"attemptId": uuid.NewString(), "answers": []map[string]any{{"questionId": qid, "userAnswerIndex": 0, "timeTaken": -1}}},
	}
	for i, body := range cases {
		resp := h.do("POST", "/api/quiz/submit", body, cookie)
		assert.Equal(t, http.StatusBadRequest, resp.Code, fmt.Sprintf("case %d: %s", i, resp.Body.String()))
		assert.Equal(t, msgInvalidBody, resp.errorMessage(t), "case %d", i)
	}
}

func TestSubmit_ZeroTimeTakenAccepted(t *testing.T) {
	h := newHarness(t)
	cookie, _ := h.signUp("Ada", "Leo")
	out := h.start(cookie, "seo", "beginner")

	answers := h.answersFor(out, 0)
	for _, a := range answers {
		a["timeTaken"] = 0
	}
	resp := h.do("POST", "/api/quiz/submit", map[string]any{"attemptId": out.AttemptID, "answers": answers}, cookie)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var result submitResponse
	resp.decode(t, &result)
	assert.Zero(t, result.DurationSeconds)
}

func TestSubmit_RequiresSession(t *testing.T) {
	h := newHarness(t)
	resp := h.do("POST", "/api/quiz/submit", map[string]any{}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestStart_ServesStoredQuestionsFirst(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for i := range 10 {
		_, err := h.store.Questions().Insert(ctx, store.Question{
			CategorySlug: "creative",
			LevelSlug:    "beginner",
			Question:     fmt.Sprintf("Stored %d?", i),
			Choices:      []string{"a", "b", "c", "d"},
			HashHint:     fmt.Sprintf("stored-%d", i),
		})
		require.NoError(t, err)
	}
	cookie, _ := h.signUp("Ada", "Leo")

	out := h.start(cookie, "creative", "beginner")
	assert.Len(t, out.Questions, 10)
	assert.Zero(t, h.mock.CallCount())
}
