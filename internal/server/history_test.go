package server

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_RequiresSession(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusUnauthorized, h.do("GET", "/api/history", nil, nil).Code)
}

func TestHistory_ListsAttemptsWithItems(t *testing.T) {
	h := newHarness(t)
	cookie, _ := h.signUp("Ada", "Leo")

	first := h.start(cookie, "seo", "beginner")
	resp := h.do("POST", "/api/quiz/submit", map[string]any{"attemptId": first.AttemptID, "answers": h.answersFor(first, 2)}, cookie)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	second := h.start(cookie, "creative", "expert")

	resp = h.do("GET", "/api/history", nil, cookie)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var out struct {
		Attempts []struct {
			ID         string        `json:"id"`
			TotalScore int           `json:"total_score"`
			Items      []historyItem `json:"items"`
		} `json:"attempts"`
	}
	resp.decode(t, &out)
	require.Len(t, out.Attempts, 2)

	assert.Equal(t, second.AttemptID, out.Attempts[0].ID)
	assert.Empty(t, out.Attempts[0].Items)

	done := out.Attempts[1]
	assert.Equal(t, first.AttemptID, done.ID)
	assert.Equal(t, 2*10-8*5, done.TotalScore)
	require.Len(t, done.Items, len(first.Questions))
	assert.True(t, done.Items[0].Correct)
	assert.False(t, done.Items[2].Correct)
	assert.Len(t, done.Items[0].Choices, 4)
	require.NotNil(t, done.Items[0].CorrectIndex)
	require.NotNil(t, done.Items[0].UserAnswerIndex)
	assert.Equal(t, *done.Items[0].CorrectIndex, *done.Items[0].UserAnswerIndex)
}
