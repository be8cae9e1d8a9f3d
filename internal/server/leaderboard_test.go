package server

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/publicis/arena/internal/leaderboard"
	"github.com/publicis/arena/internal/store"
)

func (h *harness) appendScore(userID, agency, category, level string, score int) {
	h.t.Helper()
	require.NoError(h.t, h.store.Leaderboard().Append(context.Background(), store.LeaderboardRow{
		UserID: userID, Agency: agency, CategorySlug: category, LevelSlug: level, Score: score,
	}))
}

func TestLeaderboard_GlobalWithRank(t *testing.T) {
	h := newHarness(t)
	cookie, ada := h.signUp("Ada", "Leo")
	_, bo := h.signUp("Bo", "Saatchi")
	h.appendScore(ada, "Leo", "seo", "beginner", 40)
	h.appendScore(bo, "Saatchi", "seo", "expert", 90)
	h.appendScore(ada, "Leo", "creative", "beginner", 10)

	resp := h.do("GET", "/api/leaderboard", nil, cookie)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var out leaderboard.Result
	resp.decode(t, &out)
	require.Len(t, out.Entries, 2)
	assert.Equal(t, "Bo", out.Entries[0].Name)
	assert.Equal(t, 90, out.Entries[0].Score)
	assert.Equal(t, 50, out.Entries[1].Score)
	require.NotNil(t, out.Rank)
	assert.Equal(t, 2, *out.Rank)
}

func TestLeaderboard_AnonymousViewerHasNoRank(t *testing.T) {
	h := newHarness(t)
	h.appendScore("u1", "Leo", "seo", "beginner", 40)

	resp := h.do("GET", "/api/leaderboard?scope=category&category=seo", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `null`, string(mustField(t, resp, "rank")))

	var out leaderboard.Result
	resp.decode(t, &out)
	require.Len(t, out.Entries, 1)
	assert.Equal(t, "Anonymous", out.Entries[0].Name)
}

func TestLeaderboard_AgencyScope(t *testing.T) {
	h := newHarness(t)
	cookie, ada := h.signUp("Ada", "Leo")
	h.appendScore(ada, "Leo", "seo", "beginner", 40)
	h.appendScore("u2", "Leo", "seo", "beginner", 20)

	resp := h.do("GET", "/api/leaderboard?scope=agency", nil, cookie)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, msgAgencyRequired, resp.errorMessage(t))

	resp = h.do("GET", "/api/leaderboard?scope=agency&agency=Leo", nil, cookie)
	require.Equal(t, http.StatusOK, resp.Code)
	var out leaderboard.Result
	resp.decode(t, &out)
	require.Len(t, out.Entries, 1)
	assert.Equal(t, 60, out.Entries[0].Score)
	require.NotNil(t, out.Rank)
	assert.Equal(t, 1, *out.Rank)
}

func TestLeaderboard_BadLimit(t *testing.T) {
	h := newHarness(t)
	for _, q := range []string{"limit=abc", "limit=0", "limit=-3"} {
		resp := h.do("GET", "/api/leaderboard?"+q, nil, nil)
		assert.Equal(t, http.StatusBadRequest, resp.Code, q)
		assert.Equal(t, msgInvalidLimit, resp.errorMessage(t))
	}
}

func TestLeaderboard_StoreFailure(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Close())
	resp := h.do("GET", "/api/leaderboard", nil, nil)
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Equal(t, msgLeaderboardFailed, resp.errorMessage(t))
}
