package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/publicis/arena/internal/leaderboard"
)

func (s *Server) leaderboard(c *gin.Context) {
	q := leaderboard.Query{
		Scope:    leaderboard.ParseScope(c.DefaultQuery("scope", string(leaderboard.ScopeGlobal))),
		Category: c.Query("category"),
		Level:    c.Query("level"),
		Agency:   c.Query("agency"),
	}
	if raw, ok := c.GetQuery("limit"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(c, http.StatusBadRequest, msgInvalidLimit)
			return
		}
		q.Limit = n
	}

	var viewer *leaderboard.Viewer
	if id := sessionUserID(c); id != "" {
		viewer = &leaderboard.Viewer{UserID: id}
		if u := currentUser(c); u != nil {
			viewer.Agency = u.Agency
		}
	}

	res, err := s.board.Rank(c.Request.Context(), q, viewer)
	switch {
	case errors.Is(err, leaderboard.ErrAgencyRequired):
		respondError(c, http.StatusBadRequest, msgAgencyRequired)
		return
	case err != nil:
		s.log.Error("load leaderboard", "error", err)
		respondError(c, http.StatusInternalServerError, msgLeaderboardFailed)
		return
	}
	c.JSON(http.StatusOK, res)
}
