package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error messages returned to clients.
const (
	msgUnauthorized        = "Unauthorized"
	msgInvalidBody         = "Invalid request body"
	msgCatalogFailed       = "Unable to fetch catalog"
	msgAgencyRequired      = "Agency parameter required"
	msgInvalidLimit        = "Invalid limit"
	msgLeaderboardFailed   = "Unable to load leaderboard"
	msgProfileFailed       = "Unable to save profile"
	msgHistoryFailed       = "Unable to load history"
	msgRateLimited         = "Rate limit exceeded"
	msgUnknownPair         = "Unknown category or level"
	msgNotConfigured       = "Question generation is not configured"
	msgNoQuestions         = "No questions available"
	msgAttemptCreateFailed = "Could not create attempt"
	msgAttemptNotFound     = "Attempt not found"
	msgAttemptLoadFailed   = "Unable to load attempt"
	msgAnswerCount         = "Answer count does not match the questions served"
	msgUnservedQuestion    = "Answers must match the questions served"
	msgAlreadySubmitted    = "Attempt already submitted"
	msgQuestionsFailed     = "Unable to fetch questions"
	msgItemsFailed         = "Unable to persist attempt items"
	msgInternal            = "Internal server error"
)

type errorBody struct {
	Error string `json:"error"`
}

func respondError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, errorBody{Error: msg})
}

// bindJSON decodes and validates the request body into dst. Validation
// details are logged, not returned.
func (s *Server) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		s.log.Debug("invalid request body", "path", c.FullPath(), "error", err)
		respondError(c, http.StatusBadRequest, msgInvalidBody)
		return false
	}
	return true
}

// nullable maps the empty string to JSON null.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
