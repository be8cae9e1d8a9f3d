package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/publicis/arena/internal/ratelimit"
	"github.com/publicis/arena/internal/session"
	"github.com/publicis/arena/internal/store"
)

type profileRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=120"`
	Agency   string `json:"agency" binding:"required,min=2,max=120"`
	Function string `json:"function" binding:"required,min=2,max=120"`
}

// saveProfile creates or updates the caller's profile and (re)issues the
// session cookie. An existing session keeps its user id.
func (s *Server) saveProfile(c *gin.Context) {
	var req profileRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if s.rateLimited(c, ratelimit.DefaultPolicy, ratelimit.ProfileKey(c.ClientIP())) {
		return
	}

	userID := sessionUserID(c)
	if userID == "" {
		userID = uuid.NewString()
	}
	err := s.store.Users().Upsert(c.Request.Context(), store.User{
		ID:       userID,
		Name:     req.Name,
		Agency:   req.Agency,
		Function: req.Function,
	})
	if err != nil {
		s.log.Error("save profile", "user_id", userID, "error", err)
		respondError(c, http.StatusInternalServerError, msgProfileFailed)
		return
	}

	s.codec.SetCookie(c.Writer, userID, session.CookieOptions{Secure: s.cfg.CookieSecure})
	c.JSON(http.StatusOK, gin.H{"userId": userID})
}

// logout expires the session cookie. It succeeds with or without a session.
func (s *Server) logout(c *gin.Context) {
	session.ClearCookie(c.Writer)
	c.Status(http.StatusNoContent)
}
