package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/publicis/arena/internal/store"
)

const (
	ctxUserID = "arena.user_id"
	ctxUser   = "arena.user"
)

func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		s.log.Error("panic recovered", "panic", recovered, "path", c.Request.URL.Path)
		respondError(c, http.StatusInternalServerError, msgInternal)
	})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
			"user_id", c.GetString(ctxUserID),
		)
	}
}

func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.metrics.ObserveRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// loadSession resolves the session cookie. The verified id is stored even
// when no user row exists; the row, when found, is stored separately.
func (s *Server) loadSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := s.codec.UserIDFromRequest(c.Request)
		if !ok {
			c.Next()
			return
		}
		c.Set(ctxUserID, userID)

		u, err := s.store.Users().Get(c.Request.Context(), userID)
		if err != nil {
			s.log.Warn("load session user", "user_id", userID, "error", err)
		} else if u != nil {
			c.Set(ctxUser, u)
		}
		c.Next()
	}
}

func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if sessionUserID(c) == "" {
			respondError(c, http.StatusUnauthorized, msgUnauthorized)
			return
		}
		c.Next()
	}
}

func sessionUserID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

func currentUser(c *gin.Context) *store.User {
	if v, ok := c.Get(ctxUser); ok {
		if u, ok := v.(*store.User); ok {
			return u
		}
	}
	return nil
}
