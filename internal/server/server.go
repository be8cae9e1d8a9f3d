// Package server exposes the arena HTTP API and page data over gin.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/publicis/arena/internal/config"
	"github.com/publicis/arena/internal/leaderboard"
	"github.com/publicis/arena/internal/logger"
	"github.com/publicis/arena/internal/metrics"
	"github.com/publicis/arena/internal/questions"
	"github.com/publicis/arena/internal/ratelimit"
	"github.com/publicis/arena/internal/session"
	"github.com/publicis/arena/internal/store"
)

// Deps are the collaborators of a Server.
type Deps struct {
	Config  config.Config
	Store   *store.Store
	Engine  *questions.Engine
	Limiter ratelimit.Limiter

	// Metrics may be nil, which disables /metrics.
	Metrics *metrics.Metrics
	Log     *logger.Logger
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	cfg     config.Config
	store   *store.Store
	engine  *questions.Engine
	board   *leaderboard.Board
	limiter ratelimit.Limiter
	codec   *session.Codec
	metrics *metrics.Metrics
	log     *logger.Logger
	router  *gin.Engine
}

// New builds a Server and its routes.
func New(d Deps) *Server {
	log := d.Log
	if log == nil {
		log = logger.NewNop()
	}
	limiter := d.Limiter
	if limiter == nil {
		limiter = ratelimit.NewMemoryLimiter()
	}
	s := &Server{
		cfg:     d.Config,
		store:   d.Store,
		engine:  d.Engine,
		board:   leaderboard.NewBoard(d.Store.Leaderboard()),
		limiter: limiter,
		codec:   session.NewCodec(d.Config.SessionSecret),
		metrics: d.Metrics,
		log:     log.With("component", "server"),
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(s.cfg.TrustedProxies); err != nil {
		s.log.Error("invalid trusted proxies; trusting none", "proxies", s.cfg.TrustedProxies, "error", err)
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(s.recovery(), s.requestLogger())
	if len(s.cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     s.cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type", "X-Requested-With"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	if s.metrics != nil {
		r.Use(s.observe())
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	r.Use(s.loadSession())

	r.GET("/healthz", s.health)

	api := r.Group("/api")
	{
		api.GET("/catalog", s.catalog)
		api.GET("/leaderboard", s.leaderboard)
		api.POST("/profile", s.saveProfile)
		api.POST("/logout", s.logout)

		authed := api.Group("", s.requireSession())
		authed.GET("/history", s.history)
		authed.POST("/quiz/start", s.startQuiz)
		authed.POST("/quiz/submit", s.submitQuiz)
	}

	r.GET("/", s.layoutPage)
	r.GET("/leaderboard", s.layoutPage)
	r.GET("/play", s.playPage)
	r.GET("/profile", s.profilePage)

	r.NoRoute(func(c *gin.Context) { respondError(c, http.StatusNotFound, "Not found") })
	return r
}

// Run serves on cfg.Addr until ctx is cancelled, then shuts down
// gracefully within cfg.ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		s.log.Error("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
