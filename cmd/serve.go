package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/publicis/arena/internal/config"
	"github.com/publicis/arena/internal/llm"
	"github.com/publicis/arena/internal/logger"
	"github.com/publicis/arena/internal/metrics"
	"github.com/publicis/arena/internal/questions"
	"github.com/publicis/arena/internal/ratelimit"
	"github.com/publicis/arena/internal/server"
	"github.com/publicis/arena/internal/session"
	"github.com/publicis/arena/internal/store"
	"github.com/spf13/cobra"
)

const sweepInterval = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides ARENA_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		cfg.Addr = v
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Catalog().SeedDefaults(ctx); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}

	if cfg.SessionSecret == "" || cfg.SessionSecret == session.DefaultSecret {
		log.Warn("SESSION_SECRET is not set; session cookies use an insecure default key")
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	engine, err := buildEngine(ctx, cfg, s, m, log)
	if err != nil {
		return err
	}

	limiter, closeLimiter, err := buildLimiter(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeLimiter()

	if cfg.LogMode == "prod" || cfg.LogMode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := server.New(server.Deps{
		Config:  cfg,
		Store:   s,
		Engine:  engine,
		Limiter: limiter,
		Metrics: m,
		Log:     log,
	})
	return srv.Run(ctx)
}

// buildEngine wires the question engine to the configured LLM backend. With
// no backend it serves stored questions only.
func buildEngine(ctx context.Context, cfg config.Config, s *store.Store, m *metrics.Metrics, log *logger.Logger) (*questions.Engine, error) {
	opts := []questions.Option{
		questions.WithLogger(log.With("component", "questions")),
		questions.WithParallelism(cfg.GenerationParallelism),
	}
	if m != nil {
		opts = append(opts, questions.WithRecorder(m))
	}

	llmCfg, ok := llm.ResolveConfig()
	if !ok {
		if os.Getenv("ARENA_LLM_PROVIDER") != "" {
			log.Warn("LLM backend misconfigured; question generation disabled", "error", llmCfg.Validate())
		} else {
			log.Warn("no LLM API key found; question generation disabled")
		}
		return questions.NewEngine(s.Questions(), nil, opts...), nil
	}

	provider, err := llm.NewProvider(ctx, llmCfg, s.Events(), log.With("component", "llm"))
	if err != nil {
		return nil, err
	}
	log.Info("question generation enabled", "provider", llmCfg.Provider, "model", provider.ModelID())
	gen := questions.NewLLMGenerator(provider, questions.DefaultConfig())
	return questions.NewEngine(s.Questions(), gen, opts...), nil
}

// buildLimiter returns the shared redis limiter when REDIS_ADDR is set and
// an in-process one otherwise.
func buildLimiter(ctx context.Context, cfg config.Config, log *logger.Logger) (ratelimit.Limiter, func(), error) {
	if cfg.RedisAddr != "" {
		rdb, err := ratelimit.DialRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		log.Info("rate limiting via redis", "addr", cfg.RedisAddr)
		return ratelimit.NewRedisLimiter(rdb), func() { rdb.Close() }, nil
	}

	mem := ratelimit.NewMemoryLimiter()
	go mem.RunSweeper(ctx, sweepInterval)
	return mem, func() {}, nil
}
