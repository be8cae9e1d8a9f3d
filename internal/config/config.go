package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds process-wide settings for the arena server and CLI.
// LLM backend settings live in llm.Config.
type Config struct {
	// Addr is the HTTP listen address. Env: ARENA_ADDR. Default ":8080".
	Addr string

	// DBDriver is "sqlite" or "postgres". Env: ARENA_DB_DRIVER.
	DBDriver string

	// DSN is the database path (sqlite) or connection string (postgres).
	// Env: ARENA_DB. Empty means the default data-dir path.
	DSN string

	// SessionSecret keys the session cookie HMAC. Env: SESSION_SECRET.
	SessionSecret string

	// CookieSecure sets the Secure attribute on the session cookie.
	// Env: ARENA_COOKIE_SECURE. Default true.
	CookieSecure bool

	// CORSOrigins lists allowed browser origins. Env: ARENA_CORS_ORIGINS
	// (comma separated).
	CORSOrigins []string

	// TrustedProxies lists proxy IPs or CIDRs whose X-Forwarded-For
	// header is believed when resolving the client IP. Env:
	// ARENA_TRUSTED_PROXIES (comma separated). Default none, so the
	// client IP is always the peer address.
	TrustedProxies []string

	// RedisAddr enables the shared rate limiter when set. Env: REDIS_ADDR.
	RedisAddr string

	// MetricsEnabled exposes /metrics. Env: ARENA_METRICS_ENABLED.
	MetricsEnabled bool

	// LogMode is "dev" or "prod". Env: ARENA_LOG_MODE.
	LogMode string

	// LogRedact masks secrets and hashes user ids in logs.
	// Env: ARENA_LOG_REDACT. Default true.
	LogRedact bool

	// QuestionsPerQuiz is how many questions a quiz serves. Env:
	// ARENA_QUESTIONS_PER_QUIZ. Default 10.
	QuestionsPerQuiz int

	// GenerationParallelism caps concurrent generation calls per
	// EnsureQuestions; 0 means one goroutine per missing question.
	// Env: ARENA_GENERATION_PARALLELISM.
	GenerationParallelism int

	// ShutdownTimeout bounds graceful shutdown. Env: ARENA_SHUTDOWN_TIMEOUT.
	ShutdownTimeout time.Duration
}

// Default returns a Config with defaults applied.
func Default() Config {
	return Config{
		Addr:             ":8080",
		DBDriver:         "sqlite",
		CookieSecure:     true,
		LogMode:          "dev",
		LogRedact:        true,
		QuestionsPerQuiz: 10,
		CORSOrigins: []string{
			"http://localhost:5173",
			"http://127.0.0.1:5173",
		},
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load reads envFile (if it exists) into the process environment, then
// builds a Config from the environment. Variables already set in the
// environment win over the file. A missing envFile is not an error.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables, falling back to
// defaults for unset values.
func FromEnv() (Config, error) {
	cfg := Default()

	if v := os.Getenv("ARENA_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("ARENA_DB_DRIVER"); v != "" {
		cfg.DBDriver = strings.ToLower(v)
	}
	cfg.DSN = os.Getenv("ARENA_DB")
	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	if v := os.Getenv("ARENA_LOG_MODE"); v != "" {
		cfg.LogMode = v
	}
	if v := os.Getenv("ARENA_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	cfg.TrustedProxies = splitList(os.Getenv("ARENA_TRUSTED_PROXIES"))

	var err error
	if cfg.CookieSecure, err = boolEnv("ARENA_COOKIE_SECURE", cfg.CookieSecure); err != nil {
		return Config{}, err
	}
	if cfg.MetricsEnabled, err = boolEnv("ARENA_METRICS_ENABLED", cfg.MetricsEnabled); err != nil {
		return Config{}, err
	}
	if cfg.LogRedact, err = boolEnv("ARENA_LOG_REDACT", cfg.LogRedact); err != nil {
		return Config{}, err
	}
	if cfg.QuestionsPerQuiz, err = intEnv("ARENA_QUESTIONS_PER_QUIZ", cfg.QuestionsPerQuiz); err != nil {
		return Config{}, err
	}
	if cfg.GenerationParallelism, err = intEnv("ARENA_GENERATION_PARALLELISM", cfg.GenerationParallelism); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("ARENA_SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("ARENA_SHUTDOWN_TIMEOUT: %w", err)
		}
		cfg.ShutdownTimeout = d
	}

	return cfg, cfg.Validate()
}

// Validate checks value ranges.
func (c Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown database driver: %q", c.DBDriver)
	}
	if c.QuestionsPerQuiz < 1 {
		return fmt.Errorf("ARENA_QUESTIONS_PER_QUIZ must be at least 1, got %d", c.QuestionsPerQuiz)
	}
	if c.GenerationParallelism < 0 {
		return fmt.Errorf("ARENA_GENERATION_PARALLELISM must not be negative, got %d", c.GenerationParallelism)
	}
	return nil
}

func boolEnv(name string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def, nil
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return def, fmt.Errorf("%s: invalid boolean %q", name, v)
}

func intEnv(name string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
