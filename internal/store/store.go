package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	// Postgres driver registered as "pgx".
	_ "github.com/jackc/pgx/v5/stdlib"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store holds the SQL driver and provides access to repositories.
type Store struct {
	db *sql.DB
	gw *Gateway
}

// Open connects to dsn with the named driver, applies backend settings and
// runs migration.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var (
		db  *sql.DB
		drv *entsql.Driver
		err error
	)
	switch driver {
	case DriverSQLite, "":
		db, err = sql.Open("sqlite", sqliteDSN(dsn))
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		// In-memory databases are per connection.
		db.SetMaxOpenConns(1)
		if err := applyPragmas(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragmas: %w", err)
		}
		drv = entsql.OpenDB(dialect.SQLite, db)
	case DriverPostgres:
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		drv = entsql.OpenDB(dialect.Postgres, db)
	default:
		return nil, fmt.Errorf("unknown database driver: %q", driver)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := Migrate(ctx, drv); err != nil {
		db.Close()
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	return &Store{db: db, gw: NewGateway(drv)}, nil
}

// sqliteDSN asks the driver to write times in a format it can parse back.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_time_format=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_time_format=sqlite"
}

// Gateway returns the table gateway.
func (s *Store) Gateway() *Gateway {
	return s.gw
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Users() *UserRepo { return &UserRepo{gw: s.gw} }
func (s *Store) Catalog() *CatalogRepo { return &CatalogRepo{gw: s.gw} }
func (s *Store) Questions() *QuestionRepo { return &QuestionRepo{gw: s.gw} }
func (s *Store) Attempts() *AttemptRepo { return &AttemptRepo{gw: s.gw} }
func (s *Store) Leaderboard() *LeaderboardRepo { return &LeaderboardRepo{gw: s.gw} }
func (s *Store) Events() *LLMEventRepo { return &LLMEventRepo{gw: s.gw} }

// applyPragmas configures SQLite for a small multi-reader server.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultDBPath resolves the database file path in priority order:
// 1. ARENA_DB environment variable
// 2. $XDG_DATA_HOME/arena/arena.db
// 3. ~/.local/share/arena/arena.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("ARENA_DB"); p != "" {
		return p, EnsureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "arena", "arena.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}
