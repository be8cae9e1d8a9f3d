package cmd

import (
	"context"
	"fmt"

	"github.com/publicis/arena/internal/config"
	"github.com/publicis/arena/internal/logger"
	"github.com/publicis/arena/internal/store"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "arena",
	Short: "Publicis Knowledge Arena quiz service",
	Long: "Arena serves AI-generated multiple-choice quizzes, scores attempts and " +
		"keeps per-agency leaderboards.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Database path or DSN (overrides ARENA_DB)")
	rootCmd.PersistentFlags().String("driver", "", "Database driver: sqlite or postgres (overrides ARENA_DB_DRIVER)")
	rootCmd.PersistentFlags().String("env-file", ".env", "Dotenv file loaded before reading the environment")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(questionsCmd)
	rootCmd.AddCommand(leaderboardCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the env file and environment, then applies the global
// flags on top.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.Load(envFile)
	if err != nil {
		return config.Config{}, err
	}
	if v, _ := cmd.Flags().GetString("driver"); v != "" {
		cfg.DBDriver = v
	}
	if v, _ := cmd.Flags().GetString("db"); v != "" {
		cfg.DSN = v
	}
	return cfg, cfg.Validate()
}

// resolveDSN returns the connection string for cfg. For sqlite it falls
// back to the default data-dir path and creates the parent directory.
func resolveDSN(cfg config.Config) (string, error) {
	if cfg.DBDriver != store.DriverSQLite {
		if cfg.DSN == "" {
			return "", fmt.Errorf("ARENA_DB is required for the %s driver", cfg.DBDriver)
		}
		return cfg.DSN, nil
	}
	switch cfg.DSN {
	case "":
		return store.DefaultDBPath()
	case ":memory:":
		return cfg.DSN, nil
	}
	return cfg.DSN, store.EnsureDir(cfg.DSN)
}

func openStore(ctx context.Context, cfg config.Config) (*store.Store, error) {
	dsn, err := resolveDSN(cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve database: %w", err)
	}
	s, err := store.Open(ctx, cfg.DBDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}

func newLogger(cfg config.Config) (*logger.Logger, error) {
	return logger.New(logger.Options{
		Mode:     cfg.LogMode,
		Redact:   cfg.LogRedact,
		HashSalt: cfg.SessionSecret,
	})
}

// withStore loads config, opens the store and runs fn. Used by the
// inspection commands.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, s *store.Store) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}
