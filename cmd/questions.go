package cmd

import (
	"context"
	"fmt"
	"strconv"

	"charm.land/lipgloss/v2"
	"github.com/publicis/arena/internal/llm"
	"github.com/publicis/arena/internal/questions"
	"github.com/publicis/arena/internal/store"
	"github.com/publicis/arena/internal/theme"
	"github.com/spf13/cobra"
)

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Manage the question bank",
}

var questionsWarmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Generate questions until a category/level pair holds --count of them",
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		level, _ := cmd.Flags().GetString("level")
		count, _ := cmd.Flags().GetInt("count")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer log.Sync()

		ctx := llm.WithPurpose(cmd.Context(), llm.PurposeWarm)
		s, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.Catalog().SeedDefaults(ctx); err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}

		pairs, err := warmPairs(ctx, s, category, level)
		if err != nil {
			return err
		}

		engine, err := buildEngine(ctx, cfg, s, nil, log)
		if err != nil {
			return err
		}
		if !engine.Configured() {
			return fmt.Errorf("no LLM backend configured: set ARENA_LLM_PROVIDER or a provider API key")
		}

		rows := make([][]string, 0, len(pairs))
		for _, p := range pairs {
			before, err := s.Questions().Count(ctx, p[0], p[1])
			if err != nil {
				return err
			}
			if _, err := engine.EnsureQuestions(ctx, p[0], p[1], count); err != nil {
				return fmt.Errorf("warm %s/%s: %w", p[0], p[1], err)
			}
			after, err := s.Questions().Count(ctx, p[0], p[1])
			if err != nil {
				return err
			}
			rows = append(rows, []string{p[0], p[1], strconv.Itoa(before), strconv.Itoa(after)})
		}

		lipgloss.Println(theme.Table([]string{"Category", "Level", "Before", "After"}, rows, false).String())
		return nil
	},
}

var questionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored questions for a category/level pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		level, _ := cmd.Flags().GetString("level")
		limit, _ := cmd.Flags().GetInt("limit")
		showAnswers, _ := cmd.Flags().GetBool("answers")

		return withStore(cmd, func(ctx context.Context, s *store.Store) error {
			qs, err := s.Questions().RecentByPair(ctx, category, level, limit)
			if err != nil {
				return fmt.Errorf("query questions: %w", err)
			}
			if len(qs) == 0 {
				fmt.Println("No questions stored for this pair.")
				return nil
			}

			headers := []string{"ID", "Created", "Topic", "Question"}
			if showAnswers {
				headers = append(headers, "Answer")
			}
			rows := make([][]string, 0, len(qs))
			for _, q := range qs {
				row := []string{
					truncate(q.ID, 8),
					q.CreatedAt.Local().Format("2006-01-02 15:04"),
					truncate(q.TopicCluster, 24),
					truncate(q.Question, 60),
				}
				if showAnswers {
					row = append(row, answerOf(q))
				}
				rows = append(rows, row)
			}
			lipgloss.Println(theme.Table(headers, rows, false).String())
			return nil
		})
	},
}

// warmPairs expands empty flags to every seeded slug and rejects unknown
// ones.
func warmPairs(ctx context.Context, s *store.Store, category, level string) ([][2]string, error) {
	var cats, levels []string
	if category == "" {
		all, err := s.Catalog().Categories(ctx)
		if err != nil {
			return nil, err
		}
		for _, c := range all {
			cats = append(cats, c.Slug)
		}
	} else if ok, err := s.Catalog().CategoryExists(ctx, category); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("unknown category %q", category)
	} else {
		cats = []string{category}
	}

	if level == "" {
		all, err := s.Catalog().Levels(ctx)
		if err != nil {
			return nil, err
		}
		for _, l := range all {
			levels = append(levels, l.Slug)
		}
	} else if ok, err := s.Catalog().LevelExists(ctx, level); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("unknown level %q", level)
	} else {
		levels = []string{level}
	}

	pairs := make([][2]string, 0, len(cats)*len(levels))
	for _, c := range cats {
		for _, l := range levels {
			pairs = append(pairs, [2]string{c, l})
		}
	}
	return pairs, nil
}

func answerOf(q store.Question) string {
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Choices) {
		return "?"
	}
	return truncate(q.Choices[q.CorrectIndex], 30)
}

func init() {
	questionsWarmCmd.Flags().StringP("category", "c", "", "Category slug (default: all categories)")
	questionsWarmCmd.Flags().StringP("level", "l", "", "Level slug (default: all levels)")
	questionsWarmCmd.Flags().IntP("count", "n", questions.DefaultDesired, "Questions to keep in stock per pair")

	questionsListCmd.Flags().StringP("category", "c", "", "Category slug")
	questionsListCmd.Flags().StringP("level", "l", "", "Level slug")
	questionsListCmd.Flags().IntP("limit", "n", 20, "Number of questions to show")
	questionsListCmd.Flags().Bool("answers", false, "Show the correct answer")
	_ = questionsListCmd.MarkFlagRequired("category")
	_ = questionsListCmd.MarkFlagRequired("level")

	questionsCmd.AddCommand(questionsWarmCmd)
	questionsCmd.AddCommand(questionsListCmd)
}
