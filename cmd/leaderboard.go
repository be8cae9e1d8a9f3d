package cmd

import (
	"context"
	"fmt"
	"strconv"

	"charm.land/lipgloss/v2"
	"github.com/publicis/arena/internal/leaderboard"
	"github.com/publicis/arena/internal/store"
	"github.com/publicis/arena/internal/theme"
	"github.com/spf13/cobra"
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Print a leaderboard ranking",
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, _ := cmd.Flags().GetString("scope")
		q := leaderboard.Query{Scope: leaderboard.ParseScope(scope)}
		q.Category, _ = cmd.Flags().GetString("category")
		q.Level, _ = cmd.Flags().GetString("level")
		q.Agency, _ = cmd.Flags().GetString("agency")
		q.Limit, _ = cmd.Flags().GetInt("limit")

		return withStore(cmd, func(ctx context.Context, s *store.Store) error {
			res, err := leaderboard.NewBoard(s.Leaderboard()).Rank(ctx, q, nil)
			if err != nil {
				return err
			}
			if len(res.Entries) == 0 {
				fmt.Println("No scores recorded yet.")
				return nil
			}

			lipgloss.Println(theme.Title.Render(fmt.Sprintf("Leaderboard · %s", q.Scope)))
			if q.Scope == leaderboard.ScopeAgency {
				rows := make([][]string, 0, len(res.Entries))
				for _, e := range res.Entries {
					rows = append(rows, []string{strconv.Itoa(e.Position), e.Agency, strconv.Itoa(e.Score)})
				}
				lipgloss.Println(theme.Table([]string{"#", "Agency", "Score"}, rows, false).String())
				return nil
			}

			rows := make([][]string, 0, len(res.Entries))
			for _, e := range res.Entries {
				last := ""
				if e.LastPlayed != nil {
					last = e.LastPlayed.Local().Format("2006-01-02 15:04")
				}
				rows = append(rows, []string{
					strconv.Itoa(e.Position), truncate(e.Name, 24), truncate(e.Agency, 20),
					strconv.Itoa(e.Score), last,
				})
			}
			lipgloss.Println(theme.Table([]string{"#", "Player", "Agency", "Score", "Last played"}, rows, false).String())
			return nil
		})
	},
}

func init() {
	leaderboardCmd.Flags().StringP("scope", "s", "global", "Ranking scope: global, category, level or agency")
	leaderboardCmd.Flags().StringP("category", "c", "", "Category slug for --scope category")
	leaderboardCmd.Flags().StringP("level", "l", "", "Level slug for --scope level")
	leaderboardCmd.Flags().StringP("agency", "a", "", "Agency for --scope agency")
	leaderboardCmd.Flags().IntP("limit", "n", leaderboard.DefaultLimit, "Number of entries to show")
}
