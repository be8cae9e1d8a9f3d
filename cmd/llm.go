package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/publicis/arena/internal/llm"
	"github.com/publicis/arena/internal/store"
	"github.com/publicis/arena/internal/theme"
	"github.com/spf13/cobra"
)

const timeLayout = "2006-01-02 15:04:05"

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Inspect LLM request/response events",
}

var llmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent LLM events",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := store.QueryOpts{}
		opts.Limit, _ = cmd.Flags().GetInt("limit")
		opts.Purpose, _ = cmd.Flags().GetString("purpose")
		since, _ := cmd.Flags().GetDuration("since")
		if since > 0 {
			opts.From = time.Now().Add(-since)
		}

		return withStore(cmd, func(ctx context.Context, s *store.Store) error {
			events, err := s.Events().QueryLLMEvents(ctx, opts)
			if err != nil {
				return fmt.Errorf("query events: %w", err)
			}
			if len(events) == 0 {
				fmt.Println("No LLM events found.")
				return nil
			}

			rows := make([][]string, 0, len(events))
			for _, e := range events {
				rows = append(rows, []string{
					strconv.Itoa(e.ID),
					e.Timestamp.Local().Format(timeLayout),
					e.Purpose,
					truncate(e.Model, 28),
					strconv.Itoa(e.InputTokens),
					strconv.Itoa(e.OutputTokens),
					strconv.FormatInt(e.LatencyMs, 10),
					theme.Check(e.Success),
				})
			}
			headers := []string{"ID", "Timestamp", "Purpose", "Model", "In", "Out", "Ms", "OK"}
			lipgloss.Println(theme.Table(headers, rows, false).String())
			return nil
		})
	},
}

var llmViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "View full request/response for an LLM event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid ID %q: %w", args[0], err)
		}

		return withStore(cmd, func(ctx context.Context, s *store.Store) error {
			e, err := s.Events().GetLLMEvent(ctx, id)
			if err != nil {
				return fmt.Errorf("get event: %w", err)
			}
			if e == nil {
				return fmt.Errorf("event %d not found", id)
			}

			field := func(label, value string) {
				lipgloss.Println(theme.Label.Render(label) + value)
			}
			field("ID", strconv.Itoa(e.ID))
			field("Time", e.Timestamp.Local().Format(timeLayout))
			field("Provider", e.Provider)
			field("Model", e.Model)
			field("Purpose", e.Purpose)
			field("Tokens", fmt.Sprintf("%d in / %d out", e.InputTokens, e.OutputTokens))
			field("Latency", fmt.Sprintf("%dms", e.LatencyMs))
			field("Success", theme.Check(e.Success))
			if e.ErrorMessage != "" {
				field("Error", theme.Incorrect.Render(e.ErrorMessage))
			}

			section := func(title, body string) {
				lipgloss.Println()
				lipgloss.Println(theme.Title.Render(title))
				lipgloss.Println(theme.Hint.Render(strings.Repeat("─", 60)))
				if body == "" {
					lipgloss.Println(theme.Hint.Render("(not captured)"))
					return
				}
				fmt.Println(body)
			}
			section("REQUEST", e.RequestBody)
			section("RESPONSE", e.ResponseBody)
			return nil
		})
	},
}

var llmStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregated LLM token usage and estimated cost",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, s *store.Store) error {
			stats, err := s.Events().LLMUsageByPurpose(ctx)
			if err != nil {
				return fmt.Errorf("query usage: %w", err)
			}
			if len(stats) == 0 {
				fmt.Println("No LLM usage recorded yet.")
				return nil
			}

			lipgloss.Println(theme.Title.Render("Usage by Purpose"))
			lipgloss.Println(purposeTable(stats))

			modelUsage, err := s.Events().LLMUsageByModel(ctx)
			if err != nil {
				return fmt.Errorf("query model usage: %w", err)
			}
			if len(modelUsage) == 0 {
				return nil
			}

			table, unknown := costTable(modelUsage)
			lipgloss.Println()
			lipgloss.Println(theme.Title.Render("Estimated Cost (USD)"))
			lipgloss.Println(table)
			if len(unknown) > 0 {
				lipgloss.Println(theme.Hint.Render("Pricing unavailable for: " + strings.Join(unknown, ", ")))
			}
			return nil
		})
	},
}

func purposeTable(stats []store.PurposeUsage) string {
	rows := make([][]string, 0, len(stats)+1)
	var calls, in, out int
	for _, st := range stats {
		rows = append(rows, []string{
			st.Purpose,
			strconv.Itoa(st.Calls),
			strconv.Itoa(st.InputTokens),
			strconv.Itoa(st.OutputTokens),
			strconv.Itoa(st.InputTokens + st.OutputTokens),
			strconv.FormatInt(st.AvgLatencyMs, 10),
		})
		calls += st.Calls
		in += st.InputTokens
		out += st.OutputTokens
	}
	rows = append(rows, []string{"TOTAL", strconv.Itoa(calls), strconv.Itoa(in), strconv.Itoa(out), strconv.Itoa(in + out), ""})
	return theme.Table([]string{"Purpose", "Calls", "Input", "Output", "Total", "Avg Ms"}, rows, true).String()
}

// costTable prices usage per model. Models without a known price are
// listed with "?" and returned so the caller can flag the total as partial.
func costTable(usage []store.ModelUsage) (string, []string) {
	rows := make([][]string, 0, len(usage)+1)
	var (
		total   float64
		unknown []string
	)
	for _, mu := range usage {
		cost := "?"
		if c := llm.LookupCost(mu.Model); c != nil {
			usd := c.Cost(mu.InputTokens, mu.OutputTokens)
			total += usd
			cost = formatCost(usd)
		} else {
			unknown = append(unknown, mu.Model)
		}
		rows = append(rows, []string{
			truncate(mu.Model, 32),
			strconv.Itoa(mu.Calls),
			strconv.Itoa(mu.InputTokens),
			strconv.Itoa(mu.OutputTokens),
			cost,
		})
	}
	label := "TOTAL"
	if len(unknown) > 0 {
		label = "TOTAL (partial)"
	}
	rows = append(rows, []string{label, "", "", "", formatCost(total)})
	return theme.Table([]string{"Model", "Calls", "Input", "Output", "Cost"}, rows, true).String(), unknown
}

// truncate shortens s to at most max runes.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return string(r[:max])
	}
	return string(r[:max-1]) + "…"
}

func formatCost(usd float64) string {
	if usd < 0.01 {
		return fmt.Sprintf("$%.4f", usd)
	}
	return fmt.Sprintf("$%.2f", usd)
}

func init() {
	llmListCmd.Flags().IntP("limit", "n", 20, "Number of events to show")
	llmListCmd.Flags().StringP("purpose", "p", "", "Filter by purpose (question-gen, warm)")
	llmListCmd.Flags().Duration("since", 0, "Only events newer than this (e.g. 24h)")

	llmCmd.AddCommand(llmListCmd)
	llmCmd.AddCommand(llmViewCmd)
	llmCmd.AddCommand(llmStatsCmd)
}
