package store

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

var llmEventColumns = []string{
	"id", "created_at", "provider", "model", "purpose", "input_tokens", "output_tokens",
	"latency_ms", "success", "error_message", "request_body", "response_body",
}

// LLMEventRepo implements EventRepo on pk_llm_events and provides the
// read side used by the inspection commands.
type LLMEventRepo struct {
	gw *Gateway
}

var _ EventRepo = (*LLMEventRepo)(nil)

func (r *LLMEventRepo) AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error {
	err := r.gw.Insert(ctx, TableLLMEvents, Row{
		"created_at":    time.Now().UTC(),
		"provider":      data.Provider,
		"model":         data.Model,
		"purpose":       data.Purpose,
		"input_tokens":  data.InputTokens,
		"output_tokens": data.OutputTokens,
		"latency_ms":    data.LatencyMs,
		"success":       data.Success,
		"error_message": data.ErrorMessage,
		"request_body":  data.RequestBody,
		"response_body": data.ResponseBody,
	})
	if err != nil {
		return fmt.Errorf("save LLM request event: %w", err)
	}
	return nil
}

// QueryLLMEvents returns events newest first.
func (r *LLMEventRepo) QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEvent, error) {
	sel := []SelectOption{OrderBy(entsql.Desc("id")), Limit(opts.Limit)}
	if opts.Purpose != "" {
		sel = append(sel, Where(entsql.EQ("purpose", opts.Purpose)))
	}
	if !opts.From.IsZero() {
		sel = append(sel, Where(entsql.GTE("created_at", opts.From.UTC())))
	}
	if !opts.To.IsZero() {
		sel = append(sel, Where(entsql.LTE("created_at", opts.To.UTC())))
	}
	var out []LLMEvent
	err := r.gw.Select(ctx, TableLLMEvents, llmEventColumns, &out, sel...)
	return out, err
}

// GetLLMEvent returns one event, or nil when id is unknown.
func (r *LLMEventRepo) GetLLMEvent(ctx context.Context, id int) (*LLMEvent, error) {
	var out []LLMEvent
	if err := r.gw.Select(ctx, TableLLMEvents, llmEventColumns, &out,
		Where(entsql.EQ("id", id)), Limit(1)); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

type usageRow struct {
	Key          string  `sql:"key"`
	Calls        int     `sql:"calls"`
	InputTokens  int     `sql:"input_tokens"`
	OutputTokens int     `sql:"output_tokens"`
	AvgLatency   float64 `sql:"avg_latency"`
}

func (r *LLMEventRepo) usageBy(ctx context.Context, column string) ([]usageRow, error) {
	var rows []usageRow
	err := r.gw.Select(ctx, TableLLMEvents, []string{
		entsql.As(column, "key"),
		entsql.As(entsql.Count("*"), "calls"),
		entsql.As(entsql.Sum("input_tokens"), "input_tokens"),
		entsql.As(entsql.Sum("output_tokens"), "output_tokens"),
		entsql.As(entsql.Avg("latency_ms"), "avg_latency"),
	}, &rows, GroupBy(column), OrderBy(entsql.Asc(column)))
	return rows, err
}

// LLMUsageByPurpose aggregates calls and tokens per purpose.
func (r *LLMEventRepo) LLMUsageByPurpose(ctx context.Context) ([]PurposeUsage, error) {
	rows, err := r.usageBy(ctx, "purpose")
	if err != nil {
		return nil, err
	}
	out := make([]PurposeUsage, len(rows))
	for i, row := range rows {
		out[i] = PurposeUsage{
			Purpose:      row.Key,
			Calls:        row.Calls,
			InputTokens:  row.InputTokens,
			OutputTokens: row.OutputTokens,
			AvgLatencyMs: int64(row.AvgLatency),
		}
	}
	return out, nil
}

// LLMUsageByModel aggregates calls and tokens per model.
func (r *LLMEventRepo) LLMUsageByModel(ctx context.Context) ([]ModelUsage, error) {
	rows, err := r.usageBy(ctx, "model")
	if err != nil {
		return nil, err
	}
	out := make([]ModelUsage, len(rows))
	for i, row := range rows {
		out[i] = ModelUsage{
			Model:        row.Key,
			Calls:        row.Calls,
			InputTokens:  row.InputTokens,
			OutputTokens: row.OutputTokens,
		}
	}
	return out, nil
}
