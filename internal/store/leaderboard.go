package store

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

var leaderboardColumns = []string{
	"id", "user_id", "agency", "category_slug", "level_slug", "score", "occurred_at",
}

// LeaderboardRepo reads and appends pk_leaderboard rows.
type LeaderboardRepo struct {
	gw *Gateway
}

// Append inserts one scoring row. OccurredAt defaults to now.
func (r *LeaderboardRepo) Append(ctx context.Context, e LeaderboardRow) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	return r.gw.Insert(ctx, TableLeaderboard, Row{
		"id":            e.ID,
		"user_id":       e.UserID,
		"agency":        e.Agency,
		"category_slug": nullIfEmpty(e.CategorySlug),
		"level_slug":    nullIfEmpty(e.LevelSlug),
		"score":         e.Score,
		"occurred_at":   e.OccurredAt,
	})
}

// Recent returns the latest n rows, newest first, with user names filled.
func (r *LeaderboardRepo) Recent(ctx context.Context, n int) ([]LeaderboardRow, error) {
	var rows []LeaderboardRow
	if err := r.gw.Select(ctx, TableLeaderboard, leaderboardColumns, &rows,
		OrderBy(entsql.Desc("occurred_at"), entsql.Desc("id")), Limit(n)); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var ids []string
	for _, row := range rows {
		if !seen[row.UserID] {
			seen[row.UserID] = true
			ids = append(ids, row.UserID)
		}
	}
	users, err := (&UserRepo{gw: r.gw}).ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load leaderboard names: %w", err)
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}
	for i := range rows {
		rows[i].Name = names[rows[i].UserID]
	}
	return rows, nil
}
