// Package leaderboard ranks players and agencies from the append-only
// scoring rows. Rankings are computed at read time.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/publicis/arena/internal/store"
)

// Scope is the grouping dimension of a ranking.
type Scope string

const (
	ScopeGlobal   Scope = "global"
	ScopeCategory Scope = "category"
	ScopeLevel    Scope = "level"
	ScopeAgency   Scope = "agency"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100

	// Window is how many of the most recent rows a ranking considers.
	Window = 1000

	anonymous     = "Anonymous"
	unknownAgency = "Unknown"
)

// ErrAgencyRequired is returned for the agency scope without an agency.
var ErrAgencyRequired = errors.New("leaderboard: agency parameter required")

// ParseScope maps unknown values to ScopeGlobal.
func ParseScope(s string) Scope {
	switch Scope(s) {
	case ScopeCategory, ScopeLevel, ScopeAgency:
		return Scope(s)
	}
	return ScopeGlobal
}

// Query selects and pages a ranking.
type Query struct {
	Scope    Scope
	Category string
	Level    string
	Agency   string
	Limit    int
}

// Viewer identifies who is asking, for rank reporting.
type Viewer struct {
	UserID string
	Agency string
}

// Entry is one ranked line. Agency rankings leave the user fields empty.
type Entry struct {
	Position   int        `json:"position"`
	UserID     string     `json:"user_id,omitempty"`
	Name       string     `json:"name,omitempty"`
	Agency     string     `json:"agency"`
	Score      int        `json:"score"`
	LastPlayed *time.Time `json:"lastPlayed,omitempty"`
}

// Result is a ranking page plus the viewer's 1-based rank, nil when the
// viewer is absent from the full ranking.
type Result struct {
	Entries []Entry `json:"entries"`
	Rank    *int    `json:"rank"`
}

type group struct {
	key        string
	name       string
	agency     string
	total      int
	lastPlayed time.Time
}

// Aggregate ranks rows, which must be ordered newest first. viewer may be
// nil.
func Aggregate(rows []store.LeaderboardRow, q Query, viewer *Viewer) (Result, error) {
	q.Scope = ParseScope(string(q.Scope))
	if q.Scope == ScopeAgency && q.Agency == "" {
		return Result{}, ErrAgencyRequired
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	byAgency := q.Scope == ScopeAgency
	index := make(map[string]int)
	var groups []*group
	for _, row := range rows {
		if !matches(row, q) {
			continue
		}
		key := row.UserID
		if byAgency {
			key = agencyOf(row)
		}
		i, ok := index[key]
		if !ok {
			name := row.Name
			if name == "" {
				name = anonymous
			}
			i = len(groups)
			index[key] = i
			groups = append(groups, &group{key: key, name: name, agency: agencyOf(row)})
		}
		g := groups[i]
		g.total += row.Score
		if row.OccurredAt.After(g.lastPlayed) {
			g.lastPlayed = row.OccurredAt
		}
	}

	sort.SliceStable(groups, func(a, b int) bool { return groups[a].total > groups[b].total })

	res := Result{Entries: make([]Entry, 0, min(limit, len(groups)))}
	for i, g := range groups {
		if i < limit {
			res.Entries = append(res.Entries, g.entry(i+1, byAgency))
		}
		if viewer != nil && res.Rank == nil && g.key == viewerKey(*viewer, byAgency) {
			rank := i + 1
			res.Rank = &rank
		}
	}
	return res, nil
}

func matches(row store.LeaderboardRow, q Query) bool {
	switch {
	case q.Scope == ScopeCategory && q.Category != "":
		return row.CategorySlug == q.Category
	case q.Scope == ScopeLevel && q.Level != "":
		return row.LevelSlug == q.Level
	case q.Scope == ScopeAgency:
		return row.Agency == q.Agency
	}
	return true
}

func agencyOf(row store.LeaderboardRow) string {
	if row.Agency == "" {
		return unknownAgency
	}
	return row.Agency
}

func viewerKey(v Viewer, byAgency bool) string {
	if byAgency {
		return v.Agency
	}
	return v.UserID
}

func (g *group) entry(position int, byAgency bool) Entry {
	if byAgency {
		return Entry{Position: position, Agency: g.key, Score: g.total}
	}
	played := g.lastPlayed
	return Entry{
		Position:   position,
		UserID:     g.key,
		Name:       g.name,
		Agency:     g.agency,
		Score:      g.total,
		LastPlayed: &played,
	}
}

// RowSource loads the most recent scoring rows, newest first.
type RowSource interface {
	Recent(ctx context.Context, n int) ([]store.LeaderboardRow, error)
}

// Board serves rankings from a RowSource.
type Board struct {
	rows RowSource
}

// NewBoard returns a Board reading from rows.
func NewBoard(rows RowSource) *Board {
	return &Board{rows: rows}
}

// Rank loads the recent window and aggregates it.
func (b *Board) Rank(ctx context.Context, q Query, viewer *Viewer) (Result, error) {
	if ParseScope(string(q.Scope)) == ScopeAgency && q.Agency == "" {
		return Result{}, ErrAgencyRequired
	}
	rows, err := b.rows.Recent(ctx, Window)
	if err != nil {
		return Result{}, fmt.Errorf("load leaderboard rows: %w", err)
	}
	return Aggregate(rows, q, viewer)
}
