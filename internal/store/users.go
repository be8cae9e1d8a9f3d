package store

import (
	"context"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

var userColumns = []string{"id", "name", "agency", "function", "created_at"}

// UserRepo reads and writes pk_users.
type UserRepo struct {
	gw *Gateway
}

// Upsert creates the user or overwrites name, agency and function of an
// existing row with the same id. CreatedAt defaults to now.
func (r *UserRepo) Upsert(ctx context.Context, u User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	return r.gw.Upsert(ctx, TableUsers, Row{
		"id":         u.ID,
		"name":       u.Name,
		"agency":     u.Agency,
		"function":   u.Function,
		"created_at": u.CreatedAt,
	}, []string{"id"}, "name", "agency", "function")
}

// Get returns the user with id, or nil when there is none.
func (r *UserRepo) Get(ctx context.Context, id string) (*User, error) {
	var users []User
	if err := r.gw.Select(ctx, TableUsers, userColumns, &users,
		Where(entsql.EQ("id", id)), Limit(1)); err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

// ListByIDs returns the users among ids that exist, in no particular order.
func (r *UserRepo) ListByIDs(ctx context.Context, ids []string) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []User
	err := r.gw.Select(ctx, TableUsers, userColumns, &users, Where(entsql.In("id", anySlice(ids)...)))
	return users, err
}

func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// nullIfEmpty maps "" to SQL NULL for optional text columns.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
