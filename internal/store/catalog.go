package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

// DefaultCategories are seeded by SeedDefaults, as slug/label pairs.
var DefaultCategories = [][2]string{
	{"media-planning", "Media Planning"},
	{"performance", "Performance"},
	{"seo", "SEO"},
	{"creative", "Creative"},
	{"strategy", "Strategy"},
}

// DefaultLevels are seeded by SeedDefaults, as slug/label pairs.
var DefaultLevels = [][2]string{
	{"beginner", "Beginner"},
	{"intermediate", "Intermediate"},
	{"expert", "Expert"},
}

var catalogColumns = []string{"id", "slug", "label"}

// CatalogRepo reads and seeds pk_categories and pk_levels.
type CatalogRepo struct {
	gw *Gateway
}

// Categories returns all categories ordered by label.
func (r *CatalogRepo) Categories(ctx context.Context) ([]Category, error) {
	var out []Category
	err := r.gw.Select(ctx, TableCategories, catalogColumns, &out, OrderBy(entsql.Asc("label")))
	return out, err
}

// Levels returns all levels ordered by label.
func (r *CatalogRepo) Levels(ctx context.Context) ([]Level, error) {
	var out []Level
	err := r.gw.Select(ctx, TableLevels, catalogColumns, &out, OrderBy(entsql.Asc("label")))
	return out, err
}

// CategoryExists reports whether a category with slug exists.
func (r *CatalogRepo) CategoryExists(ctx context.Context, slug string) (bool, error) {
	n, err := r.gw.Count(ctx, TableCategories, Where(entsql.EQ("slug", slug)))
	return n > 0, err
}

// LevelExists reports whether a level with slug exists.
func (r *CatalogRepo) LevelExists(ctx context.Context, slug string) (bool, error) {
	n, err := r.gw.Count(ctx, TableLevels, Where(entsql.EQ("slug", slug)))
	return n > 0, err
}

// SeedDefaults inserts the default categories and levels. Existing slugs
// keep their id and get their label refreshed.
func (r *CatalogRepo) SeedDefaults(ctx context.Context) error {
	seed := func(table string, pairs [][2]string) error {
		for _, p := range pairs {
			row := Row{"id": uuid.NewString(), "slug": p[0], "label": p[1]}
			if err := r.gw.Upsert(ctx, table, row, []string{"slug"}, "label"); err != nil {
				return fmt.Errorf("seed %s: %w", p[0], err)
			}
		}
		return nil
	}
	if err := seed(TableCategories, DefaultCategories); err != nil {
		return err
	}
	return seed(TableLevels, DefaultLevels)
}
