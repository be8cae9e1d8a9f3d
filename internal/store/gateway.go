package store

import (
	"context"
	"slices"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

// Row is a column-name to value mapping used for writes.
type Row map[string]any

func (r Row) columns() []string {
	cols := make([]string, 0, len(r))
	for c := range r {
		cols = append(cols, c)
	}
	slices.Sort(cols)
	return cols
}

func (r Row) values(cols []string) []any {
	vals := make([]any, len(cols))
	for i, c := range cols {
		vals[i] = r[c]
	}
	return vals
}

// SelectOption shapes a Select query.
type SelectOption func(*entsql.Selector)

// Where adds a predicate. Repeated Where options are ANDed.
func Where(p *entsql.Predicate) SelectOption {
	return func(s *entsql.Selector) { s.Where(p) }
}

// OrderBy appends order terms, e.g. entsql.Desc("created_at").
func OrderBy(terms ...string) SelectOption {
	return func(s *entsql.Selector) { s.OrderBy(terms...) }
}

// GroupBy groups the result by columns.
func GroupBy(columns ...string) SelectOption {
	return func(s *entsql.Selector) { s.GroupBy(columns...) }
}

// Limit caps the number of returned rows. Non-positive values are ignored.
func Limit(n int) SelectOption {
	return func(s *entsql.Selector) {
		if n > 0 {
			s.Limit(n)
		}
	}
}

// Gateway is a small table-oriented facade over an ent SQL driver. It is the
// only code in the package that builds SQL.
type Gateway struct {
	drv     dialect.Driver
	dialect string
}

// NewGateway wraps drv.
func NewGateway(drv dialect.Driver) *Gateway {
	return &Gateway{drv: drv, dialect: drv.Dialect()}
}

func (g *Gateway) builder() *entsql.DialectBuilder {
	return entsql.Dialect(g.dialect)
}

// Select reads columns from table into dest, a pointer to a slice of
// structs whose fields carry `sql` tags.
func (g *Gateway) Select(ctx context.Context, table string, columns []string, dest any, opts ...SelectOption) error {
	b := g.builder()
	sel := b.Select(columns...).From(b.Table(table))
	for _, opt := range opts {
		opt(sel)
	}
	query, args := sel.Query()

	var rows entsql.Rows
	if err := g.drv.Query(ctx, query, args, &rows); err != nil {
		return wrapErr("select", table, err)
	}
	defer rows.Close()
	return wrapErr("scan", table, entsql.ScanSlice(rows, dest))
}

// Count returns the number of rows in table matching opts.
func (g *Gateway) Count(ctx context.Context, table string, opts ...SelectOption) (int, error) {
	b := g.builder()
	sel := b.Select().From(b.Table(table))
	for _, opt := range opts {
		opt(sel)
	}
	sel.Count()
	query, args := sel.Query()

	var rows entsql.Rows
	if err := g.drv.Query(ctx, query, args, &rows); err != nil {
		return 0, wrapErr("count", table, err)
	}
	defer rows.Close()
	n, err := entsql.ScanInt(rows)
	return n, wrapErr("count", table, err)
}

// Insert writes one row.
func (g *Gateway) Insert(ctx context.Context, table string, row Row) error {
	cols := row.columns()
	query, args := g.builder().Insert(table).Columns(cols...).Values(row.values(cols)...).Query()
	return wrapErr("insert", table, g.drv.Exec(ctx, query, args, nil))
}

// InsertMany writes rows in a single statement. All rows must share the
// column set of the first.
func (g *Gateway) InsertMany(ctx context.Context, table string, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	cols := rows[0].columns()
	ins := g.builder().Insert(table).Columns(cols...)
	for _, r := range rows {
		ins.Values(r.values(cols)...)
	}
	query, args := ins.Query()
	return wrapErr("insert", table, g.drv.Exec(ctx, query, args, nil))
}

// Upsert inserts row, or on a conflict over conflictCols overwrites the
// update columns with the new values. With no update columns every column
// outside conflictCols is overwritten.
func (g *Gateway) Upsert(ctx context.Context, table string, row Row, conflictCols []string, update ...string) error {
	cols := row.columns()
	if len(update) == 0 {
		for _, c := range cols {
			if !slices.Contains(conflictCols, c) {
				update = append(update, c)
			}
		}
	}
	ins := g.builder().Insert(table).Columns(cols...).Values(row.values(cols)...)
	if len(update) == 0 {
		ins.OnConflict(entsql.ConflictColumns(conflictCols...), entsql.DoNothing())
	} else {
		ins.OnConflict(
			entsql.ConflictColumns(conflictCols...),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				for _, c := range update {
					u.SetExcluded(c)
				}
			}),
		)
	}
	query, args := ins.Query()
	return wrapErr("upsert", table, g.drv.Exec(ctx, query, args, nil))
}

// Update sets columns on rows matching where and returns the affected count.
func (g *Gateway) Update(ctx context.Context, table string, set Row, where *entsql.Predicate) (int64, error) {
	upd := g.builder().Update(table)
	for _, c := range set.columns() {
		upd.Set(c, set[c])
	}
	if where != nil {
		upd.Where(where)
	}
	query, args := upd.Query()

	var res entsql.Result
	if err := g.drv.Exec(ctx, query, args, &res); err != nil {
		return 0, wrapErr("update", table, err)
	}
	n, err := res.RowsAffected()
	return n, wrapErr("update", table, err)
}
