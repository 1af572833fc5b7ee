// Package sqlstore answers aggregate requests with SQL over database/sql.
// The segment classifier is compiled into a CASE expression so that only
// per-segment counts leave the database.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/godilite/rfm-insights/internal/segment"
	"github.com/godilite/rfm-insights/internal/store"
)

const defaultTable = "customers"

type Store struct {
	db      *sql.DB
	dialect Dialect
	table   string
}

type Option func(*Store)

func WithDialect(d Dialect) Option {
	return func(s *Store) { s.dialect = d }
}

func WithTable(table string) Option {
	return func(s *Store) { s.table = table }
}

// New wraps an open pool. The pool is owned by the store and released by Close.
func New(db *sql.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: nil database handle")
	}
	s := &Store{db: db, dialect: SQLite, table: defaultTable}
	for _, opt := range opts {
		opt(s)
	}
	if err := store.ValidateField(s.table); err != nil {
		return nil, fmt.Errorf("table name: %w", err)
	}
	return s, nil
}

func (s *Store) Close(context.Context) error {
	return s.db.Close()
}

func (s *Store) Dialect() Dialect { return s.dialect }

func (s *Store) from() string { return s.dialect.Quote(s.table) }

func (s *Store) Average(ctx context.Context, field string) (*float64, error) {
	if err := store.ValidateField(field); err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT AVG(%s) FROM %s", s.dialect.Quote(field), s.from())

	var avg sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, query).Scan(&avg); err != nil {
		return nil, store.Retrieval("Average", err)
	}
	if !avg.Valid {
		return nil, nil
	}
	v := avg.Float64
	return &v, nil
}

func (s *Store) TotalCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+s.from()).Scan(&n); err != nil {
		return 0, store.Retrieval("TotalCount", err)
	}
	return n, nil
}

func (s *Store) CountWhere(ctx context.Context, field, value string) (int64, error) {
	if err := store.ValidateField(field); err != nil {
		return 0, err
	}
	b := newBuilder(s.dialect)
	b.writef("SELECT COUNT(*) FROM %s WHERE %s = %s", s.from(), s.dialect.Quote(field), b.arg(value))

	var n int64
	if err := s.db.QueryRowContext(ctx, b.String(), b.args...).Scan(&n); err != nil {
		return 0, store.Retrieval("CountWhere", err)
	}
	return n, nil
}

func (s *Store) CountByTerms(ctx context.Context, field string, limit int) (map[string]int64, error) {
	if err := store.ValidateField(field); err != nil {
		return nil, err
	}
	col := s.dialect.Quote(field)
	query := fmt.Sprintf(
		"SELECT %s, COUNT(*) AS n FROM %s WHERE %s IS NOT NULL GROUP BY %s ORDER BY n DESC, %s%s",
		col, s.from(), col, col, col, limitClause(limit))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, store.Retrieval("CountByTerms", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var key sql.NullString
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return nil, store.Retrieval("CountByTerms scan", err)
		}
		out[key.String] = n
	}
	if err := rows.Err(); err != nil {
		return nil, store.Retrieval("CountByTerms iterate", err)
	}
	return out, nil
}

var sqlAggs = map[store.AggKind]string{
	store.AggAvg:   "AVG",
	store.AggSum:   "SUM",
	store.AggMin:   "MIN",
	store.AggMax:   "MAX",
	store.AggCount: "COUNT",
}

func (s *Store) MetricByGroup(ctx context.Context, metricField string, agg store.AggKind, groupField string, limit int) (map[string]float64, error) {
	if err := store.ValidateFields(metricField, groupField); err != nil {
		return nil, err
	}
	fn, ok := sqlAggs[agg]
	if !ok {
		return nil, fmt.Errorf("%w: %q", store.ErrInvalidAgg, agg)
	}
	group := s.dialect.Quote(groupField)
	query := fmt.Sprintf(
		"SELECT %s, %s(%s) AS v FROM %s WHERE %s IS NOT NULL GROUP BY %s ORDER BY COUNT(*) DESC, %s%s",
		group, fn, s.dialect.Quote(metricField), s.from(), group, group, group, limitClause(limit))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, store.Retrieval("MetricByGroup", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var key sql.NullString
		var v sql.NullFloat64
		if err := rows.Scan(&key, &v); err != nil {
			return nil, store.Retrieval("MetricByGroup scan", err)
		}
		out[key.String] = v.Float64
	}
	if err := rows.Err(); err != nil {
		return nil, store.Retrieval("MetricByGroup iterate", err)
	}
	return out, nil
}

// Percentiles ranks every requested field with window functions in a single
// UNION ALL query, fetching only the rows adjacent to each percentile, and
// interpolates between them.
func (s *Store) Percentiles(ctx context.Context, reqs ...store.PercentileRequest) (map[string]map[float64]float64, error) {
	if err := store.ValidatePercentiles(reqs); err != nil {
		return nil, err
	}
	out := make(map[string]map[float64]float64, len(reqs))
	if len(reqs) == 0 {
		return out, nil
	}

	query := s.percentileQuery(reqs)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, store.Retrieval("Percentiles", err)
	}
	defer rows.Close()

	type ranked struct {
		n      int64
		values map[int64]float64
	}
	fields := make([]ranked, len(reqs))
	for rows.Next() {
		var idx int
		var v sql.NullFloat64
		var rn, cnt int64
		if err := rows.Scan(&idx, &v, &rn, &cnt); err != nil {
			return nil, store.Retrieval("Percentiles scan", err)
		}
		if idx < 0 || idx >= len(fields) {
			continue
		}
		if fields[idx].values == nil {
			fields[idx].values = make(map[int64]float64)
		}
		fields[idx].n = cnt
		fields[idx].values[rn-1] = v.Float64
	}
	if err := rows.Err(); err != nil {
		return nil, store.Retrieval("Percentiles iterate", err)
	}

	for i, req := range reqs {
		f := fields[i]
		pcts := make(map[float64]float64)
		for _, p := range req.Percents {
			v, ok := store.Interpolate(f.n, p, func(rank int64) (float64, bool) {
				val, found := f.values[rank]
				return val, found
			})
			if ok {
				pcts[p] = v
			}
		}
		out[req.Field] = pcts
	}
	return out, nil
}

func (s *Store) percentileQuery(reqs []store.PercentileRequest) string {
	parts := make([]string, 0, len(reqs))
	for i, req := range reqs {
		col := s.dialect.Quote(req.Field)
		conds := make([]string, 0, 2*len(req.Percents))
		for _, p := range req.Percents {
			lo := s.dialect.Floor(fmt.Sprintf("(cnt - 1) * %s", sqlFloat(p/100)))
			conds = append(conds, fmt.Sprintf("rn = %s + 1", lo), fmt.Sprintf("rn = %s + 2", lo))
		}
		parts = append(parts, fmt.Sprintf(
			"SELECT %d AS idx, v, rn, cnt FROM (SELECT %s AS v, ROW_NUMBER() OVER (ORDER BY %s) AS rn, COUNT(*) OVER () AS cnt FROM %s WHERE %s IS NOT NULL) AS ranked_%d WHERE %s",
			i, col, col, s.from(), col, i, strings.Join(conds, " OR ")))
	}
	return strings.Join(parts, " UNION ALL ")
}

// SegmentCounts evaluates the classifier inside the database.
func (s *Store) SegmentCounts(ctx context.Context, c *segment.Classifier, limit int) (map[string]int64, error) {
	query, args, err := compileSegmentQuery(s.dialect, s.table, c, limit)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.Retrieval("SegmentCounts", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var label string
		var n int64
		if err := rows.Scan(&label, &n); err != nil {
			return nil, store.Retrieval("SegmentCounts scan", err)
		}
		out[label] = n
	}
	if err := rows.Err(); err != nil {
		return nil, store.Retrieval("SegmentCounts iterate", err)
	}
	return out, nil
}

func limitClause(limit int) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", limit)
}
