package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"admindash/internal/record"
)

func (s *SQLStore) Count(ctx context.Context, coll Collection, f Filter) (int64, error) {
	t, err := tableFor(coll)
	if err != nil {
		return 0, storeErr("count", coll, err)
	}
	q, err := s.where(s.sql.Select("COUNT(*)").From(t.name), t, f)
	if err != nil {
		return 0, storeErr("count", coll, err)
	}
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return 0, storeErr("count", coll, fmt.Errorf("build count query: %w", err))
	}
	var n int64
	if err := s.db.GetContext(ctx, &n, sqlStr, args...); err != nil {
		return 0, storeErr("count", coll, err)
	}
	return n, nil
}

func (s *SQLStore) Find(ctx context.Context, coll Collection, f Filter, opts FindOptions) ([]record.Document, error) {
	t, err := tableFor(coll)
	if err != nil {
		return nil, storeErr("find", coll, err)
	}
	q, err := s.where(s.sql.Select("doc").From(t.name), t, f)
	if err != nil {
		return nil, storeErr("find", coll, err)
	}
	if opts.SortField != "" {
		c, err := t.column(opts.SortField)
		if err != nil {
			return nil, storeErr("find", coll, err)
		}
		dir := "ASC"
		if opts.Descending {
			dir = "DESC"
		}
		q = q.OrderBy(c.name+" IS NULL", c.name+" "+dir, "id "+dir)
	}
	if opts.Skip > 0 {
		q = q.Offset(uint64(opts.Skip))
	}
	if opts.Limit > 0 {
		q = q.Limit(uint64(opts.Limit))
	}
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, storeErr("find", coll, fmt.Errorf("build find query: %w", err))
	}

	var raw []string
	if err := s.db.SelectContext(ctx, &raw, sqlStr, args...); err != nil {
		return nil, storeErr("find", coll, err)
	}
	out := make([]record.Document, 0, len(raw))
	for _, r := range raw {
		doc, err := decodeDoc(r)
		if err != nil {
			return nil, storeErr("find", coll, err)
		}
		out = append(out, doc)
	}
	return out, nil
}

func (s *SQLStore) FindByID(ctx context.Context, coll Collection, id string) (record.Document, error) {
	t, err := tableFor(coll)
	if err != nil {
		return nil, storeErr("find by id", coll, err)
	}
	sqlStr, args, err := s.sql.Select("doc").From(t.name).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, storeErr("find by id", coll, fmt.Errorf("build find by id query: %w", err))
	}
	var raw string
	if err := s.db.GetContext(ctx, &raw, sqlStr, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storeErr("find by id", coll, err)
	}
	doc, err := decodeDoc(raw)
	if err != nil {
		return nil, storeErr("find by id", coll, err)
	}
	return doc, nil
}

func (s *SQLStore) CountDistinct(ctx context.Context, coll Collection, field string, f Filter) (int64, error) {
	var n int64
	err := s.aggregate(ctx, "count distinct", coll, field, "COUNT(DISTINCT %s)", f, &n)
	return n, err
}

func (s *SQLStore) Sum(ctx context.Context, coll Collection, field string, f Filter) (int64, error) {
	var n int64
	err := s.aggregate(ctx, "sum", coll, field, "CAST(COALESCE(SUM(%s), 0) AS BIGINT)", f, &n)
	return n, err
}

func (s *SQLStore) Avg(ctx context.Context, coll Collection, field string, f Filter) (float64, bool, error) {
	var avg sql.NullFloat64
	if err := s.aggregate(ctx, "avg", coll, field, "CAST(AVG(%s) AS DOUBLE PRECISION)", f, &avg); err != nil {
		return 0, false, err
	}
	return avg.Float64, avg.Valid, nil
}

func (s *SQLStore) aggregate(ctx context.Context, op string, coll Collection, field, expr string, f Filter, dest any) error {
	t, err := tableFor(coll)
	if err != nil {
		return storeErr(op, coll, err)
	}
	c, err := t.column(field)
	if err != nil {
		return storeErr(op, coll, err)
	}
	q, err := s.where(s.sql.Select(fmt.Sprintf(expr, c.name)).From(t.name), t, f)
	if err != nil {
		return storeErr(op, coll, err)
	}
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return storeErr(op, coll, fmt.Errorf("build %s query: %w", op, err))
	}
	if err := s.db.GetContext(ctx, dest, sqlStr, args...); err != nil {
		return storeErr(op, coll, err)
	}
	return nil
}

type dayRow struct {
	Day   string `db:"day"`
	Count int64  `db:"query_count"`
	Sum   int64  `db:"token_sum"`
}

func (s *SQLStore) DailyTotals(ctx context.Context, coll Collection, dateField, sumField string, since time.Time) ([]DayTotal, error) {
	t, err := tableFor(coll)
	if err != nil {
		return nil, storeErr("daily totals", coll, err)
	}
	if t.dayField == "" || t.dayField != dateField {
		return nil, storeErr("daily totals", coll, fmt.Errorf("no day projection for %q", dateField))
	}
	dateCol, err := t.column(dateField)
	if err != nil {
		return nil, storeErr("daily totals", coll, err)
	}
	sumCol, err := t.column(sumField)
	if err != nil {
		return nil, storeErr("daily totals", coll, err)
	}

	q := s.sql.Select(
		"day",
		"COUNT(*) AS query_count",
		fmt.Sprintf("CAST(COALESCE(SUM(%s), 0) AS BIGINT) AS token_sum", sumCol.name),
	).
		From(t.name).
		Where(sq.And{sq.GtOrEq{dateCol.name: since.UnixMilli()}, sq.NotEq{"day": nil}}).
		GroupBy("day").
		OrderBy("day ASC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, storeErr("daily totals", coll, fmt.Errorf("build daily totals query: %w", err))
	}

	var rows []dayRow
	if err := s.db.SelectContext(ctx, &rows, sqlStr, args...); err != nil {
		return nil, storeErr("daily totals", coll, err)
	}
	out := make([]DayTotal, 0, len(rows))
	for _, r := range rows {
		out = append(out, DayTotal{Day: r.Day, Count: r.Count, Sum: r.Sum})
	}
	return out, nil
}

// Insert upserts documents by id inside one transaction.
func (s *SQLStore) Insert(ctx context.Context, coll Collection, docs []record.Document) error {
	t, err := tableFor(coll)
	if err != nil {
		return storeErr("insert", coll, err)
	}

	cols := []string{"id", "doc"}
	updates := []string{"doc=excluded.doc"}
	for _, c := range t.columns {
		cols = append(cols, c.name)
		updates = append(updates, c.name+"=excluded."+c.name)
	}
	if t.dayField != "" {
		cols = append(cols, "day")
		updates = append(updates, "day=excluded.day")
	}
	suffix := "ON CONFLICT(id) DO UPDATE SET " + strings.Join(updates, ", ")

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return storeErr("insert", coll, fmt.Errorf("begin tx: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	for i, doc := range docs {
		r, err := t.project(doc)
		if err != nil {
			return storeErr("insert", coll, fmt.Errorf("document #%d: %w", i, err))
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return storeErr("insert", coll, fmt.Errorf("encode document %q: %w", r.id, err))
		}
		values := append([]any{r.id, string(raw)}, r.values...)
		if t.dayField != "" {
			values = append(values, r.day)
		}

		sqlStr, args, err := s.sql.Insert(t.name).Columns(cols...).Values(values...).Suffix(suffix).ToSql()
		if err != nil {
			return storeErr("insert", coll, fmt.Errorf("build insert query: %w", err))
		}
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return storeErr("insert", coll, fmt.Errorf("insert %q: %w", r.id, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return storeErr("insert", coll, fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (s *SQLStore) where(q sq.SelectBuilder, t table, f Filter) (sq.SelectBuilder, error) {
	var clauses sq.And

	if f.Search != nil && f.Search.Term != "" {
		pattern := likePattern(f.Search.Term)
		var or sq.Or
		for _, field := range f.Search.Fields {
			c, err := t.column(field)
			if err != nil {
				return q, err
			}
			or = append(or, sq.Expr("LOWER("+c.name+") LIKE ? ESCAPE '\\'", pattern))
		}
		if len(or) > 0 {
			clauses = append(clauses, or)
		}
	}

	for _, field := range sortedKeys(f.Equals) {
		c, err := t.column(field)
		if err != nil {
			return q, err
		}
		clauses = append(clauses, sq.Eq{c.name: f.Equals[field]})
	}

	if len(f.AnyEqual) > 0 {
		var or sq.Or
		for _, field := range sortedKeys(f.AnyEqual) {
			c, err := t.column(field)
			if err != nil {
				return q, err
			}
			or = append(or, sq.Eq{c.name: f.AnyEqual[field]})
		}
		clauses = append(clauses, or)
	}

	if f.IDs != nil {
		clauses = append(clauses, sq.Eq{"id": f.IDs})
	}
	if f.ExcludeID != "" {
		clauses = append(clauses, sq.NotEq{"id": f.ExcludeID})
	}

	if f.Since != nil {
		c, err := t.column(f.Since.Field)
		if err != nil {
			return q, err
		}
		if c.kind != instantColumn {
			return q, fmt.Errorf("field %q is not an instant", f.Since.Field)
		}
		clauses = append(clauses, sq.GtOrEq{c.name: f.Since.From.UnixMilli()})
	}

	if len(clauses) == 0 {
		return q, nil
	}
	return q.Where(clauses), nil
}

func decodeDoc(raw string) (record.Document, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var doc record.Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
