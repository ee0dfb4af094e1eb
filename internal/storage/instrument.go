package storage

import (
	"context"
	"errors"
	"time"

	"admindash/internal/metrics"
	"admindash/internal/record"
)

type instrumented struct {
	next Store
	m    *metrics.Metrics
}

// Instrument records latency and failures of every store call. A missing
// record is not counted as a failure.
func Instrument(s Store, m *metrics.Metrics) Store {
	return &instrumented{next: s, m: m}
}

func (i *instrumented) observe(op string, coll Collection, start time.Time, err error) {
	i.m.StoreOps.WithLabelValues(op, string(coll)).Observe(time.Since(start).Seconds())
	if err != nil && !errors.Is(err, ErrNotFound) {
		i.m.StoreErrors.WithLabelValues(op, string(coll)).Inc()
	}
}

func (i *instrumented) Count(ctx context.Context, coll Collection, f Filter) (n int64, err error) {
	defer func(start time.Time) { i.observe("count", coll, start, err) }(time.Now())
	return i.next.Count(ctx, coll, f)
}

func (i *instrumented) Find(ctx context.Context, coll Collection, f Filter, opts FindOptions) (docs []record.Document, err error) {
	defer func(start time.Time) { i.observe("find", coll, start, err) }(time.Now())
	return i.next.Find(ctx, coll, f, opts)
}

func (i *instrumented) FindByID(ctx context.Context, coll Collection, id string) (doc record.Document, err error) {
	defer func(start time.Time) { i.observe("find_by_id", coll, start, err) }(time.Now())
	return i.next.FindByID(ctx, coll, id)
}

func (i *instrumented) CountDistinct(ctx context.Context, coll Collection, field string, f Filter) (n int64, err error) {
	defer func(start time.Time) { i.observe("count_distinct", coll, start, err) }(time.Now())
	return i.next.CountDistinct(ctx, coll, field, f)
}

func (i *instrumented) Sum(ctx context.Context, coll Collection, field string, f Filter) (n int64, err error) {
	defer func(start time.Time) { i.observe("sum", coll, start, err) }(time.Now())
	return i.next.Sum(ctx, coll, field, f)
}

func (i *instrumented) Avg(ctx context.Context, coll Collection, field string, f Filter) (avg float64, ok bool, err error) {
	defer func(start time.Time) { i.observe("avg", coll, start, err) }(time.Now())
	return i.next.Avg(ctx, coll, field, f)
}

func (i *instrumented) DailyTotals(ctx context.Context, coll Collection, dateField, sumField string, since time.Time) (days []DayTotal, err error) {
	defer func(start time.Time) { i.observe("daily_totals", coll, start, err) }(time.Now())
	return i.next.DailyTotals(ctx, coll, dateField, sumField, since)
}

func (i *instrumented) Insert(ctx context.Context, coll Collection, docs []record.Document) (err error) {
	defer func(start time.Time) { i.observe("insert", coll, start, err) }(time.Now())
	return i.next.Insert(ctx, coll, docs)
}

func (i *instrumented) Ping(ctx context.Context) (err error) {
	defer func(start time.Time) { i.observe("ping", "", start, err) }(time.Now())
	return i.next.Ping(ctx)
}

func (i *instrumented) Close(ctx context.Context) error {
	return i.next.Close(ctx)
}
