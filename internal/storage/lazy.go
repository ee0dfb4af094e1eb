package storage

import (
	"context"
	"sync"
	"time"

	"admindash/internal/record"
)

type Opener func(ctx context.Context) (Store, error)

// Lazy opens the underlying store on first use and shares it afterwards.
// A failed open is not remembered; the next call tries again.
type Lazy struct {
	open Opener

	mu    sync.Mutex
	store Store
}

var _ Store = (*Lazy)(nil)

func NewLazy(open Opener) *Lazy {
	return &Lazy{open: open}
}

func (l *Lazy) Get(ctx context.Context) (Store, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store != nil {
		return l.store, nil
	}
	s, err := l.open(ctx)
	if err != nil {
		return nil, storeErr("connect", "", err)
	}
	l.store = s
	return s, nil
}

func (l *Lazy) Count(ctx context.Context, coll Collection, f Filter) (int64, error) {
	s, err := l.Get(ctx)
	if err != nil {
		return 0, err
	}
	return s.Count(ctx, coll, f)
}

func (l *Lazy) Find(ctx context.Context, coll Collection, f Filter, opts FindOptions) ([]record.Document, error) {
	s, err := l.Get(ctx)
	if err != nil {
		return nil, err
	}
	return s.Find(ctx, coll, f, opts)
}

func (l *Lazy) FindByID(ctx context.Context, coll Collection, id string) (record.Document, error) {
	s, err := l.Get(ctx)
	if err != nil {
		return nil, err
	}
	return s.FindByID(ctx, coll, id)
}

func (l *Lazy) CountDistinct(ctx context.Context, coll Collection, field string, f Filter) (int64, error) {
	s, err := l.Get(ctx)
	if err != nil {
		return 0, err
	}
	return s.CountDistinct(ctx, coll, field, f)
}

func (l *Lazy) Sum(ctx context.Context, coll Collection, field string, f Filter) (int64, error) {
	s, err := l.Get(ctx)
	if err != nil {
		return 0, err
	}
	return s.Sum(ctx, coll, field, f)
}

func (l *Lazy) Avg(ctx context.Context, coll Collection, field string, f Filter) (float64, bool, error) {
	s, err := l.Get(ctx)
	if err != nil {
		return 0, false, err
	}
	return s.Avg(ctx, coll, field, f)
}

func (l *Lazy) DailyTotals(ctx context.Context, coll Collection, dateField, sumField string, since time.Time) ([]DayTotal, error) {
	s, err := l.Get(ctx)
	if err != nil {
		return nil, err
	}
	return s.DailyTotals(ctx, coll, dateField, sumField, since)
}

func (l *Lazy) Insert(ctx context.Context, coll Collection, docs []record.Document) error {
	s, err := l.Get(ctx)
	if err != nil {
		return err
	}
	return s.Insert(ctx, coll, docs)
}

func (l *Lazy) Ping(ctx context.Context) error {
	s, err := l.Get(ctx)
	if err != nil {
		return err
	}
	return s.Ping(ctx)
}

// Close releases the store if it was ever opened.
func (l *Lazy) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store == nil {
		return nil
	}
	err := l.store.Close(ctx)
	l.store = nil
	return err
}
