package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"admindash/internal/record"
	"admindash/internal/storage"
)

type UserList struct {
	Users      []record.User `json:"users"`
	Stats      UserStats     `json:"stats"`
	Pagination Pagination    `json:"pagination"`
}

type UserStats struct {
	TotalUsers  int64 `json:"totalUsers"`
	ActiveUsers int64 `json:"activeUsers"`
	TotalTokens int64 `json:"totalTokens"`
}

type QueryList struct {
	Queries    []record.Query `json:"queries"`
	Stats      QueryStats     `json:"stats"`
	Pagination Pagination     `json:"pagination"`
}

type QueryStats struct {
	TotalQueries int64 `json:"totalQueries"`
	ActiveUsers  int64 `json:"activeUsers"`
	AvgTokens    int64 `json:"avgTokens"`
}

type ErrorList struct {
	Errors     []record.ErrorEvent `json:"errors"`
	Stats      ErrorStats          `json:"stats"`
	Pagination Pagination          `json:"pagination"`
}

type ErrorStats struct {
	TotalErrors      int64 `json:"totalErrors"`
	UnresolvedErrors int64 `json:"unresolvedErrors"`
	AffectedUsers    int64 `json:"affectedUsers"`
}

// page holds the filtered total and one page of raw documents.
type page struct {
	total int64
	docs  []record.Document
}

func (s *Service) fetchPage(ctx context.Context, g *errgroup.Group, coll storage.Collection, f storage.Filter, sortField string, pageNo, limit int, out *page) {
	g.Go(func() error {
		n, err := s.store.Count(ctx, coll, f)
		out.total = n
		return err
	})
	skip, ok := pageOffset(pageNo, limit)
	if !ok {
		return
	}
	g.Go(func() error {
		docs, err := s.store.Find(ctx, coll, f, storage.FindOptions{
			SortField:  sortField,
			Descending: true,
			Skip:       skip,
			Limit:      int64(limit),
		})
		out.docs = docs
		return err
	})
}

func (s *Service) ListUsers(ctx context.Context, p ListParams) (*UserList, error) {
	pageNo, limit, err := s.paging(p)
	if err != nil {
		return nil, err
	}
	status, err := statusParam(p.Status, record.UserStatuses)
	if err != nil {
		return nil, err
	}
	f := storage.Filter{Search: search(p.Search, "name", "email")}
	if status != "" {
		f.Equals = map[string]string{"status": status}
	}
	if p.IDs != nil {
		for _, id := range p.IDs {
			if err := validateID("ids", id); err != nil {
				return nil, err
			}
		}
		f.IDs = p.IDs
	}

	var pg page
	var stats UserStats
	g, gctx := errgroup.WithContext(ctx)
	s.fetchPage(gctx, g, storage.Users, f, "lastActive", pageNo, limit, &pg)
	g.Go(func() (err error) {
		stats.TotalUsers, err = s.store.Count(gctx, storage.Users, storage.Filter{})
		return err
	})
	g.Go(func() (err error) {
		stats.ActiveUsers, err = s.store.Count(gctx, storage.Users, storage.Filter{
			Equals: map[string]string{"status": string(record.UserActive)},
		})
		return err
	})
	g.Go(func() (err error) {
		stats.TotalTokens, err = s.store.Sum(gctx, storage.Users, "tokenUsage", storage.Filter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	users, err := record.ToUsers(pg.docs)
	if err != nil {
		return nil, s.corrupt("user", err)
	}
	return &UserList{Users: users, Stats: stats, Pagination: NewPagination(pg.total, pageNo, limit)}, nil
}

func (s *Service) ListQueries(ctx context.Context, p ListParams) (*QueryList, error) {
	pageNo, limit, err := s.paging(p)
	if err != nil {
		return nil, err
	}
	status, err := statusParam(p.Status, record.QueryStatuses)
	if err != nil {
		return nil, err
	}
	f := storage.Filter{Search: search(p.Search, "prompt", "modelUsed")}
	f.Equals, err = equals(status, p.UserID)
	if err != nil {
		return nil, err
	}

	var pg page
	var stats QueryStats
	g, gctx := errgroup.WithContext(ctx)
	s.fetchPage(gctx, g, storage.Queries, f, "date", pageNo, limit, &pg)
	g.Go(func() (err error) {
		stats.TotalQueries, err = s.store.Count(gctx, storage.Queries, storage.Filter{})
		return err
	})
	g.Go(func() (err error) {
		stats.ActiveUsers, err = s.store.CountDistinct(gctx, storage.Queries, "userId", storage.Filter{
			Since: &storage.Since{Field: "date", From: s.startOfToday()},
		})
		return err
	})
	g.Go(func() (err error) {
		stats.AvgTokens, err = s.avgTokens(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	queries, err := record.ToQueries(pg.docs)
	if err != nil {
		return nil, s.corrupt("query", err)
	}
	return &QueryList{Queries: queries, Stats: stats, Pagination: NewPagination(pg.total, pageNo, limit)}, nil
}

func (s *Service) ListErrors(ctx context.Context, p ListParams) (*ErrorList, error) {
	pageNo, limit, err := s.paging(p)
	if err != nil {
		return nil, err
	}
	status, err := statusParam(p.Status, record.ErrorStatuses)
	if err != nil {
		return nil, err
	}
	f := storage.Filter{Search: search(p.Search, "title", "message")}
	f.Equals, err = equals(status, p.UserID)
	if err != nil {
		return nil, err
	}

	var pg page
	var stats ErrorStats
	g, gctx := errgroup.WithContext(ctx)
	s.fetchPage(gctx, g, storage.Errors, f, "lastSeen", pageNo, limit, &pg)
	g.Go(func() (err error) {
		stats.TotalErrors, err = s.store.Count(gctx, storage.Errors, storage.Filter{})
		return err
	})
	g.Go(func() (err error) {
		stats.UnresolvedErrors, err = s.store.Count(gctx, storage.Errors, storage.Filter{
			Equals: map[string]string{"status": string(record.ErrorUnresolved)},
		})
		return err
	})
	g.Go(func() (err error) {
		stats.AffectedUsers, err = s.store.CountDistinct(gctx, storage.Errors, "userId", storage.Filter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	events, err := record.ToErrorEvents(pg.docs)
	if err != nil {
		return nil, s.corrupt("error", err)
	}
	return &ErrorList{Errors: events, Stats: stats, Pagination: NewPagination(pg.total, pageNo, limit)}, nil
}

func search(term string, fields ...string) *storage.Search {
	if term == "" {
		return nil
	}
	return &storage.Search{Fields: fields, Term: term}
}

func equals(status, userID string) (map[string]string, error) {
	m := map[string]string{}
	if status != "" {
		m["status"] = status
	}
	if userID != "" {
		if err := validateID("userId", userID); err != nil {
			return nil, err
		}
		m["userId"] = userID
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}
