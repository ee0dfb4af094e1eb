package service

import (
	"context"
	"errors"
	"strconv"

	"golang.org/x/sync/errgroup"

	"admindash/internal/record"
	"admindash/internal/storage"
)

type QueryDetail struct {
	Query          record.Query   `json:"query"`
	User           *record.User   `json:"user"`
	RelatedQueries []record.Query `json:"relatedQueries"`
}

type UserDetail struct {
	User         record.User    `json:"user"`
	TotalQueries int64          `json:"totalQueries"`
	TotalTokens  int64          `json:"totalTokens"`
	Queries      []record.Query `json:"queries"`
}

type ErrorDetail struct {
	Error         record.ErrorEvent   `json:"error"`
	RelatedErrors []record.ErrorEvent `json:"relatedErrors"`
}

type UserQueries struct {
	Queries []record.Query `json:"queries"`
}

// QueryDetail loads a query with its owner and the owner's other recent
// queries. userId is a soft reference: a missing owner yields a nil User.
func (s *Service) QueryDetail(ctx context.Context, id string) (*QueryDetail, error) {
	if err := validateID("queryId", id); err != nil {
		return nil, err
	}
	doc, err := s.store.FindByID(ctx, storage.Queries, id)
	if err != nil {
		return nil, notFound("Query", err)
	}
	q, err := record.ToQuery(doc)
	if err != nil {
		return nil, s.corrupt("query", err)
	}

	out := &QueryDetail{Query: q, RelatedQueries: []record.Query{}}
	if q.UserID == "" {
		return out, nil
	}

	var userDoc record.Document
	var related []record.Document
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := s.store.FindByID(gctx, storage.Users, q.UserID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		userDoc = d
		return err
	})
	g.Go(func() (err error) {
		related, err = s.store.Find(gctx, storage.Queries, storage.Filter{
			Equals:    map[string]string{"userId": q.UserID},
			ExcludeID: q.ID,
		}, storage.FindOptions{SortField: "date", Descending: true, Limit: int64(s.opts.RelatedQueriesLimit)})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if userDoc != nil {
		u, err := record.ToUser(userDoc)
		if err != nil {
			return nil, s.corrupt("user", err)
		}
		out.User = &u
	}
	out.RelatedQueries, err = record.ToQueries(related)
	if err != nil {
		return nil, s.corrupt("query", err)
	}
	return out, nil
}

// UserDetail loads a user with query totals and the user's queries, newest
// first. limit 0 returns every query.
func (s *Service) UserDetail(ctx context.Context, id string, limit int) (*UserDetail, error) {
	if err := validateID("userId", id); err != nil {
		return nil, err
	}
	if limit < 0 || limit > s.opts.MaxPageSize {
		return nil, &InputError{
			Param:  "limit",
			Value:  strconv.Itoa(limit),
			Reason: "must be between 0 and " + strconv.Itoa(s.opts.MaxPageSize),
		}
	}

	owned := storage.Filter{Equals: map[string]string{"userId": id}}
	var out UserDetail
	var userDoc record.Document
	var queryDocs []record.Document

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		userDoc, err = s.store.FindByID(gctx, storage.Users, id)
		return notFound("User", err)
	})
	g.Go(func() (err error) {
		out.TotalQueries, err = s.store.Count(gctx, storage.Queries, owned)
		return err
	})
	g.Go(func() (err error) {
		out.TotalTokens, err = s.store.Sum(gctx, storage.Queries, "tokensUsed", owned)
		return err
	})
	g.Go(func() (err error) {
		queryDocs, err = s.store.Find(gctx, storage.Queries, owned, storage.FindOptions{
			SortField:  "date",
			Descending: true,
			Limit:      int64(limit),
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	u, err := record.ToUser(userDoc)
	if err != nil {
		return nil, s.corrupt("user", err)
	}
	out.User = u
	out.Queries, err = record.ToQueries(queryDocs)
	if err != nil {
		return nil, s.corrupt("query", err)
	}
	return &out, nil
}

// UserQueries lists every query of a user, newest first. The user itself
// is not required to exist.
func (s *Service) UserQueries(ctx context.Context, id string) (*UserQueries, error) {
	if err := validateID("userId", id); err != nil {
		return nil, err
	}
	docs, err := s.store.Find(ctx, storage.Queries, storage.Filter{
		Equals: map[string]string{"userId": id},
	}, storage.FindOptions{SortField: "date", Descending: true})
	if err != nil {
		return nil, err
	}
	queries, err := record.ToQueries(docs)
	if err != nil {
		return nil, s.corrupt("query", err)
	}
	return &UserQueries{Queries: queries}, nil
}

// ErrorDetail loads an error event and the events sharing its type or its
// user, most recently seen first.
func (s *Service) ErrorDetail(ctx context.Context, id string) (*ErrorDetail, error) {
	if err := validateID("errorId", id); err != nil {
		return nil, err
	}
	doc, err := s.store.FindByID(ctx, storage.Errors, id)
	if err != nil {
		return nil, notFound("Error", err)
	}
	e, err := record.ToErrorEvent(doc)
	if err != nil {
		return nil, s.corrupt("error", err)
	}

	out := &ErrorDetail{Error: e, RelatedErrors: []record.ErrorEvent{}}
	anyOf := map[string]string{}
	if e.Type != "" {
		anyOf["type"] = e.Type
	}
	if e.UserID != "" {
		anyOf["userId"] = e.UserID
	}
	if len(anyOf) == 0 {
		return out, nil
	}

	related, err := s.store.Find(ctx, storage.Errors, storage.Filter{
		AnyEqual:  anyOf,
		ExcludeID: e.ID,
	}, storage.FindOptions{SortField: "lastSeen", Descending: true, Limit: int64(s.opts.RelatedErrorsLimit)})
	if err != nil {
		return nil, err
	}
	out.RelatedErrors, err = record.ToErrorEvents(related)
	if err != nil {
		return nil, s.corrupt("error", err)
	}
	return out, nil
}
