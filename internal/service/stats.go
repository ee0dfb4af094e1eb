package service

import (
	"context"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"

	"admindash/internal/record"
	"admindash/internal/storage"
)

const historyDays = 30

type DashboardStats struct {
	TotalUsers   int64     `json:"totalUsers"`
	TotalQueries int64     `json:"totalQueries"`
	ActiveErrors int64     `json:"activeErrors"`
	TokenUsage   int64     `json:"tokenUsage"`
	QueryHistory []DayStat `json:"queryHistory"`
}

// DayStat is one UTC day with at least one query. Days without queries are
// absent rather than zero.
type DayStat struct {
	Date       string `json:"date"`
	QueryCount int64  `json:"queryCount"`
	TokenSum   int64  `json:"tokenSum"`
}

func (s *Service) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	var out DashboardStats
	var days []storage.DayTotal

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.TotalUsers, err = s.store.Count(gctx, storage.Users, storage.Filter{})
		return err
	})
	g.Go(func() (err error) {
		out.TotalQueries, err = s.store.Count(gctx, storage.Queries, storage.Filter{})
		return err
	})
	g.Go(func() (err error) {
		// "active errors" on the dashboard are failed queries, not error events
		out.ActiveErrors, err = s.store.Count(gctx, storage.Queries, storage.Filter{
			Equals: map[string]string{"status": string(record.QueryError)},
		})
		return err
	})
	g.Go(func() (err error) {
		out.TokenUsage, err = s.store.Sum(gctx, storage.Queries, "tokensUsed", storage.Filter{})
		return err
	})
	g.Go(func() (err error) {
		since := s.opts.Now().UTC().AddDate(0, 0, -historyDays)
		days, err = s.store.DailyTotals(gctx, storage.Queries, "date", "tokensUsed", since)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out.QueryHistory = make([]DayStat, 0, len(days))
	for _, d := range days {
		out.QueryHistory = append(out.QueryHistory, DayStat{Date: d.Day, QueryCount: d.Count, TokenSum: d.Sum})
	}
	return &out, nil
}

// avgTokens is the mean tokensUsed over all queries, rounded to the nearest
// integer, and 0 for an empty collection.
func (s *Service) avgTokens(ctx context.Context) (int64, error) {
	avg, ok, err := s.store.Avg(ctx, storage.Queries, "tokensUsed", storage.Filter{})
	if err != nil || !ok {
		return 0, err
	}
	rounded, err := stats.Round(avg, 0)
	if err != nil {
		return 0, err
	}
	return int64(rounded), nil
}
