package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admindash/internal/limiter"
	"admindash/internal/metrics"
	"admindash/internal/record"
	"admindash/internal/service"
	"admindash/internal/storage"
)

var now = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store   storage.Store
	metrics *metrics.Metrics
	handler http.Handler
}

func newFixture(t *testing.T, lim Limiter) *fixture {
	t.Helper()
	ctx := context.Background()
	store, err := storage.OpenSQL(ctx, "sqlite", filepath.Join(t.TempDir(), "api.db"), true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(ctx) })

	m := metrics.New()
	svc := service.New(store, service.Options{
		Location: time.UTC,
		Now:      func() time.Time { return now },
		Logger:   zerolog.Nop(),
		Metrics:  m,
	})
	return &fixture{
		store:   store,
		metrics: m,
		handler: NewRouter(Config{
			Service: svc,
			Limiter: lim,
			Logger:  zerolog.Nop(),
			Metrics: m,
			Now:     func() time.Time { return now },
		}),
	}
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.Insert(ctx, storage.Users, []record.Document{{
		"_id":         "u1",
		"name":        "Alice",
		"email":       "alice@example.com",
		"dateJoined":  map[string]any{"$date": "2023-12-01T00:00:00Z"},
		"lastActive":  map[string]any{"$date": map[string]any{"$numberLong": "1704873600000"}},
		"tokenUsage":  map[string]any{"$numberInt": "1000"},
		"totalAmount": map[string]any{"$numberDecimal": "3.20"},
		"status":      "active",
	}}))
	require.NoError(t, f.store.Insert(ctx, storage.Queries, []record.Document{
		{"_id": "q1", "userId": "u1", "prompt": "hello", "modelUsed": "gpt-4", "tokensUsed": 100, "date": "2024-01-10T08:00:00Z", "status": "completed"},
		{"_id": "q2", "userId": "u1", "prompt": "again", "modelUsed": "gpt-4", "tokensUsed": 50, "date": "2024-01-09T08:00:00Z", "status": "error"},
	}))
	require.NoError(t, f.store.Insert(ctx, storage.Errors, []record.Document{
		{"_id": "e1", "userId": "u1", "title": "Timeout", "type": "TimeoutError", "status": "unresolved", "level": "error",
			"message": "upstream timeout", "firstSeen": "2024-01-09T00:00:00Z", "lastSeen": "2024-01-10T00:00:00Z", "count": 3},
	}))
}

func (f *fixture) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = "203.0.113.7:5555"
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestListUsersResponse(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t)

	rec := f.get(t, "/api/users?search=ALI")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	body := decode(t, rec)
	users := body["users"].([]any)
	require.Len(t, users, 1)
	u := users[0].(map[string]any)
	assert.Equal(t, "u1", u["_id"])
	assert.Equal(t, "2024-01-10T08:00:00.000Z", u["lastActive"])
	assert.Equal(t, float64(1000), u["tokenUsage"])
	assert.Equal(t, map[string]any{"total": float64(1), "page": float64(1), "limit": float64(10), "pages": float64(1)}, body["pagination"])
	assert.Equal(t, map[string]any{"totalUsers": float64(1), "activeUsers": float64(1), "totalTokens": float64(1000)}, body["stats"])
}

func TestEmptyIDsSelectsNothing(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t)

	body := decode(t, f.get(t, "/api/users?ids="))
	assert.Empty(t, body["users"])

	body = decode(t, f.get(t, "/api/users?ids=u1,%20u9"))
	assert.Len(t, body["users"], 1)
}

func TestStatusMapping(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t)

	cases := []struct {
		target string
		code   int
		msg    string
	}{
		{"/api/queries?page=0", http.StatusBadRequest, ""},
		{"/api/queries?limit=abc", http.StatusBadRequest, ""},
		{"/api/errors?status=exploded", http.StatusBadRequest, ""},
		{"/api/users?limit=1000", http.StatusBadRequest, ""},
		{"/api/users/u1?limit=-1", http.StatusBadRequest, ""},
		{"/api/queries/bad%20id", http.StatusBadRequest, ""},
		{"/api/queries/q9", http.StatusNotFound, "Query not found"},
		{"/api/users/u9", http.StatusNotFound, "User not found"},
		{"/api/errors/e9", http.StatusNotFound, "Error not found"},
		{"/api/nothing", http.StatusNotFound, "Not found"},
	}
	for _, c := range cases {
		t.Run(c.target, func(t *testing.T) {
			rec := f.get(t, c.target)
			require.Equal(t, c.code, rec.Code, rec.Body.String())
			body := decode(t, rec)
			require.Contains(t, body, "error")
			if c.msg != "" {
				assert.Equal(t, c.msg, body["error"])
			}
		})
	}
}

func TestCorruptRecordIsOpaque500(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.store.Insert(context.Background(), storage.Queries, []record.Document{
		{"_id": "q1", "userId": "u1", "prompt": "p", "modelUsed": "m", "tokensUsed": -4, "date": "2024-01-10T08:00:00Z", "status": "completed"},
	}))

	rec := f.get(t, "/api/queries")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]any{"error": "Failed to fetch queries"}, decode(t, rec))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.InvalidRecords.WithLabelValues("query")))

	rec = f.get(t, "/api/queries/q1")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]any{"error": "Failed to fetch query details"}, decode(t, rec))
}

func TestQueryDetailResponse(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t)

	body := decode(t, f.get(t, "/api/queries/q1"))
	query := body["query"].(map[string]any)
	assert.Equal(t, "q1", query["_id"])
	assert.Equal(t, []any{}, query["messages"])
	assert.Equal(t, "Alice", body["user"].(map[string]any)["name"])
	related := body["relatedQueries"].([]any)
	require.Len(t, related, 1)
	assert.Equal(t, "q2", related[0].(map[string]any)["_id"])
}

func TestDashboardStatsResponse(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t)

	body := decode(t, f.get(t, "/api/dashboard/stats"))
	assert.Equal(t, float64(1), body["totalUsers"])
	assert.Equal(t, float64(2), body["totalQueries"])
	assert.Equal(t, float64(1), body["activeErrors"])
	assert.Equal(t, float64(150), body["tokenUsage"])
	assert.Equal(t, []any{
		map[string]any{"date": "2024-01-09", "queryCount": float64(1), "tokenSum": float64(50)},
		map[string]any{"date": "2024-01-10", "queryCount": float64(1), "tokenSum": float64(100)},
	}, body["queryHistory"])
}

func TestUserDetailAndQueries(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t)

	body := decode(t, f.get(t, "/api/users/u1?limit=1"))
	assert.Equal(t, float64(2), body["totalQueries"])
	assert.Equal(t, float64(150), body["totalTokens"])
	assert.Len(t, body["queries"], 1)

	body = decode(t, f.get(t, "/api/users/u1/queries"))
	assert.Len(t, body["queries"], 2)
}

func TestErrorDetailResponse(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t)

	rec := f.get(t, "/api/errors/e1")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(3), body["error"].(map[string]any)["count"])
	assert.Equal(t, []any{}, body["relatedErrors"])
}

func TestMetricsUseRoutePattern(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t)

	f.get(t, "/api/users/u1")
	f.get(t, "/api/users/u9")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.HTTPRequests.WithLabelValues("/api/users/{userId}", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.HTTPRequests.WithLabelValues("/api/users/{userId}", "GET", "404")))
}

func TestRequestIDIsKeptWhenValid(t *testing.T) {
	f := newFixture(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "0b3c1d5e-8a8f-4a5e-9f3a-6e3f1c2b7d90")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, "0b3c1d5e-8a8f-4a5e-9f3a-6e3f1c2b7d90", rec.Header().Get(requestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "<script>")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.NotEqual(t, "<script>", rec.Header().Get(requestIDHeader))
}

func TestRateLimit(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	f := newFixture(t, limiter.New(rdb, 2))
	for i := 0; i < 2; i++ {
		rec := f.get(t, "/api/dashboard/stats")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := f.get(t, "/api/dashboard/stats")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RateLimited))

	// health checks are not limited
	assert.Equal(t, http.StatusOK, f.get(t, "/healthz").Code)
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string, time.Time) (bool, int64, time.Time, error) {
	return false, 0, time.Time{}, errors.New("redis: connection refused")
}

func (brokenLimiter) Limit() int64 { return 1 }

func TestRateLimitFailsOpen(t *testing.T) {
	f := newFixture(t, brokenLimiter{})
	assert.Equal(t, http.StatusOK, f.get(t, "/api/dashboard/stats").Code)
}

func TestHealthReportsStoreFailure(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.store.Close(context.Background()))

	rec := f.get(t, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
