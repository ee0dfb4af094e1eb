package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admindash/internal/record"
)

var day0 = time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	ctx := context.Background()
	s, err := OpenSQL(ctx, "sqlite", filepath.Join(t.TempDir(), "store.db"), true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(ctx) })
	return s
}

func wrappedDate(t time.Time) map[string]any {
	return map[string]any{"$date": map[string]any{"$numberLong": strconv.FormatInt(t.UnixMilli(), 10)}}
}

func seedQueries(t *testing.T, s Store) {
	t.Helper()
	docs := []record.Document{
		{"_id": "q1", "userId": "u1", "prompt": "Reset PASSWORD", "modelUsed": "gpt-4", "status": "completed",
			"tokensUsed": map[string]any{"$numberInt": "100"}, "date": wrappedDate(day0)},
		{"_id": "q2", "userId": "u1", "prompt": "billing question", "modelUsed": "gpt-4", "status": "error",
			"tokensUsed": 50, "date": day0.Add(2 * time.Hour).Format(time.RFC3339)},
		{"_id": "q3", "userId": "u2", "prompt": "100% uptime?", "modelUsed": "claude", "status": "completed",
			"tokensUsed": map[string]any{"$numberLong": "250"}, "date": map[string]any{"$date": day0.Add(26 * time.Hour).Format(time.RFC3339)}},
		{"_id": "q4", "prompt": "orphan", "modelUsed": "gpt-3.5", "status": "in_progress",
			"tokensUsed": 0, "date": wrappedDate(day0.Add(-72 * time.Hour))},
	}
	require.NoError(t, s.Insert(context.Background(), Queries, docs))
}

func ids(t *testing.T, docs []record.Document) []string {
	t.Helper()
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		id, err := record.NormalizeID(d["_id"])
		require.NoError(t, err)
		out = append(out, id)
	}
	return out
}

func TestSQLFindSortsAndPages(t *testing.T) {
	s := openTestStore(t)
	seedQueries(t, s)
	ctx := context.Background()

	docs, err := s.Find(ctx, Queries, Filter{}, FindOptions{SortField: "date", Descending: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"q3", "q2", "q1", "q4"}, ids(t, docs))

	docs, err = s.Find(ctx, Queries, Filter{}, FindOptions{SortField: "date", Descending: true, Skip: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"q2", "q1"}, ids(t, docs))

	docs, err = s.Find(ctx, Queries, Filter{}, FindOptions{SortField: "date", Descending: true, Skip: 10, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestSQLFindKeepsRawEncoding(t *testing.T) {
	s := openTestStore(t)
	seedQueries(t, s)

	doc, err := s.FindByID(context.Background(), Queries, "q1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"$numberInt": "100"}, doc["tokensUsed"])

	q, err := record.ToQuery(doc)
	require.NoError(t, err)
	assert.Equal(t, int64(100), q.TokensUsed)
	assert.Equal(t, "2024-01-10T08:00:00.000Z", q.Date)
}

func TestSQLFindByIDMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.FindByID(context.Background(), Queries, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLFilters(t *testing.T) {
	s := openTestStore(t)
	seedQueries(t, s)
	ctx := context.Background()

	cases := []struct {
		name   string
		filter Filter
		want   int64
	}{
		{"none", Filter{}, 4},
		{"search is case insensitive", Filter{Search: &Search{Fields: []string{"prompt", "modelUsed"}, Term: "password"}}, 1},
		{"search any field", Filter{Search: &Search{Fields: []string{"prompt", "modelUsed"}, Term: "GPT"}}, 3},
		{"search escapes wildcards", Filter{Search: &Search{Fields: []string{"prompt"}, Term: "100%"}}, 1},
		{"search underscore is literal", Filter{Search: &Search{Fields: []string{"prompt"}, Term: "_"}}, 0},
		{"equals", Filter{Equals: map[string]string{"status": "completed"}}, 2},
		{"equals anded", Filter{Equals: map[string]string{"status": "completed", "userId": "u1"}}, 1},
		{"any equal", Filter{AnyEqual: map[string]string{"status": "error", "userId": "u2"}}, 2},
		{"id set", Filter{IDs: []string{"q1", "q4", "missing"}}, 2},
		{"empty id set", Filter{IDs: []string{}}, 0},
		{"exclude", Filter{ExcludeID: "q1"}, 3},
		{"since", Filter{Since: &Since{Field: "date", From: day0.Add(time.Hour)}}, 2},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			n, err := s.Count(ctx, Queries, c.filter)
			require.NoError(t, err)
			assert.Equal(t, c.want, n)
		})
	}
}

func TestSQLAggregates(t *testing.T) {
	s := openTestStore(t)
	seedQueries(t, s)
	ctx := context.Background()

	sum, err := s.Sum(ctx, Queries, "tokensUsed", Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(400), sum)

	avg, ok, err := s.Avg(ctx, Queries, "tokensUsed", Filter{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 100.0, avg, 1e-9)

	_, ok, err = s.Avg(ctx, Queries, "tokensUsed", Filter{Equals: map[string]string{"status": "missing"}})
	require.NoError(t, err)
	assert.False(t, ok)

	sum, err = s.Sum(ctx, Queries, "tokensUsed", Filter{Equals: map[string]string{"status": "missing"}})
	require.NoError(t, err)
	assert.Zero(t, sum)

	users, err := s.CountDistinct(ctx, Queries, "userId", Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), users)
}

func TestSQLDailyTotals(t *testing.T) {
	s := openTestStore(t)
	seedQueries(t, s)

	days, err := s.DailyTotals(context.Background(), Queries, "date", "tokensUsed", day0.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []DayTotal{
		{Day: "2024-01-10", Count: 2, Sum: 150},
		{Day: "2024-01-11", Count: 1, Sum: 250},
	}, days)

	_, err = s.DailyTotals(context.Background(), Errors, "lastSeen", "count", day0)
	var se *StoreError
	assert.ErrorAs(t, err, &se)
}

func TestSQLInsertUpserts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	doc := record.Document{"_id": map[string]any{"$oid": "65a1f0c2e4b0a1b2c3d4e5f6"}, "name": "Ada", "email": "ada@example.com",
		"status": "active", "tokenUsage": 10, "lastActive": wrappedDate(day0), "dateJoined": wrappedDate(day0)}
	require.NoError(t, s.Insert(ctx, Users, []record.Document{doc}))

	doc["status"] = "inactive"
	require.NoError(t, s.Insert(ctx, Users, []record.Document{doc}))

	n, err := s.Count(ctx, Users, Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.FindByID(ctx, Users, "65a1f0c2e4b0a1b2c3d4e5f6")
	require.NoError(t, err)
	assert.Equal(t, "inactive", got["status"])
}

func TestSQLInsertKeepsUnparseableValues(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	doc := record.Document{"_id": "u9", "name": "Broken", "status": "banned", "lastActive": "someday"}
	require.NoError(t, s.Insert(ctx, Users, []record.Document{doc}))

	got, err := s.FindByID(ctx, Users, "u9")
	require.NoError(t, err)
	_, err = record.ToUser(got)
	var ve *record.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestSQLRejectsUnknownField(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Count(context.Background(), Users, Filter{Equals: map[string]string{"nickname": "x"}})

	var se *StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "count", se.Op)
	assert.Equal(t, Users, se.Collection)
}

func TestSQLRequiresDocumentID(t *testing.T) {
	s := openTestStore(t)
	err := s.Insert(context.Background(), Users, []record.Document{{"name": "no id"}})
	var se *StoreError
	assert.ErrorAs(t, err, &se)
}
