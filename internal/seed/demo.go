package seed

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"admindash/internal/record"
)

type demoUser struct {
	name, email        string
	joined, lastActive string
	tokens             int
	amount             string
	status             string
}

var demoUsers = []demoUser{
	{"Sarah Chen", "sarah.chen@example.com", "2024-01-10T09:00:00Z", "2024-03-18T16:45:00Z", 25840, "258.40", "active"},
	{"Michael Rodriguez", "m.rodriguez@example.com", "2024-01-15T14:30:00Z", "2024-03-17T11:20:00Z", 18650, "186.50", "active"},
	{"Emma Watson", "emma.w@example.com", "2024-01-20T10:15:00Z", "2024-02-28T09:30:00Z", 5200, "52.00", "inactive"},
	{"James Kim", "james.kim@example.com", "2024-02-01T08:45:00Z", "2024-03-18T15:10:00Z", 31200, "312.00", "active"},
	{"Priya Patel", "priya.p@example.com", "2024-02-05T11:30:00Z", "2024-03-18T14:25:00Z", 28750, "287.50", "active"},
	{"David Cooper", "d.cooper@example.com", "2024-02-10T13:20:00Z", "2024-03-01T10:45:00Z", 4800, "48.00", "inactive"},
	{"Lisa Martinez", "lisa.m@example.com", "2024-02-15T09:40:00Z", "2024-03-18T13:15:00Z", 15900, "159.00", "active"},
	{"Alex Thompson", "alex.t@example.com", "2024-02-20T15:50:00Z", "2024-03-18T12:30:00Z", 12400, "124.00", "active"},
	{"Nina Anderson", "nina.a@example.com", "2024-03-01T10:00:00Z", "2024-03-15T16:20:00Z", 3600, "36.00", "inactive"},
	{"Omar Hassan", "omar.h@example.com", "2024-03-05T12:25:00Z", "2024-03-18T11:45:00Z", 8900, "89.00", "active"},
}

var demoTopics = []string{
	"Next.js authentication",
	"React performance optimization",
	"TypeScript interfaces",
	"MongoDB aggregation",
	"Docker containerization",
	"AWS deployment",
	"GraphQL queries",
	"Redis caching",
	"Kubernetes pods",
	"CI/CD pipeline",
}

var demoErrorKinds = []struct{ title, typ string }{
	{"API Rate Limit Exceeded", "RateLimitError"},
	{"Database Connection Failed", "DatabaseError"},
	{"Authentication Failed", "AuthError"},
	{"Invalid Input Format", "ValidationError"},
	{"Service Unavailable", "ServiceError"},
}

const week = 7 * 24 * time.Hour

// Demo generates ten users with ten queries and five error events each.
// Query and error times fall in the week before now. Every other user is
// written with wrapped encodings so both decoding paths get exercised.
func Demo(now time.Time, rng *rand.Rand) *Dataset {
	ds := &Dataset{}
	for i, u := range demoUsers {
		id := fmt.Sprintf("user_%02d", i+1)
		enc := encoder{wrapped: i%2 == 0}
		ds.Users = append(ds.Users, record.Document{
			"_id":         id,
			"id":          fmt.Sprintf("u_%02d", i+1),
			"name":        u.name,
			"email":       u.email,
			"dateJoined":  enc.dateString(u.joined),
			"lastActive":  enc.dateString(u.lastActive),
			"tokenUsage":  enc.integer(u.tokens),
			"totalAmount": enc.decimal(u.amount),
			"status":      u.status,
		})
		ds.Queries = append(ds.Queries, demoQueries(id, now, rng, enc)...)
		ds.Errors = append(ds.Errors, demoErrors(id, u.email, now, rng, enc)...)
	}
	return ds
}

func demoQueries(userID string, now time.Time, rng *rand.Rand, enc encoder) []record.Document {
	within := func(d time.Duration) time.Time { return now.Add(-time.Duration(rng.Int64N(int64(d)))) }
	out := make([]record.Document, 0, len(demoTopics))
	for i, topic := range demoTopics {
		model := "gpt-4"
		if rng.Float64() <= 0.3 {
			model = "gpt-3.5-turbo"
		}
		status := string(record.QueryCompleted)
		if rng.Float64() <= 0.1 {
			status = string(record.QueryError)
		}
		slug := strings.ToLower(topic)
		out = append(out, record.Document{
			"_id":        fmt.Sprintf("query_%s_%d", userID, i+1),
			"userId":     userID,
			"prompt":     fmt.Sprintf("How to implement %s?", topic),
			"modelUsed":  model,
			"tokensUsed": enc.integer(rng.IntN(2000) + 500),
			"date":       enc.date(within(week)),
			"status":     status,
			"messages": []any{
				map[string]any{
					"role":      "user",
					"content":   fmt.Sprintf("How to implement %s?", topic),
					"timestamp": enc.date(within(week)),
					"metadata": map[string]any{
						"tokensUsed":     enc.integer(rng.IntN(20) + 5),
						"modelUsed":      "gpt-4",
						"processingTime": enc.float(rng.Float64() * 2),
					},
				},
				map[string]any{
					"role":      "assistant",
					"content":   fmt.Sprintf("Here's how to implement %s...", topic),
					"timestamp": enc.date(within(week)),
					"metadata": map[string]any{
						"tokensUsed":     enc.integer(rng.IntN(1000) + 500),
						"modelUsed":      "gpt-4",
						"processingTime": enc.float(rng.Float64()*3 + 1),
					},
				},
			},
			"metadata": map[string]any{
				"totalProcessingTime": enc.float(rng.Float64()*5 + 2),
				"context": map[string]any{
					"documents": []any{slug + "-docs", slug + "-examples"},
					"apps":      []any{"github"},
				},
			},
		})
	}
	return out
}

func demoErrors(userID, email string, now time.Time, rng *rand.Rand, enc encoder) []record.Document {
	within := func(d time.Duration) time.Time { return now.Add(-time.Duration(rng.Int64N(int64(d)))) }
	out := make([]record.Document, 0, len(demoErrorKinds))
	for i, k := range demoErrorKinds {
		status := string(record.ErrorUnresolved)
		if rng.Float64() > 0.5 {
			status = string(record.ErrorResolved)
		}
		lastSeen := within(24 * time.Hour)
		firstSeen := lastSeen.Add(-time.Duration(rng.Int64N(int64(week))))
		out = append(out, record.Document{
			"_id":         fmt.Sprintf("err_%s_%d", userID, i+1),
			"userId":      userID,
			"title":       k.title,
			"type":        k.typ,
			"status":      status,
			"environment": "production",
			"level":       string(record.LevelError),
			"message":     "Error occurred: " + k.title,
			"stacktrace":  fmt.Sprintf("Error: %s\n    at Function.check (/app/middleware/%s.ts:42:12)...", k.title, k.typ),
			"context": map[string]any{
				"requestsPerMinute": enc.integer(rng.IntN(100) + 50),
				"limit":             enc.integer(100),
			},
			"metadata": map[string]any{
				"region":   "us-east-1",
				"instance": fmt.Sprintf("server-%d", rng.IntN(5)+1),
			},
			"tags": []any{strings.ToLower(k.typ), "production"},
			"user": map[string]any{"id": userID, "email": email},
			"request": map[string]any{
				"url":     "/api/v1/queries",
				"method":  "POST",
				"headers": map[string]any{"content-type": "application/json"},
			},
			"breadcrumbs": []any{
				map[string]any{
					"type":      "http",
					"category":  "request",
					"message":   "GET /api/v1/user",
					"timestamp": enc.date(within(week)),
				},
			},
			"firstSeen": enc.date(firstSeen),
			"lastSeen":  enc.date(lastSeen),
			"count":     enc.integer(rng.IntN(5) + 1),
			"release":   "v1.2.3",
		})
	}
	return out
}

// encoder writes scalars either natively or in the wrapped marker form.
type encoder struct {
	wrapped bool
}

func (e encoder) date(t time.Time) any {
	if !e.wrapped {
		return t.UTC().Format("2006-01-02T15:04:05.000Z")
	}
	return map[string]any{"$date": map[string]any{"$numberLong": strconv.FormatInt(t.UnixMilli(), 10)}}
}

func (e encoder) dateString(s string) any {
	if !e.wrapped {
		return s
	}
	return map[string]any{"$date": s}
}

func (e encoder) integer(n int) any {
	if !e.wrapped {
		return n
	}
	return map[string]any{"$numberInt": strconv.Itoa(n)}
}

func (e encoder) float(f float64) any {
	if !e.wrapped {
		return f
	}
	return map[string]any{"$numberDouble": strconv.FormatFloat(f, 'g', -1, 64)}
}

func (e encoder) decimal(s string) any {
	if !e.wrapped {
		return s
	}
	return map[string]any{"$numberDecimal": s}
}
