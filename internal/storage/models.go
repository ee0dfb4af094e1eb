package storage

import (
	"fmt"
	"strings"

	"admindash/internal/record"
)

type columnKind int

const (
	textColumn columnKind = iota
	refColumn
	intColumn
	instantColumn
)

type column struct {
	field string
	name  string
	kind  columnKind
}

// table describes how one collection is mirrored in SQL: the raw document
// goes into doc and the listed fields are projected for filtering.
type table struct {
	name     string
	columns  []column
	dayField string
}

var tables = map[Collection]table{
	Users: {
		name: "users",
		columns: []column{
			{"name", "name", textColumn},
			{"email", "email", textColumn},
			{"status", "status", textColumn},
			{"dateJoined", "date_joined_ms", instantColumn},
			{"lastActive", "last_active_ms", instantColumn},
			{"tokenUsage", "token_usage", intColumn},
		},
	},
	Queries: {
		name: "queries",
		columns: []column{
			{"userId", "user_id", refColumn},
			{"prompt", "prompt", textColumn},
			{"modelUsed", "model_used", textColumn},
			{"status", "status", textColumn},
			{"date", "date_ms", instantColumn},
			{"tokensUsed", "tokens_used", intColumn},
		},
		dayField: "date",
	},
	Errors: {
		name: "errors",
		columns: []column{
			{"userId", "user_id", refColumn},
			{"title", "title", textColumn},
			{"message", "message", textColumn},
			{"type", "type", textColumn},
			{"status", "status", textColumn},
			{"level", "level", textColumn},
			{"firstSeen", "first_seen_ms", instantColumn},
			{"lastSeen", "last_seen_ms", instantColumn},
		},
	},
}

func tableFor(coll Collection) (table, error) {
	t, ok := tables[coll]
	if !ok {
		return table{}, fmt.Errorf("unknown collection %q", coll)
	}
	return t, nil
}

func (t table) column(field string) (column, error) {
	if field == "_id" {
		return column{field: "_id", name: "id", kind: refColumn}, nil
	}
	for _, c := range t.columns {
		if c.field == field {
			return c, nil
		}
	}
	return column{}, fmt.Errorf("field %q is not projected in %s", field, t.name)
}

// row is a document ready for insertion.
type row struct {
	id     string
	doc    string
	values []any
	day    any
}

// project computes the projected column values of doc. A value that cannot
// be normalized is stored as NULL; the transformer reports it on read.
func (t table) project(doc record.Document) (row, error) {
	id, err := record.NormalizeID(doc["_id"])
	if err != nil {
		return row{}, fmt.Errorf("document id: %w", err)
	}
	r := row{id: id, values: make([]any, len(t.columns))}
	for i, c := range t.columns {
		r.values[i] = projectValue(c.kind, doc[c.field])
		if c.field == t.dayField {
			if tm, err := record.ParseInstant(doc[c.field]); err == nil {
				r.day = tm.Format("2006-01-02")
			}
		}
	}
	return r, nil
}

func projectValue(kind columnKind, v any) any {
	switch kind {
	case refColumn:
		if id, err := record.NormalizeID(v); err == nil {
			return id
		}
	case intColumn:
		if n, err := record.NormalizeInt(v); err == nil {
			return n
		}
	case instantColumn:
		if tm, err := record.ParseInstant(v); err == nil {
			return tm.UnixMilli()
		}
	default:
		if s, ok := v.(string); ok {
			return s
		}
	}
	return nil
}

// likePattern builds a case-insensitive substring pattern for LIKE with
// backslash as the escape character.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(term)) + "%"
}
