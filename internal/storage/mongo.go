package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"admindash/internal/record"
)

var _ Store = (*MongoStore)(nil)

// MongoStore reads the dashboard collections straight from MongoDB.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func OpenMongo(ctx context.Context, uri, database string, maxPool uint64) (*MongoStore, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongodb uri is empty")
	}
	if database == "" {
		return nil, fmt.Errorf("mongodb database is empty")
	}
	opts := options.Client().ApplyURI(uri)
	if maxPool > 0 {
		opts.SetMaxPoolSize(maxPool)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return &MongoStore{client: client, db: client.Database(database)}, nil
}

func (m *MongoStore) coll(c Collection) *mongo.Collection {
	return m.db.Collection(string(c))
}

func (m *MongoStore) Count(ctx context.Context, coll Collection, f Filter) (int64, error) {
	n, err := m.coll(coll).CountDocuments(ctx, mongoFilter(f))
	if err != nil {
		return 0, storeErr("count", coll, err)
	}
	return n, nil
}

func (m *MongoStore) Find(ctx context.Context, coll Collection, f Filter, opts FindOptions) ([]record.Document, error) {
	fo := options.Find()
	if opts.SortField != "" {
		dir := 1
		if opts.Descending {
			dir = -1
		}
		fo.SetSort(bson.D{{Key: opts.SortField, Value: dir}, {Key: "_id", Value: dir}})
	}
	if opts.Skip > 0 {
		fo.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		fo.SetLimit(opts.Limit)
	}

	cur, err := m.coll(coll).Find(ctx, mongoFilter(f), fo)
	if err != nil {
		return nil, storeErr("find", coll, err)
	}
	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, storeErr("find", coll, err)
	}
	out := make([]record.Document, 0, len(raw))
	for _, d := range raw {
		out = append(out, plainDoc(d))
	}
	return out, nil
}

func (m *MongoStore) FindByID(ctx context.Context, coll Collection, id string) (record.Document, error) {
	var raw bson.M
	err := m.coll(coll).FindOne(ctx, bson.M{"_id": bson.M{"$in": idCandidates(id)}}).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, storeErr("find by id", coll, err)
	}
	return plainDoc(raw), nil
}

func (m *MongoStore) CountDistinct(ctx context.Context, coll Collection, field string, f Filter) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: mongoFilter(f)}},
		{{Key: "$match", Value: bson.M{field: bson.M{"$exists": true, "$ne": nil}}}},
		{{Key: "$group", Value: bson.M{"_id": "$" + field}}},
		{{Key: "$count", Value: "n"}},
	}
	var out []struct {
		N int64 `bson:"n"`
	}
	if err := m.aggregate(ctx, coll, pipeline, &out); err != nil {
		return 0, storeErr("count distinct", coll, err)
	}
	if len(out) == 0 {
		return 0, nil
	}
	return out[0].N, nil
}

func (m *MongoStore) Sum(ctx context.Context, coll Collection, field string, f Filter) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: mongoFilter(f)}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$" + field}}}},
	}
	var out []bson.M
	if err := m.aggregate(ctx, coll, pipeline, &out); err != nil {
		return 0, storeErr("sum", coll, err)
	}
	if len(out) == 0 {
		return 0, nil
	}
	n, err := record.NormalizeInt(plainValue(out[0]["total"]))
	if err != nil {
		return 0, storeErr("sum", coll, err)
	}
	return n, nil
}

func (m *MongoStore) Avg(ctx context.Context, coll Collection, field string, f Filter) (float64, bool, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: mongoFilter(f)}},
		{{Key: "$group", Value: bson.M{"_id": nil, "avg": bson.M{"$avg": "$" + field}}}},
	}
	var out []bson.M
	if err := m.aggregate(ctx, coll, pipeline, &out); err != nil {
		return 0, false, storeErr("avg", coll, err)
	}
	if len(out) == 0 || out[0]["avg"] == nil {
		return 0, false, nil
	}
	avg, err := record.NormalizeFloat(plainValue(out[0]["avg"]))
	if err != nil {
		return 0, false, storeErr("avg", coll, err)
	}
	return avg, true, nil
}

func (m *MongoStore) DailyTotals(ctx context.Context, coll Collection, dateField, sumField string, since time.Time) ([]DayTotal, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: sinceExpr(dateField, since)}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$dateToString": bson.M{
				"format":   "%Y-%m-%d",
				"date":     asDate(dateField),
				"timezone": "UTC",
			}},
			"count": bson.M{"$sum": 1},
			"total": bson.M{"$sum": "$" + sumField},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}
	var out []bson.M
	if err := m.aggregate(ctx, coll, pipeline, &out); err != nil {
		return nil, storeErr("daily totals", coll, err)
	}
	totals := make([]DayTotal, 0, len(out))
	for _, row := range out {
		day, _ := row["_id"].(string)
		count, err := record.NormalizeInt(plainValue(row["count"]))
		if err != nil {
			return nil, storeErr("daily totals", coll, err)
		}
		sum, err := record.NormalizeInt(plainValue(row["total"]))
		if err != nil {
			return nil, storeErr("daily totals", coll, err)
		}
		totals = append(totals, DayTotal{Day: day, Count: count, Sum: sum})
	}
	return totals, nil
}

func (m *MongoStore) aggregate(ctx context.Context, coll Collection, pipeline mongo.Pipeline, out any) error {
	cur, err := m.coll(coll).Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}

// Insert upserts documents by _id. Wrapped scalar markers are stored as
// native BSON values, the way mongoimport would.
func (m *MongoStore) Insert(ctx context.Context, coll Collection, docs []record.Document) error {
	if len(docs) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(docs))
	for i, doc := range docs {
		native, err := toBSON(doc)
		if err != nil {
			return storeErr("insert", coll, fmt.Errorf("document #%d: %w", i, err))
		}
		d, ok := native.(bson.M)
		if !ok || d["_id"] == nil {
			return storeErr("insert", coll, fmt.Errorf("document #%d: missing _id", i))
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": d["_id"]}).
			SetReplacement(d).
			SetUpsert(true))
	}
	if _, err := m.coll(coll).BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true)); err != nil {
		return storeErr("insert", coll, err)
	}
	return nil
}

func (m *MongoStore) Ping(ctx context.Context) error {
	if err := m.client.Ping(ctx, nil); err != nil {
		return storeErr("ping", "", err)
	}
	return nil
}

func (m *MongoStore) Close(ctx context.Context) error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}

func mongoFilter(f Filter) bson.M {
	var and []bson.M

	if f.Search != nil && f.Search.Term != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search.Term), Options: "i"}
		or := make([]bson.M, 0, len(f.Search.Fields))
		for _, field := range f.Search.Fields {
			or = append(or, bson.M{field: re})
		}
		if len(or) > 0 {
			and = append(and, bson.M{"$or": or})
		}
	}
	for _, field := range sortedKeys(f.Equals) {
		and = append(and, bson.M{field: refValue(field, f.Equals[field])})
	}
	if len(f.AnyEqual) > 0 {
		or := make([]bson.M, 0, len(f.AnyEqual))
		for _, field := range sortedKeys(f.AnyEqual) {
			or = append(or, bson.M{field: refValue(field, f.AnyEqual[field])})
		}
		and = append(and, bson.M{"$or": or})
	}
	if f.IDs != nil {
		ids := make([]any, 0, len(f.IDs)*2)
		for _, id := range f.IDs {
			ids = append(ids, idCandidates(id)...)
		}
		and = append(and, bson.M{"_id": bson.M{"$in": ids}})
	}
	if f.ExcludeID != "" {
		and = append(and, bson.M{"_id": bson.M{"$nin": idCandidates(f.ExcludeID)}})
	}
	if f.Since != nil {
		and = append(and, sinceExpr(f.Since.Field, f.Since.From))
	}

	switch len(and) {
	case 0:
		return bson.M{}
	case 1:
		return and[0]
	default:
		return bson.M{"$and": and}
	}
}

// refValue matches id-like fields whether the reference was stored as an
// ObjectID or as its hex string.
func refValue(field, v string) any {
	if field == "_id" || field == "userId" {
		return bson.M{"$in": idCandidates(v)}
	}
	return v
}

func idCandidates(id string) []any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return []any{oid, id}
	}
	return []any{id}
}

// asDate converts a field to a date server-side so ISO strings and native
// dates compare alike. Unconvertible values become null.
func asDate(field string) bson.M {
	return bson.M{"$convert": bson.M{
		"input":   "$" + field,
		"to":      "date",
		"onError": nil,
		"onNull":  nil,
	}}
}

func sinceExpr(field string, from time.Time) bson.M {
	return bson.M{"$expr": bson.M{"$gte": bson.A{asDate(field), from.UTC()}}}
}

// plainDoc strips driver types so the normalizer only sees plain Go values.
func plainDoc(m bson.M) record.Document {
	out := make(record.Document, len(m))
	for k, v := range m {
		out[k] = plainValue(v)
	}
	return out
}

func plainValue(v any) any {
	switch t := v.(type) {
	case bson.M:
		return plainDoc(t)
	case map[string]any:
		return plainDoc(t)
	case bson.D:
		out := make(record.Document, len(t))
		for _, e := range t {
			out[e.Key] = plainValue(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = plainValue(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = plainValue(item)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.ObjectID:
		return t.Hex()
	case primitive.Decimal128:
		return t.String()
	case primitive.Timestamp:
		return time.Unix(int64(t.T), 0).UTC()
	default:
		return v
	}
}

// toBSON turns wrapped markers into native BSON values and leaves
// everything else as is.
func toBSON(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 1 {
			if native, ok, err := unwrapMarker(t); ok || err != nil {
				return native, err
			}
		}
		out := make(bson.M, len(t))
		for k, item := range t {
			n, err := toBSON(item)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = n
		}
		return out, nil
	case []any:
		out := make(bson.A, len(t))
		for i, item := range t {
			n, err := toBSON(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	default:
		return v, nil
	}
}

func unwrapMarker(m map[string]any) (any, bool, error) {
	for key, inner := range m {
		switch key {
		case "$date":
			t, err := record.ParseInstant(m)
			if err != nil {
				return nil, true, err
			}
			return primitive.NewDateTimeFromTime(t), true, nil
		case "$numberInt":
			n, err := record.NormalizeInt(m)
			if err != nil {
				return nil, true, err
			}
			return int32(n), true, nil
		case "$numberLong":
			n, err := record.NormalizeInt(m)
			if err != nil {
				return nil, true, err
			}
			return n, true, nil
		case "$numberDouble":
			f, err := record.NormalizeFloat(m)
			if err != nil {
				return nil, true, err
			}
			return f, true, nil
		case "$numberDecimal":
			s, _ := inner.(string)
			d, err := primitive.ParseDecimal128(s)
			if err != nil {
				return nil, true, fmt.Errorf("decimal %q: %w", s, err)
			}
			return d, true, nil
		case "$oid":
			s, _ := inner.(string)
			oid, err := primitive.ObjectIDFromHex(s)
			if err != nil {
				return nil, true, fmt.Errorf("object id %q: %w", s, err)
			}
			return oid, true, nil
		}
	}
	return nil, false, nil
}
