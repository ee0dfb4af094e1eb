package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"admindash/internal/record"
)

func TestMongoFilterEmpty(t *testing.T) {
	assert.Equal(t, bson.M{}, mongoFilter(Filter{}))
}

func TestMongoFilterSearchQuotesTerm(t *testing.T) {
	f := mongoFilter(Filter{Search: &Search{Fields: []string{"title", "message"}, Term: "a.b(c"}})
	re := primitive.Regex{Pattern: `a\.b\(c`, Options: "i"}
	assert.Equal(t, bson.M{"$or": []bson.M{{"title": re}, {"message": re}}}, f)
}

func TestMongoFilterCombinesClauses(t *testing.T) {
	from := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	f := mongoFilter(Filter{
		Equals:    map[string]string{"status": "unresolved", "userId": "u1"},
		ExcludeID: "err_1",
		Since:     &Since{Field: "lastSeen", From: from},
	})

	and, ok := f["$and"].([]bson.M)
	require.True(t, ok)
	require.Len(t, and, 4)
	assert.Equal(t, bson.M{"status": "unresolved"}, and[0])
	assert.Equal(t, bson.M{"userId": bson.M{"$in": []any{"u1"}}}, and[1])
	assert.Equal(t, bson.M{"_id": bson.M{"$nin": []any{"err_1"}}}, and[2])
	assert.Equal(t, sinceExpr("lastSeen", from), and[3])
}

func TestMongoFilterMatchesObjectIDsAndStrings(t *testing.T) {
	hex := "65a1f0c2e4b0a1b2c3d4e5f6"
	oid, err := primitive.ObjectIDFromHex(hex)
	require.NoError(t, err)

	f := mongoFilter(Filter{IDs: []string{hex, "plain"}})
	assert.Equal(t, bson.M{"_id": bson.M{"$in": []any{oid, hex, "plain"}}}, f)

	f = mongoFilter(Filter{IDs: []string{}})
	assert.Equal(t, bson.M{"_id": bson.M{"$in": []any{}}}, f)
}

func TestMongoFilterAnyEqual(t *testing.T) {
	f := mongoFilter(Filter{AnyEqual: map[string]string{"type": "TimeoutError", "userId": "u1"}})
	assert.Equal(t, bson.M{"$or": []bson.M{
		{"type": "TimeoutError"},
		{"userId": bson.M{"$in": []any{"u1"}}},
	}}, f)
}

func TestPlainDocStripsDriverTypes(t *testing.T) {
	oid := primitive.NewObjectID()
	when := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	dec, err := primitive.ParseDecimal128("258.40")
	require.NoError(t, err)

	doc := plainDoc(bson.M{
		"_id":         oid,
		"lastActive":  primitive.NewDateTimeFromTime(when),
		"totalAmount": dec,
		"messages":    bson.A{bson.D{{Key: "role", Value: "user"}}},
		"tokenUsage":  int32(7),
	})

	assert.Equal(t, oid.Hex(), doc["_id"])
	assert.Equal(t, when, doc["lastActive"])
	assert.Equal(t, "258.40", doc["totalAmount"])
	assert.Equal(t, []any{record.Document{"role": "user"}}, doc["messages"])
	assert.Equal(t, int32(7), doc["tokenUsage"])
}

func TestToBSONUnwrapsMarkers(t *testing.T) {
	native, err := toBSON(map[string]any{
		"_id":        map[string]any{"$oid": "65a1f0c2e4b0a1b2c3d4e5f6"},
		"date":       map[string]any{"$date": map[string]any{"$numberLong": "1704873600000"}},
		"tokensUsed": map[string]any{"$numberInt": "1000"},
		"total":      map[string]any{"$numberLong": "5"},
		"ratio":      map[string]any{"$numberDouble": "0.5"},
		"nested":     map[string]any{"a": map[string]any{"$numberInt": "1"}, "b": "x"},
		"list":       []any{map[string]any{"$numberInt": "2"}},
	})
	require.NoError(t, err)
	m := native.(bson.M)

	oid, _ := primitive.ObjectIDFromHex("65a1f0c2e4b0a1b2c3d4e5f6")
	assert.Equal(t, oid, m["_id"])
	assert.Equal(t, primitive.DateTime(1704873600000), m["date"])
	assert.Equal(t, int32(1000), m["tokensUsed"])
	assert.Equal(t, int64(5), m["total"])
	assert.Equal(t, 0.5, m["ratio"])
	assert.Equal(t, bson.M{"a": int32(1), "b": "x"}, m["nested"])
	assert.Equal(t, bson.A{int32(2)}, m["list"])
}

func TestToBSONRejectsBrokenMarker(t *testing.T) {
	_, err := toBSON(map[string]any{"tokensUsed": map[string]any{"$numberInt": "lots"}})
	assert.Error(t, err)
}
