package feedback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestDecodeDocumentKeepsRecordVerbatim(t *testing.T) {
	doc, err := decodeDocument([]byte(`{
		"user": "demo_user",
		"article_idx": 3,
		"ts": {"$date": "2024-01-01T00:00:00Z"},
		"ref": {"$oid": "507f1f77bcf86cd799439011"},
		"count": {"$numberLong": "5"},
		"big": 9999999999,
		"score": 0.5,
		"tags": ["a", 1, null, true]
	}`))
	require.NoError(t, err)

	want := bson.D{
		{Key: "user", Value: "demo_user"},
		{Key: "article_idx", Value: int32(3)},
		{Key: "ts", Value: bson.D{{Key: "$date", Value: "2024-01-01T00:00:00Z"}}},
		{Key: "ref", Value: bson.D{{Key: "$oid", Value: "507f1f77bcf86cd799439011"}}},
		{Key: "count", Value: bson.D{{Key: "$numberLong", Value: "5"}}},
		{Key: "big", Value: int64(9999999999)},
		{Key: "score", Value: 0.5},
		{Key: "tags", Value: bson.A{"a", int32(1), nil, true}},
	}
	assert.Equal(t, want, doc)
}

func TestDecodeDocumentRejectsNonObjects(t *testing.T) {
	for _, in := range []string{`[1]`, `"x"`, `{"a":1} {"b":2}`, `{"a":`} {
		_, err := decodeDocument([]byte(in))
		assert.Error(t, err, in)
	}

	doc, err := decodeDocument([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, doc)
}
