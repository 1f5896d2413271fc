package domain

import (
	"context"

	"github.com/goccy/go-json"
)

// Article is one record of the metadata artifact. Title and URL are decoded for the
// recommendation path; Raw keeps the full original object for verbatim pass-through.
type Article struct {
	Title string
	URL   string
	Raw   json.RawMessage
}

// Neighbor is a single similarity-index hit.
type Neighbor struct {
	Row      int
	Distance float64
}

// Recommendation is the public projection of a neighboring article.
type Recommendation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// FeedbackRecord is an opaque user-submitted JSON object.
type FeedbackRecord json.RawMessage

// Index answers nearest-neighbor queries over a fixed set of rows.
type Index interface {
	Name() string
	Len() int
	Dimension() int
	Query(ctx context.Context, row, k int) ([]Neighbor, error)
	QueryVector(ctx context.Context, vector []float64, k int) ([]Neighbor, error)
}

// FeedbackStore appends feedback documents to a backing store.
type FeedbackStore interface {
	Name() string
	Insert(ctx context.Context, record FeedbackRecord) error
	Close(ctx context.Context) error
}

// Recommender defines the operations exposed by the recommendation core.
type Recommender interface {
	Articles() []Article
	Count() int
	Recommend(ctx context.Context, articleIndex int) ([]Recommendation, error)
}
