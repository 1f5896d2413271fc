package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"newsrec/internal/domain"
	"newsrec/internal/metrics"
)

// DefaultTopK is the number of recommendations returned per query.
const DefaultTopK = 10

// ErrInvalidIndex is returned for an article index outside [0, len(articles)).
var ErrInvalidIndex = errors.New("invalid index")

// RecommendService answers "articles similar to article i" queries. It is immutable
// after construction and safe for concurrent use.
type RecommendService struct {
	articles []domain.Article
	index    domain.Index
	topK     int
}

// NewRecommendService pairs the article sequence with an index built over the
// matching embedding rows.
func NewRecommendService(articles []domain.Article, index domain.Index, topK int) (*RecommendService, error) {
	if index.Len() != len(articles) {
		return nil, fmt.Errorf("index has %d rows but there are %d articles", index.Len(), len(articles))
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &RecommendService{articles: articles, index: index, topK: topK}, nil
}

// Articles returns all articles in load order. Callers must not modify the slice.
func (s *RecommendService) Articles() []domain.Article { return s.articles }

// Count returns the number of loaded articles.
func (s *RecommendService) Count() int { return len(s.articles) }

// TopK returns the configured result size.
func (s *RecommendService) TopK() int { return s.topK }

// Recommend returns the title and url of the articles nearest to articleIndex,
// nearest first. The article itself is included unless the index excludes self.
func (s *RecommendService) Recommend(ctx context.Context, articleIndex int) ([]domain.Recommendation, error) {
	if articleIndex < 0 || articleIndex >= len(s.articles) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidIndex, articleIndex)
	}
	start := time.Now()
	neighbors, err := s.index.Query(ctx, articleIndex, s.topK)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	metrics.RecordQuery(s.index.Name(), time.Since(start))

	recs := make([]domain.Recommendation, 0, len(neighbors))
	for _, n := range neighbors {
		a := s.articles[n.Row]
		recs = append(recs, domain.Recommendation{Title: a.Title, URL: a.URL})
	}
	return recs, nil
}
