package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsrec/internal/artifacts"
	"newsrec/internal/artifacts/artifactstest"
	"newsrec/internal/domain"
	"newsrec/internal/index"
)

func newTestService(t *testing.T, n, dim int, opts index.Options) *RecommendService {
	t.Helper()
	fx := artifactstest.WriteCorpus(t, t.TempDir(), n, dim)
	corpus, err := artifacts.Load(fx.MetaPath, fx.EmbeddingsPath)
	require.NoError(t, err)
	svc, err := NewRecommendService(corpus.Articles, index.NewFlat(corpus.Embeddings, opts), DefaultTopK)
	require.NoError(t, err)
	return svc
}

func TestRecommendFiftyArticles(t *testing.T) {
	svc := newTestService(t, 50, 8, index.Options{})

	recs, err := svc.Recommend(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, recs, DefaultTopK)
	assert.Equal(t, domain.Recommendation{Title: "Article 0", URL: "https://news.example.com/a/0"}, recs[0])
}

func TestRecommendOnlyTitleAndURL(t *testing.T) {
	svc := newTestService(t, 12, 4, index.Options{})

	for i := 0; i < svc.Count(); i++ {
		recs, err := svc.Recommend(context.Background(), i)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(recs), DefaultTopK)

		data, err := json.Marshal(recs)
		require.NoError(t, err)
		var decoded []map[string]any
		require.NoError(t, json.Unmarshal(data, &decoded))
		for _, r := range decoded {
			assert.Len(t, r, 2)
			assert.Contains(t, r, "title")
			assert.Contains(t, r, "url")
		}
	}
}

func TestRecommendSmallCorpus(t *testing.T) {
	svc := newTestService(t, 3, 4, index.Options{})
	recs, err := svc.Recommend(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
	assert.Equal(t, "Article 2", recs[0].Title)
}

func TestRecommendExcludeSelf(t *testing.T) {
	svc := newTestService(t, 20, 6, index.Options{ExcludeSelf: true})
	recs, err := svc.Recommend(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, recs, DefaultTopK)
	for _, r := range recs {
		assert.NotEqual(t, "Article 5", r.Title)
	}
}

func TestRecommendInvalidIndex(t *testing.T) {
	svc := newTestService(t, 50, 8, index.Options{})
	for _, idx := range []int{-1, 50, 9999} {
		t.Run(fmt.Sprint(idx), func(t *testing.T) {
			_, err := svc.Recommend(context.Background(), idx)
			assert.ErrorIs(t, err, ErrInvalidIndex)
		})
	}
}

func TestRecommendCancelledContext(t *testing.T) {
	svc := newTestService(t, 5, 2, index.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Recommend(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRecommendServiceRejectsMismatch(t *testing.T) {
	fx := artifactstest.WriteCorpus(t, t.TempDir(), 4, 2)
	corpus, err := artifacts.Load(fx.MetaPath, fx.EmbeddingsPath)
	require.NoError(t, err)

	_, err = NewRecommendService(corpus.Articles[:3], index.NewFlat(corpus.Embeddings, index.Options{}), 10)
	assert.Error(t, err)

	svc, err := NewRecommendService(corpus.Articles, index.NewFlat(corpus.Embeddings, index.Options{}), 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTopK, svc.TopK())
}

func TestRecommendConcurrentMatchesSerial(t *testing.T) {
	// large enough for the flat index to fan out across workers
	fx := artifactstest.WriteCorpus(t, t.TempDir(), 5000, 8)
	corpus, err := artifacts.Load(fx.MetaPath, fx.EmbeddingsPath)
	require.NoError(t, err)

	for _, kind := range []string{index.TypeFlat, index.TypeBallTree} {
		t.Run(kind, func(t *testing.T) {
			idx, err := index.New(kind, corpus.Embeddings, index.Options{Workers: 4})
			require.NoError(t, err)
			svc, err := NewRecommendService(corpus.Articles, idx, DefaultTopK)
			require.NoError(t, err)

			queries := []int{0, 7, 1234, 4095, 4096, 4999}
			want := make([][]domain.Recommendation, len(queries))
			for i, q := range queries {
				want[i], err = svc.Recommend(context.Background(), q)
				require.NoError(t, err)
			}

			const goroutines = 12
			var wg sync.WaitGroup
			results := make([][][]domain.Recommendation, goroutines)
			errs := make([]error, goroutines)
			for g := 0; g < goroutines; g++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					results[g] = make([][]domain.Recommendation, len(queries))
					for i, q := range queries {
						recs, err := svc.Recommend(context.Background(), q)
						if err != nil {
							errs[g] = err
							return
						}
						results[g][i] = recs
					}
				}()
			}
			wg.Wait()

			for g := range results {
				require.NoError(t, errs[g])
				assert.Equal(t, want, results[g], "goroutine %d", g)
			}
		})
	}
}
