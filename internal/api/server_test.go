package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsrec/internal/artifacts"
	"newsrec/internal/artifacts/artifactstest"
	"newsrec/internal/config"
	"newsrec/internal/domain"
	"newsrec/internal/feedback"
	"newsrec/internal/index"
	"newsrec/internal/service"
)

type testEnv struct {
	handler http.Handler
	fixture artifactstest.Corpus
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Index:     config.IndexConfig{Type: index.TypeFlat},
		Recommend: config.RecommendConfig{TopK: service.DefaultTopK},
		Feedback:  config.FeedbackConfig{Backend: "auto"},
	}
}

func newTestEnv(t *testing.T, n, dim int, store domain.FeedbackStore) testEnv {
	t.Helper()
	fx := artifactstest.WriteCorpus(t, t.TempDir(), n, dim)
	corpus, err := artifacts.Load(fx.MetaPath, fx.EmbeddingsPath)
	require.NoError(t, err)
	idx, err := index.New(index.TypeFlat, corpus.Embeddings, index.Options{})
	require.NoError(t, err)
	svc, err := service.NewRecommendService(corpus.Articles, idx, service.DefaultTopK)
	require.NoError(t, err)
	srv := NewServer(svc, feedback.NewSink(store), testConfig())
	return testEnv{handler: srv.Routes(), fixture: fx}
}

func (e testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

type failingStore struct{}

func (failingStore) Name() string { return "failing" }
func (failingStore) Insert(context.Context, domain.FeedbackRecord) error {
	return errors.New("connection reset")
}
func (failingStore) Close(context.Context) error { return nil }

func TestHome(t *testing.T) {
	env := newTestEnv(t, 5, 4, nil)
	rec := env.do(t, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, homeMessage, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestListArticlesRoundTrip(t *testing.T) {
	env := newTestEnv(t, 7, 3, nil)
	rec := env.do(t, http.MethodGet, "/api/articles", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	want, err := json.Marshal(env.fixture.Articles)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), rec.Body.String())

	var got []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 7)
	for i, a := range got {
		assert.Equal(t, env.fixture.Articles[i]["title"], a["title"])
		assert.Contains(t, a, "summary")
		assert.Contains(t, a, "source")
	}
}

func TestRecommendFiftyArticles(t *testing.T) {
	env := newTestEnv(t, 50, 8, nil)
	rec := env.do(t, http.MethodPost, "/api/recommend", `{"article_idx": 0}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Recommendations []map[string]string `json:"recommendations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Recommendations, service.DefaultTopK)
	assert.Equal(t, map[string]string{"title": "Article 0", "url": "https://news.example.com/a/0"}, body.Recommendations[0])
	for _, r := range body.Recommendations {
		assert.Len(t, r, 2)
	}
}

func TestRecommendSmallCorpusReturnsAll(t *testing.T) {
	env := newTestEnv(t, 4, 3, nil)
	rec := env.do(t, http.MethodPost, "/api/recommend", `{"article_idx": 3}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body RecommendResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Recommendations, 4)
	assert.Equal(t, "Article 3", body.Recommendations[0].Title)
}

func TestRecommendInvalidIndex(t *testing.T) {
	env := newTestEnv(t, 50, 8, nil)
	cases := map[string]string{
		"out of range":  `{"article_idx": 9999}`,
		"equal to len":  `{"article_idx": 50}`,
		"negative":      `{"article_idx": -1}`,
		"missing":       `{"other": 1}`,
		"null":          `{"article_idx": null}`,
		"string":        `{"article_idx": "3"}`,
		"empty body":    ``,
		"empty object":  `{}`,
		"whitespace":    `   `,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/recommend", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":"invalid index"}`, rec.Body.String())
		})
	}
}

func TestRecommendMalformedBody(t *testing.T) {
	env := newTestEnv(t, 5, 4, nil)
	for _, body := range []string{`[0]`, `0`, `{"article_idx":`, `not json`} {
		rec := env.do(t, http.MethodPost, "/api/recommend", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.JSONEq(t, `{"error":"invalid request body"}`, rec.Body.String(), body)
	}
}

func TestFeedbackUnavailable(t *testing.T) {
	env := newTestEnv(t, 5, 4, nil)
	for _, body := range []string{`{"user":"demo_user","article_idx":1,"action":"like"}`, `[]`, `garbage`, ``} {
		rec := env.do(t, http.MethodPost, "/api/feedback", body)
		assert.Equal(t, http.StatusInternalServerError, rec.Code, body)
		assert.JSONEq(t, `{"error":"mongodb not connected"}`, rec.Body.String(), body)
	}
}

func TestFeedbackStoredInRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := feedback.NewRedisStore(context.Background(), config.RedisConfig{Addr: mr.Addr(), Key: "feedback"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	env := newTestEnv(t, 5, 4, store)
	payload := `{"user":"demo_user","article_idx":2,"action":"like"}`
	rec := env.do(t, http.MethodPost, "/api/feedback", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"stored"}`, rec.Body.String())

	stored, err := mr.List("feedback")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.JSONEq(t, payload, stored[0])
}

func TestFeedbackRejectsNonObject(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := feedback.NewRedisStore(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	env := newTestEnv(t, 5, 4, store)
	rec := env.do(t, http.MethodPost, "/api/feedback", `["like"]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid request body"}`, rec.Body.String())
	assert.False(t, mr.Exists("feedback"))
}

func TestFeedbackWriteFailure(t *testing.T) {
	env := newTestEnv(t, 5, 4, failingStore{})
	rec := env.do(t, http.MethodPost, "/api/feedback", `{"a":1}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"failed to store feedback"}`, rec.Body.String())
}

func TestUnknownRouteAndMethod(t *testing.T) {
	env := newTestEnv(t, 5, 4, nil)

	rec := env.do(t, http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"not found"}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/recommend", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.JSONEq(t, `{"error":"method not allowed"}`, rec.Body.String())
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, 6, 4, nil)
	rec := env.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, HealthResponse{Status: "ok", Articles: 6, Index: "flat", Feedback: false, FeedbackBackend: "none"}, body)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, 5, 4, nil)
	env.do(t, http.MethodGet, "/", "")

	rec := env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "newsrec_api_requests_total")
}

func TestRequestIDPropagated(t *testing.T) {
	env := newTestEnv(t, 5, 4, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

type panickyRecommender struct{}

func (panickyRecommender) Articles() []domain.Article { return nil }
func (panickyRecommender) Count() int                 { return 0 }
func (panickyRecommender) Recommend(context.Context, int) ([]domain.Recommendation, error) {
	panic("boom")
}

func TestPanicBecomesJSON(t *testing.T) {
	srv := NewServer(panickyRecommender{}, nil, testConfig())
	req := httptest.NewRequest(http.MethodPost, "/api/recommend", strings.NewReader(`{"article_idx":0}`))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestEmptyCorpusArticles(t *testing.T) {
	srv := NewServer(panickyRecommender{}, nil, testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/articles", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	assert.Equal(t, "[]", rec.Body.String())
}

func TestFeedbackRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := feedback.NewRedisStore(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	cfg := testConfig()
	cfg.Feedback.RateLimitPerMinute = 2
	srv := NewServer(panickyRecommender{}, feedback.NewSink(store), cfg)
	h := srv.Routes()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/feedback", strings.NewReader(`{"n":1}`))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
