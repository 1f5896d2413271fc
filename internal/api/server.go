// Package api exposes the recommender and feedback sink over HTTP.
package api

import (
	"bytes"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"newsrec/internal/config"
	"newsrec/internal/domain"
	"newsrec/internal/feedback"
)

// maxBodyBytes caps request bodies on the POST endpoints.
const maxBodyBytes = 1 << 20

// Server holds the immutable state shared by every request.
type Server struct {
	recommender  domain.Recommender
	sink         *feedback.Sink
	cfg          *config.AppConfig
	validate     *validator.Validate
	articlesJSON []byte
}

// NewServer builds a Server. The article list is serialized once up front since
// the corpus never changes.
func NewServer(recommender domain.Recommender, sink *feedback.Sink, cfg *config.AppConfig) *Server {
	if sink == nil {
		sink = feedback.NewSink(nil)
	}
	return &Server{
		recommender:  recommender,
		sink:         sink,
		cfg:          cfg,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		articlesJSON: encodeArticles(recommender.Articles()),
	}
}

// Routes returns the HTTP handler for the whole API.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(accessLog)
	r.Use(recoverJSON)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, "not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	r.Get("/", s.home)
	r.Get("/healthz", s.health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/articles", s.listArticles)
		r.Post("/recommend", s.recommend)
		r.With(s.feedbackRateLimit()).Post("/feedback", s.storeFeedback)
	})

	return r
}

func (s *Server) corsOrigins() []string {
	if len(s.cfg.Server.CORSOrigins) > 0 {
		return s.cfg.Server.CORSOrigins
	}
	return []string{"*"}
}

func (s *Server) feedbackRateLimit() func(http.Handler) http.Handler {
	limit := s.cfg.Feedback.RateLimitPerMinute
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(limit, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			respondError(w, r, http.StatusTooManyRequests, "too many requests", nil)
		}),
	)
}

// encodeArticles joins the raw article objects into one JSON array in load order.
func encodeArticles(articles []domain.Article) []byte {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, a := range articles {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(a.Raw)
	}
	buf.WriteByte(']')
	return buf.Bytes()
}
