package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"newsrec/internal/domain"
	"newsrec/internal/feedback"
	"newsrec/internal/service"
)

const homeMessage = "News recommender is running!"

const (
	msgInvalidIndex     = "invalid index"
	msgInvalidBody      = "invalid request body"
	msgStoreUnavailable = "mongodb not connected"
	msgStoreFailed      = "failed to store feedback"
	msgInternal         = "internal server error"
)

// RecommendRequest is the body of POST /api/recommend.
type RecommendRequest struct {
	ArticleIdx *int `json:"article_idx" validate:"required,min=0"`
}

// RecommendResponse is the success body of POST /api/recommend.
type RecommendResponse struct {
	Recommendations []domain.Recommendation `json:"recommendations"`
}

// StatusResponse is the success body of POST /api/feedback.
type StatusResponse struct {
	Status string `json:"status"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status          string `json:"status"`
	Articles        int    `json:"articles"`
	Index           string `json:"index"`
	Feedback        bool   `json:"feedback_available"`
	FeedbackBackend string `json:"feedback_backend"`
}

func (s *Server) home(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, homeMessage)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, HealthResponse{
		Status:          "ok",
		Articles:        s.recommender.Count(),
		Index:           s.cfg.Index.Type,
		Feedback:        s.sink.Available(),
		FeedbackBackend: s.sink.Backend(),
	})
}

func (s *Server) listArticles(w http.ResponseWriter, r *http.Request) {
	respondRaw(w, r, http.StatusOK, s.articlesJSON)
}

func (s *Server) recommend(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, msgInvalidBody, err)
		return
	}

	var req RecommendRequest
	if len(body) > 0 {
		if body[0] != '{' || !json.Valid(body) {
			respondError(w, r, http.StatusBadRequest, msgInvalidBody, nil)
			return
		}
		// a wrongly typed article_idx is still a bad index, not a bad body
		if err := json.Unmarshal(body, &req); err != nil {
			respondError(w, r, http.StatusBadRequest, msgInvalidIndex, nil)
			return
		}
	}
	if err := s.validate.Struct(req); err != nil {
		respondError(w, r, http.StatusBadRequest, msgInvalidIndex, nil)
		return
	}

	recs, err := s.recommender.Recommend(r.Context(), *req.ArticleIdx)
	switch {
	case errors.Is(err, service.ErrInvalidIndex):
		respondError(w, r, http.StatusBadRequest, msgInvalidIndex, nil)
		return
	case err != nil:
		respondError(w, r, http.StatusInternalServerError, msgInternal, err)
		return
	}
	respondJSON(w, r, http.StatusOK, RecommendResponse{Recommendations: recs})
}

func (s *Server) storeFeedback(w http.ResponseWriter, r *http.Request) {
	if !s.sink.Available() {
		respondError(w, r, http.StatusInternalServerError, msgStoreUnavailable, nil)
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, msgInvalidBody, err)
		return
	}

	err = s.sink.Store(r.Context(), domain.FeedbackRecord(body))
	switch {
	case err == nil:
		respondJSON(w, r, http.StatusOK, StatusResponse{Status: "stored"})
	case errors.Is(err, feedback.ErrInvalidRecord):
		respondError(w, r, http.StatusBadRequest, msgInvalidBody, nil)
	case errors.Is(err, feedback.ErrStoreUnavailable):
		respondError(w, r, http.StatusInternalServerError, msgStoreUnavailable, nil)
	default:
		respondError(w, r, http.StatusInternalServerError, msgStoreFailed, err)
	}
}

// readBody returns the trimmed request body, capped at maxBodyBytes.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	return bytes.TrimSpace(data), nil
}
