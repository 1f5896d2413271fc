package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"newsrec/internal/logging"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("encode response")
		data = []byte(`{"error":"internal server error"}`)
		status = http.StatusInternalServerError
	}
	respondRaw(w, r, status, data)
}

func respondRaw(w http.ResponseWriter, r *http.Request, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("write response")
	}
}

// respondError writes {"error": msg}. A non-nil cause is logged, never sent.
func respondError(w http.ResponseWriter, r *http.Request, status int, msg string, cause error) {
	if cause != nil {
		ev := logging.Ctx(r.Context()).Warn()
		if status >= http.StatusInternalServerError {
			ev = logging.Ctx(r.Context()).Error()
		}
		ev.Err(cause).Int("status", status).Msg(msg)
	}
	respondJSON(w, r, status, errorResponse{Error: msg})
}
