package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/olv-group/prospect-intel/internal/model"
	"github.com/olv-group/prospect-intel/internal/resilience"
)

// envelope wraps every response body.
type envelope struct {
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{OK: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{OK: false, Error: msg})
}

// handleError maps domain errors to response codes.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	log := zap.L().With(zap.String("path", r.URL.Path))

	var validation *model.ValidationError
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Error())
	case errors.Is(err, model.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, model.ErrUnauthorized.Error())
	case errors.Is(err, model.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, model.ErrRateLimited.Error())
	case errors.Is(err, model.ErrLocked):
		writeError(w, http.StatusConflict, model.ErrLocked.Error())
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, model.ErrNotFound.Error())
	case errors.Is(err, resilience.ErrCircuitOpen):
		log.Warn("circuit open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "upstream unavailable")
	default:
		log.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON reads a JSON body into v. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return model.NewValidationError("body", err.Error())
	}
	return nil
}

const maxBodyBytes = 1 << 20
