package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/hedgey/internal/apperr"
)

const maxJSONBytes = 10 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps domain errors to HTTP statuses. Unexpected errors are
// logged under msg and reported as internal errors.
func writeError(w http.ResponseWriter, err error, msg string, attrs ...any) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrEmptyName):
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
	case errors.Is(err, apperr.ErrBadPassphrase):
		writeJSON(w, http.StatusBadRequest, errorBody("passphrase is required"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrLocked):
		writeJSON(w, http.StatusLocked, errorBody("filesystem is locked"))
	case errors.Is(err, apperr.ErrStorageUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorBody("storage unavailable"))
	case errors.Is(err, apperr.ErrDecrypt):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("could not decrypt"))
	default:
		slog.Error(msg, append(attrs, slog.String("error", err.Error()))...)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
