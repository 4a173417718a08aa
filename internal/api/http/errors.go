package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/examstack/examstack/internal/exam"
	"github.com/examstack/examstack/internal/submission"
)

// writeError maps the error taxonomy onto HTTP status codes in one place.
// Unrecognized errors are logged and surface as an opaque 500 so internals
// never leak to candidates.
func writeError(w http.ResponseWriter, err error) {
	var code int
	msg := err.Error()
	switch {
	case errors.Is(err, submission.ErrNotFound), errors.Is(err, exam.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, submission.ErrUnauthorized):
		code = http.StatusUnauthorized
	case errors.Is(err, submission.ErrForbidden):
		code = http.StatusForbidden
	case errors.Is(err, submission.ErrInvalidInput):
		code = http.StatusBadRequest
	case errors.Is(err, submission.ErrConflict):
		code = http.StatusConflict
	default:
		slog.Error("internal error", "error", err)
		code = http.StatusInternalServerError
		msg = "internal error"
	}
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}
