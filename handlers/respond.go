package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"streamvault/api"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError sends a JSON error body. Validation messages are safe to pass
// through verbatim; store and filesystem failures must go through
// serverError instead so internals never leak.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// serverError logs the real failure with request metadata and answers with a
// generic message.
func serverError(logger *slog.Logger, w http.ResponseWriter, r *http.Request, event string, err error) {
	logger.Error(event,
		"error", err,
		"method", r.Method,
		"path", r.URL.Path,
		"requestId", api.RequestID(r.Context()))
	writeError(w, http.StatusInternalServerError, "Server error")
}
