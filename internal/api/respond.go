package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/kathRex/kartbuilds/internal/builds"
	"github.com/kathRex/kartbuilds/internal/sparql"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ErrorStatus maps service and upstream errors to an HTTP status.
func ErrorStatus(err error) int {
	switch {
	case errors.Is(err, builds.ErrUnknownPlaystyle),
		errors.Is(err, builds.ErrUnknownStat),
		errors.Is(err, builds.ErrIncompleteSelection),
		errors.Is(err, sparql.ErrInvalidIRI):
		return http.StatusBadRequest
	case errors.Is(err, builds.ErrUnknownComponent),
		errors.Is(err, builds.ErrNoCombination):
		return http.StatusNotFound
	case errors.Is(err, gobreaker.ErrOpenState),
		errors.Is(err, gobreaker.ErrTooManyRequests):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeServiceError(w http.ResponseWriter, err error) {
	status := ErrorStatus(err)
	msg := err.Error()
	if errors.Is(err, builds.ErrNoCombination) {
		msg = builds.ErrNoCombination.Error()
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
