package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"cashbot/internal/core"
	"cashbot/internal/log"
	"cashbot/internal/services"
	"cashbot/internal/storage"
)

// Identity arrives pre-authenticated from the gateway in this header.
const userIDHeader = "X-User-ID"

type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

func (s *Server) requireUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(userIDHeader))
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing "+userIDHeader+" header")
			return
		}
		next(w, r, userID)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// readJSON decodes the body strictly; unknown fields are client mistakes we
// want surfaced, not swallowed.
func readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeStoreError maps domain and storage errors onto HTTP statuses.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrInvalidCategory),
		errors.Is(err, core.ErrInvalidType),
		errors.Is(err, core.ErrInvalidFrequency),
		errors.Is(err, core.ErrInvalidDay):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldError, err,
			log.FieldPath, r.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// pathID extracts the trailing identifier from paths like
// /api/transactions/<id> and reports any sub-action after it.
func pathID(path, prefix string) (id, action string) {
	rest := strings.TrimPrefix(path, prefix)
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return "", ""
	}
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}

// parseRangeQuery maps dashboard query parameters onto a range selection.
func parseRangeQuery(r *http.Request) services.RangeQuery {
	q := r.URL.Query()
	return services.RangeQuery{
		Preset: q.Get("range"),
		From:   q.Get("from"),
		To:     q.Get("to"),
		ToNow:  q.Get("toNow") == "true",
	}
}

// sanitizeInput trims and strips control characters from user text.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
