package http

import (
	"fmt"
	"net/http"
)

// handleDashboard serves the aggregated summary for the requested range.
// Responses are cached per user and range selection; every write for the
// user drops their cached variants.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	q := parseRangeQuery(r)
	key := summaryCacheKey(userID, q.Preset, q.From, q.To, q.ToNow)

	if summary, ok := s.summaryCache.Get(key); ok {
		writeJSON(w, http.StatusOK, summary)
		return
	}

	summary, err := s.summaries.Build(r.Context(), userID, q, s.now())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	s.summaryCache.Set(key, summary)
	writeJSON(w, http.StatusOK, summary)
}

func summaryCacheKey(userID, preset, from, to string, toNow bool) string {
	return fmt.Sprintf("%s|%s|%s|%s|%t", userID, preset, from, to, toNow)
}

// invalidateSummaries drops every cached dashboard for the user. Called on
// each write so the next dashboard read reflects it.
func (s *Server) invalidateSummaries(userID string) {
	s.summaryCache.DeletePrefix(userID + "|")
}
