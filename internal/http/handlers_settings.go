package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"cashbot/internal/core"
	"cashbot/internal/log"
)

type settingsJSON struct {
	MonthlySalary  float64 `json:"monthlySalary"`
	TelegramLinked bool    `json:"telegramLinked"`
}

// handleSettings serves GET (current profile) and PUT (update salary).
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodGet:
		profile, err := s.store.GetProfile(r.Context(), userID)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, settingsJSON{
			MonthlySalary:  profile.MonthlySalary.InexactFloat64(),
			TelegramLinked: profile.TelegramChatID != 0,
		})

	case http.MethodPut:
		var req struct {
			MonthlySalary json.Number `json:"monthlySalary"`
		}
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		salary, err := core.ParseAmount(req.MonthlySalary.String())
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		if err := s.store.SetMonthlySalary(r.Context(), userID, salary); err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		s.invalidateSummaries(userID)

		log.FromContext(r.Context()).InfoContext(r.Context(), "Monthly salary updated",
			log.FieldUserID, userID,
			log.FieldAmount, salary.String())

		writeJSON(w, http.StatusOK, settingsJSON{MonthlySalary: salary.InexactFloat64()})

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut)
	}
}

type linkCodeJSON struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// handleLinkCode issues a short-lived code the user types into the chat bot.
func (s *Server) handleLinkCode(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	code := newLinkCode()
	expiresAt := s.now().Add(s.linkCodeTTL)
	if err := s.store.CreateLinkCode(r.Context(), userID, code, expiresAt); err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Link code issued",
		log.FieldUserID, userID)

	writeJSON(w, http.StatusCreated, linkCodeJSON{Code: code, ExpiresAt: expiresAt})
}

// newLinkCode returns a 6-character uppercase code. UUIDs give us enough
// entropy that collisions within the code TTL are not a practical concern.
func newLinkCode() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return raw[:6]
}
