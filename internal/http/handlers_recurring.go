package http

import (
	"encoding/json"
	"net/http"
	"time"

	"cashbot/internal/core"
	"cashbot/internal/log"
)

type recurringRequest struct {
	Amount      json.Number `json:"amount"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Type        string      `json:"type"`
	Frequency   string      `json:"frequency"`
	DayOfMonth  *int        `json:"dayOfMonth"`
	DayOfWeek   *int        `json:"dayOfWeek"`
	Active      *bool       `json:"active"`
	StartDate   string      `json:"startDate"` // optional YYYY-MM-DD
}

type recurringJSON struct {
	ID          string    `json:"id"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Type        string    `json:"type"`
	Frequency   string    `json:"frequency"`
	DayOfMonth  *int      `json:"dayOfMonth,omitempty"`
	DayOfWeek   *int      `json:"dayOfWeek,omitempty"`
	Active      bool      `json:"active"`
	StartDate   string    `json:"startDate,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func recurringView(rule core.RecurringRule) recurringJSON {
	v := recurringJSON{
		ID:          rule.ID,
		Amount:      rule.Amount.InexactFloat64(),
		Description: rule.Description,
		Category:    string(rule.Category),
		Type:        string(rule.Type),
		Frequency:   string(rule.Frequency),
		DayOfMonth:  rule.DayOfMonth,
		DayOfWeek:   rule.DayOfWeek,
		Active:      rule.Active,
		CreatedAt:   rule.CreatedAt,
	}
	if !rule.StartDate.IsZero() {
		v.StartDate = rule.StartDate.Format("2006-01-02")
	}
	return v
}

func (req recurringRequest) toRule(userID string, loc *time.Location) (core.RecurringRule, error) {
	amount, err := core.ParseAmount(req.Amount.String())
	if err != nil {
		return core.RecurringRule{}, err
	}

	// New rules default to active unless the client says otherwise.
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	rule := core.RecurringRule{
		UserID:      userID,
		Amount:      amount,
		Description: sanitizeInput(req.Description),
		Category:    core.Category(req.Category),
		Type:        core.TransactionType(req.Type),
		Frequency:   core.Frequency(req.Frequency),
		DayOfMonth:  req.DayOfMonth,
		DayOfWeek:   req.DayOfWeek,
		Active:      active,
	}
	if req.StartDate != "" {
		start, err := time.ParseInLocation("2006-01-02", req.StartDate, loc)
		if err != nil {
			return core.RecurringRule{}, err
		}
		rule.StartDate = start
	}
	return rule, rule.Validate()
}

// handleRecurring serves GET (list) and POST (create).
func (s *Server) handleRecurring(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodGet:
		rules, err := s.store.ListRecurringRules(r.Context(), userID)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		out := make([]recurringJSON, 0, len(rules))
		for _, rule := range rules {
			out = append(out, recurringView(rule))
		}
		writeJSON(w, http.StatusOK, out)

	case http.MethodPost:
		var req recurringRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		rule, err := req.toRule(userID, s.loc)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		if err := s.store.CreateRecurringRule(r.Context(), &rule); err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		s.invalidateSummaries(userID)

		log.FromContext(r.Context()).InfoContext(r.Context(), "Recurring rule created",
			log.FieldUserID, userID,
			"frequency", rule.Frequency,
			log.FieldAmount, rule.Amount.String())

		writeJSON(w, http.StatusCreated, recurringView(rule))

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// handleRecurringByID serves PUT and DELETE on a rule, plus POST .../toggle.
func (s *Server) handleRecurringByID(w http.ResponseWriter, r *http.Request, userID string) {
	id, action := pathID(r.URL.Path, "/api/recurring/")
	if id == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if action == "toggle" {
		s.toggleRecurring(w, r, userID, id)
		return
	}
	if action != "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req recurringRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		rule, err := req.toRule(userID, s.loc)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		rule.ID = id
		if err := s.store.UpdateRecurringRule(r.Context(), rule); err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		s.invalidateSummaries(userID)
		writeJSON(w, http.StatusOK, recurringView(rule))

	case http.MethodDelete:
		if err := s.store.DeleteRecurringRule(r.Context(), userID, id); err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		s.invalidateSummaries(userID)
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, http.MethodPut, http.MethodDelete)
	}
}

func (s *Server) toggleRecurring(w http.ResponseWriter, r *http.Request, userID, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req struct {
		Active bool `json:"active"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.store.SetRecurringRuleActive(r.Context(), userID, id, req.Active); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.invalidateSummaries(userID)
	writeJSON(w, http.StatusOK, map[string]bool{"active": req.Active})
}
