package http

import (
	"encoding/json"
	"net/http"
	"time"

	"cashbot/internal/core"
	"cashbot/internal/log"
	"cashbot/internal/services"
)

type transactionRequest struct {
	Amount      json.Number `json:"amount"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Type        string      `json:"type"`
	Notes       string      `json:"notes"`
	Tags        []string    `json:"tags"`
	ReceiptPath string      `json:"receiptPath"`
	CreatedAt   string      `json:"createdAt"` // optional RFC3339
}

type transactionJSON struct {
	ID          string    `json:"id"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Type        string    `json:"type"`
	Notes       string    `json:"notes,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	ReceiptPath string    `json:"receiptPath,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func transactionView(t core.Transaction) transactionJSON {
	return transactionJSON{
		ID:          t.ID,
		Amount:      t.Amount.InexactFloat64(),
		Description: t.Description,
		Category:    string(t.Category),
		Type:        string(t.Type),
		Notes:       t.Notes,
		Tags:        t.Tags,
		ReceiptPath: t.ReceiptPath,
		CreatedAt:   t.CreatedAt,
	}
}

func (req transactionRequest) toTransaction(userID string, loc *time.Location) (core.Transaction, error) {
	amount, err := core.ParseAmount(req.Amount.String())
	if err != nil {
		return core.Transaction{}, err
	}

	t := core.Transaction{
		UserID:      userID,
		Amount:      amount,
		Description: sanitizeInput(req.Description),
		Category:    core.Category(req.Category),
		Type:        core.TransactionType(req.Type),
		Notes:       sanitizeInput(req.Notes),
		Tags:        req.Tags,
		ReceiptPath: req.ReceiptPath,
	}
	if req.CreatedAt != "" {
		created, err := time.ParseInLocation(time.RFC3339, req.CreatedAt, loc)
		if err != nil {
			return core.Transaction{}, err
		}
		t.CreatedAt = created
	}
	return t, t.Validate()
}

// handleTransactions serves GET (list over a range) and POST (create).
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodGet:
		s.listTransactions(w, r, userID)
	case http.MethodPost:
		s.createTransaction(w, r, userID)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request, userID string) {
	rng, _ := services.ResolveRange(parseRangeQuery(r), s.now(), s.loc)

	txs, err := s.store.ListTransactions(r.Context(), userID, rng.Start, rng.End)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	out := make([]transactionJSON, 0, len(txs))
	for _, t := range txs {
		out = append(out, transactionView(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request, userID string) {
	var req transactionRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	t, err := req.toTransaction(userID, s.loc)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	if err := s.store.CreateTransaction(r.Context(), &t); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.invalidateSummaries(userID)

	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction created",
		log.FieldUserID, userID,
		log.FieldCategory, t.Category,
		log.FieldAmount, t.Amount.String())

	writeJSON(w, http.StatusCreated, transactionView(t))
}

// handleTransactionByID serves GET, PUT and DELETE on a single transaction.
func (s *Server) handleTransactionByID(w http.ResponseWriter, r *http.Request, userID string) {
	id, action := pathID(r.URL.Path, "/api/transactions/")
	if id == "" || action != "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		t, err := s.store.GetTransaction(r.Context(), userID, id)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, transactionView(t))

	case http.MethodPut:
		var req transactionRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		t, err := req.toTransaction(userID, s.loc)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		t.ID = id
		if err := s.store.UpdateTransaction(r.Context(), t); err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		s.invalidateSummaries(userID)
		writeJSON(w, http.StatusOK, transactionView(t))

	case http.MethodDelete:
		if err := s.store.DeleteTransaction(r.Context(), userID, id); err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		s.invalidateSummaries(userID)
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}
