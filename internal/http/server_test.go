package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cashbot/internal/core"
	"cashbot/internal/log"
	"cashbot/internal/storage"
)

var testLoc = time.FixedZone("UTC+2", 2*60*60)

var testNow = time.Date(2024, 3, 15, 10, 30, 0, 0, testLoc)

type fakeLinkCode struct {
	userID    string
	expiresAt time.Time
}

// fakeStore is an in-memory Store. Tests run requests sequentially, so no
// locking is needed.
type fakeStore struct {
	txs      map[string]core.Transaction
	rules    map[string]core.RecurringRule
	profiles map[string]core.Profile
	codes    map[string]fakeLinkCode

	nextID      int
	listTxCalls int
	failWith    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		txs:      make(map[string]core.Transaction),
		rules:    make(map[string]core.RecurringRule),
		profiles: make(map[string]core.Profile),
		codes:    make(map[string]fakeLinkCode),
	}
}

func (f *fakeStore) newID() string {
	f.nextID++
	return fmt.Sprintf("id-%d", f.nextID)
}

func (f *fakeStore) ListTransactions(_ context.Context, userID string, from, to time.Time) ([]core.Transaction, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.listTxCalls++
	var out []core.Transaction
	for _, t := range f.txs {
		if t.UserID != userID {
			continue
		}
		if t.CreatedAt.Before(from) || !t.CreatedAt.Before(to) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeStore) ListRecurringRules(_ context.Context, userID string) ([]core.RecurringRule, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []core.RecurringRule
	for _, r := range f.rules {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) GetProfile(_ context.Context, userID string) (core.Profile, error) {
	if f.failWith != nil {
		return core.Profile{}, f.failWith
	}
	if p, ok := f.profiles[userID]; ok {
		return p, nil
	}
	return core.Profile{UserID: userID, MonthlySalary: decimal.Zero}, nil
}

func (f *fakeStore) CreateTransaction(_ context.Context, t *core.Transaction) error {
	t.ID = f.newID()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = testNow
	}
	f.txs[t.ID] = *t
	return nil
}

func (f *fakeStore) GetTransaction(_ context.Context, userID, id string) (core.Transaction, error) {
	t, ok := f.txs[id]
	if !ok || t.UserID != userID {
		return core.Transaction{}, storage.ErrNotFound
	}
	return t, nil
}

func (f *fakeStore) UpdateTransaction(_ context.Context, t core.Transaction) error {
	old, ok := f.txs[t.ID]
	if !ok || old.UserID != t.UserID {
		return storage.ErrNotFound
	}
	t.CreatedAt = old.CreatedAt
	f.txs[t.ID] = t
	return nil
}

func (f *fakeStore) DeleteTransaction(_ context.Context, userID, id string) error {
	t, ok := f.txs[id]
	if !ok || t.UserID != userID {
		return storage.ErrNotFound
	}
	delete(f.txs, id)
	return nil
}

func (f *fakeStore) CreateRecurringRule(_ context.Context, r *core.RecurringRule) error {
	r.ID = f.newID()
	r.CreatedAt = testNow
	f.rules[r.ID] = *r
	return nil
}

func (f *fakeStore) UpdateRecurringRule(_ context.Context, r core.RecurringRule) error {
	old, ok := f.rules[r.ID]
	if !ok || old.UserID != r.UserID {
		return storage.ErrNotFound
	}
	r.CreatedAt = old.CreatedAt
	f.rules[r.ID] = r
	return nil
}

func (f *fakeStore) SetRecurringRuleActive(_ context.Context, userID, id string, active bool) error {
	r, ok := f.rules[id]
	if !ok || r.UserID != userID {
		return storage.ErrNotFound
	}
	r.Active = active
	f.rules[id] = r
	return nil
}

func (f *fakeStore) DeleteRecurringRule(_ context.Context, userID, id string) error {
	r, ok := f.rules[id]
	if !ok || r.UserID != userID {
		return storage.ErrNotFound
	}
	delete(f.rules, id)
	return nil
}

func (f *fakeStore) SetMonthlySalary(_ context.Context, userID string, salary decimal.Decimal) error {
	p, ok := f.profiles[userID]
	if !ok {
		p = core.Profile{UserID: userID}
	}
	p.MonthlySalary = salary
	f.profiles[userID] = p
	return nil
}

func (f *fakeStore) CreateLinkCode(_ context.Context, userID, code string, expiresAt time.Time) error {
	f.codes[code] = fakeLinkCode{userID: userID, expiresAt: expiresAt}
	return nil
}

func newTestServer(t *testing.T, store *fakeStore) *Server {
	t.Helper()

	logger := log.New(log.Config{
		Component: log.ComponentHTTP,
		Handler:   slog.NewTextHandler(io.Discard, nil),
	})
	srv := NewServer("127.0.0.1:0", store, logger, Options{Location: testLoc})
	srv.now = func() time.Time { return testNow }

	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func doRequest(t *testing.T, srv *Server, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set(userIDHeader, userID)
	}
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestMissingUserHeader(t *testing.T) {
	srv := newTestServer(t, newFakeStore())

	for _, path := range []string{"/api/dashboard", "/api/transactions", "/api/settings"} {
		rec := doRequest(t, srv, http.MethodGet, path, "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s without user header: got %d, want 401", path, rec.Code)
		}
	}
}

func TestHealthEndpointsSkipAuth(t *testing.T) {
	srv := newTestServer(t, newFakeStore())

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doRequest(t, srv, http.MethodGet, path, "", "")
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s: got %d, want 200", path, rec.Code)
		}
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t, newFakeStore())

	rec := doRequest(t, srv, http.MethodGet, "/api/dashboard", "u1", "")
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
}

func TestRequestLoggerCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{
		Component: log.ComponentHTTP,
		Handler:   slog.NewTextHandler(&buf, nil),
	})
	srv := NewServer("127.0.0.1:0", newFakeStore(), logger, Options{Location: testLoc})
	srv.now = func() time.Time { return testNow }
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	rec := doRequest(t, srv, http.MethodPost, "/api/transactions", "u1",
		`{"amount": 12, "description": "Coffee", "category": "Food", "type": "expense"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: got %d, body %s", rec.Code, rec.Body.String())
	}

	out := buf.String()
	if !strings.Contains(out, "Transaction created") {
		t.Fatalf("handler log record missing: %q", out)
	}
	if !strings.Contains(out, "request_id=req_") {
		t.Errorf("handler log not enriched with the trace request ID: %q", out)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	srv := newTestServer(t, newFakeStore())

	rec := doRequest(t, srv, http.MethodPost, "/api/transactions", "u1",
		`{"amount": 42.5, "description": "Groceries", "category": "Food", "type": "expense", "tags": ["weekly"]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: got %d, body %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[transactionJSON](t, rec)
	if created.ID == "" || created.Amount != 42.5 || created.Category != "Food" {
		t.Fatalf("unexpected created transaction: %+v", created)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/transactions?range=month", "u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: got %d", rec.Code)
	}
	if list := decodeBody[[]transactionJSON](t, rec); len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("list = %+v, want the created transaction", list)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/transactions/"+created.ID, "u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: got %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPut, "/api/transactions/"+created.ID, "u1",
		`{"amount": 45, "description": "Groceries and snacks", "category": "Food", "type": "expense"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: got %d, body %s", rec.Code, rec.Body.String())
	}
	if updated := decodeBody[transactionJSON](t, rec); updated.Amount != 45 {
		t.Errorf("updated amount = %v, want 45", updated.Amount)
	}

	rec = doRequest(t, srv, http.MethodDelete, "/api/transactions/"+created.ID, "u1", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: got %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/transactions/"+created.ID, "u1", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: got %d, want 404", rec.Code)
	}
}

func TestTransactionOwnerIsolation(t *testing.T) {
	store := newFakeStore()
	srv := newTestServer(t, store)

	rec := doRequest(t, srv, http.MethodPost, "/api/transactions", "u1",
		`{"amount": 10, "description": "Lunch", "category": "Food", "type": "expense"}`)
	created := decodeBody[transactionJSON](t, rec)

	rec = doRequest(t, srv, http.MethodGet, "/api/transactions/"+created.ID, "u2", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("cross-owner get: got %d, want 404", rec.Code)
	}
	rec = doRequest(t, srv, http.MethodDelete, "/api/transactions/"+created.ID, "u2", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("cross-owner delete: got %d, want 404", rec.Code)
	}
}

func TestTransactionValidation(t *testing.T) {
	srv := newTestServer(t, newFakeStore())

	tests := []struct {
		name string
		body string
	}{
		{"negative amount", `{"amount": -5, "description": "x", "category": "Food", "type": "expense"}`},
		{"empty description", `{"amount": 5, "description": "  ", "category": "Food", "type": "expense"}`},
		{"unknown category", `{"amount": 5, "description": "x", "category": "Lottery", "type": "expense"}`},
		{"unknown field", `{"amount": 5, "description": "x", "category": "Food", "type": "expense", "bogus": 1}`},
		{"not JSON", `amount=5`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/api/transactions", "u1", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("got %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestTransactionsMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, newFakeStore())

	rec := doRequest(t, srv, http.MethodDelete, "/api/transactions", "u1", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("got %d, want 405", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != "GET, POST" {
		t.Errorf("Allow = %q, want %q", allow, "GET, POST")
	}
}

func TestRecurringLifecycle(t *testing.T) {
	srv := newTestServer(t, newFakeStore())

	rec := doRequest(t, srv, http.MethodPost, "/api/recurring", "u1",
		`{"amount": 1200, "description": "Rent", "category": "Bills", "type": "expense", "frequency": "monthly", "dayOfMonth": 1}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: got %d, body %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[recurringJSON](t, rec)
	if !created.Active {
		t.Error("new rule should default to active")
	}
	if created.DayOfMonth == nil || *created.DayOfMonth != 1 {
		t.Errorf("dayOfMonth = %v, want 1", created.DayOfMonth)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/recurring/"+created.ID+"/toggle", "u1",
		`{"active": false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle: got %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/recurring", "u1", "")
	list := decodeBody[[]recurringJSON](t, rec)
	if len(list) != 1 || list[0].Active {
		t.Fatalf("list after toggle = %+v, want one inactive rule", list)
	}

	rec = doRequest(t, srv, http.MethodPut, "/api/recurring/"+created.ID, "u1",
		`{"amount": 1250, "description": "Rent", "category": "Bills", "type": "expense", "frequency": "monthly", "dayOfMonth": 1, "active": true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: got %d, body %s", rec.Code, rec.Body.String())
	}
	if updated := decodeBody[recurringJSON](t, rec); updated.Amount != 1250 || !updated.Active {
		t.Errorf("updated rule = %+v", updated)
	}

	rec = doRequest(t, srv, http.MethodDelete, "/api/recurring/"+created.ID, "u1", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: got %d", rec.Code)
	}
}

func TestRecurringValidation(t *testing.T) {
	srv := newTestServer(t, newFakeStore())

	tests := []struct {
		name string
		body string
	}{
		{"weekly without day", `{"amount": 10, "description": "Gym", "category": "Health", "type": "expense", "frequency": "weekly"}`},
		{"monthly day out of range", `{"amount": 10, "description": "Rent", "category": "Bills", "type": "expense", "frequency": "monthly", "dayOfMonth": 32}`},
		{"bad frequency", `{"amount": 10, "description": "Rent", "category": "Bills", "type": "expense", "frequency": "daily", "dayOfMonth": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/api/recurring", "u1", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("got %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRecurringUnknownAction(t *testing.T) {
	srv := newTestServer(t, newFakeStore())

	rec := doRequest(t, srv, http.MethodPost, "/api/recurring/abc/frobnicate", "u1", `{}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("got %d, want 404", rec.Code)
	}
}

func TestDashboardCachingAndInvalidation(t *testing.T) {
	store := newFakeStore()
	store.txs["t1"] = core.Transaction{
		ID: "t1", UserID: "u1",
		Amount:      decimal.NewFromInt(100),
		Description: "Groceries", Category: "Food", Type: core.Expense,
		CreatedAt: time.Date(2024, 3, 10, 12, 0, 0, 0, testLoc),
	}
	srv := newTestServer(t, store)

	rec := doRequest(t, srv, http.MethodGet, "/api/dashboard?range=month", "u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard: got %d, body %s", rec.Code, rec.Body.String())
	}
	first := decodeBody[map[string]any](t, rec)
	if first["monthLabel"] != "March 2024" {
		t.Errorf("monthLabel = %v, want March 2024", first["monthLabel"])
	}
	if store.listTxCalls != 1 {
		t.Fatalf("after first build: %d store reads, want 1", store.listTxCalls)
	}

	// Second hit is served from cache.
	doRequest(t, srv, http.MethodGet, "/api/dashboard?range=month", "u1", "")
	if store.listTxCalls != 1 {
		t.Fatalf("after cached read: %d store reads, want 1", store.listTxCalls)
	}

	// A write drops the cached summary.
	rec = doRequest(t, srv, http.MethodPost, "/api/transactions", "u1",
		`{"amount": 50, "description": "Taxi", "category": "Transport", "type": "expense"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: got %d", rec.Code)
	}
	rec = doRequest(t, srv, http.MethodGet, "/api/dashboard?range=month", "u1", "")
	if store.listTxCalls != 2 {
		t.Fatalf("after invalidation: %d store reads, want 2", store.listTxCalls)
	}
	rebuilt := decodeBody[map[string]any](t, rec)
	summary, _ := rebuilt["summary"].(map[string]any)
	if summary["expenses"] != 150.0 {
		t.Errorf("expenses after write = %v, want 150", summary["expenses"])
	}
}

func TestDashboardStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.failWith = fmt.Errorf("disk on fire")
	srv := newTestServer(t, store)

	rec := doRequest(t, srv, http.MethodGet, "/api/dashboard", "u1", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("got %d, want 500", rec.Code)
	}
	body := decodeBody[map[string]string](t, rec)
	if body["error"] != "internal error" {
		t.Errorf("error = %q, internal details must not leak", body["error"])
	}
}

func TestSettings(t *testing.T) {
	srv := newTestServer(t, newFakeStore())

	rec := doRequest(t, srv, http.MethodGet, "/api/settings", "u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: got %d", rec.Code)
	}
	if got := decodeBody[settingsJSON](t, rec); got.MonthlySalary != 0 || got.TelegramLinked {
		t.Errorf("fresh profile = %+v, want zero salary and unlinked", got)
	}

	rec = doRequest(t, srv, http.MethodPut, "/api/settings", "u1", `{"monthlySalary": 2500.5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("put: got %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/settings", "u1", "")
	if got := decodeBody[settingsJSON](t, rec); got.MonthlySalary != 2500.5 {
		t.Errorf("salary after update = %v, want 2500.5", got.MonthlySalary)
	}

	rec = doRequest(t, srv, http.MethodPut, "/api/settings", "u1", `{"monthlySalary": -1}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative salary: got %d, want 400", rec.Code)
	}
}

func TestLinkCode(t *testing.T) {
	store := newFakeStore()
	srv := newTestServer(t, store)

	rec := doRequest(t, srv, http.MethodPost, "/api/link-code", "u1", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("got %d, body %s", rec.Code, rec.Body.String())
	}
	issued := decodeBody[linkCodeJSON](t, rec)
	if len(issued.Code) != 6 {
		t.Fatalf("code %q, want 6 characters", issued.Code)
	}
	for _, r := range issued.Code {
		if !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			t.Fatalf("code %q contains %q, want uppercase alphanumerics", issued.Code, r)
		}
	}
	if want := testNow.Add(10 * time.Minute); !issued.ExpiresAt.Equal(want) {
		t.Errorf("expiresAt = %v, want %v", issued.ExpiresAt, want)
	}
	stored, ok := store.codes[issued.Code]
	if !ok || stored.userID != "u1" {
		t.Errorf("code not persisted for the requesting user: %+v", stored)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/link-code", "u1", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET link-code: got %d, want 405", rec.Code)
	}
}
