// Package memory is an in-process stand-in for the Sheets exporter, used in
// tests and when no spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"cashbot/internal/core"
	ports "cashbot/internal/sheets"
)

type Store struct {
	mu   sync.Mutex
	rows []core.Transaction
}

var _ ports.TransactionAppender = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// Append stores the transaction and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, t)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (s *Store) Rows() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.rows...)
}
