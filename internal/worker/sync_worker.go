// Package worker drains transactions awaiting spreadsheet export.
package worker

import (
	"context"
	"fmt"
	"time"

	"cashbot/internal/core"
	"cashbot/internal/log"
	"cashbot/internal/sheets"
)

// Store is the slice of persistence the worker needs: the pending queue and
// the two status transitions.
type Store interface {
	ListPendingSync(ctx context.Context, limit int) ([]core.Transaction, error)
	MarkTransactionSynced(ctx context.Context, id string) error
	MarkTransactionSyncError(ctx context.Context, id string) error
}

// SyncWorker periodically exports pending transactions to a spreadsheet.
// Rows that fail to export are marked and retried on a later pass once the
// owner edits them back to pending.
type SyncWorker struct {
	store     Store
	appender  sheets.TransactionAppender
	batchSize int
	interval  time.Duration
	logger    *log.Logger
}

func NewSyncWorker(store Store, appender sheets.TransactionAppender, batchSize int, interval time.Duration, logger *log.Logger) *SyncWorker {
	return &SyncWorker{
		store:     store,
		appender:  appender,
		batchSize: batchSize,
		interval:  interval,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// Run drains the queue once at startup, then on every tick until the context
// is cancelled.
func (w *SyncWorker) Run(ctx context.Context) error {
	if _, err := w.ProcessPending(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup export failed", "error", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.ProcessPending(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic export failed", "error", err)
			}
		}
	}
}

// ProcessPending exports one batch and reports how many rows made it.
// Per-row failures are marked in storage and skipped; only a failure to read
// the queue itself is returned.
func (w *SyncWorker) ProcessPending(ctx context.Context) (int, error) {
	pending, err := w.store.ListPendingSync(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	w.logger.InfoContext(ctx, "Exporting pending transactions", "count", len(pending))

	synced := 0
	for _, t := range pending {
		ref, err := w.appender.Append(ctx, t)
		if err != nil {
			w.logger.ErrorContext(ctx, "Export failed", "id", t.ID, "error", err)
			if markErr := w.store.MarkTransactionSyncError(ctx, t.ID); markErr != nil {
				w.logger.ErrorContext(ctx, "Failed to mark export error", "id", t.ID, "error", markErr)
			}
			continue
		}

		if err := w.store.MarkTransactionSynced(ctx, t.ID); err != nil {
			// The row is on the sheet; a stale pending flag just means a
			// duplicate export attempt later.
			w.logger.ErrorContext(ctx, "Failed to mark as synced", "id", t.ID, "error", err)
			continue
		}

		synced++
		w.logger.InfoContext(ctx, "Transaction exported",
			"id", t.ID,
			"sheets_ref", ref,
			"amount", t.Amount.String())
	}
	return synced, nil
}
