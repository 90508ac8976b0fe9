package sheets

import (
	"context"

	"cashbot/internal/core"
)

// TransactionAppender writes a transaction as one spreadsheet row and
// returns a reference to where it landed.
type TransactionAppender interface {
	Append(ctx context.Context, t core.Transaction) (rowRef string, err error)
}
