package sheets

import (
	"context"

	"kasbuku/internal/core"
)

// Mirror is the outbound port for the spreadsheet copy of the ledger. The
// mirror is best-effort and eventually consistent; the SQLite ledger stays
// authoritative.
type Mirror interface {
	// AppendTransaction appends one transaction row keyed by its
	// recording time.
	AppendTransaction(ctx context.Context, t core.Transaction) (rowRef string, err error)

	// AppendExpense appends one expense row.
	AppendExpense(ctx context.Context, e core.Expense) (rowRef string, err error)

	// RemoveTransaction deletes the mirrored row for the given recording
	// time. A key that was never mirrored is not an error.
	RemoveTransaction(ctx context.Context, recordingTimeNs int64) error
}
