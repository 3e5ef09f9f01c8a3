// Package worker maintains the spreadsheet mirror from the ledger event stream.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"kasbuku/internal/amqp"
	"kasbuku/internal/core"
	"kasbuku/internal/ledger"
	"kasbuku/internal/sheets"
)

// MirrorWorker consumes ledger events and keeps the spreadsheet mirror in
// step with the authoritative store. Transaction events carry only the
// recording-time key, so the worker re-reads the record before mirroring.
type MirrorWorker struct {
	store  ledger.Store
	mirror sheets.Mirror
}

func NewMirrorWorker(store ledger.Store, mirror sheets.Mirror) *MirrorWorker {
	return &MirrorWorker{store: store, mirror: mirror}
}

// HandleEvent processes one ledger event. A returned error requeues the
// event; an acknowledged skip is used where retrying cannot help.
func (w *MirrorWorker) HandleEvent(ctx context.Context, event *amqp.LedgerEvent) error {
	switch event.Type {
	case amqp.EventTransactionRecorded:
		return w.mirrorTransaction(ctx, event)
	case amqp.EventTransactionDeleted:
		return w.removeTransaction(ctx, event)
	case amqp.EventExpenseRecorded:
		return w.mirrorExpense(ctx, event)
	default:
		slog.WarnContext(ctx, "Skipping event of unknown type",
			"event_id", event.EventID,
			"type", event.Type)
		return nil
	}
}

func (w *MirrorWorker) mirrorTransaction(ctx context.Context, event *amqp.LedgerEvent) error {
	recordingTime := time.Unix(0, event.RecordingTimeNs).UTC()

	tx, err := w.store.GetTransaction(ctx, recordingTime)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted before the mirror caught up; the delete event follows.
		slog.WarnContext(ctx, "Transaction gone before mirroring, skipping",
			"event_id", event.EventID,
			"recording_time_ns", event.RecordingTimeNs)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}

	ref, err := w.mirror.AppendTransaction(ctx, tx)
	if err != nil {
		return fmt.Errorf("append transaction to mirror: %w", err)
	}

	slog.InfoContext(ctx, "Mirrored transaction",
		"recording_time_ns", event.RecordingTimeNs,
		"total", tx.Total,
		"row_ref", ref)
	return nil
}

func (w *MirrorWorker) removeTransaction(ctx context.Context, event *amqp.LedgerEvent) error {
	if err := w.mirror.RemoveTransaction(ctx, event.RecordingTimeNs); err != nil {
		return fmt.Errorf("remove transaction from mirror: %w", err)
	}
	slog.InfoContext(ctx, "Removed mirrored transaction",
		"recording_time_ns", event.RecordingTimeNs)
	return nil
}

func (w *MirrorWorker) mirrorExpense(ctx context.Context, event *amqp.LedgerEvent) error {
	payload := event.Expense
	e := core.Expense{
		Category:      payload.Category,
		Description:   payload.Description,
		Amount:        payload.Amount,
		ExpenseDate:   time.Unix(0, payload.ExpenseDateNs).UTC(),
		RecordingTime: time.Unix(0, event.RecordingTimeNs).UTC(),
		Note:          payload.Note,
	}
	if payload.Owner != nil {
		owner := core.CallerID(*payload.Owner)
		e.Owner = &owner
	}

	ref, err := w.mirror.AppendExpense(ctx, e)
	if err != nil {
		return fmt.Errorf("append expense to mirror: %w", err)
	}

	slog.InfoContext(ctx, "Mirrored expense",
		"recording_time_ns", event.RecordingTimeNs,
		"category", e.Category,
		"amount", e.Amount,
		"row_ref", ref)
	return nil
}
