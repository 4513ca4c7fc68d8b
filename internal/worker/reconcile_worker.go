package worker

import (
	"context"
	"fmt"
	"log/slog"

	"categoria/internal/amqp"
	"categoria/internal/classifier"
	"categoria/internal/core"
	"categoria/internal/sheets"
)

// ReconcileWorker folds record change messages into the classifier model.
// Reconciliation is idempotent, so redelivered messages are safe to process
// again.
type ReconcileWorker struct {
	reconciler *classifier.Reconciler
	source     sheets.RecordSource
}

func NewReconcileWorker(reconciler *classifier.Reconciler, source sheets.RecordSource) *ReconcileWorker {
	return &ReconcileWorker{
		reconciler: reconciler,
		source:     source,
	}
}

// HandleChangeMessage processes a single record change message from AMQP
func (w *ReconcileWorker) HandleChangeMessage(ctx context.Context, msg *amqp.RecordChangeMessage) error {
	var next *core.Record
	if !msg.Deleted {
		next = &core.Record{Title: msg.Title, Category: msg.Category}
	}

	if err := w.reconciler.Reconcile(ctx, msg.UserID, msg.RecordID, next); err != nil {
		return fmt.Errorf("reconcile record: %w", err)
	}
	return nil
}

// BootstrapFromSource replays historic labeled records through the
// reconciler. Records already in the ledger reconcile to a no-op, so running
// the bootstrap repeatedly (or after a partial run) never double-counts.
func (w *ReconcileWorker) BootstrapFromSource(ctx context.Context) error {
	if w.source == nil {
		slog.InfoContext(ctx, "No record source configured, skipping bootstrap")
		return nil
	}

	records, err := w.source.ListLabeled(ctx)
	if err != nil {
		return fmt.Errorf("list labeled records: %w", err)
	}

	if len(records) == 0 {
		slog.InfoContext(ctx, "No labeled records found for bootstrap")
		return nil
	}

	slog.InfoContext(ctx, "Bootstrapping model from labeled records", "count", len(records))

	successCount := 0
	errorCount := 0

	for _, rec := range records {
		record := rec.Record
		if err := w.reconciler.Reconcile(ctx, rec.UserID, rec.RecordID, &record); err != nil {
			slog.ErrorContext(ctx, "Failed to reconcile bootstrap record",
				"user_id", rec.UserID,
				"record_id", rec.RecordID,
				"error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Bootstrap completed",
		"total", len(records),
		"reconciled", successCount,
		"errors", errorCount)

	return nil
}
