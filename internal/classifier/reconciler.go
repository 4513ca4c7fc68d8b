package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"categoria/internal/core"
)

// Reconciler keeps the model aggregates consistent with the current set of
// labeled records. It derives every delta from the persisted ledger entry,
// never from a caller-supplied "previous" value, so redelivered or reordered
// notifications recompute a zero delta instead of double-counting.
type Reconciler struct {
	store ModelStore
}

func NewReconciler(store ModelStore) *Reconciler {
	return &Reconciler{store: store}
}

// Reconcile applies the transition of one record to the model. next is the
// record's current state, or nil when it was deleted. A record whose title
// or category is blank is treated the same as a deletion.
//
// Errors are returned untouched so the delivery layer can retry; retrying a
// committed transition is safe because the recomputed delta against the
// updated ledger entry is empty.
func (r *Reconciler) Reconcile(ctx context.Context, userID, recordID string, next *core.Record) error {
	if strings.TrimSpace(userID) == "" {
		return core.ErrEmptyUserID
	}
	if strings.TrimSpace(recordID) == "" {
		return core.ErrEmptyRecordID
	}

	entry, err := r.store.GetLedgerEntry(ctx, userID, recordID)
	if err != nil {
		return fmt.Errorf("get ledger entry: %w", err)
	}

	var prev *core.Sample
	if entry.Valid() {
		s := entry.Sample
		prev = &s
	}
	nextSample := core.BuildSample(next)

	if prev == nil && nextSample == nil {
		if entry == nil {
			return nil
		}
		// Stray unusable ledger row: clear it without touching counters.
		if err := r.store.ApplyDelta(ctx, userID, recordID, core.ComputeDelta(nil, nil), nil); err != nil {
			return fmt.Errorf("clear ledger entry: %w", err)
		}
		return nil
	}

	if prev.Equal(nextSample) {
		slog.DebugContext(ctx, "Reconcile no-op, sample unchanged",
			"user_id", userID, "record_id", recordID)
		return nil
	}

	delta := core.ComputeDelta(prev, nextSample)
	if err := r.store.ApplyDelta(ctx, userID, recordID, delta, nextSample); err != nil {
		return fmt.Errorf("apply model delta: %w", err)
	}

	slog.InfoContext(ctx, "Reconciled record into model",
		"user_id", userID,
		"record_id", recordID,
		"doc_delta", delta.TotalDocs,
		"tokens_touched", len(delta.Tokens))
	return nil
}
