package classifier

import (
	"context"

	"categoria/internal/core"
)

// ModelStore is the persistence the classifier depends on. Implementations
// must apply a delta, the ledger write, and the vocabulary bookkeeping as
// one indivisible unit, and must update counters with associative increments
// so reconciliations for distinct records never lose updates to each other.
type ModelStore interface {
	// GetLedgerEntry returns the last-applied sample for a record, or nil
	// when the record contributes nothing.
	GetLedgerEntry(ctx context.Context, userID, recordID string) (*core.LedgerEntry, error)

	// ApplyDelta atomically commits counter deltas, vocabulary-size
	// transitions, and the ledger upsert (next non-nil) or delete (next nil).
	ApplyDelta(ctx context.Context, userID, recordID string, delta core.Delta, next *core.Sample) error

	// GetAggregates returns the per-user model summary, or nil when no
	// model exists yet.
	GetAggregates(ctx context.Context, userID string) (*core.Aggregates, error)

	// GetTokenStats fetches statistics for the given tokens, issuing
	// chunked multi-key reads. Unknown tokens are absent from the result.
	GetTokenStats(ctx context.Context, userID string, tokens []string) (map[string]core.TokenStats, error)
}
