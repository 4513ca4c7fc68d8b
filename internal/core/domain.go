package core

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	ErrEmptyTitle    = errors.New("empty title")
	ErrEmptyCategory = errors.New("empty category")
	ErrEmptyUserID   = errors.New("empty user id")
	ErrEmptyRecordID = errors.New("empty record id")
)

type (
	// Record is a labeled transaction as delivered by the surrounding
	// system: a free-text title plus an optional spending category.
	// Either field may be blank; a Record that cannot produce a Sample
	// simply contributes nothing to the model.
	Record struct {
		Title    string
		Category string
	}

	// Sample is the normalized (category, token-count) extraction of one
	// labeled record. It is derived, never stored as-is outside the ledger.
	Sample struct {
		Category    string
		CategoryKey string
		TokenCounts map[string]int
		TokenTotal  int
	}

	// LedgerEntry is the last-applied Sample snapshot for one record id.
	// Its contents equal exactly what was added to the aggregates, so the
	// reconciler can derive an exact negative delta without trusting any
	// in-memory "before" value.
	LedgerEntry struct {
		RecordID string
		Sample
	}

	// Aggregates is the per-user model summary mutated only through
	// reconciliation.
	Aggregates struct {
		TotalDocs           int
		VocabularySize      int
		CategoryDocCounts   map[string]int
		CategoryTokenTotals map[string]int
	}

	// TokenStats holds the per-token counters backing prediction.
	TokenStats struct {
		Total   int
		DocFreq int
		Counts  map[string]int
	}
)

// CategoryKey returns the stable short hash used as the aggregate key for a
// category label. Hashing insulates the aggregates from long labels and from
// label strings that only differ in surrounding whitespace.
func CategoryKey(name string) string {
	sum := sha1.Sum([]byte(strings.TrimSpace(name)))
	return hex.EncodeToString(sum[:])[:16]
}

// BuildSample converts a record into a Sample, or nil when the record is
// missing, has a blank title or category, or tokenizes to nothing. A nil
// Sample is not an error: it means "this record contributes no training data".
func BuildSample(rec *Record) *Sample {
	if rec == nil {
		return nil
	}
	title := strings.ToLower(strings.TrimSpace(rec.Title))
	category := strings.TrimSpace(rec.Category)
	if title == "" || category == "" {
		return nil
	}
	tokens := Tokenize(title)
	if len(tokens) == 0 {
		return nil
	}
	counts, total := BuildTokenCounts(tokens)
	return &Sample{
		Category:    category,
		CategoryKey: CategoryKey(category),
		TokenCounts: counts,
		TokenTotal:  total,
	}
}

// BuildTokenCounts collapses an ordered token sequence into a multiset.
func BuildTokenCounts(tokens []string) (map[string]int, int) {
	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		counts[tok]++
	}
	return counts, len(tokens)
}

// Equal reports whether two samples would produce the identical aggregate
// contribution: same category key and identical token counts.
func (s *Sample) Equal(other *Sample) bool {
	if s == nil || other == nil {
		return s == nil && other == nil
	}
	if s.CategoryKey != other.CategoryKey {
		return false
	}
	return tokenCountsEqual(s.TokenCounts, other.TokenCounts)
}

func tokenCountsEqual(a, b map[string]int) bool {
	if len(a) != len(b) {
		return false
	}
	for tok, n := range a {
		if b[tok] != n {
			return false
		}
	}
	return true
}

// Valid reports whether a ledger entry carries a usable sample. Entries with
// a blank category or no tokens are treated as absent.
func (e *LedgerEntry) Valid() bool {
	return e != nil && strings.TrimSpace(e.Category) != "" && e.TokenTotal > 0
}
