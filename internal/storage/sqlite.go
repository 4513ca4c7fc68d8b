package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"categoria/internal/classifier"
	"categoria/internal/core"

	_ "modernc.org/sqlite"
)

var _ classifier.ModelStore = (*SQLiteRepository)(nil)

// maxTokensPerBatch bounds multi-key token reads: one IN(...) query per 500
// keys instead of one query per token.
const maxTokensPerBatch = 500

// SQLiteRepository persists the classifier model. Every reconciliation is
// committed as one transaction: counter increments, vocabulary bookkeeping
// and the ledger write either all land or none do.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// WAL lets predictions read while a reconciliation writes; the busy
	// timeout covers writer contention between workers.
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// GetLedgerEntry returns the last-applied sample for a record, or nil when
// none exists.
func (r *SQLiteRepository) GetLedgerEntry(ctx context.Context, userID, recordID string) (*core.LedgerEntry, error) {
	var (
		entry      core.LedgerEntry
		countsJSON string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT category, category_key, token_counts, token_total
		 FROM model_ledger WHERE user_id = ? AND record_id = ?`,
		userID, recordID,
	).Scan(&entry.Category, &entry.CategoryKey, &countsJSON, &entry.TokenTotal)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query ledger entry: %w", err)
	}
	if err := json.Unmarshal([]byte(countsJSON), &entry.TokenCounts); err != nil {
		return nil, fmt.Errorf("decode ledger token counts: %w", err)
	}
	entry.RecordID = recordID
	return &entry, nil
}

// ApplyDelta commits one reconciliation. Counters move via relative
// `x = x + ?` updates so concurrent reconciliations for different records
// compose instead of overwriting each other; the vocabulary-size transition
// is derived from token totals read inside the same transaction.
func (r *SQLiteRepository) ApplyDelta(ctx context.Context, userID, recordID string, delta core.Delta, next *core.Sample) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	touched := make([]string, 0, len(delta.Tokens))
	for token, td := range delta.Tokens {
		if td.Total != 0 {
			touched = append(touched, token)
		}
	}

	vocabDelta := 0
	if len(touched) > 0 {
		totals, err := tokenTotalsTx(ctx, tx, userID, touched)
		if err != nil {
			return err
		}
		for _, token := range touched {
			before := totals[token]
			after := before + delta.Tokens[token].Total
			switch {
			case before <= 0 && after > 0:
				vocabDelta++
			case before > 0 && after <= 0:
				vocabDelta--
			}
		}
	}

	if !delta.Empty() || vocabDelta != 0 {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO model_aggregates (user_id, total_docs, vocabulary_size)
			 VALUES (?, ?, ?)
			 ON CONFLICT (user_id) DO UPDATE SET
			   total_docs = total_docs + excluded.total_docs,
			   vocabulary_size = vocabulary_size + excluded.vocabulary_size,
			   updated_at = CURRENT_TIMESTAMP`,
			userID, delta.TotalDocs, vocabDelta)
		if err != nil {
			return fmt.Errorf("update model aggregates: %w", err)
		}
	}

	for _, key := range categoryKeys(delta) {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO category_aggregates (user_id, category_key, doc_count, token_total)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT (user_id, category_key) DO UPDATE SET
			   doc_count = doc_count + excluded.doc_count,
			   token_total = token_total + excluded.token_total`,
			userID, key, delta.CategoryDocCounts[key], delta.CategoryTokenTotals[key])
		if err != nil {
			return fmt.Errorf("update category aggregates: %w", err)
		}
	}

	for token, td := range delta.Tokens {
		if td.Total != 0 || td.DocFreq != 0 {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO token_stats (user_id, token, total, doc_freq)
				 VALUES (?, ?, ?, ?)
				 ON CONFLICT (user_id, token) DO UPDATE SET
				   total = total + excluded.total,
				   doc_freq = doc_freq + excluded.doc_freq`,
				userID, token, td.Total, td.DocFreq)
			if err != nil {
				return fmt.Errorf("update token stats: %w", err)
			}
		}
		for key, count := range td.Counts {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO token_category_counts (user_id, token, category_key, count)
				 VALUES (?, ?, ?, ?)
				 ON CONFLICT (user_id, token, category_key) DO UPDATE SET
				   count = count + excluded.count`,
				userID, token, key, count)
			if err != nil {
				return fmt.Errorf("update token category counts: %w", err)
			}
		}
	}

	// Tokens whose total dropped to zero leave the vocabulary entirely.
	for _, chunk := range chunkStrings(touched, maxTokensPerBatch) {
		args := append([]any{userID}, toAnySlice(chunk)...)
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM token_stats WHERE user_id = ? AND total <= 0 AND token IN `+placeholders(len(chunk)),
			args...); err != nil {
			return fmt.Errorf("prune token stats: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM token_category_counts WHERE user_id = ? AND count <= 0 AND token IN `+placeholders(len(chunk)),
			args...); err != nil {
			return fmt.Errorf("prune token category counts: %w", err)
		}
	}

	if next != nil {
		countsJSON, err := json.Marshal(next.TokenCounts)
		if err != nil {
			return fmt.Errorf("encode ledger token counts: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO model_ledger (user_id, record_id, category, category_key, token_counts, token_total)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (user_id, record_id) DO UPDATE SET
			   category = excluded.category,
			   category_key = excluded.category_key,
			   token_counts = excluded.token_counts,
			   token_total = excluded.token_total,
			   updated_at = CURRENT_TIMESTAMP`,
			userID, recordID, next.Category, next.CategoryKey, string(countsJSON), next.TokenTotal)
		if err != nil {
			return fmt.Errorf("upsert ledger entry: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM model_ledger WHERE user_id = ? AND record_id = ?`,
			userID, recordID); err != nil {
			return fmt.Errorf("delete ledger entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit model delta: %w", err)
	}

	slog.DebugContext(ctx, "Model delta committed",
		"user_id", userID,
		"record_id", recordID,
		"doc_delta", delta.TotalDocs,
		"vocab_delta", vocabDelta,
		"tokens_touched", len(delta.Tokens))
	return nil
}

// GetAggregates returns the per-user model summary, or nil when no model
// exists yet.
func (r *SQLiteRepository) GetAggregates(ctx context.Context, userID string) (*core.Aggregates, error) {
	agg := core.Aggregates{
		CategoryDocCounts:   map[string]int{},
		CategoryTokenTotals: map[string]int{},
	}
	err := r.db.QueryRowContext(ctx,
		`SELECT total_docs, vocabulary_size FROM model_aggregates WHERE user_id = ?`,
		userID,
	).Scan(&agg.TotalDocs, &agg.VocabularySize)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query model aggregates: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT category_key, doc_count, token_total FROM category_aggregates WHERE user_id = ?`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("query category aggregates: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key                  string
			docCount, tokenTotal int
		)
		if err := rows.Scan(&key, &docCount, &tokenTotal); err != nil {
			return nil, fmt.Errorf("scan category aggregates: %w", err)
		}
		agg.CategoryDocCounts[key] = docCount
		agg.CategoryTokenTotals[key] = tokenTotal
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category aggregates: %w", err)
	}
	return &agg, nil
}

// GetTokenStats fetches statistics for the given tokens in chunks of at most
// maxTokensPerBatch keys. Tokens with a non-positive total are treated as
// unknown.
func (r *SQLiteRepository) GetTokenStats(ctx context.Context, userID string, tokens []string) (map[string]core.TokenStats, error) {
	stats := make(map[string]core.TokenStats)
	for _, chunk := range chunkStrings(uniqueStrings(tokens), maxTokensPerBatch) {
		args := append([]any{userID}, toAnySlice(chunk)...)

		rows, err := r.db.QueryContext(ctx,
			`SELECT token, total, doc_freq FROM token_stats
			 WHERE user_id = ? AND total > 0 AND token IN `+placeholders(len(chunk)),
			args...)
		if err != nil {
			return nil, fmt.Errorf("query token stats: %w", err)
		}
		if err := scanTokenStats(rows, stats); err != nil {
			return nil, err
		}

		rows, err = r.db.QueryContext(ctx,
			`SELECT token, category_key, count FROM token_category_counts
			 WHERE user_id = ? AND count > 0 AND token IN `+placeholders(len(chunk)),
			args...)
		if err != nil {
			return nil, fmt.Errorf("query token category counts: %w", err)
		}
		if err := scanTokenCounts(rows, stats); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

func scanTokenStats(rows *sql.Rows, stats map[string]core.TokenStats) error {
	defer rows.Close()
	for rows.Next() {
		var (
			token          string
			total, docFreq int
		)
		if err := rows.Scan(&token, &total, &docFreq); err != nil {
			return fmt.Errorf("scan token stats: %w", err)
		}
		stats[token] = core.TokenStats{Total: total, DocFreq: docFreq, Counts: map[string]int{}}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate token stats: %w", err)
	}
	return nil
}

func scanTokenCounts(rows *sql.Rows, stats map[string]core.TokenStats) error {
	defer rows.Close()
	for rows.Next() {
		var (
			token, key string
			count      int
		)
		if err := rows.Scan(&token, &key, &count); err != nil {
			return fmt.Errorf("scan token category counts: %w", err)
		}
		// Counts for tokens filtered out by the total > 0 guard stay hidden.
		if entry, ok := stats[token]; ok {
			entry.Counts[key] = count
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate token category counts: %w", err)
	}
	return nil
}

// UpsertCategory registers a user-defined category label.
func (r *SQLiteRepository) UpsertCategory(ctx context.Context, userID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.ErrEmptyCategory
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (user_id, name) VALUES (?, ?)
		 ON CONFLICT (user_id, name) DO NOTHING`,
		userID, name)
	if err != nil {
		return fmt.Errorf("upsert category: %w", err)
	}
	return nil
}

// ListCategories returns the user's category labels in name order.
func (r *SQLiteRepository) ListCategories(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name FROM categories WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return names, nil
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, userID, name string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM categories WHERE user_id = ? AND name = ?`, userID, strings.TrimSpace(name))
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

func tokenTotalsTx(ctx context.Context, tx *sql.Tx, userID string, tokens []string) (map[string]int, error) {
	totals := make(map[string]int, len(tokens))
	for _, chunk := range chunkStrings(tokens, maxTokensPerBatch) {
		args := append([]any{userID}, toAnySlice(chunk)...)
		rows, err := tx.QueryContext(ctx,
			`SELECT token, total FROM token_stats WHERE user_id = ? AND token IN `+placeholders(len(chunk)),
			args...)
		if err != nil {
			return nil, fmt.Errorf("query token totals: %w", err)
		}
		for rows.Next() {
			var (
				token string
				total int
			)
			if err := rows.Scan(&token, &total); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan token total: %w", err)
			}
			totals[token] = total
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("iterate token totals: %w", err)
		}
		rows.Close()
	}
	return totals, nil
}

func categoryKeys(delta core.Delta) []string {
	seen := make(map[string]struct{}, len(delta.CategoryDocCounts)+len(delta.CategoryTokenTotals))
	var keys []string
	for key := range delta.CategoryDocCounts {
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	for key := range delta.CategoryTokenTotals {
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	return keys
}

// placeholders renders "(?, ?, ...)" for an IN clause of n values.
func placeholders(n int) string {
	if n == 0 {
		return "(NULL)"
	}
	return "(" + strings.TrimSuffix(strings.Repeat("?, ", n), ", ") + ")"
}

func chunkStrings(values []string, size int) [][]string {
	var chunks [][]string
	for len(values) > 0 {
		n := size
		if n > len(values) {
			n = len(values)
		}
		chunks = append(chunks, values[:n])
		values = values[n:]
	}
	return chunks
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func toAnySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
