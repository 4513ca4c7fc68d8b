package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"categoria/internal/classifier"
	"categoria/internal/core"
)

var _ classifier.ModelStore = (*MemoryRepository)(nil)

// MemoryRepository keeps the model in process memory. It mirrors the SQLite
// repository's semantics, including vocabulary-size transitions and pruning
// of zeroed token rows, and is the default backend for local development and
// tests.
type MemoryRepository struct {
	mu     sync.RWMutex
	models map[string]*memoryModel
}

type memoryModel struct {
	totalDocs           int
	vocabularySize      int
	categoryDocCounts   map[string]int
	categoryTokenTotals map[string]int
	tokens              map[string]*memoryTokenStats
	ledger              map[string]*core.LedgerEntry
	categories          map[string]struct{}
}

type memoryTokenStats struct {
	total   int
	docFreq int
	counts  map[string]int
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{models: make(map[string]*memoryModel)}
}

func (r *MemoryRepository) model(userID string) *memoryModel {
	m, ok := r.models[userID]
	if !ok {
		m = &memoryModel{
			categoryDocCounts:   make(map[string]int),
			categoryTokenTotals: make(map[string]int),
			tokens:              make(map[string]*memoryTokenStats),
			ledger:              make(map[string]*core.LedgerEntry),
			categories:          make(map[string]struct{}),
		}
		r.models[userID] = m
	}
	return m
}

func (r *MemoryRepository) GetLedgerEntry(_ context.Context, userID, recordID string) (*core.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.models[userID]
	if !ok {
		return nil, nil
	}
	entry, ok := m.ledger[recordID]
	if !ok {
		return nil, nil
	}
	clone := *entry
	clone.TokenCounts = copyCounts(entry.TokenCounts)
	return &clone, nil
}

func (r *MemoryRepository) ApplyDelta(_ context.Context, userID, recordID string, delta core.Delta, next *core.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.model(userID)
	m.totalDocs += delta.TotalDocs

	for key, d := range delta.CategoryDocCounts {
		m.categoryDocCounts[key] += d
		if m.categoryDocCounts[key] == 0 {
			delete(m.categoryDocCounts, key)
		}
	}
	for key, d := range delta.CategoryTokenTotals {
		m.categoryTokenTotals[key] += d
		if m.categoryTokenTotals[key] == 0 {
			delete(m.categoryTokenTotals, key)
		}
	}

	for token, td := range delta.Tokens {
		stats, ok := m.tokens[token]
		if !ok {
			stats = &memoryTokenStats{counts: make(map[string]int)}
			m.tokens[token] = stats
		}
		before := stats.total
		stats.total += td.Total
		stats.docFreq += td.DocFreq
		switch {
		case before <= 0 && stats.total > 0:
			m.vocabularySize++
		case before > 0 && stats.total <= 0:
			m.vocabularySize--
		}
		for key, d := range td.Counts {
			stats.counts[key] += d
			if stats.counts[key] <= 0 {
				delete(stats.counts, key)
			}
		}
		if stats.total <= 0 {
			delete(m.tokens, token)
		}
	}

	if next != nil {
		m.ledger[recordID] = &core.LedgerEntry{
			RecordID: recordID,
			Sample: core.Sample{
				Category:    next.Category,
				CategoryKey: next.CategoryKey,
				TokenCounts: copyCounts(next.TokenCounts),
				TokenTotal:  next.TokenTotal,
			},
		}
	} else {
		delete(m.ledger, recordID)
	}
	return nil
}

func (r *MemoryRepository) GetAggregates(_ context.Context, userID string) (*core.Aggregates, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.models[userID]
	if !ok {
		return nil, nil
	}
	agg := &core.Aggregates{
		TotalDocs:           m.totalDocs,
		VocabularySize:      m.vocabularySize,
		CategoryDocCounts:   copyCounts(m.categoryDocCounts),
		CategoryTokenTotals: copyCounts(m.categoryTokenTotals),
	}
	return agg, nil
}

func (r *MemoryRepository) GetTokenStats(_ context.Context, userID string, tokens []string) (map[string]core.TokenStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]core.TokenStats)
	m, ok := r.models[userID]
	if !ok {
		return out, nil
	}
	for _, token := range tokens {
		stats, ok := m.tokens[token]
		if !ok || stats.total <= 0 {
			continue
		}
		out[token] = core.TokenStats{
			Total:   stats.total,
			DocFreq: stats.docFreq,
			Counts:  copyCounts(stats.counts),
		}
	}
	return out, nil
}

func (r *MemoryRepository) UpsertCategory(_ context.Context, userID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.ErrEmptyCategory
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.model(userID).categories[name] = struct{}{}
	return nil
}

func (r *MemoryRepository) ListCategories(_ context.Context, userID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.models[userID]
	if !ok {
		return nil, nil
	}
	names := make([]string, 0, len(m.categories))
	for name := range m.categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (r *MemoryRepository) DeleteCategory(_ context.Context, userID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.models[userID]; ok {
		delete(m.categories, strings.TrimSpace(name))
	}
	return nil
}

func copyCounts(src map[string]int) map[string]int {
	dst := make(map[string]int, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
