package storage

import (
	"context"
	"reflect"
	"testing"

	"categoria/internal/core"
)

func TestMemoryRepositoryLedger(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	entry, err := repo.GetLedgerEntry(ctx, "u1", "r1")
	if err != nil {
		t.Fatal(err)
	}
	if entry != nil {
		t.Fatalf("expected nil entry, got %+v", entry)
	}

	next := core.BuildSample(&core.Record{Title: "taxi ride", Category: "Transport"})
	delta := core.ComputeDelta(nil, next)
	if err := repo.ApplyDelta(ctx, "u1", "r1", delta, next); err != nil {
		t.Fatal(err)
	}

	entry, err = repo.GetLedgerEntry(ctx, "u1", "r1")
	if err != nil {
		t.Fatal(err)
	}
	if !entry.Valid() {
		t.Fatalf("expected valid entry, got %+v", entry)
	}
	if !entry.Sample.Equal(next) {
		t.Errorf("ledger sample = %+v, want %+v", entry.Sample, *next)
	}

	// Mutating the returned entry must not leak into the store.
	entry.TokenCounts["taxi"] = 99
	again, _ := repo.GetLedgerEntry(ctx, "u1", "r1")
	if again.TokenCounts["taxi"] == 99 {
		t.Error("ledger entry is not copied on read")
	}

	// A nil next deletes the entry.
	if err := repo.ApplyDelta(ctx, "u1", "r1", core.ComputeDelta(next, nil), nil); err != nil {
		t.Fatal(err)
	}
	entry, _ = repo.GetLedgerEntry(ctx, "u1", "r1")
	if entry != nil {
		t.Fatalf("expected entry deleted, got %+v", entry)
	}
}

func TestMemoryRepositoryVocabularyTransitions(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	s := core.BuildSample(&core.Record{Title: "shell gasoline", Category: "Transport"})
	if err := repo.ApplyDelta(ctx, "u1", "r1", core.ComputeDelta(nil, s), s); err != nil {
		t.Fatal(err)
	}

	agg, err := repo.GetAggregates(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if agg.VocabularySize != len(s.TokenCounts) {
		t.Errorf("VocabularySize = %d, want %d", agg.VocabularySize, len(s.TokenCounts))
	}

	// Same token added again does not grow the vocabulary.
	s2 := core.BuildSample(&core.Record{Title: "gasoline refill", Category: "Transport"})
	if err := repo.ApplyDelta(ctx, "u1", "r2", core.ComputeDelta(nil, s2), s2); err != nil {
		t.Fatal(err)
	}
	agg, _ = repo.GetAggregates(ctx, "u1")
	// shell, gasolin, shell_gasolin + refil, gasolin_refil
	if agg.VocabularySize != 5 {
		t.Errorf("VocabularySize = %d, want 5", agg.VocabularySize)
	}

	// Removing both records empties the vocabulary again.
	if err := repo.ApplyDelta(ctx, "u1", "r1", core.ComputeDelta(s, nil), nil); err != nil {
		t.Fatal(err)
	}
	if err := repo.ApplyDelta(ctx, "u1", "r2", core.ComputeDelta(s2, nil), nil); err != nil {
		t.Fatal(err)
	}
	agg, _ = repo.GetAggregates(ctx, "u1")
	if agg.VocabularySize != 0 {
		t.Errorf("VocabularySize = %d, want 0", agg.VocabularySize)
	}
}

func TestMemoryRepositoryTokenStats(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	s := core.BuildSample(&core.Record{Title: "starbucks coffee", Category: "Dining"})
	if err := repo.ApplyDelta(ctx, "u1", "r1", core.ComputeDelta(nil, s), s); err != nil {
		t.Fatal(err)
	}

	stats, err := repo.GetTokenStats(ctx, "u1", []string{"coffe", "ghost"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := stats["ghost"]; ok {
		t.Error("unknown token should be absent, not zero-valued")
	}
	info, ok := stats["coffe"]
	if !ok {
		t.Fatal("known token missing")
	}
	key := core.CategoryKey("Dining")
	if info.Total != 1 || info.DocFreq != 1 || info.Counts[key] != 1 {
		t.Errorf("coffe stats = %+v", info)
	}

	// Other users see nothing.
	stats, err = repo.GetTokenStats(ctx, "u2", []string{"coffe"})
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 0 {
		t.Errorf("cross-user leak: %v", stats)
	}
}

func TestMemoryRepositoryCategories(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	for _, name := range []string{"Transport", "Dining", "Dining", "  Groceries  "} {
		if err := repo.UpsertCategory(ctx, "u1", name); err != nil {
			t.Fatal(err)
		}
	}
	if err := repo.UpsertCategory(ctx, "u1", "   "); err == nil {
		t.Error("blank category should be rejected")
	}

	names, err := repo.ListCategories(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Dining", "Groceries", "Transport"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("categories = %v, want %v", names, want)
	}

	if err := repo.DeleteCategory(ctx, "u1", "Dining"); err != nil {
		t.Fatal(err)
	}
	names, _ = repo.ListCategories(ctx, "u1")
	if len(names) != 2 {
		t.Errorf("categories after delete = %v", names)
	}

	other, _ := repo.ListCategories(ctx, "u2")
	if len(other) != 0 {
		t.Errorf("cross-user categories: %v", other)
	}
}
