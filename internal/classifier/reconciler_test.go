package classifier_test

import (
	"context"
	"errors"
	"testing"

	"categoria/internal/classifier"
	"categoria/internal/core"
	"categoria/internal/storage"
)

func TestReconcileAddAndRemove(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryRepository()
	rec := classifier.NewReconciler(store)

	record := &core.Record{Title: "Starbucks Coffee", Category: "Food"}
	if err := rec.Reconcile(ctx, "u1", "r1", record); err != nil {
		t.Fatalf("reconcile add: %v", err)
	}

	agg, err := store.GetAggregates(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if agg.TotalDocs != 1 {
		t.Errorf("TotalDocs = %d, want 1", agg.TotalDocs)
	}
	if agg.VocabularySize != 3 {
		t.Errorf("VocabularySize = %d, want 3", agg.VocabularySize)
	}
	key := core.CategoryKey("Food")
	if agg.CategoryDocCounts[key] != 1 {
		t.Errorf("doc count = %d, want 1", agg.CategoryDocCounts[key])
	}

	// Removing the record restores every counter, vocabulary included.
	if err := rec.Reconcile(ctx, "u1", "r1", nil); err != nil {
		t.Fatalf("reconcile delete: %v", err)
	}
	agg, err = store.GetAggregates(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if agg.TotalDocs != 0 || agg.VocabularySize != 0 {
		t.Errorf("after delete: totalDocs=%d vocab=%d, want 0/0", agg.TotalDocs, agg.VocabularySize)
	}
	if len(agg.CategoryDocCounts) != 0 {
		t.Errorf("doc counts not cleared: %v", agg.CategoryDocCounts)
	}
	stats, err := store.GetTokenStats(ctx, "u1", []string{"starbuck", "coffe"})
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 0 {
		t.Errorf("token stats survived deletion: %v", stats)
	}
}

func TestReconcileRedeliveryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryRepository()
	rec := classifier.NewReconciler(store)

	record := &core.Record{Title: "Shell Gasoline", Category: "Transport"}
	for i := 0; i < 3; i++ {
		if err := rec.Reconcile(ctx, "u1", "r1", record); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}

	agg, err := store.GetAggregates(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if agg.TotalDocs != 1 {
		t.Errorf("TotalDocs = %d after redeliveries, want 1", agg.TotalDocs)
	}
	key := core.CategoryKey("Transport")
	if agg.CategoryDocCounts[key] != 1 {
		t.Errorf("doc count = %d, want 1", agg.CategoryDocCounts[key])
	}
}

func TestReconcileCategoryEdit(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryRepository()
	rec := classifier.NewReconciler(store)

	if err := rec.Reconcile(ctx, "u1", "r1", &core.Record{Title: "taxi ride", Category: "Transport"}); err != nil {
		t.Fatal(err)
	}
	if err := rec.Reconcile(ctx, "u1", "r1", &core.Record{Title: "taxi ride", Category: "Travel"}); err != nil {
		t.Fatal(err)
	}

	agg, err := store.GetAggregates(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if agg.TotalDocs != 1 {
		t.Errorf("TotalDocs = %d, want 1", agg.TotalDocs)
	}
	oldKey, newKey := core.CategoryKey("Transport"), core.CategoryKey("Travel")
	if agg.CategoryDocCounts[oldKey] != 0 {
		t.Errorf("old category doc count = %d, want 0", agg.CategoryDocCounts[oldKey])
	}
	if agg.CategoryDocCounts[newKey] != 1 {
		t.Errorf("new category doc count = %d, want 1", agg.CategoryDocCounts[newKey])
	}

	stats, err := store.GetTokenStats(ctx, "u1", []string{"taxi"})
	if err != nil {
		t.Fatal(err)
	}
	info, ok := stats["taxi"]
	if !ok {
		t.Fatal("taxi should still be known")
	}
	if info.Counts[oldKey] != 0 || info.Counts[newKey] != 1 {
		t.Errorf("taxi counts = %v", info.Counts)
	}
}

func TestReconcileRapidEdits(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryRepository()
	rec := classifier.NewReconciler(store)

	titles := []string{"starbucks coffee", "espresso bar", "coffee beans", "starbucks coffee"}
	for _, title := range titles {
		if err := rec.Reconcile(ctx, "u1", "r1", &core.Record{Title: title, Category: "Food"}); err != nil {
			t.Fatal(err)
		}
	}

	// After any sequence of edits the model reflects exactly the final state.
	agg, err := store.GetAggregates(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if agg.TotalDocs != 1 {
		t.Errorf("TotalDocs = %d, want 1", agg.TotalDocs)
	}
	if agg.VocabularySize != 3 {
		t.Errorf("VocabularySize = %d, want 3", agg.VocabularySize)
	}
	stats, err := store.GetTokenStats(ctx, "u1", []string{"espresso", "bean", "starbuck"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := stats["espresso"]; ok {
		t.Error("espresso should have been removed by later edits")
	}
	if _, ok := stats["bean"]; ok {
		t.Error("bean should have been removed by later edits")
	}
	if _, ok := stats["starbuck"]; !ok {
		t.Error("starbuck should be present for the final title")
	}
}

func TestReconcileBlankRecordActsAsDeletion(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryRepository()
	rec := classifier.NewReconciler(store)

	if err := rec.Reconcile(ctx, "u1", "r1", &core.Record{Title: "taxi ride", Category: "Transport"}); err != nil {
		t.Fatal(err)
	}
	// A record whose category was cleared contributes nothing.
	if err := rec.Reconcile(ctx, "u1", "r1", &core.Record{Title: "taxi ride", Category: ""}); err != nil {
		t.Fatal(err)
	}

	agg, err := store.GetAggregates(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if agg.TotalDocs != 0 {
		t.Errorf("TotalDocs = %d, want 0", agg.TotalDocs)
	}
}

func TestReconcileValidation(t *testing.T) {
	ctx := context.Background()
	rec := classifier.NewReconciler(storage.NewMemoryRepository())

	if err := rec.Reconcile(ctx, "", "r1", nil); !errors.Is(err, core.ErrEmptyUserID) {
		t.Errorf("empty user: got %v", err)
	}
	if err := rec.Reconcile(ctx, "u1", "  ", nil); !errors.Is(err, core.ErrEmptyRecordID) {
		t.Errorf("empty record: got %v", err)
	}
	// Deleting a record that never existed is a silent no-op.
	if err := rec.Reconcile(ctx, "u1", "ghost", nil); err != nil {
		t.Errorf("missing record delete: got %v", err)
	}
}
