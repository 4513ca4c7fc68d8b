package classifier_test

import (
	"context"
	"fmt"
	"testing"

	"categoria/internal/classifier"
	"categoria/internal/core"
	"categoria/internal/storage"
)

func trainedEngine(t *testing.T) (*classifier.Engine, *storage.MemoryRepository) {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryRepository()
	rec := classifier.NewReconciler(store)

	training := []struct {
		title    string
		category string
	}{
		{"starbucks coffee", "Dining"},
		{"coffee beans", "Dining"},
		{"espresso coffee bar", "Dining"},
		{"shell gasoline", "Transport"},
		{"gasoline station", "Transport"},
		{"downtown parking garage", "Transport"},
	}
	for i, tr := range training {
		id := fmt.Sprintf("r%d", i)
		if err := rec.Reconcile(ctx, "u1", id, &core.Record{Title: tr.title, Category: tr.category}); err != nil {
			t.Fatalf("train %s: %v", id, err)
		}
	}
	return classifier.NewEngine(store, classifier.DefaultOptions()), store
}

func TestPredictGuards(t *testing.T) {
	ctx := context.Background()
	engine, _ := trainedEngine(t)
	candidates := []string{"Dining", "Transport"}

	cases := []struct {
		name       string
		userID     string
		title      string
		candidates []string
		reason     string
	}{
		{"empty title", "u1", "   ", candidates, classifier.ReasonEmptyTokens},
		{"stopwords only", "u1", "paid the bill", candidates, classifier.ReasonEmptyTokens},
		{"no candidates", "u1", "coffee", nil, classifier.ReasonNoCategories},
		{"blank candidates", "u1", "coffee", []string{"  ", ""}, classifier.ReasonNoCategories},
		{"unknown user", "stranger", "coffee", candidates, classifier.ReasonNoModel},
		{"unknown tokens", "u1", "xylophone lessons", candidates, classifier.ReasonUnknownTokens},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := engine.Predict(ctx, tc.userID, tc.title, tc.candidates)
			if err != nil {
				t.Fatal(err)
			}
			if res.Reason != tc.reason {
				t.Errorf("reason = %q, want %q", res.Reason, tc.reason)
			}
			if len(res.Predictions) != 0 {
				t.Errorf("expected no predictions, got %v", res.Predictions)
			}
		})
	}
}

func TestPredictInsufficientData(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryRepository()
	rec := classifier.NewReconciler(store)

	for i, title := range []string{"starbucks coffee", "coffee beans"} {
		id := fmt.Sprintf("r%d", i)
		if err := rec.Reconcile(ctx, "u1", id, &core.Record{Title: title, Category: "Dining"}); err != nil {
			t.Fatal(err)
		}
	}

	engine := classifier.NewEngine(store, classifier.DefaultOptions())
	res, err := engine.Predict(ctx, "u1", "coffee", []string{"Dining"})
	if err != nil {
		t.Fatal(err)
	}
	// The tokens are known; the model is just too small to answer.
	if res.Reason != classifier.ReasonInsufficientData {
		t.Fatalf("reason = %q, want %q", res.Reason, classifier.ReasonInsufficientData)
	}
	if res.Meta == nil || res.Meta.TotalDocs != 2 || res.Meta.MinRequired != 5 {
		t.Errorf("meta = %+v", res.Meta)
	}
}

func TestPredictRanking(t *testing.T) {
	ctx := context.Background()
	engine, _ := trainedEngine(t)

	res, err := engine.Predict(ctx, "u1", "morning coffee", []string{"Dining", "Transport"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Reason != "" {
		t.Fatalf("unexpected reason %q", res.Reason)
	}
	if len(res.Predictions) == 0 {
		t.Fatal("expected predictions")
	}
	if res.Predictions[0].Category != "Dining" {
		t.Errorf("top prediction = %q, want Dining", res.Predictions[0].Category)
	}

	sum := 0.0
	for i, p := range res.Predictions {
		if p.Confidence <= 0 || p.Confidence > 1 {
			t.Errorf("confidence out of range: %+v", p)
		}
		if i > 0 && p.Confidence > res.Predictions[i-1].Confidence {
			t.Errorf("predictions not sorted: %v", res.Predictions)
		}
		sum += p.Confidence
	}
	if sum > 1.0000001 {
		t.Errorf("confidence sum = %f, want <= 1", sum)
	}

	if res.Meta == nil || res.Meta.TotalDocs != 6 {
		t.Errorf("meta = %+v", res.Meta)
	}
}

func TestPredictCapsAndDedupe(t *testing.T) {
	ctx := context.Background()
	engine, _ := trainedEngine(t)

	candidates := []string{
		"Dining", "Dining", "Transport", "Groceries", "Travel", "Health", "Rent",
	}
	res, err := engine.Predict(ctx, "u1", "gasoline", candidates)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Predictions) > 3 {
		t.Errorf("prediction count = %d, want <= 3", len(res.Predictions))
	}
	seen := map[string]bool{}
	for _, p := range res.Predictions {
		if seen[p.Category] {
			t.Errorf("duplicate category %q", p.Category)
		}
		seen[p.Category] = true
	}
	if len(res.Predictions) == 0 || res.Predictions[0].Category != "Transport" {
		t.Errorf("top prediction = %v, want Transport first", res.Predictions)
	}
}

func TestPredictSupportCounts(t *testing.T) {
	ctx := context.Background()
	engine, _ := trainedEngine(t)

	res, err := engine.Predict(ctx, "u1", "coffee", []string{"Dining", "Transport"})
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range res.Predictions {
		switch p.Category {
		case "Dining":
			if p.Support != 3 {
				t.Errorf("Dining support = %d, want 3", p.Support)
			}
		case "Transport":
			if p.Support != 3 {
				t.Errorf("Transport support = %d, want 3", p.Support)
			}
		}
	}
}
