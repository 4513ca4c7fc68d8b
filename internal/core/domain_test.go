package core

import "testing"

func TestCategoryKey(t *testing.T) {
	key := CategoryKey("Groceries")
	if len(key) != 16 {
		t.Fatalf("key length = %d, want 16", len(key))
	}
	if CategoryKey("  Groceries  ") != key {
		t.Error("surrounding whitespace should not change the key")
	}
	if CategoryKey("groceries") == key {
		t.Error("case should change the key")
	}
	if CategoryKey("Transport") == key {
		t.Error("distinct labels should not collide")
	}
}

func TestBuildSample(t *testing.T) {
	cases := []struct {
		name string
		rec  *Record
		nil_ bool
	}{
		{"nil record", nil, true},
		{"blank title", &Record{Title: "  ", Category: "Food"}, true},
		{"blank category", &Record{Title: "coffee", Category: ""}, true},
		{"stopwords only", &Record{Title: "paid the bill", Category: "Food"}, true},
		{"valid", &Record{Title: "Starbucks Coffee", Category: "Food"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := BuildSample(tc.rec)
			if (s == nil) != tc.nil_ {
				t.Fatalf("BuildSample(%+v) = %+v, want nil=%v", tc.rec, s, tc.nil_)
			}
		})
	}

	s := BuildSample(&Record{Title: "Starbucks Coffee", Category: "Food"})
	if s.Category != "Food" || s.CategoryKey != CategoryKey("Food") {
		t.Fatalf("unexpected category fields: %+v", s)
	}
	// 2 unigrams + 1 bigram
	if s.TokenTotal != 3 {
		t.Fatalf("TokenTotal = %d, want 3", s.TokenTotal)
	}
	if s.TokenCounts["starbuck_coffe"] != 1 {
		t.Fatalf("missing bigram in counts: %v", s.TokenCounts)
	}
}

func TestSampleEqual(t *testing.T) {
	a := BuildSample(&Record{Title: "taxi ride", Category: "Transport"})
	b := BuildSample(&Record{Title: "Taxi  Ride!", Category: "Transport"})
	if !a.Equal(b) {
		t.Error("normalized-identical samples should be equal")
	}

	c := BuildSample(&Record{Title: "taxi ride", Category: "Travel"})
	if a.Equal(c) {
		t.Error("different categories should not be equal")
	}

	d := BuildSample(&Record{Title: "taxi ride home", Category: "Transport"})
	if a.Equal(d) {
		t.Error("different token sets should not be equal")
	}

	var nilSample *Sample
	if nilSample.Equal(a) || a.Equal(nil) {
		t.Error("nil compares unequal to non-nil")
	}
	if !nilSample.Equal(nil) {
		t.Error("nil compares equal to nil")
	}
}

func TestLedgerEntryValid(t *testing.T) {
	var nilEntry *LedgerEntry
	if nilEntry.Valid() {
		t.Error("nil entry should be invalid")
	}
	if (&LedgerEntry{RecordID: "r1"}).Valid() {
		t.Error("entry without sample should be invalid")
	}
	entry := &LedgerEntry{
		RecordID: "r1",
		Sample: Sample{
			Category:    "Food",
			CategoryKey: CategoryKey("Food"),
			TokenCounts: map[string]int{"coffe": 1},
			TokenTotal:  1,
		},
	}
	if !entry.Valid() {
		t.Error("complete entry should be valid")
	}
}
