package storage

import (
	"reflect"
	"testing"

	"categoria/internal/core"
)

func TestPlaceholders(t *testing.T) {
	cases := []struct {
		n    int
		want string
	}{
		{0, "(NULL)"},
		{1, "(?)"},
		{3, "(?, ?, ?)"},
	}
	for _, tc := range cases {
		if got := placeholders(tc.n); got != tc.want {
			t.Errorf("placeholders(%d) = %q, want %q", tc.n, got, tc.want)
		}
	}
}

func TestChunkStrings(t *testing.T) {
	in := []string{"a", "b", "c", "d", "e"}

	chunks := chunkStrings(in, 2)
	want := [][]string{{"a", "b"}, {"c", "d"}, {"e"}}
	if !reflect.DeepEqual(chunks, want) {
		t.Errorf("chunkStrings = %v, want %v", chunks, want)
	}

	if got := chunkStrings(nil, 2); got != nil {
		t.Errorf("chunkStrings(nil) = %v, want nil", got)
	}

	single := chunkStrings(in, 10)
	if len(single) != 1 || len(single[0]) != 5 {
		t.Errorf("oversized chunk = %v", single)
	}
}

func TestUniqueStrings(t *testing.T) {
	got := uniqueStrings([]string{"a", "b", "a", "c", "b"})
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("uniqueStrings = %v, want %v", got, want)
	}
}

func TestCategoryKeysCoversBothMaps(t *testing.T) {
	delta := core.Delta{
		CategoryDocCounts:   map[string]int{"k1": 1},
		CategoryTokenTotals: map[string]int{"k1": 3, "k2": -3},
	}
	keys := categoryKeys(delta)
	if len(keys) != 2 {
		t.Fatalf("keys = %v, want both k1 and k2", keys)
	}
	seen := map[string]bool{}
	for _, k := range keys {
		seen[k] = true
	}
	if !seen["k1"] || !seen["k2"] {
		t.Errorf("keys = %v", keys)
	}
}
