package core

import (
	"reflect"
	"strings"
	"testing"
)

func TestTokenize(t *testing.T) {
	cases := []struct {
		name  string
		title string
		want  []string
	}{
		{
			name:  "year placeholder and stemming",
			title: "Grocery Purchase #2024",
			want:  []string{"groceri", "<YEAR>", "groceri_<YEAR>"},
		},
		{
			name:  "amounts collapse to a number placeholder",
			title: "Dinner at Luigi's 45.50",
			want: []string{
				"dinner", "luigi", "<NUM>", "<NUM>",
				"dinner_luigi", "luigi_<NUM>", "<NUM>_<NUM>",
			},
		},
		{
			name:  "stopwords only",
			title: "paid the bill",
			want:  nil,
		},
		{
			name:  "leading digits keep the alphabetic tail",
			title: "4kids toys",
			want:  []string{"<NUM>kids", "toy", "<NUM>kids_toy"},
		},
		{
			name:  "empty title",
			title: "   ",
			want:  nil,
		},
		{
			name:  "case and punctuation are irrelevant",
			title: "UBER *TRIP",
			want:  []string{"uber", "trip", "uber_trip"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Tokenize(tc.title)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Tokenize(%q) = %v, want %v", tc.title, got, tc.want)
			}
		})
	}
}

func TestTokenizeDeterministic(t *testing.T) {
	title := "Monthly Gym Membership 2024 49.90"
	first := Tokenize(title)
	for i := 0; i < 5; i++ {
		if got := Tokenize(title); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d produced %v, want %v", i, got, first)
		}
	}
}

func TestTokenizeYearBoundaries(t *testing.T) {
	cases := []struct {
		in, out string
	}{
		{"1989", "<NUM>"},
		{"1990", "<YEAR>"},
		{"2100", "<YEAR>"},
		{"2101", "<NUM>"},
		{"199", "<NUM>"},
		{"19901", "<NUM>"},
	}
	for _, tc := range cases {
		got := Tokenize("store " + tc.in)
		if len(got) == 0 || got[1] != tc.out {
			t.Errorf("Tokenize(%q) = %v, want second token %q", "store "+tc.in, got, tc.out)
		}
	}
}

func TestTokenizeCaps(t *testing.T) {
	// 30 distinct words: unigrams stop at 20 and no bigrams fit.
	words := make([]string, 30)
	for i := range words {
		words[i] = "xx" + strings.Repeat("q", i+1)
	}
	got := Tokenize(strings.Join(words, " "))
	if len(got) != maxTokens {
		t.Fatalf("token count = %d, want %d", len(got), maxTokens)
	}

	// long tokens are truncated
	long := strings.Repeat("z", 50)
	got = Tokenize(long)
	if len(got) != 1 || len(got[0]) != maxTokenLength {
		t.Fatalf("Tokenize(long) = %v, want one %d-char token", got, maxTokenLength)
	}
}

func TestTokenizeShortTokensDropped(t *testing.T) {
	got := Tokenize("x y coffee")
	want := []string{"coffe"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize = %v, want %v", got, want)
	}
}
