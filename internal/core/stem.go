package core

import "strings"

// irregularWords maps common irregular English forms straight to their root.
// A hit here wins outright over the algorithmic reduction below.
var irregularWords = map[string]string{
	"bought": "buy", "paid": "pay", "ate": "eat", "drank": "drink",
	"went": "go", "got": "get", "made": "make", "took": "take",
	"gave": "give", "found": "find", "thought": "think", "told": "tell",
	"became": "become", "left": "leave", "felt": "feel", "brought": "bring",
	"began": "begin", "kept": "keep", "held": "hold", "wrote": "write",
	"stood": "stand", "heard": "hear", "let": "let", "meant": "mean",
	"met": "meet", "ran": "run", "sat": "sit", "sent": "send",
	"spent": "spend", "built": "build", "lost": "lose", "caught": "catch",
}

// stemRule rewrites a suffix when the measure of the remaining stem is at
// least minMeasure. Rules within a step are tried in order and the first
// match wins, so later rules never see a stem an earlier rule would have
// claimed. Keeping the tables as ordered slices (not maps) pins that
// tie-break behavior.
type stemRule struct {
	suffix      string
	minMeasure  int
	replacement string
}

var step2Rules = []stemRule{
	{"ational", 1, "ate"}, {"tional", 1, "tion"}, {"enci", 1, "ence"},
	{"anci", 1, "ance"}, {"izer", 1, "ize"}, {"isation", 1, "ize"},
	{"ization", 1, "ize"}, {"ation", 1, "ate"}, {"ator", 1, "ate"},
	{"alism", 1, "al"}, {"iveness", 1, "ive"}, {"fulness", 1, "ful"},
	{"ousness", 1, "ous"}, {"aliti", 1, "al"}, {"iviti", 1, "ive"},
	{"biliti", 1, "ble"}, {"alli", 1, "al"}, {"entli", 1, "ent"},
	{"eli", 1, "e"}, {"ousli", 1, "ous"},
}

var step3Rules = []stemRule{
	{"icate", 1, "ic"}, {"ative", 1, ""}, {"alize", 1, "al"},
	{"iciti", 1, "ic"}, {"ical", 1, "ic"}, {"ful", 1, ""}, {"ness", 1, ""},
}

// step4Suffixes are removed outright when measure > 1. "ion" additionally
// requires the preceding stem to end in s or t; a matching "ion" that fails
// that check still stops the scan.
var step4Suffixes = []string{
	"al", "ance", "ence", "er", "ic", "able", "ible", "ant", "ement",
	"ment", "ent", "ion", "ou", "ism", "ate", "iti", "ous", "ive", "ize",
}

// Stem reduces an English word to its root form. The irregular table is
// consulted first; otherwise a simplified Porter reduction is applied.
// Words shorter than 3 characters are returned unchanged.
func Stem(word string) string {
	if root, ok := irregularWords[word]; ok {
		return root
	}
	return porterStem(word)
}

func porterStem(word string) string {
	if len(word) < 3 {
		return word
	}

	stem := strings.ToLower(word)

	// Step 1a: plurals.
	switch {
	case strings.HasSuffix(stem, "sses"):
		stem = stem[:len(stem)-2]
	case strings.HasSuffix(stem, "ies"):
		stem = stem[:len(stem)-2]
	case strings.HasSuffix(stem, "ss"):
		// keep
	case strings.HasSuffix(stem, "s") && len(stem) > 3:
		stem = stem[:len(stem)-1]
	}

	// Step 1b: -eed, -ed, -ing.
	switch {
	case strings.HasSuffix(stem, "eed"):
		if len(stem) > 4 {
			stem = stem[:len(stem)-1]
		}
	case strings.HasSuffix(stem, "ed") && containsVowel(stem[:len(stem)-2]):
		stem = restoreAfter1b(stem[:len(stem)-2])
	case strings.HasSuffix(stem, "ing") && containsVowel(stem[:len(stem)-3]):
		stem = restoreAfter1b(stem[:len(stem)-3])
	}

	// Step 1c: trailing y after a consonant becomes i.
	if strings.HasSuffix(stem, "y") && len(stem) > 2 && !isVowel(stem[len(stem)-2]) {
		stem = stem[:len(stem)-1] + "i"
	}

	stem = applyRules(stem, step2Rules)
	stem = applyRules(stem, step3Rules)

	// Step 4: strip residual suffixes when measure > 1. A matching "ion"
	// still ends the scan even when the s/t requirement rejects it.
	for _, suffix := range step4Suffixes {
		if !strings.HasSuffix(stem, suffix) {
			continue
		}
		base := stem[:len(stem)-len(suffix)]
		if measure(base) <= 1 {
			continue
		}
		if suffix != "ion" || strings.HasSuffix(base, "s") || strings.HasSuffix(base, "t") {
			stem = base
		}
		break
	}

	// Step 5a: trailing e.
	if strings.HasSuffix(stem, "e") {
		base := stem[:len(stem)-1]
		if m := measure(base); m > 1 || (m == 1 && !endsWithCVC(base)) {
			stem = base
		}
	}

	// Step 5b: collapse trailing ll.
	if strings.HasSuffix(stem, "ll") && measure(stem[:len(stem)-1]) > 1 {
		stem = stem[:len(stem)-1]
	}

	return stem
}

func applyRules(stem string, rules []stemRule) string {
	for _, rule := range rules {
		if !strings.HasSuffix(stem, rule.suffix) {
			continue
		}
		base := stem[:len(stem)-len(rule.suffix)]
		if measure(base) >= rule.minMeasure {
			return base + rule.replacement
		}
	}
	return stem
}

// restoreAfter1b repairs a stem after -ed/-ing removal: restore a final e
// after at/bl/iz, collapse doubled non-liquid consonants, and add e back to
// short CVC stems.
func restoreAfter1b(stem string) string {
	if strings.HasSuffix(stem, "at") || strings.HasSuffix(stem, "bl") || strings.HasSuffix(stem, "iz") {
		return stem + "e"
	}
	if len(stem) >= 2 {
		last := stem[len(stem)-1]
		if last == stem[len(stem)-2] && !isVowel(last) && last != 'l' && last != 's' && last != 'z' {
			return stem[:len(stem)-1]
		}
	}
	if measure(stem) == 1 && endsWithCVC(stem) {
		return stem + "e"
	}
	return stem
}

func isVowel(c byte) bool {
	switch c {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

func containsVowel(s string) bool {
	for i := 0; i < len(s); i++ {
		if isVowel(s[i]) {
			return true
		}
	}
	return false
}

// measure counts vowel-to-consonant transitions, the Porter "m" that gates
// most suffix rules. y counts as a consonant throughout.
func measure(s string) int {
	count := 0
	prevVowel := false
	for i := 0; i < len(s); i++ {
		vowel := isVowel(s[i])
		if prevVowel && !vowel {
			count++
		}
		prevVowel = vowel
	}
	return count
}

// endsWithCVC reports whether s ends consonant-vowel-consonant where the
// final consonant is not w, x or y.
func endsWithCVC(s string) bool {
	if len(s) < 3 {
		return false
	}
	last := s[len(s)-1]
	if isVowel(last) || !isVowel(s[len(s)-2]) || isVowel(s[len(s)-3]) {
		return false
	}
	return last != 'w' && last != 'x' && last != 'y'
}
