package core

import "strings"

const (
	maxTokens      = 20
	minTokenLength = 2
	maxTokenLength = 32

	// Placeholders keep the vocabulary small: every price and every year
	// collapses onto one token each.
	yearToken = "<YEAR>"
	numToken  = "<NUM>"
)

// stopwords holds common English words plus domain words that appear in
// almost every transaction title and carry no category signal.
var stopwords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for",
		"of", "with", "by", "from", "as", "is", "was", "are", "were", "been",
		"be", "have", "has", "had", "do", "does", "did", "will", "would",
		"could", "should", "may", "might", "must", "shall", "can", "need",
		"it", "its", "this", "that", "these", "those", "i", "you", "he",
		"she", "we", "they", "my", "your", "his", "her", "our", "their",
		"me", "him", "us", "them", "what", "which", "who", "whom", "where",
		"when", "why", "how", "all", "each", "every", "both", "few", "more",
		"some", "any", "no", "not", "only", "own", "same", "so", "than",
		"too", "very", "just", "also", "now", "here", "there", "then",
		"payment", "paid", "pay", "bought", "purchase", "purchased", "bill",
	} {
		stopwords[w] = struct{}{}
	}
}

// IsStopword reports whether a token is filtered out of the pipeline.
func IsStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}

// Tokenize turns a title into the ordered token sequence the model is keyed
// on: filtered, normalized, stemmed unigrams followed by adjacent-pair
// bigrams. The same function serves the training and the query path; any
// divergence between the two would silently degrade the model, so callers
// must never pre-process titles themselves.
func Tokenize(title string) []string {
	normalized := strings.ToLower(strings.TrimSpace(title))
	if normalized == "" {
		return nil
	}

	var unigrams []string
	for _, raw := range splitAlnum(normalized) {
		if len(raw) < minTokenLength {
			continue
		}
		if IsStopword(raw) {
			continue
		}
		token := normalizeNumber(raw)
		// Placeholders bypass the stemmer; it only understands plain words.
		if !strings.HasPrefix(token, "<") {
			token = Stem(token)
		}
		if IsStopword(token) {
			continue
		}
		if len(token) > maxTokenLength {
			token = token[:maxTokenLength]
		}
		unigrams = append(unigrams, token)
		if len(unigrams) >= maxTokens {
			break
		}
	}

	tokens := unigrams
	if len(unigrams) >= 2 {
		for i := 0; i < len(unigrams)-1 && len(tokens) < maxTokens; i++ {
			bigram := unigrams[i] + "_" + unigrams[i+1]
			if len(bigram) > maxTokenLength {
				bigram = bigram[:maxTokenLength]
			}
			tokens = append(tokens, bigram)
		}
	}
	return tokens
}

// splitAlnum extracts runs of [a-z0-9] from an already lowercased string.
func splitAlnum(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
}

// normalizeNumber maps numeric tokens onto placeholders: a plausible
// calendar year becomes <YEAR>, any other number becomes <NUM>, and a token
// with a leading digit run keeps its alphabetic tail ("4kids" -> "<NUM>kids").
func normalizeNumber(token string) string {
	if len(token) == 4 && isDigits(token) {
		if token >= "1990" && token <= "2100" {
			return yearToken
		}
	}
	if isNumeric(token) {
		return numToken
	}
	if i := leadingDigits(token); i > 0 && isLetters(token[i:]) {
		return numToken + token[i:]
	}
	return token
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

// isNumeric accepts an integer or a decimal with a single point.
func isNumeric(s string) bool {
	whole, frac, dotted := s, "", false
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
		dotted = true
	}
	if !isDigits(whole) {
		return false
	}
	if dotted && !isDigits(frac) {
		return false
	}
	return true
}

func isLetters(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 'a' || s[i] > 'z' {
			return false
		}
	}
	return len(s) > 0
}

func leadingDigits(s string) int {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return i
}
