// Package tokenizer turns raw document text into a term-frequency mapping.
// It lower-cases input, replaces every character outside [a-z0-9] and space
// with a space, splits on runs of whitespace, and counts occurrences.
//
// There is deliberately no stemming and no stop-word removal: a term in the
// index is exactly the normalised token that appeared in the document, so
// queries match by exact term.
package tokenizer

import "strings"

// TermFreqs computes the term-frequency mapping for text. Empty input
// produces an empty (non-nil) map. The function is pure and safe for
// concurrent use.
func TermFreqs(text string) map[string]int {
	freqs := make(map[string]int)
	if text == "" {
		return freqs
	}

	normalized := normalize(text)
	for _, tok := range strings.Fields(normalized) {
		freqs[tok]++
	}
	return freqs
}

// Terms returns the distinct normalised tokens of text in first-seen order.
// Used by query-side callers that need the term set without counts.
func Terms(text string) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, tok := range strings.Fields(normalize(text)) {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		terms = append(terms, tok)
	}
	return terms
}

// normalize lower-cases text and maps every rune outside [a-z0-9] to a
// space. Runs of spaces are collapsed later by strings.Fields.
func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}
