package shingle

import "strings"

// Tokenize normalizes raw text into an ordered token sequence: the whole
// input is lowercased and split on runs of Unicode whitespace. There is no
// punctuation stripping or stemming; shingle fingerprints must be stable
// across implementations, so the normalization is deliberately minimal.
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}
