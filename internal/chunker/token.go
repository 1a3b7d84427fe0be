package chunker

import "strings"

// Tokenize splits text into whitespace-delimited tokens. The same scheme is
// used for sizing, window slicing, and decoding, so chunk contents
// concatenate back to the section text modulo whitespace.
func Tokenize(text string) []string {
	return strings.Fields(text)
}

// Detokenize joins tokens back into text.
func Detokenize(tokens []string) string {
	return strings.Join(tokens, " ")
}

// CountTokens reports the token count of text under the chunking scheme.
func CountTokens(text string) int {
	return len(strings.Fields(text))
}
