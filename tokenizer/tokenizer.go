// Package tokenizer implements the deterministic tokenizer and edge-n-gram
// expansion used by the lexical index (spec §4.1).
package tokenizer

import (
	"strings"
	"unicode"
)

// MaxTokenLen is the longest token the tokenizer will emit; longer runs are
// dropped entirely (not truncated).
const MaxTokenLen = 40

// EdgeNgramMinLen is the shortest edge-n-gram emitted for a token. Must
// stay in sync with schema.edgeNgramMinLen.
const EdgeNgramMinLen = 2

// isSplit reports whether r is whitespace or ASCII punctuation, i.e. a
// token boundary. Non-ASCII characters (letters such as those in "café"
// or "日本語", and non-ASCII punctuation) are preserved as part of the
// token, matching spec §4.1's "preserves Unicode" requirement.
func isSplit(r rune) bool {
	if unicode.IsSpace(r) {
		return true
	}
	return r < unicode.MaxASCII && unicode.IsPunct(r)
}

// Tokenize splits text into lowercased tokens, dropping any token longer
// than MaxTokenLen runes. Token order is preserved (needed for phrase
// queries' positional postings).
func Tokenize(text string) []string {
	lower := strings.ToLower(text)
	fields := strings.FieldsFunc(lower, isSplit)

	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8RuneCount(f) > MaxTokenLen {
			continue
		}
		out = append(out, f)
	}
	return out
}

func utf8RuneCount(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}

// EdgeNgrams returns every prefix of token from length EdgeNgramMinLen up
// to and including the full token, e.g. "async" -> ["as","asy","asyn","async"].
// Tokens shorter than EdgeNgramMinLen yield no grams.
func EdgeNgrams(token string) []string {
	runes := []rune(token)
	if len(runes) < EdgeNgramMinLen {
		return nil
	}
	grams := make([]string, 0, len(runes)-EdgeNgramMinLen+1)
	for n := EdgeNgramMinLen; n <= len(runes); n++ {
		grams = append(grams, string(runes[:n]))
	}
	return grams
}

// TokenizeWithPrefix tokenizes text and also returns the deduplicated set
// of edge-n-grams across all tokens, used to populate the *_prefix fields.
func TokenizeWithPrefix(text string) (tokens []string, prefixGrams []string) {
	tokens = Tokenize(text)
	seen := make(map[string]struct{})
	for _, t := range tokens {
		for _, g := range EdgeNgrams(t) {
			if _, ok := seen[g]; !ok {
				seen[g] = struct{}{}
				prefixGrams = append(prefixGrams, g)
			}
		}
	}
	return tokens, prefixGrams
}
