package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize_LowercasesAndSplits(t *testing.T) {
	got := Tokenize("Async Bug: Fix the Retry-Loop!")
	assert.Equal(t, []string{"async", "bug", "fix", "the", "retry", "loop"}, got)
}

func TestTokenize_DropsOverlongTokens(t *testing.T) {
	long := strings.Repeat("a", MaxTokenLen+1)
	got := Tokenize("short " + long + " word")
	assert.Equal(t, []string{"short", "word"}, got)
}

func TestTokenize_PreservesUnicode(t *testing.T) {
	got := Tokenize("日本語 café naïve")
	assert.Equal(t, []string{"日本語", "café", "naïve"}, got)
}

func TestEdgeNgrams(t *testing.T) {
	got := EdgeNgrams("async")
	assert.Equal(t, []string{"as", "asy", "asyn", "async"}, got)
}

func TestEdgeNgrams_ShortTokenYieldsNothing(t *testing.T) {
	assert.Nil(t, EdgeNgrams("a"))
	assert.Equal(t, []string{"ab"}, EdgeNgrams("ab"))
}

func TestTokenizeWithPrefix_Dedupes(t *testing.T) {
	tokens, grams := TokenizeWithPrefix("auth authn")
	assert.Equal(t, []string{"auth", "authn"}, tokens)
	// "au", "aut", "auth" shared between both tokens; only "authn" adds new grams beyond "auth".
	assert.Contains(t, grams, "au")
	assert.Contains(t, grams, "auth")
	assert.Contains(t, grams, "authn")
	// no duplicates
	seen := map[string]int{}
	for _, g := range grams {
		seen[g]++
	}
	for g, c := range seen {
		assert.Equal(t, 1, c, "gram %q appeared %d times", g, c)
	}
}
