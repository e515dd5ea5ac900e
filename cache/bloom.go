package cache

import (
	"hash/fnv"

	"github.com/justSteve/coding-agent-session-search/tokenizer"
)

// bloomMaskForText builds a 64-bit Bloom mask by setting bit
// hash(p) mod 64 for every rune prefix p (length 1 up to the whole token)
// of every token in text (spec §4.6), so a query token that is still
// being typed, and is therefore only a prefix of a content token, passes
// the gate.
func bloomMaskForText(lowercasedText string) uint64 {
	var mask uint64
	for _, tok := range tokenizer.Tokenize(lowercasedText) {
		runes := []rune(tok)
		for n := 1; n <= len(runes); n++ {
			mask |= bitFor(string(runes[:n]))
		}
	}
	return mask
}

func bitFor(token string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(token))
	return 1 << (h.Sum64() % 64)
}

// queryBloomMask computes the Bloom mask for a query's own tokens (the
// whole tokens only, not their prefixes), used to gate prefix-refinement
// candidates.
func queryBloomMask(lowercasedQuery string) uint64 {
	var mask uint64
	for _, tok := range tokenizer.Tokenize(lowercasedQuery) {
		mask |= bitFor(tok)
	}
	return mask
}

// passesBloomGate reports whether a cached hit's mask is a superset of
// the query's mask: (cached & query) == query. False positives are
// possible (two distinct tokens can collide on the same bit); false
// negatives are not, since every query bit must already be set in the
// hit's mask (spec §4.6 step 2).
func passesBloomGate(hitMask, queryMask uint64) bool {
	return hitMask&queryMask == queryMask
}
