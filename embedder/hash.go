package embedder

import (
	"context"
	"hash/fnv"
	"math"
	"strconv"

	"github.com/justSteve/coding-agent-session-search/tokenizer"
)

// hashDimension is the fixed output width of the hash-fallback embedder,
// matching the ML embedder's dimension so the two are interchangeable at
// the vector index boundary (384, per original_source's embedder
// registry).
const hashDimension = 384

// HashEmbedder is a deterministic, ML-free embedder: it exists so the
// system boots and answers without any model dependency, and so tests
// are reproducible (spec §4.4). It derives each output dimension from
// FNV-1a hashes of each token's trigrams, folded with the dimension
// index, then L2-normalizes the result.
type HashEmbedder struct{}

// NewHashEmbedder returns the fnv1a-384 embedder.
func NewHashEmbedder() *HashEmbedder { return &HashEmbedder{} }

func (h *HashEmbedder) ID() string       { return "hash" }
func (h *HashEmbedder) Revision() string { return "fnv1a-384" }
func (h *HashEmbedder) Dimension() int   { return hashDimension }

func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, hashDimension)

	tokens := tokenizer.Tokenize(text)
	for _, tok := range tokens {
		for _, gram := range trigrams(tok) {
			for d := 0; d < hashDimension; d++ {
				sum, sign := hashGramDim(gram, d)
				vec[d] += sign * float32(sum%997) / 997
			}
		}
	}

	normalize(vec)
	return vec, nil
}

// trigrams returns overlapping 3-rune windows of token, or token itself
// when shorter than 3 runes.
func trigrams(token string) []string {
	r := []rune(token)
	if len(r) <= 3 {
		return []string{token}
	}
	grams := make([]string, 0, len(r)-2)
	for i := 0; i+3 <= len(r); i++ {
		grams = append(grams, string(r[i:i+3]))
	}
	return grams
}

// hashGramDim folds a trigram with a dimension index into a 64-bit FNV-1a
// hash, returning a magnitude and a deterministic +/-1 sign.
func hashGramDim(gram string, dim int) (uint64, float32) {
	hsh := fnv.New64a()
	_, _ = hsh.Write([]byte(gram))
	_, _ = hsh.Write([]byte(":"))
	_, _ = hsh.Write([]byte(strconv.Itoa(dim)))
	sum := hsh.Sum64()
	if sum&1 == 0 {
		return sum, 1
	}
	return sum, -1
}

// normalize scales vec to unit L2 norm in place. A zero vector (empty
// text) is left as-is.
func normalize(vec []float32) {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range vec {
		vec[i] /= norm
	}
}
