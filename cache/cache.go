// Package cache implements the sharded, bounded-LRU prefix cache of spec
// §4.6: a Bloom-filter-gated prefix-refinement cache sitting in front of
// the lexical/vector/hybrid search paths.
package cache

import (
	"strings"

	"github.com/justSteve/coding-agent-session-search/model"
)

// CacheKeyVersion is folded into every cache key so a format change
// invalidates old entries outright rather than misinterpreting them.
const CacheKeyVersion = 1

// Entry is one cached query's result set, with per-hit lowercased text
// and a Bloom filter used to gate prefix-refinement lookups (spec §4.6).
type Entry struct {
	Query   string
	Filters string // filters_fingerprint
	Hits    []HitEntry

	// GeneratedAtMs is when this entry was built (caller-stamped; zero if
	// never set). Used to flag a served entry as stale relative to the
	// index's most recent commit (spec §4.10 meta "staleness warnings").
	GeneratedAtMs int64
}

// HitEntry is one cached hit plus the precomputed fields prefix
// refinement needs: lowercased content/title/snippet and a 64-bit Bloom
// mask over the prefixes of the content's tokens.
type HitEntry struct {
	Candidate model.Candidate
	LCContent string
	LCTitle   string
	LCSnippet string
	Bloom     uint64
}

// ByteSize approximates the entry's footprint for the byte-budget
// eviction policy.
func (e Entry) ByteSize() int64 {
	var n int64
	for _, h := range e.Hits {
		n += int64(len(h.LCContent) + len(h.LCTitle) + len(h.LCSnippet) + 64)
	}
	return n
}

// BuildEntry constructs a cache Entry from a hit list, computing the
// lowercased fields and Bloom filter for each hit.
func BuildEntry(query, filtersFingerprint string, hits []model.Candidate) Entry {
	e := Entry{Query: query, Filters: filtersFingerprint, Hits: make([]HitEntry, len(hits))}
	for i, c := range hits {
		lc := strings.ToLower(c.Content)
		e.Hits[i] = HitEntry{
			Candidate: c,
			LCContent: lc,
			LCTitle:   strings.ToLower(c.Title),
			LCSnippet: strings.ToLower(c.Snippet),
			Bloom:     bloomMaskForText(lc),
		}
	}
	return e
}
