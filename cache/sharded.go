package cache

import (
	"hash/maphash"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/justSteve/coding-agent-session-search/tokenizer"
)

const numShards = 64

// Options configures the cache's size budget (cache_shard_cap,
// cache_total_cap, cache_byte_cap — spec §6).
type Options struct {
	ShardCap int   // cache_shard_cap, default 256
	TotalCap int   // cache_total_cap, default 2048 (informational; per-shard cap already bounds total)
	ByteCap  int64 // cache_byte_cap, default 0 = unbounded
}

func DefaultOptions() Options {
	return Options{ShardCap: 256, TotalCap: 2048, ByteCap: 0}
}

// Cache is the sharded, bounded-LRU prefix cache (spec §4.6). Shards have
// independent locks so operations on different shards proceed in
// parallel (spec §5).
type Cache struct {
	shards [numShards]*shard
	seed   maphash.Seed
	opts   Options

	hits      atomic.Int64
	misses    atomic.Int64
	shortfall atomic.Int64
}

func New(opts Options) *Cache {
	if opts.ShardCap <= 0 {
		opts.ShardCap = 256
	}
	shardByteCap := opts.ByteCap / numShards
	if opts.ByteCap > 0 && shardByteCap < 1 {
		shardByteCap = 1
	}
	c := &Cache{seed: maphash.MakeSeed(), opts: opts}
	for i := range c.shards {
		c.shards[i] = newShard(opts.ShardCap, shardByteCap)
	}
	return c
}

func (c *Cache) shardFor(key string) *shard {
	var h maphash.Hash
	h.SetSeed(c.seed)
	_, _ = h.WriteString(key)
	return c.shards[h.Sum64()%numShards]
}

// Peek looks up an exact cache key without touching the hit/miss
// counters. Used internally (TryPrefixRefine's parent lookup must not
// itself count as a probe) and by callers that want to try a cheaper
// fallback, such as prefix refinement, before deciding whether the
// overall attempt was a genuine miss (spec §8 scenario 5: an exact-key
// probe that a refinement turns into a hit or shortfall must not also
// log a miss).
func (c *Cache) Peek(key string) (Entry, bool) {
	return c.shardFor(key).get(key)
}

// Get looks up an exact cache key, recording a hit or miss.
func (c *Cache) Get(key string) (Entry, bool) {
	e, ok := c.Peek(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return e, ok
}

// RecordHit and RecordMiss let a caller that used Peek directly account
// for the outcome itself, once it has decided the probe was genuinely
// conclusive (see Peek).
func (c *Cache) RecordHit() { c.hits.Add(1) }

// RecordMiss is the miss-side counterpart of RecordHit.
func (c *Cache) RecordMiss() { c.misses.Add(1) }

// Set stores an entry under key, evicting per the shard/byte budget.
// cache_byte_cap is divided evenly across shards (mirroring how
// cache_shard_cap already applies per-shard), trading a little precision
// at the global budget edge for lock-free-across-shards eviction.
func (c *Cache) Set(key string, e Entry) {
	c.shardFor(key).set(key, e)
}

// InvalidatePrefix removes every cached entry whose key starts with
// prefix (used when a source is deleted, to drop stale results without
// waiting for natural LRU eviction).
func (c *Cache) InvalidatePrefix(prefix string) {
	var wg sync.WaitGroup
	wg.Add(numShards)
	for i := range c.shards {
		go func(s *shard) {
			defer wg.Done()
			s.invalidatePrefix(prefix)
		}(c.shards[i])
	}
	wg.Wait()
}

// Stats aggregates hit/miss/shortfall counters for the façade's
// metrics() output.
type Stats struct {
	Hits      int64
	Misses    int64
	Shortfall int64
}

func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Shortfall: c.shortfall.Load(),
	}
}

// RefineResult is the outcome of a prefix-refinement attempt.
type RefineResult struct {
	Hits          []HitEntry
	Shortfall     bool
	GeneratedAtMs int64 // carried forward from the parent entry refined from
}

// TryPrefixRefine attempts to serve newQuery by refining a cached hit
// list for a strictly shorter query under the same filters, per spec
// §4.6. parentKey is the cache key of the shorter query this one is
// assumed to extend (callers derive it by trimming the last typed
// character, matching a character-by-character search-as-you-type
// pattern); ok is false if there is no cached entry at parentKey at all,
// in which case the caller should fall through to a full search without
// counting a shortfall.
//
// The parent lookup uses Peek rather than Get: this call records exactly
// one outcome (hit or shortfall) itself, so counting the parent lookup
// too would double-count every refinement (spec §8 scenario 5).
func (c *Cache) TryPrefixRefine(parentKey, newQuery string, limit int) (RefineResult, bool) {
	parent, ok := c.Peek(parentKey)
	if !ok {
		return RefineResult{}, false
	}

	queryMask := queryBloomMask(strings.ToLower(newQuery))
	queryTokens := tokenizer.Tokenize(newQuery)

	var refined []HitEntry
	for _, h := range parent.Hits {
		if !passesBloomGate(h.Bloom, queryMask) {
			continue
		}
		if !allTokensPresent(h.LCContent, queryTokens) {
			continue
		}
		refined = append(refined, h)
	}

	if len(refined) < limit {
		c.shortfall.Add(1)
		return RefineResult{Hits: refined, Shortfall: true, GeneratedAtMs: parent.GeneratedAtMs}, true
	}
	c.hits.Add(1)
	return RefineResult{Hits: refined, GeneratedAtMs: parent.GeneratedAtMs}, true
}

func allTokensPresent(lcContent string, tokens []string) bool {
	for _, t := range tokens {
		if !strings.Contains(lcContent, t) {
			return false
		}
	}
	return true
}

// ParentKey derives the cache key for the query one typed character
// shorter than rawQuery, under the same schema/filters. Returns ok=false
// only when rawQuery is empty; a one-rune query yields the key of the
// empty query.
func ParentKey(schemaHash, rawQuery, filtersFingerprint string) (key string, ok bool) {
	trimmed, ok := trimLastRune(rawQuery)
	if !ok {
		return "", false
	}
	return Key(schemaHash, trimmed, filtersFingerprint), true
}

func trimLastRune(q string) (string, bool) {
	r := []rune(q)
	if len(r) == 0 {
		return "", false
	}
	return string(r[:len(r)-1]), true
}
