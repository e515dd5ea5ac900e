package searchcore

import (
	"time"

	"github.com/justSteve/coding-agent-session-search/embedder"
	"github.com/justSteve/coding-agent-session-search/vector"
)

// EmbedderChoice selects which embedder variant boots (embedder, spec
// §6).
type EmbedderChoice uint8

const (
	// EmbedderAuto picks ML if the caller supplied one via WithMLEmbedder,
	// else falls back to the deterministic hash embedder.
	EmbedderAuto EmbedderChoice = iota
	EmbedderML
	EmbedderHash
)

// Option configures a Façade at Open time, following the functional-
// options convention used throughout this codebase.
type Option func(*options)

type options struct {
	embedderChoice EmbedderChoice
	mlInfer        embedder.InferenceFunc

	vectorQuantization      vector.Quantization
	vectorPreconvert        bool
	vectorParallelThreshold int

	warmDebounce time.Duration

	cacheShardCap int
	cacheTotalCap int
	cacheByteCap  int64

	mergeThreshold  int
	mergeCooldownMs int64

	maxConcurrentBackground int64

	rrfK             int
	rrfCandidateMult int

	searchLimitMax int

	log *Logger
}

func defaultOptions() options {
	return options{
		embedderChoice:          EmbedderAuto,
		vectorQuantization:      vector.QuantF16,
		vectorPreconvert:        true,
		vectorParallelThreshold: 10_000,
		warmDebounce:            120 * time.Millisecond,
		cacheShardCap:           256,
		cacheTotalCap:           2048,
		cacheByteCap:            0,
		mergeThreshold:          4,
		mergeCooldownMs:         300_000,
		maxConcurrentBackground: 1,
		rrfK:                    60,
		rrfCandidateMult:        3,
		searchLimitMax:          1000,
	}
}

// WithEmbedder selects the embedder variant (embedder, default "auto").
func WithEmbedder(choice EmbedderChoice) Option {
	return func(o *options) { o.embedderChoice = choice }
}

// WithMLEmbedder supplies the inference function for the ML embedder
// variant (spec §4.4's "thin adapter" contract — this core never imports
// an ML runtime itself).
func WithMLEmbedder(infer embedder.InferenceFunc) Option {
	return func(o *options) { o.mlInfer = infer }
}

// WithVectorQuantization sets the on-disk vector element format
// (vector_quantization, default f16).
func WithVectorQuantization(q vector.Quantization) Option {
	return func(o *options) { o.vectorQuantization = q }
}

// WithVectorPreconvert toggles materializing an F32 slab at load time
// when quantization is F16 (vector_preconvert, default on).
func WithVectorPreconvert(on bool) Option {
	return func(o *options) { o.vectorPreconvert = on }
}

// WithVectorParallelThreshold sets the row count at which vector search
// parallelizes (vector_parallel_threshold, default 10000).
func WithVectorParallelThreshold(n int) Option {
	return func(o *options) { o.vectorParallelThreshold = n }
}

// WithWarmDebounce sets the minimum interval between warm reloads
// (warm_debounce_ms, default 120ms).
func WithWarmDebounce(d time.Duration) Option {
	return func(o *options) { o.warmDebounce = d }
}

// WithCacheShardCap sets the max entries per cache shard
// (cache_shard_cap, default 256).
func WithCacheShardCap(n int) Option {
	return func(o *options) { o.cacheShardCap = n }
}

// WithCacheTotalCap sets the informational total-entries cap
// (cache_total_cap, default 2048).
func WithCacheTotalCap(n int) Option {
	return func(o *options) { o.cacheTotalCap = n }
}

// WithCacheByteCap sets the cache's byte budget (cache_byte_cap, default
// 0 = unbounded).
func WithCacheByteCap(n int64) Option {
	return func(o *options) { o.cacheByteCap = n }
}

// WithMergeThreshold sets the minimum segment count that makes a merge
// eligible (merge_threshold, default 4).
func WithMergeThreshold(n int) Option {
	return func(o *options) { o.mergeThreshold = n }
}

// WithMergeCooldownMs sets the minimum interval between merges in
// milliseconds (merge_cooldown_ms, default 300000).
func WithMergeCooldownMs(ms int64) Option {
	return func(o *options) { o.mergeCooldownMs = ms }
}

// WithMaxConcurrentBackground bounds how many background jobs (segment
// merges, warm-worker reloads) may run at once (default 1 — merges and
// warm cycles never overlap unless raised).
func WithMaxConcurrentBackground(n int64) Option {
	return func(o *options) { o.maxConcurrentBackground = n }
}

// WithRRFK sets K in the RRF formula (rrf_k, default 60).
func WithRRFK(k int) Option {
	return func(o *options) { o.rrfK = k }
}

// WithRRFCandidateMult sets the per-engine fetch-depth multiplier in
// hybrid mode (rrf_candidate_mult, default 3).
func WithRRFCandidateMult(m int) Option {
	return func(o *options) { o.rrfCandidateMult = m }
}

// WithSearchLimitMax bounds the largest limit a caller may request
// (spec §4.10 "an upper bound on limit is enforced").
func WithSearchLimitMax(n int) Option {
	return func(o *options) { o.searchLimitMax = n }
}

// WithLogger overrides the façade's logger (default: text handler on
// stderr at info level).
func WithLogger(l *Logger) Option {
	return func(o *options) { o.log = l }
}
