package lexical

import "golang.org/x/time/rate"

// Option configures an Index at construction time, following the
// functional-options convention used across this codebase.
type Option func(*options)

type options struct {
	mergeThreshold  int
	mergeCooldownMs int64
	// mergeIOPerSec rate-limits the segment reads a merge performs, so a
	// background merge never starves foreground commit I/O (spec §4.2
	// "merges never block searches"). 0 means unlimited.
	mergeIOPerSec int
}

func defaultOptions() options {
	return options{
		mergeThreshold:  4,
		mergeCooldownMs: 300_000,
		mergeIOPerSec:   0,
	}
}

// WithMergeThreshold sets the minimum segment count that makes
// MergeIfIdle consider a merge (merge_threshold, default 4).
func WithMergeThreshold(n int) Option {
	return func(o *options) { o.mergeThreshold = n }
}

// WithMergeCooldownMs sets the minimum interval between merges in
// milliseconds (merge_cooldown_ms, default 300000).
func WithMergeCooldownMs(ms int64) Option {
	return func(o *options) { o.mergeCooldownMs = ms }
}

// WithMergeIOPerSec caps the rate (segment reads per second) at which a
// background merge consumes I/O. 0 (the default) leaves merges
// unthrottled.
func WithMergeIOPerSec(n int) Option {
	return func(o *options) { o.mergeIOPerSec = n }
}

func newMergeLimiter(perSec int) *rate.Limiter {
	if perSec <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSec), 1)
}
