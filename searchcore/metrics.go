package searchcore

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// metricsCollector accumulates the counters surfaced by Facade.Metrics
// (spec §4.10 "metrics() -> {cache_hits, cache_miss, cache_shortfall,
// reloads, reload_ms_total, search_p50, search_p95, ...}"), grounded on
// the teacher's BasicMetricsCollector (atomic counters plus a derived
// average/percentile snapshot).
type metricsCollector struct {
	reloads       atomic.Int64
	reloadNanos   atomic.Int64
	mergeAttempts atomic.Int64
	merges        atomic.Int64

	mu             sync.Mutex
	searchLatenies []time.Duration // ring-bounded sample of recent search latencies
}

const maxLatencySamples = 1024

func (m *metricsCollector) recordReload(d time.Duration) {
	m.reloads.Add(1)
	m.reloadNanos.Add(d.Nanoseconds())
}

func (m *metricsCollector) recordMerge(merged bool) {
	m.mergeAttempts.Add(1)
	if merged {
		m.merges.Add(1)
	}
}

func (m *metricsCollector) recordSearch(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchLatenies = append(m.searchLatenies, d)
	if len(m.searchLatenies) > maxLatencySamples {
		m.searchLatenies = m.searchLatenies[len(m.searchLatenies)-maxLatencySamples:]
	}
}

func (m *metricsCollector) percentiles() (p50, p95 time.Duration) {
	m.mu.Lock()
	samples := append([]time.Duration(nil), m.searchLatenies...)
	m.mu.Unlock()

	if len(samples) == 0 {
		return 0, 0
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	p50 = samples[(len(samples)*50)/100]
	p95 = samples[min(len(samples)*95/100, len(samples)-1)]
	return p50, p95
}

// Metrics is the façade's metrics() snapshot.
type Metrics struct {
	CacheHits        int64
	CacheMisses      int64
	CacheShortfalls  int64
	Reloads          int64
	ReloadMsTotal    int64
	MergeAttempts    int64
	Merges           int64
	SearchP50Ms      int64
	SearchP95Ms      int64
	WarmWorkerRuns   int64
	WarmWorkerFailed int64
}
