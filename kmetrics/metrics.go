// Package kmetrics exports Prometheus instrumentation for kpage's
// per-CPU page allocator and kbuf's buffer cache.
package kmetrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"nanokernel/kbuf"
	"nanokernel/kpage"
)

// PageMetrics tracks a kpage.PageAllocator's free-frame counts and
// steal traffic. Sample must be called periodically to keep the
// gauges current, since nothing inside kpage pushes metrics on its
// own.
type PageMetrics struct {
	FreeFrames *prometheus.GaugeVec
	Steals     prometheus.Counter

	allocator *kpage.PageAllocator
	ncpu      int
	prevSteal int64
}

// NewPageMetrics registers free-frame-per-shard and steal-count metrics
// against reg for the given allocator.
func NewPageMetrics(reg prometheus.Registerer, a *kpage.PageAllocator, ncpu int) *PageMetrics {
	m := &PageMetrics{
		FreeFrames: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nanokernel_kpage_free_frames",
			Help: "Number of free frames currently held by each per-CPU shard.",
		}, []string{"cpu"}),
		Steals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nanokernel_kpage_steals_total",
			Help: "Total number of frames obtained by stealing from another shard.",
		}),
		allocator: a,
		ncpu:      ncpu,
	}
	reg.MustRegister(m.FreeFrames, m.Steals)
	return m
}

// Sample refreshes the free-frame gauges from the allocator's current
// state and adds the steal-count delta since the last Sample call onto
// the steals counter.
func (m *PageMetrics) Sample() {
	for cpu := 0; cpu < m.ncpu; cpu++ {
		count := m.allocator.FreeCount(cpu)
		m.FreeFrames.WithLabelValues(strconv.Itoa(cpu)).Set(float64(count))
	}
	if total := m.allocator.StealCount(); total > m.prevSteal {
		m.Steals.Add(float64(total - m.prevSteal))
		m.prevSteal = total
	}
}

// BufMetrics tracks a kbuf.BufferCache's hit/miss/eviction counters.
type BufMetrics struct {
	Hits      prometheus.Counter
	Misses    prometheus.Counter
	Evictions prometheus.Counter

	cache *kbuf.BufferCache
	prev  struct{ hits, misses, evictions int64 }
}

// NewBufMetrics registers hit/miss/eviction counters against reg for
// the given cache.
func NewBufMetrics(reg prometheus.Registerer, c *kbuf.BufferCache) *BufMetrics {
	m := &BufMetrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nanokernel_kbuf_hits_total",
			Help: "Total number of buffer cache lookups found on the lock-free fast path.",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nanokernel_kbuf_misses_total",
			Help: "Total number of buffer cache lookups that missed on the fast path, including those found on the re-scan under the global lock.",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nanokernel_kbuf_evictions_total",
			Help: "Total number of buffers reassigned to a different block.",
		}),
		cache: c,
	}
	reg.MustRegister(m.Hits, m.Misses, m.Evictions)
	return m
}

// Sample adds the cache's hit/miss/eviction deltas since the last
// Sample call onto the Prometheus counters. kbuf.BufferCache.Stats
// reports cumulative totals, so Sample tracks what it last saw to
// report only the increment — a prometheus.Counter must never
// decrease, and the cache's own counters reset on process restart
// along with these, so the two stay in lockstep.
func (m *BufMetrics) Sample() {
	hits, misses, evictions := m.cache.Stats()
	if d := hits - m.prev.hits; d > 0 {
		m.Hits.Add(float64(d))
	}
	if d := misses - m.prev.misses; d > 0 {
		m.Misses.Add(float64(d))
	}
	if d := evictions - m.prev.evictions; d > 0 {
		m.Evictions.Add(float64(d))
	}
	m.prev.hits, m.prev.misses, m.prev.evictions = hits, misses, evictions
}
