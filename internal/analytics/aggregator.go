package analytics

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/kafka"
)

const (
	defaultLatencyWindow = 10000
	topQueryLimit        = 10
)

type AggregatedStats struct {
	Since             time.Time     `json:"since"`
	TotalSearches     int64         `json:"total_searches"`
	RelatedLookups    int64         `json:"related_lookups"`
	CacheHits         int64         `json:"cache_hits"`
	CacheMisses       int64         `json:"cache_misses"`
	CacheHitRate      float64       `json:"cache_hit_rate"`
	ZeroResultCount   int64         `json:"zero_result_count"`
	AvgLatencyMs      float64       `json:"avg_latency_ms"`
	P50LatencyMs      int64         `json:"p50_latency_ms"`
	P95LatencyMs      int64         `json:"p95_latency_ms"`
	P99LatencyMs      int64         `json:"p99_latency_ms"`
	TopQueries        []QueryCount  `json:"top_queries"`
	ZeroResultQueries []QueryCount  `json:"zero_result_queries"`
	QueriesPerMinute  float64       `json:"queries_per_minute"`
	Rebuilds          int64         `json:"rebuilds"`
	FailedRebuilds    int64         `json:"failed_rebuilds"`
	LastRebuild       *RebuildEvent `json:"last_rebuild,omitempty"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds events into running totals. Latency percentiles cover
// the most recent window of searches only.
type Aggregator struct {
	mu                sync.RWMutex
	searches          int64
	related           int64
	cacheHits         int64
	cacheMisses       int64
	zeroResults       int64
	rebuilds          int64
	failedRebuilds    int64
	lastRebuild       *RebuildEvent
	latencies         []int64
	next              int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	startTime         time.Time
	logger            *slog.Logger
}

// NewAggregator keeps latency samples for the last window searches.
func NewAggregator(window int) *Aggregator {
	if window <= 0 {
		window = defaultLatencyWindow
	}
	return &Aggregator{
		latencies:         make([]int64, 0, window),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// Consume feeds events from c, built with HandleEvent(a), until ctx is
// cancelled.
func (a *Aggregator) Consume(ctx context.Context, c *kafka.Consumer) error {
	if c == nil {
		return errors.New("analytics aggregator has no kafka consumer")
	}
	a.logger.Info("analytics aggregator consuming")
	return c.Start(ctx)
}

// HandleEvent adapts the aggregator to a Kafka message handler. Payloads
// that cannot be decoded are logged and skipped so one bad message does not
// stall the partition.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := DecodeEvent(value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "key", string(key), "error", err)
			return nil
		}
		agg.Track(event)
		return nil
	}
}

// Track records event immediately. It lets the aggregator stand in for a
// Collector when Kafka is disabled.
func (a *Aggregator) Track(event Event) {
	switch e := event.(type) {
	case SearchEvent:
		a.recordSearch(e)
	case RebuildEvent:
		a.recordRebuild(e)
	}
}

func (a *Aggregator) recordSearch(e SearchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if e.Kind() == EventRelated {
		a.related++
		return
	}
	a.searches++
	if e.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	a.observeLatency(e.LatencyMs)

	q := normalizeQuery(e.Query)
	if q == "" {
		return
	}
	a.queryCounts[q]++
	if e.TotalHits == 0 {
		a.zeroResults++
		a.zeroResultQueries[q]++
	}
}

func (a *Aggregator) recordRebuild(e RebuildEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rebuilds++
	if e.Status != "success" {
		a.failedRebuilds++
	}
	a.lastRebuild = &e
}

// observeLatency writes into a ring buffer once the window is full.
func (a *Aggregator) observeLatency(ms int64) {
	if len(a.latencies) < cap(a.latencies) {
		a.latencies = append(a.latencies, ms)
		return
	}
	a.latencies[a.next] = ms
	a.next = (a.next + 1) % len(a.latencies)
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		Since:           a.startTime.UTC(),
		TotalSearches:   a.searches,
		RelatedLookups:  a.related,
		CacheHits:       a.cacheHits,
		CacheMisses:     a.cacheMisses,
		ZeroResultCount: a.zeroResults,
		Rebuilds:        a.rebuilds,
		FailedRebuilds:  a.failedRebuilds,
	}
	if a.lastRebuild != nil {
		last := *a.lastRebuild
		stats.LastRebuild = &last
	}
	if total := a.cacheHits + a.cacheMisses; total > 0 {
		stats.CacheHitRate = float64(a.cacheHits) / float64(total)
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, topQueryLimit)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, topQueryLimit)
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

// percentile uses the nearest-rank method on an ascending slice.
func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := (pct*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

// topN orders by count, then query, so equal counts list stably.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
