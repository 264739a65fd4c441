package analytics

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/logger"
)

// AggregatedStats is the read model served by the analytics HTTP API.
type AggregatedStats struct {
	TotalSearches     int64       `json:"total_searches"`
	TotalDocsIndexed  int64       `json:"total_docs_indexed"`
	FailedIndexCalls  int64       `json:"failed_index_calls"`
	CacheHits         int64       `json:"cache_hits"`
	CacheMisses       int64       `json:"cache_misses"`
	ZeroResultCount   int64       `json:"zero_result_count"`
	AvgLatencyMs      float64     `json:"avg_latency_ms"`
	P50LatencyMs      int64       `json:"p50_latency_ms"`
	P95LatencyMs      int64       `json:"p95_latency_ms"`
	P99LatencyMs      int64       `json:"p99_latency_ms"`
	TopTermSets       []TermCount `json:"top_term_sets"`
	ZeroResultQueries []TermCount `json:"zero_result_queries"`
	QueriesPerMinute  float64     `json:"queries_per_minute"`
}

// TermCount pairs a normalised query term set with its occurrence count.
type TermCount struct {
	Terms string `json:"terms"`
	Count int64  `json:"count"`
}

// Aggregator consumes analytics events from Kafka and folds them into
// in-memory statistics.
type Aggregator struct {
	mu                sync.RWMutex
	totalSearches     atomic.Int64
	totalDocsIndexed  atomic.Int64
	failedIndexCalls  atomic.Int64
	cacheHits         atomic.Int64
	cacheMisses       atomic.Int64
	zeroResults       atomic.Int64
	latencies         []int64
	termSetCounts     map[string]int64
	zeroResultQueries map[string]int64
	startTime         time.Time

	consumer *kafka.Consumer
	log      *slog.Logger
}

func NewAggregator(consumer *kafka.Consumer) *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, 10000),
		termSetCounts:     make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		consumer:          consumer,
		log:               logger.WithComponent("analytics-aggregator"),
	}
}

// Start enters the Kafka consume loop until ctx is cancelled.
func (a *Aggregator) Start(ctx context.Context) error {
	a.log.Info("analytics aggregator starting")
	return a.consumer.Start(ctx)
}

// HandleEvent returns the Kafka handler that routes raw messages to the
// aggregator. Undecodable events are logged and skipped, never retried.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(_ context.Context, _ []byte, value []byte) error {
		event, err := kafka.DecodeJSON[SearchEvent](value)
		if err == nil && isSearchType(event.Type) {
			agg.recordSearchEvent(event)
			return nil
		}
		idxEvent, idxErr := kafka.DecodeJSON[IndexEvent](value)
		if idxErr != nil {
			agg.log.Error("failed to decode analytics event", "error", idxErr)
			return nil
		}
		agg.recordIndexEvent(idxEvent)
		return nil
	}
}

func isSearchType(t EventType) bool {
	switch t {
	case EventSearch, EventCacheHit, EventCacheMiss, EventZeroResult:
		return true
	}
	return false
}

func (a *Aggregator) recordSearchEvent(event SearchEvent) {
	a.totalSearches.Add(1)
	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}
	if event.Results == 0 {
		a.zeroResults.Add(1)
	}

	key := termSetKey(event.Terms)
	a.mu.Lock()
	a.latencies = append(a.latencies, event.LatencyMs)
	a.termSetCounts[key]++
	if event.Results == 0 {
		a.zeroResultQueries[key]++
	}
	a.mu.Unlock()
}

func (a *Aggregator) recordIndexEvent(event IndexEvent) {
	if event.Type == EventIndexFail {
		a.failedIndexCalls.Add(1)
		return
	}
	a.totalDocsIndexed.Add(1)
}

// termSetKey normalises a term list so "dog cat" and "cat dog" count as the
// same query.
func termSetKey(terms []string) string {
	sorted := make([]string, len(terms))
	copy(sorted, terms)
	sort.Strings(sorted)
	return strings.Join(sorted, " ")
}

// Stats returns a snapshot of the aggregated statistics.
func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:    a.totalSearches.Load(),
		TotalDocsIndexed: a.totalDocsIndexed.Load(),
		FailedIndexCalls: a.failedIndexCalls.Load(),
		CacheHits:        a.cacheHits.Load(),
		CacheMisses:      a.cacheMisses.Load(),
		ZeroResultCount:  a.zeroResults.Load(),
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
	stats.TopTermSets = topN(a.termSetCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []TermCount {
	result := make([]TermCount, 0, len(counts))
	for terms, count := range counts {
		result = append(result, TermCount{Terms: terms, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Terms < result[j].Terms
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
