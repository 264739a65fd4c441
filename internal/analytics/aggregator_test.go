package analytics

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func handleRaw(t *testing.T, agg *Aggregator, event any) {
	t.Helper()
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshaling event: %v", err)
	}
	if err := HandleEvent(agg)(context.Background(), nil, data); err != nil {
		t.Fatalf("handling event: %v", err)
	}
}

func searchEvent(typ EventType, terms []string, results int, latencyMs int64, cacheHit bool) SearchEvent {
	return SearchEvent{
		Type:      typ,
		Terms:     terms,
		Results:   results,
		LatencyMs: latencyMs,
		CacheHit:  cacheHit,
		Timestamp: time.Now(),
	}
}

func TestAggregatorCountsSearches(t *testing.T) {
	agg := NewAggregator(nil)

	handleRaw(t, agg, searchEvent(EventCacheMiss, []string{"cat"}, 2, 10, false))
	handleRaw(t, agg, searchEvent(EventCacheHit, []string{"cat"}, 2, 1, true))
	handleRaw(t, agg, searchEvent(EventZeroResult, []string{"dog"}, 0, 5, false))

	stats := agg.Stats()
	if stats.TotalSearches != 3 {
		t.Errorf("TotalSearches = %d, want 3", stats.TotalSearches)
	}
	if stats.CacheHits != 1 {
		t.Errorf("CacheHits = %d, want 1", stats.CacheHits)
	}
	if stats.CacheMisses != 2 {
		t.Errorf("CacheMisses = %d, want 2", stats.CacheMisses)
	}
	if stats.ZeroResultCount != 1 {
		t.Errorf("ZeroResultCount = %d, want 1", stats.ZeroResultCount)
	}
}

func TestAggregatorCountsIndexEvents(t *testing.T) {
	agg := NewAggregator(nil)

	handleRaw(t, agg, IndexEvent{Type: EventIndexDoc, DocID: 1, Path: "a.txt", Timestamp: time.Now()})
	handleRaw(t, agg, IndexEvent{Type: EventIndexDoc, DocID: 2, Path: "b.txt", Timestamp: time.Now()})
	handleRaw(t, agg, IndexEvent{Type: EventIndexFail, Path: "c.txt", Timestamp: time.Now()})

	stats := agg.Stats()
	if stats.TotalDocsIndexed != 2 {
		t.Errorf("TotalDocsIndexed = %d, want 2", stats.TotalDocsIndexed)
	}
	if stats.FailedIndexCalls != 1 {
		t.Errorf("FailedIndexCalls = %d, want 1", stats.FailedIndexCalls)
	}
	if stats.TotalSearches != 0 {
		t.Errorf("index events should not count as searches, got %d", stats.TotalSearches)
	}
}

func TestAggregatorTermSetNormalisation(t *testing.T) {
	agg := NewAggregator(nil)

	// Same term set in different order counts as one query shape.
	handleRaw(t, agg, searchEvent(EventCacheMiss, []string{"dog", "cat"}, 1, 3, false))
	handleRaw(t, agg, searchEvent(EventCacheMiss, []string{"cat", "dog"}, 1, 3, false))
	handleRaw(t, agg, searchEvent(EventCacheMiss, []string{"fish"}, 1, 3, false))

	stats := agg.Stats()
	if len(stats.TopTermSets) != 2 {
		t.Fatalf("got %d term sets, want 2: %+v", len(stats.TopTermSets), stats.TopTermSets)
	}
	if stats.TopTermSets[0].Terms != "cat dog" || stats.TopTermSets[0].Count != 2 {
		t.Errorf("top term set = %+v, want {cat dog 2}", stats.TopTermSets[0])
	}
}

func TestAggregatorZeroResultQueries(t *testing.T) {
	agg := NewAggregator(nil)

	handleRaw(t, agg, searchEvent(EventZeroResult, []string{"missing"}, 0, 2, false))
	handleRaw(t, agg, searchEvent(EventCacheMiss, []string{"present"}, 3, 2, false))

	stats := agg.Stats()
	if len(stats.ZeroResultQueries) != 1 {
		t.Fatalf("got %d zero-result queries, want 1", len(stats.ZeroResultQueries))
	}
	if stats.ZeroResultQueries[0].Terms != "missing" {
		t.Errorf("zero-result query = %q, want %q", stats.ZeroResultQueries[0].Terms, "missing")
	}
}

func TestAggregatorLatencyPercentiles(t *testing.T) {
	agg := NewAggregator(nil)

	for i := int64(1); i <= 100; i++ {
		handleRaw(t, agg, searchEvent(EventCacheMiss, []string{"t"}, 1, i, false))
	}

	stats := agg.Stats()
	if stats.AvgLatencyMs != 50.5 {
		t.Errorf("AvgLatencyMs = %v, want 50.5", stats.AvgLatencyMs)
	}
	if stats.P50LatencyMs < 50 || stats.P50LatencyMs > 51 {
		t.Errorf("P50LatencyMs = %d, want ~50", stats.P50LatencyMs)
	}
	if stats.P99LatencyMs < 99 {
		t.Errorf("P99LatencyMs = %d, want >= 99", stats.P99LatencyMs)
	}
}

func TestAggregatorSkipsUndecodableEvents(t *testing.T) {
	agg := NewAggregator(nil)

	if err := HandleEvent(agg)(context.Background(), nil, []byte("not json")); err != nil {
		t.Fatalf("malformed events must not error the consume loop: %v", err)
	}
	if got := agg.Stats().TotalSearches; got != 0 {
		t.Errorf("TotalSearches = %d, want 0", got)
	}
}

func TestTopNOrdering(t *testing.T) {
	counts := map[string]int64{"a": 3, "b": 5, "c": 3, "d": 1}
	got := topN(counts, 3)

	want := []TermCount{{"b", 5}, {"a", 3}, {"c", 3}}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
