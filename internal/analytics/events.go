// Package analytics defines the usage events emitted by the indexer and
// searcher services, a non-blocking Kafka collector, and an aggregator that
// folds consumed events into queryable statistics.
package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventCacheHit   EventType = "cache_hit"
	EventCacheMiss  EventType = "cache_miss"
	EventIndexDoc   EventType = "index_document"
	EventIndexFail  EventType = "index_failed"
	EventZeroResult EventType = "zero_result"
)

// SearchEvent records one search call.
type SearchEvent struct {
	Type      EventType `json:"type"`
	Terms     []string  `json:"terms"`
	Results   int       `json:"results"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// IndexEvent records one indexing call. DocID is zero when the call failed
// before allocation.
type IndexEvent struct {
	Type      EventType `json:"type"`
	DocID     int64     `json:"doc_id"`
	Path      string    `json:"path"`
	ClientID  string    `json:"client_id,omitempty"`
	TermCount int       `json:"term_count"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}
