// Package handler exposes the query engine over the internal RPC layer and
// keeps the query cache coherent by consuming invalidation events.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/rpc"
)

// Handler implements the Search.Compute RPC method.
type Handler struct {
	executor  *executor.Executor
	cache     *cache.QueryCache
	collector *analytics.Collector
	log       *slog.Logger
}

// New creates a Handler. cache and collector may be nil, which disables
// result caching and analytics respectively.
func New(exec *executor.Executor, queryCache *cache.QueryCache, collector *analytics.Collector) *Handler {
	return &Handler{
		executor:  exec,
		cache:     queryCache,
		collector: collector,
		log:       logger.WithComponent("search-handler"),
	}
}

// RegisterMethods registers the handler's RPC methods on the server.
func (h *Handler) RegisterMethods(s *rpc.Server) {
	s.Register("Search.Compute", h.Compute)
	s.Register("Search.Health", h.Health)
}

// Compute runs one search. Cached responses are served without touching the
// stores; concurrent identical queries share one execution.
func (h *Handler) Compute(ctx context.Context, req json.RawMessage) (any, error) {
	start := time.Now()

	var searchReq proto.SearchRequest
	if err := json.Unmarshal(req, &searchReq); err != nil {
		return nil, fmt.Errorf("%w: decoding search request: %v", apperrors.ErrInvalidInput, err)
	}

	var (
		resp     *proto.SearchResponse
		cacheHit bool
		err      error
	)
	if h.cache != nil && len(searchReq.Terms) > 0 {
		resp, cacheHit, err = h.cache.GetOrCompute(ctx, searchReq.Terms, func() (*proto.SearchResponse, error) {
			return h.executor.Search(ctx, searchReq.Terms)
		})
	} else {
		resp, err = h.executor.Search(ctx, searchReq.Terms)
	}
	if err != nil {
		h.log.Error("search failed", "terms", searchReq.Terms, "error", err)
		return nil, err
	}

	latencyMs := time.Since(start).Milliseconds()
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
	}
	metrics.Default().SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())

	if h.collector != nil {
		eventType := analytics.EventCacheMiss
		switch {
		case cacheHit:
			eventType = analytics.EventCacheHit
		case resp.Count == 0:
			eventType = analytics.EventZeroResult
		}
		h.collector.Track(analytics.SearchEvent{
			Type:      eventType,
			Terms:     searchReq.Terms,
			Results:   resp.Count,
			LatencyMs: latencyMs,
			CacheHit:  cacheHit,
			Timestamp: time.Now().UTC(),
		})
	}

	return resp, nil
}

// Health reports liveness over RPC.
func (h *Handler) Health(_ context.Context, _ json.RawMessage) (any, error) {
	return &proto.HealthCheckResponse{Status: "SERVING"}, nil
}

// HandleInvalidation returns the Kafka handler that drops all cached search
// responses when the index changes. A flush failure is logged and the
// message is still committed; entries age out via TTL anyway.
func (h *Handler) HandleInvalidation() kafka.MessageHandler {
	return func(ctx context.Context, _ []byte, value []byte) error {
		if h.cache == nil {
			return nil
		}
		if err := h.cache.Invalidate(ctx); err != nil {
			h.log.Error("cache invalidation failed", "error", err)
		}
		return nil
	}
}
