// Package handler exposes the indexing engine over the internal RPC layer
// and emits cache-invalidation and analytics events after successful writes.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/analytics/collector"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/indexer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/rpc"
)

// InvalidateEvent is published after every successful index call so the
// searcher drops cached rankings that may now be stale.
type InvalidateEvent struct {
	DocID     int64     `json:"doc_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Handler implements the Index.Compute RPC method.
type Handler struct {
	engine      *indexer.Engine
	invalidator *kafka.Producer
	collector   *collector.BatchCollector
	log         *slog.Logger
}

// New creates a Handler. invalidator and batch collector may be nil, which
// disables event emission (single-node runs without Kafka).
func New(engine *indexer.Engine, invalidator *kafka.Producer, events *collector.BatchCollector) *Handler {
	return &Handler{
		engine:      engine,
		invalidator: invalidator,
		collector:   events,
		log:         logger.WithComponent("index-handler"),
	}
}

// RegisterMethods registers the handler's RPC methods on the server.
func (h *Handler) RegisterMethods(s *rpc.Server) {
	s.Register("Index.Compute", h.Compute)
	s.Register("Index.Health", h.Health)
}

// Compute indexes one document: validates the request, runs the engine, then
// emits invalidation and analytics events. Event emission is best-effort and
// never fails the call; the index write already committed.
func (h *Handler) Compute(ctx context.Context, req json.RawMessage) (any, error) {
	start := time.Now()

	var indexReq proto.IndexRequest
	if err := json.Unmarshal(req, &indexReq); err != nil {
		return nil, fmt.Errorf("%w: decoding index request: %v", apperrors.ErrInvalidInput, err)
	}
	if indexReq.Path == "" {
		return nil, fmt.Errorf("%w: path is required", apperrors.ErrInvalidInput)
	}

	doc, err := h.engine.IndexDocument(ctx, indexReq.Path, indexReq.TermFreqs)
	if err != nil {
		h.trackEvent(analytics.IndexEvent{
			Type:      analytics.EventIndexFail,
			Path:      indexReq.Path,
			ClientID:  indexReq.ClientID,
			TermCount: len(indexReq.TermFreqs),
			LatencyMs: time.Since(start).Milliseconds(),
			Timestamp: time.Now().UTC(),
		})
		return nil, err
	}

	if h.invalidator != nil {
		event := InvalidateEvent{DocID: doc.DocID, Timestamp: time.Now().UTC()}
		if err := h.invalidator.Publish(ctx, kafka.Event{Key: "invalidate", Value: event}); err != nil {
			h.log.Error("cache invalidation publish failed", "doc_id", doc.DocID, "error", err)
		}
	}
	h.trackEvent(analytics.IndexEvent{
		Type:      analytics.EventIndexDoc,
		DocID:     doc.DocID,
		Path:      doc.Path,
		ClientID:  indexReq.ClientID,
		TermCount: len(indexReq.TermFreqs),
		LatencyMs: time.Since(start).Milliseconds(),
		Timestamp: time.Now().UTC(),
	})

	return &proto.IndexResponse{Status: "OK", DocID: doc.DocID, Path: doc.Path}, nil
}

// Health reports liveness over RPC.
func (h *Handler) Health(_ context.Context, _ json.RawMessage) (any, error) {
	return &proto.HealthCheckResponse{Status: "SERVING"}, nil
}

func (h *Handler) trackEvent(event analytics.IndexEvent) {
	if h.collector == nil {
		return
	}
	h.collector.Track("analytics", event)
}
