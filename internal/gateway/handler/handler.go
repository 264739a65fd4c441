// Package handler implements the API gateway's HTTP endpoints. The gateway
// terminates the public JSON API, tokenizes raw text when the caller did not
// pre-compute term frequencies, and forwards index and search calls to the
// backend services over RPC, each behind its own circuit breaker.
package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	gwmw "github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/gateway/middleware"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/registry"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/logger"
	pkgmw "github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/tracing"
)

// RPCCaller is the subset of the RPC client the gateway needs. Satisfied by
// *rpc.Client; tests substitute fakes.
type RPCCaller interface {
	Call(ctx context.Context, method string, params any, result any) error
}

// Handler implements the gateway's HTTP endpoints.
type Handler struct {
	cfg        config.GatewayConfig
	indexer    RPCCaller
	searcher   RPCCaller
	indexerCB  *resilience.CircuitBreaker
	searcherCB *resilience.CircuitBreaker
	registry   *registry.Registry
	db         *postgres.Client
	log        *slog.Logger
}

// New creates a gateway Handler over the given backend RPC clients.
func New(cfg config.GatewayConfig, indexerClient, searcherClient RPCCaller, reg *registry.Registry, db *postgres.Client) *Handler {
	return &Handler{
		cfg:        cfg,
		indexer:    indexerClient,
		searcher:   searcherClient,
		indexerCB:  resilience.NewCircuitBreaker("indexer", resilience.CircuitBreakerConfig{}),
		searcherCB: resilience.NewCircuitBreaker("searcher", resilience.CircuitBreakerConfig{}),
		registry:   reg,
		db:         db,
		log:        logger.WithComponent("gateway-handler"),
	}
}

// ---------- Registration ----------

// Register issues a new client id.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	info, err := h.registry.Register(r.Context())
	if err != nil {
		h.log.Error("client registration failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	h.writeJSON(w, http.StatusCreated, proto.RegisterResponse{ClientID: info.ClientID})
}

// ---------- Index ----------

// indexAPIRequest is the public indexing payload. Exactly one of Text or
// TermFreqs should be set; when both are present TermFreqs wins, matching
// clients that tokenize locally.
type indexAPIRequest struct {
	Path      string         `json:"path"`
	Text      string         `json:"text,omitempty"`
	TermFreqs map[string]int `json:"termFreqs,omitempty"`
}

// Index validates the payload, tokenizes text if needed, and forwards the
// call to the indexer service.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req indexAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Path == "" {
		h.writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	termFreqs := req.TermFreqs
	if termFreqs == nil {
		termFreqs = tokenizer.TermFreqs(req.Text)
	}

	rpcReq := proto.IndexRequest{Path: req.Path, TermFreqs: termFreqs}
	if info := getClientInfo(r); info != nil {
		rpcReq.ClientID = info.ClientID
	}

	spanCtx, span := tracing.StartSpan(r.Context(), "gateway.index", pkgmw.GetRequestID(r.Context()))
	span.SetAttr("path", req.Path)
	defer span.End()

	var resp proto.IndexResponse
	err := h.indexerCB.Execute(func() error {
		return resilience.WithTimeout(spanCtx, h.cfg.CallTimeout, "index call", func(ctx context.Context) error {
			return h.indexer.Call(ctx, "Index.Compute", &rpcReq, &resp)
		})
	})
	if err != nil {
		log.Error("index call failed", "path", req.Path, "error", err)
		h.writeRPCError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// ---------- Search ----------

// Search tokenizes the q parameter into terms and forwards them to the
// searcher service. An empty query returns an empty result list.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	h.runSearch(w, r, tokenizer.Terms(r.URL.Query().Get("q")))
}

// SearchPost accepts a JSON term list, for clients that tokenize locally.
func (h *Handler) SearchPost(w http.ResponseWriter, r *http.Request) {
	var req proto.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	// Re-tokenize so raw input cannot bypass term normalization.
	h.runSearch(w, r, tokenizer.Terms(strings.Join(req.Terms, " ")))
}

func (h *Handler) runSearch(w http.ResponseWriter, r *http.Request, terms []string) {
	log := logger.FromContext(r.Context())

	spanCtx, span := tracing.StartSpan(r.Context(), "gateway.search", pkgmw.GetRequestID(r.Context()))
	span.SetAttr("term_count", len(terms))
	defer span.End()

	var resp proto.SearchResponse
	err := h.searcherCB.Execute(func() error {
		return resilience.WithTimeout(spanCtx, h.cfg.CallTimeout, "search call", func(ctx context.Context) error {
			return h.searcher.Call(ctx, "Search.Compute", &proto.SearchRequest{Terms: terms}, &resp)
		})
	})
	if err != nil {
		log.Error("search call failed", "terms", terms, "error", err)
		h.writeRPCError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// ---------- Documents ----------

// GetDocument retrieves a single document record by doc id.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	docID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "document id must be an integer")
		return
	}

	var doc struct {
		DocID     int64     `json:"docId"`
		Path      string    `json:"path"`
		IndexedAt time.Time `json:"indexed_at"`
	}
	err = h.db.DB.QueryRowContext(r.Context(),
		`SELECT doc_id, path, indexed_at FROM documents WHERE doc_id = $1`, docID,
	).Scan(&doc.DocID, &doc.Path, &doc.IndexedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(w, http.StatusNotFound, "document not found")
			return
		}
		h.log.Error("failed to fetch document", "doc_id", docID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to fetch document")
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

// ListDocuments returns a paginated list of indexed documents, newest first.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	limit := 20
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	rows, err := h.db.DB.QueryContext(r.Context(),
		`SELECT doc_id, path, indexed_at FROM documents ORDER BY doc_id DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		h.log.Error("failed to list documents", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	defer rows.Close()

	type docSummary struct {
		DocID     int64     `json:"docId"`
		Path      string    `json:"path"`
		IndexedAt time.Time `json:"indexed_at"`
	}
	docs := make([]docSummary, 0)
	for rows.Next() {
		var d docSummary
		if err := rows.Scan(&d.DocID, &d.Path, &d.IndexedAt); err != nil {
			h.log.Error("failed to scan document row", "error", err)
			continue
		}
		docs = append(docs, d)
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"count":     len(docs),
		"limit":     limit,
		"offset":    offset,
	})
}

// ---------- Health ----------

// Health returns the gateway's health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "gateway"})
}

// ---------- Helpers ----------

func getClientInfo(r *http.Request) *registry.ClientInfo {
	return gwmw.GetClientInfo(r.Context())
}

func (h *Handler) writeRPCError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusServiceUnavailable
	}
	// The RPC layer flattens backend errors to strings; map the well-known
	// prefixes back to client-facing statuses.
	msg := err.Error()
	switch {
	case strings.Contains(msg, apperrors.ErrInvalidInput.Error()):
		status = http.StatusBadRequest
	case strings.Contains(msg, apperrors.ErrCounterUnavailable.Error()):
		status = http.StatusServiceUnavailable
	}
	h.writeError(w, status, msg)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
