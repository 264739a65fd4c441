// Package router wires up all API gateway routes and applies the middleware
// chain (RequestID, Metrics, Timeout, CORS, Auth, RateLimit).
package router

import (
	"net/http"
	"time"

	gwhandler "github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/gateway/handler"
	gwmw "github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/gateway/middleware"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/gateway/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/registry"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/middleware"
)

// New builds the full gateway HTTP handler with all routes and middleware.
//
// Route table:
//
//	POST   /api/v1/register         → issue a client id
//	POST   /api/v1/index            → indexer service (RPC)
//	GET    /api/v1/search           → searcher service (RPC)
//	POST   /api/v1/search           → searcher service (RPC, JSON term list)
//	GET    /api/v1/documents        → list documents   (direct DB)
//	GET    /api/v1/documents/{id}   → get document     (direct DB)
//	GET    /health                  → gateway health
//
// Middleware chain (outermost first):
//
//	RequestID → Metrics → Timeout → CORS → Auth → RateLimit → handler
func New(h *gwhandler.Handler, reg *registry.Registry, limiter *ratelimit.Limiter, m *metrics.Metrics, requestTimeout time.Duration) http.Handler {
	mux := http.NewServeMux()

	// Health (unauthenticated)
	mux.HandleFunc("GET /health", h.Health)

	// Registration
	mux.HandleFunc("POST /api/v1/register", h.Register)

	// Index API (requires X-Client-ID)
	mux.HandleFunc("POST /api/v1/index", h.Index)

	// Search API
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("POST /api/v1/search", h.SearchPost)

	// Document API
	mux.HandleFunc("GET /api/v1/documents", h.ListDocuments)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.GetDocument)

	// Middleware chain, applied inside-out.
	var chain http.Handler = mux
	chain = gwmw.RateLimit(limiter)(chain)
	chain = gwmw.Auth(reg)(chain)
	chain = gwmw.CORS(gwmw.DefaultCORSConfig())(chain)
	chain = pkgmw.Timeout(requestTimeout)(chain)
	chain = pkgmw.Metrics(m)(chain)
	chain = pkgmw.RequestID(chain)

	return chain
}
