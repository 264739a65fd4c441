// Package middleware provides HTTP middleware for the API gateway:
// client authentication, CORS, and per-client rate limiting.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/registry"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/errors"
)

type contextKey string

const clientInfoKey contextKey = "client_info"

// Auth returns middleware that validates the caller's client id on indexing
// routes. The id is read from the X-Client-ID header or the client_id query
// parameter. Registration, search, and health endpoints are open: only write
// paths require an identity.
func Auth(reg *registry.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !requiresAuth(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			clientID := extractClientID(r)
			if clientID == "" {
				writeError(w, http.StatusUnauthorized, "missing client id")
				return
			}

			info, err := reg.Validate(r.Context(), clientID)
			if err != nil {
				if errors.Is(err, apperrors.ErrUnregisteredClient) {
					writeError(w, http.StatusUnauthorized, "unregistered client")
				} else {
					writeError(w, http.StatusInternalServerError, "authentication error")
				}
				return
			}

			ctx := context.WithValue(r.Context(), clientInfoKey, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClientInfo retrieves the validated ClientInfo from the request context.
func GetClientInfo(ctx context.Context) *registry.ClientInfo {
	info, _ := ctx.Value(clientInfoKey).(*registry.ClientInfo)
	return info
}

func requiresAuth(path string) bool {
	return strings.HasPrefix(path, "/api/v1/index")
}

// extractClientID reads the client id from the X-Client-ID header or the
// client_id query parameter.
func extractClientID(r *http.Request) string {
	if id := r.Header.Get("X-Client-ID"); id != "" {
		return id
	}
	return r.URL.Query().Get("client_id")
}

// writeError writes a JSON error response to the client.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
