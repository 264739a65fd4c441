// Package registry issues and validates client identities. Clients register
// once, receive an opaque id generated with crypto/rand, and present it on
// every indexing call. Identities live in the clients table in PostgreSQL.
package registry

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/postgres"
)

// ClientInfo holds metadata about a registered client.
type ClientInfo struct {
	ClientID     string    `json:"clientId"`
	RateLimit    int       `json:"rate_limit"`
	IsActive     bool      `json:"is_active"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Registry manages client identities backed by PostgreSQL.
type Registry struct {
	db               *postgres.Client
	defaultRateLimit int
	log              *slog.Logger
}

// New creates a Registry. defaultRateLimit is the per-client request budget
// per limiter window, assigned at registration.
func New(db *postgres.Client, defaultRateLimit int) *Registry {
	return &Registry{
		db:               db,
		defaultRateLimit: defaultRateLimit,
		log:              logger.WithComponent("registry"),
	}
}

// EnsureSchema creates the clients table if it does not exist.
func (r *Registry) EnsureSchema(ctx context.Context) error {
	const q = `
		CREATE TABLE IF NOT EXISTS clients (
			client_id     TEXT PRIMARY KEY,
			rate_limit    INTEGER NOT NULL,
			is_active     BOOLEAN NOT NULL DEFAULT true,
			registered_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`
	if _, err := r.db.DB.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("creating clients table: %w", err)
	}
	return nil
}

// Register issues a fresh client id and persists it.
func (r *Registry) Register(ctx context.Context) (*ClientInfo, error) {
	info := &ClientInfo{
		ClientID:     generateClientID(),
		RateLimit:    r.defaultRateLimit,
		IsActive:     true,
		RegisteredAt: time.Now().UTC(),
	}
	_, err := r.db.DB.ExecContext(ctx,
		`INSERT INTO clients (client_id, rate_limit, is_active, registered_at) VALUES ($1, $2, $3, $4)`,
		info.ClientID, info.RateLimit, info.IsActive, info.RegisteredAt,
	)
	if err != nil {
		return nil, fmt.Errorf("registering client: %w", err)
	}
	r.log.Info("client registered", "client_id", info.ClientID)
	return info, nil
}

// Validate checks that clientID names an active registered client.
func (r *Registry) Validate(ctx context.Context, clientID string) (*ClientInfo, error) {
	var info ClientInfo
	err := r.db.DB.QueryRowContext(ctx,
		`SELECT client_id, rate_limit, is_active, registered_at
		 FROM clients WHERE client_id = $1 AND is_active = true`,
		clientID,
	).Scan(&info.ClientID, &info.RateLimit, &info.IsActive, &info.RegisteredAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrUnregisteredClient
	}
	if err != nil {
		return nil, fmt.Errorf("querying client: %w", err)
	}
	return &info, nil
}

// Deactivate disables a client id so further calls are rejected.
func (r *Registry) Deactivate(ctx context.Context, clientID string) error {
	result, err := r.db.DB.ExecContext(ctx,
		`UPDATE clients SET is_active = false WHERE client_id = $1`,
		clientID,
	)
	if err != nil {
		return fmt.Errorf("deactivating client: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperrors.ErrUnregisteredClient
	}
	r.log.Info("client deactivated", "client_id", clientID)
	return nil
}

// List returns all active clients, newest first.
func (r *Registry) List(ctx context.Context) ([]ClientInfo, error) {
	rows, err := r.db.DB.QueryContext(ctx,
		`SELECT client_id, rate_limit, is_active, registered_at
		 FROM clients WHERE is_active = true ORDER BY registered_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing clients: %w", err)
	}
	defer rows.Close()

	var clients []ClientInfo
	for rows.Next() {
		var c ClientInfo
		if err := rows.Scan(&c.ClientID, &c.RateLimit, &c.IsActive, &c.RegisteredAt); err != nil {
			return nil, fmt.Errorf("scanning client row: %w", err)
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// generateClientID returns a cryptographically random 16-byte hex id.
func generateClientID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
