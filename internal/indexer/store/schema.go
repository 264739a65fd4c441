package store

import (
	"context"
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/postgres"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		doc_id     BIGINT PRIMARY KEY,
		path       TEXT NOT NULL,
		client_id  TEXT,
		indexed_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS postings (
		term   TEXT NOT NULL,
		doc_id BIGINT NOT NULL,
		freq   INTEGER NOT NULL,
		PRIMARY KEY (term, doc_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_postings_term ON postings (term)`,
}

// EnsureSchema creates the documents and postings tables if they do not
// exist. Called once at indexer startup.
func EnsureSchema(ctx context.Context, pg *postgres.Client) error {
	for _, stmt := range schemaStatements {
		if _, err := pg.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: applying schema: %v", apperrors.ErrStorage, err)
		}
	}
	return nil
}
