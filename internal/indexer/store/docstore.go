package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/postgres"
)

// PostgresDocumentStore persists the docId -> path mapping in the documents
// table. Writes are upserts keyed by doc_id; re-indexing never reuses an id,
// so in practice each row is written once.
type PostgresDocumentStore struct {
	pg *postgres.Client
}

func NewPostgresDocumentStore(pg *postgres.Client) *PostgresDocumentStore {
	return &PostgresDocumentStore{pg: pg}
}

func (s *PostgresDocumentStore) PutDocument(ctx context.Context, doc index.Document) error {
	const q = `
		INSERT INTO documents (doc_id, path, indexed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (doc_id) DO UPDATE SET path = EXCLUDED.path, indexed_at = EXCLUDED.indexed_at`
	if _, err := s.pg.DB.ExecContext(ctx, q, doc.DocID, doc.Path, time.Now().UTC()); err != nil {
		return fmt.Errorf("%w: writing document %d: %v", apperrors.ErrStorage, doc.DocID, err)
	}
	return nil
}

func (s *PostgresDocumentStore) GetDocument(ctx context.Context, docID int64) (index.Document, error) {
	const q = `SELECT doc_id, path FROM documents WHERE doc_id = $1`
	var doc index.Document
	err := s.pg.DB.QueryRowContext(ctx, q, docID).Scan(&doc.DocID, &doc.Path)
	if errors.Is(err, sql.ErrNoRows) {
		return index.Document{}, fmt.Errorf("%w: doc_id %d", apperrors.ErrDocumentNotFound, docID)
	}
	if err != nil {
		return index.Document{}, fmt.Errorf("%w: reading document %d: %v", apperrors.ErrStorage, docID, err)
	}
	return doc, nil
}

// BatchGetDocuments resolves paths for the given ids in one round trip.
// Ids without a document row are omitted from the result.
func (s *PostgresDocumentStore) BatchGetDocuments(ctx context.Context, docIDs []int64) (map[int64]string, error) {
	paths := make(map[int64]string, len(docIDs))
	if len(docIDs) == 0 {
		return paths, nil
	}

	const q = `SELECT doc_id, path FROM documents WHERE doc_id = ANY($1)`
	rows, err := s.pg.DB.QueryContext(ctx, q, pq.Array(docIDs))
	if err != nil {
		return nil, fmt.Errorf("%w: batch reading %d documents: %v", apperrors.ErrStorage, len(docIDs), err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var path string
		if err := rows.Scan(&id, &path); err != nil {
			return nil, fmt.Errorf("%w: scanning document row: %v", apperrors.ErrStorage, err)
		}
		paths[id] = path
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating document rows: %v", apperrors.ErrStorage, err)
	}
	return paths, nil
}
