package store

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/postgres"
)

// PostgresTermIndex persists postings in the postings table with the
// composite primary key (term, doc_id). Writing an existing key overwrites
// the stored frequency.
type PostgresTermIndex struct {
	pg *postgres.Client
}

func NewPostgresTermIndex(pg *postgres.Client) *PostgresTermIndex {
	return &PostgresTermIndex{pg: pg}
}

func (s *PostgresTermIndex) PutPosting(ctx context.Context, term string, docID int64, freq int) error {
	const q = `
		INSERT INTO postings (term, doc_id, freq)
		VALUES ($1, $2, $3)
		ON CONFLICT (term, doc_id) DO UPDATE SET freq = EXCLUDED.freq`
	if _, err := s.pg.DB.ExecContext(ctx, q, term, docID, freq); err != nil {
		return fmt.Errorf("%w: writing posting (%s, %d): %v", apperrors.ErrStorage, term, docID, err)
	}
	metrics.Default().PostingsWrittenTotal.Inc()
	return nil
}

func (s *PostgresTermIndex) Postings(ctx context.Context, term string) ([]index.Posting, error) {
	const q = `SELECT doc_id, freq FROM postings WHERE term = $1`
	rows, err := s.pg.DB.QueryContext(ctx, q, term)
	if err != nil {
		return nil, fmt.Errorf("%w: querying postings for %q: %v", apperrors.ErrStorage, term, err)
	}
	defer rows.Close()

	var postings []index.Posting
	for rows.Next() {
		var p index.Posting
		if err := rows.Scan(&p.DocID, &p.Freq); err != nil {
			return nil, fmt.Errorf("%w: scanning posting row: %v", apperrors.ErrStorage, err)
		}
		postings = append(postings, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating posting rows: %v", apperrors.ErrStorage, err)
	}
	return postings, nil
}
