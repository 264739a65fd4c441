// Package index defines the core data model of the inverted index and the
// storage contracts the indexing and query engines depend on. Implementations
// live in internal/indexer/store.
package index

import "context"

// Document is a durable record mapping an allocated identifier to the
// caller-supplied path. Documents are immutable once written; re-indexing
// the same path always produces a new Document with a new DocID.
type Document struct {
	DocID int64  `json:"docId"`
	Path  string `json:"path"`
}

// Posting records that a term occurs Freq times in the document DocID.
// The composite key is (term, DocID); writes overwrite any prior frequency.
type Posting struct {
	DocID int64 `json:"docId"`
	Freq  int   `json:"freq"`
}

// IDAllocator issues strictly increasing, globally unique document
// identifiers. Implementations must apply the increment atomically so that
// no two concurrent callers ever observe the same value. Identifiers are
// never reclaimed, even when the indexing call that allocated one fails.
type IDAllocator interface {
	// NextDocID atomically increments the durable counter and returns the
	// new value. Fails with errors.ErrCounterUnavailable when the backing
	// store cannot be reached.
	NextDocID(ctx context.Context) (int64, error)
}

// DocumentStore is the durable docId -> path mapping.
type DocumentStore interface {
	// PutDocument upserts the document record keyed by docId.
	PutDocument(ctx context.Context, doc Document) error

	// GetDocument returns the document for docId, or
	// errors.ErrDocumentNotFound if no record exists.
	GetDocument(ctx context.Context, docID int64) (Document, error)

	// BatchGetDocuments resolves paths for the given identifiers. Missing
	// documents are omitted from the result, never an error.
	BatchGetDocuments(ctx context.Context, docIDs []int64) (map[int64]string, error)
}

// TermIndex is the durable (term, docId) -> freq mapping.
type TermIndex interface {
	// PutPosting upserts a single posting.
	PutPosting(ctx context.Context, term string, docID int64, freq int) error

	// Postings returns every posting for the exact term. Order is
	// unspecified; ranking is imposed by the query engine. An unknown term
	// yields an empty slice, not an error.
	Postings(ctx context.Context, term string) ([]Posting, error)
}
