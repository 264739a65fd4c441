// Package indexer implements the indexing engine: given a document's term
// frequencies, it allocates a document id, persists the document record, and
// persists one posting per term.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/tracing"
)

// Engine orchestrates a single indexing call. Each call is an independent
// unit of work; no state is held between calls and no lock spans the
// allocate/write sequence, so a failure mid-call leaves the allocated id
// burned and possibly a partial posting set.
type Engine struct {
	alloc index.IDAllocator
	docs  index.DocumentStore
	terms index.TermIndex
	log   *slog.Logger
}

// New creates an Engine over the given storage backends.
func New(alloc index.IDAllocator, docs index.DocumentStore, terms index.TermIndex) *Engine {
	return &Engine{
		alloc: alloc,
		docs:  docs,
		terms: terms,
		log:   logger.WithComponent("index-engine"),
	}
}

// IndexDocument allocates a fresh doc id, writes the document record, and
// writes a posting for every term with a positive frequency. Terms with
// freq <= 0 are skipped. Re-indexing the same path always produces a new
// document; there is no upsert by path.
//
// If allocation fails, nothing was written and the caller may retry (the
// retry allocates a new id). If any later step fails, the call returns
// ErrIndexingIncomplete: the id is permanently consumed and the document may
// be left with an incomplete posting set.
func (e *Engine) IndexDocument(ctx context.Context, path string, termFreqs map[string]int) (index.Document, error) {
	start := time.Now()
	ctx, span := tracing.StartChildSpan(ctx, "index_document")
	defer span.End()
	span.SetAttr("path", path)
	span.SetAttr("terms", len(termFreqs))

	docID, err := e.alloc.NextDocID(ctx)
	if err != nil {
		metrics.Default().DocsIndexedTotal.WithLabelValues("allocation_failed").Inc()
		return index.Document{}, fmt.Errorf("allocating doc id: %w", err)
	}
	span.SetAttr("doc_id", docID)

	doc := index.Document{DocID: docID, Path: path}
	if err := e.docs.PutDocument(ctx, doc); err != nil {
		metrics.Default().DocsIndexedTotal.WithLabelValues("incomplete").Inc()
		e.log.Error("document write failed after id allocation",
			"doc_id", docID, "path", path, "error", err)
		return index.Document{}, fmt.Errorf("%w: doc %d: document record: %v", apperrors.ErrIndexingIncomplete, docID, err)
	}

	written := 0
	for term, freq := range termFreqs {
		if freq <= 0 {
			continue
		}
		if err := e.terms.PutPosting(ctx, term, docID, freq); err != nil {
			metrics.Default().DocsIndexedTotal.WithLabelValues("incomplete").Inc()
			e.log.Error("posting write failed, document left partially indexed",
				"doc_id", docID, "term", term, "postings_written", written, "error", err)
			return index.Document{}, fmt.Errorf("%w: doc %d: posting %q: %v", apperrors.ErrIndexingIncomplete, docID, term, err)
		}
		written++
	}

	metrics.Default().DocsIndexedTotal.WithLabelValues("ok").Inc()
	metrics.Default().IndexLatency.Observe(time.Since(start).Seconds())
	e.log.Info("document indexed",
		"doc_id", docID, "path", path, "postings", written,
		"duration_ms", time.Since(start).Milliseconds())
	return doc, nil
}
