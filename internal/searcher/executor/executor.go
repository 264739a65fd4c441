// Package executor implements the query engine: it fetches postings per
// query term, sums per-document frequencies into scores, ranks the result,
// and resolves document paths in one batch lookup.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/tracing"
)

// Executor runs multi-term queries against the term index and document
// store. Each call is stateless and read-only; concurrent searches need no
// coordination.
type Executor struct {
	terms          index.TermIndex
	docs           index.DocumentStore
	maxConcurrency int
	log            *slog.Logger
}

// New creates an Executor. maxConcurrency bounds the number of concurrent
// per-term postings queries; values below 1 disable the bound.
func New(terms index.TermIndex, docs index.DocumentStore, maxConcurrency int) *Executor {
	return &Executor{
		terms:          terms,
		docs:           docs,
		maxConcurrency: maxConcurrency,
		log:            logger.WithComponent("query-executor"),
	}
}

// Search aggregates per-document scores across all query terms and returns
// documents ranked by score descending, doc id ascending on ties. A document
// matching several terms accumulates the sum of its frequencies and appears
// once. An empty term list yields an empty result, not an error. Any
// postings query failure aborts the whole search; no partial results.
func (e *Executor) Search(ctx context.Context, terms []string) (*proto.SearchResponse, error) {
	start := time.Now()
	ctx, span := tracing.StartChildSpan(ctx, "search")
	defer span.End()
	span.SetAttr("terms", len(terms))

	resp := &proto.SearchResponse{Results: []proto.SearchHit{}}
	if len(terms) == 0 {
		metrics.Default().SearchQueriesTotal.WithLabelValues("zero_result").Inc()
		return resp, nil
	}

	scores, err := e.aggregateScores(ctx, terms)
	if err != nil {
		metrics.Default().SearchQueriesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if len(scores) == 0 {
		metrics.Default().SearchQueriesTotal.WithLabelValues("zero_result").Inc()
		metrics.Default().SearchResultsCount.Observe(0)
		return resp, nil
	}

	ranked := rank(scores)

	docIDs := make([]int64, len(ranked))
	for i, s := range ranked {
		docIDs[i] = s.docID
	}
	paths, err := e.docs.BatchGetDocuments(ctx, docIDs)
	if err != nil {
		metrics.Default().SearchQueriesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("resolving %d document paths: %w", len(docIDs), err)
	}

	resp.Results = make([]proto.SearchHit, len(ranked))
	for i, s := range ranked {
		path, ok := paths[s.docID]
		if !ok {
			// Posting references a document whose record never landed
			// (partial indexing failure); render the id instead of dropping
			// the hit.
			path = fmt.Sprintf("docId:%d", s.docID)
		}
		resp.Results[i] = proto.SearchHit{Path: path, Score: s.score}
	}
	resp.Count = len(resp.Results)

	metrics.Default().SearchQueriesTotal.WithLabelValues("hit").Inc()
	metrics.Default().SearchResultsCount.Observe(float64(resp.Count))
	e.log.Info("search executed",
		"terms", terms, "results", resp.Count,
		"duration_ms", time.Since(start).Milliseconds())
	return resp, nil
}

type scoredDoc struct {
	docID int64
	score float64
}

// aggregateScores fans out one postings query per distinct term and sums
// frequencies per document. Duplicate query terms are collapsed first so a
// repeated term does not double-count.
func (e *Executor) aggregateScores(ctx context.Context, terms []string) (map[int64]float64, error) {
	distinct := make([]string, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		distinct = append(distinct, t)
	}

	var mu sync.Mutex
	scores := make(map[int64]float64)

	g, ctx := errgroup.WithContext(ctx)
	if e.maxConcurrency > 0 {
		g.SetLimit(e.maxConcurrency)
	}
	for _, term := range distinct {
		term := term
		g.Go(func() error {
			postings, err := e.terms.Postings(ctx, term)
			if err != nil {
				return fmt.Errorf("querying postings for %q: %w", term, err)
			}
			mu.Lock()
			for _, p := range postings {
				scores[p.DocID] += float64(p.Freq)
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

// rank orders scored documents by score descending, then doc id ascending.
// The secondary key keeps equal-score orderings reproducible.
func rank(scores map[int64]float64) []scoredDoc {
	ranked := make([]scoredDoc, 0, len(scores))
	for docID, score := range scores {
		ranked = append(ranked, scoredDoc{docID: docID, score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].docID < ranked[j].docID
	})
	return ranked
}
