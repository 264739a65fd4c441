// Package benchmark contains Go benchmarks for the indexing engine, the
// in-memory stores, and the query executor, measuring throughput and
// allocation behaviour.
package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/searcher/executor"
)

func newMemoryEngine() (*indexer.Engine, *store.MemoryDocumentStore, *store.MemoryTermIndex) {
	docs := store.NewMemoryDocumentStore()
	terms := store.NewMemoryTermIndex()
	return indexer.New(store.NewMemoryAllocator(0), docs, terms), docs, terms
}

// BenchmarkIndexDocument measures per-document indexing throughput against
// the in-memory stores, including tokenization.
func BenchmarkIndexDocument(b *testing.B) {
	engine, _, _ := newMemoryEngine()
	ctx := context.Background()
	text := "this is a benchmark document with several terms for testing the indexing performance of the engine"

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		path := fmt.Sprintf("bench/doc-%d.txt", i)
		if _, err := engine.IndexDocument(ctx, path, tokenizer.TermFreqs(text)); err != nil {
			b.Fatalf("indexing: %v", err)
		}
	}
}

// BenchmarkIndexDocumentParallel measures indexing throughput under
// concurrent callers, exercising the allocator and store locking.
func BenchmarkIndexDocumentParallel(b *testing.B) {
	engine, _, _ := newMemoryEngine()
	ctx := context.Background()
	termFreqs := tokenizer.TermFreqs("concurrent indexing throughput with shared allocator and stores")

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			i++
			path := fmt.Sprintf("bench/parallel-%d.txt", i)
			if _, err := engine.IndexDocument(ctx, path, termFreqs); err != nil {
				b.Fatalf("indexing: %v", err)
			}
		}
	})
}

// BenchmarkSearch measures query latency over a pre-built corpus of 10 000
// documents, for queries of varying term counts.
func BenchmarkSearch(b *testing.B) {
	engine, docs, terms := newMemoryEngine()
	ctx := context.Background()
	corpus := []string{
		"the quick brown fox jumps over the lazy dog",
		"distributed retrieval engines keep postings in an inverted index",
		"caching reduces query latency for repeated searches",
		"the fox and the dog share this document",
	}
	for i := 0; i < 10000; i++ {
		path := fmt.Sprintf("corpus/doc-%d.txt", i)
		if _, err := engine.IndexDocument(ctx, path, tokenizer.TermFreqs(corpus[i%len(corpus)])); err != nil {
			b.Fatalf("seeding corpus: %v", err)
		}
	}
	exec := executor.New(terms, docs, 8)

	queries := []struct {
		name  string
		terms []string
	}{
		{"single_term", []string{"fox"}},
		{"two_terms", []string{"fox", "dog"}},
		{"five_terms", []string{"fox", "dog", "index", "latency", "engine"}},
		{"zero_hits", []string{"zzznotfound"}},
	}

	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				resp, err := exec.Search(ctx, q.terms)
				if err != nil {
					b.Fatalf("search: %v", err)
				}
				_ = resp
			}
		})
	}
}
