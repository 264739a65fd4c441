package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/indexer/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/errors"
)

func seedIndex(t *testing.T) (*store.MemoryTermIndex, *store.MemoryDocumentStore) {
	t.Helper()
	ctx := context.Background()
	terms := store.NewMemoryTermIndex()
	docs := store.NewMemoryDocumentStore()

	// doc 1 "a.txt": cat:2 dog:1, doc 2 "b.txt": cat:1
	if err := docs.PutDocument(ctx, index.Document{DocID: 1, Path: "a.txt"}); err != nil {
		t.Fatal(err)
	}
	if err := docs.PutDocument(ctx, index.Document{DocID: 2, Path: "b.txt"}); err != nil {
		t.Fatal(err)
	}
	for _, p := range []struct {
		term  string
		docID int64
		freq  int
	}{
		{"cat", 1, 2}, {"dog", 1, 1}, {"cat", 2, 1},
	} {
		if err := terms.PutPosting(ctx, p.term, p.docID, p.freq); err != nil {
			t.Fatal(err)
		}
	}
	return terms, docs
}

func TestSearchAggregatesAcrossTerms(t *testing.T) {
	terms, docs := seedIndex(t)
	exec := New(terms, docs, 4)

	resp, err := exec.Search(context.Background(), []string{"cat", "dog"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if resp.Count != 2 || len(resp.Results) != 2 {
		t.Fatalf("count = %d, results = %v", resp.Count, resp.Results)
	}
	if resp.Results[0].Path != "a.txt" || resp.Results[0].Score != 3 {
		t.Errorf("top hit = %+v, want a.txt score 3", resp.Results[0])
	}
	if resp.Results[1].Path != "b.txt" || resp.Results[1].Score != 1 {
		t.Errorf("second hit = %+v, want b.txt score 1", resp.Results[1])
	}
}

func TestSearchEmptyTerms(t *testing.T) {
	terms, docs := seedIndex(t)
	exec := New(terms, docs, 4)

	resp, err := exec.Search(context.Background(), nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if resp.Count != 0 || len(resp.Results) != 0 {
		t.Errorf("empty query returned %+v", resp)
	}
	if resp.Results == nil {
		t.Error("Results must be an empty slice, not nil")
	}
}

func TestSearchUnknownTerm(t *testing.T) {
	terms, docs := seedIndex(t)
	exec := New(terms, docs, 4)

	resp, err := exec.Search(context.Background(), []string{"zzz_unused"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if resp.Count != 0 || len(resp.Results) != 0 {
		t.Errorf("unknown term returned %+v", resp)
	}
}

func TestSearchDuplicateTermsCountOnce(t *testing.T) {
	terms, docs := seedIndex(t)
	exec := New(terms, docs, 4)

	resp, err := exec.Search(context.Background(), []string{"cat", "cat"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if resp.Results[0].Score != 2 {
		t.Errorf("repeated query term double-counted: %+v", resp.Results[0])
	}
}

func TestSearchTieBreakByDocID(t *testing.T) {
	ctx := context.Background()
	terms := store.NewMemoryTermIndex()
	docs := store.NewMemoryDocumentStore()
	for id := int64(1); id <= 5; id++ {
		if err := docs.PutDocument(ctx, index.Document{DocID: id, Path: "p"}); err != nil {
			t.Fatal(err)
		}
		if err := terms.PutPosting(ctx, "cat", id, 1); err != nil {
			t.Fatal(err)
		}
	}
	exec := New(terms, docs, 4)

	// All scores equal; ordering must be ascending doc id, and stable
	// across runs.
	first, err := exec.Search(ctx, []string{"cat"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	second, err := exec.Search(ctx, []string{"cat"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	for i := range first.Results {
		if first.Results[i] != second.Results[i] {
			t.Fatalf("ranking not deterministic: %v vs %v", first.Results, second.Results)
		}
	}
}

func TestSearchUnresolvedDocRendersPlaceholder(t *testing.T) {
	ctx := context.Background()
	terms := store.NewMemoryTermIndex()
	docs := store.NewMemoryDocumentStore()
	if err := terms.PutPosting(ctx, "cat", 42, 3); err != nil {
		t.Fatal(err)
	}
	exec := New(terms, docs, 4)

	resp, err := exec.Search(ctx, []string{"cat"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if resp.Count != 1 {
		t.Fatalf("count = %d, want 1", resp.Count)
	}
	if resp.Results[0].Path != "docId:42" {
		t.Errorf("unresolved path = %q, want docId:42", resp.Results[0].Path)
	}
}

type failingTermIndex struct{ index.TermIndex }

func (failingTermIndex) Postings(context.Context, string) ([]index.Posting, error) {
	return nil, apperrors.ErrStorage
}

func TestSearchAbortsOnPostingsFailure(t *testing.T) {
	_, docs := seedIndex(t)
	exec := New(failingTermIndex{}, docs, 4)

	resp, err := exec.Search(context.Background(), []string{"cat"})
	if !errors.Is(err, apperrors.ErrStorage) {
		t.Fatalf("error = %v, want ErrStorage", err)
	}
	if resp != nil {
		t.Errorf("partial result returned on failure: %+v", resp)
	}
}
