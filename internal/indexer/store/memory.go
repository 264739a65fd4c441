package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/errors"
)

// MemoryDocumentStore is an in-memory DocumentStore used by the memory
// driver and by tests. All state is process-local.
type MemoryDocumentStore struct {
	mu   sync.RWMutex
	docs map[int64]string
}

func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{docs: make(map[int64]string)}
}

func (s *MemoryDocumentStore) PutDocument(_ context.Context, doc index.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.DocID] = doc.Path
	return nil
}

func (s *MemoryDocumentStore) GetDocument(_ context.Context, docID int64) (index.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	path, ok := s.docs[docID]
	if !ok {
		return index.Document{}, fmt.Errorf("%w: doc_id %d", apperrors.ErrDocumentNotFound, docID)
	}
	return index.Document{DocID: docID, Path: path}, nil
}

func (s *MemoryDocumentStore) BatchGetDocuments(_ context.Context, docIDs []int64) (map[int64]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make(map[int64]string, len(docIDs))
	for _, id := range docIDs {
		if path, ok := s.docs[id]; ok {
			paths[id] = path
		}
	}
	return paths, nil
}

// MemoryTermIndex is an in-memory TermIndex keyed term -> docId -> freq.
type MemoryTermIndex struct {
	mu       sync.RWMutex
	postings map[string]map[int64]int
}

func NewMemoryTermIndex() *MemoryTermIndex {
	return &MemoryTermIndex{postings: make(map[string]map[int64]int)}
}

func (s *MemoryTermIndex) PutPosting(_ context.Context, term string, docID int64, freq int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byDoc, ok := s.postings[term]
	if !ok {
		byDoc = make(map[int64]int)
		s.postings[term] = byDoc
	}
	byDoc[docID] = freq
	return nil
}

func (s *MemoryTermIndex) Postings(_ context.Context, term string) ([]index.Posting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byDoc := s.postings[term]
	postings := make([]index.Posting, 0, len(byDoc))
	for docID, freq := range byDoc {
		postings = append(postings, index.Posting{DocID: docID, Freq: freq})
	}
	return postings, nil
}
