package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/proto"
)

// fakeCaller records the last RPC call and returns a canned response.
type fakeCaller struct {
	method string
	params any
	respFn func(method string, params any, result any) error
}

func (f *fakeCaller) Call(_ context.Context, method string, params any, result any) error {
	f.method = method
	f.params = params
	if f.respFn != nil {
		return f.respFn(method, params, result)
	}
	return nil
}

func newTestHandler(indexer, searcher *fakeCaller) *Handler {
	return New(config.GatewayConfig{}, indexer, searcher, nil, nil)
}

func TestIndexForwardsTermFreqs(t *testing.T) {
	indexer := &fakeCaller{
		respFn: func(_ string, _ any, result any) error {
			*(result.(*proto.IndexResponse)) = proto.IndexResponse{Status: "OK", DocID: 7, Path: "a.txt"}
			return nil
		},
	}
	h := newTestHandler(indexer, &fakeCaller{})

	body := `{"path":"a.txt","termFreqs":{"cat":2}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/index", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Index(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if indexer.method != "Index.Compute" {
		t.Errorf("rpc method = %q", indexer.method)
	}
	sent := indexer.params.(*proto.IndexRequest)
	if sent.TermFreqs["cat"] != 2 {
		t.Errorf("forwarded termFreqs = %v", sent.TermFreqs)
	}

	var resp proto.IndexResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.DocID != 7 || resp.Status != "OK" {
		t.Errorf("response = %+v", resp)
	}
}

func TestIndexTokenizesRawText(t *testing.T) {
	indexer := &fakeCaller{
		respFn: func(_ string, _ any, result any) error {
			*(result.(*proto.IndexResponse)) = proto.IndexResponse{Status: "OK", DocID: 1, Path: "a.txt"}
			return nil
		},
	}
	h := newTestHandler(indexer, &fakeCaller{})

	body := `{"path":"a.txt","text":"The cat, the CAT!"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/index", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Index(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	sent := indexer.params.(*proto.IndexRequest)
	if sent.TermFreqs["cat"] != 2 || sent.TermFreqs["the"] != 2 {
		t.Errorf("tokenized termFreqs = %v", sent.TermFreqs)
	}
}

func TestIndexMissingPath(t *testing.T) {
	h := newTestHandler(&fakeCaller{}, &fakeCaller{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/index", strings.NewReader(`{"text":"cat"}`))
	rec := httptest.NewRecorder()
	h.Index(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestIndexBackendFailure(t *testing.T) {
	indexer := &fakeCaller{
		respFn: func(string, any, any) error {
			return errors.New("rpc error: id counter unavailable: incrementing fre:counter:docSeq")
		},
	}
	h := newTestHandler(indexer, &fakeCaller{})

	body := `{"path":"a.txt","termFreqs":{"cat":1}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/index", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Index(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestSearchForwardsTokenizedTerms(t *testing.T) {
	searcher := &fakeCaller{
		respFn: func(_ string, _ any, result any) error {
			*(result.(*proto.SearchResponse)) = proto.SearchResponse{
				Results: []proto.SearchHit{{Path: "a.txt", Score: 3}},
				Count:   1,
			}
			return nil
		},
	}
	h := newTestHandler(&fakeCaller{}, searcher)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=Cat+DOG", nil)
	rec := httptest.NewRecorder()
	h.Search(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if searcher.method != "Search.Compute" {
		t.Errorf("rpc method = %q", searcher.method)
	}
	sent := searcher.params.(*proto.SearchRequest)
	if len(sent.Terms) != 2 || sent.Terms[0] != "cat" || sent.Terms[1] != "dog" {
		t.Errorf("forwarded terms = %v", sent.Terms)
	}

	var resp proto.SearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 1 || resp.Results[0].Path != "a.txt" {
		t.Errorf("response = %+v", resp)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	searcher := &fakeCaller{
		respFn: func(_ string, params any, result any) error {
			sent := params.(*proto.SearchRequest)
			if len(sent.Terms) != 0 {
				t.Errorf("expected empty terms, got %v", sent.Terms)
			}
			*(result.(*proto.SearchResponse)) = proto.SearchResponse{Results: []proto.SearchHit{}, Count: 0}
			return nil
		},
	}
	h := newTestHandler(&fakeCaller{}, searcher)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
	rec := httptest.NewRecorder()
	h.Search(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp proto.SearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 0 || len(resp.Results) != 0 {
		t.Errorf("response = %+v, want empty", resp)
	}
}

func TestSearchPostRetokenizesTerms(t *testing.T) {
	searcher := &fakeCaller{
		respFn: func(_ string, _ any, result any) error {
			*(result.(*proto.SearchResponse)) = proto.SearchResponse{Results: []proto.SearchHit{}, Count: 0}
			return nil
		},
	}
	h := newTestHandler(&fakeCaller{}, searcher)

	body := `{"terms":["Cat!","dog"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.SearchPost(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	sent := searcher.params.(*proto.SearchRequest)
	if len(sent.Terms) != 2 || sent.Terms[0] != "cat" || sent.Terms[1] != "dog" {
		t.Errorf("forwarded terms = %v", sent.Terms)
	}
}

func TestCircuitBreakerOpensAfterRepeatedFailures(t *testing.T) {
	searcher := &fakeCaller{
		respFn: func(string, any, any) error {
			return errors.New("connection refused")
		},
	}
	h := newTestHandler(&fakeCaller{}, searcher)

	// Trip the breaker with more failures than the default threshold.
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=cat", nil)
		h.Search(httptest.NewRecorder(), req)
	}

	searcher.method = ""
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=cat", nil)
	rec := httptest.NewRecorder()
	h.Search(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 from open circuit", rec.Code)
	}
	if searcher.method != "" {
		t.Error("backend was called while circuit open")
	}
}
