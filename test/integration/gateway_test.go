package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gwhandler "github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/gateway/handler"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/gateway/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/gateway/router"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/registry"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/proto"
)

// fakeBackend satisfies the gateway's RPCCaller interface with canned
// responses, replacing the indexer and searcher services.
type fakeBackend struct {
	respond func(method string, params any) (any, error)
}

func (f *fakeBackend) Call(ctx context.Context, method string, params any, result any) error {
	resp, err := f.respond(method, params)
	if err != nil {
		return err
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, result)
}

// newGatewayServer builds a test gateway over a real PostgreSQL registry and
// fake RPC backends.
func newGatewayServer(t *testing.T, db *postgres.Client, defaultRateLimit int) (*httptest.Server, *registry.Registry) {
	t.Helper()

	reg := registry.New(db, defaultRateLimit)
	if err := reg.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensuring registry schema: %v", err)
	}

	indexerBackend := &fakeBackend{respond: func(method string, params any) (any, error) {
		req := params.(*proto.IndexRequest)
		return proto.IndexResponse{Status: "OK", DocID: 1, Path: req.Path}, nil
	}}
	searcherBackend := &fakeBackend{respond: func(method string, params any) (any, error) {
		return proto.SearchResponse{Results: []proto.SearchHit{}, Count: 0}, nil
	}}

	h := gwhandler.New(
		config.GatewayConfig{CallTimeout: 5 * time.Second},
		indexerBackend, searcherBackend, reg, db,
	)
	limiter := ratelimit.New(time.Minute)
	chain := router.New(h, reg, limiter, metrics.Default(), 30*time.Second)

	srv := httptest.NewServer(chain)
	t.Cleanup(srv.Close)
	return srv, reg
}

// registerClient issues a fresh client id through the API and removes it
// again on cleanup.
func registerClient(t *testing.T, srv *httptest.Server, db *postgres.Client) string {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/v1/register", "application/json", nil)
	if err != nil {
		t.Fatalf("register request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("register: expected 201, got %d: %s", resp.StatusCode, body)
	}
	var out proto.RegisterResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding register response: %v", err)
	}
	if out.ClientID == "" {
		t.Fatal("register returned empty client id")
	}
	t.Cleanup(func() {
		db.DB.ExecContext(context.Background(), `DELETE FROM clients WHERE client_id = $1`, out.ClientID)
	})
	return out.ClientID
}

func postIndex(t *testing.T, srv *httptest.Server, clientID string) *http.Response {
	t.Helper()
	payload := []byte(`{"path":"it-gw/a.txt","termFreqs":{"cat":2}}`)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/index", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("building index request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if clientID != "" {
		req.Header.Set("X-Client-ID", clientID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("index request failed: %v", err)
	}
	return resp
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

// TestGatewayHealth verifies the health check is accessible without a client id.
func TestGatewayHealth(t *testing.T) {
	db := skipIfNoPostgres(t)
	srv, _ := newGatewayServer(t, db, 100)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("expected status=ok, got %q", body["status"])
	}
}

// TestIndexRequiresClientID verifies that indexing without a registered
// client id is rejected while search stays open.
func TestIndexRequiresClientID(t *testing.T) {
	db := skipIfNoPostgres(t)
	srv, _ := newGatewayServer(t, db, 100)

	resp := postIndex(t, srv, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("index without client id: expected 401, got %d", resp.StatusCode)
	}

	searchResp, err := http.Get(srv.URL + "/api/v1/search?q=cat")
	if err != nil {
		t.Fatalf("search request failed: %v", err)
	}
	searchResp.Body.Close()
	if searchResp.StatusCode != http.StatusOK {
		t.Errorf("search without client id: expected 200, got %d", searchResp.StatusCode)
	}
}

// TestClientLifecycle registers a client, indexes with it, deactivates it,
// and verifies the deactivated id is rejected.
func TestClientLifecycle(t *testing.T) {
	db := skipIfNoPostgres(t)
	srv, reg := newGatewayServer(t, db, 100)

	clientID := registerClient(t, srv, db)

	resp := postIndex(t, srv, clientID)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("index with valid client id: expected 200, got %d: %s", resp.StatusCode, body)
	}
	var indexResp proto.IndexResponse
	if err := json.NewDecoder(resp.Body).Decode(&indexResp); err != nil {
		t.Fatalf("decoding index response: %v", err)
	}
	if indexResp.Status != "OK" {
		t.Errorf("expected status OK, got %q", indexResp.Status)
	}

	if err := reg.Deactivate(context.Background(), clientID); err != nil {
		t.Fatalf("deactivating client: %v", err)
	}

	resp2 := postIndex(t, srv, clientID)
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusUnauthorized {
		t.Errorf("index with deactivated client id: expected 401, got %d", resp2.StatusCode)
	}
}

// TestUnknownClientIDRejected verifies that a made-up client id is rejected.
func TestUnknownClientIDRejected(t *testing.T) {
	db := skipIfNoPostgres(t)
	srv, _ := newGatewayServer(t, db, 100)

	resp := postIndex(t, srv, "deadbeefdeadbeefdeadbeefdeadbeef")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
}

// TestRateLimiting verifies the gateway enforces per-client rate limits on
// the index path.
func TestRateLimiting(t *testing.T) {
	db := skipIfNoPostgres(t)
	// Registry issues clients with a budget of 2 requests per window.
	srv, _ := newGatewayServer(t, db, 2)

	clientID := registerClient(t, srv, db)

	for i := 0; i < 2; i++ {
		resp := postIndex(t, srv, clientID)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, resp.StatusCode)
		}
	}

	resp := postIndex(t, srv, clientID)
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", resp.StatusCode)
	}
}
