// Package integration contains tests that verify component interaction
// against real backing services. Tests skip themselves when PostgreSQL or
// Redis is unavailable.
//
// Run with:
//
//	go test -v ./test/integration/...
package integration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/redis"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	db, err := postgres.New(testPostgresConfig())
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := store.EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("ensuring schema: %v", err)
	}
	return db
}

func skipIfNoRedis(t *testing.T) *pkgredis.Client {
	t.Helper()
	client, err := pkgredis.NewClient(testRedisConfig())
	if err != nil {
		t.Skipf("skipping integration test: redis unavailable: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func testPostgresConfig() config.PostgresConfig {
	return config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "retrievalengine_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "retrievalengine"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

func testRedisConfig() config.RedisConfig {
	return config.RedisConfig{
		Addr:     envOrDefault("TEST_REDIS_ADDR", "localhost:6379"),
		DB:       envOrDefaultInt("TEST_REDIS_DB", 1),
		PoolSize: 5,
		CacheTTL: time.Minute,
	}
}

// testCounterKey returns a per-test counter key and registers its cleanup.
func testCounterKey(t *testing.T, client *pkgredis.Client) string {
	t.Helper()
	key := fmt.Sprintf("test:counter:%s:%d", t.Name(), time.Now().UnixNano())
	t.Cleanup(func() {
		client.Del(context.Background(), key)
	})
	return key
}

// cleanTables removes rows written by a test, keyed by the path prefix it used.
func cleanTables(t *testing.T, db *postgres.Client, pathPrefix string) {
	t.Helper()
	t.Cleanup(func() {
		ctx := context.Background()
		db.DB.ExecContext(ctx,
			`DELETE FROM postings WHERE doc_id IN (SELECT doc_id FROM documents WHERE path LIKE $1)`,
			pathPrefix+"%")
		db.DB.ExecContext(ctx, `DELETE FROM documents WHERE path LIKE $1`, pathPrefix+"%")
	})
}

// ---------------------------------------------------------------------------
// Allocator
// ---------------------------------------------------------------------------

// TestRedisAllocatorContiguous verifies that sequential allocations produce
// strictly increasing, gap-free ids.
func TestRedisAllocatorContiguous(t *testing.T) {
	client := skipIfNoRedis(t)
	alloc := store.NewRedisAllocator(client, testCounterKey(t, client))
	ctx := context.Background()

	var prev int64
	for i := 0; i < 20; i++ {
		id, err := alloc.NextDocID(ctx)
		if err != nil {
			t.Fatalf("allocation %d: %v", i, err)
		}
		if id != prev+1 {
			t.Fatalf("allocation %d: got id %d, want %d", i, id, prev+1)
		}
		prev = id
	}
}

// TestRedisAllocatorConcurrent verifies that concurrent allocations never
// produce duplicate ids.
func TestRedisAllocatorConcurrent(t *testing.T) {
	client := skipIfNoRedis(t)
	alloc := store.NewRedisAllocator(client, testCounterKey(t, client))
	ctx := context.Background()

	const n = 50
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := alloc.NextDocID(ctx)
			if err != nil {
				t.Errorf("concurrent allocation: %v", err)
				return
			}
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool, n)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Fatalf("got %d distinct ids, want %d", len(seen), n)
	}
}

// ---------------------------------------------------------------------------
// Stores
// ---------------------------------------------------------------------------

// TestDocumentStoreUpsert verifies that re-registering a doc id overwrites
// its path instead of failing.
func TestDocumentStoreUpsert(t *testing.T) {
	db := skipIfNoPostgres(t)
	cleanTables(t, db, "it-upsert/")
	docs := store.NewPostgresDocumentStore(db)
	ctx := context.Background()

	docID := time.Now().UnixNano()
	if err := docs.PutDocument(ctx, index.Document{DocID: docID, Path: "it-upsert/a.txt"}); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if err := docs.PutDocument(ctx, index.Document{DocID: docID, Path: "it-upsert/b.txt"}); err != nil {
		t.Fatalf("second put: %v", err)
	}

	doc, err := docs.GetDocument(ctx, docID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.Path != "it-upsert/b.txt" {
		t.Errorf("got path %q, want %q", doc.Path, "it-upsert/b.txt")
	}
}

// TestDocumentStoreBatchGetOmitsMissing verifies that a batch lookup returns
// only the documents that exist.
func TestDocumentStoreBatchGetOmitsMissing(t *testing.T) {
	db := skipIfNoPostgres(t)
	cleanTables(t, db, "it-batch/")
	docs := store.NewPostgresDocumentStore(db)
	ctx := context.Background()

	base := time.Now().UnixNano()
	for i := int64(0); i < 3; i++ {
		if err := docs.PutDocument(ctx, index.Document{DocID: base + i, Path: fmt.Sprintf("it-batch/%d.txt", i)}); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
	}

	got, err := docs.BatchGetDocuments(ctx, []int64{base, base + 1, base + 2, base + 999})
	if err != nil {
		t.Fatalf("batch get: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d documents, want 3", len(got))
	}
	if _, ok := got[base+999]; ok {
		t.Error("missing id should be omitted from the batch result")
	}
}

// TestDocumentStoreGetMissing verifies the not-found sentinel.
func TestDocumentStoreGetMissing(t *testing.T) {
	db := skipIfNoPostgres(t)
	docs := store.NewPostgresDocumentStore(db)

	_, err := docs.GetDocument(context.Background(), -1)
	if !errors.Is(err, apperrors.ErrDocumentNotFound) {
		t.Fatalf("got %v, want ErrDocumentNotFound", err)
	}
}

// TestTermIndexUpsert verifies that re-posting a (term, doc) pair overwrites
// the stored frequency.
func TestTermIndexUpsert(t *testing.T) {
	db := skipIfNoPostgres(t)
	terms := store.NewPostgresTermIndex(db)
	ctx := context.Background()

	docID := time.Now().UnixNano()
	term := fmt.Sprintf("itterm%d", docID)
	t.Cleanup(func() {
		db.DB.ExecContext(context.Background(), `DELETE FROM postings WHERE term = $1`, term)
	})

	if err := terms.PutPosting(ctx, term, docID, 2); err != nil {
		t.Fatalf("first posting: %v", err)
	}
	if err := terms.PutPosting(ctx, term, docID, 7); err != nil {
		t.Fatalf("second posting: %v", err)
	}

	postings, err := terms.Postings(ctx, term)
	if err != nil {
		t.Fatalf("postings: %v", err)
	}
	if len(postings) != 1 {
		t.Fatalf("got %d postings, want 1", len(postings))
	}
	if postings[0].Freq != 7 {
		t.Errorf("got freq %d, want 7", postings[0].Freq)
	}
}

// ---------------------------------------------------------------------------
// Full pipeline
// ---------------------------------------------------------------------------

// TestIndexThenSearch indexes documents through the engine and queries them
// back through the executor, all over real PostgreSQL and Redis.
func TestIndexThenSearch(t *testing.T) {
	db := skipIfNoPostgres(t)
	redisClient := skipIfNoRedis(t)
	cleanTables(t, db, "it-pipeline/")

	alloc := store.NewRedisAllocator(redisClient, testCounterKey(t, redisClient))
	docs := store.NewPostgresDocumentStore(db)
	terms := store.NewPostgresTermIndex(db)
	engine := indexer.New(alloc, docs, terms)
	exec := executor.New(terms, docs, 4)
	ctx := context.Background()

	// Unique terms per run keep parallel test invocations independent.
	marker := fmt.Sprintf("mk%d", time.Now().UnixNano())
	docA, err := engine.IndexDocument(ctx, "it-pipeline/a.txt",
		tokenizer.TermFreqs(fmt.Sprintf("%s %s the quick fox", marker, marker)))
	if err != nil {
		t.Fatalf("indexing a.txt: %v", err)
	}
	docB, err := engine.IndexDocument(ctx, "it-pipeline/b.txt",
		tokenizer.TermFreqs(fmt.Sprintf("%s the slow dog", marker)))
	if err != nil {
		t.Fatalf("indexing b.txt: %v", err)
	}
	if docA.DocID == docB.DocID {
		t.Fatalf("duplicate doc ids: %d", docA.DocID)
	}

	resp, err := exec.Search(ctx, []string{marker})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if resp.Count != 2 {
		t.Fatalf("got %d results, want 2", resp.Count)
	}
	// a.txt contains the marker twice, b.txt once.
	if resp.Results[0].Path != "it-pipeline/a.txt" {
		t.Errorf("got top result %q, want a.txt", resp.Results[0].Path)
	}
	if resp.Results[0].Score <= resp.Results[1].Score {
		t.Errorf("results not ranked by score: %v", resp.Results)
	}
}

// ---------------------------------------------------------------------------
// Env helpers
// ---------------------------------------------------------------------------

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
