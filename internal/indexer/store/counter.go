// Package store provides the durable backends behind the index data model:
// a Redis-backed atomic id allocator, Postgres-backed document and posting
// stores, and in-memory equivalents for single-node runs and tests.
package store

import (
	"context"
	"fmt"
	"sync/atomic"

	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/redis"
)

// RedisAllocator issues document ids with INCRBY on a single durable counter
// key. Redis applies the increment atomically, so concurrent callers never
// observe the same value. The counter only ever moves forward; a failed
// indexing call burns its id.
type RedisAllocator struct {
	client     *redis.Client
	counterKey string
}

// NewRedisAllocator creates an allocator over the given counter key. The key
// is created on first increment; an absent key counts as 0, so the first
// allocated id is 1.
func NewRedisAllocator(client *redis.Client, counterKey string) *RedisAllocator {
	return &RedisAllocator{client: client, counterKey: counterKey}
}

// NextDocID atomically increments the counter and returns the new value.
func (a *RedisAllocator) NextDocID(ctx context.Context) (int64, error) {
	id, err := a.client.IncrBy(ctx, a.counterKey, 1)
	if err != nil {
		return 0, fmt.Errorf("%w: incrementing %s: %v", apperrors.ErrCounterUnavailable, a.counterKey, err)
	}
	metrics.Default().DocIDsAllocatedTotal.Inc()
	return id, nil
}

// MemoryAllocator is an in-process atomic counter. It satisfies the allocator
// contract within a single process only; production deployments use
// RedisAllocator so ids stay unique across indexer instances.
type MemoryAllocator struct {
	last atomic.Int64
}

// NewMemoryAllocator creates an allocator whose first issued id is initial+1.
func NewMemoryAllocator(initial int64) *MemoryAllocator {
	a := &MemoryAllocator{}
	a.last.Store(initial)
	return a
}

func (a *MemoryAllocator) NextDocID(_ context.Context) (int64, error) {
	id := a.last.Add(1)
	metrics.Default().DocIDsAllocatedTotal.Inc()
	return id, nil
}
