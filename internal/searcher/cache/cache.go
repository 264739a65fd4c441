// Package cache provides a Redis-backed query result cache with
// singleflight collapsing of concurrent identical queries.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/proto"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/redis"
)

const keyPrefix = "fre:search:"

// QueryCache caches ranked search responses keyed by the sorted term set.
// A cache failure is never fatal: reads fall through to the executor and
// write failures are only logged.
type QueryCache struct {
	client *pkgredis.Client
	cfg    config.RedisConfig
	group  singleflight.Group
	log    *slog.Logger
}

func New(client *pkgredis.Client, cfg config.RedisConfig) *QueryCache {
	return &QueryCache{
		client: client,
		cfg:    cfg,
		log:    logger.WithComponent("query-cache"),
	}
}

// Get returns the cached response for the term set, if present.
func (c *QueryCache) Get(ctx context.Context, terms []string) (*proto.SearchResponse, bool) {
	key := buildKey(terms)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.log.Error("cache get failed", "key", key, "error", err)
		}
		metrics.Default().CacheMissesTotal.Inc()
		return nil, false
	}
	var resp proto.SearchResponse
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		c.log.Error("cache unmarshal failed", "key", key, "error", err)
		metrics.Default().CacheMissesTotal.Inc()
		return nil, false
	}
	metrics.Default().CacheHitsTotal.Inc()
	return &resp, true
}

// Set stores a response under the term set's key with the configured TTL.
func (c *QueryCache) Set(ctx context.Context, terms []string, resp *proto.SearchResponse) {
	key := buildKey(terms)
	data, err := json.Marshal(resp)
	if err != nil {
		c.log.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.log.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached response or computes and caches it.
// Concurrent callers with the same term set share one computation. The
// second return value reports whether the response came from cache.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	terms []string,
	computeFn func() (*proto.SearchResponse, error),
) (*proto.SearchResponse, bool, error) {
	if resp, ok := c.Get(ctx, terms); ok {
		return resp, true, nil
	}
	key := buildKey(terms)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if resp, ok := c.Get(ctx, terms); ok {
			return resp, nil
		}
		resp, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, terms, resp)
		return resp, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*proto.SearchResponse), false, nil
}

// Invalidate drops every cached search response. Called when the index
// changes so stale rankings are not served past the invalidation event.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating query cache: %w", err)
	}
	c.log.Info("query cache invalidated", "keys_deleted", deleted)
	return nil
}

// buildKey hashes the sorted, deduplicated term set so term order and
// repetition in the query do not fragment the cache.
func buildKey(terms []string) string {
	distinct := make([]string, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		distinct = append(distinct, t)
	}
	sort.Strings(distinct)
	hash := sha256.Sum256([]byte(strings.Join(distinct, ",")))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
