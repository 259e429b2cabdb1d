package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sheerif/eticketsv10/monitoring"
	"github.com/sheerif/eticketsv10/utils"
)

// Cache keys use a fixed-length prefix of the credential rather than the
// full string. Two credentials sharing the first 20 characters would share
// an entry; with a secret basis of 96 random hex characters that is a
// deliberate space-for-collision-risk trade kept from the original design.
const (
	verifyCacheKeyPrefix = "ticket_verify_"
	verifyCachePrefixLen = 20
)

func cachePrefix(credential string) string {
	if len(credential) > verifyCachePrefixLen {
		return credential[:verifyCachePrefixLen]
	}
	return credential
}

func cacheKey(credential string) string {
	return verifyCacheKeyPrefix + cachePrefix(credential)
}

// VerifyCache remembers recent verification results in redis. Positive
// results live longer than negative ones. Every failure is absorbed: a
// broken cache degrades to plain store lookups. The circuit breaker stops
// hammering a redis that is down.
type VerifyCache struct {
	redis       *redis.Client
	breaker     *utils.CircuitBreaker
	positiveTTL time.Duration
	negativeTTL time.Duration
}

func NewVerifyCache(client *redis.Client, positiveTTL, negativeTTL time.Duration) *VerifyCache {
	return &VerifyCache{
		redis:       client,
		breaker:     utils.NewCircuitBreaker("verify-cache"),
		positiveTTL: positiveTTL,
		negativeTTL: negativeTTL,
	}
}

// Get returns the cached result for the credential, or nil on miss, error
// or when no cache is configured.
func (c *VerifyCache) Get(ctx context.Context, credential string) *VerifyResult {
	if c == nil || c.redis == nil {
		return nil
	}

	val, err := c.breaker.Execute(ctx, func() (any, error) {
		data, err := c.redis.Get(ctx, cacheKey(credential)).Bytes()
		if err == redis.Nil {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return data, nil
	})
	if err != nil {
		monitoring.TrackCacheLookup("error")
		slog.Debug("verify cache read failed", "error", err)
		return nil
	}

	data, ok := val.([]byte)
	if !ok || data == nil {
		monitoring.TrackCacheLookup("miss")
		return nil
	}

	var res VerifyResult
	if err := json.Unmarshal(data, &res); err != nil {
		monitoring.TrackCacheLookup("error")
		return nil
	}
	res.FromCache = true
	monitoring.TrackCacheLookup("hit")
	return &res
}

// Put stores a result, choosing the TTL by outcome. Errors are logged and
// dropped.
func (c *VerifyCache) Put(ctx context.Context, credential string, res *VerifyResult) {
	if c == nil || c.redis == nil {
		return
	}

	data, err := json.Marshal(res)
	if err != nil {
		return
	}

	ttl := c.negativeTTL
	if res.OK() {
		ttl = c.positiveTTL
	}

	_, err = c.breaker.Execute(ctx, func() (any, error) {
		return nil, c.redis.Set(ctx, cacheKey(credential), string(data), ttl).Err()
	})
	if err != nil {
		monitoring.TrackCacheLookup("write_error")
		slog.Debug("verify cache write failed", "error", err)
	}
}
