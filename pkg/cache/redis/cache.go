package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/taskforge/orchestrator/internal/errors"
)

// ErrCacheMiss is returned by Cache.Get when the key is absent or
// expired.
var ErrCacheMiss = errors.New("rediscache: cache miss")

// Cache is a type-safe wrapper over one Redis key prefix, storing values
// as JSON with a fixed TTL. Used for the progress snapshot cache (a
// 5-minute freshness window) and the session cache.
type Cache[T any] struct {
	client *Client
	prefix string
	ttl    time.Duration
}

// NewCache constructs a Cache scoped to prefix with entries expiring
// after ttl.
func NewCache[T any](client *Client, prefix string, ttl time.Duration) *Cache[T] {
	return &Cache[T]{client: client, prefix: prefix, ttl: ttl}
}

func (c *Cache[T]) key(k string) string { return c.prefix + ":" + k }

// Set stores *value under k, overwriting any prior entry.
func (c *Cache[T]) Set(ctx context.Context, k string, value *T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "rediscache: marshal failed")
	}
	if err := c.client.raw.Set(ctx, c.key(k), data, c.ttl).Err(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeNetwork, "rediscache: set failed")
	}
	return nil
}

// Get retrieves the value stored under k, or ErrCacheMiss if absent.
func (c *Cache[T]) Get(ctx context.Context, k string) (*T, error) {
	data, err := c.client.raw.Get(ctx, c.key(k)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeNetwork, "rediscache: get failed")
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "rediscache: unmarshal failed")
	}
	return &out, nil
}

// Delete removes k, if present.
func (c *Cache[T]) Delete(ctx context.Context, k string) error {
	if err := c.client.raw.Del(ctx, c.key(k)).Err(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeNetwork, "rediscache: delete failed")
	}
	return nil
}
