package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/taskforge/orchestrator/pkg/model"
)

// Cache is the narrow shape this facade needs from a cache layer:
// satisfied both by a Redis-backed pkg/cache/redis.Cache[T] and by the
// in-process fallback below, so callers never branch on which backend
// is configured.
type Cache[T any] interface {
	Get(ctx context.Context, key string) (*T, error)
	Set(ctx context.Context, key string, value *T) error
	Delete(ctx context.Context, key string) error
}

type memCacheEntry[T any] struct {
	value     T
	expiresAt time.Time
}

// MemCache is a sync.Map-shaped fallback used when no Redis address is
// configured, mirroring the store layer's in-memory fallback shape.
type MemCache[T any] struct {
	mu   sync.Mutex
	data map[string]memCacheEntry[T]
	ttl  time.Duration
}

// NewMemCache constructs an empty in-process Cache with a fixed TTL.
func NewMemCache[T any](ttl time.Duration) *MemCache[T] {
	return &MemCache[T]{data: map[string]memCacheEntry[T]{}, ttl: ttl}
}

func (c *MemCache[T]) Get(_ context.Context, key string) (*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.data[key]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(c.data, key)
		return nil, nil
	}
	v := entry.value
	return &v, nil
}

func (c *MemCache[T]) Set(_ context.Context, key string, value *T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = memCacheEntry[T]{value: *value, expiresAt: time.Now().Add(c.ttl)}
	return nil
}

func (c *MemCache[T]) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// cachedProgress returns taskID's cached snapshot if present and fresh,
// else computes, caches, and returns it fresh.
func (o *Orchestrator) cachedProgress(ctx context.Context, taskID string) model.ProgressSnapshot {
	if o.progressCache != nil {
		if cached, err := o.progressCache.Get(ctx, taskID); err == nil && cached != nil {
			return *cached
		}
	}
	snap := o.todoEngine.Progress(taskID)
	if o.progressCache != nil {
		_ = o.progressCache.Set(ctx, taskID, &snap)
	}
	return snap
}

// notifyOnce reports whether (key) has already fired a notification
// within the dedup window, recording it as fired when it has not.
func (o *Orchestrator) notifyOnce(ctx context.Context, key string) bool {
	if o.notifyDedup == nil {
		return true
	}
	if cached, err := o.notifyDedup.Get(ctx, key); err == nil && cached != nil && *cached {
		return false
	}
	fired := true
	_ = o.notifyDedup.Set(ctx, key, &fired)
	return true
}
