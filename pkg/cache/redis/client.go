// Package redis wraps a go-redis client with the connection-check and
// typed-cache helpers the rest of this repo consumes for the progress,
// session, and notification-trigger caches: in-process caches backed by
// Redis so multiple orchestrator replicas share one view, safe for
// concurrent readers and writers.
package redis

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"github.com/redis/go-redis/v9"
)

// Client wraps *redis.Client with a connection-health check and a
// structured logger, shared by every typed Cache built on top of it.
type Client struct {
	raw    *redis.Client
	logger logr.Logger
}

// NewClient constructs a Client from go-redis options.
func NewClient(opts *redis.Options, logger logr.Logger) *Client {
	return &Client{raw: redis.NewClient(opts), logger: logger}
}

// EnsureConnection pings the server, surfacing connectivity failures
// before the caller starts relying on the cache.
func (c *Client) EnsureConnection(ctx context.Context) error {
	return c.raw.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.raw.Close()
}

// Raw exposes the underlying go-redis client for callers that need
// operations beyond Cache[T]'s Get/Set/Delete (e.g. the notification
// trigger map's reader-preferred access pattern).
func (c *Client) Raw() *redis.Client { return c.raw }

// pingInterval is how often a background health-checker (if the caller
// runs one) should re-verify connectivity.
const pingInterval = 30 * time.Second
