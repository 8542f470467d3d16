package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-logr/logr"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	rediscache "github.com/taskforge/orchestrator/pkg/cache/redis"
)

func newTestClient(t *testing.T) *rediscache.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := rediscache.NewClient(&goredis.Options{Addr: mr.Addr()}, logr.Discard())
	require.NoError(t, client.EnsureConnection(context.Background()))
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestCacheSetGetRoundTrip(t *testing.T) {
	client := newTestClient(t)
	cache := rediscache.NewCache[string](client, "strings", 5*time.Minute)

	value := "hello world"
	require.NoError(t, cache.Set(context.Background(), "key1", &value))

	got, err := cache.Get(context.Background(), "key1")
	require.NoError(t, err)
	require.Equal(t, "hello world", *got)
}

func TestCacheGetMissReturnsErrCacheMiss(t *testing.T) {
	client := newTestClient(t)
	cache := rediscache.NewCache[string](client, "strings", 5*time.Minute)

	_, err := cache.Get(context.Background(), "missing")
	require.ErrorIs(t, err, rediscache.ErrCacheMiss)
}

type structValue struct {
	Name  string
	Count int
	Tags  []string
}

func TestCacheStructRoundTrip(t *testing.T) {
	client := newTestClient(t)
	cache := rediscache.NewCache[structValue](client, "structs", time.Minute)

	v := structValue{Name: "task", Count: 3, Tags: []string{"a", "b"}}
	require.NoError(t, cache.Set(context.Background(), "k", &v))

	got, err := cache.Get(context.Background(), "k")
	require.NoError(t, err)
	require.Equal(t, v, *got)
}

func TestCacheDelete(t *testing.T) {
	client := newTestClient(t)
	cache := rediscache.NewCache[string](client, "strings", time.Minute)

	v := "x"
	require.NoError(t, cache.Set(context.Background(), "k", &v))
	require.NoError(t, cache.Delete(context.Background(), "k"))

	_, err := cache.Get(context.Background(), "k")
	require.ErrorIs(t, err, rediscache.ErrCacheMiss)
}
