package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Versioned, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewVersioned(client, "test", time.Minute), mr
}

func TestFetchJSONCachesUntilBump(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return map[string]int{"n": calls}, nil
	}

	key, err := c.BuildKey(ctx, "q", "dashboard")
	require.NoError(t, err)
	require.Equal(t, "q:dashboard:1", key)

	var got map[string]int
	require.NoError(t, c.FetchJSON(ctx, key, &got, loader))
	require.NoError(t, c.FetchJSON(ctx, key, &got, loader))
	require.Equal(t, 1, calls)
	require.Equal(t, 1, got["n"])

	require.NoError(t, c.Bump(ctx))
	key, err = c.BuildKey(ctx, "q", "dashboard")
	require.NoError(t, err)
	require.Equal(t, "q:dashboard:2", key)
	require.NoError(t, c.FetchJSON(ctx, key, &got, loader))
	require.Equal(t, 2, calls)
	require.Equal(t, 2, got["n"])
}

func TestFetchJSONLoaderErrorIsNotCached(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	boom := errors.New("boom")

	var got int
	err := c.FetchJSON(ctx, "k", &got, func(context.Context) (any, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists("k"))
}

func TestNilCacheCallsLoader(t *testing.T) {
	var c *Versioned
	var got string
	require.NoError(t, c.FetchJSON(context.Background(), "k", &got, func(context.Context) (any, error) { return "v", nil }))
	require.Equal(t, "v", got)
	require.NoError(t, c.Bump(context.Background()))
}

func TestBumpOnlyTouchesVersionKey(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	ver, err := c.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), ver)

	require.NoError(t, c.Bump(ctx))
	require.NoError(t, c.Bump(ctx))
	stored, err := mr.Get("test:version")
	require.NoError(t, err)
	require.Equal(t, "3", stored)
	require.Equal(t, []string{"test:version"}, mr.Keys())
}
