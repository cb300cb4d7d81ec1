package resolve_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/actions_updater/updater/config"
	"github.com/byte4ever/actions_updater/updater/resolve"
)

func TestCache_roundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.json")

	c, err := resolve.OpenCache(path, time.Hour)
	require.NoError(t, err)

	_, ok := c.Get("release-tag|octo/some-action")
	assert.False(t, ok)

	c.Put(
		"release-tag|octo/some-action",
		resolve.Resolution{Ref: "v4.2.1"},
	)

	require.NoError(t, c.Flush())

	// Reopen and read back.
	c2, err := resolve.OpenCache(path, time.Hour)
	require.NoError(t, err)

	res, ok := c2.Get(
		"release-tag|octo/some-action",
	)

	require.True(t, ok)
	assert.Equal(t, "v4.2.1", res.Ref)
}

func TestCache_expiry(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.json")

	c, err := resolve.OpenCache(path, time.Nanosecond)
	require.NoError(t, err)

	c.Put(
		"k", resolve.Resolution{Ref: "v1"},
	)

	time.Sleep(10 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCache_corrupt_file(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(
		t,
		os.WriteFile(
			path, []byte("not json"), 0o644,
		),
	)

	c, err := resolve.OpenCache(path, time.Hour)

	require.NoError(t, err)

	_, ok := c.Get("anything")
	assert.False(t, ok)
}

func TestResolver_uses_cache(t *testing.T) {
	t.Parallel()

	f, client := newFakeAPI(t)

	path := filepath.Join(t.TempDir(), "cache.json")

	cache, err := resolve.OpenCache(path, time.Hour)
	require.NoError(t, err)

	r, err := resolve.New(
		client, config.StrategyReleaseTag,
	)
	require.NoError(t, err)
	r.UseCache(cache)

	ctx := context.Background()

	_, err = r.Resolve(ctx, "octo/some-action")
	require.NoError(t, err)
	require.NoError(t, cache.Flush())

	// A fresh resolver sharing the cache file never
	// reaches the API.
	cache2, err := resolve.OpenCache(path, time.Hour)
	require.NoError(t, err)

	r2, err := resolve.New(
		client, config.StrategyReleaseTag,
	)
	require.NoError(t, err)
	r2.UseCache(cache2)

	res, err := r2.Resolve(ctx, "octo/some-action")

	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "v4.2.1", res.Ref)
	assert.EqualValues(t, 1, f.releaseHits.Load())
}
