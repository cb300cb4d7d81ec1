package resolve

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

// Cache persists resolutions between runs in a JSON
// sidecar file so repeated runs against the same action
// set skip the API round trips.
type Cache struct {
	path string
	ttl  time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
	dirty   bool

	// now is overridable for tests.
	now func() time.Time
}

// cacheEntry is one persisted resolution with its fetch
// time for TTL checks.
type cacheEntry struct {
	Resolution Resolution `json:"resolution"`
	FetchedAt  time.Time  `json:"fetched_at"`
}

// OpenCache loads the cache at path, starting empty
// when the file does not exist. A corrupt file is
// discarded with a warning rather than failing the run.
func OpenCache(
	path string,
	ttl time.Duration,
) (*Cache, error) {
	const errCtx = "opening resolution cache"

	c := &Cache{
		path:    path,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}

	data, err := os.ReadFile(path) //nolint:gosec // cache path comes from configuration
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}

	if err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	if err := json.Unmarshal(
		data, &c.entries,
	); err != nil {
		slog.Warn(
			"discarding corrupt resolution cache",
			"path", path,
			"error", err,
		)

		c.entries = make(map[string]cacheEntry)
	}

	return c, nil
}

// Get returns a cached resolution, or false when absent
// or expired.
func (c *Cache) Get(key string) (*Resolution, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	if c.now().Sub(entry.FetchedAt) > c.ttl {
		delete(c.entries, key)
		c.dirty = true

		return nil, false
	}

	res := entry.Resolution

	return &res, true
}

// Put stores a resolution under key.
func (c *Cache) Put(key string, res Resolution) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		Resolution: res,
		FetchedAt:  c.now(),
	}
	c.dirty = true
}

// Flush writes the cache back to disk when it changed.
func (c *Cache) Flush() error {
	const errCtx = "flushing resolution cache"

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return nil
	}

	data, err := json.MarshalIndent(
		c.entries, "", "  ",
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	//nolint:gosec // cache file is not sensitive
	if err := os.WriteFile(
		c.path, data, 0o644,
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	c.dirty = false

	return nil
}
