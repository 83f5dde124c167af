package database

import (
	"context"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of entries kept by NewCached when size <= 0.
const DefaultCacheSize = 4096

// CacheStats reports read cache effectiveness.
type CacheStats struct {
	Hits   uint64
	Misses uint64
	Size   int
}

// Cached is a read-through LRU cache in front of another DB. Writes go to
// the underlying DB first and then update or evict the cached entry.
type Cached struct {
	DB
	cache  *lru.Cache[string, []byte]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCached wraps db with an LRU read cache of the given number of entries.
func NewCached(db DB, size int) (*Cached, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &Cached{DB: db, cache: cache}, nil
}

func (c *Cached) Read(ctx context.Context, key []byte) ([]byte, error) {
	if v, ok := c.cache.Get(string(key)); ok {
		c.hits.Add(1)
		return append([]byte(nil), v...), nil
	}
	c.misses.Add(1)

	v, err := c.DB.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	c.cache.Add(string(key), append([]byte(nil), v...))
	return v, nil
}

func (c *Cached) Write(ctx context.Context, key, value []byte) error {
	if err := c.DB.Write(ctx, key, value); err != nil {
		c.cache.Remove(string(key))
		return err
	}
	c.cache.Add(string(key), append([]byte(nil), value...))
	return nil
}

func (c *Cached) Delete(ctx context.Context, key []byte) error {
	c.cache.Remove(string(key))
	return c.DB.Delete(ctx, key)
}

// Batch evicts the touched keys before and after the commit, so a Read that
// races the commit cannot leave a stale entry behind.
func (c *Cached) Batch(ctx context.Context, ops []BatchOperation) error {
	c.evict(ops)
	defer c.evict(ops)
	return c.DB.Batch(ctx, ops)
}

func (c *Cached) evict(ops []BatchOperation) {
	for _, op := range ops {
		c.cache.Remove(string(op.Key))
	}
}

func (c *Cached) Close() error {
	c.cache.Purge()
	return c.DB.Close()
}

// Stats returns hit and miss counters and the current number of entries.
func (c *Cached) Stats() CacheStats {
	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   c.cache.Len(),
	}
}
