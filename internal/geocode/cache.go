package geocode

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/example/party-rides/internal/models"
)

// MemoryCache is a process-local Cache. Addresses do not move, so nothing
// is ever evicted.
type MemoryCache struct {
	mu    sync.RWMutex
	store map[string]models.Coordinates
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{store: make(map[string]models.Coordinates)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (models.Coordinates, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.store[key]
	return v, ok, nil
}

func (c *MemoryCache) Put(_ context.Context, key string, v models.Coordinates) error {
	c.mu.Lock()
	c.store[key] = v
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// LRUCache keeps the hottest keys in process and reads through to a shared
// backing cache (redis or postgres) on a local miss.
type LRUCache struct {
	front   *lru.Cache[string, models.Coordinates]
	backing Cache
}

func NewLRUCache(size int, backing Cache) (*LRUCache, error) {
	front, err := lru.New[string, models.Coordinates](size)
	if err != nil {
		return nil, err
	}
	return &LRUCache{front: front, backing: backing}, nil
}

func (c *LRUCache) Get(ctx context.Context, key string) (models.Coordinates, bool, error) {
	if v, ok := c.front.Get(key); ok {
		return v, true, nil
	}
	if c.backing == nil {
		return models.Coordinates{}, false, nil
	}
	v, ok, err := c.backing.Get(ctx, key)
	if err != nil || !ok {
		return models.Coordinates{}, false, err
	}
	c.front.Add(key, v)
	return v, true, nil
}

func (c *LRUCache) Put(ctx context.Context, key string, v models.Coordinates) error {
	c.front.Add(key, v)
	if c.backing == nil {
		return nil
	}
	return c.backing.Put(ctx, key, v)
}
