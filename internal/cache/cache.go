package cache

import (
	"strings"
	"sync"
	"time"
)

type Observer interface {
	CacheHit(name string)
	CacheMiss(name string)
}

type entry[T any] struct {
	val T
	exp time.Time
}

// Cache is a TTL map shared by the upstream clients. Expired entries are
// dropped lazily on read.
type Cache[T any] struct {
	name string
	mu   sync.RWMutex
	m    map[string]entry[T]
	ttl  time.Duration
	obs  Observer
	now  func() time.Time
}

func New[T any](name string, ttl time.Duration, obs Observer) *Cache[T] {
	return &Cache[T]{name: name, m: make(map[string]entry[T]), ttl: ttl, obs: obs, now: time.Now}
}

func (c *Cache[T]) Get(key string) (T, bool) {
	var zero T
	if c == nil {
		return zero, false
	}
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok || c.now().After(e.exp) {
		if ok {
			c.mu.Lock()
			if cur, still := c.m[key]; still && c.now().After(cur.exp) {
				delete(c.m, key)
			}
			c.mu.Unlock()
		}
		if c.obs != nil {
			c.obs.CacheMiss(c.name)
		}
		return zero, false
	}
	if c.obs != nil {
		c.obs.CacheHit(c.name)
	}
	return e.val, true
}

func (c *Cache[T]) Set(key string, v T) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.m[key] = entry[T]{val: v, exp: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *Cache[T]) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// Key joins normalized parts into a cache key.
func Key(parts ...string) string {
	norm := make([]string, len(parts))
	for i, p := range parts {
		norm[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return strings.Join(norm, "|")
}
