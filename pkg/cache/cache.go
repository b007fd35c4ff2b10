package cache

import (
	"sync"
	"time"
)

// Item represents a cached item with expiration
type Item[V any] struct {
	Value      V
	Expiration int64
	touched    int64
}

// Expired checks if the cache item has expired
func (item Item[V]) Expired(now int64) bool {
	if item.Expiration == 0 {
		return false
	}
	return now > item.Expiration
}

// Options configures a Cache
type Options struct {
	// TTL is the default expiration. Zero keeps items until deleted.
	TTL time.Duration
	// CleanupInterval controls how often expired items are swept. Zero disables the sweeper.
	CleanupInterval time.Duration
	// MaxItems bounds the cache size; the least recently used item is evicted. Zero is unbounded.
	MaxItems int
	// Sliding refreshes an item's expiration on every Get
	Sliding bool
}

// Cache is a thread-safe in-memory cache with expiration
type Cache[V any] struct {
	items     map[string]Item[V]
	mu        sync.Mutex
	opts      Options
	onEvicted func(string, V)
	now       func() time.Time
	stop      chan struct{}
	stopOnce  sync.Once
}

type eviction[V any] struct {
	key   string
	value V
}

// New creates a cache and starts its sweeper if a cleanup interval is set
func New[V any](opts Options) *Cache[V] {
	c := &Cache[V]{
		items: make(map[string]Item[V]),
		opts:  opts,
		now:   time.Now,
		stop:  make(chan struct{}),
	}

	if opts.CleanupInterval > 0 {
		go c.startCleanupTimer()
	}

	return c
}

// Set adds an item to the cache with the default expiration
func (c *Cache[V]) Set(key string, value V) {
	c.SetWithExpiration(key, value, c.opts.TTL)
}

// SetWithExpiration adds an item to the cache with a specific expiration time
func (c *Cache[V]) SetWithExpiration(key string, value V, d time.Duration) {
	now := c.now()
	var exp int64
	if d > 0 {
		exp = now.Add(d).UnixNano()
	}

	var evicted []eviction[V]
	c.mu.Lock()
	if _, exists := c.items[key]; !exists && c.opts.MaxItems > 0 && len(c.items) >= c.opts.MaxItems {
		evicted = append(evicted, c.evictOldest())
	}
	c.items[key] = Item[V]{Value: value, Expiration: exp, touched: now.UnixNano()}
	c.mu.Unlock()

	c.notify(evicted)
}

// Get retrieves an item from the cache
func (c *Cache[V]) Get(key string) (V, bool) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found || item.Expired(now.UnixNano()) {
		var zero V
		return zero, false
	}

	item.touched = now.UnixNano()
	if c.opts.Sliding && item.Expiration > 0 && c.opts.TTL > 0 {
		item.Expiration = now.Add(c.opts.TTL).UnixNano()
	}
	c.items[key] = item

	return item.Value, true
}

// GetOrCreate returns the cached value for key, building and storing it with create when absent
func (c *Cache[V]) GetOrCreate(key string, create func() V) V {
	if v, ok := c.Get(key); ok {
		return v
	}

	now := c.now()
	var evicted []eviction[V]

	c.mu.Lock()
	if item, found := c.items[key]; found && !item.Expired(now.UnixNano()) {
		c.mu.Unlock()
		return item.Value
	}
	if item, found := c.items[key]; found {
		evicted = append(evicted, eviction[V]{key: key, value: item.Value})
		delete(c.items, key)
	}
	if c.opts.MaxItems > 0 && len(c.items) >= c.opts.MaxItems {
		evicted = append(evicted, c.evictOldest())
	}
	v := create()
	var exp int64
	if c.opts.TTL > 0 {
		exp = now.Add(c.opts.TTL).UnixNano()
	}
	c.items[key] = Item[V]{Value: v, Expiration: exp, touched: now.UnixNano()}
	c.mu.Unlock()

	c.notify(evicted)
	return v
}

// Delete removes an item from the cache
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	item, found := c.items[key]
	delete(c.items, key)
	c.mu.Unlock()

	if found {
		c.notify([]eviction[V]{{key: key, value: item.Value}})
	}
}

// Flush removes all items from the cache
func (c *Cache[V]) Flush() {
	c.mu.Lock()
	evicted := make([]eviction[V], 0, len(c.items))
	for k, v := range c.items {
		evicted = append(evicted, eviction[V]{key: k, value: v.Value})
	}
	c.items = make(map[string]Item[V])
	c.mu.Unlock()

	c.notify(evicted)
}

// Count returns the number of items in the cache (including expired items)
func (c *Cache[V]) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// SetOnEvicted sets the callback to be called when an item is evicted.
// The callback runs without the cache lock held.
func (c *Cache[V]) SetOnEvicted(f func(string, V)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvicted = f
}

// Stop ends the background sweeper
func (c *Cache[V]) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache[V]) startCleanupTimer() {
	ticker := time.NewTicker(c.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.DeleteExpired()
		case <-c.stop:
			return
		}
	}
}

// DeleteExpired deletes all expired items from the cache
func (c *Cache[V]) DeleteExpired() {
	now := c.now().UnixNano()

	c.mu.Lock()
	var evicted []eviction[V]
	for k, v := range c.items {
		if v.Expired(now) {
			evicted = append(evicted, eviction[V]{key: k, value: v.Value})
			delete(c.items, k)
		}
	}
	c.mu.Unlock()

	c.notify(evicted)
}

// evictOldest removes the least recently used item. Caller holds the lock.
func (c *Cache[V]) evictOldest() eviction[V] {
	var oldestKey string
	var oldest int64
	first := true
	for k, v := range c.items {
		if first || v.touched < oldest {
			oldestKey, oldest, first = k, v.touched, false
		}
	}
	ev := eviction[V]{key: oldestKey, value: c.items[oldestKey].Value}
	delete(c.items, oldestKey)
	return ev
}

func (c *Cache[V]) notify(evicted []eviction[V]) {
	if len(evicted) == 0 {
		return
	}
	c.mu.Lock()
	fn := c.onEvicted
	c.mu.Unlock()
	if fn == nil {
		return
	}
	for _, ev := range evicted {
		fn(ev.key, ev.value)
	}
}
