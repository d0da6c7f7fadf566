// Package cache holds the results of read-only tool calls for a bounded time.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/logging"
)

const (
	shardCount       = 16
	minShardCapacity = 64
)

// cacheableVerbs mark a method as read-only.
var cacheableVerbs = []string{"list", "get", "search", "find"}

// Config controls caching.
type Config struct {
	Enabled         bool
	TTL             time.Duration
	MaxSize         int
	CleanupInterval time.Duration
}

// RequestDescriptor identifies a cacheable call.
type RequestDescriptor struct {
	Tool   string         `json:"tool"`
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

// Stats reports cache counters.
type Stats struct {
	Size      int    `json:"size"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

type entry struct {
	key       string
	value     any
	expiresAt time.Time
}

// shard is an LRU list with most recently used entries at the front.
type shard struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	lru      *list.List
	capacity int
}

func (s *shard) removeElement(el *list.Element) {
	s.lru.Remove(el)
	delete(s.items, el.Value.(*entry).key)
}

// Cache is a sharded LRU cache with per-entry expiry.
type Cache struct {
	cfg    Config
	shards []*shard
	now    func() time.Time
	logger *logging.Logger

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64

	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// New creates a cache. When cfg.CleanupInterval is positive and caching is
// enabled, a background goroutine removes expired entries until Close.
func New(cfg Config, opts ...Option) *Cache {
	c := &Cache{
		cfg:  cfg,
		now:  time.Now,
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrDefault(c.logger).Named("cache")

	n := 1
	if cfg.MaxSize >= shardCount*minShardCapacity {
		n = shardCount
	}
	c.shards = make([]*shard, n)
	for i := range c.shards {
		capacity := cfg.MaxSize / n
		if i < cfg.MaxSize%n {
			capacity++
		}
		c.shards[i] = &shard{
			items:    make(map[string]*list.Element),
			lru:      list.New(),
			capacity: capacity,
		}
	}

	if cfg.Enabled && cfg.CleanupInterval > 0 {
		go c.janitor(cfg.CleanupInterval)
	}
	return c
}

// Enabled reports whether caching is on.
func (c *Cache) Enabled() bool {
	return c.cfg.Enabled
}

// ShouldCache reports whether the call is read-only and caching is on.
func (c *Cache) ShouldCache(req RequestDescriptor) bool {
	if !c.cfg.Enabled {
		return false
	}
	method := strings.ToLower(req.Method)
	for _, verb := range cacheableVerbs {
		if strings.Contains(method, verb) {
			return true
		}
	}
	return false
}

// Key returns the fingerprint of a call. Equal descriptors yield equal keys
// regardless of map ordering.
func Key(req RequestDescriptor) string {
	data, err := json.Marshal(req)
	if err != nil {
		data = []byte(fmt.Sprintf("%s|%s|%v", req.Tool, req.Method, req.Params))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (c *Cache) shardFor(key string) *shard {
	if len(c.shards) == 1 {
		return c.shards[0]
	}
	return c.shards[murmur3.Sum32([]byte(key))%uint32(len(c.shards))]
}

// Get returns the live value stored under key.
func (c *Cache) Get(key string) (any, bool) {
	if !c.cfg.Enabled {
		return nil, false
	}
	s := c.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	e := el.Value.(*entry)
	if !c.now().Before(e.expiresAt) {
		s.removeElement(el)
		c.misses.Add(1)
		return nil, false
	}
	s.lru.MoveToFront(el)
	c.hits.Add(1)
	return e.value, true
}

// Set stores value under key. A non-positive ttl uses the configured default.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if !c.cfg.Enabled {
		return
	}
	if ttl <= 0 {
		ttl = c.cfg.TTL
	}
	s := c.shardFor(key)
	expiresAt := c.now().Add(ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[key]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.expiresAt = expiresAt
		s.lru.MoveToFront(el)
		return
	}

	if s.capacity <= 0 {
		return
	}
	for s.lru.Len() >= s.capacity {
		s.removeElement(s.lru.Back())
		c.evictions.Add(1)
	}
	s.items[key] = s.lru.PushFront(&entry{key: key, value: value, expiresAt: expiresAt})
}

// Has reports whether a live entry exists for key without touching LRU order.
func (c *Cache) Has(key string) bool {
	if !c.cfg.Enabled {
		return false
	}
	s := c.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	return ok && c.now().Before(el.Value.(*entry).expiresAt)
}

// Delete removes key.
func (c *Cache) Delete(key string) {
	s := c.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[key]; ok {
		s.removeElement(el)
	}
}

// Clear removes every entry.
func (c *Cache) Clear() {
	for _, s := range c.shards {
		s.mu.Lock()
		s.items = make(map[string]*list.Element)
		s.lru.Init()
		s.mu.Unlock()
	}
}

// Stats returns the current counters.
func (c *Cache) Stats() Stats {
	size := 0
	for _, s := range c.shards {
		s.mu.Lock()
		size += s.lru.Len()
		s.mu.Unlock()
	}
	return Stats{
		Size:      size,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// Close stops the janitor. It is safe to call multiple times.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *Cache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := c.purgeExpired(); removed > 0 {
				c.logger.Debug("purged expired entries", logging.Fields{"removed": removed})
			}
		case <-c.done:
			return
		}
	}
}

func (c *Cache) purgeExpired() int {
	now := c.now()
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for el := s.lru.Back(); el != nil; {
			prev := el.Prev()
			if !now.Before(el.Value.(*entry).expiresAt) {
				s.removeElement(el)
				removed++
			}
			el = prev
		}
		s.mu.Unlock()
	}
	return removed
}
