package cache

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jellydator/ttlcache/v3"
)

const (
	KindMemory = "memory"
	KindLRU    = "lru"
	KindTTL    = "ttl"
)

// Key identifies a message across channels.
type Key struct {
	ChannelID int64
	MessageID int
}

func (k Key) String() string {
	return strconv.FormatInt(k.ChannelID, 10) + ":" + strconv.Itoa(k.MessageID)
}

// Cache is safe for concurrent use. Entries are immutable per key, so callers
// racing on Put for the same key may overwrite each other freely.
type Cache[V any] interface {
	Get(key Key) (V, bool)
	Put(key Key, value V)
	Contains(key Key) bool
	Len() int
}

// New builds the implementation named by kind. size bounds lru and ttl
// caches; ttl only applies to the ttl kind.
func New[V any](kind string, size int, ttl time.Duration) (Cache[V], error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindMemory:
		return NewMemory[V](), nil
	case KindLRU:
		return NewLRU[V](size)
	case KindTTL:
		return NewTTL[V](size, ttl)
	default:
		return nil, fmt.Errorf("unknown cache kind %q", kind)
	}
}

type Memory[V any] struct {
	mu    sync.RWMutex
	items map[Key]V
}

func NewMemory[V any]() *Memory[V] {
	return &Memory[V]{items: make(map[Key]V)}
}

func (m *Memory[V]) Get(key Key) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok
}

func (m *Memory[V]) Put(key Key, value V) {
	m.mu.Lock()
	m.items[key] = value
	m.mu.Unlock()
}

func (m *Memory[V]) Contains(key Key) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.items[key]
	return ok
}

func (m *Memory[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

type LRU[V any] struct {
	inner *lru.Cache[Key, V]
}

func NewLRU[V any](size int) (*LRU[V], error) {
	inner, err := lru.New[Key, V](size)
	if err != nil {
		return nil, fmt.Errorf("lru cache: %w", err)
	}
	return &LRU[V]{inner: inner}, nil
}

func (c *LRU[V]) Get(key Key) (V, bool) { return c.inner.Get(key) }
func (c *LRU[V]) Put(key Key, value V)  { c.inner.Add(key, value) }
func (c *LRU[V]) Contains(key Key) bool { return c.inner.Contains(key) }
func (c *LRU[V]) Len() int              { return c.inner.Len() }

type TTL[V any] struct {
	inner *ttlcache.Cache[Key, V]
}

func NewTTL[V any](size int, ttl time.Duration) (*TTL[V], error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("ttl cache: ttl must be positive, got %s", ttl)
	}
	opts := []ttlcache.Option[Key, V]{ttlcache.WithTTL[Key, V](ttl)}
	if size > 0 {
		opts = append(opts, ttlcache.WithCapacity[Key, V](uint64(size)))
	}
	return &TTL[V]{inner: ttlcache.New[Key, V](opts...)}, nil
}

func (c *TTL[V]) Get(key Key) (V, bool) {
	item := c.inner.Get(key)
	if item == nil || item.IsExpired() {
		var zero V
		return zero, false
	}
	return item.Value(), true
}

func (c *TTL[V]) Put(key Key, value V) {
	c.inner.DeleteExpired()
	c.inner.Set(key, value, ttlcache.DefaultTTL)
}

func (c *TTL[V]) Contains(key Key) bool {
	_, ok := c.Get(key)
	return ok
}

func (c *TTL[V]) Len() int { return c.inner.Len() }

// Observed reports every Get outcome to observe.
type Observed[V any] struct {
	Cache[V]
	observe func(hit bool)
}

func WithObserver[V any](c Cache[V], observe func(hit bool)) Cache[V] {
	if observe == nil {
		return c
	}
	return &Observed[V]{Cache: c, observe: observe}
}

func (o *Observed[V]) Get(key Key) (V, bool) {
	v, ok := o.Cache.Get(key)
	o.observe(ok)
	return v, ok
}
