package pipeline

import (
	"context"
	"sync"

	"github.com/couchcryptid/fire-vulnerability-service/internal/domain"
	"github.com/couchcryptid/fire-vulnerability-service/internal/observability"
)

// CachedScorer wraps a Scorer with an in-memory LRU cache keyed by the input
// fingerprint, so an unchanged table is not re-ranked on every refresh.
type CachedScorer struct {
	inner   Scorer
	cache   *lruCache[domain.Result]
	metrics *observability.Metrics
}

// NewCachedScorer creates a cache decorator around a scorer.
func NewCachedScorer(inner Scorer, maxEntries int, metrics *observability.Metrics) *CachedScorer {
	return &CachedScorer{
		inner:   inner,
		cache:   newLRUCache[domain.Result](maxEntries),
		metrics: metrics,
	}
}

func (c *CachedScorer) Score(ctx context.Context, table domain.MetricTable, criteria []domain.Criterion) (domain.Result, error) {
	key := Fingerprint(table, criteria)
	if result, ok := c.cache.get(key); ok {
		c.metrics.ScoreCache.WithLabelValues("hit").Inc()
		return result, nil
	}
	c.metrics.ScoreCache.WithLabelValues("miss").Inc()

	result, err := c.inner.Score(ctx, table, criteria)
	if err != nil {
		// Failures are not cached so that a fixed input file is picked up.
		return result, err
	}
	c.cache.put(key, result)
	return result, nil
}

// lruCache is a simple thread-safe LRU cache.
type lruCache[V any] struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry[V]
	head       *entry[V] // most recently used
	tail       *entry[V] // least recently used
}

type entry[V any] struct {
	key   string
	value V
	prev  *entry[V]
	next  *entry[V]
}

func newLRUCache[V any](maxEntries int) *lruCache[V] {
	return &lruCache[V]{
		maxEntries: max(maxEntries, 1),
		entries:    make(map[string]*entry[V]),
	}
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry[V]{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache[V]) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache[V]) moveToFront(e *entry[V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache[V]) addToFront(e *entry[V]) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache[V]) remove(e *entry[V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache[V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
