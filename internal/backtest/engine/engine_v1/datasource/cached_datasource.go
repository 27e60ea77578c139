package datasource

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-quant/internal/types"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize is the number of series a CachedLoader keeps by default.
const DefaultCacheSize = 64

type cacheEntry struct {
	key    string
	series types.MarketSeries
}

// CachedLoader wraps a Loader with an LRU cache keyed by symbol, interval and
// range. Concurrent misses for the same key share one underlying load. Errors
// are not cached.
type CachedLoader struct {
	underlying Loader
	capacity   int
	entries    map[string]*list.Element
	order      *list.List
	group      singleflight.Group
	hits       int
	misses     int
	mu         sync.Mutex
}

// NewCachedLoader creates a CachedLoader holding at most capacity series.
// A non-positive capacity uses DefaultCacheSize.
func NewCachedLoader(underlying Loader, capacity int) *CachedLoader {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}

	return &CachedLoader{
		underlying: underlying,
		capacity:   capacity,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
	}
}

// Load implements Loader with caching.
//
// A shared load runs under the context of the caller that started it. When
// that context is cancelled, waiters whose own context is still live load
// again instead of inheriting the cancellation.
func (c *CachedLoader) Load(ctx context.Context, symbol string, interval types.Interval, start, end optional.Option[time.Time]) (types.MarketSeries, error) {
	key := c.buildKey(symbol, interval, start, end)

	if series, ok := c.get(key); ok {
		return series, nil
	}

	series, err := c.load(ctx, key, symbol, interval, start, end)
	if err != nil && isContextError(err) && ctx.Err() == nil {
		series, err = c.load(ctx, key, symbol, interval, start, end)
	}

	return series, err
}

func (c *CachedLoader) load(ctx context.Context, key string, symbol string, interval types.Interval, start, end optional.Option[time.Time]) (types.MarketSeries, error) {
	v, err, _ := c.group.Do(key, func() (any, error) {
		if series, ok := c.peek(key); ok {
			return series, nil
		}

		series, err := c.underlying.Load(ctx, symbol, interval, start, end)
		if err != nil {
			return types.MarketSeries{}, err
		}

		c.put(key, series)

		return series, nil
	})
	if err != nil {
		return types.MarketSeries{}, err
	}

	return v.(types.MarketSeries), nil
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Symbols forwards to the underlying loader when it can list symbols.
func (c *CachedLoader) Symbols(ctx context.Context) ([]string, error) {
	lister, ok := c.underlying.(SymbolLister)
	if !ok {
		return nil, fmt.Errorf("loader %T cannot list symbols", c.underlying)
	}

	return lister.Symbols(ctx)
}

// ClearCache drops every cached series.
func (c *CachedLoader) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Stats returns the hit and miss counts since creation.
func (c *CachedLoader) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.hits, c.misses
}

// Len is the number of cached series.
func (c *CachedLoader) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.order.Len()
}

func (c *CachedLoader) get(key string) (types.MarketSeries, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		c.misses++

		return types.MarketSeries{}, false
	}

	c.hits++
	c.order.MoveToFront(elem)

	return elem.Value.(*cacheEntry).series, true
}

// peek looks up key without touching the statistics.
func (c *CachedLoader) peek(key string) (types.MarketSeries, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return types.MarketSeries{}, false
	}

	return elem.Value.(*cacheEntry).series, true
}

func (c *CachedLoader) put(key string, series types.MarketSeries) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		elem.Value.(*cacheEntry).series = series
		c.order.MoveToFront(elem)

		return
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, series: series})

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

// buildKey creates a cache key for Load.
func (c *CachedLoader) buildKey(symbol string, interval types.Interval, start, end optional.Option[time.Time]) string {
	startStr, endStr := "open", "open"
	if start.IsSome() {
		startStr = fmt.Sprintf("%d", start.Unwrap().UnixNano())
	}

	if end.IsSome() {
		endStr = fmt.Sprintf("%d", end.Unwrap().UnixNano())
	}

	return fmt.Sprintf("range:%s:%s:%s:%s", symbol, interval, startStr, endStr)
}
