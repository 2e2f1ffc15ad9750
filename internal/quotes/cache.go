package quotes

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"stockwatch/internal/domain"
)

var _ Provider = (*Cache)(nil)

type cachedPrice struct {
	price   float64
	fetched time.Time
}

type cachedHistory struct {
	points  []domain.PricePoint
	fetched time.Time
}

// Cache keeps successful provider results for a fixed TTL. Concurrent misses
// for the same key share one upstream call. Errors and archive fallbacks are
// never cached, so the next request retries upstream.
type Cache struct {
	p   Provider
	ttl time.Duration
	now func() time.Time

	group singleflight.Group

	mu      sync.RWMutex
	prices  map[string]cachedPrice
	history map[string]cachedHistory
}

// NewCache wraps p. A non-positive ttl means five minutes.
func NewCache(p Provider, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		p:       p,
		ttl:     ttl,
		now:     time.Now,
		prices:  make(map[string]cachedPrice),
		history: make(map[string]cachedHistory),
	}
}

// Name returns the wrapped provider's name.
func (c *Cache) Name() string { return c.p.Name() }

// Price returns a cached price or fetches a fresh one.
func (c *Cache) Price(ctx context.Context, symbol string) (float64, error) {
	symbol = domain.NormalizeSymbol(symbol)

	c.mu.RLock()
	if e, ok := c.prices[symbol]; ok && c.now().Sub(e.fetched) < c.ttl {
		c.mu.RUnlock()
		return e.price, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do("price:"+symbol, func() (any, error) {
		price, err := c.p.Price(ctx, symbol)
		if err != nil {
			return 0.0, err
		}
		c.mu.Lock()
		c.prices[symbol] = cachedPrice{price: price, fetched: c.now()}
		c.mu.Unlock()
		return price, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

// History returns a cached series or fetches a fresh one.
func (c *Cache) History(ctx context.Context, symbol string, period domain.Period) ([]domain.PricePoint, error) {
	symbol = domain.NormalizeSymbol(symbol)
	key := symbol + "|" + string(period)

	c.mu.RLock()
	if e, ok := c.history[key]; ok && c.now().Sub(e.fetched) < c.ttl {
		c.mu.RUnlock()
		return e.points, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do("history:"+key, func() (any, error) {
		pts, archived, err := c.fetchHistory(ctx, symbol, period)
		if err != nil {
			return nil, err
		}
		if archived {
			return pts, nil
		}
		c.mu.Lock()
		c.history[key] = cachedHistory{points: pts, fetched: c.now()}
		c.mu.Unlock()
		return pts, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.PricePoint), nil
}

func (c *Cache) fetchHistory(ctx context.Context, symbol string, period domain.Period) ([]domain.PricePoint, bool, error) {
	if a, ok := c.p.(*Archived); ok {
		return a.history(ctx, symbol, period)
	}
	pts, err := c.p.History(ctx, symbol, period)
	return pts, false, err
}

// Invalidate drops every cached entry for symbol.
func (c *Cache) Invalidate(symbol string) {
	symbol = domain.NormalizeSymbol(symbol)
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.prices, symbol)
	for _, p := range domain.Periods {
		delete(c.history, symbol+"|"+string(p))
	}
}
