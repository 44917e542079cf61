package oracle

import (
	"context"
	"time"

	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/cache"
)

// CachedClient wraps a PriceSource with a short-TTL read cache. One scan
// cycle touches each symbol's price several times (sizing, per-leg
// projection, conversion back to quote currency); caching keeps those
// reads consistent within a cycle.
type CachedClient struct {
	source PriceSource
	cache  cache.Cache
	ttl    time.Duration
}

// NewCachedClient creates a caching decorator around source.
func NewCachedClient(source PriceSource, c cache.Cache, ttl time.Duration) *CachedClient {
	return &CachedClient{
		source: source,
		cache:  c,
		ttl:    ttl,
	}
}

// GetPrice returns the cached price for symbol, fetching through on miss.
// Fetch errors are never cached.
func (c *CachedClient) GetPrice(ctx context.Context, symbol string) (float64, error) {
	key := "price:" + symbol

	if v, found := c.cache.Get(key); found {
		if price, ok := v.(float64); ok {
			return price, nil
		}
	}

	price, err := c.source.GetPrice(ctx, symbol)
	if err != nil {
		return 0, err
	}

	c.cache.Set(key, price, c.ttl)
	return price, nil
}
