package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
)

// MarketCache implements domain.MarketCache with JSON strings under
// {prefix}market:{venue key}.
type MarketCache struct {
	c *Client
}

// NewMarketCache creates a MarketCache backed by the given Client.
func NewMarketCache(c *Client) *MarketCache {
	return &MarketCache{c: c}
}

// Set stores detail under key for ttl.
func (mc *MarketCache) Set(ctx context.Context, key string, detail domain.MarketDetail, ttl time.Duration) error {
	data, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", key, err)
	}
	if err := mc.c.rdb.Set(ctx, mc.c.key("market", key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set market %s: %w", key, err)
	}
	return nil
}

// Get returns the cached detail or domain.ErrNotFound.
func (mc *MarketCache) Get(ctx context.Context, key string) (domain.MarketDetail, error) {
	data, err := mc.c.rdb.Get(ctx, mc.c.key("market", key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.MarketDetail{}, domain.ErrNotFound
		}
		return domain.MarketDetail{}, fmt.Errorf("redis: get market %s: %w", key, err)
	}

	var detail domain.MarketDetail
	if err := json.Unmarshal(data, &detail); err != nil {
		return domain.MarketDetail{}, fmt.Errorf("redis: unmarshal market %s: %w", key, err)
	}
	return detail, nil
}

// Compile-time interface check.
var _ domain.MarketCache = (*MarketCache)(nil)
