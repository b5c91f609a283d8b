package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
)

// HistoryStore implements domain.PriceHistoryStore with one Redis list per
// instrument:
//
//	{prefix}history:{k:TICKER | p:slug} - JSON PriceSample entries, oldest first
//
// Each cycle appends with RPUSH and trims with LTRIM in a single pipeline.
type HistoryStore struct {
	c *Client
}

// NewHistoryStore creates a HistoryStore backed by the given Client.
func NewHistoryStore(c *Client) *HistoryStore {
	return &HistoryStore{c: c}
}

// Load scans every history list and returns the decoded series.
func (h *HistoryStore) Load(ctx context.Context) (map[string][]domain.PriceSample, error) {
	prefix := h.c.key("history", "")
	var keys []string
	iter := h.c.rdb.Scan(ctx, 0, prefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis: scan history keys: %w", err)
	}

	out := make(map[string][]domain.PriceSample, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	pipe := h.c.rdb.Pipeline()
	cmds := make([]*redis.StringSliceCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.LRange(ctx, k, 0, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis: load history: %w", err)
	}

	for i, k := range keys {
		raw, err := cmds[i].Result()
		if err != nil {
			return nil, fmt.Errorf("redis: load history %s: %w", k, err)
		}
		series := make([]domain.PriceSample, 0, len(raw))
		for _, r := range raw {
			var p domain.PriceSample
			if err := json.Unmarshal([]byte(r), &p); err != nil {
				continue
			}
			series = append(series, p)
		}
		out[strings.TrimPrefix(k, prefix)] = series
	}
	return out, nil
}

// Append pushes one sample per key and trims each list to its last cap entries.
func (h *HistoryStore) Append(ctx context.Context, samples map[string]domain.PriceSample, cap int) error {
	if len(samples) == 0 {
		return nil
	}

	pipe := h.c.rdb.Pipeline()
	for key, p := range samples {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("redis: marshal sample %s: %w", key, err)
		}
		lk := h.c.key("history", key)
		pipe.RPush(ctx, lk, data)
		if cap > 0 {
			pipe.LTrim(ctx, lk, int64(-cap), -1)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: append history: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.PriceHistoryStore = (*HistoryStore)(nil)
