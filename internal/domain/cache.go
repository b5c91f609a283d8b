package domain

import (
	"context"
	"time"
)

// MarketDetail is the single-instrument detail view served by the market
// lookup endpoints.
type MarketDetail struct {
	Venue     Venue             `json:"venue"`
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Subtitle  string            `json:"subtitle,omitempty"`
	YesPrice  int               `json:"yes_price"`
	NoPrice   int               `json:"no_price"`
	Volume    float64           `json:"volume"`
	Volume24h float64           `json:"volume_24h"`
	Status    string            `json:"status"`
	Link      string            `json:"link"`
	Extras    map[string]string `json:"extras,omitempty"`
}

// MarketCache caches market detail lookups.
type MarketCache interface {
	Set(ctx context.Context, key string, detail MarketDetail, ttl time.Duration) error
	Get(ctx context.Context, key string) (MarketDetail, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// Signal bus channels and streams.
const (
	ChannelOpportunities = "daylight:opportunities"
	ChannelAlerts        = "daylight:alerts"
	ChannelScans         = "daylight:scans"
	StreamOpportunities  = "daylight:stream:opportunities"
)

// Envelope is the JSON message published on the signal bus channels.
type Envelope struct {
	Type string    `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data"`
}
