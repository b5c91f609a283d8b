package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
)

// SignalBus is an in-process domain.SignalBus. Publish never blocks: a
// subscriber whose buffer is full misses the message.
type SignalBus struct {
	mu      sync.RWMutex
	subs    map[string][]chan []byte
	streams map[string][]domain.StreamMessage
	maxLen  int
}

// NewSignalBus creates a bus whose streams keep at most maxLen entries.
func NewSignalBus(maxLen int) *SignalBus {
	if maxLen <= 0 {
		maxLen = 1000
	}
	return &SignalBus{
		subs:    make(map[string][]chan []byte),
		streams: make(map[string][]domain.StreamMessage),
		maxLen:  maxLen,
	}
}

// Publish delivers payload to current subscribers of channel.
func (b *SignalBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[channel] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel receiving messages published on channel until
// ctx is cancelled.
func (b *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 64)
	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[channel]
		for i, c := range subs {
			if c == ch {
				b.subs[channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}

// StreamAppend adds payload to stream, trimming the oldest entries past maxLen.
func (b *SignalBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := b.streams[stream]
	seq := 1
	if len(msgs) > 0 {
		last := msgs[len(msgs)-1].ID
		n, _ := strconv.Atoi(last[len(last)-seqWidth:])
		seq = n + 1
	}
	id := fmt.Sprintf("%d-%0*d", time.Now().UnixMilli(), seqWidth, seq)
	msgs = append(msgs, domain.StreamMessage{ID: id, Payload: payload})
	if n := len(msgs) - b.maxLen; n > 0 {
		msgs = msgs[n:]
	}
	b.streams[stream] = msgs
	return nil
}

// StreamRead returns up to count entries after lastID. "0" or "" reads from
// the start.
func (b *SignalBus) StreamRead(_ context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []domain.StreamMessage
	for _, m := range b.streams[stream] {
		if lastID != "" && lastID != "0" && streamSeq(m.ID) <= streamSeq(lastID) {
			continue
		}
		out = append(out, m)
		if count > 0 && len(out) == count {
			break
		}
	}
	return out, nil
}

const seqWidth = 10

func streamSeq(id string) int {
	if len(id) < seqWidth {
		return 0
	}
	n, _ := strconv.Atoi(id[len(id)-seqWidth:])
	return n
}

// LockManager is an in-process domain.LockManager.
type LockManager struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

// NewLockManager creates a lock manager.
func NewLockManager() *LockManager {
	return &LockManager{held: make(map[string]time.Time), clock: time.Now}
}

// Acquire takes key for ttl. It fails with domain.ErrLockHeld while another
// holder's lease is live.
func (m *LockManager) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock()
	if exp, ok := m.held[key]; ok && now.Before(exp) {
		return nil, fmt.Errorf("lock %s: %w", key, domain.ErrLockHeld)
	}
	exp := now.Add(ttl)
	m.held[key] = exp
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if cur, ok := m.held[key]; ok && cur.Equal(exp) {
			delete(m.held, key)
		}
	}, nil
}

// MarketCache is an in-process domain.MarketCache with per-entry expiry.
type MarketCache struct {
	mu      sync.RWMutex
	entries map[string]cachedDetail
	clock   func() time.Time
}

type cachedDetail struct {
	detail  domain.MarketDetail
	expires time.Time
}

// NewMarketCache creates an empty cache.
func NewMarketCache() *MarketCache {
	return &MarketCache{entries: make(map[string]cachedDetail), clock: time.Now}
}

// Set stores detail under key for ttl.
func (c *MarketCache) Set(_ context.Context, key string, detail domain.MarketDetail, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cachedDetail{detail: detail, expires: c.clock().Add(ttl)}
	return nil
}

// Get returns the cached detail or domain.ErrNotFound when absent or expired.
func (c *MarketCache) Get(_ context.Context, key string) (domain.MarketDetail, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || !c.clock().Before(e.expires) {
		return domain.MarketDetail{}, domain.ErrNotFound
	}
	return e.detail, nil
}

// RateLimiter is a fixed-window in-process domain.RateLimiter.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]window
	clock   func() time.Time
}

type window struct {
	start time.Time
	count int
}

// NewRateLimiter creates a limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{windows: make(map[string]window), clock: time.Now}
}

// Allow counts one request for key and reports whether it is within limit for
// the current window.
func (r *RateLimiter) Allow(_ context.Context, key string, limit int, win time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()
	w := r.windows[key]
	if now.Sub(w.start) >= win {
		w = window{start: now}
	}
	w.count++
	r.windows[key] = w
	return w.count <= limit, nil
}
