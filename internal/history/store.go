// Package history keeps a bounded price series per instrument and derives
// deltas, top movers and sparklines from it.
package history

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
)

// DefaultCap is the number of samples kept per instrument.
const DefaultCap = 20

// Store is an in-memory, capped, per-key price series. It is safe for
// concurrent use; readers always receive copies.
type Store struct {
	mu     sync.RWMutex
	cap    int
	series map[string][]domain.PriceSample
}

// New creates an empty store keeping at most capacity samples per key. A
// non-positive capacity selects DefaultCap.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Store{cap: capacity, series: make(map[string][]domain.PriceSample)}
}

// Cap returns the per-key sample limit.
func (s *Store) Cap() int { return s.cap }

// Load replaces the store contents with data, trimming each series to the cap.
func (s *Store) Load(data map[string][]domain.PriceSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series = make(map[string][]domain.PriceSample, len(data))
	for k, v := range data {
		s.series[k] = s.trim(slices.Clone(v))
	}
}

// Append pushes one sample for key and evicts the oldest once the series
// exceeds the cap. Identical consecutive prices are kept.
func (s *Store) Append(key string, price int, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series[key] = s.trim(append(s.series[key], domain.PriceSample{T: t, P: price}))
}

// Delta returns current minus the most recent stored price for key, or nil if
// key has never been sampled.
func (s *Store) Delta(key string, current int) *int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ser := s.series[key]
	if len(ser) == 0 {
		return nil
	}
	d := current - ser[len(ser)-1].P
	return &d
}

// Series returns a copy of key's samples, oldest first.
func (s *Store) Series(key string) []domain.PriceSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.series[key])
}

// Snapshot returns a deep copy of every series.
func (s *Store) Snapshot() map[string][]domain.PriceSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]domain.PriceSample, len(s.series))
	for k, v := range s.series {
		out[k] = slices.Clone(v)
	}
	return out
}

// Keys returns the stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.series))
}

func (s *Store) trim(ser []domain.PriceSample) []domain.PriceSample {
	if n := len(ser) - s.cap; n > 0 {
		ser = slices.Delete(ser, 0, n)
	}
	return ser
}
